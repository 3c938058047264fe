package gateway

import (
	"encoding/json"
	"net/http"
)

// healthPayload is the GET /health response shape (spec.md §6: {status, details}).
type healthPayload struct {
	Status  string `json:"status"`
	Details any    `json:"details"`
}

// handleHealth implements spec.md §4.7's GET /health: unauthenticated,
// returns the kernel's health() payload as JSON.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	status, details := "ok", any(nil)
	if s.health != nil {
		status, details = s.health.Health(r.Context())
	}
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(healthPayload{Status: status, Details: details})
}
