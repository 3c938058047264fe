package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// rpcRequest is the POST /rpc request body (spec.md §6).
type rpcRequest struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// rpcError is the error shape inside a failed rpcResponse.
type rpcError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// rpcResponse is the POST /rpc response body (spec.md §6).
type rpcResponse struct {
	OK     bool      `json:"ok"`
	Result any       `json:"result,omitempty"`
	Error  *rpcError `json:"error,omitempty"`
}

// handleRPC implements spec.md §4.7's POST /rpc: Bearer-authenticated,
// dispatches {method, params} into the method registry, and always answers
// HTTP 200 once authenticated (dispatch failures surface as {ok:false}).
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if !s.checkAuth(r) {
		writeUnauthorized(w)
		return
	}

	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRPCResult(w, rpcResponse{OK: false, Error: &rpcError{Code: "bad_request", Message: "invalid request body: " + err.Error()}})
		return
	}

	if s.methods == nil {
		writeRPCResult(w, rpcResponse{OK: false, Error: &rpcError{Code: "unknown_method", Message: "no method registry configured"}})
		return
	}

	raw, ok := s.methods.GatewayMethod(req.Method)
	if !ok {
		writeRPCResult(w, rpcResponse{OK: false, Error: &rpcError{Code: "unknown_method", Message: "method not found: " + req.Method}})
		return
	}

	handler, ok := raw.(MethodHandler)
	if !ok {
		writeRPCResult(w, rpcResponse{OK: false, Error: &rpcError{Code: "invalid_handler", Message: "registered handler for " + req.Method + " has the wrong signature"}})
		return
	}

	result, err := callHandler(r.Context(), handler, req.Params)
	if err != nil {
		writeRPCResult(w, rpcResponse{OK: false, Error: &rpcError{Code: "handler_error", Message: err.Error()}})
		return
	}

	writeRPCResult(w, rpcResponse{OK: true, Result: result})
}

// callHandler recovers a handler panic into an error so one misbehaving
// plugin method can't take the gateway process down (spec.md §4.5's
// failure-isolation principle, applied to the RPC surface).
func callHandler(ctx context.Context, handler MethodHandler, params json.RawMessage) (result any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = panicError{rec}
		}
	}()
	return handler(ctx, params)
}

type panicError struct{ value any }

func (p panicError) Error() string {
	if err, ok := p.value.(error); ok {
		return err.Error()
	}
	return "panic: " + toString(p.value)
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "unrepresentable panic value"
	}
	return string(b)
}

func writeRPCResult(w http.ResponseWriter, resp rpcResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(rpcResponse{OK: false, Error: &rpcError{Code: "unauthorized", Message: "missing or invalid bearer token"}})
}

// checkAuth validates the Authorization: Bearer <token> header against
// config.gateway.authToken.
func (s *Server) checkAuth(r *http.Request) bool {
	if s.cfg.AuthToken == "" {
		return false
	}
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	token := strings.TrimPrefix(header, prefix)
	return token == s.cfg.AuthToken
}

// authGate enforces spec.md §D's resolved Open Question: a missing or wrong
// bearer token is rejected with 401 before route resolution, for every path
// except /health — even paths no handler is registered for. A plugin route
// registered with RequireAuth=false is the one opt-out.
func (s *Server) authGate(next http.Handler) http.Handler {
	noAuth := map[string]bool{"/health": true}
	if s.routes != nil {
		for _, route := range s.routes.Routes() {
			if !route.RequireAuth {
				noAuth[route.Path] = true
			}
		}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if noAuth[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}
		if !s.checkAuth(r) {
			writeUnauthorized(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}
