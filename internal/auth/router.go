package auth

import (
	"errors"
	"sort"
	"sync"
)

// ErrNoProviderConfigured is returned by Resolve when no provider is
// pinned and none is configured as the active default.
var ErrNoProviderConfigured = errors.New("NO_PROVIDER_CONFIGURED")

// ErrNoProfileAvailable is returned when every profile for the resolved
// provider is excluded by session-scoped failure marks.
var ErrNoProfileAvailable = errors.New("auth: no profile available")

// ResolveRequest is the router's input (spec.md §4.6).
type ResolveRequest struct {
	AgentID         string
	SessionID       string
	PinnedProviderID string
}

// Resolved is the router's output: the chosen provider, profile, and
// (optionally) a pinned model id carried in the profile's opaque data.
type Resolved struct {
	ProviderID string
	Profile    Profile
	ModelID    string
}

// Router selects an auth profile per spec.md §4.6's four-step algorithm,
// rotating away from profiles marked failed for the current session.
type Router struct {
	store *Store

	mu             sync.Mutex
	activeProvider string                      // config's active provider, if any
	activeModel    string                      // config's providers.active.modelId, if any
	authOrder      map[string][]Method         // providerID -> preferred method order
	failedSessions map[string]map[string]bool  // sessionID -> profile key -> failed
}

// NewRouter creates a router backed by store, with activeProvider/activeModel
// as the config-declared default provider and model (config's
// providers.active.{providerId,modelId}), used when no PinnedProviderID is
// given and to populate Resolved.ModelID (spec.md §4.6's resolve output is
// {providerId, profile, modelId}).
func NewRouter(store *Store, activeProvider, activeModel string) *Router {
	return &Router{
		store:          store,
		activeProvider: activeProvider,
		activeModel:    activeModel,
		authOrder:      make(map[string][]Method),
		failedSessions: make(map[string]map[string]bool),
	}
}

// SetPreferredAuthOrder overrides the method ranking used for providerID.
func (r *Router) SetPreferredAuthOrder(providerID string, order []Method) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.authOrder[providerID] = order
}

// Resolve implements the four-step selection algorithm.
func (r *Router) Resolve(req ResolveRequest) (Resolved, error) {
	providerID := req.PinnedProviderID
	if providerID == "" {
		providerID = r.activeProvider
	}
	if providerID == "" {
		return Resolved{}, ErrNoProviderConfigured
	}

	profiles, err := r.store.ListProfiles(req.AgentID, providerID)
	if err != nil {
		return Resolved{}, err
	}

	r.mu.Lock()
	failed := r.failedSessions[req.SessionID]
	order := r.authOrder[providerID]
	r.mu.Unlock()
	if order == nil {
		order = preferredAuthOrder
	}

	var candidates []Profile
	for _, p := range profiles {
		if failed != nil && failed[p.key()] {
			continue
		}
		candidates = append(candidates, p)
	}
	if len(candidates) == 0 {
		return Resolved{}, ErrNoProfileAvailable
	}

	rank := make(map[Method]int, len(order))
	for i, m := range order {
		rank[m] = i
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		ri, oki := rank[candidates[i].Method]
		rj, okj := rank[candidates[j].Method]
		if !oki {
			ri = len(order)
		}
		if !okj {
			rj = len(order)
		}
		return ri < rj
	})

	chosen := candidates[0]
	resolved := Resolved{ProviderID: providerID, Profile: chosen}
	if providerID == r.activeProvider {
		resolved.ModelID = r.activeModel
	}
	return resolved, nil
}

// ReportFailure marks (providerID, profileID) as failed for the given
// session only; the mark never persists across process restarts.
func (r *Router) ReportFailure(sessionID, providerID, profileID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failedSessions[sessionID] == nil {
		r.failedSessions[sessionID] = make(map[string]bool)
	}
	key := Profile{ProviderID: providerID, ProfileID: profileID}.key()
	r.failedSessions[sessionID][key] = true
}

// ClearSession drops all failure marks recorded for sessionID, e.g. when
// a session ends.
func (r *Router) ClearSession(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.failedSessions, sessionID)
}
