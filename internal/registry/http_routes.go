package registry

import (
	"fmt"
	"net/http"
	"sync"
)

// HTTPRoute is one registered HTTP handler, keyed by (method, path) so the
// same path can be registered under different methods (spec.md §4.1).
type HTTPRoute struct {
	Method      string
	Path        string
	Handler     http.HandlerFunc
	PluginID    string
	RequireAuth bool
}

func routeKey(method, path string) string { return method + " " + path }

// HTTPRouteRegistry specializes Registry for (method, path) keys.
type HTTPRouteRegistry struct {
	mu     sync.RWMutex
	routes map[string]HTTPRoute
	order  []string
}

// NewHTTPRouteRegistry creates an empty HTTP route registry.
func NewHTTPRouteRegistry() *HTTPRouteRegistry {
	return &HTTPRouteRegistry{routes: make(map[string]HTTPRoute)}
}

// Register adds a route, failing if (method, path) is already taken.
func (r *HTTPRouteRegistry) Register(route HTTPRoute) error {
	key := routeKey(route.Method, route.Path)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.routes[key]; exists {
		return fmt.Errorf("registry: route %s already registered", key)
	}
	r.routes[key] = route
	r.order = append(r.order, key)
	return nil
}

// Get returns the route bound to (method, path).
func (r *HTTPRouteRegistry) Get(method, path string) (HTTPRoute, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.routes[routeKey(method, path)]
	return v, ok
}

// List returns a snapshot of all registered routes.
func (r *HTTPRouteRegistry) List() []HTTPRoute {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]HTTPRoute, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.routes[key])
	}
	return out
}
