package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/slashbot/slashbot/internal/registry"
)

// MethodHandler is the shape every gateway RPC method must satisfy
// (spec.md §4.7: "async functions (params) → JsonValue"). Plugins register
// handlers of this type through plugins.API.RegisterGatewayMethod.
type MethodHandler func(ctx context.Context, params json.RawMessage) (any, error)

// MethodRegistry resolves a registered RPC method by name. internal/plugins's
// Loader satisfies this.
type MethodRegistry interface {
	GatewayMethod(name string) (any, bool)
}

// RouteSource exposes HTTP routes plugins registered through
// plugins.API.RegisterHTTPRoute. internal/plugins's Loader satisfies this.
type RouteSource interface {
	Routes() []registry.HTTPRoute
}

// HealthReporter produces the kernel's health payload (spec.md §4.1's
// health() operation): an overall status plus a details object whose shape
// is left to the kernel (registry counts, plugin diagnostics, etc).
type HealthReporter interface {
	Health(ctx context.Context) (status string, details any)
}

// Config configures the gateway HTTP server (spec.md §6: config.gateway).
type Config struct {
	Host      string
	Port      int
	AuthToken string
}

// Server is the Bearer-authed JSON-RPC + health HTTP front end described in
// spec.md §4.7. It owns no domain logic of its own; it dispatches into the
// method registry and route registry it is constructed with.
type Server struct {
	cfg      Config
	methods  MethodRegistry
	routes   RouteSource
	health   HealthReporter
	logger   *slog.Logger
	lock     *LockHandle
	httpSrv  *http.Server
	listener net.Listener
}

// NewServer constructs a gateway Server. methods/routes/health may be nil in
// tests that only exercise a subset of endpoints.
func NewServer(cfg Config, methods MethodRegistry, routes RouteSource, health HealthReporter, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{cfg: cfg, methods: methods, routes: routes, health: health, logger: logger}
}

// Start acquires the single-instance lock, binds the listener, and begins
// serving in a background goroutine. It returns once the listener is bound
// so callers can discover the actual port (e.g. when Config.Port is 0).
func (s *Server) Start(ctx context.Context, lockOpts LockOptions) error {
	lock, err := AcquireEnhancedGatewayLock(lockOpts)
	if err != nil {
		return err
	}
	s.lock = lock

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/rpc", s.handleRPC)
	if s.routes != nil {
		for _, route := range s.routes.Routes() {
			mux.HandleFunc(route.Path, route.Handler)
		}
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		if s.lock != nil {
			s.lock.Release()
		}
		return err
	}
	s.listener = listener

	s.httpSrv = &http.Server{
		Handler:           s.authGate(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("gateway server exited", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listener address, valid only after Start succeeds.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop gracefully shuts the server down and releases the instance lock.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
			s.httpSrv.Close()
		}
	}
	if s.lock != nil {
		return s.lock.Release()
	}
	return nil
}
