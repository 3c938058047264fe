// Package plugins implements the dependency-ordered plugin substrate:
// discovery of manifests, topological activation order, and a
// capability-registration surface (tools, commands, providers, hooks,
// services, gateway methods, HTTP routes) that isolates one plugin's
// failure from its siblings (spec.md §3-§4.5).
package plugins

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/slashbot/slashbot/internal/hooks"
	"github.com/slashbot/slashbot/internal/registry"
	"github.com/slashbot/slashbot/pkg/pluginsdk"
)

// Status is the terminal state of a plugin's load attempt. Once set it is
// never mutated (spec.md §4.5).
type Status string

const (
	StatusLoaded Status = "loaded"
	StatusFailed Status = "failed"
)

// Diagnostic is the permanent record of one plugin's load outcome.
type Diagnostic struct {
	PluginID string
	Status   Status
	Reason   string
	Source   string
}

// Config controls which discovered plugins actually load.
type Config struct {
	Enabled bool
	Allow   []string
	Deny    []string
	Paths   []string
	Entries map[string]EntryConfig
}

// EntryConfig is per-plugin configuration and enable override.
type EntryConfig struct {
	Enabled *bool
	Config  map[string]any
}

// RegisterFunc is called once per activating plugin to let it populate the
// shared registries through its PluginAPI.
type RegisterFunc func(api *API) error

// Definition pairs a manifest with the Go-side registration behavior. For
// bundled/builtin plugins, Manifest may be nil, in which case a synthetic
// manifest (default priority, no dependencies) is assumed.
type Definition struct {
	Manifest   *pluginsdk.Manifest
	Register   RegisterFunc
	Activate   func(ctx context.Context) error
	Deactivate func(ctx context.Context) error
}

func (d *Definition) id() string {
	if d.Manifest != nil {
		return d.Manifest.ID
	}
	return ""
}

// API is the capability surface exposed to a plugin's Register function.
// Every Register* call is isolated via registry.SafeRegister so a panic or
// error in one plugin cannot prevent its siblings from registering.
type API struct {
	pluginID string
	loader   *Loader
	Config   map[string]any
	Logger   *slog.Logger
}

// RegisterTool adds a tool handler to the shared tool registry.
func (a *API) RegisterTool(id string, handler any) registry.SafeRegisterResult {
	return registry.SafeRegister(a.Logger, "tool:"+id, func() error {
		return a.loader.tools.Register(namedItem{id: id, value: handler})
	})
}

// RegisterToolSchema attaches a JSON-Schema document to a tool id (spec.md
// §3's ToolDefinition.parameters), validated against args by the kernel
// before the handler runs. Optional: a tool with no registered schema
// skips validation entirely.
func (a *API) RegisterToolSchema(id string, schema json.RawMessage) registry.SafeRegisterResult {
	return registry.SafeRegister(a.Logger, "tool-schema:"+id, func() error {
		return a.loader.toolSchemas.Register(namedItem{id: id, value: schema})
	})
}

// RegisterCommand adds a CLI command handler.
func (a *API) RegisterCommand(id string, handler any) registry.SafeRegisterResult {
	return registry.SafeRegister(a.Logger, "command:"+id, func() error {
		return a.loader.commands.Register(namedItem{id: id, value: handler})
	})
}

// RegisterProvider adds a model provider factory.
func (a *API) RegisterProvider(id string, handler any) registry.SafeRegisterResult {
	return registry.SafeRegister(a.Logger, "provider:"+id, func() error {
		return a.loader.providers.Register(namedItem{id: id, value: handler})
	})
}

// RegisterService adds a background service.
func (a *API) RegisterService(id string, svc any) registry.SafeRegisterResult {
	return registry.SafeRegister(a.Logger, "service:"+id, func() error {
		return a.loader.services.Register(namedItem{id: id, value: svc})
	})
}

// RegisterGatewayMethod adds an RPC method the gateway can dispatch to.
func (a *API) RegisterGatewayMethod(name string, handler any) registry.SafeRegisterResult {
	return registry.SafeRegister(a.Logger, "gateway:"+name, func() error {
		return a.loader.gatewayMethods.Register(namedItem{id: name, value: handler})
	})
}

// RegisterHTTPRoute adds an HTTP route.
func (a *API) RegisterHTTPRoute(route registry.HTTPRoute) registry.SafeRegisterResult {
	route.PluginID = a.pluginID
	return registry.SafeRegister(a.Logger, "route:"+route.Method+" "+route.Path, func() error {
		return a.loader.routes.Register(route)
	})
}

// RegisterHook subscribes a handler to a domain/event pair via the shared
// hook dispatcher.
func (a *API) RegisterHook(input hooks.RegisterInput) (string, error) {
	return a.loader.dispatcher.Register(input)
}

// namedItem adapts any value into registry.Identified.
type namedItem struct {
	id    string
	value any
}

func (n namedItem) RegistryID() string { return n.id }

// Loader owns every capability registry populated by plugins plus the
// load-order/diagnostic bookkeeping spec.md §4.5 requires.
type Loader struct {
	mu          sync.RWMutex
	definitions map[string]*Definition
	diagnostics []Diagnostic
	loadedOrder []string // successfully activated plugin ids, in activation order

	dispatcher     *hooks.Dispatcher
	tools          *registry.Registry[namedItem]
	toolSchemas    *registry.Registry[namedItem]
	commands       *registry.Registry[namedItem]
	providers      *registry.Registry[namedItem]
	services       *registry.Registry[namedItem]
	gatewayMethods *registry.Registry[namedItem]
	routes         *registry.HTTPRouteRegistry
	logger         *slog.Logger
}

// NewLoader creates an empty plugin loader wired to the given hook
// dispatcher (shared with the rest of the kernel).
func NewLoader(dispatcher *hooks.Dispatcher, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		definitions:    make(map[string]*Definition),
		dispatcher:     dispatcher,
		tools:          registry.New[namedItem](),
		toolSchemas:    registry.New[namedItem](),
		commands:       registry.New[namedItem](),
		providers:      registry.New[namedItem](),
		services:       registry.New[namedItem](),
		gatewayMethods: registry.New[namedItem](),
		routes:         registry.NewHTTPRouteRegistry(),
		logger:         logger,
	}
}

// Add registers a plugin definition for a future LoadAll call. It does not
// itself run Register — that happens in dependency order.
func (l *Loader) Add(def *Definition) error {
	id := def.id()
	if id == "" {
		return fmt.Errorf("plugin definition missing manifest id")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.definitions[id]; exists {
		return fmt.Errorf("plugin %q already added", id)
	}
	l.definitions[id] = def
	return nil
}

// LoadAll activates every added definition in dependency order, recording
// one Diagnostic per plugin. A dependency cycle or missing dependency
// aborts the whole load before any plugin's Register runs (spec.md §8).
func (l *Loader) LoadAll(ctx context.Context, cfg Config) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !cfg.Enabled {
		for id := range l.definitions {
			l.diagnostics = append(l.diagnostics, Diagnostic{PluginID: id, Status: StatusFailed, Reason: "plugins disabled"})
		}
		return nil
	}

	manifests := make(map[string]ManifestInfo, len(l.definitions))
	for id, def := range l.definitions {
		manifest := def.Manifest
		if manifest == nil {
			manifest = &pluginsdk.Manifest{ID: id}
		}
		manifests[id] = ManifestInfo{Manifest: manifest}
	}

	order, err := activationOrder(manifests)
	if err != nil {
		return err
	}

	for _, id := range order {
		def := l.definitions[id]
		state := l.resolveEnableState(id, cfg)
		if !state.enabled {
			l.diagnostics = append(l.diagnostics, Diagnostic{PluginID: id, Status: StatusFailed, Reason: state.reason})
			continue
		}

		var pluginConfig map[string]any
		if entry, ok := cfg.Entries[id]; ok {
			pluginConfig = entry.Config
		}

		api := &API{
			pluginID: id,
			loader:   l,
			Config:   pluginConfig,
			Logger:   l.logger.With("plugin", id),
		}

		if def.Register != nil {
			if err := safeCall(func() error { return def.Register(api) }); err != nil {
				l.diagnostics = append(l.diagnostics, Diagnostic{PluginID: id, Status: StatusFailed, Reason: err.Error()})
				continue
			}
		}

		if def.Activate != nil {
			if err := safeCall(func() error { return def.Activate(ctx) }); err != nil {
				l.diagnostics = append(l.diagnostics, Diagnostic{PluginID: id, Status: StatusFailed, Reason: fmt.Sprintf("activate: %v", err)})
				continue
			}
		}

		l.diagnostics = append(l.diagnostics, Diagnostic{PluginID: id, Status: StatusLoaded})
		l.loadedOrder = append(l.loadedOrder, id)
	}

	return nil
}

// DeactivateAll implements spec.md §4.4/§3's teardown lifecycle: every
// loaded plugin's optional Deactivate is called in reverse activation
// order; a failure is passed to onFailure rather than aborting the rest.
func (l *Loader) DeactivateAll(ctx context.Context, onFailure func(pluginID string, err error)) {
	l.mu.RLock()
	order := append([]string(nil), l.loadedOrder...)
	defs := make(map[string]*Definition, len(l.definitions))
	for id, def := range l.definitions {
		defs[id] = def
	}
	l.mu.RUnlock()

	for i := len(order) - 1; i >= 0; i-- {
		id := order[i]
		def := defs[id]
		if def == nil || def.Deactivate == nil {
			continue
		}
		if err := safeCall(func() error { return def.Deactivate(ctx) }); err != nil && onFailure != nil {
			onFailure(id, err)
		}
	}
}

func safeCall(fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return fn()
}

type enableState struct {
	enabled bool
	reason  string
}

func (l *Loader) resolveEnableState(id string, cfg Config) enableState {
	for _, denied := range cfg.Deny {
		if denied == id {
			return enableState{false, "blocked by denylist"}
		}
	}
	if len(cfg.Allow) > 0 {
		found := false
		for _, allowed := range cfg.Allow {
			if allowed == id {
				found = true
				break
			}
		}
		if !found {
			return enableState{false, "not in allowlist"}
		}
	}
	if entry, ok := cfg.Entries[id]; ok {
		if entry.Enabled != nil && !*entry.Enabled {
			return enableState{false, "disabled in config"}
		}
	}
	return enableState{true, ""}
}

// Diagnostics returns every plugin's load outcome, one entry each.
func (l *Loader) Diagnostics() []Diagnostic {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Diagnostic, len(l.diagnostics))
	copy(out, l.diagnostics)
	return out
}

// Tool returns a registered tool handler by id.
func (l *Loader) Tool(id string) (any, bool) {
	item, ok := l.tools.Get(id)
	return item.value, ok
}

// ToolSchema returns the JSON-Schema document registered for a tool id, if
// any (spec.md §3's ToolDefinition.parameters).
func (l *Loader) ToolSchema(id string) (json.RawMessage, bool) {
	item, ok := l.toolSchemas.Get(id)
	if !ok {
		return nil, false
	}
	schema, ok := item.value.(json.RawMessage)
	return schema, ok
}

// Command returns a registered command handler by id.
func (l *Loader) Command(id string) (any, bool) {
	item, ok := l.commands.Get(id)
	return item.value, ok
}

// Provider returns a registered provider factory by id.
func (l *Loader) Provider(id string) (any, bool) {
	item, ok := l.providers.Get(id)
	return item.value, ok
}

// Service returns a registered background service by id.
func (l *Loader) Service(id string) (any, bool) {
	item, ok := l.services.Get(id)
	return item.value, ok
}

// GatewayMethod returns a registered RPC method handler by name.
func (l *Loader) GatewayMethod(name string) (any, bool) {
	item, ok := l.gatewayMethods.Get(name)
	return item.value, ok
}

// Routes returns every registered HTTP route.
func (l *Loader) Routes() []registry.HTTPRoute {
	return l.routes.List()
}
