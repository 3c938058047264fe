package fshooks

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/slashbot/slashbot/internal/hooks"
)

// Manager discovers filesystem hooks under a workspace root, registers one
// internal/hooks.Handler per script against the custom domain, and — once
// StartWatching is called — keeps that registration set current as scripts
// are added or removed (SPEC_FULL.md §C.2). It never touches the
// dispatcher's own per-event ordering or timeout semantics; each script is
// just another hooks.Handler competing on priority like any plugin handler.
type Manager struct {
	dispatcher    *hooks.Dispatcher
	workspaceRoot string
	logger        *slog.Logger

	mu         sync.Mutex
	registered map[string]string // script path -> registration ID

	watcher     *fsnotify.Watcher
	watchCancel context.CancelFunc
	watchWg     sync.WaitGroup
	debounce    time.Duration
}

// NewManager constructs a Manager bound to one dispatcher and workspace
// root. Call Discover once at startup, then StartWatching to pick up
// changes made while the process is running.
func NewManager(dispatcher *hooks.Dispatcher, workspaceRoot string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		dispatcher:    dispatcher,
		workspaceRoot: workspaceRoot,
		logger:        logger.With("component", "fshooks"),
		registered:    make(map[string]string),
		debounce:      250 * time.Millisecond,
	}
}

// Discover scans the hooks directory and registers every script not
// already registered, then unregisters any previously registered script
// that has since disappeared. Safe to call repeatedly (e.g. from the
// watch loop).
func (m *Manager) Discover(ctx context.Context) error {
	scripts, err := Discover(m.workspaceRoot)
	if err != nil {
		return err
	}

	seen := make(map[string]bool, len(scripts))
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, script := range scripts {
		seen[script.Path] = true
		if _, ok := m.registered[script.Path]; ok {
			continue
		}
		id, err := m.register(script)
		if err != nil {
			m.logger.Warn("failed to register filesystem hook", "path", script.Path, "error", err)
			continue
		}
		m.registered[script.Path] = id
		m.logger.Debug("registered filesystem hook", "path", script.Path, "event", script.Event)
	}

	for path, id := range m.registered {
		if seen[path] {
			continue
		}
		m.dispatcher.Unregister(id)
		delete(m.registered, path)
		m.logger.Debug("unregistered filesystem hook (script removed)", "path", path)
	}

	return nil
}

func (m *Manager) register(script Script) (string, error) {
	path := script.Path
	event := script.Event
	return m.dispatcher.Register(hooks.RegisterInput{
		Domain:      hooks.DomainCustom,
		Event:       event,
		Description: "filesystem hook: " + script.Name,
		Handler: func(ctx context.Context, payload hooks.Payload) (hooks.Payload, error) {
			return runScript(ctx, path, event, m.workspaceRoot, payload, m.logger)
		},
	})
}

// StartWatching begins an fsnotify watch on the hooks directory; script
// additions, removals, or rewrites trigger a debounced re-Discover. A
// missing hooks directory is not an error: watching simply stays off until
// the caller creates the directory and calls StartWatching again.
func (m *Manager) StartWatching(ctx context.Context) error {
	dir := hooksDir(m.workspaceRoot)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.watcher = watcher
	m.watchCancel = cancel
	m.mu.Unlock()

	m.watchWg.Add(1)
	go m.watchLoop(watchCtx, watcher)
	return nil
}

func (m *Manager) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer m.watchWg.Done()

	var mu sync.Mutex
	var timer *time.Timer
	scheduleRefresh := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(m.debounce, func() {
			if err := m.Discover(context.Background()); err != nil {
				m.logger.Warn("filesystem hook re-discovery failed", "error", err)
			}
		})
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				scheduleRefresh()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			m.logger.Warn("filesystem hook watch error", "error", err)
		}
	}
}

// Close stops the watcher, if one was started.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.watchCancel != nil {
		m.watchCancel()
		m.watchCancel = nil
	}
	watcher := m.watcher
	m.watcher = nil
	m.mu.Unlock()

	if watcher != nil {
		watcher.Close()
	}
	m.watchWg.Wait()
	return nil
}
