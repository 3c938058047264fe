package kernel

import (
	"io"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/slashbot/slashbot/internal/audit"
	"github.com/slashbot/slashbot/internal/contextpipeline"
	"github.com/slashbot/slashbot/internal/eventbus"
	"github.com/slashbot/slashbot/internal/hooks"
	"github.com/slashbot/slashbot/internal/observability"
	"github.com/slashbot/slashbot/internal/plugins"
	"github.com/slashbot/slashbot/internal/registry"
)

// DefaultPriority mirrors registry.DefaultPriority for prompt sections that
// don't specify one.
const DefaultPriority = registry.DefaultPriority

// Config carries the parts of RuntimeConfig the kernel itself consumes
// directly, plus a workspace root for session-metadata and config-hook
// file I/O.
type Config struct {
	CorePrompt     string
	WorkspaceRoot  string
	SessionDir     string
	PipelineConfig contextpipeline.Config
}

// Kernel is the façade described by spec.md §4.4. Construct one with New,
// wire plugins into Loader before calling LoadAll, then drive it from the
// gateway or CLI.
type Kernel struct {
	cfg        Config
	Dispatcher *hooks.Dispatcher
	Bus        *eventbus.Bus
	Loader     *plugins.Loader
	Status     *registry.StatusRegistry
	Metrics    *observability.Metrics
	Audit      *audit.Logger
	logger     *slog.Logger
	stderr     io.Writer

	mu       sync.Mutex
	sections []sectionEntry
	seq      int
	provides []ContextProvider
	sessions map[string]time.Time
}

type sectionEntry struct {
	section PromptSection
	order   int
}

// New wires a Kernel from its already-constructed collaborators. Any of
// Status, Metrics, or Audit may be nil; every call site guards against it.
func New(cfg Config, dispatcher *hooks.Dispatcher, bus *eventbus.Bus, loader *plugins.Loader, status *registry.StatusRegistry, metrics *observability.Metrics, auditLogger *audit.Logger, logger *slog.Logger) *Kernel {
	if logger == nil {
		logger = slog.Default()
	}
	return &Kernel{
		cfg:        cfg,
		Dispatcher: dispatcher,
		Bus:        bus,
		Loader:     loader,
		Status:     status,
		Metrics:    metrics,
		Audit:      auditLogger,
		logger:     logger.With("component", "kernel"),
		stderr:     os.Stderr,
		sessions:   make(map[string]time.Time),
	}
}

// RegisterPromptSection adds a section assemblePrompt will render on every
// call, ordered by ascending priority then registration order.
func (k *Kernel) RegisterPromptSection(s PromptSection) {
	if s.Priority == 0 {
		s.Priority = DefaultPriority
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.seq++
	k.sections = append(k.sections, sectionEntry{section: s, order: k.seq})
}

// RegisterContextProvider adds a free-form context contributor, rendered
// after every PromptSection.
func (k *Kernel) RegisterContextProvider(p ContextProvider) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.provides = append(k.provides, p)
}

func (k *Kernel) sortedSections() []PromptSection {
	k.mu.Lock()
	entries := append([]sectionEntry(nil), k.sections...)
	k.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].section.Priority != entries[j].section.Priority {
			return entries[i].section.Priority < entries[j].section.Priority
		}
		return entries[i].order < entries[j].order
	})

	out := make([]PromptSection, len(entries))
	for i, e := range entries {
		out[i] = e.section
	}
	return out
}

func (k *Kernel) contextProviders() []ContextProvider {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([]ContextProvider(nil), k.provides...)
}
