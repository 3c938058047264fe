package registry

import (
	"sort"
	"sync"
)

// StatusSubscriber is notified when an indicator's value changes.
type StatusSubscriber func(id string, value any)

// statusEntry is one registered indicator.
type statusEntry struct {
	id       string
	priority int // default 100, ascending sort
	order    int // insertion order, tie-break
	value    any
}

// StatusRegistry tracks live status indicators with priority-ordered
// listing and change-only subscriber notification (spec.md §4.1).
type StatusRegistry struct {
	mu          sync.RWMutex
	entries     map[string]*statusEntry
	seq         int
	subscribers map[string][]subFn
	subSeq      uint64
}

type subFn struct {
	id uint64
	fn StatusSubscriber
}

// NewStatusRegistry creates an empty status indicator registry.
func NewStatusRegistry() *StatusRegistry {
	return &StatusRegistry{
		entries:     make(map[string]*statusEntry),
		subscribers: make(map[string][]subFn),
	}
}

// Register adds an indicator with an initial value and priority (0 means
// the default of 100).
func (s *StatusRegistry) Register(id string, priority int, initial any) {
	if priority == 0 {
		priority = DefaultPriority
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[id]; exists {
		return
	}
	s.seq++
	s.entries[id] = &statusEntry{id: id, priority: priority, order: s.seq, value: initial}
}

// DefaultPriority mirrors the kernel-wide default used across registries.
const DefaultPriority = 100

// UpdateStatus sets id's value, invoking subscribers only if the value
// actually changed (spec.md §4.1).
func (s *StatusRegistry) UpdateStatus(id string, value any) {
	s.mu.Lock()
	entry, ok := s.entries[id]
	if !ok {
		s.seq++
		entry = &statusEntry{id: id, priority: DefaultPriority, order: s.seq}
		s.entries[id] = entry
	}
	changed := entry.value != value
	entry.value = value
	subs := append([]subFn(nil), s.subscribers[id]...)
	s.mu.Unlock()

	if !changed {
		return
	}
	for _, sub := range subs {
		sub.fn(id, value)
	}
}

// Subscribe registers fn to be called when id's status changes. Returns a
// disposer.
func (s *StatusRegistry) Subscribe(id string, fn StatusSubscriber) (dispose func()) {
	s.mu.Lock()
	s.subSeq++
	subID := s.subSeq
	s.subscribers[id] = append(s.subscribers[id], subFn{id: subID, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		subs := s.subscribers[id]
		for i, sub := range subs {
			if sub.id == subID {
				s.subscribers[id] = append(subs[:i], subs[i+1:]...)
				return
			}
		}
	}
}

// StatusSnapshot is one entry in StatusRegistry.List()'s result.
type StatusSnapshot struct {
	ID       string
	Priority int
	Value    any
}

// List returns all indicators sorted by ascending priority, ties broken
// by ascending insertion order (spec.md §4.1).
func (s *StatusRegistry) List() []StatusSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]StatusSnapshot, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, StatusSnapshot{ID: e.id, Priority: e.priority, Value: e.value})
	}
	sort.Slice(out, func(i, j int) bool {
		ei, ej := s.entries[out[i].ID], s.entries[out[j].ID]
		if ei.priority != ej.priority {
			return ei.priority < ej.priority
		}
		return ei.order < ej.order
	})
	return out
}
