package plugins

import (
	"fmt"
	"sort"
)

// ErrDependencyCycle is returned when a plugin dependency graph contains a
// cycle. Message lists every cycle participant in ascending id order
// (spec.md §8).
type ErrDependencyCycle struct {
	IDs []string
}

func (e *ErrDependencyCycle) Error() string {
	ids := append([]string(nil), e.IDs...)
	sort.Strings(ids)
	return fmt.Sprintf("plugin dependency cycle detected: %v", ids)
}

// ErrMissingDependency indicates a manifest declares a dependency id that
// was never discovered.
type ErrMissingDependency struct {
	PluginID     string
	DependencyID string
}

func (e *ErrMissingDependency) Error() string {
	return fmt.Sprintf("plugin %q depends on undiscovered plugin %q", e.PluginID, e.DependencyID)
}

// activationOrder returns manifest ids in dependency-first order: a plugin
// never precedes any plugin it depends on. Ties (no dependency relation)
// are broken by ascending priority, then ascending id, so ordering is
// deterministic across runs (spec.md §4.5).
func activationOrder(manifests map[string]ManifestInfo) ([]string, error) {
	ids := make([]string, 0, len(manifests))
	for id := range manifests {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		mi, mj := manifests[ids[i]].Manifest, manifests[ids[j]].Manifest
		if mi.Priority != mj.Priority {
			return mi.Priority < mj.Priority
		}
		return ids[i] < ids[j]
	})

	for _, id := range ids {
		for _, dep := range manifests[id].Manifest.Dependencies {
			if _, ok := manifests[dep]; !ok {
				return nil, &ErrMissingDependency{PluginID: id, DependencyID: dep}
			}
		}
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(ids))
	order := make([]string, 0, len(ids))
	var cycleIDs []string

	var visit func(id string, stack []string) bool
	visit = func(id string, stack []string) bool {
		color[id] = gray
		stack = append(stack, id)

		deps := append([]string(nil), manifests[id].Manifest.Dependencies...)
		sort.Strings(deps)
		for _, dep := range deps {
			switch color[dep] {
			case white:
				if visit(dep, stack) {
					return true
				}
			case gray:
				cycleIDs = collectCycle(stack, dep)
				return true
			}
		}

		color[id] = black
		order = append(order, id)
		return false
	}

	for _, id := range ids {
		if color[id] != white {
			continue
		}
		if visit(id, nil) {
			return nil, &ErrDependencyCycle{IDs: cycleIDs}
		}
	}

	return order, nil
}

func collectCycle(stack []string, closesAt string) []string {
	start := 0
	for i, id := range stack {
		if id == closesAt {
			start = i
			break
		}
	}
	out := append([]string(nil), stack[start:]...)
	return out
}
