package plugins

import (
	"errors"
	"testing"

	"github.com/slashbot/slashbot/pkg/pluginsdk"
)

func manifestInfo(id string, priority int, deps ...string) ManifestInfo {
	return ManifestInfo{Manifest: &pluginsdk.Manifest{ID: id, Priority: priority, Dependencies: deps}}
}

func TestActivationOrderRespectsDependencies(t *testing.T) {
	manifests := map[string]ManifestInfo{
		"a": manifestInfo("a", 100),
		"b": manifestInfo("b", 100, "a"),
		"c": manifestInfo("c", 100, "a", "b"),
	}

	order, err := activationOrder(manifests)
	if err != nil {
		t.Fatalf("activationOrder: %v", err)
	}

	pos := make(map[string]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	if pos["a"] > pos["b"] || pos["b"] > pos["c"] {
		t.Fatalf("expected order a,b,c, got %v", order)
	}
}

func TestActivationOrderDetectsCycle(t *testing.T) {
	manifests := map[string]ManifestInfo{
		"a": manifestInfo("a", 100, "b"),
		"b": manifestInfo("b", 100, "c"),
		"c": manifestInfo("c", 100, "a"),
	}

	_, err := activationOrder(manifests)
	if err == nil {
		t.Fatalf("expected cycle error")
	}
	var cycleErr *ErrDependencyCycle
	if !errors.As(err, &cycleErr) {
		t.Fatalf("expected ErrDependencyCycle, got %T: %v", err, err)
	}
	if cycleErr.Error() != `plugin dependency cycle detected: [a b c]` {
		t.Fatalf("unexpected cycle message: %s", cycleErr.Error())
	}
}

func TestActivationOrderDeterministicTieBreak(t *testing.T) {
	manifests := map[string]ManifestInfo{
		"z": manifestInfo("z", 100),
		"m": manifestInfo("m", 100),
		"a": manifestInfo("a", 100),
	}
	order, err := activationOrder(manifests)
	if err != nil {
		t.Fatalf("activationOrder: %v", err)
	}
	if order[0] != "a" || order[1] != "m" || order[2] != "z" {
		t.Fatalf("expected alphabetic tie-break, got %v", order)
	}
}

func TestActivationOrderMissingDependency(t *testing.T) {
	manifests := map[string]ManifestInfo{
		"a": manifestInfo("a", 100, "ghost"),
	}
	_, err := activationOrder(manifests)
	var missing *ErrMissingDependency
	if !errors.As(err, &missing) {
		t.Fatalf("expected ErrMissingDependency, got %v", err)
	}
}
