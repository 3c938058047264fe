package plugins

import (
	"context"
	"errors"
	"testing"

	"github.com/slashbot/slashbot/internal/hooks"
	"github.com/slashbot/slashbot/pkg/pluginsdk"
)

func newTestLoader() *Loader {
	return NewLoader(hooks.NewDispatcher(nil), nil)
}

func TestLoaderAddRejectsDuplicateAndEmptyID(t *testing.T) {
	l := newTestLoader()
	def := &Definition{Manifest: &pluginsdk.Manifest{ID: "echo"}, Register: func(a *API) error { return nil }}

	if err := l.Add(def); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := l.Add(def); err == nil {
		t.Fatalf("expected error on duplicate add")
	}
	if err := l.Add(&Definition{Register: func(a *API) error { return nil }}); err == nil {
		t.Fatalf("expected error for missing manifest id")
	}
}

func TestLoadAllRegistersCapabilitiesAndRecordsDiagnostics(t *testing.T) {
	l := newTestLoader()
	if err := l.Add(&Definition{
		Manifest: &pluginsdk.Manifest{ID: "echo"},
		Register: func(a *API) error {
			a.RegisterTool("echo.say", func(s string) string { return s })
			return nil
		},
	}); err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := l.LoadAll(context.Background(), Config{Enabled: true}); err != nil {
		t.Fatalf("load all: %v", err)
	}

	if _, ok := l.Tool("echo.say"); !ok {
		t.Fatalf("expected tool echo.say to be registered")
	}

	diags := l.Diagnostics()
	if len(diags) != 1 || diags[0].Status != StatusLoaded {
		t.Fatalf("expected one loaded diagnostic, got %+v", diags)
	}
}

func TestLoadAllIsolatesFailingPlugin(t *testing.T) {
	l := newTestLoader()
	if err := l.Add(&Definition{
		Manifest: &pluginsdk.Manifest{ID: "broken"},
		Register: func(a *API) error { return errors.New("boom") },
	}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := l.Add(&Definition{
		Manifest: &pluginsdk.Manifest{ID: "healthy"},
		Register: func(a *API) error {
			a.RegisterTool("healthy.tool", struct{}{})
			return nil
		},
	}); err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := l.LoadAll(context.Background(), Config{Enabled: true}); err != nil {
		t.Fatalf("load all: %v", err)
	}

	if _, ok := l.Tool("healthy.tool"); !ok {
		t.Fatalf("expected healthy plugin's tool to register despite sibling failure")
	}

	var brokenStatus, healthyStatus Status
	for _, d := range l.Diagnostics() {
		switch d.PluginID {
		case "broken":
			brokenStatus = d.Status
		case "healthy":
			healthyStatus = d.Status
		}
	}
	if brokenStatus != StatusFailed {
		t.Fatalf("expected broken plugin to be marked failed, got %s", brokenStatus)
	}
	if healthyStatus != StatusLoaded {
		t.Fatalf("expected healthy plugin to be marked loaded, got %s", healthyStatus)
	}
}

func TestLoadAllRespectsDependencyOrder(t *testing.T) {
	l := newTestLoader()
	var loadOrder []string

	if err := l.Add(&Definition{
		Manifest: &pluginsdk.Manifest{ID: "base"},
		Register: func(a *API) error { loadOrder = append(loadOrder, "base"); return nil },
	}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := l.Add(&Definition{
		Manifest: &pluginsdk.Manifest{ID: "extension", Dependencies: []string{"base"}},
		Register: func(a *API) error { loadOrder = append(loadOrder, "extension"); return nil },
	}); err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := l.LoadAll(context.Background(), Config{Enabled: true}); err != nil {
		t.Fatalf("load all: %v", err)
	}

	if len(loadOrder) != 2 || loadOrder[0] != "base" || loadOrder[1] != "extension" {
		t.Fatalf("expected base before extension, got %v", loadOrder)
	}
}

func TestLoadAllRejectsDependencyCycle(t *testing.T) {
	l := newTestLoader()
	if err := l.Add(&Definition{Manifest: &pluginsdk.Manifest{ID: "a", Dependencies: []string{"b"}}}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := l.Add(&Definition{Manifest: &pluginsdk.Manifest{ID: "b", Dependencies: []string{"a"}}}); err != nil {
		t.Fatalf("add: %v", err)
	}

	err := l.LoadAll(context.Background(), Config{Enabled: true})
	if err == nil {
		t.Fatalf("expected cycle error")
	}
}

func TestLoadAllHonorsAllowAndDenyLists(t *testing.T) {
	l := newTestLoader()
	if err := l.Add(&Definition{
		Manifest: &pluginsdk.Manifest{ID: "denied"},
		Register: func(a *API) error { a.RegisterTool("denied.tool", struct{}{}); return nil },
	}); err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := l.LoadAll(context.Background(), Config{Enabled: true, Deny: []string{"denied"}}); err != nil {
		t.Fatalf("load all: %v", err)
	}
	if _, ok := l.Tool("denied.tool"); ok {
		t.Fatalf("denied plugin's tool should not have registered")
	}
	diags := l.Diagnostics()
	if len(diags) != 1 || diags[0].Status != StatusFailed {
		t.Fatalf("expected denied plugin marked failed, got %+v", diags)
	}
}
