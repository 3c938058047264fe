package auth

import (
	"path/filepath"
	"testing"
)

func TestUpsertProfileThenListProfilesMergesSources(t *testing.T) {
	home := t.TempDir()
	store := NewStore(home, "", "", "")

	profile := Profile{ProfileID: "p1", ProviderID: "anthropic", Method: MethodAPIKey}
	if err := store.UpsertProfile("agent-1", profile); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	profiles, err := store.ListProfiles("agent-1", "anthropic")
	if err != nil {
		t.Fatalf("list profiles: %v", err)
	}
	if len(profiles) != 1 || profiles[0].ProfileID != "p1" {
		t.Fatalf("expected one profile p1, got %+v", profiles)
	}
	if profiles[0].UpdatedAt.IsZero() {
		t.Fatalf("expected UpdatedAt to be set on upsert")
	}
}

func TestListProfilesFirstOccurrenceWins(t *testing.T) {
	home := t.TempDir()
	cwd := t.TempDir()
	store := NewStore(home, cwd, "", "")

	userProfile := Profile{ProfileID: "p1", ProviderID: "anthropic", Method: MethodAPIKey, Label: "user"}
	if err := store.UpsertProfile("agent-1", userProfile); err != nil {
		t.Fatalf("upsert user: %v", err)
	}

	cwdStore := &Store{UserGlobalPath: filepath.Join(cwd, ".slashbot", "credentials.json")}
	cwdProfile := Profile{ProfileID: "p1", ProviderID: "anthropic", Method: MethodAPIKey, Label: "cwd"}
	if err := cwdStore.UpsertProfile("agent-1", cwdProfile); err != nil {
		t.Fatalf("upsert cwd: %v", err)
	}

	profiles, err := store.ListProfiles("agent-1", "anthropic")
	if err != nil {
		t.Fatalf("list profiles: %v", err)
	}
	if len(profiles) != 1 || profiles[0].Label != "user" {
		t.Fatalf("expected user-global profile to win, got %+v", profiles)
	}
}

func TestUpsertProfileReplacesExistingEntry(t *testing.T) {
	home := t.TempDir()
	store := NewStore(home, "", "", "")

	if err := store.UpsertProfile("agent-1", Profile{ProfileID: "p1", ProviderID: "anthropic", Method: MethodAPIKey, Label: "first"}); err != nil {
		t.Fatalf("upsert 1: %v", err)
	}
	if err := store.UpsertProfile("agent-1", Profile{ProfileID: "p1", ProviderID: "anthropic", Method: MethodAPIKey, Label: "second"}); err != nil {
		t.Fatalf("upsert 2: %v", err)
	}

	profiles, err := store.ListProfiles("agent-1", "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(profiles) != 1 || profiles[0].Label != "second" {
		t.Fatalf("expected replaced profile, got %+v", profiles)
	}
}
