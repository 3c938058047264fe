package auth

import "testing"

func newRouterWithProfiles(t *testing.T, profiles ...Profile) *Router {
	t.Helper()
	home := t.TempDir()
	store := NewStore(home, "", "", "")
	for _, p := range profiles {
		if err := store.UpsertProfile("agent-1", p); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	return NewRouter(store, "anthropic", "claude-sonnet-4-20250514")
}

func TestResolveErrorsWithoutProvider(t *testing.T) {
	r := newRouterWithProfiles(t)
	r.activeProvider = ""
	_, err := r.Resolve(ResolveRequest{AgentID: "agent-1"})
	if err != ErrNoProviderConfigured {
		t.Fatalf("expected ErrNoProviderConfigured, got %v", err)
	}
}

func TestResolvePopulatesActiveModelID(t *testing.T) {
	r := newRouterWithProfiles(t, Profile{ProfileID: "key", ProviderID: "anthropic", Method: MethodAPIKey})

	resolved, err := r.Resolve(ResolveRequest{AgentID: "agent-1"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.ModelID != "claude-sonnet-4-20250514" {
		t.Fatalf("expected active model id to be threaded through, got %q", resolved.ModelID)
	}
}

func TestResolveLeavesModelIDEmptyForPinnedNonActiveProvider(t *testing.T) {
	home := t.TempDir()
	store := NewStore(home, "", "", "")
	if err := store.UpsertProfile("agent-1", Profile{ProfileID: "key", ProviderID: "openai", Method: MethodAPIKey}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	r := NewRouter(store, "anthropic", "claude-sonnet-4-20250514")

	resolved, err := r.Resolve(ResolveRequest{AgentID: "agent-1", PinnedProviderID: "openai"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.ModelID != "" {
		t.Fatalf("expected empty model id for a provider other than the configured active one, got %q", resolved.ModelID)
	}
}

func TestResolveOrdersByPreferredAuthMethod(t *testing.T) {
	r := newRouterWithProfiles(t,
		Profile{ProfileID: "token", ProviderID: "anthropic", Method: MethodSetupToken},
		Profile{ProfileID: "oauth", ProviderID: "anthropic", Method: MethodOAuthPKCE},
	)

	resolved, err := r.Resolve(ResolveRequest{AgentID: "agent-1"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Profile.ProfileID != "oauth" {
		t.Fatalf("expected oauth_pkce profile preferred, got %s", resolved.Profile.ProfileID)
	}
}

func TestReportFailureRotatesToNextProfile(t *testing.T) {
	r := newRouterWithProfiles(t,
		Profile{ProfileID: "oauth", ProviderID: "anthropic", Method: MethodOAuthPKCE},
		Profile{ProfileID: "key", ProviderID: "anthropic", Method: MethodAPIKey},
	)

	first, err := r.Resolve(ResolveRequest{AgentID: "agent-1", SessionID: "s1"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if first.Profile.ProfileID != "oauth" {
		t.Fatalf("expected oauth first, got %s", first.Profile.ProfileID)
	}

	r.ReportFailure("s1", "anthropic", "oauth")

	second, err := r.Resolve(ResolveRequest{AgentID: "agent-1", SessionID: "s1"})
	if err != nil {
		t.Fatalf("resolve after failure: %v", err)
	}
	if second.Profile.ProfileID != "key" {
		t.Fatalf("expected rotation to key profile, got %s", second.Profile.ProfileID)
	}

	third, err := r.Resolve(ResolveRequest{AgentID: "agent-1", SessionID: "s2"})
	if err != nil {
		t.Fatalf("resolve new session: %v", err)
	}
	if third.Profile.ProfileID != "oauth" {
		t.Fatalf("expected failure marks scoped to session s1 only, got %s", third.Profile.ProfileID)
	}
}

func TestReportFailureExhaustsAllProfiles(t *testing.T) {
	r := newRouterWithProfiles(t, Profile{ProfileID: "only", ProviderID: "anthropic", Method: MethodAPIKey})
	r.ReportFailure("s1", "anthropic", "only")

	_, err := r.Resolve(ResolveRequest{AgentID: "agent-1", SessionID: "s1"})
	if err != ErrNoProfileAvailable {
		t.Fatalf("expected ErrNoProfileAvailable, got %v", err)
	}
}
