// Package auth implements spec.md §4.6's multi-agent auth profile store
// and resolution router: the credential document shared across agents,
// its merge-order read path, and the per-(agent,provider) file lock that
// serializes token refresh.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Method enumerates the four ways a profile can authenticate to a provider.
type Method string

const (
	MethodOAuthPKCE          Method = "oauth_pkce"
	MethodAPIKey             Method = "api_key"
	MethodSetupToken         Method = "setup_token"
	MethodClaudeCodeImport   Method = "claude_code_import"
)

// preferredAuthOrder is the default method ranking used by the router's
// Resolve step 3 when a provider declares none of its own.
var preferredAuthOrder = []Method{MethodOAuthPKCE, MethodAPIKey, MethodSetupToken, MethodClaudeCodeImport}

// Profile is spec.md §3's AuthProfile. Unique by (ProviderID, ProfileID).
type Profile struct {
	ProfileID  string          `json:"profileId"`
	ProviderID string          `json:"providerId"`
	Label      string          `json:"label,omitempty"`
	Method     Method          `json:"method"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
	Data       json.RawMessage `json:"data,omitempty"`
}

func (p Profile) key() string { return p.ProviderID + "\x00" + p.ProfileID }

// agentDocument is one agent's profile list within the credential document.
type agentDocument struct {
	Profiles []Profile `json:"profiles"`
}

// document is the on-disk shape of credentials.json (spec.md §6).
type document struct {
	Version int                      `json:"version"`
	Agents  map[string]agentDocument `json:"agents"`
}

const documentVersion = 1

const credentialsFilename = "credentials.json"

// legacyProfiles is the read-only legacy per-agent file's shape.
type legacyProfiles struct {
	Profiles []Profile `json:"profiles"`
}

var (
	// ErrProfileNotFound is returned when a profile id has no credential.
	ErrProfileNotFound = errors.New("auth: profile not found")
)

// Store resolves the user-global, cwd, workspace, and legacy credential
// file paths used by ListProfiles's merge order.
type Store struct {
	UserGlobalPath string
	CWDPath        string
	WorkspacePath  string
	LegacyPath     string
}

// NewStore builds a Store rooted at the conventional paths: $HOME/.slashbot,
// optionally $CWD/.slashbot and a workspace dir, and the legacy per-agent
// file under $HOME/.slashbot/agents/<agentId>/agent/auth-profiles.json.
func NewStore(home, cwd, workspace, agentID string) *Store {
	s := &Store{
		UserGlobalPath: filepath.Join(home, ".slashbot", credentialsFilename),
	}
	if cwd != "" {
		s.CWDPath = filepath.Join(cwd, ".slashbot", credentialsFilename)
	}
	if workspace != "" {
		s.WorkspacePath = filepath.Join(workspace, ".slashbot", credentialsFilename)
	}
	if agentID != "" {
		s.LegacyPath = filepath.Join(home, ".slashbot", "agents", agentID, "agent", "auth-profiles.json")
	}
	return s
}

// ListProfiles merges profiles for agentID (optionally filtered to
// providerID) from user-global, cwd, workspace, and legacy sources in that
// order; the first occurrence of (providerId, profileId) wins.
func (s *Store) ListProfiles(agentID string, providerID string) ([]Profile, error) {
	seen := make(map[string]bool)
	var out []Profile

	add := func(profiles []Profile) {
		for _, p := range profiles {
			if providerID != "" && p.ProviderID != providerID {
				continue
			}
			if seen[p.key()] {
				continue
			}
			seen[p.key()] = true
			out = append(out, p)
		}
	}

	for _, path := range []string{s.UserGlobalPath, s.CWDPath, s.WorkspacePath} {
		if path == "" {
			continue
		}
		doc, err := readDocument(path)
		if err != nil {
			return nil, err
		}
		if doc == nil {
			continue
		}
		add(doc.Agents[agentID].Profiles)
	}

	if s.LegacyPath != "" {
		legacy, err := readLegacy(s.LegacyPath)
		if err != nil {
			return nil, err
		}
		if legacy != nil {
			add(legacy.Profiles)
		}
	}

	return out, nil
}

// UpsertProfile updates (or inserts) profile in the user-global document
// only, bumping UpdatedAt, and writes atomically via temp-file + rename.
func (s *Store) UpsertProfile(agentID string, profile Profile) error {
	doc, err := readDocument(s.UserGlobalPath)
	if err != nil {
		return err
	}
	if doc == nil {
		doc = &document{Version: documentVersion, Agents: make(map[string]agentDocument)}
	}
	if doc.Agents == nil {
		doc.Agents = make(map[string]agentDocument)
	}

	agentDoc := doc.Agents[agentID]
	now := time.Now()
	profile.UpdatedAt = now
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}

	replaced := false
	for i, existing := range agentDoc.Profiles {
		if existing.key() == profile.key() {
			agentDoc.Profiles[i] = profile
			replaced = true
			break
		}
	}
	if !replaced {
		agentDoc.Profiles = append(agentDoc.Profiles, profile)
	}
	doc.Agents[agentID] = agentDoc

	return writeDocumentAtomic(s.UserGlobalPath, doc)
}

func readDocument(path string) (*document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read credential document %s: %w", path, err)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode credential document %s: %w", path, err)
	}
	return &doc, nil
}

func readLegacy(path string) (*legacyProfiles, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read legacy profiles %s: %w", path, err)
	}
	var legacy legacyProfiles
	if err := json.Unmarshal(data, &legacy); err != nil {
		return nil, fmt.Errorf("decode legacy profiles %s: %w", path, err)
	}
	return &legacy, nil
}

func writeDocumentAtomic(path string, doc *document) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create credentials dir: %w", err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credential document: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".credentials-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp credentials file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp credentials file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename credentials file: %w", err)
	}
	return nil
}
