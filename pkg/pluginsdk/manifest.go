package pluginsdk

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

const (
	ManifestFilename       = "slashbot.plugin.json"
	LegacyManifestFilename = "nexus.plugin.json"
)

// Manifest describes a plugin: its identity, declared dependencies, and
// optional configuration schema (spec.md §3 "PluginManifest"). It is
// immutable for a process lifetime once discovered.
type Manifest struct {
	ID           string          `json:"id"`
	Name         string          `json:"name,omitempty"`
	Version      string          `json:"version,omitempty"`
	Main         string          `json:"main,omitempty"`
	Description  string          `json:"description,omitempty"`
	Dependencies []string        `json:"dependencies,omitempty"`
	Priority     int             `json:"priority,omitempty"`
	ConfigSchema json.RawMessage `json:"configSchema,omitempty"`
	Metadata     map[string]any  `json:"metadata,omitempty"`
}

// DecodeManifest parses a manifest document.
func DecodeManifest(data []byte) (*Manifest, error) {
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &manifest, nil
}

// DecodeManifestFile reads and parses a manifest from disk.
func DecodeManifestFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return DecodeManifest(data)
}

// Validate checks the manifest satisfies spec.md §3's required fields.
func (m *Manifest) Validate() error {
	if m == nil {
		return fmt.Errorf("manifest is nil")
	}
	if strings.TrimSpace(m.ID) == "" {
		return fmt.Errorf("manifest id is required")
	}
	return nil
}
