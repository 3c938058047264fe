package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ConfigDirName is the directory name searched under $HOME, $CWD, and the
// workspace root for config.json.
const ConfigDirName = ".slashbot"

// ConfigFilename is the config file name within ConfigDirName.
const ConfigFilename = "config.json"

// Layer identifies where a config.json came from, for diagnostics.
type Layer string

const (
	LayerUser      Layer = "user"
	LayerCWD       Layer = "cwd"
	LayerWorkspace Layer = "workspace"
)

// Load reads and deep-merges config.json from the user, cwd, and workspace
// layers in that order (spec.md §6), applies defaults, and validates the
// result against the RuntimeConfig schema.
func Load(home, cwd, workspace string) (*Config, error) {
	merged := map[string]any{}
	for _, layer := range []struct {
		l    Layer
		path string
	}{
		{LayerUser, filepath.Join(home, ConfigDirName, ConfigFilename)},
		{LayerCWD, filepath.Join(cwd, ConfigDirName, ConfigFilename)},
		{LayerWorkspace, filepath.Join(workspace, ConfigDirName, ConfigFilename)},
	} {
		raw, err := readLayer(layer.path)
		if err != nil {
			return nil, fmt.Errorf("config layer %s (%s): %w", layer.l, layer.path, err)
		}
		if raw == nil {
			continue
		}
		merged = mergeConfigMaps(merged, raw)
	}

	payload, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("re-encode merged config: %w", err)
	}

	var cfg Config
	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse merged config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validateAgainstSchema(payload); err != nil {
		return nil, err
	}
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readLayer(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// mergeConfigMaps deep-merges src into dst. Nested objects merge
// recursively; arrays override except plugins.paths, which union-dedups
// across layers (spec.md §6, §8).
func mergeConfigMaps(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = map[string]any{}
	}
	for key, value := range src {
		if key == "plugins" {
			dst[key] = mergePlugins(dst[key], value)
			continue
		}
		if valueMap, ok := value.(map[string]any); ok {
			if existing, ok := dst[key].(map[string]any); ok {
				dst[key] = mergeConfigMaps(existing, valueMap)
				continue
			}
		}
		dst[key] = value
	}
	return dst
}

func mergePlugins(dstVal, srcVal any) any {
	srcMap, ok := srcVal.(map[string]any)
	if !ok {
		return srcVal
	}
	dstMap, _ := dstVal.(map[string]any)

	merged := map[string]any{}
	for k, v := range dstMap {
		merged[k] = v
	}
	for k, v := range srcMap {
		if k == "paths" {
			merged["paths"] = unionDedupPaths(dstMap["paths"], v)
			continue
		}
		merged[k] = v
	}
	return merged
}

func unionDedupPaths(dstVal, srcVal any) []any {
	seen := map[string]bool{}
	var result []any
	appendPath := func(v any) {
		s, ok := v.(string)
		if !ok || seen[s] {
			return
		}
		seen[s] = true
		result = append(result, v)
	}
	if arr, ok := dstVal.([]any); ok {
		for _, v := range arr {
			appendPath(v)
		}
	}
	if arr, ok := srcVal.([]any); ok {
		for _, v := range arr {
			appendPath(v)
		}
	}
	return result
}
