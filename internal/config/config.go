// Package config persists the tool's settings between runs: API key, model
// choice, frame count, and the custom proxy root. The file is a small JSON
// document in the user's config directory; loading is tolerant because a
// missing or mangled config should never block a batch.
package config

import (
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
)

const defaultFrameCount = 5

type Config struct {
	// APIKey is kept in memory in the clear; on disk it is base64-wrapped.
	// That is obfuscation against shoulder-surfing a config file, not
	// security; the real keychain belongs to the host.
	APIKey     string
	ModelIndex int
	FrameCount int
	ProxyPath  string
}

// fileConfig is the on-disk shape.
type fileConfig struct {
	APIKey     string `json:"api_key,omitempty"`
	ModelIndex int    `json:"model_index"`
	FrameCount int    `json:"frame_count,omitempty"`
	ProxyPath  string `json:"proxy_path,omitempty"`
}

// DefaultPath returns the per-user config file location.
func DefaultPath() string {
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "Metafootage", "config.json")
		}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".metafootage", "config.json")
	}
	return filepath.Join(home, ".metafootage", "config.json")
}

// Load reads the config at path. Missing or corrupt files yield defaults.
func Load(path string) Config {
	cfg := Config{FrameCount: defaultFrameCount}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}
	var fc fileConfig
	if err := json.Unmarshal(data, &fc); err != nil {
		return cfg
	}

	if decoded, err := base64.StdEncoding.DecodeString(fc.APIKey); err == nil {
		cfg.APIKey = string(decoded)
	}
	cfg.ModelIndex = fc.ModelIndex
	if fc.FrameCount > 0 {
		cfg.FrameCount = fc.FrameCount
	}
	cfg.ProxyPath = fc.ProxyPath
	return cfg
}

// Save writes the config to path, creating parent directories as needed.
func Save(path string, cfg Config) error {
	fc := fileConfig{
		ModelIndex: cfg.ModelIndex,
		FrameCount: cfg.FrameCount,
		ProxyPath:  cfg.ProxyPath,
	}
	if cfg.APIKey != "" {
		fc.APIKey = base64.StdEncoding.EncodeToString([]byte(cfg.APIKey))
	}
	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
