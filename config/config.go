package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

const (
	// AppDirectoryName is the per-user application data directory name.
	AppDirectoryName = "waveline"
	// DefaultBackendBaseURL is the REST endpoint used when no override exists.
	DefaultBackendBaseURL = "http://localhost:8080/api"
	// DefaultSocketURL is the realtime endpoint used when no override exists.
	DefaultSocketURL = "ws://localhost:8080/ws"
	// configFileName is the persisted configuration file.
	configFileName = "config.json"
)

// AppConfig contains persistent local client settings.
type AppConfig struct {
	ProfileID      string `json:"profile_id"`
	DeviceID       string `json:"device_id"`
	DisplayName    string `json:"display_name"`
	BackendBaseURL string `json:"backend_base_url"`
	SocketURL      string `json:"socket_url"`
	AuthToken      string `json:"auth_token,omitempty"`
}

// ResolveDataDir returns the OS-aware app data directory.
//
// If WAVELINE_DATA_DIR is set, its value is used as an explicit override.
func ResolveDataDir() (string, error) {
	if override := os.Getenv("WAVELINE_DATA_DIR"); override != "" {
		return override, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve user home: %w", err)
	}

	switch runtime.GOOS {
	case "windows":
		base := os.Getenv("APPDATA")
		if base == "" {
			base = filepath.Join(home, "AppData", "Roaming")
		}
		return filepath.Join(base, AppDirectoryName), nil
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", AppDirectoryName), nil
	default:
		base := os.Getenv("XDG_CONFIG_HOME")
		if base == "" {
			base = filepath.Join(home, ".config")
		}
		return filepath.Join(base, AppDirectoryName), nil
	}
}

// ConfigPath returns the full path to config.json for a data directory.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, configFileName)
}

// EnsureDataDirectories creates the app data directory layout if needed.
func EnsureDataDirectories(dataDir string) error {
	dirs := []string{
		dataDir,
		filepath.Join(dataDir, "downloads"),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}

	return nil
}

// Load reads and unmarshals config.json from disk.
func Load(path string) (*AppConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg AppConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

// Save marshals and writes config.json to disk.
func Save(path string, cfg *AppConfig) error {
	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	raw = append(raw, '\n')
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// LoadOrCreate ensures directories and config exist, then returns both.
//
// A .env file in the working directory is loaded first, so development
// overrides reach the environment before they are read.
func LoadOrCreate() (*AppConfig, string, error) {
	_ = godotenv.Load()

	dataDir, err := ResolveDataDir()
	if err != nil {
		return nil, "", err
	}
	if err := EnsureDataDirectories(dataDir); err != nil {
		return nil, "", err
	}

	cfgPath := ConfigPath(dataDir)
	cfg, err := Load(cfgPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, "", err
		}
		cfg = &AppConfig{}
	}

	if normalizeDefaults(cfg) {
		if err := Save(cfgPath, cfg); err != nil {
			return nil, "", err
		}
	}

	applyEnvOverrides(cfg)
	return cfg, cfgPath, nil
}

func normalizeDefaults(cfg *AppConfig) bool {
	updated := false

	if cfg.DeviceID == "" {
		cfg.DeviceID = uuid.NewString()
		updated = true
	}

	if cfg.DisplayName == "" {
		displayName := "Waveline User"
		if host, err := os.Hostname(); err == nil && host != "" {
			displayName = host
		}
		cfg.DisplayName = displayName
		updated = true
	}

	if cfg.BackendBaseURL == "" {
		cfg.BackendBaseURL = DefaultBackendBaseURL
		updated = true
	}

	if cfg.SocketURL == "" {
		cfg.SocketURL = DefaultSocketURL
		updated = true
	}

	return updated
}

// applyEnvOverrides layers environment values over the persisted file
// without writing them back, so transient overrides stay transient.
func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv("WAVELINE_PROFILE_ID")); v != "" {
		cfg.ProfileID = v
	}
	if v := strings.TrimSpace(os.Getenv("WAVELINE_BACKEND_URL")); v != "" {
		cfg.BackendBaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("WAVELINE_SOCKET_URL")); v != "" {
		cfg.SocketURL = v
	}
	if v := strings.TrimSpace(os.Getenv("WAVELINE_AUTH_TOKEN")); v != "" {
		cfg.AuthToken = v
	}
}
