package config

import (
	"path/filepath"
	"testing"
)

func TestLoadOrCreateCreatesAndReloadsConfig(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("WAVELINE_DATA_DIR", tempDir)

	firstCfg, firstPath, err := LoadOrCreate()
	if err != nil {
		t.Fatalf("first LoadOrCreate failed: %v", err)
	}
	if firstCfg.DeviceID == "" {
		t.Fatalf("expected non-empty device ID")
	}
	if firstCfg.BackendBaseURL != DefaultBackendBaseURL {
		t.Fatalf("expected default backend URL %q, got %q", DefaultBackendBaseURL, firstCfg.BackendBaseURL)
	}
	if firstCfg.SocketURL != DefaultSocketURL {
		t.Fatalf("expected default socket URL %q, got %q", DefaultSocketURL, firstCfg.SocketURL)
	}

	expectedConfigPath := filepath.Join(tempDir, "config.json")
	if firstPath != expectedConfigPath {
		t.Fatalf("expected config path %q, got %q", expectedConfigPath, firstPath)
	}

	secondCfg, secondPath, err := LoadOrCreate()
	if err != nil {
		t.Fatalf("second LoadOrCreate failed: %v", err)
	}

	if secondPath != firstPath {
		t.Fatalf("expected config path to be stable, got %q then %q", firstPath, secondPath)
	}
	if secondCfg.DeviceID != firstCfg.DeviceID {
		t.Fatalf("expected stable device ID, got %q then %q", firstCfg.DeviceID, secondCfg.DeviceID)
	}
	if secondCfg.DisplayName != firstCfg.DisplayName {
		t.Fatalf("expected stable display name, got %q then %q", firstCfg.DisplayName, secondCfg.DisplayName)
	}
}

func TestLoadOrCreateFillsMissingEndpoints(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("WAVELINE_DATA_DIR", tempDir)

	cfgPath := filepath.Join(tempDir, "config.json")
	if err := EnsureDataDirectories(tempDir); err != nil {
		t.Fatalf("EnsureDataDirectories failed: %v", err)
	}

	partial := &AppConfig{
		ProfileID:   "profile-1",
		DeviceID:    "device-1",
		DisplayName: "Existing",
	}
	if err := Save(cfgPath, partial); err != nil {
		t.Fatalf("Save partial config failed: %v", err)
	}

	cfg, _, err := LoadOrCreate()
	if err != nil {
		t.Fatalf("LoadOrCreate failed: %v", err)
	}
	if cfg.DeviceID != "device-1" {
		t.Fatalf("expected existing device ID to be retained, got %q", cfg.DeviceID)
	}
	if cfg.BackendBaseURL != DefaultBackendBaseURL || cfg.SocketURL != DefaultSocketURL {
		t.Fatalf("expected missing endpoints to be filled, got %q / %q", cfg.BackendBaseURL, cfg.SocketURL)
	}
}

func TestEnvironmentOverridesAreTransient(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("WAVELINE_DATA_DIR", tempDir)
	t.Setenv("WAVELINE_BACKEND_URL", "https://staging.example/api")
	t.Setenv("WAVELINE_SOCKET_URL", "wss://staging.example/ws")
	t.Setenv("WAVELINE_PROFILE_ID", "env-profile")

	cfg, cfgPath, err := LoadOrCreate()
	if err != nil {
		t.Fatalf("LoadOrCreate failed: %v", err)
	}
	if cfg.BackendBaseURL != "https://staging.example/api" {
		t.Fatalf("expected env backend URL, got %q", cfg.BackendBaseURL)
	}
	if cfg.SocketURL != "wss://staging.example/ws" {
		t.Fatalf("expected env socket URL, got %q", cfg.SocketURL)
	}
	if cfg.ProfileID != "env-profile" {
		t.Fatalf("expected env profile ID, got %q", cfg.ProfileID)
	}

	persisted, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load persisted config failed: %v", err)
	}
	if persisted.BackendBaseURL != DefaultBackendBaseURL {
		t.Fatalf("env override must not be written back, file has %q", persisted.BackendBaseURL)
	}
	if persisted.ProfileID != "" {
		t.Fatalf("env profile ID must not be written back, file has %q", persisted.ProfileID)
	}
}
