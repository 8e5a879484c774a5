package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Version != 1 {
		t.Errorf("Version = %d, want 1", cfg.Version)
	}
	if cfg.StateDirName != ".swiftscip" {
		t.Errorf("StateDirName = %q, want %q", cfg.StateDirName, ".swiftscip")
	}
	if cfg.OutputPath != "index.db" {
		t.Errorf("OutputPath = %q, want %q", cfg.OutputPath, "index.db")
	}
	if !cfg.Defaults.Incremental {
		t.Error("Defaults.Incremental should be true by default")
	}
	if cfg.Defaults.Force {
		t.Error("Defaults.Force should be false by default")
	}
	if cfg.BranchCache.RetentionHours <= 0 {
		t.Error("BranchCache.RetentionHours should be positive")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}
	if cfg.Logging.Format != "human" {
		t.Errorf("Logging.Format = %q, want %q", cfg.Logging.Format, "human")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults are valid", func(c *Config) {}, false},
		{"unsupported version", func(c *Config) { c.Version = 99 }, true},
		{"empty project root", func(c *Config) { c.ProjectRoot = "" }, true},
		{"empty output path", func(c *Config) { c.OutputPath = "" }, true},
		{"empty state dir", func(c *Config) { c.StateDirName = "" }, true},
		{"negative retention", func(c *Config) { c.BranchCache.RetentionHours = -1 }, true},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, true},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("Validate() should return an error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Validate() returned unexpected error: %v", err)
			}
			if err != nil {
				if _, ok := err.(*ConfigError); !ok {
					t.Errorf("Validate() error type = %T, want *ConfigError", err)
				}
			}
		})
	}
}

func TestConfigError_Error(t *testing.T) {
	err := &ConfigError{
		Field:   "version",
		Message: "unsupported version 99",
	}

	got := err.Error()
	want := "config error in field 'version': unsupported version 99"

	if got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestLoadConfig_Default(t *testing.T) {
	tmpDir := t.TempDir()

	cfg, err := LoadConfig(tmpDir)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Version != 1 {
		t.Errorf("Version = %d, want 1 (default)", cfg.Version)
	}
	if cfg.OutputPath != "index.db" {
		t.Errorf("OutputPath = %q, want default", cfg.OutputPath)
	}
}

func TestLoadConfig_FromFile(t *testing.T) {
	tmpDir := t.TempDir()
	stateDir := filepath.Join(tmpDir, ".swift-scip")
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		t.Fatalf("failed to create state dir: %v", err)
	}

	configContent := `{
		"version": 1,
		"projectRoot": ".",
		"outputPath": "custom/out.db",
		"stateDirName": ".swiftscip",
		"defaults": {"incremental": false, "force": true},
		"branchCache": {"retentionHours": 48},
		"logging": {"format": "json", "level": "debug"}
	}`

	configPath := filepath.Join(stateDir, "config.json")
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadConfig(tmpDir)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.OutputPath != "custom/out.db" {
		t.Errorf("OutputPath = %q, want %q", cfg.OutputPath, "custom/out.db")
	}
	if cfg.Defaults.Incremental {
		t.Error("Defaults.Incremental should be false per config")
	}
	if !cfg.Defaults.Force {
		t.Error("Defaults.Force should be true per config")
	}
	if cfg.BranchCache.RetentionHours != 48 {
		t.Errorf("BranchCache.RetentionHours = %d, want 48", cfg.BranchCache.RetentionHours)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
}

func TestConfig_Save(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := DefaultConfig()
	cfg.BranchCache.RetentionHours = 42

	if err := cfg.Save(tmpDir); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	configPath := filepath.Join(tmpDir, ".swift-scip", "config.json")
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Error("config file was not created")
	}

	loaded, err := LoadConfig(tmpDir)
	if err != nil {
		t.Fatalf("LoadConfig() after save error = %v", err)
	}
	if loaded.BranchCache.RetentionHours != 42 {
		t.Errorf("loaded BranchCache.RetentionHours = %d, want 42", loaded.BranchCache.RetentionHours)
	}
}

func TestSupportedConfigVersions(t *testing.T) {
	if len(SupportedConfigVersions) == 0 {
		t.Error("SupportedConfigVersions should not be empty")
	}
	has1 := false
	for _, v := range SupportedConfigVersions {
		if v == 1 {
			has1 = true
		}
	}
	if !has1 {
		t.Error("SupportedConfigVersions should include 1")
	}
}

func TestGetSupportedEnvVars(t *testing.T) {
	vars := GetSupportedEnvVars()
	if len(vars) == 0 {
		t.Error("GetSupportedEnvVars() should not be empty")
	}
	found := false
	for _, v := range vars {
		if v == "SWIFTSCIP_LOG_LEVEL" {
			found = true
		}
	}
	if !found {
		t.Error("GetSupportedEnvVars() should include SWIFTSCIP_LOG_LEVEL")
	}
}

func TestLoadConfigWithDetails_EnvOverride(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("SWIFTSCIP_LOG_LEVEL", "debug")

	result, err := LoadConfigWithDetails(tmpDir)
	if err != nil {
		t.Fatalf("LoadConfigWithDetails() error = %v", err)
	}
	if result.Config.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", result.Config.Logging.Level, "debug")
	}
	found := false
	for _, o := range result.EnvOverrides {
		if o.EnvVar == "SWIFTSCIP_LOG_LEVEL" {
			found = true
		}
	}
	if !found {
		t.Error("EnvOverrides should record the SWIFTSCIP_LOG_LEVEL override")
	}
}
