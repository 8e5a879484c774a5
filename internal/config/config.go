// Package config loads and validates swiftscip's configuration: the
// derived-data root, project root, output path, state-directory name,
// operation defaults, branch-cache retention window, and logging settings.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/viper"
)

// EnvOverride records an environment variable override that was applied.
type EnvOverride struct {
	EnvVar    string
	Path      string
	Value     interface{}
	FromValue string
}

// LoadResult contains the loaded config plus metadata about how it was loaded.
type LoadResult struct {
	Config       *Config
	ConfigPath   string
	EnvOverrides []EnvOverride
	UsedDefaults bool
}

// Config represents swiftscip's complete configuration (schema v1).
type Config struct {
	Version int `json:"version" mapstructure:"version"`

	// ProjectRoot is the Swift project or package root to index.
	ProjectRoot string `json:"projectRoot" mapstructure:"projectRoot"`
	// DerivedDataRoot is the Xcode/SwiftPM derived-data directory containing
	// the compiler's index store.
	DerivedDataRoot string `json:"derivedDataRoot" mapstructure:"derivedDataRoot"`
	// OutputPath is where the generated index is written (.db, or legacy .json).
	OutputPath string `json:"outputPath" mapstructure:"outputPath"`
	// StateDirName is the per-project directory holding branch caches and
	// state, e.g. ".swiftscip".
	StateDirName string `json:"stateDirName" mapstructure:"stateDirName"`

	Defaults    OperationDefaults `json:"defaults" mapstructure:"defaults"`
	BranchCache BranchCacheConfig `json:"branchCache" mapstructure:"branchCache"`
	Logging     LoggingConfig     `json:"logging" mapstructure:"logging"`
}

// OperationDefaults holds the default flag values for the index operation
// when not overridden on the command line.
type OperationDefaults struct {
	Incremental     bool `json:"incremental" mapstructure:"incremental"`
	Force           bool `json:"force" mapstructure:"force"`
	IncludeSnippets bool `json:"includeSnippets" mapstructure:"includeSnippets"`
	JSON            bool `json:"json" mapstructure:"json"`
}

// BranchCacheConfig controls branch-cache retention and compaction.
type BranchCacheConfig struct {
	// RetentionHours is how long a branch cache may go unused before the
	// index run's stale-branch sweep archives it with zstd. Zero disables
	// the sweep.
	RetentionHours int `json:"retentionHours" mapstructure:"retentionHours"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Format string `json:"format" mapstructure:"format"`
	Level  string `json:"level" mapstructure:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Version:         1,
		ProjectRoot:     ".",
		DerivedDataRoot: "",
		OutputPath:      "index.db",
		StateDirName:    ".swiftscip",
		Defaults: OperationDefaults{
			Incremental:     true,
			Force:           false,
			IncludeSnippets: false,
			JSON:            false,
		},
		BranchCache: BranchCacheConfig{
			RetentionHours: 720, // 30 days
		},
		Logging: LoggingConfig{
			Format: "human",
			Level:  "info",
		},
	}
}

// LoadConfig loads configuration from <projectRoot>/.swift-scip/config.json.
// For more detailed loading info (env overrides, config path), use
// LoadConfigWithDetails.
func LoadConfig(projectRoot string) (*Config, error) {
	result, err := LoadConfigWithDetails(projectRoot)
	if err != nil {
		return nil, err
	}
	return result.Config, nil
}

// LoadConfigWithDetails loads configuration and returns detailed info about
// how it was loaded.
func LoadConfigWithDetails(projectRoot string) (*LoadResult, error) {
	result := &LoadResult{}

	if configPath := os.Getenv("SWIFTSCIP_CONFIG_PATH"); configPath != "" {
		cfg, err := loadConfigFromPath(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from SWIFTSCIP_CONFIG_PATH=%s: %w", configPath, err)
		}
		result.Config = cfg
		result.ConfigPath = configPath
	} else {
		v := viper.New()
		v.SetDefault("version", 1)
		v.SetDefault("projectRoot", ".")

		v.SetConfigName("config")
		v.SetConfigType("json")
		v.AddConfigPath(filepath.Join(projectRoot, ".swift-scip"))

		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				result.Config = DefaultConfig()
				result.UsedDefaults = true
			} else {
				return nil, err
			}
		} else {
			cfg := DefaultConfig()
			if err := v.Unmarshal(cfg); err != nil {
				return nil, err
			}
			result.Config = cfg
			result.ConfigPath = v.ConfigFileUsed()
		}
	}

	result.EnvOverrides = applyEnvOverrides(result.Config)
	return result, nil
}

func loadConfigFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid JSON in config file: %w", err)
	}
	return cfg, nil
}

type envVarDef struct {
	path    string
	varType string // "string", "int", "bool"
}

var envVarMappings = map[string]envVarDef{
	"SWIFTSCIP_LOG_LEVEL":  {path: "logging.level", varType: "string"},
	"SWIFTSCIP_LOG_FORMAT": {path: "logging.format", varType: "string"},

	"SWIFTSCIP_PROJECT_ROOT":      {path: "projectRoot", varType: "string"},
	"SWIFTSCIP_DERIVED_DATA_ROOT": {path: "derivedDataRoot", varType: "string"},
	"SWIFTSCIP_OUTPUT_PATH":       {path: "outputPath", varType: "string"},
	"SWIFTSCIP_STATE_DIR":         {path: "stateDirName", varType: "string"},

	"SWIFTSCIP_INCREMENTAL":      {path: "defaults.incremental", varType: "bool"},
	"SWIFTSCIP_FORCE":            {path: "defaults.force", varType: "bool"},
	"SWIFTSCIP_INCLUDE_SNIPPETS": {path: "defaults.includeSnippets", varType: "bool"},
	"SWIFTSCIP_JSON":             {path: "defaults.json", varType: "bool"},

	"SWIFTSCIP_BRANCH_CACHE_RETENTION_HOURS": {path: "branchCache.retentionHours", varType: "int"},
}

func applyEnvOverrides(cfg *Config) []EnvOverride {
	var overrides []EnvOverride

	for envVar, def := range envVarMappings {
		value := os.Getenv(envVar)
		if value == "" {
			continue
		}

		var parsedValue interface{}
		var err error

		switch def.varType {
		case "string":
			parsedValue = value
		case "int":
			parsedValue, err = strconv.Atoi(value)
			if err != nil {
				continue
			}
		case "bool":
			parsedValue, err = strconv.ParseBool(value)
			if err != nil {
				continue
			}
		}

		if applyOverride(cfg, def.path, parsedValue) {
			overrides = append(overrides, EnvOverride{
				EnvVar:    envVar,
				Path:      def.path,
				Value:     parsedValue,
				FromValue: value,
			})
		}
	}

	return overrides
}

func applyOverride(cfg *Config, path string, value interface{}) bool {
	switch path {
	case "projectRoot":
		if v, ok := value.(string); ok {
			cfg.ProjectRoot = v
			return true
		}
	case "derivedDataRoot":
		if v, ok := value.(string); ok {
			cfg.DerivedDataRoot = v
			return true
		}
	case "outputPath":
		if v, ok := value.(string); ok {
			cfg.OutputPath = v
			return true
		}
	case "stateDirName":
		if v, ok := value.(string); ok {
			cfg.StateDirName = v
			return true
		}
	case "logging.level":
		if v, ok := value.(string); ok {
			cfg.Logging.Level = v
			return true
		}
	case "logging.format":
		if v, ok := value.(string); ok {
			cfg.Logging.Format = v
			return true
		}
	case "defaults.incremental":
		if v, ok := value.(bool); ok {
			cfg.Defaults.Incremental = v
			return true
		}
	case "defaults.force":
		if v, ok := value.(bool); ok {
			cfg.Defaults.Force = v
			return true
		}
	case "defaults.includeSnippets":
		if v, ok := value.(bool); ok {
			cfg.Defaults.IncludeSnippets = v
			return true
		}
	case "defaults.json":
		if v, ok := value.(bool); ok {
			cfg.Defaults.JSON = v
			return true
		}
	case "branchCache.retentionHours":
		if v, ok := value.(int); ok {
			cfg.BranchCache.RetentionHours = v
			return true
		}
	}
	return false
}

// GetSupportedEnvVars returns a list of all supported environment variables.
func GetSupportedEnvVars() []string {
	vars := make([]string, 0, len(envVarMappings))
	for v := range envVarMappings {
		vars = append(vars, v)
	}
	return vars
}

// Save writes the configuration to <projectRoot>/.swift-scip/config.json.
func (c *Config) Save(projectRoot string) error {
	dir := filepath.Join(projectRoot, ".swift-scip")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0o644)
}

// SupportedConfigVersions lists config schema versions this code can handle.
var SupportedConfigVersions = []int{1}

// Validate checks whether the configuration is valid.
func (c *Config) Validate() error {
	supported := false
	for _, v := range SupportedConfigVersions {
		if c.Version == v {
			supported = true
			break
		}
	}
	if !supported {
		return &ConfigError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported config version %d, supported versions: %v", c.Version, SupportedConfigVersions),
		}
	}

	if c.ProjectRoot == "" {
		return &ConfigError{Field: "projectRoot", Message: "must not be empty"}
	}
	if c.OutputPath == "" {
		return &ConfigError{Field: "outputPath", Message: "must not be empty"}
	}
	if c.StateDirName == "" {
		return &ConfigError{Field: "stateDirName", Message: "must not be empty"}
	}
	if c.BranchCache.RetentionHours < 0 {
		return &ConfigError{Field: "branchCache.retentionHours", Message: "must not be negative"}
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return &ConfigError{Field: "logging.level", Message: fmt.Sprintf("unsupported log level %q", c.Logging.Level)}
	}
	switch c.Logging.Format {
	case "human", "json":
	default:
		return &ConfigError{Field: "logging.format", Message: fmt.Sprintf("unsupported log format %q", c.Logging.Format)}
	}

	return nil
}

// ConfigError represents a configuration error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
