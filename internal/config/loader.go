package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader provides configuration loading capabilities.
type Loader interface {
	// Load loads configuration from file and environment variables.
	// Priority: defaults → config file → environment variables (env wins)
	Load() (*Config, error)
}

type loader struct {
	rootDir    string
	configFile string
}

// NewLoader creates a new configuration loader for the given root directory.
func NewLoader(rootDir string) Loader {
	return &loader{
		rootDir: rootDir,
	}
}

// NewLoaderWithFile creates a loader that reads configFile instead of
// searching the project state directory. A missing explicit file is an error.
func NewLoaderWithFile(rootDir, configFile string) Loader {
	return &loader{
		rootDir:    rootDir,
		configFile: configFile,
	}
}

// Load loads configuration with the following priority (highest to lowest):
// 1. Environment variables (REPOMAP_*)
// 2. Config file (.repomap/config.yml or .repomap/config.yaml)
// 3. Default values
func (l *loader) Load() (*Config, error) {
	v := viper.New()

	if l.configFile != "" {
		v.SetConfigFile(l.configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(filepath.Join(l.rootDir, DefaultDir))
	}

	// Enable environment variable overrides
	v.SetEnvPrefix("REPOMAP")
	v.AutomaticEnv()
	// Replace . with _ in env var names (e.g., REPOMAP_WATCHDOG_DEADLINE)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// AutomaticEnv only consults keys viper already knows about, and
	// Unmarshal only walks keys with defaults, so every key gets a default.
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is acceptable - we'll use defaults + env vars
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || l.configFile != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setDefaults configures viper with default values.
func setDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("paths.code", defaults.Paths.Code)
	v.SetDefault("paths.ignore", defaults.Paths.Ignore)

	v.SetDefault("index.dir", defaults.Index.Dir)
	v.SetDefault("index.workers", defaults.Index.Workers)

	v.SetDefault("staleness.sample_size", defaults.Staleness.SampleSize)
	v.SetDefault("staleness.interval", defaults.Staleness.Interval)

	v.SetDefault("supervisor.memory_limit_bytes", defaults.Supervisor.MemoryLimitBytes)
	v.SetDefault("supervisor.cpu_limit", defaults.Supervisor.CPULimit)

	v.SetDefault("watchdog.interval", defaults.Watchdog.Interval)
	v.SetDefault("watchdog.deadline", defaults.Watchdog.Deadline)
	v.SetDefault("watchdog.kill_grace", defaults.Watchdog.KillGrace)

	v.SetDefault("query.wait_timeout", defaults.Query.WaitTimeout)
	v.SetDefault("query.poll_interval", defaults.Query.PollInterval)
	v.SetDefault("query.search_limit", defaults.Query.SearchLimit)
	v.SetDefault("query.list_limit", defaults.Query.ListLimit)
	v.SetDefault("query.content_window", defaults.Query.ContentWindow)

	v.SetDefault("watch.enabled", defaults.Watch.Enabled)
	v.SetDefault("watch.debounce", defaults.Watch.Debounce)

	v.SetDefault("analysis.similar_name_threshold", defaults.Analysis.SimilarNameThreshold)
	v.SetDefault("analysis.similar_doc_threshold", defaults.Analysis.SimilarDocThreshold)
}

// LoadConfig is a convenience function that creates a loader and loads config.
// It uses the current working directory as the root.
func LoadConfig() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	return NewLoader(wd).Load()
}

// LoadConfigFromDir loads configuration from a specific directory.
func LoadConfigFromDir(rootDir string) (*Config, error) {
	return NewLoader(rootDir).Load()
}
