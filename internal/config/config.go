package config

import (
	"runtime"
	"time"
)

// DefaultDir is the per-project state directory, relative to the project root.
const DefaultDir = ".repomap"

// Config represents the complete repo-map configuration.
// It can be loaded from .repomap/config.yml with environment variable overrides.
type Config struct {
	Paths      PathsConfig      `yaml:"paths" mapstructure:"paths"`
	Index      IndexConfig      `yaml:"index" mapstructure:"index"`
	Staleness  StalenessConfig  `yaml:"staleness" mapstructure:"staleness"`
	Supervisor SupervisorConfig `yaml:"supervisor" mapstructure:"supervisor"`
	Watchdog   WatchdogConfig   `yaml:"watchdog" mapstructure:"watchdog"`
	Query      QueryConfig      `yaml:"query" mapstructure:"query"`
	Watch      WatchConfig      `yaml:"watch" mapstructure:"watch"`
	Analysis   AnalysisConfig   `yaml:"analysis" mapstructure:"analysis"`
}

// PathsConfig defines which files to index and which to ignore.
type PathsConfig struct {
	Code   []string `yaml:"code" mapstructure:"code"`     // glob patterns for source files
	Ignore []string `yaml:"ignore" mapstructure:"ignore"` // glob patterns to ignore
}

// IndexConfig controls the extraction run.
type IndexConfig struct {
	Dir     string `yaml:"dir" mapstructure:"dir"`         // state directory relative to the root
	Workers int    `yaml:"workers" mapstructure:"workers"` // parallel parsers
}

// StalenessConfig controls the staleness detector and its periodic sweep.
type StalenessConfig struct {
	SampleSize int           `yaml:"sample_size" mapstructure:"sample_size"`
	Interval   time.Duration `yaml:"interval" mapstructure:"interval"`
}

// SupervisorConfig sets the resource ceilings applied to the extraction child.
type SupervisorConfig struct {
	MemoryLimitBytes uint64        `yaml:"memory_limit_bytes" mapstructure:"memory_limit_bytes"` // RLIMIT_AS
	CPULimit         time.Duration `yaml:"cpu_limit" mapstructure:"cpu_limit"`                   // RLIMIT_CPU
}

// WatchdogConfig controls hang detection.
type WatchdogConfig struct {
	Interval  time.Duration `yaml:"interval" mapstructure:"interval"`
	Deadline  time.Duration `yaml:"deadline" mapstructure:"deadline"`     // wall-clock limit per run
	KillGrace time.Duration `yaml:"kill_grace" mapstructure:"kill_grace"` // wait after SIGKILL
}

// QueryConfig controls the read guard and result sizes.
type QueryConfig struct {
	WaitTimeout   time.Duration `yaml:"wait_timeout" mapstructure:"wait_timeout"`
	PollInterval  time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`
	SearchLimit   int           `yaml:"search_limit" mapstructure:"search_limit"`
	ListLimit     int           `yaml:"list_limit" mapstructure:"list_limit"`
	ContentWindow int           `yaml:"content_window" mapstructure:"content_window"` // lines shown when end line is unknown
}

// WatchConfig controls the file watcher that schedules early staleness sweeps.
type WatchConfig struct {
	Enabled  bool          `yaml:"enabled" mapstructure:"enabled"`
	Debounce time.Duration `yaml:"debounce" mapstructure:"debounce"`
}

// AnalysisConfig sets the similarity thresholds used in repo-map.md.
type AnalysisConfig struct {
	SimilarNameThreshold float64 `yaml:"similar_name_threshold" mapstructure:"similar_name_threshold"`
	SimilarDocThreshold  float64 `yaml:"similar_doc_threshold" mapstructure:"similar_doc_threshold"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			Code: []string{
				"**/*.py",
				"**/*.rs",
				"**/*.go",
				"**/*.c",
				"**/*.h",
				"**/*.cpp",
				"**/*.cc",
				"**/*.cxx",
				"**/*.hpp",
				"**/*.hxx",
				"**/*.java",
				"**/*.ts",
				"**/*.tsx",
				"**/*.js",
				"**/*.jsx",
				"**/*.rb",
				"**/*.php",
			},
			Ignore: []string{
				"node_modules/**",
				".git/**",
				"__pycache__/**",
				"venv/**",
				".venv/**",
				"target/**",
				"build/**",
				"dist/**",
				".next/**",
				".cache/**",
				"vendor/**",
				".tox/**",
				".pytest_cache/**",
				".mypy_cache/**",
				".ruff_cache/**",
				"site-packages/**",
				"eggs/**",
				".eggs/**",
				DefaultDir + "/**",
			},
		},
		Index: IndexConfig{
			Dir:     DefaultDir,
			Workers: runtime.NumCPU(),
		},
		Staleness: StalenessConfig{
			SampleSize: 100,
			Interval:   60 * time.Second,
		},
		Supervisor: SupervisorConfig{
			MemoryLimitBytes: 4 << 30,
			CPULimit:         20 * time.Minute,
		},
		Watchdog: WatchdogConfig{
			Interval:  60 * time.Second,
			Deadline:  600 * time.Second,
			KillGrace: 5 * time.Second,
		},
		Query: QueryConfig{
			WaitTimeout:   15 * time.Second,
			PollInterval:  500 * time.Millisecond,
			SearchLimit:   20,
			ListLimit:     200,
			ContentWindow: 20,
		},
		Watch: WatchConfig{
			Enabled:  true,
			Debounce: 2 * time.Second,
		},
		Analysis: AnalysisConfig{
			SimilarNameThreshold: 0.75,
			SimilarDocThreshold:  0.65,
		},
	}
}

// Layout returns the state file locations for a project rooted at rootDir.
func (c *Config) Layout(rootDir string) Layout {
	return NewLayout(rootDir, c.Index.Dir)
}
