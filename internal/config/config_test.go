package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for Config System:
// - Default() returns valid configuration with all expected defaults
// - Load() uses defaults when no config file exists
// - Load() loads from .repomap/config.yml and merges with defaults
// - Load() parses duration strings
// - Environment variables override config file values and defaults
// - An explicit config file that does not exist is an error
// - Load() returns error for malformed YAML and invalid values
// - Validate() rejects empty code patterns and bad globs
// - Validate() rejects a CPU ceiling tighter than the watchdog deadline
// - Validate() rejects non-positive limits and out of range thresholds
// - Validate() returns every violation, each matchable with errors.Is
// - Layout places every state file under the state directory

func writeConfig(t *testing.T, root, content string) {
	t.Helper()
	dir := filepath.Join(root, DefaultDir)
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte(content), 0644))
}

func TestDefault_ReturnsValidConfiguration(t *testing.T) {
	t.Parallel()

	cfg := Default()
	require.NotNil(t, cfg)

	assert.Equal(t, ".repomap", cfg.Index.Dir)
	assert.Positive(t, cfg.Index.Workers)
	assert.Equal(t, 100, cfg.Staleness.SampleSize)
	assert.Equal(t, 60*time.Second, cfg.Staleness.Interval)
	assert.Equal(t, uint64(4<<30), cfg.Supervisor.MemoryLimitBytes)
	assert.Equal(t, 20*time.Minute, cfg.Supervisor.CPULimit)
	assert.Equal(t, 600*time.Second, cfg.Watchdog.Deadline)
	assert.Equal(t, 15*time.Second, cfg.Query.WaitTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Query.PollInterval)
	assert.Equal(t, 20, cfg.Query.ContentWindow)
	assert.True(t, cfg.Watch.Enabled)
	assert.Equal(t, 0.75, cfg.Analysis.SimilarNameThreshold)

	assert.Contains(t, cfg.Paths.Code, "**/*.py")
	assert.Contains(t, cfg.Paths.Ignore, "node_modules/**")
	assert.Contains(t, cfg.Paths.Ignore, ".repomap/**")

	assert.NoError(t, Validate(cfg))
}

func TestLoadConfig_UsesDefaultsWhenNoConfigFile(t *testing.T) {
	t.Parallel()

	cfg, err := NewLoader(t.TempDir()).Load()
	require.NoError(t, err)

	expected := Default()
	assert.Equal(t, expected.Paths, cfg.Paths)
	assert.Equal(t, expected.Watchdog, cfg.Watchdog)
	assert.Equal(t, expected.Query, cfg.Query)
}

func TestLoadConfig_LoadsFromConfigYml(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeConfig(t, root, `
paths:
  code:
    - "**/*.py"
  ignore:
    - "fixtures/**"
watchdog:
  deadline: 120s
  interval: 10s
supervisor:
  cpu_limit: 5m
query:
  search_limit: 50
`)

	cfg, err := NewLoader(root).Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"**/*.py"}, cfg.Paths.Code)
	assert.Equal(t, []string{"fixtures/**"}, cfg.Paths.Ignore)
	assert.Equal(t, 120*time.Second, cfg.Watchdog.Deadline)
	assert.Equal(t, 10*time.Second, cfg.Watchdog.Interval)
	assert.Equal(t, 5*time.Minute, cfg.Supervisor.CPULimit)
	assert.Equal(t, 50, cfg.Query.SearchLimit)

	// Untouched keys keep their defaults.
	assert.Equal(t, 200, cfg.Query.ListLimit)
	assert.Equal(t, 5*time.Second, cfg.Watchdog.KillGrace)
}

func TestLoadConfig_EnvironmentVariablesOverride(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, `
query:
  search_limit: 50
`)

	t.Setenv("REPOMAP_QUERY_SEARCH_LIMIT", "7")
	t.Setenv("REPOMAP_WATCHDOG_DEADLINE", "90s")
	t.Setenv("REPOMAP_WATCH_ENABLED", "false")

	cfg, err := NewLoader(root).Load()
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Query.SearchLimit)
	assert.Equal(t, 90*time.Second, cfg.Watchdog.Deadline)
	assert.False(t, cfg.Watch.Enabled)
}

func TestLoadConfig_ExplicitFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yml")
	require.NoError(t, os.WriteFile(path, []byte("staleness:\n  sample_size: 5\n"), 0644))

	cfg, err := NewLoaderWithFile(dir, path).Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Staleness.SampleSize)

	_, err = NewLoaderWithFile(dir, filepath.Join(dir, "missing.yml")).Load()
	assert.Error(t, err)
}

func TestLoadConfig_ReturnsErrorForMalformedYaml(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeConfig(t, root, "paths: [unclosed\n")

	_, err := NewLoader(root).Load()
	assert.Error(t, err)
}

func TestLoadConfig_ReturnsErrorForInvalidValues(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeConfig(t, root, "query:\n  search_limit: 0\n")

	_, err := NewLoader(root).Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidLimit)
}

func TestValidate_RejectsEmptyCodePatterns(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Paths.Code = nil
	assert.ErrorIs(t, Validate(cfg), ErrEmptyCodePatterns)
}

func TestValidate_RejectsInvalidGlob(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Paths.Ignore = append(cfg.Paths.Ignore, "[broken")
	assert.ErrorIs(t, Validate(cfg), ErrInvalidPattern)
}

func TestValidate_RejectsCPULimitTighterThanDeadline(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Supervisor.CPULimit = time.Minute
	cfg.Watchdog.Deadline = 10 * time.Minute
	assert.ErrorIs(t, Validate(cfg), ErrInvalidDeadline)

	cfg.Supervisor.CPULimit = 0
	assert.NoError(t, Validate(cfg), "zero disables the ceiling")
}

func TestValidate_RejectsThresholdOutOfRange(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Analysis.SimilarDocThreshold = 1.5
	assert.ErrorIs(t, Validate(cfg), ErrInvalidThreshold)
}

func TestValidate_ReturnsMultipleErrorsForMultipleInvalidFields(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Query.PollInterval = 0
	cfg.Query.ListLimit = -1
	cfg.Analysis.SimilarNameThreshold = 0

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
	assert.True(t, errors.Is(err, ErrInvalidInterval))
	assert.True(t, errors.Is(err, ErrInvalidLimit))
	assert.True(t, errors.Is(err, ErrInvalidThreshold))
}

func TestLayout(t *testing.T) {
	t.Parallel()

	layout := Default().Layout("/work/proj")
	assert.Equal(t, "/work/proj/.repomap", layout.Dir)
	assert.Equal(t, "/work/proj/.repomap/symbols.db", layout.Store)
	assert.Equal(t, "/work/proj/.repomap/cache.json", layout.Cache)
	assert.Equal(t, "/work/proj/.repomap/index.lock", layout.Lock)
	assert.Equal(t, "proj", layout.ProjectName())

	abs := NewLayout("/work/proj", "/var/state")
	assert.Equal(t, "/var/state/progress.json", abs.Progress)
}
