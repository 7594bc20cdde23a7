package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

var (
	// ErrInvalidPattern indicates a path glob that does not compile
	ErrInvalidPattern = errors.New("invalid path pattern")

	// ErrEmptyCodePatterns indicates that nothing would be indexed
	ErrEmptyCodePatterns = errors.New("empty code patterns")

	// ErrInvalidInterval indicates a non-positive period or timeout
	ErrInvalidInterval = errors.New("invalid interval")

	// ErrInvalidLimit indicates a non-positive size or count
	ErrInvalidLimit = errors.New("invalid limit")

	// ErrInvalidDeadline indicates a CPU ceiling tighter than the wall-clock deadline
	ErrInvalidDeadline = errors.New("invalid deadline")

	// ErrInvalidThreshold indicates a similarity ratio outside (0, 1]
	ErrInvalidThreshold = errors.New("invalid similarity threshold")
)

// Validate checks that the configuration is valid and complete.
func Validate(cfg *Config) error {
	var errs []error

	if err := validatePaths(&cfg.Paths); err != nil {
		errs = append(errs, err)
	}

	if err := validateIndexing(cfg); err != nil {
		errs = append(errs, err)
	}

	if err := validateQuery(&cfg.Query); err != nil {
		errs = append(errs, err)
	}

	if err := validateAnalysis(&cfg.Analysis); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}

	return nil
}

func validatePaths(cfg *PathsConfig) error {
	var errs []error

	if len(cfg.Code) == 0 {
		errs = append(errs, fmt.Errorf("%w: at least one code pattern required", ErrEmptyCodePatterns))
	}

	for _, pattern := range append(append([]string{}, cfg.Code...), cfg.Ignore...) {
		if _, err := glob.Compile(pattern, '/'); err != nil {
			errs = append(errs, fmt.Errorf("%w: %q: %v", ErrInvalidPattern, pattern, err))
		}
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}

	return nil
}

func validateIndexing(cfg *Config) error {
	var errs []error

	if strings.TrimSpace(cfg.Index.Dir) == "" {
		errs = append(errs, fmt.Errorf("%w: index.dir is required", ErrInvalidLimit))
	}
	if cfg.Index.Workers <= 0 {
		errs = append(errs, fmt.Errorf("%w: index.workers must be positive, got %d", ErrInvalidLimit, cfg.Index.Workers))
	}
	if cfg.Staleness.SampleSize <= 0 {
		errs = append(errs, fmt.Errorf("%w: staleness.sample_size must be positive, got %d", ErrInvalidLimit, cfg.Staleness.SampleSize))
	}

	intervals := []struct {
		key   string
		value int64
	}{
		{"staleness.interval", int64(cfg.Staleness.Interval)},
		{"watchdog.interval", int64(cfg.Watchdog.Interval)},
		{"watchdog.deadline", int64(cfg.Watchdog.Deadline)},
		{"watch.debounce", int64(cfg.Watch.Debounce)},
	}
	for _, iv := range intervals {
		if iv.value <= 0 {
			errs = append(errs, fmt.Errorf("%w: %s must be positive", ErrInvalidInterval, iv.key))
		}
	}
	if cfg.Watchdog.KillGrace < 0 {
		errs = append(errs, fmt.Errorf("%w: watchdog.kill_grace cannot be negative", ErrInvalidInterval))
	}

	// 0 disables a ceiling.
	if cfg.Supervisor.CPULimit < 0 {
		errs = append(errs, fmt.Errorf("%w: supervisor.cpu_limit cannot be negative", ErrInvalidInterval))
	}
	if cfg.Supervisor.CPULimit > 0 && cfg.Supervisor.CPULimit < cfg.Watchdog.Deadline {
		errs = append(errs, fmt.Errorf("%w: supervisor.cpu_limit (%s) must not be tighter than watchdog.deadline (%s)",
			ErrInvalidDeadline, cfg.Supervisor.CPULimit, cfg.Watchdog.Deadline))
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}

	return nil
}

func validateQuery(cfg *QueryConfig) error {
	var errs []error

	if cfg.WaitTimeout < 0 {
		errs = append(errs, fmt.Errorf("%w: query.wait_timeout cannot be negative", ErrInvalidInterval))
	}
	if cfg.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("%w: query.poll_interval must be positive", ErrInvalidInterval))
	}
	if cfg.SearchLimit <= 0 {
		errs = append(errs, fmt.Errorf("%w: query.search_limit must be positive, got %d", ErrInvalidLimit, cfg.SearchLimit))
	}
	if cfg.ListLimit <= 0 {
		errs = append(errs, fmt.Errorf("%w: query.list_limit must be positive, got %d", ErrInvalidLimit, cfg.ListLimit))
	}
	if cfg.ContentWindow <= 0 {
		errs = append(errs, fmt.Errorf("%w: query.content_window must be positive, got %d", ErrInvalidLimit, cfg.ContentWindow))
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}

	return nil
}

func validateAnalysis(cfg *AnalysisConfig) error {
	var errs []error

	if cfg.SimilarNameThreshold <= 0 || cfg.SimilarNameThreshold > 1 {
		errs = append(errs, fmt.Errorf("%w: similar_name_threshold must be in (0, 1], got %.2f", ErrInvalidThreshold, cfg.SimilarNameThreshold))
	}
	if cfg.SimilarDocThreshold <= 0 || cfg.SimilarDocThreshold > 1 {
		errs = append(errs, fmt.Errorf("%w: similar_doc_threshold must be in (0, 1], got %.2f", ErrInvalidThreshold, cfg.SimilarDocThreshold))
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}

	return nil
}

// joinErrors combines multiple errors into a single error with clear formatting.
// The result still matches every wrapped sentinel with errors.Is.
func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}

	if len(errs) == 1 {
		return errs[0]
	}

	var msgs []string
	for _, err := range errs {
		msgs = append(msgs, err.Error())
	}

	return &validationError{msg: "validation failed:\n  - " + strings.Join(msgs, "\n  - "), errs: errs}
}

type validationError struct {
	msg  string
	errs []error
}

func (e *validationError) Error() string   { return e.msg }
func (e *validationError) Unwrap() []error { return e.errs }
