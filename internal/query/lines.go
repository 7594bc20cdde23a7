package query

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/maypok86/otter"
)

const (
	// lineCacheCapacity is the total number of cached lines.
	lineCacheCapacity = 200_000
	lineCacheTTL      = 10 * time.Minute
)

// lineKey identifies one version of a file. A write that changes size or
// mtime misses the cache.
type lineKey struct {
	path    string
	modTime int64
	size    int64
}

// lineCache keeps recently read source files split into lines, so repeated
// symbol_content calls into the same file do not re-read it.
type lineCache struct {
	cache otter.Cache[lineKey, []string]
}

func newLineCache() (*lineCache, error) {
	cache, err := otter.MustBuilder[lineKey, []string](lineCacheCapacity).
		Cost(func(key lineKey, lines []string) uint32 {
			return uint32(len(lines) + 1)
		}).
		WithTTL(lineCacheTTL).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create line cache: %w", err)
	}
	return &lineCache{cache: cache}, nil
}

// Lines returns the lines of the file at path. Missing and unreadable files
// are reported as ErrFileMissing and ErrFileUnreadable, naming display.
func (c *lineCache) Lines(path, display string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fileError(display, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s is not a regular file", ErrFileUnreadable, display)
	}

	key := lineKey{path: path, modTime: info.ModTime().UnixNano(), size: info.Size()}
	if lines, ok := c.cache.Get(key); ok {
		return lines, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fileError(display, err)
	}
	lines := splitLines(string(data))
	c.cache.Set(key, lines)
	return lines, nil
}

func (c *lineCache) Close() {
	c.cache.Close()
}

func fileError(path string, err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrFileMissing, path)
	}
	return fmt.Errorf("%w: %s: %v", ErrFileUnreadable, path, err)
}

func splitLines(s string) []string {
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}
