package indexer

import (
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

// compiledPattern holds both the pattern string and compiled glob
type compiledPattern struct {
	pattern string
	glob    glob.Glob
	// rootGlob matches files in the root directory for "**/" patterns,
	// which gobwas would otherwise require to contain a separator.
	rootGlob glob.Glob
}

// FileDiscovery finds source files with glob patterns and ignore rules.
type FileDiscovery struct {
	rootDir        string
	stateDir       string
	codePatterns   []compiledPattern
	ignorePatterns []compiledPattern
}

// NewFileDiscovery creates a new file discovery instance. stateDir, when
// non-empty, is always skipped.
func NewFileDiscovery(rootDir, stateDir string, codePatterns, ignorePatterns []string) (*FileDiscovery, error) {
	fd := &FileDiscovery{
		rootDir: rootDir,
	}
	if stateDir != "" {
		if rel, err := filepath.Rel(rootDir, stateDir); err == nil && !strings.HasPrefix(rel, "..") {
			fd.stateDir = filepath.ToSlash(rel)
		}
	}

	var err error
	if fd.codePatterns, err = compilePatterns(codePatterns); err != nil {
		return nil, err
	}
	if fd.ignorePatterns, err = compilePatterns(ignorePatterns); err != nil {
		return nil, err
	}
	return fd, nil
}

func compilePatterns(patterns []string) ([]compiledPattern, error) {
	compiled := make([]compiledPattern, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, err
		}
		cp := compiledPattern{pattern: pattern, glob: g}
		if strings.HasPrefix(pattern, "**/") {
			if rg, err := glob.Compile(strings.TrimPrefix(pattern, "**/"), '/'); err == nil {
				cp.rootGlob = rg
			}
		}
		compiled = append(compiled, cp)
	}
	return compiled, nil
}

// Discover walks the tree and returns the slash-separated paths, relative to
// the root, of every regular file matching a code pattern, sorted.
// Ignored directories are pruned rather than walked.
func (fd *FileDiscovery) Discover() ([]string, error) {
	files := []string{}

	err := filepath.WalkDir(fd.rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees are skipped; an unreadable root is fatal.
			if path == fd.rootDir {
				return err
			}
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		relPath, err := filepath.Rel(fd.rootDir, path)
		if err != nil {
			return err
		}
		if relPath == "." {
			return nil
		}
		relPath = filepath.ToSlash(relPath)

		if d.IsDir() {
			if fd.SkipDir(relPath) {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}
		if fd.shouldIgnore(relPath) {
			return nil
		}
		if fd.matchesAnyPattern(relPath, fd.codePatterns) {
			files = append(files, relPath)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

// Root returns the directory discovery walks.
func (fd *FileDiscovery) Root() string {
	return fd.rootDir
}

// SkipDir reports whether the directory at relPath is pruned. Excluded
// directory names apply at any depth, so "node_modules/**" also prunes
// "web/node_modules".
func (fd *FileDiscovery) SkipDir(relPath string) bool {
	return fd.shouldIgnore(relPath) || fd.matchesAnyPattern(path.Base(relPath)+"/**", fd.ignorePatterns)
}

// Match reports whether Discover would return relPath, were it a regular
// file. It does not touch the filesystem.
func (fd *FileDiscovery) Match(relPath string) bool {
	for dir := path.Dir(relPath); dir != "." && dir != "/"; dir = path.Dir(dir) {
		if fd.SkipDir(dir) {
			return false
		}
	}
	return !fd.shouldIgnore(relPath) && fd.matchesAnyPattern(relPath, fd.codePatterns)
}

// shouldIgnore checks if a path matches any ignore pattern.
func (fd *FileDiscovery) shouldIgnore(relPath string) bool {
	if fd.stateDir != "" && (relPath == fd.stateDir || strings.HasPrefix(relPath, fd.stateDir+"/")) {
		return true
	}

	if fd.matchesAnyPattern(relPath, fd.ignorePatterns) {
		return true
	}

	// A directory such as "node_modules" should match pattern "node_modules/**".
	return fd.matchesAnyPattern(relPath+"/**", fd.ignorePatterns)
}

// matchesAnyPattern checks if a path matches any of the given patterns.
// "**/*.py" matches both "main.py" and "pkg/main.py".
func (fd *FileDiscovery) matchesAnyPattern(path string, patterns []compiledPattern) bool {
	inRoot := !strings.Contains(path, "/")
	for _, cp := range patterns {
		if cp.glob.Match(path) {
			return true
		}
		if inRoot && cp.rootGlob != nil && cp.rootGlob.Match(path) {
			return true
		}
	}
	return false
}
