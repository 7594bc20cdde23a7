package watcher

import "context"

// FileWatcher monitors source files for changes with debouncing.
type FileWatcher interface {
	// Start begins watching the tree, calling callback with debounced,
	// sorted, root-relative paths of changed source files.
	Start(ctx context.Context, callback func(files []string)) error

	// Stop stops the file watcher and cleans up resources.
	Stop() error
}

// Matcher decides which paths are source files. Paths are slash separated
// and relative to the watched root.
type Matcher interface {
	// Match reports whether a file path is a source file.
	Match(relPath string) bool

	// SkipDir reports whether a directory is excluded from watching.
	SkipDir(relPath string) bool
}

// HeadWatcher monitors the git HEAD of a repository.
type HeadWatcher interface {
	// Start begins watching, calling callback with the previous and current
	// ref whenever HEAD moves (branch checkout or detached commit change).
	Start(ctx context.Context, callback func(oldRef, newRef string)) error

	// Stop stops the watcher and cleans up resources.
	Stop() error
}
