package watcher

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// ErrNotGitRepo is returned by NewHeadWatcher when root has no .git entry.
var ErrNotGitRepo = errors.New("not a git repository")

// headWatcher implements HeadWatcher.
type headWatcher struct {
	gitDir   string
	headPath string
	watcher  *fsnotify.Watcher
	lastRef  string
	stopCh   chan struct{}
	doneCh   chan struct{}
	started  bool
	stopOnce sync.Once
	mu       sync.Mutex // Protects lastRef and started
}

// NewHeadWatcher creates a HeadWatcher for the repository at root. Both a
// .git directory and a worktree's ".git" file (gitdir: <path>) are
// understood.
func NewHeadWatcher(root string) (HeadWatcher, error) {
	gitDir, err := resolveGitDir(root)
	if err != nil {
		return nil, err
	}
	headPath := filepath.Join(gitDir, "HEAD")

	initial, err := readHeadRef(headPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", headPath, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	return &headWatcher{
		gitDir:   gitDir,
		headPath: headPath,
		watcher:  watcher,
		lastRef:  initial,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// resolveGitDir finds the git directory for root.
func resolveGitDir(root string) (string, error) {
	dotGit := filepath.Join(root, ".git")
	info, err := os.Stat(dotGit)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotGitRepo, root)
		}
		return "", err
	}
	if info.IsDir() {
		return dotGit, nil
	}

	content, err := os.ReadFile(dotGit)
	if err != nil {
		return "", err
	}
	line := strings.TrimSpace(string(content))
	if !strings.HasPrefix(line, "gitdir:") {
		return "", fmt.Errorf("%w: unrecognized .git file in %s", ErrNotGitRepo, root)
	}
	gitDir := strings.TrimSpace(strings.TrimPrefix(line, "gitdir:"))
	if !filepath.IsAbs(gitDir) {
		gitDir = filepath.Join(root, gitDir)
	}
	return gitDir, nil
}

// Start begins monitoring HEAD.
func (hw *headWatcher) Start(ctx context.Context, callback func(oldRef, newRef string)) error {
	// HEAD is replaced by rename on checkout, so the directory is watched.
	if err := hw.watcher.Add(hw.gitDir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", hw.gitDir, err)
	}

	hw.mu.Lock()
	hw.started = true
	hw.mu.Unlock()

	go hw.watch(ctx, callback)
	return nil
}

// Stop stops the watcher. Safe to call more than once and before Start.
func (hw *headWatcher) Stop() error {
	var err error
	hw.stopOnce.Do(func() {
		close(hw.stopCh)
		hw.mu.Lock()
		started := hw.started
		hw.mu.Unlock()
		if started {
			<-hw.doneCh
		}
		err = hw.watcher.Close()
	})
	return err
}

func (hw *headWatcher) watch(ctx context.Context, callback func(oldRef, newRef string)) {
	defer close(hw.doneCh)

	for {
		select {
		case <-ctx.Done():
			return

		case <-hw.stopCh:
			return

		case event, ok := <-hw.watcher.Events:
			if !ok {
				return
			}
			if event.Name != hw.headPath || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			newRef, err := readHeadRef(hw.headPath)
			if err != nil {
				// Mid-rename; the Create that follows carries the new content.
				continue
			}

			hw.mu.Lock()
			oldRef := hw.lastRef
			hw.lastRef = newRef
			hw.mu.Unlock()

			if newRef != oldRef {
				hw.fire(callback, oldRef, newRef)
			}

		case err, ok := <-hw.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("HEAD watcher error: %v", err)
		}
	}
}

func (hw *headWatcher) fire(callback func(oldRef, newRef string), oldRef, newRef string) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Warning: HEAD watcher callback panic: %v", r)
		}
	}()
	callback(oldRef, newRef)
}

func readHeadRef(headPath string) (string, error) {
	content, err := os.ReadFile(headPath)
	if err != nil {
		return "", err
	}
	ref := parseHeadRef(content)
	if ref == "" {
		return "", fmt.Errorf("empty HEAD")
	}
	return ref, nil
}

// parseHeadRef returns the branch name for a symbolic HEAD, or
// "detached@<abbrev>" for a detached one, so moving between commits is a
// change too.
func parseHeadRef(content []byte) string {
	line := strings.TrimSpace(string(content))

	if branch, ok := strings.CutPrefix(line, "ref: refs/heads/"); ok {
		return strings.TrimSpace(branch)
	}
	if ref, ok := strings.CutPrefix(line, "ref: "); ok {
		return strings.TrimSpace(ref)
	}
	if isObjectID(line) {
		return "detached@" + line[:12]
	}
	return line
}

// isObjectID reports whether s is a SHA-1 or SHA-256 hex object id.
func isObjectID(s string) bool {
	if len(s) != 40 && len(s) != 64 {
		return false
	}
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}
