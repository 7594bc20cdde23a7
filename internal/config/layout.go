package config

import "path/filepath"

// Layout names every file repo-map keeps under a project's state directory.
type Layout struct {
	Root     string // project root
	Dir      string // state directory
	Store    string // symbols.db
	Cache    string // cache.json
	Progress string // progress.json
	Lock     string // index.lock
	Log      string // index.log
	RepoMap  string // repo-map.md
	Config   string // config.yml
}

// NewLayout builds the layout for rootDir. A relative dir is resolved
// against rootDir; an empty dir means DefaultDir.
func NewLayout(rootDir, dir string) Layout {
	if dir == "" {
		dir = DefaultDir
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(rootDir, dir)
	}
	return Layout{
		Root:     rootDir,
		Dir:      dir,
		Store:    filepath.Join(dir, "symbols.db"),
		Cache:    filepath.Join(dir, "cache.json"),
		Progress: filepath.Join(dir, "progress.json"),
		Lock:     filepath.Join(dir, "index.lock"),
		Log:      filepath.Join(dir, "index.log"),
		RepoMap:  filepath.Join(dir, "repo-map.md"),
		Config:   filepath.Join(dir, "config.yml"),
	}
}

// ProjectName is the base name of the root, used as a log prefix.
func (l Layout) ProjectName() string {
	return filepath.Base(l.Root)
}
