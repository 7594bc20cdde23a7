package storage

import (
	"errors"
	"sync"
)

// ErrNoStore is returned by Opener.Existing when the store file is absent.
var ErrNoStore = errors.New("symbol store does not exist")

// Opener shares one Store connection pool between the long-lived components
// of a process. The store is opened on first use; Existing never creates it,
// so "not indexed yet" stays observable.
type Opener struct {
	path string

	mu    sync.Mutex
	store *Store
}

// NewOpener returns an opener for the store at path.
func NewOpener(path string) *Opener {
	return &Opener{path: path}
}

// Path returns the store path.
func (o *Opener) Path() string {
	return o.path
}

// Exists reports whether the store file is present.
func (o *Opener) Exists() bool {
	return Exists(o.path)
}

// Open returns the shared store, creating it if needed.
func (o *Opener) Open() (*Store, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.store != nil {
		if Exists(o.path) {
			return o.store, nil
		}
		// Removed underneath us (e.g. by clean); start over.
		o.store.Close()
		o.store = nil
	}

	store, err := Open(o.path)
	if err != nil {
		return nil, err
	}
	o.store = store
	return store, nil
}

// Existing returns the shared store only if the file exists.
func (o *Opener) Existing() (*Store, error) {
	if !Exists(o.path) {
		return nil, ErrNoStore
	}
	return o.Open()
}

// Close closes the shared store, if open.
func (o *Opener) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.store == nil {
		return nil
	}
	err := o.store.Close()
	o.store = nil
	return err
}
