package query

import (
	"context"
	"errors"
	"time"

	"github.com/mvp-joe/repo-map/internal/indexer"
	"github.com/mvp-joe/repo-map/internal/storage"
)

// Status is the immediate, non-blocking view of the index.
type Status struct {
	Root        string          `json:"project_root"`
	StoreExists bool            `json:"database_exists"`
	State       storage.Status  `json:"status"`
	Indexing    *IndexingStatus `json:"indexing,omitempty"`
	Crashed     bool            `json:"crashed"`
	LastError   string          `json:"last_error,omitempty"`
	LastIndexed *time.Time      `json:"last_indexed,omitempty"`
	IndexAge    string          `json:"last_indexed_ago,omitempty"`
	SymbolCount int             `json:"symbol_count"`
	FileCount   int             `json:"file_count"`
	Stale       bool            `json:"is_stale"`
	StaleReason string          `json:"staleness_reason"`
	StoreError  string          `json:"database_error,omitempty"`
}

// IndexingStatus describes the run in flight.
type IndexingStatus struct {
	RunID    string            `json:"run_id"`
	PID      int               `json:"pid,omitempty"` // only for a child of this process
	Elapsed  string            `json:"elapsed"`
	Percent  float64           `json:"percent"`
	ETA      string            `json:"eta,omitempty"`
	Progress *indexer.Progress `json:"progress,omitempty"`
}

// Status reports the index state without waiting on a run.
func (s *Service) Status(ctx context.Context) Status {
	now := s.now()
	st := Status{
		Root:        s.layout.Root,
		StoreExists: s.opener.Exists(),
		State:       storage.StatusIdle,
	}

	if st.StoreExists {
		if err := s.fillMetadata(ctx, &st, now); err != nil {
			st.StoreError = err.Error()
		}
	}

	if s.staleness != nil {
		st.Stale, st.StaleReason = s.staleness.IsStale(ctx)
	}
	return st
}

func (s *Service) fillMetadata(ctx context.Context, st *Status, now time.Time) error {
	store, err := s.opener.Existing()
	if err != nil {
		if errors.Is(err, storage.ErrNoStore) {
			st.StoreExists = false
			return nil
		}
		return err
	}
	meta, err := store.Metadata(ctx)
	if err != nil {
		return err
	}

	st.State = meta.Status
	st.SymbolCount = meta.SymbolCount
	st.FileCount = meta.FileCount
	st.LastError = meta.ErrorMessage
	if meta.HasSnapshot() {
		last := meta.LastIndexed
		st.LastIndexed = &last
		st.IndexAge = now.Sub(last).Round(time.Second).String()
	}

	if meta.Status != storage.StatusIndexing {
		return nil
	}
	if s.crash != nil && s.crash.Crashed(meta) {
		st.Crashed = true
		return nil
	}

	elapsed := meta.Elapsed(now)
	ind := &IndexingStatus{
		RunID:   meta.RunID,
		Elapsed: elapsed.Round(time.Second).String(),
	}
	if s.sup != nil {
		if info, ok := s.sup.Current(); ok && info.Running && info.RunID == meta.RunID {
			ind.PID = info.PID
		}
	}
	if p, err := indexer.ReadProgress(s.layout.Progress); err == nil && p.RunID == meta.RunID {
		ind.Progress = &p
		ind.Percent = p.Percent()
		if eta, ok := p.ETA(now); ok {
			ind.ETA = eta.Round(time.Second).String()
		}
	}
	st.Indexing = ind
	return nil
}

// ReindexResult is the outcome of a reindex request.
type ReindexResult struct {
	Accepted bool   `json:"accepted"`
	Message  string `json:"message"`
	Reason   string `json:"reason,omitempty"`
}

// TriggerReindex starts a background run. Without force it declines when the
// index is up to date. A run already in flight is reported, never queued.
func (s *Service) TriggerReindex(ctx context.Context, force bool) (ReindexResult, error) {
	if s.sup == nil {
		return ReindexResult{}, errors.New("reindexing is not available")
	}

	if s.indexing(ctx) {
		return ReindexResult{Message: ErrAlreadyIndexing.Error()}, nil
	}

	var reason string
	if !force && s.staleness != nil {
		var stale bool
		stale, reason = s.staleness.IsStale(ctx)
		if !stale {
			return ReindexResult{Message: "index is up to date", Reason: reason}, nil
		}
	}
	if force {
		reason = "forced"
	}

	accepted, msg := s.sup.StartIndex(ctx)
	return ReindexResult{Accepted: accepted, Message: msg, Reason: reason}, nil
}

// indexing reports whether a live run exists, ignoring crashed ones so they
// can be replaced.
func (s *Service) indexing(ctx context.Context) bool {
	if info, ok := s.sup.Current(); ok && info.Running {
		return true
	}
	store, err := s.opener.Existing()
	if err != nil {
		return false
	}
	meta, err := store.Metadata(ctx)
	if err != nil || meta.Status != storage.StatusIndexing {
		return false
	}
	return s.crash == nil || !s.crash.Crashed(meta)
}
