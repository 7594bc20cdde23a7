package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/gobwas/glob"

	"github.com/mvp-joe/repo-map/internal/indexer/extraction"
)

var symbolColumns = []string{
	"name", "kind", "signature", "doc_summary", "file_path",
	"line_number", "end_line_number", "parent", "language",
}

// RunStats describes a completed extraction run.
type RunStats struct {
	RunID     string
	FileCount int
	Finished  time.Time
}

// ReplaceAll swaps the whole symbol table for symbols and marks the index
// completed, in a single transaction. Readers see either the previous
// snapshot or the new one, never a mix.
func (s *Store) ReplaceAll(ctx context.Context, symbols []extraction.Symbol, stats RunStats) error {
	if stats.Finished.IsZero() {
		stats.Finished = time.Now()
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM symbols"); err != nil {
			return fmt.Errorf("failed to clear symbols: %w", err)
		}

		sqlStr, _, err := sq.Insert("symbols").
			Columns(symbolColumns...).
			Values("", "", "", nil, "", 0, nil, nil, "").
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build SQL: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, sqlStr)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, sym := range symbols {
			_, err := stmt.ExecContext(ctx,
				sym.Name,
				string(sym.Kind),
				sym.Signature,
				nullString(sym.DocSummary),
				sym.FilePath,
				sym.Line,
				nullInt(sym.EndLine),
				nullString(sym.Parent),
				sym.Language,
			)
			if err != nil {
				return fmt.Errorf("failed to insert symbol %s at %s: %w", sym.Name, sym.Location(), err)
			}
		}

		return setMetadata(tx, map[string]string{
			keyStatus:       string(StatusCompleted),
			keyLastIndexed:  formatTime(stats.Finished),
			keySymbolCount:  strconv.Itoa(len(symbols)),
			keyFileCount:    strconv.Itoa(stats.FileCount),
			keyRunID:        stats.RunID,
			keyErrorMessage: "",
		})
	})
}

// SearchByName returns symbols whose name matches the glob pattern (`*`, `?`,
// character classes), optionally restricted to kind, ordered by name and
// location. A limit <= 0 means no limit.
//
// A LIKE prefilter narrows the scan; the compiled glob decides every match.
func (s *Store) SearchByName(ctx context.Context, pattern string, kind extraction.Kind, limit int) ([]extraction.Symbol, error) {
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	query := sq.Select(symbolColumns...).
		From("symbols").
		OrderBy("name", "file_path", "line_number")
	if like, ok := globToLike(pattern); ok {
		query = query.Where(sq.Expr(`name LIKE ? ESCAPE '\'`, like))
	}
	if kind != "" {
		query = query.Where(sq.Eq{"kind": string(kind)})
	}

	return s.querySymbols(ctx, query, limit, func(sym extraction.Symbol) bool {
		return g.Match(sym.Name)
	})
}

// FileSymbols returns the symbols declared in relPath, in line order.
func (s *Store) FileSymbols(ctx context.Context, relPath string) ([]extraction.Symbol, error) {
	query := sq.Select(symbolColumns...).
		From("symbols").
		Where(sq.Eq{"file_path": relPath}).
		OrderBy("line_number", "name")
	return s.querySymbols(ctx, query, 0, nil)
}

// SymbolFilter selects symbols by exact attributes. Empty fields match
// anything, except Parent which is only applied when HasParent is set so a
// caller can ask for top-level symbols explicitly.
type SymbolFilter struct {
	Name      string
	Parent    string
	HasParent bool
	Kind      extraction.Kind
	FilePath  string
}

// FindSymbols returns every symbol matching filter, ordered by location.
func (s *Store) FindSymbols(ctx context.Context, filter SymbolFilter) ([]extraction.Symbol, error) {
	query := sq.Select(symbolColumns...).
		From("symbols").
		Where(sq.Eq{"name": filter.Name}).
		OrderBy("file_path", "line_number")
	if filter.HasParent {
		if filter.Parent == "" {
			query = query.Where(sq.Eq{"parent": nil})
		} else {
			query = query.Where(sq.Eq{"parent": filter.Parent})
		}
	}
	if filter.Kind != "" {
		query = query.Where(sq.Eq{"kind": string(filter.Kind)})
	}
	if filter.FilePath != "" {
		query = query.Where(sq.Eq{"file_path": filter.FilePath})
	}
	return s.querySymbols(ctx, query, 0, nil)
}

// AllSymbols returns every stored symbol ordered by file and line.
func (s *Store) AllSymbols(ctx context.Context) ([]extraction.Symbol, error) {
	query := sq.Select(symbolColumns...).
		From("symbols").
		OrderBy("file_path", "line_number", "name")
	return s.querySymbols(ctx, query, 0, nil)
}

// ListFiles returns the distinct file paths present in the store, sorted,
// optionally filtered by a glob pattern. `*` in the pattern crosses directory
// separators, so "*.py" matches nested files.
func (s *Store) ListFiles(ctx context.Context, pattern string, limit int) ([]string, error) {
	var g glob.Glob
	query := sq.Select("DISTINCT file_path").
		From("symbols").
		OrderBy("file_path")
	if pattern != "" {
		var err error
		if g, err = glob.Compile(pattern); err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		if like, ok := globToLike(pattern); ok {
			query = query.Where(sq.Expr(`file_path LIKE ? ESCAPE '\'`, like))
		}
	}

	rows, err := query.RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query files: %w", err)
	}
	defer rows.Close()

	var files []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, fmt.Errorf("failed to scan file path: %w", err)
		}
		if g != nil && !g.Match(path) {
			continue
		}
		files = append(files, path)
		if limit > 0 && len(files) >= limit {
			break
		}
	}
	return files, rows.Err()
}

// CountFiles returns the number of distinct files that contributed symbols.
func (s *Store) CountFiles(ctx context.Context) (int, error) {
	var n int
	err := sq.Select("COUNT(DISTINCT file_path)").
		From("symbols").
		RunWith(s.db).
		QueryRowContext(ctx).
		Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count files: %w", err)
	}
	return n, nil
}

func (s *Store) querySymbols(ctx context.Context, query sq.SelectBuilder, limit int, keep func(extraction.Symbol) bool) ([]extraction.Symbol, error) {
	rows, err := query.RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query symbols: %w", err)
	}
	defer rows.Close()

	var symbols []extraction.Symbol
	for rows.Next() {
		sym, err := scanSymbol(rows)
		if err != nil {
			return nil, err
		}
		if keep != nil && !keep(sym) {
			continue
		}
		symbols = append(symbols, sym)
		if limit > 0 && len(symbols) >= limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read symbols: %w", err)
	}
	return symbols, nil
}

func scanSymbol(rows *sql.Rows) (extraction.Symbol, error) {
	var (
		sym     extraction.Symbol
		kind    string
		doc     sql.NullString
		endLine sql.NullInt64
		parent  sql.NullString
	)
	err := rows.Scan(
		&sym.Name,
		&kind,
		&sym.Signature,
		&doc,
		&sym.FilePath,
		&sym.Line,
		&endLine,
		&parent,
		&sym.Language,
	)
	if err != nil {
		return extraction.Symbol{}, fmt.Errorf("failed to scan symbol: %w", err)
	}
	sym.Kind = extraction.Kind(kind)
	sym.DocSummary = doc.String
	sym.EndLine = int(endLine.Int64)
	sym.Parent = parent.String
	return sym, nil
}

// globToLike converts a glob to a LIKE pattern usable as a prefilter. It
// reports false for patterns whose syntax LIKE cannot approximate
// (classes, alternation, escapes); those are matched by a full scan.
func globToLike(pattern string) (string, bool) {
	if strings.ContainsAny(pattern, `[]{}\`) {
		return "", false
	}

	var b strings.Builder
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteByte('%')
		case '?':
			b.WriteByte('_')
		case '%', '_':
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String(), true
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(n int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(n), Valid: n > 0}
}
