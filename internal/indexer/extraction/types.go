package extraction

import "fmt"

// SchemaVersion is shared by the symbol store schema and the cache snapshot
// format. Bump it whenever either changes so old snapshots are treated as stale.
const SchemaVersion = 3

// Kind is the declaration kind of a symbol.
type Kind string

const (
	KindClass    Kind = "class"
	KindFunction Kind = "function"
	KindMethod   Kind = "method"
)

// ParseKind validates a user supplied kind. An empty string is accepted and
// means "any kind".
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case "", KindClass, KindFunction, KindMethod:
		return Kind(s), nil
	}
	return "", fmt.Errorf("unknown symbol kind %q (want class, function or method)", s)
}

// Symbol is one extracted declaration.
//
// Identity is (FilePath, Line, Name). Names are not unique across a project:
// overloads and same-named classes in different files are expected.
type Symbol struct {
	Name       string `json:"name"`
	Kind       Kind   `json:"kind"`
	Signature  string `json:"signature,omitempty"`
	DocSummary string `json:"doc_summary,omitempty"`
	FilePath   string `json:"file_path"`
	Line       int    `json:"line"`
	EndLine    int    `json:"end_line,omitempty"` // 0 when unknown
	Parent     string `json:"parent,omitempty"`   // enclosing class for methods
	Language   string `json:"language,omitempty"`
}

// FullName returns Parent.Name for methods and Name otherwise.
func (s Symbol) FullName() string {
	if s.Parent != "" {
		return s.Parent + "." + s.Name
	}
	return s.Name
}

// Location returns "path:line".
func (s Symbol) Location() string {
	return fmt.Sprintf("%s:%d", s.FilePath, s.Line)
}

// HasEndLine reports whether the end line is known.
func (s Symbol) HasEndLine() bool {
	return s.EndLine >= s.Line && s.EndLine > 0
}

// Result is the outcome of parsing a single file. A skipped file carries no
// symbols and a human readable reason; it never aborts an indexing run.
type Result struct {
	Symbols []Symbol
	Skipped string
}

// Skip builds an empty result with a reason.
func Skip(format string, args ...any) Result {
	return Result{Skipped: fmt.Sprintf(format, args...)}
}

// OK reports whether the file was parsed.
func (r Result) OK() bool {
	return r.Skipped == ""
}
