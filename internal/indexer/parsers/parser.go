package parsers

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/mvp-joe/repo-map/internal/indexer/extraction"
)

// Parser is a language front-end: source bytes in, ordered symbols out.
// Implementations hold no per-file state and are safe for concurrent use.
type Parser interface {
	Language() string
	Parse(path string, source []byte) extraction.Result
}

// binarySniffLen is how many leading bytes are checked for NUL.
const binarySniffLen = 8000

// Registry routes files to front-ends by extension.
type Registry struct {
	byExt map[string]Parser
}

// NewRegistry returns a registry with every supported language.
func NewRegistry() *Registry {
	py := NewPythonParser()
	rs := NewRustParser()
	cc := NewCParser()
	cpp := NewCppParser()
	java := NewJavaParser()
	ts := NewTypeScriptParser()
	tsx := NewTSXParser()
	js := NewJavaScriptParser()
	jsx := NewJSXParser()
	rb := NewRubyParser()
	php := NewPHPParser()
	goParser := NewGoParser()

	return &Registry{byExt: map[string]Parser{
		".py":   py,
		".pyi":  py,
		".rs":   rs,
		".c":    cc,
		".h":    cpp,
		".cpp":  cpp,
		".cc":   cpp,
		".cxx":  cpp,
		".hpp":  cpp,
		".hxx":  cpp,
		".java": java,
		".ts":   ts,
		".mts":  ts,
		".tsx":  tsx,
		".js":   js,
		".mjs":  js,
		".cjs":  js,
		".jsx":  jsx,
		".rb":   rb,
		".php":  php,
		".go":   goParser,
	}}
}

// ForFile returns the front-end for path, if its extension is supported.
func (r *Registry) ForFile(path string) (Parser, bool) {
	p, ok := r.byExt[strings.ToLower(filepath.Ext(path))]
	return p, ok
}

// Supports reports whether path has a supported extension.
func (r *Registry) Supports(path string) bool {
	_, ok := r.ForFile(path)
	return ok
}

// Parse runs the matching front-end over source. It never panics and never
// fails: unsupported, binary, non UTF-8 or otherwise unparseable input yields
// an empty result with a reason.
func (r *Registry) Parse(path string, source []byte) (result extraction.Result) {
	p, ok := r.ForFile(path)
	if !ok {
		return extraction.Skip("unsupported file type %q", filepath.Ext(path))
	}

	if len(bytes.TrimSpace(source)) == 0 {
		return extraction.Result{}
	}

	sniff := source
	if len(sniff) > binarySniffLen {
		sniff = sniff[:binarySniffLen]
	}
	if bytes.IndexByte(sniff, 0) >= 0 {
		return extraction.Skip("binary content")
	}
	if !utf8.Valid(source) {
		return extraction.Skip("not valid utf-8")
	}

	defer func() {
		if rec := recover(); rec != nil {
			result = extraction.Skip("%s parser panic: %s", p.Language(), fmt.Sprint(rec))
		}
	}()

	return p.Parse(path, source)
}
