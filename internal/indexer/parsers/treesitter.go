package parsers

import (
	"sort"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/mvp-joe/repo-map/internal/indexer/extraction"
)

// treeSitterParser provides common tree-sitter parsing functionality.
// Each language supplies an extract function that walks the syntax tree and
// feeds declarations into a symbolSink.
type treeSitterParser struct {
	language *sitter.Language
	lang     string
	extract  func(root *sitter.Node, sink *symbolSink)
}

func newTreeSitterParser(language *sitter.Language, lang string, extract func(*sitter.Node, *symbolSink)) *treeSitterParser {
	return &treeSitterParser{
		language: language,
		lang:     lang,
		extract:  extract,
	}
}

// Language returns the language name recorded on every symbol.
func (p *treeSitterParser) Language() string {
	return p.lang
}

// Parse runs tree-sitter over source. Tree-sitter recovers from syntax errors,
// so malformed files still yield whatever declarations could be located.
func (p *treeSitterParser) Parse(path string, source []byte) extraction.Result {
	parser := sitter.NewParser()
	defer parser.Close()

	if err := parser.SetLanguage(p.language); err != nil {
		return extraction.Skip("%s grammar unavailable: %v", p.lang, err)
	}

	tree := parser.Parse(source, nil)
	if tree == nil {
		return extraction.Skip("failed to parse %s file", p.lang)
	}
	defer tree.Close()

	sink := &symbolSink{path: path, lang: p.lang, source: source}
	p.extract(tree.RootNode(), sink)

	return extraction.Result{Symbols: sink.sorted()}
}

// symbolSink accumulates symbols for one file.
type symbolSink struct {
	path    string
	lang    string
	source  []byte
	symbols []extraction.Symbol
}

func (s *symbolSink) add(node *sitter.Node, kind extraction.Kind, name, parent, signature, doc string) {
	if node == nil || name == "" {
		return
	}
	s.symbols = append(s.symbols, extraction.Symbol{
		Name:       name,
		Kind:       kind,
		Signature:  signature,
		DocSummary: summarizeDoc(doc),
		FilePath:   s.path,
		Line:       int(node.StartPosition().Row) + 1,
		EndLine:    int(node.EndPosition().Row) + 1,
		Parent:     parent,
		Language:   s.lang,
	})
}

func (s *symbolSink) text(node *sitter.Node) string {
	return extractNodeText(node, s.source)
}

func (s *symbolSink) field(node *sitter.Node, name string) string {
	if node == nil {
		return ""
	}
	return extractNodeText(node.ChildByFieldName(name), s.source)
}

func (s *symbolSink) sorted() []extraction.Symbol {
	sort.SliceStable(s.symbols, func(i, j int) bool {
		return s.symbols[i].Line < s.symbols[j].Line
	})
	return s.symbols
}

// extractNodeText extracts the text content of a tree-sitter node.
func extractNodeText(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	return string(source[node.StartByte():node.EndByte()])
}

// namedChildren returns the named children of node in order.
func namedChildren(node *sitter.Node) []*sitter.Node {
	if node == nil {
		return nil
	}
	children := make([]*sitter.Node, 0, node.NamedChildCount())
	for i := 0; i < int(node.NamedChildCount()); i++ {
		if child := node.NamedChild(uint(i)); child != nil {
			children = append(children, child)
		}
	}
	return children
}

// findChildByType finds the first child node with the given type.
func findChildByType(node *sitter.Node, nodeType string) *sitter.Node {
	if node == nil {
		return nil
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(uint(i))
		if child != nil && child.Kind() == nodeType {
			return child
		}
	}
	return nil
}

// precedingComments collects the comment block directly above node. Comments
// separated from the declaration by a blank line do not count, and attribute
// or annotation lines in between are skipped.
func precedingComments(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}

	var parts []string
	row := node.StartPosition().Row
	for prev := node.PrevSibling(); prev != nil; prev = prev.PrevSibling() {
		kind := prev.Kind()
		if kind == "attribute_item" || kind == "decorator" {
			row = prev.StartPosition().Row
			continue
		}
		if !strings.Contains(kind, "comment") {
			break
		}
		if row-prev.EndPosition().Row > 1 {
			break
		}
		parts = append([]string{extractNodeText(prev, source)}, parts...)
		row = prev.StartPosition().Row
	}
	return strings.Join(parts, "\n")
}

// withParams renders name followed by a parameter list, defaulting to "()".
func withParams(name, params string) string {
	if params == "" {
		params = "()"
	}
	return name + collapseSpace(params)
}

// collapseSpace folds runs of whitespace (including newlines) into single
// spaces so multi-line parameter lists render on one line.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
