package parsers

import (
	sitter "github.com/tree-sitter/go-tree-sitter"
	ruby "github.com/tree-sitter/tree-sitter-ruby/bindings/go"

	"github.com/mvp-joe/repo-map/internal/indexer/extraction"
)

// rubyParser parses Ruby files. Classes and modules are reported as classes;
// def inside them is a method, def at top level a function.
type rubyParser struct {
	*treeSitterParser
}

// NewRubyParser creates a new Ruby parser.
func NewRubyParser() *rubyParser {
	p := &rubyParser{}
	lang := sitter.NewLanguage(ruby.Language())
	p.treeSitterParser = newTreeSitterParser(lang, "ruby", p.extract)
	return p
}

func (p *rubyParser) extract(root *sitter.Node, sink *symbolSink) {
	p.visit(root, sink, "")
}

func (p *rubyParser) visit(node *sitter.Node, sink *symbolSink, class string) {
	for _, child := range namedChildren(node) {
		switch child.Kind() {
		case "class", "module":
			name := lastSegment(sink.field(child, "name"))
			signature := child.Kind() + " " + name
			if super := sink.field(child, "superclass"); super != "" {
				signature += " " + collapseSpace(super)
			}
			sink.add(child, extraction.KindClass, name, "", signature, precedingComments(child, sink.source))
			p.visit(child, sink, name)
		case "body_statement":
			p.visit(child, sink, class)
		case "method", "singleton_method":
			name := sink.field(child, "name")
			if child.Kind() == "singleton_method" {
				name = "self." + name
			}
			signature := "def " + withParams(name, sink.field(child, "parameters"))
			doc := precedingComments(child, sink.source)
			if class != "" {
				sink.add(child, extraction.KindMethod, name, class, signature, doc)
			} else {
				sink.add(child, extraction.KindFunction, name, "", signature, doc)
			}
		}
	}
}
