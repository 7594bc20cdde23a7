package parsers

import (
	sitter "github.com/tree-sitter/go-tree-sitter"
	php "github.com/tree-sitter/tree-sitter-php/bindings/go"

	"github.com/mvp-joe/repo-map/internal/indexer/extraction"
)

// phpParser parses PHP files. Classes, interfaces, traits and enums are
// reported as classes.
type phpParser struct {
	*treeSitterParser
}

// NewPHPParser creates a new PHP parser.
func NewPHPParser() *phpParser {
	p := &phpParser{}
	lang := sitter.NewLanguage(php.LanguagePHP())
	p.treeSitterParser = newTreeSitterParser(lang, "php", p.extract)
	return p
}

func (p *phpParser) extract(root *sitter.Node, sink *symbolSink) {
	p.visit(root, sink)
}

func (p *phpParser) visit(node *sitter.Node, sink *symbolSink) {
	for _, child := range namedChildren(node) {
		switch child.Kind() {
		case "class_declaration", "interface_declaration", "trait_declaration", "enum_declaration":
			p.extractType(child, sink)
		case "function_definition":
			name := sink.field(child, "name")
			sink.add(child, extraction.KindFunction, name, "",
				p.buildFunctionSignature(child, name, sink), precedingComments(child, sink.source))
		case "namespace_definition", "compound_statement":
			p.visit(child, sink)
		}
	}
}

func (p *phpParser) extractType(node *sitter.Node, sink *symbolSink) {
	keyword := map[string]string{
		"class_declaration":     "class",
		"interface_declaration": "interface",
		"trait_declaration":     "trait",
		"enum_declaration":      "enum",
	}[node.Kind()]
	name := sink.field(node, "name")
	sink.add(node, extraction.KindClass, name, "", keyword+" "+name, precedingComments(node, sink.source))

	for _, member := range namedChildren(node.ChildByFieldName("body")) {
		if member.Kind() != "method_declaration" {
			continue
		}
		method := sink.field(member, "name")
		sink.add(member, extraction.KindMethod, method, name,
			p.buildFunctionSignature(member, method, sink), precedingComments(member, sink.source))
	}
}

// buildFunctionSignature renders name(params): Return.
func (p *phpParser) buildFunctionSignature(node *sitter.Node, name string, sink *symbolSink) string {
	sig := withParams(name, sink.field(node, "parameters"))
	if ret := sink.field(node, "return_type"); ret != "" {
		sig += ": " + collapseSpace(ret)
	}
	return sig
}
