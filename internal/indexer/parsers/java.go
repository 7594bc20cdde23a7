package parsers

import (
	sitter "github.com/tree-sitter/go-tree-sitter"
	java "github.com/tree-sitter/tree-sitter-java/bindings/go"

	"github.com/mvp-joe/repo-map/internal/indexer/extraction"
)

// javaParser parses Java files. Classes, interfaces, enums and records are
// reported as classes; methods and constructors as methods of the innermost
// enclosing type.
type javaParser struct {
	*treeSitterParser
}

// NewJavaParser creates a new Java parser.
func NewJavaParser() *javaParser {
	p := &javaParser{}
	lang := sitter.NewLanguage(java.Language())
	p.treeSitterParser = newTreeSitterParser(lang, "java", p.extract)
	return p
}

func (p *javaParser) extract(root *sitter.Node, sink *symbolSink) {
	p.visit(root, sink, "")
}

func (p *javaParser) visit(node *sitter.Node, sink *symbolSink, class string) {
	for _, child := range namedChildren(node) {
		switch child.Kind() {
		case "class_declaration", "interface_declaration", "enum_declaration",
			"record_declaration", "annotation_type_declaration":
			name := sink.field(child, "name")
			sink.add(child, extraction.KindClass, name, "", p.typeSignature(child, sink),
				precedingComments(child, sink.source))
			p.visit(child.ChildByFieldName("body"), sink, name)
		case "enum_body_declarations":
			p.visit(child, sink, class)
		case "method_declaration", "constructor_declaration", "compact_constructor_declaration":
			if class == "" {
				continue
			}
			sink.add(child, extraction.KindMethod, sink.field(child, "name"), class,
				p.methodSignature(child, sink), precedingComments(child, sink.source))
		}
	}
}

func (p *javaParser) typeSignature(node *sitter.Node, sink *symbolSink) string {
	keyword := map[string]string{
		"class_declaration":           "class",
		"interface_declaration":       "interface",
		"enum_declaration":            "enum",
		"record_declaration":          "record",
		"annotation_type_declaration": "@interface",
	}[node.Kind()]
	sig := keyword + " " + sink.field(node, "name") + sink.field(node, "type_parameters")
	if node.Kind() == "record_declaration" {
		sig += collapseSpace(sink.field(node, "parameters"))
	}
	return sig
}

// methodSignature renders "Type name(params)"; constructors have no type.
func (p *javaParser) methodSignature(node *sitter.Node, sink *symbolSink) string {
	sig := withParams(sink.field(node, "name"), sink.field(node, "parameters"))
	if ret := sink.field(node, "type"); ret != "" {
		sig = collapseSpace(ret) + " " + sig
	}
	return sig
}
