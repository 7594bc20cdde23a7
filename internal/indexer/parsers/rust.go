package parsers

import (
	sitter "github.com/tree-sitter/go-tree-sitter"
	rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"

	"github.com/mvp-joe/repo-map/internal/indexer/extraction"
)

// rustParser parses Rust files. Structs, enums, unions and traits are reported
// as classes; functions inside impl and trait blocks are methods of the
// implementing type.
type rustParser struct {
	*treeSitterParser
}

// NewRustParser creates a new Rust parser.
func NewRustParser() *rustParser {
	p := &rustParser{}
	lang := sitter.NewLanguage(rust.Language())
	p.treeSitterParser = newTreeSitterParser(lang, "rust", p.extract)
	return p
}

func (p *rustParser) extract(root *sitter.Node, sink *symbolSink) {
	p.visitItems(root, sink)
}

func (p *rustParser) visitItems(node *sitter.Node, sink *symbolSink) {
	for _, child := range namedChildren(node) {
		switch child.Kind() {
		case "struct_item":
			p.extractType(child, sink, "struct")
		case "enum_item":
			p.extractType(child, sink, "enum")
		case "union_item":
			p.extractType(child, sink, "union")
		case "trait_item":
			p.extractType(child, sink, "trait")
			p.extractMethods(child.ChildByFieldName("body"), sink, sink.field(child, "name"))
		case "impl_item":
			p.extractMethods(child.ChildByFieldName("body"), sink, p.implTypeName(child, sink))
		case "function_item":
			sink.add(child, extraction.KindFunction, sink.field(child, "name"), "",
				p.buildFunctionSignature(child, sink), precedingComments(child, sink.source))
		case "mod_item":
			p.visitItems(child.ChildByFieldName("body"), sink)
		}
	}
}

func (p *rustParser) extractType(node *sitter.Node, sink *symbolSink, keyword string) {
	name := sink.field(node, "name")
	signature := keyword + " " + name + sink.field(node, "type_parameters")
	sink.add(node, extraction.KindClass, name, "", signature, precedingComments(node, sink.source))
}

func (p *rustParser) extractMethods(body *sitter.Node, sink *symbolSink, parent string) {
	if parent == "" {
		return
	}
	for _, child := range namedChildren(body) {
		switch child.Kind() {
		case "function_item", "function_signature_item":
			sink.add(child, extraction.KindMethod, sink.field(child, "name"), parent,
				p.buildFunctionSignature(child, sink), precedingComments(child, sink.source))
		}
	}
}

// implTypeName returns the bare type name of an impl block, dropping generic
// arguments and path qualifiers.
func (p *rustParser) implTypeName(node *sitter.Node, sink *symbolSink) string {
	typ := node.ChildByFieldName("type")
	for typ != nil {
		switch typ.Kind() {
		case "generic_type":
			typ = typ.ChildByFieldName("type")
		case "scoped_type_identifier":
			typ = typ.ChildByFieldName("name")
		case "reference_type":
			typ = typ.ChildByFieldName("type")
		default:
			return sink.text(typ)
		}
	}
	return ""
}

// buildFunctionSignature renders name(params) -> return.
func (p *rustParser) buildFunctionSignature(node *sitter.Node, sink *symbolSink) string {
	sig := withParams(sink.field(node, "name"), sink.field(node, "parameters"))
	if ret := sink.field(node, "return_type"); ret != "" {
		sig += " -> " + collapseSpace(ret)
	}
	return sig
}
