package parsers

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	c "github.com/tree-sitter/tree-sitter-c/bindings/go"
	cpp "github.com/tree-sitter/tree-sitter-cpp/bindings/go"

	"github.com/mvp-joe/repo-map/internal/indexer/extraction"
)

// cParser parses C and C++ files. Both grammars share node names for the
// constructs indexed here; the C++ grammar adds classes, namespaces,
// templates and qualified (Class::method) definitions.
type cParser struct {
	*treeSitterParser
}

// NewCParser creates a new C parser.
func NewCParser() *cParser {
	p := &cParser{}
	p.treeSitterParser = newTreeSitterParser(sitter.NewLanguage(c.Language()), "c", p.extract)
	return p
}

// NewCppParser creates a new C++ parser.
func NewCppParser() *cParser {
	p := &cParser{}
	p.treeSitterParser = newTreeSitterParser(sitter.NewLanguage(cpp.Language()), "cpp", p.extract)
	return p
}

func (p *cParser) extract(root *sitter.Node, sink *symbolSink) {
	p.visit(root, sink, "")
}

func (p *cParser) visit(node *sitter.Node, sink *symbolSink, class string) {
	for _, child := range namedChildren(node) {
		switch child.Kind() {
		case "function_definition":
			p.extractFunction(child, sink, class)
		case "struct_specifier", "class_specifier", "union_specifier":
			p.extractRecord(child, child, sink, "")
		case "type_definition":
			// typedef struct { ... } Name;
			if typ := child.ChildByFieldName("type"); typ != nil && typ.ChildByFieldName("name") == nil {
				p.extractRecord(typ, child, sink, sink.field(child, "declarator"))
			} else if typ != nil {
				p.extractRecord(typ, typ, sink, "")
			}
		case "declaration", "field_declaration":
			if typ := child.ChildByFieldName("type"); typ != nil {
				p.extractRecord(typ, typ, sink, "")
			}
		case "namespace_definition", "linkage_specification", "declaration_list",
			"template_declaration", "preproc_ifdef", "preproc_if", "preproc_else":
			p.visit(child, sink, class)
		}
	}
}

// extractRecord indexes a struct/class/union with a body. anchor is the node
// whose position and comments describe the record; alias names anonymous
// typedef'd records.
func (p *cParser) extractRecord(node, anchor *sitter.Node, sink *symbolSink, alias string) {
	switch node.Kind() {
	case "struct_specifier", "class_specifier", "union_specifier":
	default:
		return
	}
	body := node.ChildByFieldName("body")
	if body == nil {
		return
	}

	name := lastSegment(sink.field(node, "name"))
	if name == "" {
		name = alias
	}
	if name == "" {
		return
	}

	keyword := strings.TrimSuffix(node.Kind(), "_specifier")
	sink.add(anchor, extraction.KindClass, name, "", keyword+" "+name, precedingComments(anchor, sink.source))
	p.visit(body, sink, name)
}

func (p *cParser) extractFunction(node *sitter.Node, sink *symbolSink, class string) {
	declarator := p.functionDeclarator(node.ChildByFieldName("declarator"))
	if declarator == nil {
		return
	}

	nameNode := declarator.ChildByFieldName("declarator")
	name := sink.text(nameNode)
	parent := class
	if nameNode != nil && nameNode.Kind() == "qualified_identifier" {
		name = lastSegment(name)
		parent = lastSegment(sink.field(nameNode, "scope"))
	}
	if name == "" {
		return
	}

	signature := withParams(name, sink.field(declarator, "parameters"))
	if ret := sink.field(node, "type"); ret != "" {
		signature = collapseSpace(ret) + " " + signature
	}

	anchor := node
	if parentNode := node.Parent(); parentNode != nil && parentNode.Kind() == "template_declaration" {
		anchor = parentNode
	}
	doc := precedingComments(anchor, sink.source)

	if parent != "" {
		sink.add(node, extraction.KindMethod, name, parent, signature, doc)
		return
	}
	sink.add(node, extraction.KindFunction, name, "", signature, doc)
}

// functionDeclarator unwraps pointer and reference declarators down to the
// function_declarator.
func (p *cParser) functionDeclarator(node *sitter.Node) *sitter.Node {
	for node != nil {
		switch node.Kind() {
		case "function_declarator":
			return node
		case "pointer_declarator", "reference_declarator", "parenthesized_declarator":
			next := node.ChildByFieldName("declarator")
			if next == nil && node.NamedChildCount() > 0 {
				next = node.NamedChild(node.NamedChildCount() - 1)
			}
			node = next
		default:
			return nil
		}
	}
	return nil
}

// lastSegment returns the final component of a C++ qualified name, with any
// template arguments removed.
func lastSegment(name string) string {
	if i := strings.Index(name, "<"); i >= 0 {
		name = name[:i]
	}
	if i := strings.LastIndex(name, "::"); i >= 0 {
		name = name[i+2:]
	}
	return strings.TrimSpace(name)
}
