package parsers

import (
	sitter "github.com/tree-sitter/go-tree-sitter"
	python "github.com/tree-sitter/tree-sitter-python/bindings/go"

	"github.com/mvp-joe/repo-map/internal/indexer/extraction"
)

// pythonParser parses Python files.
//
// Classes are collected at any depth, methods only when they sit directly in a
// class body and functions only at module level.
type pythonParser struct {
	*treeSitterParser
}

// NewPythonParser creates a new Python parser.
func NewPythonParser() *pythonParser {
	p := &pythonParser{}
	lang := sitter.NewLanguage(python.Language())
	p.treeSitterParser = newTreeSitterParser(lang, "python", p.extract)
	return p
}

func (p *pythonParser) extract(root *sitter.Node, sink *symbolSink) {
	p.visit(root, sink, "", true)
}

// visit walks statements. class is the enclosing class when node is a class
// body; direct reports whether node's children are at module or class-body
// level rather than nested in some other block.
func (p *pythonParser) visit(node *sitter.Node, sink *symbolSink, class string, direct bool) {
	for _, child := range namedChildren(node) {
		def := child
		if child.Kind() == "decorated_definition" {
			def = child.ChildByFieldName("definition")
			if def == nil {
				continue
			}
		}

		switch def.Kind() {
		case "class_definition":
			p.extractClass(def, sink)
		case "function_definition":
			p.extractFunction(def, sink, class, direct)
		default:
			p.visit(def, sink, "", false)
		}
	}
}

func (p *pythonParser) extractClass(node *sitter.Node, sink *symbolSink) {
	name := sink.field(node, "name")
	body := node.ChildByFieldName("body")

	signature := name
	if bases := sink.field(node, "superclasses"); bases != "" {
		signature += collapseSpace(bases)
	}

	sink.add(node, extraction.KindClass, name, "", signature, p.docstring(body, sink))
	if body != nil {
		p.visit(body, sink, name, true)
	}
}

func (p *pythonParser) extractFunction(node *sitter.Node, sink *symbolSink, class string, direct bool) {
	if direct {
		name := sink.field(node, "name")
		signature := p.buildFunctionSignature(node, sink)
		doc := p.docstring(node.ChildByFieldName("body"), sink)
		if class != "" {
			sink.add(node, extraction.KindMethod, name, class, signature, doc)
		} else {
			sink.add(node, extraction.KindFunction, name, "", signature, doc)
		}
	}

	// Classes declared inside function bodies are still indexed.
	if body := node.ChildByFieldName("body"); body != nil {
		p.visit(body, sink, "", false)
	}
}

// buildFunctionSignature renders name(params) -> return.
func (p *pythonParser) buildFunctionSignature(node *sitter.Node, sink *symbolSink) string {
	sig := withParams(sink.field(node, "name"), sink.field(node, "parameters"))
	if ret := sink.field(node, "return_type"); ret != "" {
		sig += " -> " + collapseSpace(ret)
	}
	return sig
}

// docstring returns the string literal that opens a block, if any.
func (p *pythonParser) docstring(body *sitter.Node, sink *symbolSink) string {
	if body == nil || body.NamedChildCount() == 0 {
		return ""
	}
	first := body.NamedChild(0)
	if first == nil || first.Kind() != "expression_statement" || first.NamedChildCount() == 0 {
		return ""
	}
	lit := first.NamedChild(0)
	if lit == nil || lit.Kind() != "string" {
		return ""
	}
	return unquoteDocstring(sink.text(lit))
}
