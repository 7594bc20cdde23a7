package parsers

import (
	"unsafe"

	sitter "github.com/tree-sitter/go-tree-sitter"
	typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"github.com/mvp-joe/repo-map/internal/indexer/extraction"
)

// typeScriptParser parses TypeScript and JavaScript. JavaScript is parsed with
// the TypeScript grammar (a superset); JSX and TSX use the TSX grammar.
type typeScriptParser struct {
	*treeSitterParser
}

// NewTypeScriptParser creates a new TypeScript parser.
func NewTypeScriptParser() *typeScriptParser {
	return newTypeScriptFamilyParser(typescript.LanguageTypescript(), "typescript")
}

// NewTSXParser creates a parser for .tsx files.
func NewTSXParser() *typeScriptParser {
	return newTypeScriptFamilyParser(typescript.LanguageTSX(), "typescript")
}

// NewJavaScriptParser creates a new JavaScript parser.
func NewJavaScriptParser() *typeScriptParser {
	return newTypeScriptFamilyParser(typescript.LanguageTypescript(), "javascript")
}

// NewJSXParser creates a parser for .jsx files.
func NewJSXParser() *typeScriptParser {
	return newTypeScriptFamilyParser(typescript.LanguageTSX(), "javascript")
}

func newTypeScriptFamilyParser(grammar unsafe.Pointer, lang string) *typeScriptParser {
	p := &typeScriptParser{}
	p.treeSitterParser = newTreeSitterParser(sitter.NewLanguage(grammar), lang, p.extract)
	return p
}

func (p *typeScriptParser) extract(root *sitter.Node, sink *symbolSink) {
	p.visit(root, sink)
}

func (p *typeScriptParser) visit(node *sitter.Node, sink *symbolSink) {
	for _, child := range namedChildren(node) {
		switch child.Kind() {
		case "export_statement":
			if decl := child.ChildByFieldName("declaration"); decl != nil {
				p.visitDeclaration(decl, child, sink)
			}
		case "internal_module", "module":
			p.visit(child.ChildByFieldName("body"), sink)
		default:
			p.visitDeclaration(child, child, sink)
		}
	}
}

// visitDeclaration indexes decl; anchor is the statement that carries the
// leading comment (the export statement for exported declarations).
func (p *typeScriptParser) visitDeclaration(decl, anchor *sitter.Node, sink *symbolSink) {
	doc := precedingComments(anchor, sink.source)

	switch decl.Kind() {
	case "class_declaration", "abstract_class_declaration":
		name := sink.field(decl, "name")
		sink.add(decl, extraction.KindClass, name, "", "class "+name+sink.field(decl, "type_parameters"), doc)
		p.extractMethods(decl.ChildByFieldName("body"), sink, name)
	case "interface_declaration":
		name := sink.field(decl, "name")
		sink.add(decl, extraction.KindClass, name, "", "interface "+name+sink.field(decl, "type_parameters"), doc)
	case "function_declaration", "generator_function_declaration":
		name := sink.field(decl, "name")
		sink.add(decl, extraction.KindFunction, name, "", p.buildFunctionSignature(decl, name, sink), doc)
	case "lexical_declaration", "variable_declaration":
		// const handler = (req) => { ... }
		for _, declarator := range namedChildren(decl) {
			if declarator.Kind() != "variable_declarator" {
				continue
			}
			value := declarator.ChildByFieldName("value")
			if value == nil {
				continue
			}
			switch value.Kind() {
			case "arrow_function", "function_expression", "function", "generator_function":
				name := sink.field(declarator, "name")
				sink.add(decl, extraction.KindFunction, name, "", p.buildFunctionSignature(value, name, sink), doc)
			}
		}
	}
}

func (p *typeScriptParser) extractMethods(body *sitter.Node, sink *symbolSink, class string) {
	for _, child := range namedChildren(body) {
		switch child.Kind() {
		case "method_definition", "abstract_method_signature":
			name := sink.field(child, "name")
			sink.add(child, extraction.KindMethod, name, class,
				p.buildFunctionSignature(child, name, sink), precedingComments(child, sink.source))
		}
	}
}

// buildFunctionSignature renders name(params): Return.
func (p *typeScriptParser) buildFunctionSignature(node *sitter.Node, name string, sink *symbolSink) string {
	params := sink.field(node, "parameters")
	if params == "" {
		// single bare parameter arrow function: x => x
		if param := sink.field(node, "parameter"); param != "" {
			params = "(" + param + ")"
		}
	}
	return withParams(name, params) + collapseSpace(sink.field(node, "return_type"))
}
