package parsers

import (
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"strings"

	"github.com/mvp-joe/repo-map/internal/indexer/extraction"
)

// goParser parses Go files with the standard library's go/ast. Named types
// are reported as classes, methods carry their receiver's base type as parent.
type goParser struct{}

// NewGoParser creates a new Go parser.
func NewGoParser() *goParser {
	return &goParser{}
}

func (p *goParser) Language() string {
	return "go"
}

// Parse parses a Go source file. Files with syntax errors still yield the
// declarations go/parser could recover.
func (p *goParser) Parse(path string, source []byte) extraction.Result {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, source, parser.ParseComments|parser.SkipObjectResolution)
	if file == nil {
		return extraction.Skip("failed to parse go file: %v", err)
	}

	var symbols []extraction.Symbol
	add := func(node ast.Node, kind extraction.Kind, name, parent, signature string, doc *ast.CommentGroup) {
		symbols = append(symbols, extraction.Symbol{
			Name:       name,
			Kind:       kind,
			Signature:  signature,
			DocSummary: summarizeDoc(doc.Text()),
			FilePath:   path,
			Line:       fset.Position(node.Pos()).Line,
			EndLine:    fset.Position(node.End()).Line,
			Parent:     parent,
			Language:   "go",
		})
	}

	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.GenDecl:
			if d.Tok != token.TYPE {
				continue
			}
			for _, spec := range d.Specs {
				ts, ok := spec.(*ast.TypeSpec)
				if !ok {
					continue
				}
				doc := ts.Doc
				if doc == nil && len(d.Specs) == 1 {
					doc = d.Doc
				}
				add(ts, extraction.KindClass, ts.Name.Name, "", "type "+ts.Name.Name+" "+typeKeyword(ts.Type), doc)
			}
		case *ast.FuncDecl:
			signature := d.Name.Name + fieldList(d.Type.Params, true)
			if results := fieldList(d.Type.Results, false); results != "" {
				signature += " " + results
			}
			if d.Recv != nil && len(d.Recv.List) > 0 {
				add(d, extraction.KindMethod, d.Name.Name, receiverName(d.Recv.List[0].Type), signature, d.Doc)
				continue
			}
			add(d, extraction.KindFunction, d.Name.Name, "", signature, d.Doc)
		}
	}

	return extraction.Result{Symbols: symbols}
}

func typeKeyword(expr ast.Expr) string {
	switch expr.(type) {
	case *ast.StructType:
		return "struct"
	case *ast.InterfaceType:
		return "interface"
	default:
		return types.ExprString(expr)
	}
}

// receiverName strips pointers and type parameters from a receiver type.
func receiverName(expr ast.Expr) string {
	for {
		switch t := expr.(type) {
		case *ast.StarExpr:
			expr = t.X
		case *ast.IndexExpr:
			expr = t.X
		case *ast.IndexListExpr:
			expr = t.X
		case *ast.Ident:
			return t.Name
		default:
			return types.ExprString(expr)
		}
	}
}

// fieldList renders parameters or results. Results with a single unnamed
// entry are rendered without parentheses.
func fieldList(fields *ast.FieldList, params bool) string {
	if fields == nil || len(fields.List) == 0 {
		if params {
			return "()"
		}
		return ""
	}

	parts := make([]string, 0, len(fields.List))
	for _, f := range fields.List {
		typ := types.ExprString(f.Type)
		if len(f.Names) == 0 {
			parts = append(parts, typ)
			continue
		}
		names := make([]string, len(f.Names))
		for i, n := range f.Names {
			names[i] = n.Name
		}
		parts = append(parts, strings.Join(names, ", ")+" "+typ)
	}

	if !params && len(fields.List) == 1 && len(fields.List[0].Names) == 0 {
		return parts[0]
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
