package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mvp-joe/repo-map/internal/indexer/extraction"
	"github.com/mvp-joe/repo-map/internal/query"
)

// SymbolsResponse is returned by search_symbols and get_file_symbols.
type SymbolsResponse struct {
	Pattern string              `json:"pattern,omitempty"`
	File    string              `json:"file,omitempty"`
	Symbols []extraction.Symbol `json:"symbols"`
	Total   int                 `json:"total"`
}

// ContentResponse is returned by get_symbol_content.
type ContentResponse struct {
	Symbol    extraction.Symbol `json:"symbol"`
	Location  string            `json:"location"`
	StartLine int               `json:"start_line"`
	EndLine   int               `json:"end_line"`
	Estimated bool              `json:"estimated"`
	Content   string            `json:"content"`
}

// AddSearchSymbolsTool registers the search_symbols tool with an MCP server.
// This function is composable - it can be combined with other tool registrations.
func AddSearchSymbolsTool(s *server.MCPServer, svc QueryService) {
	tool := mcp.NewTool(
		"search_symbols",
		mcp.WithDescription("Find classes, functions and methods by name. The pattern is a glob: * matches any run of characters, ? one character (e.g. 'get_*', '*Handler')."),
		mcp.WithString("pattern",
			mcp.Required(),
			mcp.Description("Glob pattern matched against the symbol name")),
		mcp.WithString("kind",
			mcp.Description("Optional kind filter: class, function or method")),
		mcp.WithNumber("limit",
			mcp.Description("Maximum results (default 20)")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, createSearchSymbolsHandler(svc))
}

func createSearchSymbolsHandler(svc QueryService) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args searchArgs
		if errResult := bindArgs(request, &args); errResult != nil {
			return errResult, nil
		}
		if args.Pattern == "" {
			return errorResult(fmt.Errorf("%w: pattern parameter is required", query.ErrInvalidArgument)), nil
		}
		kind, err := parseKind(args.Kind)
		if err != nil {
			return errorResult(err), nil
		}

		symbols, err := svc.Search(ctx, args.Pattern, kind, clampLimit(args.Limit))
		if err != nil {
			return errorResult(err), nil
		}
		return marshalToolResponse(SymbolsResponse{
			Pattern: args.Pattern,
			Symbols: nonNil(symbols),
			Total:   len(symbols),
		})
	}
}

// AddFileSymbolsTool registers the get_file_symbols tool with an MCP server.
func AddFileSymbolsTool(s *server.MCPServer, svc QueryService) {
	tool := mcp.NewTool(
		"get_file_symbols",
		mcp.WithDescription("List every class, function and method declared in one file, in line order."),
		mcp.WithString("file",
			mcp.Required(),
			mcp.Description("File path relative to the project root (absolute paths inside the root are accepted)")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, createFileSymbolsHandler(svc))
}

func createFileSymbolsHandler(svc QueryService) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args fileSymbolsArgs
		if errResult := bindArgs(request, &args); errResult != nil {
			return errResult, nil
		}
		if args.File == "" {
			return errorResult(fmt.Errorf("%w: file parameter is required", query.ErrInvalidArgument)), nil
		}

		symbols, err := svc.FileSymbols(ctx, args.File)
		if err != nil {
			return errorResult(err), nil
		}
		return marshalToolResponse(SymbolsResponse{
			File:    args.File,
			Symbols: nonNil(symbols),
			Total:   len(symbols),
		})
	}
}

// AddSymbolContentTool registers the get_symbol_content tool with an MCP server.
//
// The source is read from the working tree, not from the index, so edits
// made since the last run are visible as long as line numbers still hold.
func AddSymbolContentTool(s *server.MCPServer, svc QueryService) {
	tool := mcp.NewTool(
		"get_symbol_content",
		mcp.WithDescription("Return the source code of one symbol. Use 'Class.method' to qualify methods. When several symbols share the name, the error lists them; pass kind or file to pick one."),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Symbol name, optionally qualified as Parent.member")),
		mcp.WithString("kind",
			mcp.Description("Optional kind filter: class, function or method")),
		mcp.WithString("file",
			mcp.Description("Optional file path to disambiguate")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, createSymbolContentHandler(svc))
}

func createSymbolContentHandler(svc QueryService) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args symbolContentArgs
		if errResult := bindArgs(request, &args); errResult != nil {
			return errResult, nil
		}
		if strings.TrimSpace(args.Name) == "" {
			return errorResult(fmt.Errorf("%w: name parameter is required", query.ErrInvalidArgument)), nil
		}
		kind, err := parseKind(args.Kind)
		if err != nil {
			return errorResult(err), nil
		}

		content, err := svc.SymbolContent(ctx, args.Name, kind, args.File)
		if err != nil {
			return errorResult(err), nil
		}
		return marshalToolResponse(ContentResponse{
			Symbol:    content.Symbol,
			Location:  content.Location(),
			StartLine: content.StartLine,
			EndLine:   content.EndLine,
			Estimated: content.Estimated,
			Content:   content.Source,
		})
	}
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
