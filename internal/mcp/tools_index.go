package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// FilesResponse is returned by list_files.
type FilesResponse struct {
	Pattern string   `json:"pattern,omitempty"`
	Files   []string `json:"files"`
	Total   int      `json:"total"`
}

// AddListFilesTool registers the list_files tool with an MCP server.
func AddListFilesTool(s *server.MCPServer, svc QueryService) {
	tool := mcp.NewTool(
		"list_files",
		mcp.WithDescription("List indexed source files that declare at least one symbol. An optional glob filters paths; * crosses directories, so '*.py' matches nested files."),
		mcp.WithString("pattern",
			mcp.Description("Optional glob over relative paths (e.g. 'internal/*', '*.rs')")),
		mcp.WithNumber("limit",
			mcp.Description("Maximum files (default 200)")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, createListFilesHandler(svc))
}

func createListFilesHandler(svc QueryService) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args listFilesArgs
		if errResult := bindArgs(request, &args); errResult != nil {
			return errResult, nil
		}

		files, err := svc.ListFiles(ctx, args.Pattern, clampLimit(args.Limit))
		if err != nil {
			return errorResult(err), nil
		}
		return marshalToolResponse(FilesResponse{
			Pattern: args.Pattern,
			Files:   nonNil(files),
			Total:   len(files),
		})
	}
}

// AddReindexTool registers the reindex tool with an MCP server.
//
// Indexing runs in a separate process; the tool returns as soon as the run
// is started (or declined) and never waits for it.
func AddReindexTool(s *server.MCPServer, svc QueryService) {
	tool := mcp.NewTool(
		"reindex",
		mcp.WithDescription("Start a background reindex. Without force it is skipped when the index is up to date. Poll status to follow progress."),
		mcp.WithBoolean("force",
			mcp.Description("Reindex even when the index looks up to date")),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
	)

	s.AddTool(tool, createReindexHandler(svc))
}

func createReindexHandler(svc QueryService) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args reindexArgs
		if errResult := bindArgs(request, &args); errResult != nil {
			return errResult, nil
		}

		result, err := svc.TriggerReindex(ctx, args.Force)
		if err != nil {
			return errorResult(err), nil
		}
		return marshalToolResponse(result)
	}
}

// AddStatusTool registers the status tool with an MCP server. It answers
// immediately, even while a run is in flight.
func AddStatusTool(s *server.MCPServer, svc QueryService) {
	tool := mcp.NewTool(
		"status",
		mcp.WithDescription("Report index state: whether it exists, whether a run is in flight (with progress), the last error, when it was last indexed, symbol and file counts, and whether it is stale."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, createStatusHandler(svc))
}

func createStatusHandler(svc QueryService) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return marshalToolResponse(svc.Status(ctx))
	}
}
