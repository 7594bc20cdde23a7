package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mvp-joe/repo-map/internal/indexer"
	"github.com/mvp-joe/repo-map/internal/indexer/extraction"
	"github.com/mvp-joe/repo-map/internal/query"
)

// Error codes carried in every error result. Clients branch on these, not
// on message text.
const (
	CodeNotIndexed      = "not_indexed"
	CodeIndexFailed     = "index_failed"
	CodeNotFound        = "not_found"
	CodeAmbiguous       = "ambiguous"
	CodeFileMissing     = "file_missing"
	CodeFileUnreadable  = "file_unreadable"
	CodeInProgress      = "in_progress"
	CodeInvalidArgument = "invalid_argument"
	CodeInternal        = "internal"
)

// ErrorResponse is the JSON body of an error result.
type ErrorResponse struct {
	Error    string              `json:"error"`
	Code     string              `json:"code"`
	Retry    bool                `json:"retry"`
	Matches  []extraction.Symbol `json:"matches,omitempty"`
	Progress *ProgressResponse   `json:"progress,omitempty"`
}

// ProgressResponse is the progress snapshot returned instead of results when
// a read gave up waiting for an in-flight run.
type ProgressResponse struct {
	Status       indexer.Phase `json:"status"`
	Percent      float64       `json:"percent"`
	FilesParsed  int           `json:"files_parsed"`
	FilesToParse int           `json:"files_to_parse"`
	FilesTotal   int           `json:"files_total"`
	SymbolsFound int           `json:"symbols_found"`
	Elapsed      string        `json:"elapsed"`
	ETA          string        `json:"eta,omitempty"`
}

// parseToolArguments validates and extracts the arguments map from an MCP tool request.
// A request without arguments yields an empty map.
func parseToolArguments(request mcp.CallToolRequest) (map[string]any, *mcp.CallToolResult) {
	raw := request.GetRawArguments()
	if raw == nil {
		return map[string]any{}, nil
	}
	argsMap, ok := raw.(map[string]any)
	if !ok {
		return nil, errorResult(fmt.Errorf("%w: invalid arguments format", query.ErrInvalidArgument))
	}
	return argsMap, nil
}

// marshalToolResponse marshals a response object to JSON and returns it as an MCP tool result.
func marshalToolResponse(response any) (*mcp.CallToolResult, error) {
	jsonData, err := json.Marshal(response)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}
	return mcp.NewToolResultText(string(jsonData)), nil
}

// errorResult converts a query error into a structured error result.
func errorResult(err error) *mcp.CallToolResult {
	resp := ErrorResponse{Error: err.Error(), Code: errorCode(err)}

	var ambiguous *query.AmbiguousError
	if errors.As(err, &ambiguous) {
		resp.Matches = ambiguous.Matches
	}

	var inProgress *query.InProgressError
	if errors.As(err, &inProgress) {
		resp.Retry = true
		resp.Progress = progressResponse(inProgress)
	}
	if errors.Is(err, query.ErrNotIndexed) {
		resp.Retry = true
	}

	jsonData, mErr := json.Marshal(resp)
	if mErr != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultError(string(jsonData))
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, query.ErrInProgress):
		return CodeInProgress
	case errors.Is(err, query.ErrNotIndexed):
		return CodeNotIndexed
	case errors.Is(err, query.ErrIndexFailed):
		return CodeIndexFailed
	case errors.Is(err, query.ErrAmbiguous):
		return CodeAmbiguous
	case errors.Is(err, query.ErrSymbolNotFound):
		return CodeNotFound
	case errors.Is(err, query.ErrFileMissing):
		return CodeFileMissing
	case errors.Is(err, query.ErrFileUnreadable):
		return CodeFileUnreadable
	case errors.Is(err, query.ErrInvalidArgument):
		return CodeInvalidArgument
	}
	return CodeInternal
}

func progressResponse(e *query.InProgressError) *ProgressResponse {
	p := &ProgressResponse{
		Status:       e.Progress.Phase,
		Percent:      e.Percent,
		FilesParsed:  e.Progress.FilesParsed,
		FilesToParse: e.Progress.FilesToParse,
		FilesTotal:   e.Progress.FilesTotal,
		SymbolsFound: e.Progress.SymbolsFound,
		Elapsed:      e.Elapsed.Round(time.Second).String(),
	}
	if e.ETA > 0 {
		p.ETA = e.ETA.Round(time.Second).String()
	}
	return p
}
