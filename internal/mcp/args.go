package mcp

import (
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mvp-joe/repo-map/internal/indexer/extraction"
	mcputils "github.com/mvp-joe/repo-map/internal/mcp-utils"
	"github.com/mvp-joe/repo-map/internal/query"
)

// maxLimit caps any caller-supplied result limit.
const maxLimit = 1000

type searchArgs struct {
	Pattern string `json:"pattern"`
	Kind    string `json:"kind"`
	Limit   int    `json:"limit"`
}

type fileSymbolsArgs struct {
	File string `json:"file"`
}

type symbolContentArgs struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	File string `json:"file"`
}

type listFilesArgs struct {
	Pattern string `json:"pattern"`
	Limit   int    `json:"limit"`
}

type reindexArgs struct {
	Force bool `json:"force"`
}

// bindArgs checks the argument format and decodes it into target. Failures
// come back as a ready-to-return invalid_argument result.
func bindArgs[T any](request mcp.CallToolRequest, target *T) *mcp.CallToolResult {
	if _, errResult := parseToolArguments(request); errResult != nil {
		return errResult
	}
	if err := mcputils.CoerceBindArguments(request, target); err != nil {
		return errorResult(fmt.Errorf("%w: %v", query.ErrInvalidArgument, err))
	}
	return nil
}

// parseKind accepts an optional symbol kind, case-insensitively.
func parseKind(raw string) (extraction.Kind, error) {
	kind, err := extraction.ParseKind(strings.ToLower(strings.TrimSpace(raw)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", query.ErrInvalidArgument, err)
	}
	return kind, nil
}

// clampLimit leaves 0 (use the service default) alone and bounds the rest
// to [1, maxLimit].
func clampLimit(limit int) int {
	switch {
	case limit == 0:
		return 0
	case limit < 0:
		return 1
	case limit > maxLimit:
		return maxLimit
	}
	return limit
}
