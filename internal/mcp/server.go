package mcp

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"

	"github.com/mvp-joe/repo-map/internal/indexer/extraction"
	"github.com/mvp-joe/repo-map/internal/query"
)

// QueryService is the query surface the tools expose. *query.Service
// implements it.
type QueryService interface {
	Search(ctx context.Context, pattern string, kind extraction.Kind, limit int) ([]extraction.Symbol, error)
	FileSymbols(ctx context.Context, file string) ([]extraction.Symbol, error)
	SymbolContent(ctx context.Context, name string, kind extraction.Kind, file string) (*query.Content, error)
	ListFiles(ctx context.Context, pattern string, limit int) ([]string, error)
	Status(ctx context.Context) query.Status
	TriggerReindex(ctx context.Context, force bool) (query.ReindexResult, error)
}

var _ QueryService = (*query.Service)(nil)

// MCPServer manages the MCP server lifecycle.
type MCPServer struct {
	mcp *server.MCPServer
}

// NewMCPServer creates an MCP server exposing every repo-map tool over svc.
func NewMCPServer(svc QueryService, version string) *MCPServer {
	mcpServer := server.NewMCPServer(
		"repomap",
		version,
		server.WithToolCapabilities(true),
	)
	AddTools(mcpServer, svc)
	return &MCPServer{mcp: mcpServer}
}

// AddTools registers the six repo-map tools.
func AddTools(s *server.MCPServer, svc QueryService) {
	AddSearchSymbolsTool(s, svc)
	AddFileSymbolsTool(s, svc)
	AddSymbolContentTool(s, svc)
	AddListFilesTool(s, svc)
	AddReindexTool(s, svc)
	AddStatusTool(s, svc)
}

// Serve runs the MCP server on stdio and blocks until stdin closes, a
// shutdown signal arrives, or ctx is cancelled.
func (s *MCPServer) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting MCP server on stdio...")
		if err := server.ServeStdio(s.mcp); err != nil {
			errCh <- fmt.Errorf("MCP server error: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case <-sigCh:
		log.Printf("Received shutdown signal, stopping gracefully...")
		return nil
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
