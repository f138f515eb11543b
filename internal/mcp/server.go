// Package mcp exposes read-only admission administration as Model Context
// Protocol tools, so operators can inspect keys and the audit trail from an
// MCP client.
package mcp

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/teamplatform/teamplatform/internal/model"
)

// KeyLister lists issued API keys.
type KeyLister interface {
	List(ctx context.Context) ([]model.APIKey, error)
}

// AuditQuerier reads the audit trail.
type AuditQuerier interface {
	Query(ctx context.Context, f model.AuditFilter) ([]model.AuditLog, int64, error)
}

// MCPServer wraps the mcp-go server with TeamPlatform tool and resource
// registrations.
type MCPServer struct {
	keys   KeyLister
	audit  AuditQuerier
	logger *slog.Logger
	server *server.MCPServer
}

// NewMCPServer creates an MCPServer with every tool and resource registered.
func NewMCPServer(keys KeyLister, audit AuditQuerier, version string, logger *slog.Logger) *MCPServer {
	s := &MCPServer{
		keys:   keys,
		audit:  audit,
		logger: logger,
	}

	mcpServer := server.NewMCPServer(
		"TeamPlatform Admin",
		version,
		server.WithResourceCapabilities(true, false),
		server.WithToolCapabilities(true),
	)

	s.registerTools(mcpServer)
	s.registerResources(mcpServer)

	s.server = mcpServer
	return s
}

// Server returns the underlying mcp-go MCPServer instance.
func (s *MCPServer) Server() *server.MCPServer {
	return s.server
}

// ServeStdio serves MCP over stdin/stdout for clients that launch the
// process as a subprocess.
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server in stdio mode")
	return server.ServeStdio(s.server)
}

// ServeHTTP serves MCP in Streamable HTTP mode on addr (e.g. ":3001").
func (s *MCPServer) ServeHTTP(addr string) error {
	httpServer := server.NewStreamableHTTPServer(s.server)
	s.logger.Info("MCP HTTP server starting", "addr", addr)
	return httpServer.Start(addr)
}

func readOnlyAnnotation() mcp.ToolAnnotation {
	return mcp.ToolAnnotation{
		ReadOnlyHint: boolPtr(true),
	}
}

func boolPtr(b bool) *bool {
	return &b
}
