package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/teamplatform/teamplatform/internal/model"
)

// Resource URIs.
const (
	taxonomyURI    = "teamplatform://audit/taxonomy"
	permissionsURI = "teamplatform://permissions"
)

// routePermission documents which grant an external route needs.
type routePermission struct {
	Method     string `json:"method"`
	Path       string `json:"path"`
	Permission string `json:"permission,omitempty"`
}

// externalRoutes lists the API-key routes and the permission each requires.
var externalRoutes = []routePermission{
	{Method: "GET", Path: "/api/v1/whoami"},
	{Method: "GET", Path: "/api/v1/rosters", Permission: "roster:read"},
	{Method: "POST", Path: "/api/v1/rosters", Permission: "roster:write"},
}

// registerResources adds MCP resource definitions to the server.
func (s *MCPServer) registerResources(srv *server.MCPServer) {
	srv.AddResource(
		mcp.NewResource(
			taxonomyURI,
			"Audit Taxonomy",
			mcp.WithResourceDescription("Every audit action and resource tag the audit trail can contain."),
			mcp.WithMIMEType("application/json"),
		),
		s.handleTaxonomyResource,
	)

	srv.AddResource(
		mcp.NewResource(
			permissionsURI,
			"External API Permissions",
			mcp.WithResourceDescription("Permission grammar and the grant each API-key route requires."),
			mcp.WithMIMEType("application/json"),
		),
		s.handlePermissionsResource,
	)
}

func (s *MCPServer) handleTaxonomyResource(
	ctx context.Context,
	request mcp.ReadResourceRequest,
) ([]mcp.ResourceContents, error) {

	actions := make([]string, len(model.AuditActions))
	for i, a := range model.AuditActions {
		actions[i] = a.String()
	}
	resources := make([]string, len(model.AuditResources))
	for i, r := range model.AuditResources {
		resources[i] = r.String()
	}

	return jsonResource(taxonomyURI, map[string]interface{}{
		"actions":   actions,
		"resources": resources,
		"statuses":  []model.AuditStatus{model.AuditSuccess, model.AuditFailure, model.AuditError},
	})
}

func (s *MCPServer) handlePermissionsResource(
	ctx context.Context,
	request mcp.ReadResourceRequest,
) ([]mcp.ResourceContents, error) {

	return jsonResource(permissionsURI, map[string]interface{}{
		"grammar": "resource:action, resource:*, *:action, or *",
		"routes":  externalRoutes,
	})
}

func jsonResource(uri string, v interface{}) ([]mcp.ResourceContents, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(b),
		},
	}, nil
}
