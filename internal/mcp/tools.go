package mcp

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/teamplatform/teamplatform/internal/model"
	"github.com/teamplatform/teamplatform/internal/service"
)

// Audit query paging bounds, matching the HTTP endpoint.
const (
	defaultAuditLimit = 100
	maxAuditLimit     = 1000
)

// registerTools registers all TeamPlatform MCP tools on the given server.
func (s *MCPServer) registerTools(srv *server.MCPServer) {
	srv.AddTool(
		mcp.NewTool("teamplatform_list_api_keys",
			mcp.WithDescription(
				"List every issued API key, newest first. Returns id, name, permissions, "+
					"display prefix, active flag, expiry, and usage counters. Key material "+
					"is never included.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithBoolean("active_only",
				mcp.Description("Only return keys that are active and not expired"),
			),
		),
		s.handleListAPIKeys,
	)

	srv.AddTool(
		mcp.NewTool("teamplatform_query_audit_logs",
			mcp.WithDescription(
				"Query the audit trail, newest first. All filters are optional and combine "+
					"with AND. Actions look like 'apikey.create' or 'roster.delete'; resources "+
					"like 'ApiKey' or 'Roster'. Read teamplatform://audit/taxonomy for the full list.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithString("action", mcp.Description("Audit action tag, e.g. apikey.revoke")),
			mcp.WithString("resource", mcp.Description("Audit resource tag, e.g. ApiKey")),
			mcp.WithString("user_id", mcp.Description("Only records by this actor")),
			mcp.WithString("start_date", mcp.Description("Inclusive lower bound (RFC 3339 or YYYY-MM-DD)")),
			mcp.WithString("end_date", mcp.Description("Inclusive upper bound (RFC 3339 or YYYY-MM-DD)")),
			mcp.WithNumber("limit", mcp.Description("Maximum records to return (default 100, max 1000)")),
			mcp.WithNumber("offset", mcp.Description("Records to skip for pagination")),
		),
		s.handleQueryAuditLogs,
	)

	srv.AddTool(
		mcp.NewTool("teamplatform_check_permission",
			mcp.WithDescription(
				"Evaluate whether a set of held permission grants satisfies a required "+
					"permission. Grants are 'resource:action', 'resource:*', '*:action', or '*'.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithArray("permissions",
				mcp.Required(),
				mcp.Description("Permissions held by the key"),
				mcp.WithStringItems(),
			),
			mcp.WithString("required",
				mcp.Required(),
				mcp.Description("Permission the operation needs, e.g. roster:write"),
			),
		),
		s.handleCheckPermission,
	)
}

// =========================================================================
// Tool handlers
// =========================================================================

func (s *MCPServer) handleListAPIKeys(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	keys, err := s.keys.List(ctx)
	if err != nil {
		s.logger.Error("mcp: list api keys failed", "error", err)
		return toolError("Failed to fetch API keys")
	}

	if request.GetBool("active_only", false) {
		now := time.Now()
		live := make([]model.APIKey, 0, len(keys))
		for _, k := range keys {
			if k.IsActive && !k.Expired(now) {
				live = append(live, k)
			}
		}
		keys = live
	}
	if keys == nil {
		keys = []model.APIKey{}
	}

	return successJSON(map[string]interface{}{
		"keys":  keys,
		"count": len(keys),
	})
}

func (s *MCPServer) handleQueryAuditLogs(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	f := model.AuditFilter{
		UserID: optionalString(request, "user_id"),
		Limit:  clamp(optionalInt(request, "limit", defaultAuditLimit), 1, maxAuditLimit),
		Offset: clamp(optionalInt(request, "offset", 0), 0, 1<<31-1),
	}

	if v := optionalString(request, "action"); v != "" {
		a, err := model.ParseAuditAction(v)
		if err != nil {
			return toolError("Invalid action %q. Read teamplatform://audit/taxonomy for valid actions.", v)
		}
		f.Action = a
	}
	if v := optionalString(request, "resource"); v != "" {
		r, err := model.ParseAuditResource(v)
		if err != nil {
			return toolError("Invalid resource %q. Read teamplatform://audit/taxonomy for valid resources.", v)
		}
		f.Resource = r
	}

	var err error
	if f.StartDate, err = optionalDate(request, "start_date", false); err != nil {
		return toolError("%v", err)
	}
	if f.EndDate, err = optionalDate(request, "end_date", true); err != nil {
		return toolError("%v", err)
	}
	if f.StartDate != nil && f.EndDate != nil && f.EndDate.Before(*f.StartDate) {
		return toolError("end_date must not be before start_date")
	}

	logs, total, err := s.audit.Query(ctx, f)
	if err != nil {
		s.logger.Error("mcp: audit query failed", "error", err)
		return toolError("Failed to fetch audit logs")
	}
	if logs == nil {
		logs = []model.AuditLog{}
	}

	return successJSON(map[string]interface{}{
		"records": logs,
		"count":   len(logs),
		"total":   total,
		"limit":   f.Limit,
		"offset":  f.Offset,
	})
}

func (s *MCPServer) handleCheckPermission(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	required, err := requireString(request, "required")
	if err != nil {
		return toolError("%v", err)
	}
	held := optionalStringSlice(request, "permissions")

	var malformed []string
	for _, p := range held {
		if !service.ValidPermission(p) {
			malformed = append(malformed, p)
		}
	}

	return successJSON(map[string]interface{}{
		"required":  required,
		"allowed":   service.HasPermission(held, required),
		"malformed": malformed,
	})
}
