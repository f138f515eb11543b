// Package openapi describes the HTTP surface as an OpenAPI 3.1 document.
package openapi

import (
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

// Security scheme names.
const (
	SchemeAPIKey = "apiKey"
	SchemeBearer = "bearerAuth"
)

// Generate returns the OpenAPI document for a server reachable at baseURL.
func Generate(baseURL, version string) *openapi3.T {
	if version == "" {
		version = "dev"
	}
	doc := &openapi3.T{
		OpenAPI: "3.1.0",
		Info: &openapi3.Info{
			Title:       "TeamPlatform API",
			Description: "Team management API. Every path is subject to per-IP rate limiting and answers 429 with Retry-After when the window is exhausted.",
			Version:     version,
		},
		Servers: openapi3.Servers{
			{URL: baseURL},
		},
	}

	components := openapi3.NewComponents()
	components.Schemas = componentSchemas()
	components.SecuritySchemes = openapi3.SecuritySchemes{
		SchemeAPIKey: &openapi3.SecuritySchemeRef{
			Value: &openapi3.SecurityScheme{
				Type:        "apiKey",
				In:          "header",
				Name:        "X-API-Key",
				Description: "API key issued by an administrator. May also be sent as a Bearer token.",
			},
		},
		SchemeBearer: &openapi3.SecuritySchemeRef{
			Value: &openapi3.SecurityScheme{
				Type:         "http",
				Scheme:       "bearer",
				BearerFormat: "JWT",
			},
		},
	}
	doc.Components = &components
	doc.Paths = openapi3.NewPaths()

	addSessionPaths(doc)
	addAdminPaths(doc)
	addRosterPaths(doc)
	addExternalPaths(doc)
	return doc
}

// ─── Paths ──────────────────────────────────────────────────────────────────

func addSessionPaths(doc *openapi3.T) {
	doc.Paths.Set("/api/auth/login", &openapi3.PathItem{
		Post: &openapi3.Operation{
			Tags:        []string{"auth"},
			Summary:     "Sign in",
			OperationID: "login",
			RequestBody: jsonBody(ref("LoginRequest")),
			Responses:   newResponses("200", "Signed in", ref("LoginResponse")),
		},
	})
	doc.Paths.Set("/api/auth/logout", &openapi3.PathItem{
		Post: secured(SchemeBearer, &openapi3.Operation{
			Tags:        []string{"auth"},
			Summary:     "Sign out",
			OperationID: "logout",
			Responses:   newResponses("200", "Signed out", objectSchema(nil)),
		}),
	})
	doc.Paths.Set("/api/auth/me", &openapi3.PathItem{
		Get: secured(SchemeBearer, &openapi3.Operation{
			Tags:        []string{"auth"},
			Summary:     "Current user",
			OperationID: "me",
			Responses:   newResponses("200", "Signed-in user", ref("User")),
		}),
	})
}

func addAdminPaths(doc *openapi3.T) {
	doc.Paths.Set("/api/admin/api-keys", &openapi3.PathItem{
		Get: secured(SchemeBearer, &openapi3.Operation{
			Tags:        []string{"admin"},
			Summary:     "List API keys",
			Description: "Newest first. Keys are never included.",
			OperationID: "listApiKeys",
			Responses:   newResponses("200", "API keys", listOf("APIKey")),
		}),
		Post: secured(SchemeBearer, &openapi3.Operation{
			Tags:        []string{"admin"},
			Summary:     "Issue an API key",
			OperationID: "createApiKey",
			RequestBody: jsonBody(ref("CreateAPIKeyRequest")),
			Responses:   newResponses("201", "Issued key. The plaintext is shown only in this response.", ref("CreatedAPIKey")),
		}),
		Delete: secured(SchemeBearer, &openapi3.Operation{
			Tags:        []string{"admin"},
			Summary:     "Revoke an API key by query parameter",
			OperationID: "revokeApiKeyByQuery",
			Parameters:  openapi3.Parameters{queryParam("id", "API key ID", true)},
			Responses:   newResponses("200", "Revoked", ref("Message")),
		}),
	})
	doc.Paths.Set("/api/admin/api-keys/{keyId}", &openapi3.PathItem{
		Delete: secured(SchemeBearer, &openapi3.Operation{
			Tags:        []string{"admin"},
			Summary:     "Revoke an API key",
			Description: "Idempotent: revoking an inactive key succeeds.",
			OperationID: "revokeApiKey",
			Parameters:  openapi3.Parameters{pathParam("keyId")},
			Responses:   newResponses("200", "Revoked", ref("Message")),
		}),
	})
	doc.Paths.Set("/api/admin/audit-logs", &openapi3.PathItem{
		Get: secured(SchemeBearer, &openapi3.Operation{
			Tags:        []string{"admin"},
			Summary:     "Query audit logs",
			Description: "Newest first.",
			OperationID: "listAuditLogs",
			Parameters: openapi3.Parameters{
				queryParam("action", "Audit action tag", false),
				queryParam("resource", "Audit resource tag", false),
				queryParam("userId", "Actor user ID", false),
				queryParam("startDate", "Inclusive lower bound (RFC 3339 or YYYY-MM-DD)", false),
				queryParam("endDate", "Inclusive upper bound (RFC 3339 or YYYY-MM-DD)", false),
				queryParam("limit", "Page size (default 100, max 1000)", false),
				queryParam("offset", "Records to skip", false),
			},
			Responses: newResponses("200", "Audit records", listOf("AuditLog")),
		}),
	})
}

func addRosterPaths(doc *openapi3.T) {
	doc.Paths.Set("/api/rosters", &openapi3.PathItem{
		Get: secured(SchemeBearer, &openapi3.Operation{
			Tags:        []string{"rosters"},
			Summary:     "List rosters",
			OperationID: "listRosters",
			Responses:   newResponses("200", "Rosters", listOf("Roster")),
		}),
		Post: secured(SchemeBearer, &openapi3.Operation{
			Tags:        []string{"rosters"},
			Summary:     "Create a roster",
			OperationID: "createRoster",
			RequestBody: jsonBody(ref("RosterInput")),
			Responses:   newResponses("201", "Created roster", ref("Roster")),
		}),
	})
	doc.Paths.Set("/api/rosters/{id}", &openapi3.PathItem{
		Delete: secured(SchemeBearer, &openapi3.Operation{
			Tags:        []string{"rosters"},
			Summary:     "Delete a roster",
			OperationID: "deleteRoster",
			Parameters:  openapi3.Parameters{pathParam("id")},
			Responses:   newResponses("200", "Deleted", objectSchema(nil)),
		}),
	})
}

func addExternalPaths(doc *openapi3.T) {
	doc.Paths.Set("/api/v1/rosters", &openapi3.PathItem{
		Get: secured(SchemeAPIKey, &openapi3.Operation{
			Tags:        []string{"external"},
			Summary:     "List rosters (requires roster:read)",
			OperationID: "externalListRosters",
			Responses:   newResponses("200", "Rosters", listOf("Roster")),
		}),
		Post: secured(SchemeAPIKey, &openapi3.Operation{
			Tags:        []string{"external"},
			Summary:     "Create a roster (requires roster:write)",
			OperationID: "externalCreateRoster",
			RequestBody: jsonBody(ref("RosterInput")),
			Responses:   newResponses("201", "Created roster", ref("Roster")),
		}),
	})
	doc.Paths.Set("/api/v1/whoami", &openapi3.PathItem{
		Get: secured(SchemeAPIKey, &openapi3.Operation{
			Tags:        []string{"external"},
			Summary:     "Describe the presented API key",
			OperationID: "whoami",
			Responses:   newResponses("200", "Key identity", ref("KeyIdentity")),
		}),
	})
}

// ─── Builders ───────────────────────────────────────────────────────────────

func secured(scheme string, op *openapi3.Operation) *openapi3.Operation {
	op.Security = &openapi3.SecurityRequirements{{scheme: {}}}
	errorRef := ref("ErrorResponse")
	forbidden := "Authenticated but not permitted"
	op.Responses.Set("403", &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &forbidden,
			Content:     openapi3.NewContentWithJSONSchemaRef(errorRef),
		},
	})
	return op
}

func jsonBody(schema *openapi3.SchemaRef) *openapi3.RequestBodyRef {
	return &openapi3.RequestBodyRef{
		Value: &openapi3.RequestBody{
			Required: true,
			Content:  openapi3.NewContentWithJSONSchemaRef(schema),
		},
	}
}

func pathParam(name string) *openapi3.ParameterRef {
	return &openapi3.ParameterRef{
		Value: &openapi3.Parameter{
			Name:     name,
			In:       "path",
			Required: true,
			Schema:   stringSchema("", ""),
		},
	}
}

func queryParam(name, description string, required bool) *openapi3.ParameterRef {
	return &openapi3.ParameterRef{
		Value: &openapi3.Parameter{
			Name:        name,
			In:          "query",
			Description: description,
			Required:    required,
			Schema:      stringSchema("", ""),
		},
	}
}

// newResponses builds a Responses map with a success response and the
// standard error responses.
func newResponses(statusCode, description string, schema *openapi3.SchemaRef) *openapi3.Responses {
	responses := openapi3.NewResponses()

	successDesc := description
	responses.Set(statusCode, &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &successDesc,
			Content:     openapi3.NewContentWithJSONSchemaRef(schema),
		},
	})

	errorRef := ref("ErrorResponse")
	for code, desc := range map[string]string{
		"400": "Bad request",
		"401": "Unauthorized",
		"500": "Internal server error",
	} {
		d := desc
		responses.Set(code, &openapi3.ResponseRef{
			Value: &openapi3.Response{
				Description: &d,
				Content:     openapi3.NewContentWithJSONSchemaRef(errorRef),
			},
		})
	}

	limited := fmt.Sprintf("Rate limited; see %s", "Retry-After")
	responses.Set("429", &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &limited,
			Content:     openapi3.NewContentWithJSONSchemaRef(ref("RateLimited")),
		},
	})
	return responses
}
