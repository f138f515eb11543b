package openapi

import (
	"github.com/getkin/kin-openapi/openapi3"

	"github.com/teamplatform/teamplatform/internal/model"
)

// ─── Schema primitives ──────────────────────────────────────────────────────

func stringSchema(format, description string) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{
		Type:        &openapi3.Types{"string"},
		Format:      format,
		Description: description,
	}}
}

func integerSchema(format, description string) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{
		Type:        &openapi3.Types{"integer"},
		Format:      format,
		Description: description,
	}}
}

func booleanSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"boolean"}}}
}

func enumSchema(values []string) *openapi3.SchemaRef {
	enum := make([]interface{}, len(values))
	for i, v := range values {
		enum[i] = v
	}
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Enum: enum}}
}

func arrayOf(items *openapi3.SchemaRef) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"array"}, Items: items}}
}

func objectSchema(props openapi3.Schemas, required ...string) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{
		Type:       &openapi3.Types{"object"},
		Properties: props,
		Required:   required,
	}}
}

func ref(name string) *openapi3.SchemaRef {
	return openapi3.NewSchemaRef("#/components/schemas/"+name, nil)
}

// listOf wraps a component in the {resource, meta} list envelope.
func listOf(name string) *openapi3.SchemaRef {
	return objectSchema(openapi3.Schemas{
		"resource": arrayOf(ref(name)),
		"meta":     ref("ResponseMeta"),
	})
}

// ─── Components ─────────────────────────────────────────────────────────────

func actionTags() []string {
	out := make([]string, len(model.AuditActions))
	for i, a := range model.AuditActions {
		out[i] = a.String()
	}
	return out
}

func resourceTags() []string {
	out := make([]string, len(model.AuditResources))
	for i, r := range model.AuditResources {
		out[i] = r.String()
	}
	return out
}

// componentSchemas returns every named schema referenced by the paths.
func componentSchemas() openapi3.Schemas {
	return openapi3.Schemas{
		"ErrorResponse": objectSchema(openapi3.Schemas{
			"error": objectSchema(openapi3.Schemas{
				"code":    integerSchema("int32", ""),
				"message": stringSchema("", ""),
				"context": objectSchema(nil),
			}, "code", "message"),
		}, "error"),
		"RateLimited": objectSchema(openapi3.Schemas{
			"error":      stringSchema("", "Always \"Too many requests\"."),
			"retryAfter": integerSchema("int64", "Seconds until the window resets."),
		}, "error", "retryAfter"),
		"ResponseMeta": objectSchema(openapi3.Schemas{
			"count":  integerSchema("int32", "Records in this page."),
			"total":  integerSchema("int64", "Records matching the filters."),
			"limit":  integerSchema("int32", ""),
			"offset": integerSchema("int32", ""),
		}),
		"LoginRequest": objectSchema(openapi3.Schemas{
			"email":    stringSchema("email", ""),
			"password": stringSchema("password", ""),
		}, "email", "password"),
		"User": objectSchema(openapi3.Schemas{
			"id":    stringSchema("uuid", ""),
			"email": stringSchema("email", ""),
			"name":  stringSchema("", ""),
			"role":  enumSchema([]string{model.RoleAdmin, model.RoleCoach}),
		}),
		"LoginResponse": objectSchema(openapi3.Schemas{
			"token":      stringSchema("", "HS256 session token."),
			"token_type": stringSchema("", ""),
			"expires_in": integerSchema("int32", "Token lifetime in seconds."),
			"user":       ref("User"),
		}),
		"APIKey": objectSchema(openapi3.Schemas{
			"id":           stringSchema("uuid", ""),
			"name":         stringSchema("", ""),
			"description":  stringSchema("", ""),
			"permissions":  arrayOf(stringSchema("", "resource:action or *")),
			"key_prefix":   stringSchema("", "Leading characters of the key, for identification."),
			"is_active":    booleanSchema(),
			"expires_at":   stringSchema("date-time", ""),
			"last_used_at": stringSchema("date-time", ""),
			"usage_count":  integerSchema("int64", ""),
			"created_by":   stringSchema("uuid", ""),
			"created_at":   stringSchema("date-time", ""),
		}),
		"CreateAPIKeyRequest": objectSchema(openapi3.Schemas{
			"name":          stringSchema("", ""),
			"description":   stringSchema("", ""),
			"permissions":   arrayOf(stringSchema("", "resource:action or *")),
			"expiresInDays": integerSchema("int32", ""),
		}, "name", "permissions"),
		"CreatedAPIKey": objectSchema(openapi3.Schemas{
			"id":          stringSchema("uuid", ""),
			"key":         stringSchema("", "Plaintext key. Returned only once."),
			"name":        stringSchema("", ""),
			"permissions": arrayOf(stringSchema("", "")),
			"expiresAt":   stringSchema("date-time", ""),
			"message":     stringSchema("", ""),
		}),
		"AuditLog": objectSchema(openapi3.Schemas{
			"id":          stringSchema("uuid", ""),
			"action":      enumSchema(actionTags()),
			"resource":    enumSchema(resourceTags()),
			"resource_id": stringSchema("", ""),
			"user_id":     stringSchema("", ""),
			"user_email":  stringSchema("email", ""),
			"user_role":   stringSchema("", ""),
			"ip_address":  stringSchema("", ""),
			"user_agent":  stringSchema("", ""),
			"details":     objectSchema(nil),
			"status":      enumSchema([]string{string(model.AuditSuccess), string(model.AuditFailure), string(model.AuditError)}),
			"created_at":  stringSchema("date-time", ""),
		}),
		"Roster": objectSchema(openapi3.Schemas{
			"id":          stringSchema("uuid", ""),
			"name":        stringSchema("", ""),
			"description": stringSchema("", ""),
			"sport":       stringSchema("", ""),
			"created_by":  stringSchema("uuid", ""),
			"created_at":  stringSchema("date-time", ""),
		}),
		"RosterInput": objectSchema(openapi3.Schemas{
			"name":        {Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, MinLength: 1, MaxLength: uint64Ptr(100)}},
			"description": {Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, MaxLength: uint64Ptr(500)}},
			"sport":       {Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Default: model.DefaultSport}},
		}, "name"),
		"KeyIdentity": objectSchema(openapi3.Schemas{
			"id":          stringSchema("uuid", ""),
			"name":        stringSchema("", ""),
			"permissions": arrayOf(stringSchema("", "")),
		}),
		"Message": objectSchema(openapi3.Schemas{
			"message": stringSchema("", ""),
		}),
	}
}

func uint64Ptr(v uint64) *uint64 { return &v }
