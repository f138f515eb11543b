package openapi

import (
	"encoding/json"
	"testing"
)

func TestGenerate_Document(t *testing.T) {
	doc := Generate("http://localhost:8080", "1.2.3")

	if doc.OpenAPI != "3.1.0" {
		t.Errorf("OpenAPI version = %q, want 3.1.0", doc.OpenAPI)
	}
	if doc.Info.Version != "1.2.3" {
		t.Errorf("Info.Version = %q, want 1.2.3", doc.Info.Version)
	}
	if len(doc.Servers) != 1 || doc.Servers[0].URL != "http://localhost:8080" {
		t.Errorf("unexpected servers: %+v", doc.Servers)
	}
	if Generate("", "").Info.Version != "dev" {
		t.Error("empty version should default to dev")
	}
}

func TestGenerate_Paths(t *testing.T) {
	doc := Generate("", "")

	tests := []struct {
		path   string
		method string
	}{
		{"/api/auth/login", "POST"},
		{"/api/auth/logout", "POST"},
		{"/api/auth/me", "GET"},
		{"/api/admin/api-keys", "GET"},
		{"/api/admin/api-keys", "POST"},
		{"/api/admin/api-keys", "DELETE"},
		{"/api/admin/api-keys/{keyId}", "DELETE"},
		{"/api/admin/audit-logs", "GET"},
		{"/api/rosters", "GET"},
		{"/api/rosters", "POST"},
		{"/api/rosters/{id}", "DELETE"},
		{"/api/v1/rosters", "GET"},
		{"/api/v1/rosters", "POST"},
		{"/api/v1/whoami", "GET"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			item := doc.Paths.Find(tt.path)
			if item == nil {
				t.Fatalf("path %s not found", tt.path)
			}
			op := item.GetOperation(tt.method)
			if op == nil {
				t.Fatalf("%s %s has no operation", tt.method, tt.path)
			}
			if op.Responses.Value("429") == nil {
				t.Errorf("%s %s should document 429", tt.method, tt.path)
			}
		})
	}
}

func TestGenerate_Security(t *testing.T) {
	doc := Generate("", "")

	login := doc.Paths.Find("/api/auth/login").Post
	if login.Security != nil {
		t.Error("login should be unauthenticated")
	}

	external := doc.Paths.Find("/api/v1/rosters").Get
	if external.Security == nil || len(*external.Security) != 1 {
		t.Fatal("external route should declare security")
	}
	if _, ok := (*external.Security)[0][SchemeAPIKey]; !ok {
		t.Errorf("external route should use %s", SchemeAPIKey)
	}

	admin := doc.Paths.Find("/api/admin/api-keys").Get
	if _, ok := (*admin.Security)[0][SchemeBearer]; !ok {
		t.Errorf("admin route should use %s", SchemeBearer)
	}
	if admin.Responses.Value("403") == nil {
		t.Error("secured route should document 403")
	}

	scheme := doc.Components.SecuritySchemes[SchemeAPIKey].Value
	if scheme.In != "header" || scheme.Name != "X-API-Key" {
		t.Errorf("unexpected api key scheme: %+v", scheme)
	}
}

func TestGenerate_Schemas(t *testing.T) {
	doc := Generate("", "")

	for _, name := range []string{
		"ErrorResponse", "RateLimited", "ResponseMeta", "LoginRequest",
		"LoginResponse", "User", "APIKey", "CreateAPIKeyRequest",
		"CreatedAPIKey", "AuditLog", "Roster", "RosterInput", "KeyIdentity",
	} {
		if doc.Components.Schemas[name] == nil {
			t.Errorf("schema %s missing", name)
		}
	}

	apiKey := doc.Components.Schemas["APIKey"].Value
	if _, ok := apiKey.Properties["key_hash"]; ok {
		t.Error("APIKey schema must not expose the digest")
	}

	action := doc.Components.Schemas["AuditLog"].Value.Properties["action"].Value
	found := false
	for _, v := range action.Enum {
		if v == "apikey.create" {
			found = true
		}
	}
	if !found {
		t.Errorf("audit action enum missing apikey.create: %v", action.Enum)
	}
}

func TestGenerate_MarshalJSON(t *testing.T) {
	doc := Generate("http://localhost:8080", "")
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if m["openapi"] != "3.1.0" {
		t.Errorf("openapi = %v", m["openapi"])
	}
	if _, ok := m["paths"].(map[string]interface{})["/api/v1/whoami"]; !ok {
		t.Error("marshaled document missing /api/v1/whoami")
	}
}
