package handler

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/teamplatform/teamplatform/internal/model"
	"github.com/teamplatform/teamplatform/internal/service"
)

func TestLogin_ValidCredentials(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "coach@example.com", model.RoleCoach)

	rr := env.do(t, http.MethodPost, "/api/auth/login", toJSON(t, map[string]string{
		"email":    "Coach@Example.com",
		"password": testPassword,
	}), "User-Agent", "pool-deck/1.0", "X-Real-IP", "198.51.100.4")
	assertStatus(t, rr, http.StatusOK)

	var resp loginResponse
	decodeJSON(t, rr, &resp)
	if resp.Token == "" || resp.TokenType != "bearer" || resp.ExpiresIn != 3600 {
		t.Errorf("unexpected response: %+v", resp)
	}
	if resp.User.ID != user.ID || resp.User.Role != model.RoleCoach {
		t.Errorf("unexpected user: %+v", resp.User)
	}

	logs := env.auditLogs(t, model.ActionUserLogin)
	if len(logs) != 1 {
		t.Fatalf("expected 1 login audit record, got %d", len(logs))
	}
	rec := logs[0]
	if rec.Status != model.AuditSuccess || rec.IPAddress != "198.51.100.4" {
		t.Errorf("unexpected audit record: %+v", rec)
	}
	if rec.UserID == nil || *rec.UserID != user.ID {
		t.Errorf("audit actor should be the signed-in user, got %v", rec.UserID)
	}
}

func TestLogin_Failures(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantStatus  int
		wantMessage string
		wantAudit   bool
	}{
		{"wrong password", `{"email":"coach@example.com","password":"nope-nope-nope"}`, 401, "Invalid credentials", true},
		{"unknown email", `{"email":"ghost@example.com","password":"whatever1"}`, 401, "Invalid credentials", true},
		{"missing fields", `{"email":""}`, 400, "Email and password are required", false},
		{"invalid json", `{not json`, 400, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.seedUser(t, "coach@example.com", model.RoleCoach)

			rr := env.do(t, http.MethodPost, "/api/auth/login", strings.NewReader(tt.body))
			assertStatus(t, rr, tt.wantStatus)
			msg := errorMessage(t, rr)
			if tt.wantMessage != "" && msg != tt.wantMessage {
				t.Errorf("message = %q, want %q", msg, tt.wantMessage)
			}

			logs := env.auditLogs(t, model.ActionUserLogin)
			if tt.wantAudit {
				if len(logs) != 1 || logs[0].Status != model.AuditFailure {
					t.Fatalf("expected one failed login record, got %+v", logs)
				}
				if logs[0].UserID != nil {
					t.Error("failed login should have no actor")
				}
			} else if len(logs) != 0 {
				t.Errorf("expected no audit records, got %d", len(logs))
			}
		})
	}
}

func TestLogin_InactiveAccount(t *testing.T) {
	env := newTestEnv(t)
	u, err := service.NewUser("old@example.com", testPassword, "Retired", model.RoleCoach)
	if err != nil {
		t.Fatalf("NewUser: %v", err)
	}
	u.IsActive = false
	if err := env.store.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	rr := env.do(t, http.MethodPost, "/api/auth/login", toJSON(t, map[string]string{
		"email":    "old@example.com",
		"password": testPassword,
	}))
	assertStatus(t, rr, http.StatusForbidden)
	if msg := errorMessage(t, rr); msg != "Account is disabled" {
		t.Errorf("message = %q", msg)
	}
}

func TestLogoutAndMe(t *testing.T) {
	env := newTestEnv(t)
	u := env.seedUser(t, "coach@example.com", model.RoleCoach)
	tok := env.token(t, u)

	rr := env.do(t, http.MethodGet, "/api/auth/me", nil, bearer(tok)...)
	assertStatus(t, rr, http.StatusOK)
	var me sessionUser
	decodeJSON(t, rr, &me)
	if me.Email != "coach@example.com" {
		t.Errorf("me = %+v", me)
	}

	rr = env.do(t, http.MethodPost, "/api/auth/logout", nil, bearer(tok)...)
	assertStatus(t, rr, http.StatusOK)
	if logs := env.auditLogs(t, model.ActionUserLogout); len(logs) != 1 {
		t.Errorf("expected 1 logout record, got %d", len(logs))
	}

	rr = env.do(t, http.MethodGet, "/api/auth/me", nil)
	assertStatus(t, rr, http.StatusUnauthorized)
}
