package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/teamplatform/teamplatform/internal/async"
	"github.com/teamplatform/teamplatform/internal/config"
	"github.com/teamplatform/teamplatform/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *config.Store {
	t.Helper()
	s, err := config.NewStore(config.StoreOptions{})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newKeyService(t *testing.T, opts ...APIKeyOption) (*APIKeyService, *config.Store) {
	t.Helper()
	store := newTestStore(t)
	return NewAPIKeyService(store, async.Inline{Logger: testLogger()}, testLogger(), opts...), store
}

func TestAPIKeyCreateStoresDigestOnly(t *testing.T) {
	svc, store := newKeyService(t)
	ctx := context.Background()

	issued, err := svc.Create(ctx, CreateAPIKeyParams{
		Name:        "ci",
		Permissions: []string{"roster:read", "roster:read", "events:*"},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !LooksLikeAPIKey(issued.Key) {
		t.Fatalf("plaintext %q missing prefix", issued.Key)
	}
	if issued.Record.KeyHash != HashAPIKey(issued.Key) {
		t.Error("stored hash must equal digest of plaintext")
	}
	if issued.Record.KeyPrefix != DisplayPrefix(issued.Key) {
		t.Errorf("got prefix %q", issued.Record.KeyPrefix)
	}
	if len(issued.Record.Permissions) != 2 {
		t.Errorf("permissions should be deduplicated, got %v", issued.Record.Permissions)
	}

	got, err := store.GetAPIKey(ctx, issued.Record.ID)
	if err != nil {
		t.Fatalf("GetAPIKey: %v", err)
	}
	if got.KeyHash == issued.Key {
		t.Fatal("plaintext must never be persisted")
	}
	if got.KeyHash != HashAPIKey(issued.Key) {
		t.Error("persisted hash does not match digest")
	}
}

func TestAPIKeyCreateValidation(t *testing.T) {
	svc, _ := newKeyService(t)
	ctx := context.Background()
	past := time.Now().Add(-time.Hour)

	tests := []struct {
		name   string
		params CreateAPIKeyParams
	}{
		{"missing name", CreateAPIKeyParams{Permissions: []string{"*"}}},
		{"blank name", CreateAPIKeyParams{Name: "   ", Permissions: []string{"*"}}},
		{"no permissions", CreateAPIKeyParams{Name: "ci"}},
		{"malformed permission", CreateAPIKeyParams{Name: "ci", Permissions: []string{"roster"}}},
		{"past expiry", CreateAPIKeyParams{Name: "ci", Permissions: []string{"*"}, ExpiresAt: &past}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.params)
			if !errors.Is(err, ErrValidationFailed) {
				t.Fatalf("got %v, want ErrValidationFailed", err)
			}
			if HTTPStatus(err) != 400 {
				t.Errorf("got status %d, want 400", HTTPStatus(err))
			}
		})
	}
}

func TestAPIKeyValidateLifecycle(t *testing.T) {
	svc, store := newKeyService(t)
	ctx := context.Background()

	issued, err := svc.Create(ctx, CreateAPIKeyParams{Name: "reader", Permissions: []string{"roster:read"}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	p, err := svc.Validate(ctx, issued.Key)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if p.ID != issued.Record.ID || p.Name != "reader" {
		t.Errorf("got principal %+v", p)
	}
	if !p.Can("roster:read") {
		t.Error("key should hold roster:read")
	}
	if p.Can("roster:write") {
		t.Error("key should not hold roster:write")
	}

	rec, err := store.GetAPIKey(ctx, issued.Record.ID)
	if err != nil {
		t.Fatalf("GetAPIKey: %v", err)
	}
	if rec.UsageCount != 1 || rec.LastUsedAt == nil {
		t.Errorf("usage not recorded: count=%d last=%v", rec.UsageCount, rec.LastUsedAt)
	}

	changed, err := svc.Revoke(ctx, issued.Record.ID)
	if err != nil || !changed {
		t.Fatalf("Revoke: changed=%v err=%v", changed, err)
	}
	changed, err = svc.Revoke(ctx, issued.Record.ID)
	if err != nil {
		t.Fatalf("second Revoke: %v", err)
	}
	if changed {
		t.Error("revoking twice should be a no-op")
	}

	_, err = svc.Validate(ctx, issued.Key)
	if !errors.Is(err, ErrKeyInactive) {
		t.Fatalf("got %v, want ErrKeyInactive", err)
	}
	if HTTPStatus(err) != 403 {
		t.Errorf("got status %d, want 403", HTTPStatus(err))
	}
	if msg := PublicMessage(err, ""); msg != "API key is inactive" {
		t.Errorf("got message %q", msg)
	}
}

func TestAPIKeyValidateRejections(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := now
	svc, _ := newKeyService(t, WithClock(func() time.Time { return clock }))
	ctx := context.Background()

	exp := now.Add(time.Hour)
	issued, err := svc.Create(ctx, CreateAPIKeyParams{Name: "temp", Permissions: []string{"*"}, ExpiresAt: &exp})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Validate(ctx, issued.Key); err != nil {
		t.Fatalf("Validate before expiry: %v", err)
	}

	clock = now.Add(2 * time.Hour)
	tests := []struct {
		name    string
		key     string
		wantErr error
		status  int
		message string
	}{
		{"missing", "", ErrAPIKeyRequired, 401, "API key required"},
		{"unknown", "tp_doesnotexist", ErrInvalidAPIKey, 401, "Invalid API key"},
		{"expired", issued.Key, ErrKeyExpired, 403, "API key has expired"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Validate(ctx, tt.key)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}
			if got := HTTPStatus(err); got != tt.status {
				t.Errorf("got status %d, want %d", got, tt.status)
			}
			if got := PublicMessage(err, "fallback"); got != tt.message {
				t.Errorf("got message %q, want %q", got, tt.message)
			}
		})
	}
}

func TestAPIKeyRevokeUnknown(t *testing.T) {
	svc, _ := newKeyService(t)
	_, err := svc.Revoke(context.Background(), "missing")
	if !errors.Is(err, config.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestAPIKeyListNewestFirst(t *testing.T) {
	svc, _ := newKeyService(t)
	ctx := context.Background()
	for _, name := range []string{"first", "second"} {
		if _, err := svc.Create(ctx, CreateAPIKeyParams{Name: name, Permissions: []string{"*"}}); err != nil {
			t.Fatalf("Create %s: %v", name, err)
		}
	}
	keys, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(keys) != 2 || keys[0].Name != "second" {
		t.Errorf("got %v, want newest first", keys)
	}
}

// failingKeyStore fails every call with the configured error.
type failingKeyStore struct{ err error }

func (f failingKeyStore) CreateAPIKey(context.Context, *model.APIKey) error { return f.err }
func (f failingKeyStore) GetAPIKeyByHash(context.Context, string) (*model.APIKey, error) {
	return nil, f.err
}
func (f failingKeyStore) ListAPIKeys(context.Context) ([]model.APIKey, error) { return nil, f.err }
func (f failingKeyStore) RevokeAPIKey(context.Context, string) (bool, error)  { return false, f.err }
func (f failingKeyStore) RecordAPIKeyUsage(context.Context, string, time.Time) error {
	return f.err
}

func TestAPIKeyStoreFailure(t *testing.T) {
	cause := errors.New("connection refused")
	svc := NewAPIKeyService(failingKeyStore{err: cause}, async.Inline{}, testLogger())
	ctx := context.Background()

	_, err := svc.Validate(ctx, "tp_anything")
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("got %v, want ErrStoreUnavailable", err)
	}
	if !errors.Is(err, cause) {
		t.Error("cause should remain reachable for logging")
	}
	if HTTPStatus(err) != 500 {
		t.Errorf("got status %d, want 500", HTTPStatus(err))
	}
	if msg := PublicMessage(err, "Failed to validate API key"); msg != "Failed to validate API key" {
		t.Errorf("store details leaked: %q", msg)
	}

	if _, err := svc.Create(ctx, CreateAPIKeyParams{Name: "ci", Permissions: []string{"*"}}); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("Create: got %v, want ErrStoreUnavailable", err)
	}
	if _, err := svc.Revoke(ctx, "id"); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("Revoke: got %v, want ErrStoreUnavailable", err)
	}
}

func TestExpiryFromDays(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	if ExpiryFromDays(now, nil) != nil {
		t.Error("nil days should mean no expiry")
	}
	zero := 0
	if ExpiryFromDays(now, &zero) != nil {
		t.Error("zero days should mean no expiry")
	}
	days := 30
	got := ExpiryFromDays(now, &days)
	if got == nil || !got.Equal(now.AddDate(0, 0, 30)) {
		t.Errorf("got %v", got)
	}
}
