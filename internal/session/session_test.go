package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/autoflex/console/internal/autoflex"
)

const testSecret = "autoflex-console-test-secret"

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "sessions.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestManager(t *testing.T, upstream http.HandlerFunc) (*Manager, *SQLiteStore) {
	t.Helper()
	srv := httptest.NewServer(upstream)
	t.Cleanup(srv.Close)

	api := autoflex.NewClient(srv.URL, 5*time.Second, zap.NewNop())
	store := newTestStore(t)
	return NewManager(api, store, testSecret, time.Hour, zap.NewNop()), store
}

func loginUpstream(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte(`{"token":"upstream-token","user":{"id":7,"name":"Ana","email":"ana@test.com","role":"ADMIN"}}`))
}

func TestLoginAndResolve(t *testing.T) {
	mgr, _ := newTestManager(t, loginUpstream)
	ctx := context.Background()

	s, cookieToken, err := mgr.Login(ctx, "ana@test.com", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if s.Token != "upstream-token" {
		t.Errorf("Expected upstream token stored, got %q", s.Token)
	}
	if s.User.Role != autoflex.RoleAdmin {
		t.Errorf("Expected ADMIN role, got %q", s.User.Role)
	}
	if cookieToken == "" {
		t.Fatal("Expected a session credential")
	}

	resolved, err := mgr.Resolve(ctx, cookieToken)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved.ID != s.ID || resolved.Token != s.Token {
		t.Errorf("Resolved session mismatch: %+v vs %+v", resolved, s)
	}
}

func TestLoginUpstreamRejection(t *testing.T) {
	mgr, _ := newTestManager(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Invalid credentials"}`))
	})

	_, _, err := mgr.Login(context.Background(), "ana@test.com", "wrong")
	if !errors.Is(err, autoflex.ErrUnauthorized) {
		t.Fatalf("Expected ErrUnauthorized, got %v", err)
	}
}

func TestResolveRejectsBadCredentials(t *testing.T) {
	mgr, _ := newTestManager(t, loginUpstream)
	ctx := context.Background()

	for _, token := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := mgr.Resolve(ctx, token); !errors.Is(err, ErrNotFound) {
			t.Errorf("Resolve(%q): expected ErrNotFound, got %v", token, err)
		}
	}
}

func TestResolveRejectsForeignSignature(t *testing.T) {
	mgr, _ := newTestManager(t, loginUpstream)
	ctx := context.Background()

	// 用另一个secret签的凭证
	other := NewManager(nil, newTestStore(t), "different-secret", time.Hour, zap.NewNop())
	foreign, err := other.mint("some-session")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	if _, err := mgr.Resolve(ctx, foreign); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for foreign signature, got %v", err)
	}
}

func TestLogoutRemovesSession(t *testing.T) {
	mgr, _ := newTestManager(t, loginUpstream)
	ctx := context.Background()

	s, cookieToken, err := mgr.Login(ctx, "ana@test.com", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if err := mgr.Logout(ctx, s.ID); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := mgr.Resolve(ctx, cookieToken); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after logout, got %v", err)
	}

	// 重复登出不报错
	if err := mgr.Logout(ctx, s.ID); err != nil {
		t.Errorf("Logout should be idempotent, got %v", err)
	}
}

func TestInvalidateRemovesSession(t *testing.T) {
	mgr, _ := newTestManager(t, loginUpstream)
	ctx := context.Background()

	s, cookieToken, err := mgr.Login(ctx, "ana@test.com", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	mgr.Invalidate(ctx, s.ID)
	if _, err := mgr.Resolve(ctx, cookieToken); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after invalidate, got %v", err)
	}
}
