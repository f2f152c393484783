package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// --- mock store ---

type mockSessionStore struct {
	sessions map[string]*Identity
}

func (m *mockSessionStore) Create(ctx context.Context, id Identity) (string, error) {
	token, err := GenerateToken()
	if err != nil {
		return "", err
	}
	m.sessions[token] = &id
	return token, nil
}

func (m *mockSessionStore) Resolve(ctx context.Context, token string) (*Identity, error) {
	id, ok := m.sessions[token]
	if !ok {
		return nil, ErrNoSession
	}
	return id, nil
}

func (m *mockSessionStore) Destroy(ctx context.Context, token string) error {
	delete(m.sessions, token)
	return nil
}

// --- GenerateToken tests ---

func TestGenerateToken_Length(t *testing.T) {
	token, err := GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken() error: %v", err)
	}
	// 32 bytes hex encoded
	if len(token) != 64 {
		t.Errorf("expected token length 64, got %d", len(token))
	}
}

func TestGenerateToken_Uniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		token, err := GenerateToken()
		if err != nil {
			t.Fatalf("GenerateToken() error: %v", err)
		}
		if seen[token] {
			t.Fatalf("duplicate token generated: %s", token)
		}
		seen[token] = true
	}
}

// --- HashToken tests ---

func TestHashToken_Deterministic(t *testing.T) {
	if HashToken("abc") != HashToken("abc") {
		t.Error("HashToken should be deterministic")
	}
	if HashToken("abc") == HashToken("abd") {
		t.Error("different tokens should produce different hashes")
	}
	if len(HashToken("anything")) != 64 {
		t.Error("expected 64 hex characters")
	}
}

// --- Context helpers tests ---

func TestIdentityContext_RoundTrip(t *testing.T) {
	id := &Identity{UserID: "u1", Email: "a@x.com", Name: "alice"}
	ctx := ContextWithIdentity(context.Background(), id)
	got := IdentityFromContext(ctx)
	if got == nil {
		t.Fatal("expected identity from context, got nil")
	}
	if got.UserID != id.UserID {
		t.Errorf("expected ID %q, got %q", id.UserID, got.UserID)
	}
}

func TestIdentityFromContext_Empty(t *testing.T) {
	if got := IdentityFromContext(context.Background()); got != nil {
		t.Errorf("expected nil from empty context, got %+v", got)
	}
	if got := TokenFromContext(context.Background()); got != "" {
		t.Errorf("expected empty token, got %q", got)
	}
}

// --- RequireSession tests ---

func TestRequireSession(t *testing.T) {
	store := &mockSessionStore{sessions: map[string]*Identity{
		"valid-token": {UserID: "u1", Email: "a@x.com", Name: "alice"},
	}}
	authn := NewAuthenticator(store, nil)

	failures := 0
	authn.OnFailure(func() { failures++ })

	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := IdentityFromContext(r.Context())
		if id == nil || id.UserID != "u1" {
			t.Errorf("expected identity u1 in context, got %+v", id)
		}
		if TokenFromContext(r.Context()) != "valid-token" {
			t.Error("expected token in context")
		}
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{"valid token", "Bearer valid-token", http.StatusOK},
		{"lowercase scheme", "bearer valid-token", http.StatusOK},
		{"unknown token", "Bearer nope", http.StatusUnauthorized},
		{"missing header", "", http.StatusUnauthorized},
		{"malformed header no bearer", "Token valid-token", http.StatusUnauthorized},
		{"bearer only no token", "Bearer", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rr := httptest.NewRecorder()

			authn.RequireSession(okHandler).ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rr.Code)
			}
			if tt.wantStatus == http.StatusUnauthorized {
				assertJSONError(t, rr)
			}
		})
	}

	if failures != 4 {
		t.Errorf("expected 4 failure callbacks, got %d", failures)
	}
}

// --- cookie transport tests ---

func newTestCodec() *CookieCodec {
	return NewCookieCodec(CookieOptions{
		Name:    "tasker_session",
		HashKey: []byte("0123456789abcdef0123456789abcdef"),
		MaxAge:  10 * time.Minute,
	})
}

func TestCookieCodec_RoundTrip(t *testing.T) {
	codec := newTestCodec()

	rr := httptest.NewRecorder()
	if err := codec.Set(rr, httptest.NewRequest(http.MethodPost, "/login", nil), "tok-123"); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	cookies := rr.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected 1 cookie, got %d", len(cookies))
	}
	if !cookies[0].HttpOnly {
		t.Error("expected HttpOnly cookie")
	}
	if cookies[0].MaxAge != 600 {
		t.Errorf("expected MaxAge 600, got %d", cookies[0].MaxAge)
	}

	req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
	req.AddCookie(cookies[0])
	if got := codec.Token(req); got != "tok-123" {
		t.Errorf("Token() = %q, want tok-123", got)
	}
}

func TestCookieCodec_TamperedCookie(t *testing.T) {
	codec := newTestCodec()

	req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
	req.AddCookie(&http.Cookie{Name: "tasker_session", Value: "garbage"})
	if got := codec.Token(req); got != "" {
		t.Errorf("expected no token from tampered cookie, got %q", got)
	}
}

func TestCookieCodec_Clear(t *testing.T) {
	codec := newTestCodec()

	rr := httptest.NewRecorder()
	if err := codec.Clear(rr, httptest.NewRequest(http.MethodPost, "/logout", nil)); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}
	cookies := rr.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge >= 0 {
		t.Fatalf("expected an expiring cookie, got %+v", cookies)
	}
}

func TestRequireSession_FromCookie(t *testing.T) {
	store := &mockSessionStore{sessions: map[string]*Identity{}}
	codec := newTestCodec()
	authn := NewAuthenticator(store, codec)

	token, _ := store.Create(context.Background(), Identity{UserID: "u2", Name: "bob"})

	rr := httptest.NewRecorder()
	if err := codec.Set(rr, httptest.NewRequest(http.MethodPost, "/login", nil), token); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(rr.Result().Cookies()[0])
	rr = httptest.NewRecorder()

	var got *Identity
	authn.RequireSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = IdentityFromContext(r.Context())
	})).ServeHTTP(rr, req)

	if got == nil || got.UserID != "u2" {
		t.Errorf("expected identity u2 from cookie, got %+v", got)
	}
}

func TestRequireSession_RenewCookie(t *testing.T) {
	store := &mockSessionStore{sessions: map[string]*Identity{}}
	codec := newTestCodec()
	token, _ := store.Create(context.Background(), Identity{UserID: "u2", Name: "bob"})

	rr := httptest.NewRecorder()
	if err := codec.Set(rr, httptest.NewRequest(http.MethodPost, "/login", nil), token); err != nil {
		t.Fatal(err)
	}
	cookie := rr.Result().Cookies()[0]

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	tests := []struct {
		name      string
		renew     bool
		useCookie bool
		wantSet   bool
	}{
		{"renewal off", false, true, false},
		{"renewal on with cookie", true, true, true},
		{"renewal on with bearer", true, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			authn := NewAuthenticator(store, codec)
			authn.RenewCookie(tt.renew)

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.useCookie {
				req.AddCookie(cookie)
			} else {
				req.Header.Set("Authorization", "Bearer "+token)
			}
			rr := httptest.NewRecorder()
			authn.RequireSession(ok).ServeHTTP(rr, req)

			if rr.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rr.Code)
			}
			set := rr.Result().Cookies()
			if !tt.wantSet {
				if len(set) != 0 {
					t.Errorf("expected no Set-Cookie, got %+v", set)
				}
				return
			}
			if len(set) != 1 || set[0].MaxAge != 600 {
				t.Fatalf("expected a re-issued cookie with MaxAge 600, got %+v", set)
			}
			next := httptest.NewRequest(http.MethodGet, "/", nil)
			next.AddCookie(set[0])
			if got := codec.Token(next); got != token {
				t.Errorf("re-issued cookie carries %q, want %q", got, token)
			}
		})
	}
}

func TestRequireSession_NoRenewOnRejectedCookie(t *testing.T) {
	store := &mockSessionStore{sessions: map[string]*Identity{}}
	codec := newTestCodec()
	authn := NewAuthenticator(store, codec)
	authn.RenewCookie(true)

	rr := httptest.NewRecorder()
	if err := codec.Set(rr, httptest.NewRequest(http.MethodPost, "/login", nil), "stale"); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(rr.Result().Cookies()[0])
	rr = httptest.NewRecorder()
	authn.RequireSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if set := rr.Result().Cookies(); len(set) != 0 {
		t.Errorf("expected no cookie for a dead session, got %+v", set)
	}
}

// assertJSONError checks that the response body contains the expected error JSON structure.
func assertJSONError(t *testing.T, rr *httptest.ResponseRecorder) {
	t.Helper()

	ct := rr.Header().Get("Content-Type")
	if !strings.Contains(ct, "application/json") {
		t.Errorf("expected Content-Type application/json, got %q", ct)
	}

	var resp errorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}

	if resp.Error.Code != "unauthenticated" {
		t.Errorf("expected error code 'unauthenticated', got %q", resp.Error.Code)
	}
	if resp.Error.Message == "" {
		t.Error("expected non-empty error message")
	}
}
