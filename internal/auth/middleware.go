package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alecgard/tasker/internal/apperr"
)

type contextKey int

const (
	identityContextKey contextKey = iota
	tokenContextKey
)

// ContextWithIdentity returns a new context carrying the given identity.
func ContextWithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

// IdentityFromContext extracts the identity from the context, or nil if not
// present.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityContextKey).(*Identity)
	return id
}

func contextWithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenContextKey, token)
}

// TokenFromContext returns the raw session token the request authenticated
// with.
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenContextKey).(string)
	return token
}

// Authenticator resolves the session token on each request, from the
// Authorization header or, failing that, the session cookie.
type Authenticator struct {
	sessions    SessionStore
	cookies     *CookieCodec
	onFail      func()
	renewCookie bool
}

func NewAuthenticator(sessions SessionStore, cookies *CookieCodec) *Authenticator {
	return &Authenticator{sessions: sessions, cookies: cookies}
}

// OnFailure registers a hook called every time a request is rejected.
func (a *Authenticator) OnFailure(fn func()) {
	a.onFail = fn
}

// RenewCookie makes RequireSession re-issue the session cookie on every
// request it authenticates through the cookie, so the cookie lifetime slides
// with a session store that renews on access.
func (a *Authenticator) RenewCookie(renew bool) {
	a.renewCookie = renew
}

// Token returns the token presented by r, or "".
func (a *Authenticator) Token(r *http.Request) string {
	token, _ := a.token(r)
	return token
}

func (a *Authenticator) token(r *http.Request) (token string, fromCookie bool) {
	if token := extractBearerToken(r); token != "" {
		return token, false
	}
	if a.cookies != nil {
		if token := a.cookies.Token(r); token != "" {
			return token, true
		}
	}
	return "", false
}

// RequireSession returns middleware that rejects requests without a live
// session and injects the identity into the request context.
func (a *Authenticator) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, fromCookie := a.token(r)
		if token == "" {
			a.reject(w, "missing session")
			return
		}

		id, err := a.sessions.Resolve(r.Context(), token)
		if err != nil {
			if !errors.Is(err, ErrNoSession) {
				slog.Error("resolving session", "error", err)
			}
			a.reject(w, "invalid or expired session")
			return
		}

		if fromCookie && a.renewCookie {
			if err := a.cookies.Set(w, r, token); err != nil {
				slog.Warn("renewing session cookie", "error", err)
			}
		}

		ctx := ContextWithIdentity(r.Context(), id)
		ctx = contextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Authenticator) reject(w http.ResponseWriter, message string) {
	if a.onFail != nil {
		a.onFail()
	}
	writeUnauthorized(w, message)
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Error: errorBody{
			Code:    string(apperr.KindUnauthenticated),
			Message: message,
		},
	})
}
