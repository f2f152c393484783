package api

import (
	"log/slog"
	"net/http"

	"github.com/alecgard/tasker/internal/apperr"
	"github.com/alecgard/tasker/internal/auth"
	"github.com/alecgard/tasker/internal/metrics"
	"github.com/alecgard/tasker/internal/user"
)

// sessionHandler groups registration and session HTTP handlers.
type sessionHandler struct {
	users   *user.Service
	authn   *auth.Authenticator
	cookies *auth.CookieCodec
	metrics *metrics.Metrics
}

func newSessionHandler(users *user.Service, authn *auth.Authenticator, cookies *auth.CookieCodec, m *metrics.Metrics) *sessionHandler {
	return &sessionHandler{users: users, authn: authn, cookies: cookies, metrics: m}
}

// Register handles POST /api/v1/register.
func (h *sessionHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req user.RegisterInput
	if err := readJSON(r, &req); err != nil {
		writeInvalidBody(w)
		return
	}

	reg, err := h.users.Register(r.Context(), req)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	h.metrics.IncAuthSuccess("register")
	auditLog(r, "user.register", "user", reg.User.ID, "user_name", reg.User.Name)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"userId":         reg.User.ID,
		"generalGroupId": reg.GeneralGroupID,
	})
}

// Login handles POST /api/v1/login. The email field also accepts a username.
func (h *sessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := readJSON(r, &req); err != nil {
		writeInvalidBody(w)
		return
	}

	identifier := req.Email
	if identifier == "" {
		identifier = req.Username
	}
	if identifier == "" || req.Password == "" {
		writeAppError(w, r, apperr.Validation("email or username and password are required"))
		return
	}

	u, token, err := h.users.Login(r.Context(), identifier, req.Password)
	if err != nil {
		if apperr.Is(err, apperr.KindInvalidCredential) {
			h.metrics.IncAuthFailure("login")
			slog.Warn("login failed", "ip", clientIP(r), "request_id", RequestIDFromContext(r.Context()))
		}
		writeAppError(w, r, err)
		return
	}

	if h.cookies != nil {
		if err := h.cookies.Set(w, r, token); err != nil {
			writeAppError(w, r, err)
			return
		}
	}

	h.metrics.IncAuthSuccess("login")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"userId": u.ID,
		"token":  token,
		"user":   u,
	})
}

// Logout handles POST /api/v1/logout. It succeeds whether or not a session
// is still attached to the request.
func (h *sessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.users.Logout(r.Context(), h.authn.Token(r)); err != nil {
		writeAppError(w, r, err)
		return
	}
	if h.cookies != nil {
		_ = h.cookies.Clear(w, r)
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// CheckSession handles GET /api/v1/check-session.
func (h *sessionHandler) CheckSession(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{"user": id})
}

// UserID handles GET /api/v1/user-id.
func (h *sessionHandler) UserID(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"userId": id.UserID})
}
