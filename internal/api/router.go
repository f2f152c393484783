package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/alecgard/tasker/internal/auth"
	"github.com/alecgard/tasker/internal/group"
	"github.com/alecgard/tasker/internal/invitation"
	"github.com/alecgard/tasker/internal/metrics"
	"github.com/alecgard/tasker/internal/ratelimit"
	"github.com/alecgard/tasker/internal/task"
	"github.com/alecgard/tasker/internal/user"
)

// Pinger reports database reachability for the health check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterDeps holds all dependencies for the API router.
type RouterDeps struct {
	Users       *user.Service
	Groups      *group.Service
	Tasks       *task.Service
	Invitations *invitation.Service

	Sessions auth.SessionStore
	Cookies  *auth.CookieCodec

	// RenewSessionCookie re-issues the cookie on each authenticated request.
	// Set it when the session store renews on access.
	RenewSessionCookie bool

	// LoginLimiter throttles /login and /register per client IP. Nil disables it.
	LoginLimiter *ratelimit.Limiter
	Metrics      *metrics.Metrics
	DB           Pinger

	AllowedOrigins []string
}

// NewRouter builds the chi router with all routes and middleware.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chimw.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(slogRequestLogger)
	r.Use(secureHeaders)
	r.Use(corsMiddleware(deps.AllowedOrigins))
	r.Use(deps.Metrics.Middleware)

	authn := auth.NewAuthenticator(deps.Sessions, deps.Cookies)
	authn.OnFailure(func() { deps.Metrics.IncAuthFailure("session") })
	authn.RenewCookie(deps.RenewSessionCookie)

	sessions := newSessionHandler(deps.Users, authn, deps.Cookies, deps.Metrics)
	groups := newGroupsHandler(deps.Groups, deps.Tasks, deps.Invitations, deps.Metrics)
	tasks := newTasksHandler(deps.Tasks)
	invitations := newInvitationsHandler(deps.Invitations, deps.Metrics)

	r.Get("/health", healthHandler(deps.DB))

	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics.PrometheusHandler())
		r.Get("/metrics/summary", deps.Metrics.Handler())
	}

	r.Route("/api/v1", func(ar chi.Router) {
		// Public routes.
		ar.Group(func(pr chi.Router) {
			if deps.LoginLimiter != nil {
				pr.Use(ratelimit.Middleware(deps.LoginLimiter, clientIP, func() {
					deps.Metrics.IncRateLimitRejection("login")
				}))
			}
			pr.Post("/register", sessions.Register)
			pr.Post("/login", sessions.Login)
		})
		ar.Post("/logout", sessions.Logout)

		// Session-authed routes.
		ar.Group(func(sr chi.Router) {
			sr.Use(authn.RequireSession)

			sr.Get("/check-session", sessions.CheckSession)
			sr.Get("/user-id", sessions.UserID)

			sr.Post("/groups", groups.Create)
			sr.Get("/groups", groups.List)
			sr.Put("/groups/{id}", groups.Rename)
			sr.Delete("/groups/{id}", groups.Delete)
			sr.Get("/groups/{id}/users", groups.Members)
			sr.Get("/groups/{id}/tasks", groups.Tasks)
			sr.Post("/groups/{id}/tasks", groups.Tasks)
			sr.Post("/groups/{id}/invite", groups.Invite)

			sr.Post("/tasks", tasks.Add)
			sr.Get("/tasks", tasks.List)
			sr.Put("/tasks/{id}", tasks.Update)
			sr.Put("/tasks/{id}/status", tasks.SetStatus)
			sr.Delete("/tasks/{id}", tasks.Delete)

			sr.Get("/notifications", invitations.Notifications)
			sr.Post("/invitations/{id}/accept", invitations.Accept)
			sr.Post("/invitations/{id}/decline", invitations.Decline)
		})
	})

	return r
}

// healthHandler reports liveness and, when a database is configured, its
// reachability.
func healthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db == nil {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":   "degraded",
				"database": "unreachable",
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"status":   "ok",
			"database": "connected",
		})
	}
}

// pathID returns the {id} route parameter when it is a well-formed UUID.
func pathID(r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return id, true
}
