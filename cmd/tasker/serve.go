package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/alecgard/tasker/internal/api"
	"github.com/alecgard/tasker/internal/auth"
	"github.com/alecgard/tasker/internal/authz"
	"github.com/alecgard/tasker/internal/config"
	"github.com/alecgard/tasker/internal/db"
	"github.com/alecgard/tasker/internal/group"
	"github.com/alecgard/tasker/internal/invitation"
	"github.com/alecgard/tasker/internal/metrics"
	"github.com/alecgard/tasker/internal/ratelimit"
	"github.com/alecgard/tasker/internal/session"
	"github.com/alecgard/tasker/internal/task"
	"github.com/alecgard/tasker/internal/user"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Tasker API server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// newLogger builds the process logger from the log section of the config.
func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// sessionBackend is what the server needs from a session store.
type sessionBackend interface {
	auth.SessionStore
	session.Sweepable
}

func newSessionBackend(cfg config.SessionConfig, pool *pgxpool.Pool, m *metrics.Metrics) sessionBackend {
	if cfg.Backend == "postgres" {
		return session.NewPostgresStore(pool, cfg.TTL, cfg.RenewOnAccess)
	}
	store := session.NewMemoryStore(cfg.TTL, cfg.RenewOnAccess)
	m.RegisterActiveSessions(func() float64 { return float64(store.Len()) })
	return store
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	slog.SetDefault(newLogger(os.Stdout, cfg.Log))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()
	slog.Info("connected to database")

	m := metrics.New()
	m.RegisterDBPoolCollector(func() metrics.PoolStats {
		s := pool.Stat()
		return metrics.PoolStats{
			Total:             s.TotalConns(),
			Idle:              s.IdleConns(),
			Acquired:          s.AcquiredConns(),
			Max:               s.MaxConns(),
			AcquireCount:      s.AcquireCount(),
			EmptyAcquireCount: s.EmptyAcquireCount(),
		}
	})

	sessions := newSessionBackend(cfg.Session, pool, m)
	sweeper := session.NewSweeper(sessions, cfg.Session.SweepInterval)
	go sweeper.Start(ctx)
	slog.Info("session store ready", "backend", cfg.Session.Backend, "ttl", cfg.Session.TTL, "renew_on_access", cfg.Session.RenewOnAccess)

	userStore := user.NewStore(pool)
	groupStore := group.NewStore(pool)
	taskStore := task.NewStore(pool)
	invitationStore := invitation.NewStore(pool)
	gate := authz.NewGate(groupStore)

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.LoginAttempts > 0 {
		limiter = ratelimit.New(cfg.RateLimit.LoginAttempts, cfg.RateLimit.LoginWindow)
		go cleanupLimiter(ctx, limiter, cfg.RateLimit.LoginWindow)
	}

	router := api.NewRouter(api.RouterDeps{
		Users:       user.NewService(userStore, sessions, cfg.Auth.MinPasswordLength, cfg.Auth.BcryptCost),
		Groups:      group.NewService(groupStore, gate),
		Tasks:       task.NewService(taskStore, groupStore, gate),
		Invitations: invitation.NewService(invitationStore, userStore, gate),
		Sessions:    sessions,
		Cookies: auth.NewCookieCodec(auth.CookieOptions{
			Name:     cfg.Session.CookieName,
			HashKey:  []byte(cfg.Session.HashKey),
			BlockKey: []byte(cfg.Session.BlockKey),
			MaxAge:   cfg.Session.TTL,
			Secure:   cfg.Session.CookieSecure,
		}),
		RenewSessionCookie: cfg.Session.RenewOnAccess,
		LoginLimiter:       limiter,
		Metrics:            m,
		DB:                 pool,
		AllowedOrigins:     cfg.CORS.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-sigCh:
		slog.Info("shutting down")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	sweeper.Stop()

	return srv.Shutdown(shutdownCtx)
}

// cleanupLimiter drops idle login buckets once per window.
func cleanupLimiter(ctx context.Context, l *ratelimit.Limiter, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := l.Cleanup(); n > 0 {
				slog.Debug("dropped idle rate limit buckets", "count", n)
			}
		case <-ctx.Done():
			return
		}
	}
}
