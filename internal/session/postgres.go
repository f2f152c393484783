package session

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alecgard/tasker/internal/auth"
	"github.com/alecgard/tasker/internal/db"
)

// PostgresStore persists sessions in the sessions table so they survive
// restarts and are shared between replicas.
type PostgresStore struct {
	pool          *pgxpool.Pool
	ttl           time.Duration
	renewOnAccess bool
}

func NewPostgresStore(pool *pgxpool.Pool, ttl time.Duration, renewOnAccess bool) *PostgresStore {
	return &PostgresStore{pool: pool, ttl: ttl, renewOnAccess: renewOnAccess}
}

func (s *PostgresStore) Create(ctx context.Context, id auth.Identity) (string, error) {
	token, err := auth.GenerateToken()
	if err != nil {
		return "", err
	}

	now := time.Now()
	_, err = s.pool.Exec(ctx,
		`INSERT INTO sessions (token_hash, user_id, created_at, expires_at)
		 VALUES ($1, $2, $3, $4)`,
		auth.HashToken(token), id.UserID, now, now.Add(s.ttl),
	)
	if err != nil {
		return "", fmt.Errorf("creating session: %w", err)
	}
	return token, nil
}

func (s *PostgresStore) Resolve(ctx context.Context, token string) (*auth.Identity, error) {
	hash := auth.HashToken(token)

	id := &auth.Identity{}
	err := s.pool.QueryRow(ctx,
		`SELECT u.id, u.email, u.name
		 FROM sessions s JOIN users u ON s.user_id = u.id
		 WHERE s.token_hash = $1 AND s.expires_at > now()`,
		hash,
	).Scan(&id.UserID, &id.Email, &id.Name)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, auth.ErrNoSession
		}
		return nil, fmt.Errorf("resolving session: %w", err)
	}

	if s.renewOnAccess {
		_, err := s.pool.Exec(ctx,
			`UPDATE sessions SET expires_at = $2 WHERE token_hash = $1`,
			hash, time.Now().Add(s.ttl))
		if err != nil {
			return nil, fmt.Errorf("renewing session: %w", err)
		}
	}
	return id, nil
}

func (s *PostgresStore) Destroy(ctx context.Context, token string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE token_hash = $1`, auth.HashToken(token))
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// Sweep deletes all sessions that have expired.
func (s *PostgresStore) Sweep(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("cleaning expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
