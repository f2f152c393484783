package user

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alecgard/tasker/internal/apperr"
	"github.com/alecgard/tasker/internal/db"
	"github.com/alecgard/tasker/internal/group"
)

// Store provides database operations for users.
type Store struct {
	pool *pgxpool.Pool

	// afterUserInsert runs inside the registration transaction once the user
	// row exists. Tests use it to abort registration midway.
	afterUserInsert func(ctx context.Context, tx pgx.Tx) error
}

// NewStore creates a new user store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const userColumns = `id, name, email, password_hash, created_at`

func scanUser(row pgx.Row) (*User, error) {
	u := &User{}
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
		return nil, err
	}
	return u, nil
}

func insertUser(ctx context.Context, q db.Querier, name, email, passwordHash string) (*User, error) {
	u, err := scanUser(q.QueryRow(ctx,
		`INSERT INTO users (name, email, password_hash)
		 VALUES ($1, $2, $3)
		 RETURNING `+userColumns,
		name, email, passwordHash,
	))
	if err != nil {
		switch {
		case db.IsUniqueViolation(err, "users_email_key"):
			return nil, apperr.Wrap(apperr.KindConflict, "email already registered", err)
		case db.IsUniqueViolation(err, "users_name_key"):
			return nil, apperr.Wrap(apperr.KindConflict, "username already taken", err)
		}
		return nil, fmt.Errorf("inserting user: %w", err)
	}
	return u, nil
}

// Register creates the user row, its General group and the membership
// linking them in one transaction.
func (s *Store) Register(ctx context.Context, name, email, passwordHash string) (*Registration, error) {
	var reg Registration
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		u, err := insertUser(ctx, tx, name, email, passwordHash)
		if err != nil {
			return err
		}
		if s.afterUserInsert != nil {
			if err := s.afterUserInsert(ctx, tx); err != nil {
				return err
			}
		}

		g, err := group.InsertGroup(ctx, tx, u.ID, group.General)
		if err != nil {
			return err
		}
		if err := group.InsertMembership(ctx, tx, u.ID, g.ID); err != nil {
			return err
		}

		reg = Registration{User: u, GeneralGroupID: g.ID}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("registering user: %w", err)
	}
	return &reg, nil
}

func (s *Store) getBy(ctx context.Context, column, value string) (*User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+column+` = $1`, value))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, fmt.Errorf("getting user by %s: %w", column, err)
	}
	return u, nil
}

// GetByID retrieves a user by primary key.
func (s *Store) GetByID(ctx context.Context, id string) (*User, error) {
	return s.getBy(ctx, "id", id)
}

// GetByEmail retrieves a user by email address.
func (s *Store) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.getBy(ctx, "email", email)
}

// GetByName retrieves a user by display name.
func (s *Store) GetByName(ctx context.Context, name string) (*User, error) {
	return s.getBy(ctx, "name", name)
}
