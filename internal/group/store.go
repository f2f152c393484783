package group

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alecgard/tasker/internal/apperr"
	"github.com/alecgard/tasker/internal/db"
)

// Store provides database operations for groups and memberships.
type Store struct {
	pool *pgxpool.Pool

	// beforeGroupDelete runs inside the delete transaction after the tasks
	// are gone. Tests use it to abort the transaction midway.
	beforeGroupDelete func(ctx context.Context, tx pgx.Tx) error
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const groupColumns = `id, name, COALESCE(admin_id::text, ''), created_at`

func scanGroup(row pgx.Row) (*Group, error) {
	g := &Group{}
	if err := row.Scan(&g.ID, &g.Name, &g.AdminID, &g.CreatedAt); err != nil {
		return nil, err
	}
	return g, nil
}

// InsertGroup creates a group row using q, which may be a transaction.
func InsertGroup(ctx context.Context, q db.Querier, adminID, name string) (*Group, error) {
	g, err := scanGroup(q.QueryRow(ctx,
		`INSERT INTO groups (name, admin_id) VALUES ($1, $2)
		 RETURNING `+groupColumns,
		name, adminID,
	))
	if err != nil {
		if db.IsUniqueViolation(err, "groups_one_general_per_admin") {
			return nil, apperr.Wrap(apperr.KindConflict, "user already has a General group", err)
		}
		return nil, fmt.Errorf("inserting group: %w", err)
	}
	return g, nil
}

// InsertMembership adds userID to groupID using q. Adding an existing member
// is a no-op.
func InsertMembership(ctx context.Context, q db.Querier, userID, groupID string) error {
	_, err := q.Exec(ctx,
		`INSERT INTO lists (user_id, group_id) VALUES ($1, $2)
		 ON CONFLICT (user_id, group_id) DO NOTHING`,
		userID, groupID,
	)
	if err != nil {
		return fmt.Errorf("inserting membership: %w", err)
	}
	return nil
}

// Create inserts a group and its admin's membership in one transaction.
func (s *Store) Create(ctx context.Context, adminID, name string) (*Group, error) {
	var g *Group
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		g, err = InsertGroup(ctx, tx, adminID, name)
		if err != nil {
			return err
		}
		return InsertMembership(ctx, tx, adminID, g.ID)
	})
	if err != nil {
		return nil, fmt.Errorf("creating group: %w", err)
	}
	return g, nil
}

func (s *Store) Get(ctx context.Context, id string) (*Group, error) {
	g, err := scanGroup(s.pool.QueryRow(ctx,
		`SELECT `+groupColumns+` FROM groups WHERE id = $1`, id))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, apperr.NotFound("group not found")
		}
		return nil, fmt.Errorf("getting group: %w", err)
	}
	return g, nil
}

// GroupAdmin returns the admin id of the group, "" if it has none.
func (s *Store) GroupAdmin(ctx context.Context, groupID string) (string, error) {
	g, err := s.Get(ctx, groupID)
	if err != nil {
		return "", err
	}
	return g.AdminID, nil
}

func (s *Store) IsMember(ctx context.Context, userID, groupID string) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM lists WHERE user_id = $1 AND group_id = $2)`,
		userID, groupID,
	).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("checking membership: %w", err)
	}
	return ok, nil
}

// GeneralFor returns the General group administered by adminID.
func (s *Store) GeneralFor(ctx context.Context, adminID string) (*Group, error) {
	g, err := scanGroup(s.pool.QueryRow(ctx,
		`SELECT `+groupColumns+` FROM groups WHERE admin_id = $1 AND name = $2`,
		adminID, General,
	))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, apperr.New(apperr.KindInternal, "user has no General group")
		}
		return nil, fmt.Errorf("getting general group: %w", err)
	}
	return g, nil
}

func (s *Store) Rename(ctx context.Context, id, name string) (*Group, error) {
	g, err := scanGroup(s.pool.QueryRow(ctx,
		`UPDATE groups SET name = $2 WHERE id = $1 RETURNING `+groupColumns,
		id, name,
	))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, apperr.NotFound("group not found")
		}
		return nil, fmt.Errorf("renaming group: %w", err)
	}
	return g, nil
}

// DeleteWithTasks removes the group's tasks and then the group itself in one
// transaction, returning how many tasks were removed.
func (s *Store) DeleteWithTasks(ctx context.Context, id string) (int64, error) {
	var removed int64
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM tasks WHERE group_id = $1`, id)
		if err != nil {
			return fmt.Errorf("deleting tasks: %w", err)
		}
		removed = tag.RowsAffected()

		if s.beforeGroupDelete != nil {
			if err := s.beforeGroupDelete(ctx, tx); err != nil {
				return err
			}
		}

		tag, err = tx.Exec(ctx, `DELETE FROM groups WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("deleting group row: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return apperr.NotFound("group not found")
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("deleting group: %w", err)
	}
	return removed, nil
}

// ListByAdmin returns the groups adminID administers, General first.
func (s *Store) ListByAdmin(ctx context.Context, adminID string) ([]*Group, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+groupColumns+` FROM groups
		 WHERE admin_id = $1
		 ORDER BY (name = $2) DESC, created_at, id`,
		adminID, General,
	)
	if err != nil {
		return nil, fmt.Errorf("listing groups: %w", err)
	}
	defer rows.Close()

	groups := []*Group{}
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning group row: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// ListMembers returns the users in groupID ordered by name.
func (s *Store) ListMembers(ctx context.Context, groupID string) ([]Member, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT u.id, u.name, u.email
		 FROM lists l JOIN users u ON u.id = l.user_id
		 WHERE l.group_id = $1
		 ORDER BY u.name`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing members: %w", err)
	}
	defer rows.Close()

	members := []Member{}
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.ID, &m.Name, &m.Email); err != nil {
			return nil, fmt.Errorf("scanning member row: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}
