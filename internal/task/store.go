package task

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alecgard/tasker/internal/apperr"
	"github.com/alecgard/tasker/internal/db"
)

// Store provides database operations for tasks.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// selectTask reads from t (a tasks row set) joined with its group.
const selectTask = `SELECT t.id, t.name, t.notes, t.deadline, t.status, t.group_id,
	g.name, t.creator_id, t.created_at, t.updated_at
	FROM t JOIN groups g ON g.id = t.group_id`

func scanTask(row pgx.Row) (*Task, error) {
	t := &Task{}
	var deadline time.Time
	err := row.Scan(&t.ID, &t.Name, &t.Notes, &deadline, &t.Status, &t.GroupID,
		&t.GroupName, &t.CreatorID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Deadline = Date{deadline}
	return t, nil
}

func (s *Store) one(ctx context.Context, action, query string, args ...any) (*Task, error) {
	t, err := scanTask(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, apperr.NotFound("task not found")
		}
		return nil, fmt.Errorf("%s: %w", action, err)
	}
	return t, nil
}

func (s *Store) Create(ctx context.Context, creatorID string, f Fields) (*Task, error) {
	return s.one(ctx, "creating task",
		`WITH t AS (
			INSERT INTO tasks (name, notes, deadline, group_id, creator_id)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING *
		) `+selectTask,
		f.Name, f.Notes, f.Deadline.Time, f.GroupID, creatorID,
	)
}

func (s *Store) Get(ctx context.Context, id string) (*Task, error) {
	return s.one(ctx, "getting task",
		`WITH t AS (SELECT * FROM tasks WHERE id = $1) `+selectTask, id)
}

func (s *Store) Update(ctx context.Context, id string, f Fields) (*Task, error) {
	return s.one(ctx, "updating task",
		`WITH t AS (
			UPDATE tasks SET name = $2, notes = $3, deadline = $4, group_id = $5, updated_at = now()
			WHERE id = $1
			RETURNING *
		) `+selectTask,
		id, f.Name, f.Notes, f.Deadline.Time, f.GroupID,
	)
}

func (s *Store) SetStatus(ctx context.Context, id string, status bool) (*Task, error) {
	return s.one(ctx, "setting task status",
		`WITH t AS (
			UPDATE tasks SET status = $2, updated_at = now()
			WHERE id = $1
			RETURNING *
		) `+selectTask,
		id, status,
	)
}

func (s *Store) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("task not found")
	}
	return nil
}

func (s *Store) list(ctx context.Context, query string, arg string) ([]*Task, error) {
	rows, err := s.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	defer rows.Close()

	tasks := []*Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning task row: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// ListByAdmin returns every task in the groups adminID administers.
func (s *Store) ListByAdmin(ctx context.Context, adminID string) ([]*Task, error) {
	return s.list(ctx,
		`WITH t AS (
			SELECT tasks.* FROM tasks JOIN groups ON groups.id = tasks.group_id
			WHERE groups.admin_id = $1
		) `+selectTask+` ORDER BY t.deadline, t.created_at, t.id`,
		adminID,
	)
}

// ListByGroup returns the tasks of one group.
func (s *Store) ListByGroup(ctx context.Context, groupID string) ([]*Task, error) {
	return s.list(ctx,
		`WITH t AS (SELECT * FROM tasks WHERE group_id = $1) `+selectTask+
			` ORDER BY t.deadline, t.created_at, t.id`,
		groupID,
	)
}
