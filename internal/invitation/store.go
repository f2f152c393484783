package invitation

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alecgard/tasker/internal/apperr"
	"github.com/alecgard/tasker/internal/db"
	"github.com/alecgard/tasker/internal/group"
)

// Store provides database operations for invitations.
type Store struct {
	pool *pgxpool.Pool

	// beforeMembership runs inside the accept transaction after the status
	// change. Tests use it to abort acceptance midway.
	beforeMembership func(ctx context.Context, tx pgx.Tx) error
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const invitationColumns = `id, sender_id, receiver_id, group_id, status, created_at, resolved_at`

func scanInvitation(row pgx.Row) (*Invitation, error) {
	inv := &Invitation{}
	var status string
	err := row.Scan(&inv.ID, &inv.SenderID, &inv.ReceiverID, &inv.GroupID,
		&status, &inv.CreatedAt, &inv.ResolvedAt)
	if err != nil {
		return nil, err
	}
	inv.Status = Status(status)
	return inv, nil
}

// Create inserts a pending invitation. A second pending invitation for the
// same receiver and group is a conflict.
func (s *Store) Create(ctx context.Context, senderID, receiverID, groupID string) (*Invitation, error) {
	inv, err := scanInvitation(s.pool.QueryRow(ctx,
		`INSERT INTO invitations (sender_id, receiver_id, group_id)
		 VALUES ($1, $2, $3)
		 RETURNING `+invitationColumns,
		senderID, receiverID, groupID,
	))
	if err != nil {
		if db.IsUniqueViolation(err, "invitations_one_pending") {
			return nil, apperr.Wrap(apperr.KindConflict, "an invitation to this group is already pending", err)
		}
		return nil, fmt.Errorf("creating invitation: %w", err)
	}
	return inv, nil
}

func (s *Store) Get(ctx context.Context, id string) (*Invitation, error) {
	inv, err := scanInvitation(s.pool.QueryRow(ctx,
		`SELECT `+invitationColumns+` FROM invitations WHERE id = $1`, id))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, apperr.NotFound("invitation not found")
		}
		return nil, fmt.Errorf("getting invitation: %w", err)
	}
	return inv, nil
}

// ListPending returns the receiver's pending invitations, newest first.
func (s *Store) ListPending(ctx context.Context, receiverID string) ([]Notification, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT i.id, i.status, i.created_at, u.id, u.name, u.email, g.id, g.name
		 FROM invitations i
		 JOIN users u ON u.id = i.sender_id
		 JOIN groups g ON g.id = i.group_id
		 WHERE i.receiver_id = $1 AND i.status = 'pending'
		 ORDER BY i.created_at DESC, i.id`,
		receiverID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing invitations: %w", err)
	}
	defer rows.Close()

	out := []Notification{}
	for rows.Next() {
		var n Notification
		var status string
		err := rows.Scan(&n.ID, &status, &n.CreatedAt,
			&n.Sender.ID, &n.Sender.Name, &n.Sender.Email, &n.Group.ID, &n.Group.Name)
		if err != nil {
			return nil, fmt.Errorf("scanning invitation row: %w", err)
		}
		n.Status = Status(status)
		out = append(out, n)
	}
	return out, rows.Err()
}

// Resolve moves a pending invitation to status. Accepting also adds the
// receiver to the group; both writes commit together. An invitation that is
// no longer pending yields invalid_state.
func (s *Store) Resolve(ctx context.Context, id string, status Status) (*Invitation, error) {
	var inv *Invitation
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		inv, err = scanInvitation(tx.QueryRow(ctx,
			`UPDATE invitations SET status = $2, resolved_at = now()
			 WHERE id = $1 AND status = 'pending'
			 RETURNING `+invitationColumns,
			id, string(status),
		))
		if err != nil {
			if db.IsNoRows(err) {
				return apperr.InvalidState("invitation is no longer pending")
			}
			return fmt.Errorf("updating invitation: %w", err)
		}

		if status != StatusAccepted {
			return nil
		}
		if s.beforeMembership != nil {
			if err := s.beforeMembership(ctx, tx); err != nil {
				return err
			}
		}
		return group.InsertMembership(ctx, tx, inv.ReceiverID, inv.GroupID)
	})
	if err != nil {
		return nil, fmt.Errorf("resolving invitation: %w", err)
	}
	return inv, nil
}
