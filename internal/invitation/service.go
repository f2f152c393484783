package invitation

import (
	"context"
	"strings"

	"github.com/alecgard/tasker/internal/apperr"
	"github.com/alecgard/tasker/internal/authz"
	"github.com/alecgard/tasker/internal/user"
)

// Repository is the persistence the invitation workflow needs.
type Repository interface {
	Create(ctx context.Context, senderID, receiverID, groupID string) (*Invitation, error)
	Get(ctx context.Context, id string) (*Invitation, error)
	ListPending(ctx context.Context, receiverID string) ([]Notification, error)
	Resolve(ctx context.Context, id string, status Status) (*Invitation, error)
}

// UserFinder resolves invitation receivers by display name.
type UserFinder interface {
	GetByName(ctx context.Context, name string) (*user.User, error)
}

// Service runs the pending -> accepted | declined workflow.
type Service struct {
	repo  Repository
	users UserFinder
	gate  *authz.Gate
}

func NewService(repo Repository, users UserFinder, gate *authz.Gate) *Service {
	return &Service{repo: repo, users: users, gate: gate}
}

// Invite creates a pending invitation for the user named receiverName to
// join groupID. Only the group admin may invite, and only users who are not
// already members and have no invitation to the group pending.
func (s *Service) Invite(ctx context.Context, senderID, groupID, receiverName string) (*Invitation, error) {
	receiverName = strings.TrimSpace(receiverName)
	if receiverName == "" {
		return nil, apperr.Validation("userName is required")
	}

	receiver, err := s.users.GetByName(ctx, receiverName)
	if err != nil {
		return nil, err
	}

	if err := s.gate.RequireAdmin(ctx, senderID, groupID); err != nil {
		return nil, err
	}

	member, err := s.gate.IsMember(ctx, receiver.ID, groupID)
	if err != nil {
		return nil, err
	}
	if member {
		return nil, apperr.Conflict("user is already a member of this group")
	}

	return s.repo.Create(ctx, senderID, receiver.ID, groupID)
}

// ListPending returns the pending invitations addressed to receiverID.
func (s *Service) ListPending(ctx context.Context, receiverID string) ([]Notification, error) {
	return s.repo.ListPending(ctx, receiverID)
}

// Accept resolves the invitation as accepted and makes the receiver a member
// of the group.
func (s *Service) Accept(ctx context.Context, receiverID, invitationID string) (*Invitation, error) {
	return s.resolve(ctx, receiverID, invitationID, StatusAccepted)
}

// Decline resolves the invitation as declined.
func (s *Service) Decline(ctx context.Context, receiverID, invitationID string) (*Invitation, error) {
	return s.resolve(ctx, receiverID, invitationID, StatusDeclined)
}

func (s *Service) resolve(ctx context.Context, receiverID, invitationID string, to Status) (*Invitation, error) {
	inv, err := s.repo.Get(ctx, invitationID)
	if err != nil {
		return nil, err
	}
	if inv.ReceiverID != receiverID {
		return nil, apperr.Forbidden("invitation is addressed to another user")
	}
	if inv.Status != StatusPending {
		return nil, apperr.InvalidState("invitation is no longer pending")
	}
	return s.repo.Resolve(ctx, invitationID, to)
}
