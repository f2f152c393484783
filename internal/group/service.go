package group

import (
	"context"
	"unicode/utf8"

	"github.com/alecgard/tasker/internal/apperr"
	"github.com/alecgard/tasker/internal/authz"
	"github.com/alecgard/tasker/internal/sanitize"
)

const maxNameLength = 100

// Repository is the persistence the group service needs.
type Repository interface {
	Create(ctx context.Context, adminID, name string) (*Group, error)
	Get(ctx context.Context, id string) (*Group, error)
	Rename(ctx context.Context, id, name string) (*Group, error)
	DeleteWithTasks(ctx context.Context, id string) (int64, error)
	ListByAdmin(ctx context.Context, adminID string) ([]*Group, error)
	ListMembers(ctx context.Context, groupID string) ([]Member, error)
}

// Service enforces the group rules on top of a Repository.
type Service struct {
	repo Repository
	gate *authz.Gate
}

func NewService(repo Repository, gate *authz.Gate) *Service {
	return &Service{repo: repo, gate: gate}
}

func validateName(raw string) (string, error) {
	name := sanitize.Text(raw)
	if name == "" {
		return "", apperr.Validation("name is required")
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return "", apperr.Validation("name must be at most 100 characters")
	}
	if name == General {
		return "", apperr.Protected("the General group name is reserved")
	}
	return name, nil
}

// Create makes a new group administered by adminID, who also becomes its
// first member.
func (s *Service) Create(ctx context.Context, adminID, name string) (*Group, error) {
	name, err := validateName(name)
	if err != nil {
		return nil, err
	}
	return s.repo.Create(ctx, adminID, name)
}

// Rename changes a group's name. The General group is never renamed, and no
// group may take its name.
func (s *Service) Rename(ctx context.Context, requesterID, groupID, newName string) (*Group, error) {
	name, err := validateName(newName)
	if err != nil {
		return nil, err
	}

	g, err := s.repo.Get(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if g.Name == General {
		return nil, apperr.Protected("the General group cannot be renamed")
	}
	if err := s.gate.RequireAdmin(ctx, requesterID, groupID); err != nil {
		return nil, err
	}

	return s.repo.Rename(ctx, groupID, name)
}

// Delete removes a group together with its tasks and returns how many tasks
// went with it. name, when given, must be the group's current name.
func (s *Service) Delete(ctx context.Context, requesterID, groupID, name string) (int64, error) {
	g, err := s.repo.Get(ctx, groupID)
	if err != nil {
		return 0, err
	}
	if g.Name == General || name == General {
		return 0, apperr.Protected("the General group cannot be deleted")
	}
	if err := s.gate.RequireAdmin(ctx, requesterID, groupID); err != nil {
		return 0, err
	}
	if name != "" && name != g.Name {
		return 0, apperr.Validation("name does not match the group")
	}

	return s.repo.DeleteWithTasks(ctx, groupID)
}

// ListForUser returns the groups userID administers.
//
// Groups joined through an accepted invitation are not included; members who
// are not admins get no group listing.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]*Group, error) {
	return s.repo.ListByAdmin(ctx, userID)
}

// ListMembers returns the members of groupID. Any authenticated user may list
// any group's members.
func (s *Service) ListMembers(ctx context.Context, groupID string) ([]Member, error) {
	if _, err := s.repo.Get(ctx, groupID); err != nil {
		return nil, err
	}
	return s.repo.ListMembers(ctx, groupID)
}
