package task

import (
	"context"
	"unicode/utf8"

	"github.com/alecgard/tasker/internal/apperr"
	"github.com/alecgard/tasker/internal/authz"
	"github.com/alecgard/tasker/internal/group"
	"github.com/alecgard/tasker/internal/sanitize"
)

const (
	maxNameLength  = 200
	maxNotesLength = 2000
)

// Repository is the persistence the task service needs.
type Repository interface {
	Create(ctx context.Context, creatorID string, f Fields) (*Task, error)
	Get(ctx context.Context, id string) (*Task, error)
	Update(ctx context.Context, id string, f Fields) (*Task, error)
	SetStatus(ctx context.Context, id string, status bool) (*Task, error)
	Delete(ctx context.Context, id string) error
	ListByAdmin(ctx context.Context, adminID string) ([]*Task, error)
	ListByGroup(ctx context.Context, groupID string) ([]*Task, error)
}

// GeneralGroups finds a user's default group.
type GeneralGroups interface {
	GeneralFor(ctx context.Context, adminID string) (*group.Group, error)
}

type Service struct {
	repo   Repository
	groups GeneralGroups
	gate   *authz.Gate
}

func NewService(repo Repository, groups GeneralGroups, gate *authz.Gate) *Service {
	return &Service{repo: repo, groups: groups, gate: gate}
}

func validate(name, notes, deadline string) (Fields, error) {
	f := Fields{
		Name:  sanitize.Text(name),
		Notes: sanitize.Text(notes),
	}
	if f.Name == "" {
		return f, apperr.Validation("name is required")
	}
	if utf8.RuneCountInString(f.Name) > maxNameLength {
		return f, apperr.Validation("name must be at most 200 characters")
	}
	if utf8.RuneCountInString(f.Notes) > maxNotesLength {
		return f, apperr.Validation("notes must be at most 2000 characters")
	}
	if deadline == "" {
		return f, apperr.Validation("deadline is required")
	}
	d, err := ParseDate(deadline)
	if err != nil {
		return f, apperr.Validation(err.Error())
	}
	f.Deadline = d
	return f, nil
}

// Add creates an incomplete task. Without a group id the task goes to the
// requester's General group. The requester must be a member of the group.
func (s *Service) Add(ctx context.Context, requesterID string, in AddInput) (*Task, error) {
	f, err := validate(in.Name, in.Notes, in.Deadline)
	if err != nil {
		return nil, err
	}

	f.GroupID = in.GroupID
	if f.GroupID == "" {
		g, err := s.groups.GeneralFor(ctx, requesterID)
		if err != nil {
			return nil, err
		}
		f.GroupID = g.ID
	}

	if err := s.gate.RequireMember(ctx, requesterID, f.GroupID); err != nil {
		return nil, err
	}

	return s.repo.Create(ctx, requesterID, f)
}

// loadForAdmin returns the task when requesterID administers its group.
func (s *Service) loadForAdmin(ctx context.Context, requesterID, taskID string) (*Task, error) {
	t, err := s.repo.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.gate.RequireAdmin(ctx, requesterID, t.GroupID); err != nil {
		return nil, err
	}
	return t, nil
}

// Update replaces the task's name, notes and deadline, and moves it when a
// different group is given. Moving requires membership in the new group.
func (s *Service) Update(ctx context.Context, requesterID, taskID string, in UpdateInput) (*Task, error) {
	f, err := validate(in.Name, in.Notes, in.Deadline)
	if err != nil {
		return nil, err
	}

	t, err := s.loadForAdmin(ctx, requesterID, taskID)
	if err != nil {
		return nil, err
	}

	f.GroupID = t.GroupID
	if in.GroupID != "" && in.GroupID != t.GroupID {
		if err := s.gate.RequireMember(ctx, requesterID, in.GroupID); err != nil {
			return nil, err
		}
		f.GroupID = in.GroupID
	}

	return s.repo.Update(ctx, taskID, f)
}

// SetStatus marks the task complete or incomplete.
func (s *Service) SetStatus(ctx context.Context, requesterID, taskID string, status bool) (*Task, error) {
	if _, err := s.loadForAdmin(ctx, requesterID, taskID); err != nil {
		return nil, err
	}
	return s.repo.SetStatus(ctx, taskID, status)
}

func (s *Service) Delete(ctx context.Context, requesterID, taskID string) error {
	if _, err := s.loadForAdmin(ctx, requesterID, taskID); err != nil {
		return err
	}
	return s.repo.Delete(ctx, taskID)
}

// ListForUser returns the tasks of every group requesterID administers.
func (s *Service) ListForUser(ctx context.Context, requesterID string) ([]*Task, error) {
	return s.repo.ListByAdmin(ctx, requesterID)
}

// ListForGroup returns a group's tasks. Only the group admin may list them.
func (s *Service) ListForGroup(ctx context.Context, requesterID, groupID string) ([]*Task, error) {
	if err := s.gate.RequireAdmin(ctx, requesterID, groupID); err != nil {
		return nil, err
	}
	return s.repo.ListByGroup(ctx, groupID)
}
