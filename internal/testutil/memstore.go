// Package testutil provides an in-memory implementation of every store
// interface for service and HTTP tests.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alecgard/tasker/internal/apperr"
	"github.com/alecgard/tasker/internal/authz"
	"github.com/alecgard/tasker/internal/group"
	"github.com/alecgard/tasker/internal/invitation"
	"github.com/alecgard/tasker/internal/task"
	"github.com/alecgard/tasker/internal/user"
)

type membership struct {
	userID, groupID string
}

// MemStore holds users, groups, memberships, tasks and invitations behind a
// single mutex, so every multi-row operation is atomic.
type MemStore struct {
	mu          sync.Mutex
	users       map[string]*user.User
	groups      map[string]*group.Group
	members     map[membership]time.Time
	tasks       map[string]*task.Task
	invitations map[string]*invitation.Invitation

	// FailNext, when set, is returned by the next multi-row write before
	// anything is applied.
	FailNext error
}

func NewMemStore() *MemStore {
	return &MemStore{
		users:       make(map[string]*user.User),
		groups:      make(map[string]*group.Group),
		members:     make(map[membership]time.Time),
		tasks:       make(map[string]*task.Task),
		invitations: make(map[string]*invitation.Invitation),
	}
}

func (m *MemStore) takeFailure() error {
	err := m.FailNext
	m.FailNext = nil
	return err
}

// Counts reports the number of rows per table.
func (m *MemStore) Counts() (users, groups, members, tasks, invitations int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users), len(m.groups), len(m.members), len(m.tasks), len(m.invitations)
}

func (m *MemStore) Users() *MemUsers             { return &MemUsers{m} }
func (m *MemStore) Groups() *MemGroups           { return &MemGroups{m} }
func (m *MemStore) Tasks() *MemTasks             { return &MemTasks{m} }
func (m *MemStore) Invitations() *MemInvitations { return &MemInvitations{m} }

// --- users ---

type MemUsers struct{ m *MemStore }

func (s *MemUsers) Register(ctx context.Context, name, email, passwordHash string) (*user.Registration, error) {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Email == email {
			return nil, apperr.Conflict("email already registered")
		}
		if u.Name == name {
			return nil, apperr.Conflict("username already taken")
		}
	}
	if err := m.takeFailure(); err != nil {
		return nil, err
	}

	now := time.Now()
	u := &user.User{ID: uuid.NewString(), Name: name, Email: email, PasswordHash: passwordHash, CreatedAt: now}
	g := &group.Group{ID: uuid.NewString(), Name: group.General, AdminID: u.ID, CreatedAt: now}
	m.users[u.ID] = u
	m.groups[g.ID] = g
	m.members[membership{u.ID, g.ID}] = now

	cp := *u
	return &user.Registration{User: &cp, GeneralGroupID: g.ID}, nil
}

func (s *MemUsers) find(match func(*user.User) bool) (*user.User, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, u := range s.m.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("user not found")
}

func (s *MemUsers) GetByID(ctx context.Context, id string) (*user.User, error) {
	return s.find(func(u *user.User) bool { return u.ID == id })
}

func (s *MemUsers) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	return s.find(func(u *user.User) bool { return u.Email == email })
}

func (s *MemUsers) GetByName(ctx context.Context, name string) (*user.User, error) {
	return s.find(func(u *user.User) bool { return u.Name == name })
}

// --- groups ---

type MemGroups struct{ m *MemStore }

func (s *MemGroups) Create(ctx context.Context, adminID, name string) (*group.Group, error) {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	now := time.Now()
	g := &group.Group{ID: uuid.NewString(), Name: name, AdminID: adminID, CreatedAt: now}
	m.groups[g.ID] = g
	m.members[membership{adminID, g.ID}] = now

	cp := *g
	return &cp, nil
}

func (s *MemGroups) Get(ctx context.Context, id string) (*group.Group, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	g, ok := s.m.groups[id]
	if !ok {
		return nil, apperr.NotFound("group not found")
	}
	cp := *g
	return &cp, nil
}

func (s *MemGroups) GroupAdmin(ctx context.Context, groupID string) (string, error) {
	g, err := s.Get(ctx, groupID)
	if err != nil {
		return "", err
	}
	return g.AdminID, nil
}

func (s *MemGroups) IsMember(ctx context.Context, userID, groupID string) (bool, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	_, ok := s.m.members[membership{userID, groupID}]
	return ok, nil
}

func (s *MemGroups) GeneralFor(ctx context.Context, adminID string) (*group.Group, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, g := range s.m.groups {
		if g.AdminID == adminID && g.Name == group.General {
			cp := *g
			return &cp, nil
		}
	}
	return nil, apperr.New(apperr.KindInternal, "user has no General group")
}

func (s *MemGroups) Rename(ctx context.Context, id, name string) (*group.Group, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	g, ok := s.m.groups[id]
	if !ok {
		return nil, apperr.NotFound("group not found")
	}
	g.Name = name
	cp := *g
	return &cp, nil
}

func (s *MemGroups) DeleteWithTasks(ctx context.Context, id string) (int64, error) {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.groups[id]; !ok {
		return 0, apperr.NotFound("group not found")
	}
	if err := m.takeFailure(); err != nil {
		return 0, err
	}

	var n int64
	for tid, t := range m.tasks {
		if t.GroupID == id {
			delete(m.tasks, tid)
			n++
		}
	}
	for k := range m.members {
		if k.groupID == id {
			delete(m.members, k)
		}
	}
	for iid, inv := range m.invitations {
		if inv.GroupID == id {
			delete(m.invitations, iid)
		}
	}
	delete(m.groups, id)
	return n, nil
}

func (s *MemGroups) ListByAdmin(ctx context.Context, adminID string) ([]*group.Group, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	out := []*group.Group{}
	for _, g := range s.m.groups {
		if g.AdminID == adminID {
			cp := *g
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		gi, gj := out[i].Name == group.General, out[j].Name == group.General
		if gi != gj {
			return gi
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemGroups) ListMembers(ctx context.Context, groupID string) ([]group.Member, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	out := []group.Member{}
	for k := range s.m.members {
		if k.groupID != groupID {
			continue
		}
		if u, ok := s.m.users[k.userID]; ok {
			out = append(out, group.Member{ID: u.ID, Name: u.Name, Email: u.Email})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// --- tasks ---

type MemTasks struct{ m *MemStore }

// withGroupName returns a copy of t carrying its group's current name.
// Callers hold the lock.
func (s *MemTasks) withGroupName(t *task.Task) *task.Task {
	cp := *t
	if g, ok := s.m.groups[t.GroupID]; ok {
		cp.GroupName = g.Name
	}
	return &cp
}

func (s *MemTasks) Create(ctx context.Context, creatorID string, f task.Fields) (*task.Task, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	if _, ok := s.m.groups[f.GroupID]; !ok {
		return nil, apperr.NotFound("group not found")
	}
	now := time.Now()
	t := &task.Task{
		ID:        uuid.NewString(),
		Name:      f.Name,
		Notes:     f.Notes,
		Deadline:  f.Deadline,
		GroupID:   f.GroupID,
		CreatorID: creatorID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.m.tasks[t.ID] = t
	return s.withGroupName(t), nil
}

func (s *MemTasks) Get(ctx context.Context, id string) (*task.Task, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	t, ok := s.m.tasks[id]
	if !ok {
		return nil, apperr.NotFound("task not found")
	}
	return s.withGroupName(t), nil
}

func (s *MemTasks) Update(ctx context.Context, id string, f task.Fields) (*task.Task, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	t, ok := s.m.tasks[id]
	if !ok {
		return nil, apperr.NotFound("task not found")
	}
	t.Name, t.Notes, t.Deadline, t.GroupID = f.Name, f.Notes, f.Deadline, f.GroupID
	t.UpdatedAt = time.Now()
	return s.withGroupName(t), nil
}

func (s *MemTasks) SetStatus(ctx context.Context, id string, status bool) (*task.Task, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	t, ok := s.m.tasks[id]
	if !ok {
		return nil, apperr.NotFound("task not found")
	}
	t.Status = status
	t.UpdatedAt = time.Now()
	return s.withGroupName(t), nil
}

func (s *MemTasks) Delete(ctx context.Context, id string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.tasks[id]; !ok {
		return apperr.NotFound("task not found")
	}
	delete(s.m.tasks, id)
	return nil
}

func (s *MemTasks) list(match func(*task.Task) bool) []*task.Task {
	out := []*task.Task{}
	for _, t := range s.m.tasks {
		if match(t) {
			out = append(out, s.withGroupName(t))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Deadline.Equal(out[j].Deadline.Time) {
			return out[i].Deadline.Before(out[j].Deadline.Time)
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *MemTasks) ListByAdmin(ctx context.Context, adminID string) ([]*task.Task, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	return s.list(func(t *task.Task) bool {
		g, ok := s.m.groups[t.GroupID]
		return ok && g.AdminID == adminID
	}), nil
}

func (s *MemTasks) ListByGroup(ctx context.Context, groupID string) ([]*task.Task, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	return s.list(func(t *task.Task) bool { return t.GroupID == groupID }), nil
}

// --- invitations ---

type MemInvitations struct{ m *MemStore }

func (s *MemInvitations) Create(ctx context.Context, senderID, receiverID, groupID string) (*invitation.Invitation, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	for _, inv := range s.m.invitations {
		if inv.ReceiverID == receiverID && inv.GroupID == groupID && inv.Status == invitation.StatusPending {
			return nil, apperr.Conflict("an invitation to this group is already pending")
		}
	}
	inv := &invitation.Invitation{
		ID:         uuid.NewString(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		GroupID:    groupID,
		Status:     invitation.StatusPending,
		CreatedAt:  time.Now(),
	}
	s.m.invitations[inv.ID] = inv
	cp := *inv
	return &cp, nil
}

func (s *MemInvitations) Get(ctx context.Context, id string) (*invitation.Invitation, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	inv, ok := s.m.invitations[id]
	if !ok {
		return nil, apperr.NotFound("invitation not found")
	}
	cp := *inv
	return &cp, nil
}

func (s *MemInvitations) ListPending(ctx context.Context, receiverID string) ([]invitation.Notification, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	out := []invitation.Notification{}
	for _, inv := range s.m.invitations {
		if inv.ReceiverID != receiverID || inv.Status != invitation.StatusPending {
			continue
		}
		sender, okS := s.m.users[inv.SenderID]
		g, okG := s.m.groups[inv.GroupID]
		if !okS || !okG {
			continue
		}
		out = append(out, invitation.Notification{
			ID:        inv.ID,
			Status:    inv.Status,
			CreatedAt: inv.CreatedAt,
			Sender:    invitation.Sender{ID: sender.ID, Name: sender.Name, Email: sender.Email},
			Group:     invitation.GroupRef{ID: g.ID, Name: g.Name},
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemInvitations) Resolve(ctx context.Context, id string, status invitation.Status) (*invitation.Invitation, error) {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()

	inv, ok := m.invitations[id]
	if !ok || inv.Status != invitation.StatusPending {
		return nil, apperr.InvalidState("invitation is no longer pending")
	}
	if err := m.takeFailure(); err != nil {
		return nil, err
	}

	now := time.Now()
	inv.Status = status
	inv.ResolvedAt = &now
	if status == invitation.StatusAccepted {
		m.members[membership{inv.ReceiverID, inv.GroupID}] = now
	}
	cp := *inv
	return &cp, nil
}

// Gate returns an authorization gate backed by m.
func (m *MemStore) Gate() *authz.Gate {
	return authz.NewGate(m.Groups())
}
