package group_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alecgard/tasker/internal/apperr"
	"github.com/alecgard/tasker/internal/group"
	"github.com/alecgard/tasker/internal/task"
	"github.com/alecgard/tasker/internal/testutil"
	"github.com/alecgard/tasker/internal/user"
)

type fixture struct {
	mem   *testutil.MemStore
	svc   *group.Service
	alice *user.Registration
	bob   *user.Registration
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := testutil.NewMemStore()
	ctx := context.Background()

	alice, err := mem.Users().Register(ctx, "alice", "a@x.com", "hash")
	if err != nil {
		t.Fatal(err)
	}
	bob, err := mem.Users().Register(ctx, "bob", "b@x.com", "hash")
	if err != nil {
		t.Fatal(err)
	}

	return &fixture{
		mem:   mem,
		svc:   group.NewService(mem.Groups(), mem.Gate()),
		alice: alice,
		bob:   bob,
	}
}

func TestCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	g, err := f.svc.Create(ctx, f.alice.User.ID, "  Work ")
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if g.Name != "Work" || g.AdminID != f.alice.User.ID {
		t.Errorf("unexpected group %+v", g)
	}
	if ok, _ := f.mem.Groups().IsMember(ctx, f.alice.User.ID, g.ID); !ok {
		t.Error("expected admin to be a member")
	}
}

func TestCreate_Rejects(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name     string
		in       string
		wantKind apperr.Kind
	}{
		{"empty", "", apperr.KindValidation},
		{"markup only", "<b></b>", apperr.KindValidation},
		{"reserved", "General", apperr.KindProtected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(context.Background(), f.alice.User.ID, tt.in)
			if !apperr.Is(err, tt.wantKind) {
				t.Errorf("expected %s, got %v", tt.wantKind, err)
			}
		})
	}
}

func TestCreate_FailureLeavesNothing(t *testing.T) {
	f := newFixture(t)
	f.mem.FailNext = errors.New("boom")

	if _, err := f.svc.Create(context.Background(), f.alice.User.ID, "Work"); err == nil {
		t.Fatal("expected error")
	}
	_, groups, members, _, _ := f.mem.Counts()
	if groups != 2 || members != 2 {
		t.Errorf("expected only the General groups, got %d groups / %d members", groups, members)
	}
}

func TestRename(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	work, err := f.svc.Create(ctx, f.alice.User.ID, "Work")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		user     string
		group    string
		newName  string
		wantKind apperr.Kind
	}{
		{"admin renames", f.alice.User.ID, work.ID, "Office", ""},
		{"non admin", f.bob.User.ID, work.ID, "Mine", apperr.KindForbidden},
		{"to General", f.alice.User.ID, work.ID, "General", apperr.KindProtected},
		{"General itself", f.alice.User.ID, f.alice.GeneralGroupID, "Inbox", apperr.KindProtected},
		{"someone else's General", f.bob.User.ID, f.alice.GeneralGroupID, "Inbox", apperr.KindProtected},
		{"missing group", f.alice.User.ID, "00000000-0000-0000-0000-000000000000", "X", apperr.KindNotFound},
		{"empty name", f.alice.User.ID, work.ID, "", apperr.KindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := f.svc.Rename(ctx, tt.user, tt.group, tt.newName)
			if tt.wantKind == "" {
				if err != nil {
					t.Fatalf("Rename() error: %v", err)
				}
				if g.Name != tt.newName {
					t.Errorf("expected name %q, got %q", tt.newName, g.Name)
				}
				return
			}
			if !apperr.Is(err, tt.wantKind) {
				t.Errorf("expected %s, got %v", tt.wantKind, err)
			}
		})
	}
}

func addTasks(t *testing.T, f *fixture, groupID string, n int) {
	t.Helper()
	deadline, _ := task.ParseDate("2024-06-15")
	for i := 0; i < n; i++ {
		_, err := f.mem.Tasks().Create(context.Background(), f.alice.User.ID, task.Fields{
			Name: "t", Deadline: deadline, GroupID: groupID,
		})
		if err != nil {
			t.Fatal(err)
		}
	}
}

func TestDelete_CascadesTasks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	work, _ := f.svc.Create(ctx, f.alice.User.ID, "Work")
	addTasks(t, f, work.ID, 3)
	addTasks(t, f, f.alice.GeneralGroupID, 1)

	n, err := f.svc.Delete(ctx, f.alice.User.ID, work.ID, "Work")
	if err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 tasks removed, got %d", n)
	}
	if _, err := f.mem.Groups().Get(ctx, work.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("expected group gone, got %v", err)
	}
	if _, _, _, tasks, _ := f.mem.Counts(); tasks != 1 {
		t.Errorf("expected the General task to survive, got %d tasks", tasks)
	}
}

func TestDelete_FailureLeavesEverything(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	work, _ := f.svc.Create(ctx, f.alice.User.ID, "Work")
	addTasks(t, f, work.ID, 3)
	f.mem.FailNext = errors.New("crash")

	if _, err := f.svc.Delete(ctx, f.alice.User.ID, work.ID, ""); err == nil {
		t.Fatal("expected error")
	}
	if _, err := f.mem.Groups().Get(ctx, work.ID); err != nil {
		t.Errorf("expected group to survive, got %v", err)
	}
	if _, _, _, tasks, _ := f.mem.Counts(); tasks != 3 {
		t.Errorf("expected all 3 tasks to survive, got %d", tasks)
	}
}

func TestDelete_Rejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	work, _ := f.svc.Create(ctx, f.alice.User.ID, "Work")

	tests := []struct {
		name     string
		user     string
		group    string
		body     string
		wantKind apperr.Kind
	}{
		{"General by admin", f.alice.User.ID, f.alice.GeneralGroupID, "", apperr.KindProtected},
		{"General by stranger", f.bob.User.ID, f.alice.GeneralGroupID, "General", apperr.KindProtected},
		{"body names General", f.alice.User.ID, work.ID, "General", apperr.KindProtected},
		{"non admin", f.bob.User.ID, work.ID, "Work", apperr.KindForbidden},
		{"name mismatch", f.alice.User.ID, work.ID, "Play", apperr.KindValidation},
		{"missing", f.alice.User.ID, "00000000-0000-0000-0000-000000000000", "", apperr.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Delete(ctx, tt.user, tt.group, tt.body)
			if !apperr.Is(err, tt.wantKind) {
				t.Errorf("expected %s, got %v", tt.wantKind, err)
			}
		})
	}
}

func TestListForUser_AdminOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	work, _ := f.svc.Create(ctx, f.alice.User.ID, "Work")
	time.Sleep(time.Millisecond)
	_, _ = f.svc.Create(ctx, f.alice.User.ID, "Home")

	groups, err := f.svc.ListForUser(ctx, f.alice.User.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 3 {
		t.Fatalf("expected 3 groups, got %d", len(groups))
	}
	if groups[0].Name != group.General || groups[1].ID != work.ID {
		t.Errorf("unexpected order: %s, %s, %s", groups[0].Name, groups[1].Name, groups[2].Name)
	}

	// bob is not the admin of Work, so it is not listed for him even as a
	// member.
	bobGroups, _ := f.svc.ListForUser(ctx, f.bob.User.ID)
	if len(bobGroups) != 1 {
		t.Errorf("expected only bob's General, got %d", len(bobGroups))
	}
}

func TestListMembers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	work, _ := f.svc.Create(ctx, f.alice.User.ID, "Work")

	// Any authenticated user may list members.
	members, err := f.svc.ListMembers(ctx, work.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(members) != 1 || members[0].Name != "alice" {
		t.Errorf("unexpected members %+v", members)
	}

	if _, err := f.svc.ListMembers(ctx, "00000000-0000-0000-0000-000000000000"); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("expected not_found, got %v", err)
	}
}
