package invitation_test

import (
	"context"
	"errors"
	"testing"

	"github.com/alecgard/tasker/internal/apperr"
	"github.com/alecgard/tasker/internal/group"
	"github.com/alecgard/tasker/internal/invitation"
	"github.com/alecgard/tasker/internal/testutil"
	"github.com/alecgard/tasker/internal/user"
)

type fixture struct {
	mem   *testutil.MemStore
	svc   *invitation.Service
	alice *user.Registration
	bob   *user.Registration
	carol *user.Registration
	work  *group.Group
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := testutil.NewMemStore()
	ctx := context.Background()

	reg := func(name string) *user.Registration {
		r, err := mem.Users().Register(ctx, name, name+"@x.com", "hash")
		if err != nil {
			t.Fatal(err)
		}
		return r
	}
	f := &fixture{
		mem:   mem,
		svc:   invitation.NewService(mem.Invitations(), mem.Users(), mem.Gate()),
		alice: reg("alice"),
		bob:   reg("bob"),
		carol: reg("carol"),
	}

	work, err := mem.Groups().Create(ctx, f.alice.User.ID, "Work")
	if err != nil {
		t.Fatal(err)
	}
	f.work = work
	return f
}

func TestInviteAcceptScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv, err := f.svc.Invite(ctx, f.alice.User.ID, f.work.ID, "bob")
	if err != nil {
		t.Fatalf("Invite() error: %v", err)
	}
	if inv.Status != invitation.StatusPending || inv.ReceiverID != f.bob.User.ID {
		t.Errorf("unexpected invitation %+v", inv)
	}

	pending, err := f.svc.ListPending(ctx, f.bob.User.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending invitation, got %d", len(pending))
	}
	if pending[0].Group.Name != "Work" || pending[0].Sender.Name != "alice" || pending[0].Sender.Email != "alice@x.com" {
		t.Errorf("unexpected notification %+v", pending[0])
	}

	accepted, err := f.svc.Accept(ctx, f.bob.User.ID, inv.ID)
	if err != nil {
		t.Fatalf("Accept() error: %v", err)
	}
	if accepted.Status != invitation.StatusAccepted || accepted.ResolvedAt == nil {
		t.Errorf("unexpected accepted invitation %+v", accepted)
	}
	if ok, _ := f.mem.Groups().IsMember(ctx, f.bob.User.ID, f.work.ID); !ok {
		t.Error("expected bob to be a member after accepting")
	}

	if _, err := f.svc.Accept(ctx, f.bob.User.ID, inv.ID); !apperr.Is(err, apperr.KindInvalidState) {
		t.Errorf("expected invalid_state on second accept, got %v", err)
	}
	if _, err := f.svc.Decline(ctx, f.bob.User.ID, inv.ID); !apperr.Is(err, apperr.KindInvalidState) {
		t.Errorf("expected invalid_state on decline after accept, got %v", err)
	}

	if pending, _ := f.svc.ListPending(ctx, f.bob.User.ID); len(pending) != 0 {
		t.Errorf("expected no pending invitations, got %d", len(pending))
	}
}

func TestDecline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv, _ := f.svc.Invite(ctx, f.alice.User.ID, f.work.ID, "bob")

	declined, err := f.svc.Decline(ctx, f.bob.User.ID, inv.ID)
	if err != nil {
		t.Fatalf("Decline() error: %v", err)
	}
	if declined.Status != invitation.StatusDeclined {
		t.Errorf("expected declined, got %s", declined.Status)
	}
	if ok, _ := f.mem.Groups().IsMember(ctx, f.bob.User.ID, f.work.ID); ok {
		t.Error("declining must not grant membership")
	}
	if _, err := f.svc.Accept(ctx, f.bob.User.ID, inv.ID); !apperr.Is(err, apperr.KindInvalidState) {
		t.Errorf("expected invalid_state accepting a declined invitation, got %v", err)
	}

	// A declined invitation no longer blocks a new one.
	if _, err := f.svc.Invite(ctx, f.alice.User.ID, f.work.ID, "bob"); err != nil {
		t.Errorf("expected re-invite after decline, got %v", err)
	}
}

func TestResolve_OnlyReceiver(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv, _ := f.svc.Invite(ctx, f.alice.User.ID, f.work.ID, "bob")

	for _, who := range []string{f.alice.User.ID, f.carol.User.ID} {
		if _, err := f.svc.Accept(ctx, who, inv.ID); !apperr.Is(err, apperr.KindForbidden) {
			t.Errorf("Accept by %s: expected forbidden, got %v", who, err)
		}
		if _, err := f.svc.Decline(ctx, who, inv.ID); !apperr.Is(err, apperr.KindForbidden) {
			t.Errorf("Decline by %s: expected forbidden, got %v", who, err)
		}
	}

	if _, err := f.svc.Accept(ctx, f.bob.User.ID, "00000000-0000-0000-0000-000000000000"); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("expected not_found, got %v", err)
	}
}

func TestInvite_Rejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Invite(ctx, f.alice.User.ID, f.work.ID, "carol"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		sender   string
		group    string
		receiver string
		wantKind apperr.Kind
	}{
		{"unknown receiver", f.alice.User.ID, f.work.ID, "dave", apperr.KindNotFound},
		{"unknown group", f.alice.User.ID, "00000000-0000-0000-0000-000000000000", "bob", apperr.KindNotFound},
		{"sender not admin", f.bob.User.ID, f.work.ID, "carol", apperr.KindForbidden},
		{"already member", f.alice.User.ID, f.work.ID, "alice", apperr.KindConflict},
		{"already pending", f.alice.User.ID, f.work.ID, "carol", apperr.KindConflict},
		{"empty receiver", f.alice.User.ID, f.work.ID, " ", apperr.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Invite(ctx, tt.sender, tt.group, tt.receiver)
			if !apperr.Is(err, tt.wantKind) {
				t.Errorf("expected %s, got %v", tt.wantKind, err)
			}
		})
	}
}

func TestAccept_FailureGrantsNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv, _ := f.svc.Invite(ctx, f.alice.User.ID, f.work.ID, "bob")
	f.mem.FailNext = errors.New("crash")

	if _, err := f.svc.Accept(ctx, f.bob.User.ID, inv.ID); err == nil {
		t.Fatal("expected error")
	}
	if ok, _ := f.mem.Groups().IsMember(ctx, f.bob.User.ID, f.work.ID); ok {
		t.Error("expected no membership after failed accept")
	}
	stored, _ := f.mem.Invitations().Get(ctx, inv.ID)
	if stored.Status != invitation.StatusPending {
		t.Errorf("expected invitation still pending, got %s", stored.Status)
	}
}
