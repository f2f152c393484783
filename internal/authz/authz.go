// Package authz decides whether a user may act on a group and the tasks and
// invitations scoped to it.
package authz

import (
	"context"

	"github.com/alecgard/tasker/internal/apperr"
)

// Lookup answers the two questions every check reduces to.
//
// GroupAdmin returns an apperr not_found error when the group does not exist,
// and "" when the group has no admin.
type Lookup interface {
	GroupAdmin(ctx context.Context, groupID string) (string, error)
	IsMember(ctx context.Context, userID, groupID string) (bool, error)
}

type Gate struct {
	lookup Lookup
}

func NewGate(lookup Lookup) *Gate {
	return &Gate{lookup: lookup}
}

// IsAdmin reports whether userID administers groupID.
func (g *Gate) IsAdmin(ctx context.Context, userID, groupID string) (bool, error) {
	adminID, err := g.lookup.GroupAdmin(ctx, groupID)
	if err != nil {
		return false, err
	}
	return adminID != "" && adminID == userID, nil
}

// IsMember reports whether userID belongs to groupID.
func (g *Gate) IsMember(ctx context.Context, userID, groupID string) (bool, error) {
	return g.lookup.IsMember(ctx, userID, groupID)
}

// RequireAdmin fails with not_found when the group is absent and forbidden
// when userID is not its admin.
func (g *Gate) RequireAdmin(ctx context.Context, userID, groupID string) error {
	ok, err := g.IsAdmin(ctx, userID, groupID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Forbidden("only the group admin may do this")
	}
	return nil
}

// RequireMember fails with not_found when the group is absent and forbidden
// when userID is not in groupID.
func (g *Gate) RequireMember(ctx context.Context, userID, groupID string) error {
	if _, err := g.lookup.GroupAdmin(ctx, groupID); err != nil {
		return err
	}
	ok, err := g.lookup.IsMember(ctx, userID, groupID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Forbidden("not a member of this group")
	}
	return nil
}
