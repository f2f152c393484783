package api

import (
	"context"
	"net/http"

	"github.com/alecgard/tasker/internal/apperr"
	"github.com/alecgard/tasker/internal/auth"
	"github.com/alecgard/tasker/internal/invitation"
	"github.com/alecgard/tasker/internal/metrics"
)

type invitationsHandler struct {
	invitations *invitation.Service
	metrics     *metrics.Metrics
}

func newInvitationsHandler(invitations *invitation.Service, m *metrics.Metrics) *invitationsHandler {
	return &invitationsHandler{invitations: invitations, metrics: m}
}

// Notifications handles GET /api/v1/notifications.
func (h *invitationsHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())
	pending, err := h.invitations.ListPending(r.Context(), id.UserID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"invitations": orEmpty(pending)})
}

// Accept handles POST /api/v1/invitations/{id}/accept.
func (h *invitationsHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, "invitation.accept", h.invitations.Accept)
}

// Decline handles POST /api/v1/invitations/{id}/decline.
func (h *invitationsHandler) Decline(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, "invitation.decline", h.invitations.Decline)
}

type resolveFunc func(ctx context.Context, receiverID, invitationID string) (*invitation.Invitation, error)

func (h *invitationsHandler) resolve(w http.ResponseWriter, r *http.Request, action string, fn resolveFunc) {
	invID, ok := pathID(r)
	if !ok {
		writeAppError(w, r, apperr.NotFound("invitation not found"))
		return
	}

	id := auth.IdentityFromContext(r.Context())
	inv, err := fn(r.Context(), id.UserID, invID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	h.metrics.IncInvitation(string(inv.Status))
	auditLog(r, action, "invitation", inv.ID, "group_id", inv.GroupID)
	writeJSON(w, http.StatusOK, inv)
}
