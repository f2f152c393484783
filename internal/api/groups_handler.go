package api

import (
	"net/http"

	"github.com/alecgard/tasker/internal/apperr"
	"github.com/alecgard/tasker/internal/auth"
	"github.com/alecgard/tasker/internal/group"
	"github.com/alecgard/tasker/internal/invitation"
	"github.com/alecgard/tasker/internal/metrics"
	"github.com/alecgard/tasker/internal/task"
)

// groupsHandler groups group-related HTTP handlers, including the
// group-scoped task list and invitations.
type groupsHandler struct {
	groups      *group.Service
	tasks       *task.Service
	invitations *invitation.Service
	metrics     *metrics.Metrics
}

func newGroupsHandler(groups *group.Service, tasks *task.Service, invitations *invitation.Service, m *metrics.Metrics) *groupsHandler {
	return &groupsHandler{groups: groups, tasks: tasks, invitations: invitations, metrics: m}
}

// groupNameRequest accepts both "name" and the older "groupName" field.
type groupNameRequest struct {
	Name      string `json:"name"`
	GroupName string `json:"groupName"`
}

func (g groupNameRequest) value() string {
	if g.Name != "" {
		return g.Name
	}
	return g.GroupName
}

var errGroupNotFound = apperr.NotFound("group not found")

// Create handles POST /api/v1/groups.
func (h *groupsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req groupNameRequest
	if err := readJSON(r, &req); err != nil {
		writeInvalidBody(w)
		return
	}

	id := auth.IdentityFromContext(r.Context())
	g, err := h.groups.Create(r.Context(), id.UserID, req.value())
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	auditLog(r, "group.create", "group", g.ID, "group_name", g.Name)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"groupId": g.ID,
		"group":   g,
	})
}

// List handles GET /api/v1/groups.
func (h *groupsHandler) List(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())
	groups, err := h.groups.ListForUser(r.Context(), id.UserID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(groups))
}

// Rename handles PUT /api/v1/groups/{id}.
func (h *groupsHandler) Rename(w http.ResponseWriter, r *http.Request) {
	groupID, ok := pathID(r)
	if !ok {
		writeAppError(w, r, errGroupNotFound)
		return
	}

	var req groupNameRequest
	if err := readJSON(r, &req); err != nil {
		writeInvalidBody(w)
		return
	}

	id := auth.IdentityFromContext(r.Context())
	g, err := h.groups.Rename(r.Context(), id.UserID, groupID, req.value())
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	auditLog(r, "group.rename", "group", g.ID, "group_name", g.Name)
	writeJSON(w, http.StatusOK, g)
}

// Delete handles DELETE /api/v1/groups/{id}. The optional body names the
// group being deleted as a confirmation.
func (h *groupsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	groupID, ok := pathID(r)
	if !ok {
		writeAppError(w, r, errGroupNotFound)
		return
	}

	var req groupNameRequest
	if err := readOptionalJSON(r, &req); err != nil {
		writeInvalidBody(w)
		return
	}

	id := auth.IdentityFromContext(r.Context())
	n, err := h.groups.Delete(r.Context(), id.UserID, groupID, req.value())
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	h.metrics.AddCascadeDeletedTasks(int(n))
	auditLog(r, "group.delete", "group", groupID, "deleted_tasks", n)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":      "group deleted",
		"deletedTasks": n,
	})
}

// Members handles GET /api/v1/groups/{id}/users.
func (h *groupsHandler) Members(w http.ResponseWriter, r *http.Request) {
	groupID, ok := pathID(r)
	if !ok {
		writeAppError(w, r, errGroupNotFound)
		return
	}

	members, err := h.groups.ListMembers(r.Context(), groupID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(members))
}

// Tasks handles GET and POST /api/v1/groups/{id}/tasks.
func (h *groupsHandler) Tasks(w http.ResponseWriter, r *http.Request) {
	groupID, ok := pathID(r)
	if !ok {
		writeAppError(w, r, errGroupNotFound)
		return
	}

	id := auth.IdentityFromContext(r.Context())
	tasks, err := h.tasks.ListForGroup(r.Context(), id.UserID, groupID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(tasks))
}

// Invite handles POST /api/v1/groups/{id}/invite.
func (h *groupsHandler) Invite(w http.ResponseWriter, r *http.Request) {
	groupID, ok := pathID(r)
	if !ok {
		writeAppError(w, r, errGroupNotFound)
		return
	}

	var req struct {
		UserName string `json:"userName"`
	}
	if err := readJSON(r, &req); err != nil {
		writeInvalidBody(w)
		return
	}

	id := auth.IdentityFromContext(r.Context())
	inv, err := h.invitations.Invite(r.Context(), id.UserID, groupID, req.UserName)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	h.metrics.IncInvitation(string(inv.Status))
	auditLog(r, "invitation.create", "invitation", inv.ID, "group_id", groupID, "receiver_id", inv.ReceiverID)
	writeJSON(w, http.StatusOK, inv)
}
