package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/alecgard/tasker/internal/apperr"
	"github.com/alecgard/tasker/internal/auth"
	"github.com/alecgard/tasker/internal/task"
)

type tasksHandler struct {
	tasks *task.Service
}

func newTasksHandler(tasks *task.Service) *tasksHandler {
	return &tasksHandler{tasks: tasks}
}

var errTaskNotFound = apperr.NotFound("task not found")

// validGroupRef accepts an empty group id (meaning "default") or a UUID.
func validGroupRef(id string) error {
	if id == "" {
		return nil
	}
	if _, err := uuid.Parse(id); err != nil {
		return apperr.Validation("groupId is not a valid id")
	}
	return nil
}

// Add handles POST /api/v1/tasks.
func (h *tasksHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req task.AddInput
	if err := readJSON(r, &req); err != nil {
		writeInvalidBody(w)
		return
	}
	if err := validGroupRef(req.GroupID); err != nil {
		writeAppError(w, r, err)
		return
	}

	id := auth.IdentityFromContext(r.Context())
	t, err := h.tasks.Add(r.Context(), id.UserID, req)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	auditLog(r, "task.create", "task", t.ID, "group_id", t.GroupID)
	writeJSON(w, http.StatusCreated, t)
}

// List handles GET /api/v1/tasks.
func (h *tasksHandler) List(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())
	tasks, err := h.tasks.ListForUser(r.Context(), id.UserID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(tasks))
}

// Update handles PUT /api/v1/tasks/{id}.
func (h *tasksHandler) Update(w http.ResponseWriter, r *http.Request) {
	taskID, ok := pathID(r)
	if !ok {
		writeAppError(w, r, errTaskNotFound)
		return
	}

	var req task.UpdateInput
	if err := readJSON(r, &req); err != nil {
		writeInvalidBody(w)
		return
	}
	if err := validGroupRef(req.GroupID); err != nil {
		writeAppError(w, r, err)
		return
	}

	id := auth.IdentityFromContext(r.Context())
	t, err := h.tasks.Update(r.Context(), id.UserID, taskID, req)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	auditLog(r, "task.update", "task", t.ID, "group_id", t.GroupID)
	writeJSON(w, http.StatusOK, t)
}

// SetStatus handles PUT /api/v1/tasks/{id}/status.
func (h *tasksHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	taskID, ok := pathID(r)
	if !ok {
		writeAppError(w, r, errTaskNotFound)
		return
	}

	var req struct {
		Status *bool `json:"status"`
	}
	if err := readJSON(r, &req); err != nil {
		writeInvalidBody(w)
		return
	}
	if req.Status == nil {
		writeAppError(w, r, apperr.Validation("status is required"))
		return
	}

	id := auth.IdentityFromContext(r.Context())
	t, err := h.tasks.SetStatus(r.Context(), id.UserID, taskID, *req.Status)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	auditLog(r, "task.status", "task", t.ID, "status", t.Status)
	writeJSON(w, http.StatusOK, t)
}

// Delete handles DELETE /api/v1/tasks/{id}.
func (h *tasksHandler) Delete(w http.ResponseWriter, r *http.Request) {
	taskID, ok := pathID(r)
	if !ok {
		writeAppError(w, r, errTaskNotFound)
		return
	}

	id := auth.IdentityFromContext(r.Context())
	if err := h.tasks.Delete(r.Context(), id.UserID, taskID); err != nil {
		writeAppError(w, r, err)
		return
	}

	auditLog(r, "task.delete", "task", taskID)
	writeJSON(w, http.StatusOK, map[string]string{"message": "task deleted"})
}
