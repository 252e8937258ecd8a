// Package httpapi provides the REST HTTP adapter for the server surfaces.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/therockpusher/taskweaver/internal/adapters/server/common"
	"github.com/therockpusher/taskweaver/internal/domain"
)

// maxRequestBodyBytes limits decoded JSON payload size for fail-closed request handling.
const maxRequestBodyBytes int64 = 1 << 20

// Handler serves the versioned API subrouter mounted under `/api/v1`.
type Handler struct {
	service common.DependencyService
}

// APIError represents one structured API failure response.
type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Hint    string         `json:"hint,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

// ErrorEnvelope wraps one structured API error.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// NewHandler constructs one HTTP API adapter over the dependency service.
func NewHandler(service common.DependencyService) *Handler {
	return &Handler{service: service}
}

// ServeHTTP routes one versioned API request to the matching handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeJSONError(w, http.StatusServiceUnavailable, APIError{
			Code:    "service_unavailable",
			Message: "dependency service is not configured",
		})
		return
	}

	path := normalizePath(r.URL.Path)
	switch path {
	case "tasks":
		switch r.Method {
		case http.MethodGet:
			h.handleListTasks(w, r)
		case http.MethodPost:
			h.handleCreateTask(w, r)
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodPost)
		}
		return
	case "open":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleOpenTasks(w, r)
		return
	case "ranked":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleRankedTasks(w, r)
		return
	}

	route, ok := parseTaskRoute(path)
	if !ok {
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: "endpoint not found",
		})
		return
	}
	switch route.action {
	case "":
		switch r.Method {
		case http.MethodGet:
			h.handleGetTask(w, r, route.taskID)
		case http.MethodPatch:
			h.handleUpdateTask(w, r, route.taskID)
		case http.MethodDelete:
			h.handleDeleteTask(w, r, route.taskID)
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodPatch, http.MethodDelete)
		}
	case "status":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleSetStatus(w, r, route.taskID)
	case "blockers":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleBlockers(w, r, route.taskID)
	case "blocked":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleBlocked(w, r, route.taskID)
	case "priority":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handlePriority(w, r, route.taskID)
	case "dependencies":
		if route.blockerID == "" {
			if r.Method != http.MethodPost {
				writeMethodNotAllowed(w, http.MethodPost)
				return
			}
			h.handleAddDependency(w, r, route.taskID)
			return
		}
		if r.Method != http.MethodDelete {
			writeMethodNotAllowed(w, http.MethodDelete)
			return
		}
		h.handleRemoveDependency(w, r, route.taskID, route.blockerID)
	}
}

// handleListTasks serves GET `/tasks?status=pending,in_progress`.
func (h *Handler) handleListTasks(w http.ResponseWriter, r *http.Request) {
	req := common.ListTasksRequest{}
	for _, raw := range r.URL.Query()["status"] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				req.Statuses = append(req.Statuses, part)
			}
		}
	}
	tasks, err := h.service.ListTasks(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": tasks,
	})
}

// handleCreateTask serves POST `/tasks`.
func (h *Handler) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req common.CreateTaskRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	task, err := h.service.CreateTask(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// handleGetTask serves GET `/tasks/{id}`.
func (h *Handler) handleGetTask(w http.ResponseWriter, r *http.Request, taskID string) {
	task, err := h.service.GetTask(r.Context(), taskID)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// handleUpdateTask serves PATCH `/tasks/{id}`.
func (h *Handler) handleUpdateTask(w http.ResponseWriter, r *http.Request, taskID string) {
	var req common.UpdateTaskRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	req.ID = taskID
	task, err := h.service.UpdateTask(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// handleDeleteTask serves DELETE `/tasks/{id}`.
func (h *Handler) handleDeleteTask(w http.ResponseWriter, r *http.Request, taskID string) {
	if err := h.service.DeleteTask(r.Context(), taskID); err != nil {
		writeErrorFrom(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSetStatus serves POST `/tasks/{id}/status`.
func (h *Handler) handleSetStatus(w http.ResponseWriter, r *http.Request, taskID string) {
	var req common.SetTaskStatusRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	req.ID = taskID
	task, err := h.service.SetTaskStatus(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// handleBlockers serves GET `/tasks/{id}/blockers`.
func (h *Handler) handleBlockers(w http.ResponseWriter, r *http.Request, taskID string) {
	tasks, err := h.service.ActiveBlockers(r.Context(), taskID)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"task_id": taskID,
		"items":   tasks,
	})
}

// handleBlocked serves GET `/tasks/{id}/blocked`.
func (h *Handler) handleBlocked(w http.ResponseWriter, r *http.Request, taskID string) {
	tasks, err := h.service.Blocked(r.Context(), taskID)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"task_id": taskID,
		"items":   tasks,
	})
}

// handlePriority serves GET `/tasks/{id}/priority`.
func (h *Handler) handlePriority(w http.ResponseWriter, r *http.Request, taskID string) {
	priority, err := h.service.EffectivePriority(r.Context(), taskID)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, priority)
}

// handleAddDependency serves POST `/tasks/{id}/dependencies`.
func (h *Handler) handleAddDependency(w http.ResponseWriter, r *http.Request, taskID string) {
	var payload struct {
		BlockerID string `json:"blocker_id"`
	}
	if err := decodeJSONBody(r.Context(), w, r, &payload); err != nil {
		writeErrorFrom(w, err)
		return
	}
	dep, err := h.service.AddDependency(r.Context(), common.DependencyRequest{
		TaskID:    taskID,
		BlockerID: strings.TrimSpace(payload.BlockerID),
	})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, dep)
}

// handleRemoveDependency serves DELETE `/tasks/{id}/dependencies/{blocker}`.
func (h *Handler) handleRemoveDependency(w http.ResponseWriter, r *http.Request, taskID, blockerID string) {
	err := h.service.RemoveDependency(r.Context(), common.DependencyRequest{
		TaskID:    taskID,
		BlockerID: blockerID,
	})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleOpenTasks serves GET `/open`.
func (h *Handler) handleOpenTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.service.OpenTasksWithCounts(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": tasks,
	})
}

// handleRankedTasks serves GET `/ranked`.
func (h *Handler) handleRankedTasks(w http.ResponseWriter, r *http.Request) {
	ranked, err := h.service.RankedOpenTasks(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": ranked,
	})
}

// taskRoute is one parsed `/tasks/{id}[/action[/blocker]]` path.
type taskRoute struct {
	taskID    string
	action    string
	blockerID string
}

// parseTaskRoute parses task-scoped paths and rejects unknown shapes.
func parseTaskRoute(path string) (taskRoute, bool) {
	parts := strings.Split(path, "/")
	if len(parts) < 2 || len(parts) > 4 || parts[0] != "tasks" {
		return taskRoute{}, false
	}
	for _, part := range parts[1:] {
		if strings.TrimSpace(part) == "" {
			return taskRoute{}, false
		}
	}
	route := taskRoute{taskID: strings.TrimSpace(parts[1])}
	if len(parts) == 2 {
		return route, true
	}
	route.action = parts[2]
	switch route.action {
	case "status", "blockers", "blocked", "priority":
		return route, len(parts) == 3
	case "dependencies":
		if len(parts) == 4 {
			route.blockerID = strings.TrimSpace(parts[3])
		}
		return route, true
	default:
		return taskRoute{}, false
	}
}

// normalizePath canonicalizes one request path for route matching.
func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	path = strings.Trim(path, "/")
	return path
}

// errorContext extracts structured detail from typed graph errors.
func errorContext(err error) map[string]any {
	var (
		cycle        *domain.CycleError
		blockerState *domain.BlockerStateError
		inconsistent *domain.GraphInconsistentError
		notFound     *domain.TaskNotFoundError
	)
	switch {
	case errors.As(err, &cycle):
		return map[string]any{"path": cycle.Path}
	case errors.As(err, &blockerState):
		return map[string]any{"blocker_id": blockerState.BlockerID, "status": blockerState.Status}
	case errors.As(err, &inconsistent):
		return map[string]any{"task_ids": inconsistent.TaskIDs}
	case errors.As(err, &notFound):
		return map[string]any{"task_id": notFound.TaskID}
	default:
		return nil
	}
}

// writeErrorFrom maps adapter errors into structured HTTP responses.
func writeErrorFrom(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: "unknown error",
		})
	case errors.Is(err, common.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: err.Error(),
			Context: errorContext(err),
		})
	case errors.Is(err, common.ErrInvalidRequest):
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    common.ErrorKind(err),
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrConflict):
		writeJSONError(w, http.StatusConflict, APIError{
			Code:    common.ErrorKind(err),
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrRejected):
		writeJSONError(w, http.StatusUnprocessableEntity, APIError{
			Code:    common.ErrorKind(err),
			Message: err.Error(),
			Hint:    "Only pending or in-progress tasks can block, and the graph must stay acyclic.",
			Context: errorContext(err),
		})
	case errors.Is(err, common.ErrGraphInconsistent):
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "graph_inconsistent",
			Message: err.Error(),
			Hint:    "Stored dependencies contain a cycle; remove one of the listed edges.",
			Context: errorContext(err),
		})
	default:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: err.Error(),
		})
	}
}

// writeMethodNotAllowed writes a structured 405 response with `Allow` headers.
func writeMethodNotAllowed(w http.ResponseWriter, methods ...string) {
	if len(methods) > 0 {
		w.Header().Set("Allow", strings.Join(methods, ", "))
	}
	writeJSONError(w, http.StatusMethodNotAllowed, APIError{
		Code:    "method_not_allowed",
		Message: "method not allowed",
	})
}

// writeJSONError writes one structured error envelope.
func writeJSONError(w http.ResponseWriter, statusCode int, apiErr APIError) {
	writeJSON(w, statusCode, ErrorEnvelope{Error: apiErr})
}

// writeJSON writes one JSON response envelope.
func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":{"code":"encode_error","message":"%s"}}`, err.Error()), http.StatusInternalServerError)
	}
}

// decodeJSONBody decodes one required JSON request body with strict shape checks.
func decodeJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any) error {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode request body: %w", errors.Join(common.ErrInvalidRequest, err))
	}
	// Reject trailing payloads so malformed JSON bodies fail closed.
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode request body: trailing content: %w", common.ErrInvalidRequest)
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("request canceled: %w", ctx.Err())
	default:
		return nil
	}
}
