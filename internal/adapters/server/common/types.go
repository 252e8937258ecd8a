// Package common provides transport-agnostic server contracts used by HTTP and MCP adapters.
package common

import (
	"context"
	"errors"
	"time"

	"github.com/therockpusher/taskweaver/internal/domain"
)

// ErrInvalidRequest reports malformed or out-of-range input, including self dependencies.
var ErrInvalidRequest = errors.New("invalid request")

// ErrNotFound reports missing transport-visible resources.
var ErrNotFound = errors.New("not found")

// ErrConflict reports an edge that is already recorded.
var ErrConflict = errors.New("conflict")

// ErrRejected reports a well-formed edge the graph rules refuse: a cycle or a closed blocker.
var ErrRejected = errors.New("rejected")

// ErrGraphInconsistent reports stored edges that already contain a cycle.
var ErrGraphInconsistent = errors.New("graph inconsistent")

// DependencyService exposes the task graph to transport adapters.
type DependencyService interface {
	CreateTask(context.Context, CreateTaskRequest) (TaskPayload, error)
	GetTask(context.Context, string) (TaskPayload, error)
	ListTasks(context.Context, ListTasksRequest) ([]TaskPayload, error)
	UpdateTask(context.Context, UpdateTaskRequest) (TaskPayload, error)
	SetTaskStatus(context.Context, SetTaskStatusRequest) (TaskPayload, error)
	DeleteTask(context.Context, string) error

	AddDependency(context.Context, DependencyRequest) (DependencyPayload, error)
	RemoveDependency(context.Context, DependencyRequest) error
	ActiveBlockers(context.Context, string) ([]TaskPayload, error)
	Blocked(context.Context, string) ([]TaskPayload, error)

	OpenTasksWithCounts(context.Context) ([]TaskCountsPayload, error)
	EffectivePriority(context.Context, string) (PriorityPayload, error)
	RankedOpenTasks(context.Context) ([]RankedTaskPayload, error)
}

// CreateTaskRequest carries one task creation.
type CreateTaskRequest struct {
	Title       string  `json:"title" validate:"required,max=500"`
	Description string  `json:"description,omitempty"`
	Requirement string  `json:"requirement,omitempty"`
	DurationMin int     `json:"duration_min" validate:"gte=1"`
	Value       float64 `json:"value" validate:"gte=0,lte=100"`
}

// UpdateTaskRequest carries a partial edit; nil fields stay unchanged.
type UpdateTaskRequest struct {
	ID          string   `json:"-" validate:"required"`
	Title       *string  `json:"title,omitempty" validate:"omitempty,min=1,max=500"`
	Description *string  `json:"description,omitempty"`
	Requirement *string  `json:"requirement,omitempty"`
	DurationMin *int     `json:"duration_min,omitempty" validate:"omitempty,gte=1"`
	Value       *float64 `json:"value,omitempty" validate:"omitempty,gte=0,lte=100"`
}

// SetTaskStatusRequest moves one task to a new status.
type SetTaskStatusRequest struct {
	ID     string `json:"-" validate:"required"`
	Status string `json:"status" validate:"required"`
}

// ListTasksRequest filters task listings by status.
type ListTasksRequest struct {
	Statuses []string `json:"statuses,omitempty"`
}

// DependencyRequest names one edge: TaskID is blocked by BlockerID.
type DependencyRequest struct {
	TaskID    string `json:"task_id" validate:"required"`
	BlockerID string `json:"blocker_id" validate:"required"`
}

// TaskPayload is the transport shape of one task.
type TaskPayload struct {
	ID                string        `json:"id"`
	Title             string        `json:"title"`
	Description       string        `json:"description,omitempty"`
	Requirement       string        `json:"requirement,omitempty"`
	DurationMin       int           `json:"duration_min"`
	Value             float64       `json:"value"`
	Status            domain.Status `json:"status"`
	IntrinsicPriority float64       `json:"intrinsic_priority"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// TaskCountsPayload annotates a task with blocker counts.
type TaskCountsPayload struct {
	TaskPayload
	ActiveBlockerCount int  `json:"active_blocker_count"`
	TasksBlockedCount  int  `json:"tasks_blocked_count"`
	Ready              bool `json:"ready"`
}

// RankedTaskPayload adds effective priority to a counted task.
type RankedTaskPayload struct {
	TaskCountsPayload
	EffectivePriority float64 `json:"effective_priority"`
}

// DependencyPayload is the transport shape of one edge.
type DependencyPayload struct {
	TaskID    string    `json:"task_id"`
	BlockerID string    `json:"blocker_id"`
	CreatedAt time.Time `json:"created_at"`
}

// PriorityPayload reports both priorities for one task.
type PriorityPayload struct {
	TaskID            string  `json:"task_id"`
	IntrinsicPriority float64 `json:"intrinsic_priority"`
	EffectivePriority float64 `json:"effective_priority"`
}

// TaskPayloadFromDomain converts one domain task.
func TaskPayloadFromDomain(t domain.Task) TaskPayload {
	return TaskPayload{
		ID:                t.ID,
		Title:             t.Title,
		Description:       t.Description,
		Requirement:       t.Requirement,
		DurationMin:       t.DurationMin,
		Value:             t.Value,
		Status:            t.Status,
		IntrinsicPriority: t.IntrinsicPriority(),
		CreatedAt:         t.CreatedAt,
		UpdatedAt:         t.UpdatedAt,
	}
}

// taskCountsPayloadFromDomain converts one counted task.
func taskCountsPayloadFromDomain(t domain.TaskWithCounts) TaskCountsPayload {
	return TaskCountsPayload{
		TaskPayload:        TaskPayloadFromDomain(t.Task),
		ActiveBlockerCount: t.ActiveBlockerCount,
		TasksBlockedCount:  t.TasksBlockedCount,
		Ready:              t.Ready(),
	}
}

// ErrorKind names the failure class of err for logs, metrics and tool results.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrTaskNotFound), errors.Is(err, ErrNotFound):
		return "task_not_found"
	case errors.Is(err, domain.ErrSelfDependency):
		return "self_dependency"
	case errors.Is(err, domain.ErrDuplicateEdge):
		return "duplicate_edge"
	case errors.Is(err, domain.ErrInvalidBlockerState):
		return "invalid_blocker_state"
	case errors.Is(err, domain.ErrCycleDetected):
		return "cycle_detected"
	case errors.Is(err, domain.ErrGraphInconsistent):
		return "graph_inconsistent"
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	default:
		return "internal"
	}
}
