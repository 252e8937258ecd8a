package common

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/therockpusher/taskweaver/internal/app"
	"github.com/therockpusher/taskweaver/internal/domain"
)

// Logger is the leveled key/value logger the adapter reports failures to.
// *log.Logger from github.com/charmbracelet/log satisfies it.
type Logger interface {
	Debug(msg any, keyvals ...any)
	Warn(msg any, keyvals ...any)
	Error(msg any, keyvals ...any)
}

// AppServiceAdapter maps transport contracts onto app.Service dependency APIs.
type AppServiceAdapter struct {
	service  *app.Service
	logger   Logger
	metrics  *Metrics
	validate *validator.Validate
}

var _ DependencyService = (*AppServiceAdapter)(nil)

// NewAppServiceAdapter builds one common adapter over an app.Service instance.
// logger and metrics are optional.
func NewAppServiceAdapter(service *app.Service, logger Logger, metrics *Metrics) *AppServiceAdapter {
	return &AppServiceAdapter{
		service:  service,
		logger:   logger,
		metrics:  metrics,
		validate: validator.New(),
	}
}

// CreateTask validates and creates one task.
func (a *AppServiceAdapter) CreateTask(ctx context.Context, in CreateTaskRequest) (TaskPayload, error) {
	const op = "create task"
	started := time.Now()
	if err := a.ready(); err != nil {
		return TaskPayload{}, err
	}
	if err := a.check(in); err != nil {
		return TaskPayload{}, a.finish(op, started, err)
	}
	task, err := a.service.CreateTask(ctx, app.CreateTaskInput{
		Title:       in.Title,
		Description: in.Description,
		Requirement: in.Requirement,
		DurationMin: in.DurationMin,
		Value:       in.Value,
	})
	if err != nil {
		return TaskPayload{}, a.finish(op, started, err)
	}
	a.finish(op, started, nil)
	return TaskPayloadFromDomain(task), nil
}

// GetTask returns one task by id.
func (a *AppServiceAdapter) GetTask(ctx context.Context, id string) (TaskPayload, error) {
	const op = "get task"
	started := time.Now()
	if err := a.ready(); err != nil {
		return TaskPayload{}, err
	}
	task, err := a.service.GetTask(ctx, id)
	if err != nil {
		return TaskPayload{}, a.finish(op, started, err)
	}
	a.finish(op, started, nil)
	return TaskPayloadFromDomain(task), nil
}

// ListTasks lists tasks filtered by the requested statuses.
func (a *AppServiceAdapter) ListTasks(ctx context.Context, in ListTasksRequest) ([]TaskPayload, error) {
	const op = "list tasks"
	started := time.Now()
	if err := a.ready(); err != nil {
		return nil, err
	}
	statuses := make([]domain.Status, 0, len(in.Statuses))
	for _, raw := range in.Statuses {
		status, err := domain.ParseStatus(raw)
		if err != nil {
			return nil, a.finish(op, started, fmt.Errorf("status %q: %w", raw, err))
		}
		statuses = append(statuses, status)
	}
	tasks, err := a.service.ListTasks(ctx, statuses...)
	if err != nil {
		return nil, a.finish(op, started, err)
	}
	a.finish(op, started, nil)
	return taskPayloads(tasks), nil
}

// UpdateTask applies a partial edit.
func (a *AppServiceAdapter) UpdateTask(ctx context.Context, in UpdateTaskRequest) (TaskPayload, error) {
	const op = "update task"
	started := time.Now()
	if err := a.ready(); err != nil {
		return TaskPayload{}, err
	}
	if err := a.check(in); err != nil {
		return TaskPayload{}, a.finish(op, started, err)
	}
	task, err := a.service.UpdateTask(ctx, in.ID, domain.TaskUpdate{
		Title:       in.Title,
		Description: in.Description,
		Requirement: in.Requirement,
		DurationMin: in.DurationMin,
		Value:       in.Value,
	})
	if err != nil {
		return TaskPayload{}, a.finish(op, started, err)
	}
	a.finish(op, started, nil)
	return TaskPayloadFromDomain(task), nil
}

// SetTaskStatus moves one task to the requested status.
func (a *AppServiceAdapter) SetTaskStatus(ctx context.Context, in SetTaskStatusRequest) (TaskPayload, error) {
	const op = "set task status"
	started := time.Now()
	if err := a.ready(); err != nil {
		return TaskPayload{}, err
	}
	if err := a.check(in); err != nil {
		return TaskPayload{}, a.finish(op, started, err)
	}
	status, err := domain.ParseStatus(in.Status)
	if err != nil {
		return TaskPayload{}, a.finish(op, started, err)
	}
	task, err := a.service.SetTaskStatus(ctx, in.ID, status)
	if err != nil {
		return TaskPayload{}, a.finish(op, started, err)
	}
	a.finish(op, started, nil)
	return TaskPayloadFromDomain(task), nil
}

// DeleteTask removes one task and its edges.
func (a *AppServiceAdapter) DeleteTask(ctx context.Context, id string) error {
	const op = "delete task"
	started := time.Now()
	if err := a.ready(); err != nil {
		return err
	}
	return a.finish(op, started, a.service.DeleteTask(ctx, id))
}

// AddDependency records that TaskID is blocked by BlockerID.
func (a *AppServiceAdapter) AddDependency(ctx context.Context, in DependencyRequest) (DependencyPayload, error) {
	const op = "add dependency"
	started := time.Now()
	if err := a.ready(); err != nil {
		return DependencyPayload{}, err
	}
	if err := a.check(in); err != nil {
		return DependencyPayload{}, a.finish(op, started, err)
	}
	dep, err := a.service.AddDependency(ctx, in.TaskID, in.BlockerID)
	if err != nil {
		return DependencyPayload{}, a.finish(op, started, err)
	}
	a.finish(op, started, nil)
	return DependencyPayload{TaskID: dep.TaskID, BlockerID: dep.BlockerID, CreatedAt: dep.CreatedAt}, nil
}

// RemoveDependency deletes one edge; a missing edge is not an error.
func (a *AppServiceAdapter) RemoveDependency(ctx context.Context, in DependencyRequest) error {
	const op = "remove dependency"
	started := time.Now()
	if err := a.ready(); err != nil {
		return err
	}
	if err := a.check(in); err != nil {
		return a.finish(op, started, err)
	}
	return a.finish(op, started, a.service.RemoveDependency(ctx, in.TaskID, in.BlockerID))
}

// ActiveBlockers lists the pending or in-progress blockers of one task.
func (a *AppServiceAdapter) ActiveBlockers(ctx context.Context, taskID string) ([]TaskPayload, error) {
	const op = "active blockers"
	started := time.Now()
	if err := a.ready(); err != nil {
		return nil, err
	}
	tasks, err := a.service.ActiveBlockers(ctx, taskID)
	if err != nil {
		return nil, a.finish(op, started, err)
	}
	a.finish(op, started, nil)
	return taskPayloads(tasks), nil
}

// Blocked lists every task the given task blocks.
func (a *AppServiceAdapter) Blocked(ctx context.Context, taskID string) ([]TaskPayload, error) {
	const op = "blocked"
	started := time.Now()
	if err := a.ready(); err != nil {
		return nil, err
	}
	tasks, err := a.service.Blocked(ctx, taskID)
	if err != nil {
		return nil, a.finish(op, started, err)
	}
	a.finish(op, started, nil)
	return taskPayloads(tasks), nil
}

// OpenTasksWithCounts lists open tasks with their blocker counts.
func (a *AppServiceAdapter) OpenTasksWithCounts(ctx context.Context) ([]TaskCountsPayload, error) {
	const op = "open tasks"
	started := time.Now()
	if err := a.ready(); err != nil {
		return nil, err
	}
	tasks, err := a.service.OpenTasksWithCounts(ctx)
	if err != nil {
		return nil, a.finish(op, started, err)
	}
	a.finish(op, started, nil)
	out := make([]TaskCountsPayload, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, taskCountsPayloadFromDomain(t))
	}
	return out, nil
}

// EffectivePriority reports intrinsic and effective priority for one task.
func (a *AppServiceAdapter) EffectivePriority(ctx context.Context, taskID string) (PriorityPayload, error) {
	const op = "effective priority"
	started := time.Now()
	if err := a.ready(); err != nil {
		return PriorityPayload{}, err
	}
	task, err := a.service.GetTask(ctx, taskID)
	if err != nil {
		return PriorityPayload{}, a.finish(op, started, err)
	}
	effective, err := a.service.EffectivePriority(ctx, task.ID)
	if err != nil {
		return PriorityPayload{}, a.finish(op, started, err)
	}
	a.finish(op, started, nil)
	return PriorityPayload{
		TaskID:            task.ID,
		IntrinsicPriority: task.IntrinsicPriority(),
		EffectivePriority: effective,
	}, nil
}

// RankedOpenTasks lists open tasks in work order.
func (a *AppServiceAdapter) RankedOpenTasks(ctx context.Context) ([]RankedTaskPayload, error) {
	const op = "rank open tasks"
	started := time.Now()
	if err := a.ready(); err != nil {
		return nil, err
	}
	ranked, err := a.service.RankedOpenTasks(ctx)
	if err != nil {
		return nil, a.finish(op, started, err)
	}
	a.finish(op, started, nil)
	out := make([]RankedTaskPayload, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, RankedTaskPayload{
			TaskCountsPayload: taskCountsPayloadFromDomain(r.TaskWithCounts),
			EffectivePriority: r.EffectivePriority,
		})
	}
	return out, nil
}

func (a *AppServiceAdapter) ready() error {
	if a == nil || a.service == nil {
		return fmt.Errorf("app service adapter is not configured: %w", ErrInvalidRequest)
	}
	return nil
}

// check runs struct validation and maps failures onto ErrInvalidRequest.
func (a *AppServiceAdapter) check(in any) error {
	if err := a.validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: field %s failed %q", ErrInvalidRequest, verrs[0].Field(), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

// finish records metrics, logs graph failures and maps err for transports.
func (a *AppServiceAdapter) finish(operation string, started time.Time, err error) error {
	a.metrics.observe(operation, started, err)
	if err == nil {
		return nil
	}
	if a.logger != nil {
		var inconsistent *domain.GraphInconsistentError
		var cycle *domain.CycleError
		switch {
		case errors.As(err, &inconsistent):
			a.logger.Error("dependency graph inconsistent", "operation", operation, "task_ids", inconsistent.TaskIDs)
		case errors.As(err, &cycle):
			a.logger.Warn("dependency rejected", "operation", operation, "kind", ErrorKind(err), "path", cycle.Path)
		default:
			a.logger.Debug("operation failed", "operation", operation, "kind", ErrorKind(err), "err", err)
		}
	}
	return mapAppError(operation, err)
}

func taskPayloads(tasks []domain.Task) []TaskPayload {
	out := make([]TaskPayload, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, TaskPayloadFromDomain(t))
	}
	return out
}

// mapAppError maps app/domain errors into transport-level error categories.
func mapAppError(operation string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, ErrInvalidRequest):
		return fmt.Errorf("%s: %w", operation, err)
	case errors.Is(err, app.ErrNotFound), errors.Is(err, domain.ErrTaskNotFound):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrNotFound, err))
	case errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidTitle),
		errors.Is(err, domain.ErrInvalidDuration),
		errors.Is(err, domain.ErrInvalidValue),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrSelfDependency):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrInvalidRequest, err))
	case errors.Is(err, domain.ErrDuplicateEdge):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrConflict, err))
	case errors.Is(err, domain.ErrCycleDetected),
		errors.Is(err, domain.ErrInvalidBlockerState):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrRejected, err))
	case errors.Is(err, domain.ErrGraphInconsistent):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrGraphInconsistent, err))
	default:
		return fmt.Errorf("%s: %w", operation, err)
	}
}
