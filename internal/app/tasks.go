package app

import (
	"context"
	"strings"

	"github.com/therockpusher/taskweaver/internal/domain"
)

// CreateTaskInput holds input values for create task operations.
type CreateTaskInput struct {
	Title       string
	Description string
	Requirement string
	DurationMin int
	Value       float64
}

// CreateTask creates task.
func (s *Service) CreateTask(ctx context.Context, in CreateTaskInput) (domain.Task, error) {
	task, err := domain.NewTask(domain.TaskInput{
		ID:          s.idGen(),
		Title:       in.Title,
		Description: in.Description,
		Requirement: in.Requirement,
		DurationMin: in.DurationMin,
		Value:       in.Value,
	}, s.clock())
	if err != nil {
		return domain.Task{}, err
	}
	if err := s.repo.CreateTask(ctx, task); err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

// GetTask returns task.
func (s *Service) GetTask(ctx context.Context, id string) (domain.Task, error) {
	return lookupTask(ctx, s.repo, strings.TrimSpace(id))
}

// ListTasks lists tasks, optionally restricted to statuses.
func (s *Service) ListTasks(ctx context.Context, statuses ...domain.Status) ([]domain.Task, error) {
	return s.repo.ListTasks(ctx, TaskFilter{Statuses: statuses})
}

// UpdateTask applies a partial edit inside one write transaction.
func (s *Service) UpdateTask(ctx context.Context, id string, up domain.TaskUpdate) (domain.Task, error) {
	var out domain.Task
	err := s.repo.WithinTx(ctx, func(tx GraphTx) error {
		task, err := lookupTask(ctx, tx, strings.TrimSpace(id))
		if err != nil {
			return err
		}
		updated, err := task.Apply(up, s.clock())
		if err != nil {
			return err
		}
		if err := tx.UpdateTask(ctx, updated); err != nil {
			return err
		}
		out = updated
		return nil
	})
	if err != nil {
		return domain.Task{}, err
	}
	return out, nil
}

// SetTaskStatus moves a task to status. Edges pointing at a task that reaches
// completed or cancelled stay recorded and simply stop counting as active.
func (s *Service) SetTaskStatus(ctx context.Context, id string, status domain.Status) (domain.Task, error) {
	return s.UpdateTask(ctx, id, domain.TaskUpdate{Status: &status})
}

// StartTask marks a task in progress.
func (s *Service) StartTask(ctx context.Context, id string) (domain.Task, error) {
	return s.SetTaskStatus(ctx, id, domain.StatusInProgress)
}

// CompleteTask marks a task completed.
func (s *Service) CompleteTask(ctx context.Context, id string) (domain.Task, error) {
	return s.SetTaskStatus(ctx, id, domain.StatusCompleted)
}

// CancelTask marks a task cancelled.
func (s *Service) CancelTask(ctx context.Context, id string) (domain.Task, error) {
	return s.SetTaskStatus(ctx, id, domain.StatusCancelled)
}

// DeleteTask deletes a task together with every edge touching it.
func (s *Service) DeleteTask(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	return s.repo.WithinTx(ctx, func(tx GraphTx) error {
		if _, err := lookupTask(ctx, tx, id); err != nil {
			return err
		}
		return tx.DeleteTask(ctx, id)
	})
}
