package app

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"github.com/therockpusher/taskweaver/internal/domain"
)

// ActiveBlockers returns the blockers of taskID that are still pending or in
// progress. An empty result means the task is actionable.
func (s *Service) ActiveBlockers(ctx context.Context, taskID string) ([]domain.Task, error) {
	taskID = strings.TrimSpace(taskID)
	var out []domain.Task
	err := s.repo.ReadTx(ctx, func(r GraphReader) error {
		var err error
		out, err = activeBlockers(ctx, r, taskID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Blocked returns every task taskID blocks, unfiltered by status, so callers
// can see what finishing it unlocks.
func (s *Service) Blocked(ctx context.Context, taskID string) ([]domain.Task, error) {
	taskID = strings.TrimSpace(taskID)
	var out []domain.Task
	err := s.repo.ReadTx(ctx, func(r GraphReader) error {
		if _, err := lookupTask(ctx, r, taskID); err != nil {
			return err
		}
		ids, err := r.DirectBlocked(ctx, taskID)
		if err != nil {
			return err
		}
		out, err = resolveTasks(ctx, r, ids)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// OpenTasksWithCounts annotates every non-terminal task with its active
// blocker count and the number of tasks it blocks.
func (s *Service) OpenTasksWithCounts(ctx context.Context) ([]domain.TaskWithCounts, error) {
	var out []domain.TaskWithCounts
	err := s.repo.ReadTx(ctx, func(r GraphReader) error {
		var err error
		out, err = openTasksWithCounts(ctx, r)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RankedOpenTasks orders open tasks for pick-up: ready tasks first, then by
// effective priority, tasks blocked count and age.
func (s *Service) RankedOpenTasks(ctx context.Context) ([]domain.RankedTask, error) {
	var out []domain.RankedTask
	err := s.repo.ReadTx(ctx, func(r GraphReader) error {
		open, err := openTasksWithCounts(ctx, r)
		if err != nil {
			return err
		}
		priorities, err := effectivePriorities(ctx, r, s.activeOnly)
		if err != nil {
			return err
		}
		out = make([]domain.RankedTask, 0, len(open))
		for _, task := range open {
			out = append(out, domain.RankedTask{
				TaskWithCounts:    task,
				IntrinsicPriority: task.IntrinsicPriority(),
				EffectivePriority: priorities[task.ID],
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(out, compareRanked)
	return out, nil
}

// compareRanked orders ranked tasks best first.
func compareRanked(a, b domain.RankedTask) int {
	if a.Ready() != b.Ready() {
		if a.Ready() {
			return -1
		}
		return 1
	}
	if c := cmp.Compare(b.EffectivePriority, a.EffectivePriority); c != 0 {
		return c
	}
	if c := cmp.Compare(b.TasksBlockedCount, a.TasksBlockedCount); c != 0 {
		return c
	}
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}

func activeBlockers(ctx context.Context, r GraphReader, taskID string) ([]domain.Task, error) {
	if _, err := lookupTask(ctx, r, taskID); err != nil {
		return nil, err
	}
	ids, err := r.DirectBlockers(ctx, taskID)
	if err != nil {
		return nil, err
	}
	blockers, err := resolveTasks(ctx, r, ids)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Task, 0, len(blockers))
	for _, blocker := range blockers {
		if blocker.Status.IsActive() {
			out = append(out, blocker)
		}
	}
	return out, nil
}

func openTasksWithCounts(ctx context.Context, r GraphReader) ([]domain.TaskWithCounts, error) {
	filter := TaskFilter{Statuses: openStatuses()}
	if counts, ok := r.(CountsReader); ok {
		return counts.ListTasksWithCounts(ctx, filter)
	}

	tasks, err := r.ListTasks(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]domain.TaskWithCounts, 0, len(tasks))
	for _, task := range tasks {
		blockers, err := activeBlockers(ctx, r, task.ID)
		if err != nil {
			return nil, err
		}
		blocked, err := r.DirectBlocked(ctx, task.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.TaskWithCounts{
			Task:               task,
			ActiveBlockerCount: len(blockers),
			TasksBlockedCount:  len(blocked),
		})
	}
	return out, nil
}

func resolveTasks(ctx context.Context, r TaskReader, ids []string) ([]domain.Task, error) {
	out := make([]domain.Task, 0, len(ids))
	for _, id := range ids {
		task, err := lookupTask(ctx, r, id)
		if err != nil {
			return nil, err
		}
		out = append(out, task)
	}
	return out, nil
}
