package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/therockpusher/taskweaver/internal/app"
	"github.com/therockpusher/taskweaver/internal/domain"
)

// taskColumns lists the task projection shared by tasks and tasks_full.
const taskColumns = `id, title, description, requirement, duration_min, value, status, created_at, updated_at`

// CreateTask creates task.
func (s graphStore) CreateTask(ctx context.Context, t domain.Task) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO tasks(`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		t.ID,
		t.Title,
		t.Description,
		t.Requirement,
		t.DurationMin,
		t.Value,
		string(t.Status),
		ts(t.CreatedAt),
		ts(t.UpdatedAt),
	)
	return err
}

// UpdateTask updates state for the requested operation.
func (s graphStore) UpdateTask(ctx context.Context, t domain.Task) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE tasks
		SET title = ?, description = ?, requirement = ?, duration_min = ?, value = ?, status = ?, updated_at = ?
		WHERE id = ?
	`,
		t.Title,
		t.Description,
		t.Requirement,
		t.DurationMin,
		t.Value,
		string(t.Status),
		ts(t.UpdatedAt),
		t.ID,
	)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// DeleteTask deletes task; foreign keys cascade its edges.
func (s graphStore) DeleteTask(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// GetTask returns task.
func (s graphStore) GetTask(ctx context.Context, id string) (domain.Task, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	return scanTask(row)
}

// ListTasks lists tasks ordered by creation time.
func (s graphStore) ListTasks(ctx context.Context, filter app.TaskFilter) ([]domain.Task, error) {
	where, args := statusClause(filter.Statuses)
	rows, err := s.q.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks`+where+` ORDER BY created_at ASC, id ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

// ListTasksWithCounts reads tasks with blocker counts from the tasks_full view.
func (s graphStore) ListTasksWithCounts(ctx context.Context, filter app.TaskFilter) ([]domain.TaskWithCounts, error) {
	where, args := statusClause(filter.Statuses)
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+taskColumns+`, active_blocker_count, tasks_blocked_count
		FROM tasks_full`+where+`
		ORDER BY created_at ASC, id ASC
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.TaskWithCounts{}
	for rows.Next() {
		var (
			row        domain.TaskWithCounts
			status     string
			createdRaw string
			updatedRaw string
		)
		if err := rows.Scan(
			&row.ID,
			&row.Title,
			&row.Description,
			&row.Requirement,
			&row.DurationMin,
			&row.Value,
			&status,
			&createdRaw,
			&updatedRaw,
			&row.ActiveBlockerCount,
			&row.TasksBlockedCount,
		); err != nil {
			return nil, err
		}
		row.Status = domain.Status(status)
		row.CreatedAt = parseTS(createdRaw)
		row.UpdatedAt = parseTS(updatedRaw)
		out = append(out, row)
	}
	return out, rows.Err()
}

// statusClause builds an optional WHERE status IN (...) clause.
func statusClause(statuses []domain.Status) (string, []any) {
	if len(statuses) == 0 {
		return "", nil
	}
	args := make([]any, 0, len(statuses))
	for _, status := range statuses {
		args = append(args, string(status))
	}
	return ` WHERE status IN (` + strings.TrimSuffix(strings.Repeat("?, ", len(statuses)), ", ") + `)`, args
}

// scanTask decodes one task row.
func scanTask(s scanner) (domain.Task, error) {
	var (
		t          domain.Task
		status     string
		createdRaw string
		updatedRaw string
	)
	if err := s.Scan(
		&t.ID,
		&t.Title,
		&t.Description,
		&t.Requirement,
		&t.DurationMin,
		&t.Value,
		&status,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Task{}, app.ErrNotFound
		}
		return domain.Task{}, fmt.Errorf("scan task: %w", err)
	}
	t.Status = domain.Status(status)
	t.CreatedAt = parseTS(createdRaw)
	t.UpdatedAt = parseTS(updatedRaw)
	return t, nil
}
