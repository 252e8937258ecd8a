package sqlite

import (
	"context"
	"fmt"

	"github.com/therockpusher/taskweaver/internal/domain"
)

// DirectBlockers returns blocker ids recorded for taskID, regardless of status.
func (s graphStore) DirectBlockers(ctx context.Context, taskID string) ([]string, error) {
	return s.queryIDs(ctx, `
		SELECT blocker_id FROM task_dependencies
		WHERE task_id = ?
		ORDER BY blocker_id ASC
	`, taskID)
}

// DirectBlocked returns ids of tasks blocked by blockerID, regardless of status.
func (s graphStore) DirectBlocked(ctx context.Context, blockerID string) ([]string, error) {
	return s.queryIDs(ctx, `
		SELECT task_id FROM task_dependencies
		WHERE blocker_id = ?
		ORDER BY task_id ASC
	`, blockerID)
}

// HasEdge reports whether the edge exists.
func (s graphStore) HasEdge(ctx context.Context, taskID, blockerID string) (bool, error) {
	var exists int
	err := s.q.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM task_dependencies WHERE task_id = ? AND blocker_id = ?)
	`, taskID, blockerID).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists == 1, nil
}

// ListEdges lists every edge ordered by endpoints.
func (s graphStore) ListEdges(ctx context.Context) ([]domain.Dependency, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT task_id, blocker_id, created_at
		FROM task_dependencies
		ORDER BY task_id ASC, blocker_id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Dependency{}
	for rows.Next() {
		var (
			dep        domain.Dependency
			createdRaw string
		)
		if err := rows.Scan(&dep.TaskID, &dep.BlockerID, &createdRaw); err != nil {
			return nil, err
		}
		dep.CreatedAt = parseTS(createdRaw)
		out = append(out, dep)
	}
	return out, rows.Err()
}

// InsertEdge inserts one edge; a repeated pair maps to domain.ErrDuplicateEdge.
func (s graphStore) InsertEdge(ctx context.Context, dep domain.Dependency) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO task_dependencies(task_id, blocker_id, created_at)
		VALUES (?, ?, ?)
	`, dep.TaskID, dep.BlockerID, ts(dep.CreatedAt))
	if isUniqueConstraintErr(err) {
		return fmt.Errorf("%w: %s blocked by %s", domain.ErrDuplicateEdge, dep.TaskID, dep.BlockerID)
	}
	return err
}

// DeleteEdge deletes one edge and reports whether a row was removed.
func (s graphStore) DeleteEdge(ctx context.Context, taskID, blockerID string) (bool, error) {
	res, err := s.q.ExecContext(ctx, `
		DELETE FROM task_dependencies WHERE task_id = ? AND blocker_id = ?
	`, taskID, blockerID)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// queryIDs runs a single-column id query.
func (s graphStore) queryIDs(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
