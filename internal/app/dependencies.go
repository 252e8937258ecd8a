package app

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/therockpusher/taskweaver/internal/domain"
)

// AddDependency records that taskID is blocked by blockerID.
//
// The existence, blocker status, duplicate and cycle checks run in the same
// write transaction as the insert, so no interleaved writer can invalidate
// them before the row lands.
func (s *Service) AddDependency(ctx context.Context, taskID, blockerID string) (domain.Dependency, error) {
	dep, err := domain.NewDependency(taskID, blockerID, s.clock())
	if err != nil {
		return domain.Dependency{}, err
	}

	err = s.repo.WithinTx(ctx, func(tx GraphTx) error {
		if _, err := lookupTask(ctx, tx, dep.TaskID); err != nil {
			return err
		}
		blocker, err := lookupTask(ctx, tx, dep.BlockerID)
		if err != nil {
			return err
		}
		exists, err := tx.HasEdge(ctx, dep.TaskID, dep.BlockerID)
		if err != nil {
			return fmt.Errorf("check existing dependency: %w", err)
		}
		if exists {
			return fmt.Errorf("%w: %s blocked by %s", domain.ErrDuplicateEdge, dep.TaskID, dep.BlockerID)
		}
		if !blocker.Status.IsActive() {
			return &domain.BlockerStateError{BlockerID: blocker.ID, Status: blocker.Status}
		}
		path, err := findCyclePath(ctx, tx, dep.TaskID, dep.BlockerID)
		if err != nil {
			return fmt.Errorf("cycle check: %w", err)
		}
		if path != nil {
			return &domain.CycleError{Path: path}
		}
		return tx.InsertEdge(ctx, dep)
	})
	if err != nil {
		return domain.Dependency{}, err
	}
	return dep, nil
}

// RemoveDependency deletes the edge if present. Removing a missing edge is not an error.
func (s *Service) RemoveDependency(ctx context.Context, taskID, blockerID string) error {
	taskID = strings.TrimSpace(taskID)
	blockerID = strings.TrimSpace(blockerID)
	if taskID == "" || blockerID == "" {
		return domain.ErrInvalidID
	}
	return s.repo.WithinTx(ctx, func(tx GraphTx) error {
		if _, err := tx.DeleteEdge(ctx, taskID, blockerID); err != nil {
			return fmt.Errorf("delete dependency: %w", err)
		}
		return nil
	})
}

// DirectBlockers returns every blocker id with an edge into taskID, regardless of status.
func (s *Service) DirectBlockers(ctx context.Context, taskID string) ([]string, error) {
	return s.repo.DirectBlockers(ctx, strings.TrimSpace(taskID))
}

// DirectBlocked returns every task id blocked by taskID, regardless of status.
func (s *Service) DirectBlocked(ctx context.Context, taskID string) ([]string, error) {
	return s.repo.DirectBlocked(ctx, strings.TrimSpace(taskID))
}

// ListDependencies lists every recorded edge.
func (s *Service) ListDependencies(ctx context.Context) ([]domain.Dependency, error) {
	return s.repo.ListEdges(ctx)
}

// findCyclePath walks blocked-by edges breadth first from blockerID. When taskID
// is reachable, adding (taskID, blockerID) would close a loop; the returned path
// reads taskID -> blockerID -> ... -> taskID. A nil path means the edge is safe.
func findCyclePath(ctx context.Context, r EdgeReader, taskID, blockerID string) ([]string, error) {
	parent := map[string]string{blockerID: ""}
	queue := []string{blockerID}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if current == taskID {
			return cyclePath(parent, taskID, blockerID), nil
		}

		next, err := r.DirectBlockers(ctx, current)
		if err != nil {
			return nil, err
		}
		for _, id := range next {
			if _, seen := parent[id]; seen {
				continue
			}
			parent[id] = current
			queue = append(queue, id)
		}
	}
	return nil, nil
}

// cyclePath rebuilds the loop from the BFS parent links.
func cyclePath(parent map[string]string, taskID, blockerID string) []string {
	chain := []string{}
	for id := taskID; id != ""; id = parent[id] {
		chain = append(chain, id)
		if id == blockerID {
			break
		}
	}
	slices.Reverse(chain)
	return append([]string{taskID}, chain...)
}
