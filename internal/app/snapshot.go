package app

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/therockpusher/taskweaver/internal/domain"
)

// SnapshotVersion defines a package constant value.
const SnapshotVersion = "taskweaver.snapshot.v1"

// Snapshot represents snapshot data used by this package.
type Snapshot struct {
	Version      string               `json:"version"`
	ExportedAt   time.Time            `json:"exported_at"`
	Tasks        []SnapshotTask       `json:"tasks"`
	Dependencies []SnapshotDependency `json:"dependencies"`
}

// SnapshotTask represents snapshot task data used by this package.
type SnapshotTask struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Requirement string        `json:"requirement,omitempty"`
	DurationMin int           `json:"duration_min"`
	Value       float64       `json:"value"`
	Status      domain.Status `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// SnapshotDependency represents one exported edge.
type SnapshotDependency struct {
	TaskID    string    `json:"task_id"`
	BlockerID string    `json:"blocker_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ExportSnapshot reads every task and edge from one consistent snapshot.
func (s *Service) ExportSnapshot(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{
		Version:    SnapshotVersion,
		ExportedAt: s.clock().UTC(),
	}
	err := s.repo.ReadTx(ctx, func(r GraphReader) error {
		tasks, err := r.ListTasks(ctx, TaskFilter{})
		if err != nil {
			return fmt.Errorf("list tasks: %w", err)
		}
		edges, err := r.ListEdges(ctx)
		if err != nil {
			return fmt.Errorf("list dependencies: %w", err)
		}
		snap.Tasks = make([]SnapshotTask, 0, len(tasks))
		for _, task := range tasks {
			snap.Tasks = append(snap.Tasks, snapshotTaskFromDomain(task))
		}
		snap.Dependencies = make([]SnapshotDependency, 0, len(edges))
		for _, edge := range edges {
			snap.Dependencies = append(snap.Dependencies, SnapshotDependency{
				TaskID:    edge.TaskID,
				BlockerID: edge.BlockerID,
				CreatedAt: edge.CreatedAt.UTC(),
			})
		}
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	snap.sort()
	return snap, nil
}

// ImportSnapshot replaces the store content with snap.
//
// Edges are written as given; the cycle guard does not run on this path.
// VerifyGraph reports any loop such data introduces.
func (s *Service) ImportSnapshot(ctx context.Context, snap Snapshot) error {
	if err := snap.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}
	tasks := make([]domain.Task, 0, len(snap.Tasks))
	for _, t := range snap.Tasks {
		tasks = append(tasks, t.toDomain())
	}
	edges := make([]domain.Dependency, 0, len(snap.Dependencies))
	for _, d := range snap.Dependencies {
		createdAt := d.CreatedAt
		if createdAt.IsZero() {
			createdAt = s.clock()
		}
		edges = append(edges, domain.Dependency{
			TaskID:    strings.TrimSpace(d.TaskID),
			BlockerID: strings.TrimSpace(d.BlockerID),
			CreatedAt: createdAt.UTC(),
		})
	}
	if err := s.repo.ReplaceAll(ctx, tasks, edges); err != nil {
		return fmt.Errorf("replace store content: %w", err)
	}
	return nil
}

// Validate checks structure only: ids, field ranges, references and duplicate
// edges. It does not look for cycles.
func (s *Snapshot) Validate() error {
	if s.Version != "" && s.Version != SnapshotVersion {
		return fmt.Errorf("unsupported snapshot version: %q", s.Version)
	}

	taskIDs := map[string]struct{}{}
	for i, t := range s.Tasks {
		id := strings.TrimSpace(t.ID)
		if id == "" {
			return fmt.Errorf("tasks[%d].id is required", i)
		}
		if t.CreatedAt.IsZero() || t.UpdatedAt.IsZero() {
			return fmt.Errorf("tasks[%d] timestamps are required", i)
		}
		if _, err := domain.NewTask(domain.TaskInput{
			ID:          id,
			Title:       t.Title,
			DurationMin: t.DurationMin,
			Value:       t.Value,
			Status:      t.Status,
		}, t.CreatedAt); err != nil {
			return fmt.Errorf("tasks[%d]: %w", i, err)
		}
		if _, exists := taskIDs[id]; exists {
			return fmt.Errorf("duplicate task id: %q", id)
		}
		taskIDs[id] = struct{}{}
	}

	type pair struct{ task, blocker string }
	seen := map[pair]struct{}{}
	for i, d := range s.Dependencies {
		taskID := strings.TrimSpace(d.TaskID)
		blockerID := strings.TrimSpace(d.BlockerID)
		if taskID == "" || blockerID == "" {
			return fmt.Errorf("dependencies[%d] task_id and blocker_id are required", i)
		}
		if taskID == blockerID {
			return fmt.Errorf("dependencies[%d]: %w", i, domain.ErrSelfDependency)
		}
		if _, ok := taskIDs[taskID]; !ok {
			return fmt.Errorf("dependencies[%d] references unknown task_id %q", i, taskID)
		}
		if _, ok := taskIDs[blockerID]; !ok {
			return fmt.Errorf("dependencies[%d] references unknown blocker_id %q", i, blockerID)
		}
		key := pair{taskID, blockerID}
		if _, exists := seen[key]; exists {
			return fmt.Errorf("dependencies[%d]: %w", i, domain.ErrDuplicateEdge)
		}
		seen[key] = struct{}{}
	}
	return nil
}

func (s *Snapshot) sort() {
	sort.Slice(s.Tasks, func(i, j int) bool {
		a := s.Tasks[i]
		b := s.Tasks[j]
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.ID < b.ID
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	sort.Slice(s.Dependencies, func(i, j int) bool {
		a := s.Dependencies[i]
		b := s.Dependencies[j]
		if a.TaskID == b.TaskID {
			return a.BlockerID < b.BlockerID
		}
		return a.TaskID < b.TaskID
	})
}

func snapshotTaskFromDomain(t domain.Task) SnapshotTask {
	return SnapshotTask{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Requirement: t.Requirement,
		DurationMin: t.DurationMin,
		Value:       t.Value,
		Status:      t.Status,
		CreatedAt:   t.CreatedAt.UTC(),
		UpdatedAt:   t.UpdatedAt.UTC(),
	}
}

func (t SnapshotTask) toDomain() domain.Task {
	status := t.Status
	if status == "" {
		status = domain.StatusPending
	}
	return domain.Task{
		ID:          strings.TrimSpace(t.ID),
		Title:       strings.TrimSpace(t.Title),
		Description: strings.TrimSpace(t.Description),
		Requirement: strings.TrimSpace(t.Requirement),
		DurationMin: t.DurationMin,
		Value:       t.Value,
		Status:      status,
		CreatedAt:   t.CreatedAt.UTC(),
		UpdatedAt:   t.UpdatedAt.UTC(),
	}
}
