package app

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/therockpusher/taskweaver/internal/domain"
)

// edgeKey identifies one directed edge in fakeRepo.
type edgeKey struct {
	task    string
	blocker string
}

// fakeRepo represents fake repo data used by this package.
type fakeRepo struct {
	tasks map[string]domain.Task
	edges map[edgeKey]domain.Dependency

	writeTxCount int
	readTxCount  int
}

// newFakeRepo constructs fake repo.
func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		tasks: map[string]domain.Task{},
		edges: map[edgeKey]domain.Dependency{},
	}
}

// clone copies the repository state for transactional writes.
func (f *fakeRepo) clone() *fakeRepo {
	return &fakeRepo{
		tasks: maps.Clone(f.tasks),
		edges: maps.Clone(f.edges),
	}
}

// WithinTx applies fn to a copy and keeps it only when fn succeeds.
func (f *fakeRepo) WithinTx(_ context.Context, fn func(GraphTx) error) error {
	f.writeTxCount++
	work := f.clone()
	if err := fn(work); err != nil {
		return err
	}
	f.tasks = work.tasks
	f.edges = work.edges
	return nil
}

// ReadTx runs fn against the live state.
func (f *fakeRepo) ReadTx(_ context.Context, fn func(GraphReader) error) error {
	f.readTxCount++
	return fn(f)
}

// ReplaceAll swaps the full content.
func (f *fakeRepo) ReplaceAll(_ context.Context, tasks []domain.Task, edges []domain.Dependency) error {
	f.tasks = map[string]domain.Task{}
	f.edges = map[edgeKey]domain.Dependency{}
	for _, task := range tasks {
		f.tasks[task.ID] = task
	}
	for _, edge := range edges {
		f.edges[edgeKey{edge.TaskID, edge.BlockerID}] = edge
	}
	return nil
}

// CreateTask creates task.
func (f *fakeRepo) CreateTask(_ context.Context, task domain.Task) error {
	if _, ok := f.tasks[task.ID]; ok {
		return fmt.Errorf("task %q already exists", task.ID)
	}
	f.tasks[task.ID] = task
	return nil
}

// UpdateTask updates task.
func (f *fakeRepo) UpdateTask(_ context.Context, task domain.Task) error {
	if _, ok := f.tasks[task.ID]; !ok {
		return ErrNotFound
	}
	f.tasks[task.ID] = task
	return nil
}

// DeleteTask deletes task and cascades its edges.
func (f *fakeRepo) DeleteTask(_ context.Context, id string) error {
	if _, ok := f.tasks[id]; !ok {
		return ErrNotFound
	}
	delete(f.tasks, id)
	for key := range f.edges {
		if key.task == id || key.blocker == id {
			delete(f.edges, key)
		}
	}
	return nil
}

// GetTask returns task.
func (f *fakeRepo) GetTask(_ context.Context, id string) (domain.Task, error) {
	task, ok := f.tasks[id]
	if !ok {
		return domain.Task{}, ErrNotFound
	}
	return task, nil
}

// ListTasks lists tasks ordered by creation time.
func (f *fakeRepo) ListTasks(_ context.Context, filter TaskFilter) ([]domain.Task, error) {
	out := []domain.Task{}
	for _, task := range f.tasks {
		if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, task.Status) {
			continue
		}
		out = append(out, task)
	}
	slices.SortFunc(out, func(a, b domain.Task) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

// DirectBlockers returns blocker ids for id.
func (f *fakeRepo) DirectBlockers(_ context.Context, id string) ([]string, error) {
	out := []string{}
	for key := range f.edges {
		if key.task == id {
			out = append(out, key.blocker)
		}
	}
	slices.Sort(out)
	return out, nil
}

// DirectBlocked returns ids blocked by id.
func (f *fakeRepo) DirectBlocked(_ context.Context, id string) ([]string, error) {
	out := []string{}
	for key := range f.edges {
		if key.blocker == id {
			out = append(out, key.task)
		}
	}
	slices.Sort(out)
	return out, nil
}

// HasEdge reports whether the edge exists.
func (f *fakeRepo) HasEdge(_ context.Context, taskID, blockerID string) (bool, error) {
	_, ok := f.edges[edgeKey{taskID, blockerID}]
	return ok, nil
}

// ListEdges lists edges ordered by endpoints.
func (f *fakeRepo) ListEdges(_ context.Context) ([]domain.Dependency, error) {
	out := make([]domain.Dependency, 0, len(f.edges))
	for _, edge := range f.edges {
		out = append(out, edge)
	}
	slices.SortFunc(out, func(a, b domain.Dependency) int {
		if c := strings.Compare(a.TaskID, b.TaskID); c != 0 {
			return c
		}
		return strings.Compare(a.BlockerID, b.BlockerID)
	})
	return out, nil
}

// InsertEdge inserts one edge.
func (f *fakeRepo) InsertEdge(_ context.Context, dep domain.Dependency) error {
	key := edgeKey{dep.TaskID, dep.BlockerID}
	if _, ok := f.edges[key]; ok {
		return domain.ErrDuplicateEdge
	}
	f.edges[key] = dep
	return nil
}

// DeleteEdge deletes one edge if present.
func (f *fakeRepo) DeleteEdge(_ context.Context, taskID, blockerID string) (bool, error) {
	key := edgeKey{taskID, blockerID}
	if _, ok := f.edges[key]; !ok {
		return false, nil
	}
	delete(f.edges, key)
	return true, nil
}
