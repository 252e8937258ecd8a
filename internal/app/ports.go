package app

import (
	"context"

	"github.com/therockpusher/taskweaver/internal/domain"
)

// TaskFilter narrows task listings; an empty filter lists every task.
type TaskFilter struct {
	Statuses []domain.Status
}

// TaskReader reads task records.
type TaskReader interface {
	GetTask(context.Context, string) (domain.Task, error)
	ListTasks(context.Context, TaskFilter) ([]domain.Task, error)
}

// TaskWriter writes task records. It is the sole writer of task status.
type TaskWriter interface {
	CreateTask(context.Context, domain.Task) error
	UpdateTask(context.Context, domain.Task) error
	DeleteTask(context.Context, string) error
}

// EdgeReader answers adjacency lookups in both directions, regardless of task status.
type EdgeReader interface {
	DirectBlockers(context.Context, string) ([]string, error)
	DirectBlocked(context.Context, string) ([]string, error)
	HasEdge(context.Context, string, string) (bool, error)
	ListEdges(context.Context) ([]domain.Dependency, error)
}

// EdgeWriter mutates the edge set. DeleteEdge reports whether a row was removed.
type EdgeWriter interface {
	InsertEdge(context.Context, domain.Dependency) error
	DeleteEdge(context.Context, string, string) (bool, error)
}

// GraphReader is a consistent read view over tasks and edges.
type GraphReader interface {
	TaskReader
	EdgeReader
}

// GraphTx is one atomic unit of reads and writes.
type GraphTx interface {
	GraphReader
	TaskWriter
	EdgeWriter
}

// CountsReader is an optional fast path for per-task blocker counts.
type CountsReader interface {
	ListTasksWithCounts(context.Context, TaskFilter) ([]domain.TaskWithCounts, error)
}

// Repository is the persistence port used by Service.
type Repository interface {
	GraphReader
	TaskWriter

	// WithinTx runs fn in a write transaction; fn's error rolls it back.
	WithinTx(context.Context, func(GraphTx) error) error
	// ReadTx runs fn against one consistent snapshot.
	ReadTx(context.Context, func(GraphReader) error) error
	// ReplaceAll swaps the whole store content without running the cycle guard.
	ReplaceAll(context.Context, []domain.Task, []domain.Dependency) error
}
