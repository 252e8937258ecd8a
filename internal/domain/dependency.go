package domain

import (
	"strings"
	"time"
)

// Dependency is a directed edge: TaskID is blocked by BlockerID.
type Dependency struct {
	TaskID    string
	BlockerID string
	CreatedAt time.Time
}

// NewDependency validates an edge before any store access.
func NewDependency(taskID, blockerID string, now time.Time) (Dependency, error) {
	taskID = strings.TrimSpace(taskID)
	blockerID = strings.TrimSpace(blockerID)
	if taskID == "" || blockerID == "" {
		return Dependency{}, ErrInvalidID
	}
	if taskID == blockerID {
		return Dependency{}, ErrSelfDependency
	}
	return Dependency{
		TaskID:    taskID,
		BlockerID: blockerID,
		CreatedAt: now.UTC(),
	}, nil
}

// TaskWithCounts annotates a task with its blocker counts.
type TaskWithCounts struct {
	Task
	ActiveBlockerCount int
	TasksBlockedCount  int
}

// Ready reports whether nothing active obstructs the task.
func (t TaskWithCounts) Ready() bool {
	return t.ActiveBlockerCount == 0
}

// RankedTask is an open task with its effective priority.
type RankedTask struct {
	TaskWithCounts
	IntrinsicPriority float64
	EffectivePriority float64
}
