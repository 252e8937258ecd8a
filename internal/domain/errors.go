package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidID       = errors.New("invalid id")
	ErrInvalidTitle    = errors.New("invalid title")
	ErrInvalidDuration = errors.New("invalid duration")
	ErrInvalidValue    = errors.New("invalid value")
	ErrInvalidStatus   = errors.New("invalid status")
)

// Dependency graph error kinds.
var (
	ErrTaskNotFound        = errors.New("task not found")
	ErrSelfDependency      = errors.New("task cannot depend on itself")
	ErrDuplicateEdge       = errors.New("dependency already exists")
	ErrInvalidBlockerState = errors.New("blocker is not pending or in progress")
	ErrCycleDetected       = errors.New("dependency would create a cycle")
	ErrGraphInconsistent   = errors.New("dependency graph is inconsistent")
)

// TaskNotFoundError names the id that failed to resolve.
type TaskNotFoundError struct {
	TaskID string
}

func (e *TaskNotFoundError) Error() string {
	return fmt.Sprintf("%s: %s", ErrTaskNotFound, e.TaskID)
}

func (e *TaskNotFoundError) Unwrap() error { return ErrTaskNotFound }

// BlockerStateError reports a blocker that already reached a terminal status.
type BlockerStateError struct {
	BlockerID string
	Status    Status
}

func (e *BlockerStateError) Error() string {
	return fmt.Sprintf("%s: blocker %s is %s", ErrInvalidBlockerState, e.BlockerID, e.Status)
}

func (e *BlockerStateError) Unwrap() error { return ErrInvalidBlockerState }

// CycleError carries the loop the rejected edge would have closed.
// Path starts and ends with the task id of the candidate edge.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	if len(e.Path) == 0 {
		return ErrCycleDetected.Error()
	}
	return fmt.Sprintf("%s: %s", ErrCycleDetected, strings.Join(e.Path, " -> "))
}

func (e *CycleError) Unwrap() error { return ErrCycleDetected }

// GraphInconsistentError lists tasks found on a cycle that should not exist.
type GraphInconsistentError struct {
	TaskIDs []string
}

func (e *GraphInconsistentError) Error() string {
	if len(e.TaskIDs) == 0 {
		return ErrGraphInconsistent.Error()
	}
	return fmt.Sprintf("%s: cycle through %s", ErrGraphInconsistent, strings.Join(e.TaskIDs, ", "))
}

func (e *GraphInconsistentError) Unwrap() error { return ErrGraphInconsistent }
