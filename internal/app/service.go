package app

import (
	"context"
	"errors"
	"time"

	"github.com/therockpusher/taskweaver/internal/domain"
)

// ServiceConfig holds configuration for service.
type ServiceConfig struct {
	// ActiveOnlyPropagation limits priority propagation to downstream tasks
	// that are still pending or in progress.
	ActiveOnlyPropagation bool
}

// IDGenerator returns unique identifiers for new entities.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// Service owns the dependency graph rules on top of a Repository.
type Service struct {
	repo       Repository
	idGen      IDGenerator
	clock      Clock
	activeOnly bool
}

// NewService constructs a new value for this package.
func NewService(repo Repository, idGen IDGenerator, clock Clock, cfg ServiceConfig) *Service {
	if idGen == nil {
		idGen = func() string { return "" }
	}
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		repo:       repo,
		idGen:      idGen,
		clock:      clock,
		activeOnly: cfg.ActiveOnlyPropagation,
	}
}

// lookupTask resolves one id, translating store misses into TaskNotFoundError.
func lookupTask(ctx context.Context, r TaskReader, id string) (domain.Task, error) {
	task, err := r.GetTask(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return domain.Task{}, &domain.TaskNotFoundError{TaskID: id}
		}
		return domain.Task{}, err
	}
	return task, nil
}

// openStatuses lists the non-terminal statuses.
func openStatuses() []domain.Status {
	return []domain.Status{domain.StatusPending, domain.StatusInProgress}
}
