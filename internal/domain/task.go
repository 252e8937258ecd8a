package domain

import (
	"slices"
	"strings"
	"time"
	"unicode/utf8"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

var validStatuses = []Status{StatusPending, StatusInProgress, StatusCompleted, StatusCancelled}

// Task field limits.
const (
	MaxTitleLength = 500
	MinDurationMin = 1
	MinValue       = 0.0
	MaxValue       = 100.0
)

// Statuses returns every known status in lifecycle order.
func Statuses() []Status {
	return slices.Clone(validStatuses)
}

// ParseStatus normalizes raw input into a known status.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	switch s {
	case "in-progress", "inprogress", "started":
		s = StatusInProgress
	case "done", "complete":
		s = StatusCompleted
	case "canceled":
		s = StatusCancelled
	}
	if !slices.Contains(validStatuses, s) {
		return "", ErrInvalidStatus
	}
	return s, nil
}

// IsActive reports whether a task in this status can still obstruct others.
func (s Status) IsActive() bool {
	return s == StatusPending || s == StatusInProgress
}

// IsTerminal reports whether the status is completed or cancelled.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type Task struct {
	ID          string
	Title       string
	Description string
	Requirement string
	DurationMin int
	Value       float64
	Status      Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type TaskInput struct {
	ID          string
	Title       string
	Description string
	Requirement string
	DurationMin int
	Value       float64
	Status      Status
}

// TaskUpdate carries optional field edits; nil fields are left untouched.
type TaskUpdate struct {
	Title       *string
	Description *string
	Requirement *string
	DurationMin *int
	Value       *float64
	Status      *Status
}

func NewTask(in TaskInput, now time.Time) (Task, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Requirement = strings.TrimSpace(in.Requirement)

	if in.ID == "" {
		return Task{}, ErrInvalidID
	}
	if err := validateTitle(in.Title); err != nil {
		return Task{}, err
	}
	if in.DurationMin < MinDurationMin {
		return Task{}, ErrInvalidDuration
	}
	if err := validateValue(in.Value); err != nil {
		return Task{}, err
	}
	if in.Status == "" {
		in.Status = StatusPending
	}
	if !slices.Contains(validStatuses, in.Status) {
		return Task{}, ErrInvalidStatus
	}

	now = now.UTC()
	return Task{
		ID:          in.ID,
		Title:       in.Title,
		Description: in.Description,
		Requirement: in.Requirement,
		DurationMin: in.DurationMin,
		Value:       in.Value,
		Status:      in.Status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Apply returns a copy of t with the update applied and validated.
func (t Task) Apply(up TaskUpdate, now time.Time) (Task, error) {
	out := t
	if up.Title != nil {
		title := strings.TrimSpace(*up.Title)
		if err := validateTitle(title); err != nil {
			return Task{}, err
		}
		out.Title = title
	}
	if up.Description != nil {
		out.Description = strings.TrimSpace(*up.Description)
	}
	if up.Requirement != nil {
		out.Requirement = strings.TrimSpace(*up.Requirement)
	}
	if up.DurationMin != nil {
		if *up.DurationMin < MinDurationMin {
			return Task{}, ErrInvalidDuration
		}
		out.DurationMin = *up.DurationMin
	}
	if up.Value != nil {
		if err := validateValue(*up.Value); err != nil {
			return Task{}, err
		}
		out.Value = *up.Value
	}
	if up.Status != nil {
		if !slices.Contains(validStatuses, *up.Status) {
			return Task{}, ErrInvalidStatus
		}
		out.Status = *up.Status
	}
	out.UpdatedAt = now.UTC()
	return out, nil
}

// SetStatus moves the task to status and stamps UpdatedAt.
func (t *Task) SetStatus(status Status, now time.Time) error {
	if !slices.Contains(validStatuses, status) {
		return ErrInvalidStatus
	}
	t.Status = status
	t.UpdatedAt = now.UTC()
	return nil
}

// IntrinsicPriority is value per minute of estimated work.
func (t Task) IntrinsicPriority() float64 {
	if t.DurationMin < MinDurationMin {
		return 0
	}
	return t.Value / float64(t.DurationMin)
}

func validateTitle(title string) error {
	if title == "" || utf8.RuneCountInString(title) > MaxTitleLength {
		return ErrInvalidTitle
	}
	return nil
}

func validateValue(v float64) error {
	if v != v || v < MinValue || v > MaxValue {
		return ErrInvalidValue
	}
	return nil
}
