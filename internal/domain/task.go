package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TaskStatus represents the lifecycle state of a task
type TaskStatus string

const (
	TaskStatusOpen                 TaskStatus = "OPEN"
	TaskStatusInBidding            TaskStatus = "IN_BIDDING"
	TaskStatusAssigned             TaskStatus = "ASSIGNED"
	TaskStatusInProgress           TaskStatus = "IN_PROGRESS"
	TaskStatusAwaitingConfirmation TaskStatus = "AWAITING_CONFIRMATION"
	TaskStatusCompleted            TaskStatus = "COMPLETED"
	TaskStatusDisputed             TaskStatus = "DISPUTED"
	TaskStatusCancelled            TaskStatus = "CANCELLED"
)

// taskTransitions is the explicit transition table. Any move not listed here
// fails with InvalidTransitionError.
var taskTransitions = map[TaskStatus][]TaskStatus{
	TaskStatusOpen:                 {TaskStatusInBidding, TaskStatusAssigned, TaskStatusCancelled},
	TaskStatusInBidding:            {TaskStatusAssigned, TaskStatusCancelled},
	TaskStatusAssigned:             {TaskStatusInProgress, TaskStatusCancelled},
	TaskStatusInProgress:           {TaskStatusAwaitingConfirmation},
	TaskStatusAwaitingConfirmation: {TaskStatusCompleted, TaskStatusDisputed},
	TaskStatusDisputed:             {TaskStatusCompleted, TaskStatusCancelled},
}

// CanTransitionTo reports whether the transition table allows moving from s
// to next.
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	for _, allowed := range taskTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether s is a terminal state.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusCancelled
}

// AcceptsBids reports whether new bids may be placed on a task in state s.
func (s TaskStatus) AcceptsBids() bool {
	return s == TaskStatusOpen || s == TaskStatusInBidding
}

// Task represents a posted gig in the domain layer
type Task struct {
	ID               uuid.UUID
	PosterID         uuid.UUID
	Title            string
	Category         string
	Budget           decimal.Decimal
	Status           TaskStatus
	AssignedHelperID *uuid.UUID // NULL until a contract is formed
	Locked           bool       // set by moderation; blocks further transitions
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Validate ensures the task adheres to domain rules
func (t *Task) Validate() error {
	if t.Title == "" {
		return NewValidationError("title", "cannot be empty")
	}
	if t.Category == "" {
		return NewValidationError("category", "cannot be empty")
	}
	if t.Budget.LessThanOrEqual(decimal.Zero) {
		return NewValidationError("budget", "must be positive")
	}
	return nil
}

// Transition moves the task to the requested status after checking the
// transition table and the moderation lock. The task is left unchanged on
// failure.
func (t *Task) Transition(next TaskStatus) error {
	if t.Locked {
		return ErrConflict
	}
	if !t.Status.CanTransitionTo(next) {
		return &InvalidTransitionError{Entity: "task", From: string(t.Status), To: string(next)}
	}
	t.Status = next
	return nil
}
