package domain

import (
	"time"

	"github.com/google/uuid"
)

// TimelineEvent is an immutable record of a task state transition. It is the
// audit trail used for dispute resolution.
type TimelineEvent struct {
	ID         uuid.UUID
	TaskID     uuid.UUID
	Event      string
	ActorID    *uuid.UUID // nil for system-triggered transitions
	FromStatus TaskStatus
	ToStatus   TaskStatus
	Note       string
	CreatedAt  time.Time
}

// AuditEntry is an append-only record of a moderation action.
type AuditEntry struct {
	ID         uuid.UUID
	ActorID    uuid.UUID
	Action     string
	EntityType string
	EntityID   uuid.UUID
	Before     string
	After      string
	Reason     string
	CreatedAt  time.Time
}
