package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TaskRepository defines the interface for task persistence operations
type TaskRepository interface {
	// Create creates a new task
	Create(ctx context.Context, task *Task) error

	// GetByID retrieves a task by its ID
	GetByID(ctx context.Context, id uuid.UUID) (*Task, error)

	// Update persists the task's mutable fields (status, assigned helper, lock)
	Update(ctx context.Context, task *Task) error

	// ListStaleAwaitingConfirmation retrieves tasks in AWAITING_CONFIRMATION
	// that have not been updated since the given cutoff
	ListStaleAwaitingConfirmation(ctx context.Context, updatedBefore time.Time) ([]*Task, error)
}

// BidRepository defines the interface for bid persistence operations
type BidRepository interface {
	// Create creates a new bid
	Create(ctx context.Context, bid *Bid) error

	// GetByID retrieves a bid by its ID
	GetByID(ctx context.Context, id uuid.UUID) (*Bid, error)

	// Update persists the bid's status
	Update(ctx context.Context, bid *Bid) error

	// HasPendingBid reports whether the helper already has a PENDING bid on
	// the task
	HasPendingBid(ctx context.Context, taskID, helperID uuid.UUID) (bool, error)

	// ListByTask retrieves all bids on a task in the requested order
	ListByTask(ctx context.Context, taskID uuid.UUID, sort BidSort) ([]*Bid, error)

	// ListByTaskAndHelper retrieves the helper's own bids on a task
	ListByTaskAndHelper(ctx context.Context, taskID, helperID uuid.UUID, sort BidSort) ([]*Bid, error)
}

// ContractRepository defines the interface for contract persistence operations
type ContractRepository interface {
	// GetByID retrieves a contract by its ID
	GetByID(ctx context.Context, id uuid.UUID) (*Contract, error)

	// GetByTaskID retrieves the contract for a task, if one exists
	GetByTaskID(ctx context.Context, taskID uuid.UUID) (*Contract, error)

	// GetByChargeID retrieves the contract holding the given processor charge
	// reference
	GetByChargeID(ctx context.Context, chargeID string) (*Contract, error)

	// Update persists the contract's mutable fields
	Update(ctx context.Context, contract *Contract) error

	// ClaimPayout atomically claims the payout for release. Exactly one
	// concurrent caller wins; the rest receive ErrConflict. The claim only
	// succeeds while payment status is COMPLETED and no payout exists yet.
	ClaimPayout(ctx context.Context, contractID uuid.UUID, at time.Time) error

	// ReleaseClaim clears a payout claim after a failed external transfer so
	// the release can be retried
	ReleaseClaim(ctx context.Context, contractID uuid.UUID) error

	// SetPayout stores the processor transfer reference. Set-once: fails with
	// ErrConflict if a payout reference already exists.
	SetPayout(ctx context.Context, contractID uuid.UUID, payoutID string) error

	// ListDueForRelease retrieves contracts whose auto-release deadline has
	// passed, whose payment is COMPLETED with no payout yet, and whose task
	// is still AWAITING_CONFIRMATION
	ListDueForRelease(ctx context.Context, now time.Time) ([]*Contract, error)
}

// FormationRepository runs the atomic bid-acceptance sequence inside a single
// serializable database transaction. Two concurrent calls on the same task
// cannot both succeed; the loser receives ErrConflict.
type FormationRepository interface {
	// AcceptBid accepts the bid, rejects its pending siblings, assigns the
	// helper, moves the task to ASSIGNED and creates the contract — all or
	// nothing
	AcceptBid(ctx context.Context, posterID, bidID uuid.UUID) (*Contract, error)
}

// PaymentRepository defines the interface for the append-only payment ledger
type PaymentRepository interface {
	// Create appends a ledger entry
	Create(ctx context.Context, payment *Payment) error

	// GetByProcessorRef retrieves the entry recorded for a processor
	// reference id
	GetByProcessorRef(ctx context.Context, ref string) (*Payment, error)

	// UpdateStatus transitions an entry's status. The only permitted mutation.
	UpdateStatus(ctx context.Context, id uuid.UUID, status EntryStatus) error

	// ListByContract retrieves all ledger entries for a contract
	ListByContract(ctx context.Context, contractID uuid.UUID) ([]*Payment, error)
}

// TimelineRepository defines the interface for the task audit trail
type TimelineRepository interface {
	// Append records an immutable timeline event
	Append(ctx context.Context, event *TimelineEvent) error

	// ListByTask retrieves a task's timeline in chronological order
	ListByTask(ctx context.Context, taskID uuid.UUID) ([]*TimelineEvent, error)
}

// AuditRepository defines the interface for the append-only moderation audit log
type AuditRepository interface {
	// Record appends an audit entry
	Record(ctx context.Context, entry *AuditEntry) error
}

// PayoutAccountRepository maps helpers to their processor payout accounts
type PayoutAccountRepository interface {
	// AccountID retrieves the helper's processor account id, or ErrNotFound
	// if the helper has no payout destination on file
	AccountID(ctx context.Context, helperID uuid.UUID) (string, error)

	// SetAccountID stores or replaces the helper's processor account id
	SetAccountID(ctx context.Context, helperID uuid.UUID, accountID string) error
}
