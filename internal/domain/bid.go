package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BidStatus represents the state of a bid
type BidStatus string

const (
	BidStatusPending   BidStatus = "PENDING"
	BidStatusAccepted  BidStatus = "ACCEPTED"
	BidStatusRejected  BidStatus = "REJECTED"
	BidStatusWithdrawn BidStatus = "WITHDRAWN"
)

// MaxBidNoteLength is the maximum length of the optional bid note.
const MaxBidNoteLength = 500

// Bid represents a helper's offer on a task.
// Invariant: at most one PENDING bid per (task, helper) pair.
type Bid struct {
	ID        uuid.UUID
	TaskID    uuid.UUID
	HelperID  uuid.UUID
	Amount    decimal.Decimal
	Note      string
	Status    BidStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate ensures the bid adheres to domain rules
func (b *Bid) Validate() error {
	if b.Amount.LessThanOrEqual(decimal.Zero) {
		return NewValidationError("amount", "must be positive")
	}
	if len(b.Note) > MaxBidNoteLength {
		return NewValidationError("note", "exceeds 500 characters")
	}
	return nil
}

// BidSortField selects the ordering of bid listings.
type BidSortField string

const (
	BidSortByAmount     BidSortField = "amount"
	BidSortByCreatedAt  BidSortField = "created_at"
	BidSortByHelperName BidSortField = "helper_name"
)

// BidSort describes the requested ordering of a bid listing.
type BidSort struct {
	Field      BidSortField
	Descending bool
}

// Validate checks the sort field against the whitelist.
func (s BidSort) Validate() error {
	switch s.Field {
	case BidSortByAmount, BidSortByCreatedAt, BidSortByHelperName, "":
		return nil
	}
	return NewValidationError("sort", "unknown sort field")
}
