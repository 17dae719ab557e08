package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus represents the escrow payment state of a contract
type PaymentStatus string

const (
	PaymentStatusPending           PaymentStatus = "PENDING"
	PaymentStatusProcessing        PaymentStatus = "PROCESSING"
	PaymentStatusCompleted         PaymentStatus = "COMPLETED"
	PaymentStatusFailed            PaymentStatus = "FAILED"
	PaymentStatusRefunded          PaymentStatus = "REFUNDED"
	PaymentStatusPartiallyRefunded PaymentStatus = "PARTIALLY_REFUNDED"
)

// paymentTransitions is the explicit escrow state machine. FAILED moves back
// to PROCESSING on a charge retry.
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:           {PaymentStatusProcessing},
	PaymentStatusProcessing:        {PaymentStatusCompleted, PaymentStatusFailed},
	PaymentStatusFailed:            {PaymentStatusProcessing},
	PaymentStatusCompleted:         {PaymentStatusRefunded, PaymentStatusPartiallyRefunded},
	PaymentStatusPartiallyRefunded: {PaymentStatusRefunded},
}

// CanTransitionTo reports whether the escrow state machine allows moving from
// s to next.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, allowed := range paymentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// FundsCaptured reports whether the charge has already succeeded, including
// states the escrow reaches after COMPLETED. A redelivered success event for
// a contract in any of these states is a duplicate, not a transition.
func (s PaymentStatus) FundsCaptured() bool {
	switch s {
	case PaymentStatusCompleted, PaymentStatusRefunded, PaymentStatusPartiallyRefunded:
		return true
	}
	return false
}

// Contract represents the binding agreement created when a bid is accepted.
// Exactly one contract ever exists per task. Contracts are financial records
// and are never deleted.
type Contract struct {
	ID                 uuid.UUID
	TaskID             uuid.UUID
	PosterID           uuid.UUID
	HelperID           uuid.UUID
	AcceptedBidID      uuid.UUID
	AgreedAmount       decimal.Decimal // equals the accepted bid's amount, permanently
	PaymentStatus      PaymentStatus
	ChargeID           *string // processor charge reference, set once
	PayoutID           *string // processor transfer reference, set once
	RefundID           *string // processor refund reference
	PaymentCompletedAt *time.Time
	AutoReleaseAt      *time.Time
	PayoutClaimedAt    *time.Time // transactional claim guard for payout release
	Locked             bool
	Active             bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// TransitionPayment moves the contract's payment status after checking the
// state machine. The contract is left unchanged on failure.
func (c *Contract) TransitionPayment(next PaymentStatus) error {
	if !c.PaymentStatus.CanTransitionTo(next) {
		return &InvalidTransitionError{Entity: "payment", From: string(c.PaymentStatus), To: string(next)}
	}
	c.PaymentStatus = next
	return nil
}

// PayoutReleased reports whether the payout has already been sent.
func (c *Contract) PayoutReleased() bool {
	return c.PayoutID != nil
}
