package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentType is the kind of processor-side event a ledger entry records
type PaymentType string

const (
	PaymentTypeCharge PaymentType = "CHARGE"
	PaymentTypePayout PaymentType = "PAYOUT"
	PaymentTypeRefund PaymentType = "REFUND"
)

// EntryStatus is the status of a single payment ledger entry
type EntryStatus string

const (
	EntryStatusProcessing EntryStatus = "PROCESSING"
	EntryStatusCompleted  EntryStatus = "COMPLETED"
	EntryStatusFailed     EntryStatus = "FAILED"
)

// Payment is an append-only audit ledger entry: one row per processor-side
// event. Rows are never mutated except to reflect a status transition of the
// same processor call, keyed by ProcessorRef.
type Payment struct {
	ID           uuid.UUID
	ContractID   uuid.UUID
	Type         PaymentType
	Amount       decimal.Decimal
	Status       EntryStatus
	ProcessorRef string // processor reference id; idempotency key for webhooks
	Description  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Validate ensures the ledger entry adheres to domain rules
func (p *Payment) Validate() error {
	if p.Amount.LessThanOrEqual(decimal.Zero) {
		return NewValidationError("amount", "must be positive")
	}
	switch p.Type {
	case PaymentTypeCharge, PaymentTypePayout, PaymentTypeRefund:
	default:
		return NewValidationError("type", "must be CHARGE, PAYOUT or REFUND")
	}
	if p.ProcessorRef == "" {
		return NewValidationError("processor_ref", "cannot be empty")
	}
	return nil
}
