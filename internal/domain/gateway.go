package domain

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ChargeRequest asks the processor to charge the poster.
type ChargeRequest struct {
	Amount         decimal.Decimal
	Currency       string
	IdempotencyKey string
	Metadata       map[string]string
}

// ChargeResult is the processor's answer to a charge request. ClientHandle is
// the confirmation handle the poster's client completes the payment with.
type ChargeResult struct {
	ChargeID     string
	ClientHandle string
}

// TransferRequest asks the processor to pay out to a helper's account.
type TransferRequest struct {
	DestinationAccount string
	Amount             decimal.Decimal
	Currency           string
	IdempotencyKey     string
	Metadata           map[string]string
}

// TransferResult is the processor's answer to a transfer request.
type TransferResult struct {
	TransferID string
}

// RefundRequest asks the processor to refund part or all of a charge.
type RefundRequest struct {
	ChargeID       string
	Amount         decimal.Decimal
	IdempotencyKey string
	Metadata       map[string]string
}

// RefundResult is the processor's answer to a refund request.
type RefundResult struct {
	RefundID string
}

// AccountStatus describes a payout account's readiness at the processor.
type AccountStatus struct {
	DetailsSubmitted bool
	ChargesEnabled   bool
	PayoutsEnabled   bool
}

// PaymentGateway is the call contract with the external payment processor.
// Every call crosses the process boundary, carries a bounded timeout, and
// sends an idempotency key so a retried call is deduplicated server-side.
// Failures map to ErrExternalService.
type PaymentGateway interface {
	CreateCharge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
	CreateTransfer(ctx context.Context, req TransferRequest) (*TransferResult, error)
	CreateRefund(ctx context.Context, req RefundRequest) (*RefundResult, error)
	RetrieveAccountStatus(ctx context.Context, accountID string) (*AccountStatus, error)
}

// NotificationSink delivers fire-and-forget user notifications. Failures are
// logged at the call site and never propagated.
type NotificationSink interface {
	Notify(ctx context.Context, userID uuid.UUID, kind string, payload map[string]string) error
}
