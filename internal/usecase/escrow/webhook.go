package escrow

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/gigswap/gigswap-backend/internal/domain"
	"github.com/gigswap/gigswap-backend/internal/metrics"
)

// Webhook event types delivered by the payment processor.
const (
	EventPaymentSucceeded = "payment.succeeded"
	EventPaymentFailed    = "payment.failed"
	EventTransferCreated  = "transfer.created"
	EventRefundCreated    = "refund.created"
)

// WebhookEvent is a processor-side event. ProcessorRef is the processor's
// reference id for the object the event describes and doubles as the
// idempotency key for reconciliation.
type WebhookEvent struct {
	Type         string
	ProcessorRef string
}

// HandleWebhook applies a processor event to the ledger. Processing the same
// event twice is a no-op on the second application. Unknown event types are
// acknowledged and logged so the processor does not retry them forever.
func (s *Service) HandleWebhook(ctx context.Context, event WebhookEvent) error {
	if event.ProcessorRef == "" {
		return domain.NewValidationError("processor_ref", "cannot be empty")
	}

	metrics.WebhookEvents.WithLabelValues(event.Type).Inc()

	switch event.Type {
	case EventPaymentSucceeded:
		return s.ConfirmPayment(ctx, event.ProcessorRef)
	case EventPaymentFailed:
		return s.FailPayment(ctx, event.ProcessorRef)
	case EventTransferCreated, EventRefundCreated:
		return s.reconcileLedgerEntry(ctx, event.ProcessorRef)
	default:
		s.log.Info("ignoring unknown webhook event", zap.String("type", event.Type), zap.String("processor_ref", event.ProcessorRef))
		return nil
	}
}

// reconcileLedgerEntry confirms the ledger entry recorded for an
// asynchronously-reported transfer or refund. Keyed by processor reference:
// a redelivered event finds the entry already COMPLETED and does nothing.
func (s *Service) reconcileLedgerEntry(ctx context.Context, processorRef string) error {
	entry, err := s.Payments.GetByProcessorRef(ctx, processorRef)
	if err != nil {
		// The processor can emit events for objects we never recorded, e.g.
		// when an operator acts directly in its dashboard.
		s.log.Warn("no ledger entry for processor event", zap.String("processor_ref", processorRef), zap.Error(err))
		return nil
	}
	if entry.Status == domain.EntryStatusCompleted {
		return nil
	}
	if err := s.Payments.UpdateStatus(ctx, entry.ID, domain.EntryStatusCompleted); err != nil {
		return fmt.Errorf("reconcile ledger entry: %w", err)
	}
	return nil
}
