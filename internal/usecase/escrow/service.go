package escrow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/gigswap/gigswap-backend/internal/domain"
	"github.com/gigswap/gigswap-backend/internal/metrics"
)

// Service orchestrates escrow payments for contracts: charge creation,
// charge confirmation, payout release with the fee split, refunds, and
// webhook-driven reconciliation.
type Service struct {
	Contracts domain.ContractRepository
	Payments  domain.PaymentRepository
	Gateway   domain.PaymentGateway
	Accounts  domain.PayoutAccountRepository
	Notifier  domain.NotificationSink

	FeePercent    decimal.Decimal
	ReleaseWindow time.Duration
	Currency      string

	log *zap.Logger
}

// NewService creates a new escrow Service instance
func NewService(
	contracts domain.ContractRepository,
	payments domain.PaymentRepository,
	gateway domain.PaymentGateway,
	accounts domain.PayoutAccountRepository,
	notifier domain.NotificationSink,
	feePercent decimal.Decimal,
	releaseWindow time.Duration,
	currency string,
	logger *zap.Logger,
) *Service {
	return &Service{
		Contracts:     contracts,
		Payments:      payments,
		Gateway:       gateway,
		Accounts:      accounts,
		Notifier:      notifier,
		FeePercent:    feePercent,
		ReleaseWindow: releaseWindow,
		Currency:      currency,
		log:           logger,
	}
}

// ChargePoster creates the escrow charge for a contract at the payment
// processor, then persists the processor reference on the contract and a
// CHARGE ledger entry in PROCESSING state.
//
// A gateway failure leaves the contract untouched in its current recoverable
// state (PENDING or FAILED) so the charge can be retried.
func (s *Service) ChargePoster(ctx context.Context, contractID uuid.UUID, amount decimal.Decimal, description string) (*domain.ChargeResult, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, domain.NewValidationError("amount", "must be positive")
	}

	contract, err := s.Contracts.GetByID(ctx, contractID)
	if err != nil {
		return nil, fmt.Errorf("load contract: %w", err)
	}
	if contract.ChargeID != nil {
		return nil, fmt.Errorf("charge already created for contract: %w", domain.ErrConflict)
	}
	if !contract.PaymentStatus.CanTransitionTo(domain.PaymentStatusProcessing) {
		return nil, fmt.Errorf("contract payment is %s: %w", contract.PaymentStatus, domain.ErrConflict)
	}

	result, err := s.Gateway.CreateCharge(ctx, domain.ChargeRequest{
		Amount:         amount,
		Currency:       s.Currency,
		IdempotencyKey: idempotencyKey(contractID, "charge"),
		Metadata: map[string]string{
			"contract_id": contract.ID.String(),
			"task_id":     contract.TaskID.String(),
			"description": description,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create charge: %w", err)
	}

	if err := contract.TransitionPayment(domain.PaymentStatusProcessing); err != nil {
		return nil, err
	}
	contract.ChargeID = &result.ChargeID
	contract.UpdatedAt = time.Now()
	if err := s.Contracts.Update(ctx, contract); err != nil {
		return nil, fmt.Errorf("store charge reference: %w", err)
	}

	entry := &domain.Payment{
		ID:           uuid.New(),
		ContractID:   contract.ID,
		Type:         domain.PaymentTypeCharge,
		Amount:       amount,
		Status:       domain.EntryStatusProcessing,
		ProcessorRef: result.ChargeID,
		Description:  description,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := s.Payments.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("record charge entry: %w", err)
	}

	metrics.ChargesCreated.Inc()
	return result, nil
}

// RetryCharge re-attempts charge creation for a contract left without a
// charge by a post-commit failure. Repair path for the ops surface.
func (s *Service) RetryCharge(ctx context.Context, contractID uuid.UUID) (*domain.ChargeResult, error) {
	contract, err := s.Contracts.GetByID(ctx, contractID)
	if err != nil {
		return nil, fmt.Errorf("load contract: %w", err)
	}
	return s.ChargePoster(ctx, contractID, contract.AgreedAmount, "escrow charge retry")
}

// ConfirmPayment applies a payment.succeeded event: the contract's escrow
// moves to COMPLETED, the auto-release deadline is set if absent and the
// CHARGE ledger entry is completed. Reprocessing the same reference is a
// no-op.
func (s *Service) ConfirmPayment(ctx context.Context, processorRef string) error {
	contract, err := s.Contracts.GetByChargeID(ctx, processorRef)
	if err != nil {
		return fmt.Errorf("load contract by charge: %w", err)
	}

	if contract.PaymentStatus.FundsCaptured() {
		// Duplicate delivery, possibly after a later refund
		return nil
	}
	if err := contract.TransitionPayment(domain.PaymentStatusCompleted); err != nil {
		return err
	}

	now := time.Now()
	contract.PaymentCompletedAt = &now
	if contract.AutoReleaseAt == nil {
		deadline := now.Add(s.ReleaseWindow)
		contract.AutoReleaseAt = &deadline
	}
	contract.UpdatedAt = now
	if err := s.Contracts.Update(ctx, contract); err != nil {
		return fmt.Errorf("update contract: %w", err)
	}

	s.completeLedgerEntry(ctx, processorRef)
	metrics.PaymentsConfirmed.Inc()

	if err := s.Notifier.Notify(ctx, contract.PosterID, "payment.confirmed", map[string]string{
		"contract_id": contract.ID.String(),
		"amount":      contract.AgreedAmount.String(),
	}); err != nil {
		s.log.Warn("notify poster of payment confirmation", zap.String("contract_id", contract.ID.String()), zap.Error(err))
	}

	return nil
}

// FailPayment applies a payment.failed event. The contract and its CHARGE
// ledger entry move to FAILED; the task and contract rows themselves are not
// reverted — an assigned-but-unpaid contract is retried via RetryCharge or
// resolved manually.
func (s *Service) FailPayment(ctx context.Context, processorRef string) error {
	contract, err := s.Contracts.GetByChargeID(ctx, processorRef)
	if err != nil {
		return fmt.Errorf("load contract by charge: %w", err)
	}

	if contract.PaymentStatus == domain.PaymentStatusFailed {
		return nil
	}
	if err := contract.TransitionPayment(domain.PaymentStatusFailed); err != nil {
		return err
	}
	contract.UpdatedAt = time.Now()
	if err := s.Contracts.Update(ctx, contract); err != nil {
		return fmt.Errorf("update contract: %w", err)
	}

	if entry, err := s.Payments.GetByProcessorRef(ctx, processorRef); err == nil && entry.Status != domain.EntryStatusFailed {
		if err := s.Payments.UpdateStatus(ctx, entry.ID, domain.EntryStatusFailed); err != nil {
			s.log.Warn("mark charge entry failed", zap.String("processor_ref", processorRef), zap.Error(err))
		}
	}

	return nil
}

// ReleasePayout transfers the helper's share of the escrow to their payout
// account. The platform fee is rounded first; the helper amount is the exact
// remainder. A transactional claim guards against concurrent release (manual
// vs. scheduler): only one caller reaches the external transfer.
func (s *Service) ReleasePayout(ctx context.Context, contractID uuid.UUID) (*domain.Payment, error) {
	contract, err := s.Contracts.GetByID(ctx, contractID)
	if err != nil {
		return nil, fmt.Errorf("load contract: %w", err)
	}

	if contract.Locked {
		return nil, fmt.Errorf("contract is locked: %w", domain.ErrConflict)
	}
	if contract.PayoutReleased() {
		return nil, fmt.Errorf("payout already released: %w", domain.ErrConflict)
	}
	if contract.PaymentStatus != domain.PaymentStatusCompleted {
		return nil, fmt.Errorf("contract payment is %s, escrow not funded: %w", contract.PaymentStatus, domain.ErrConflict)
	}

	account, err := s.Accounts.AccountID(ctx, contract.HelperID)
	if err != nil {
		return nil, fmt.Errorf("helper has no payout account: %w", domain.ErrConflict)
	}
	status, err := s.Gateway.RetrieveAccountStatus(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("retrieve account status: %w", err)
	}
	if !status.PayoutsEnabled {
		return nil, fmt.Errorf("helper payout account is not payout-enabled: %w", domain.ErrConflict)
	}

	helperAmount, platformFee, err := domain.SplitPayout(contract.AgreedAmount, s.FeePercent)
	if err != nil {
		return nil, fmt.Errorf("split payout: %w", err)
	}

	// Claim before the external call so concurrent callers cannot both
	// transfer. The loser sees ErrConflict here.
	if err := s.Contracts.ClaimPayout(ctx, contract.ID, time.Now()); err != nil {
		return nil, fmt.Errorf("claim payout: %w", err)
	}

	transfer, err := s.Gateway.CreateTransfer(ctx, domain.TransferRequest{
		DestinationAccount: account,
		Amount:             helperAmount,
		Currency:           s.Currency,
		IdempotencyKey:     idempotencyKey(contract.ID, "payout"),
		Metadata: map[string]string{
			"contract_id":  contract.ID.String(),
			"platform_fee": platformFee.String(),
		},
	})
	if err != nil {
		// Release the claim so the payout stays retryable. The idempotency
		// key makes a repeated transfer safe if the first one actually went
		// through.
		if relErr := s.Contracts.ReleaseClaim(ctx, contract.ID); relErr != nil {
			s.log.Error("release payout claim", zap.String("contract_id", contract.ID.String()), zap.Error(relErr))
		}
		return nil, fmt.Errorf("create transfer: %w", err)
	}

	if err := s.Contracts.SetPayout(ctx, contract.ID, transfer.TransferID); err != nil {
		return nil, fmt.Errorf("store payout reference: %w", err)
	}

	entry := &domain.Payment{
		ID:           uuid.New(),
		ContractID:   contract.ID,
		Type:         domain.PaymentTypePayout,
		Amount:       helperAmount,
		Status:       domain.EntryStatusCompleted,
		ProcessorRef: transfer.TransferID,
		Description:  fmt.Sprintf("payout (fee %s)", platformFee),
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := s.Payments.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("record payout entry: %w", err)
	}

	metrics.PayoutsReleased.Inc()

	if err := s.Notifier.Notify(ctx, contract.HelperID, "payout.released", map[string]string{
		"contract_id": contract.ID.String(),
		"amount":      helperAmount.String(),
	}); err != nil {
		s.log.Warn("notify helper of payout", zap.String("contract_id", contract.ID.String()), zap.Error(err))
	}

	return entry, nil
}

// RefundPayment refunds part or all of the original charge. A nil amount
// means a full refund of the agreed amount; an amount below it is a partial
// refund. Records a REFUND ledger entry and notifies both parties.
func (s *Service) RefundPayment(ctx context.Context, contractID uuid.UUID, amount *decimal.Decimal, reason string) (*domain.Payment, error) {
	contract, err := s.Contracts.GetByID(ctx, contractID)
	if err != nil {
		return nil, fmt.Errorf("load contract: %w", err)
	}

	if contract.ChargeID == nil {
		return nil, fmt.Errorf("contract has no charge to refund: %w", domain.ErrConflict)
	}

	refundAmount := contract.AgreedAmount
	if amount != nil {
		refundAmount = *amount
	}
	if refundAmount.LessThanOrEqual(decimal.Zero) {
		return nil, domain.NewValidationError("amount", "must be positive")
	}
	if refundAmount.GreaterThan(contract.AgreedAmount) {
		return nil, domain.NewValidationError("amount", "exceeds agreed amount")
	}

	target := domain.PaymentStatusRefunded
	if refundAmount.LessThan(contract.AgreedAmount) {
		target = domain.PaymentStatusPartiallyRefunded
	}
	if !contract.PaymentStatus.CanTransitionTo(target) {
		return nil, fmt.Errorf("contract payment is %s: %w", contract.PaymentStatus, domain.ErrConflict)
	}

	result, err := s.Gateway.CreateRefund(ctx, domain.RefundRequest{
		ChargeID:       *contract.ChargeID,
		Amount:         refundAmount,
		IdempotencyKey: idempotencyKey(contract.ID, "refund-"+refundAmount.String()),
		Metadata: map[string]string{
			"contract_id": contract.ID.String(),
			"reason":      reason,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create refund: %w", err)
	}

	if err := contract.TransitionPayment(target); err != nil {
		return nil, err
	}
	contract.RefundID = &result.RefundID
	contract.UpdatedAt = time.Now()
	if err := s.Contracts.Update(ctx, contract); err != nil {
		return nil, fmt.Errorf("update contract: %w", err)
	}

	entry := &domain.Payment{
		ID:           uuid.New(),
		ContractID:   contract.ID,
		Type:         domain.PaymentTypeRefund,
		Amount:       refundAmount,
		Status:       domain.EntryStatusCompleted,
		ProcessorRef: result.RefundID,
		Description:  reason,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := s.Payments.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("record refund entry: %w", err)
	}

	metrics.RefundsIssued.Inc()

	for _, userID := range []uuid.UUID{contract.PosterID, contract.HelperID} {
		if err := s.Notifier.Notify(ctx, userID, "payment.refunded", map[string]string{
			"contract_id": contract.ID.String(),
			"amount":      refundAmount.String(),
			"reason":      reason,
		}); err != nil {
			s.log.Warn("notify refund", zap.String("contract_id", contract.ID.String()), zap.Error(err))
		}
	}

	return entry, nil
}

// completeLedgerEntry marks the ledger entry for a processor reference
// COMPLETED if it is not already. Idempotent; missing entries are logged.
func (s *Service) completeLedgerEntry(ctx context.Context, processorRef string) {
	entry, err := s.Payments.GetByProcessorRef(ctx, processorRef)
	if err != nil {
		s.log.Warn("ledger entry not found for processor reference", zap.String("processor_ref", processorRef), zap.Error(err))
		return
	}
	if entry.Status == domain.EntryStatusCompleted {
		return
	}
	if err := s.Payments.UpdateStatus(ctx, entry.ID, domain.EntryStatusCompleted); err != nil {
		s.log.Warn("complete ledger entry", zap.String("processor_ref", processorRef), zap.Error(err))
	}
}

func idempotencyKey(contractID uuid.UUID, op string) string {
	return contractID.String() + ":" + op
}
