package moderation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/gigswap/gigswap-backend/internal/domain"
)

// Refunder issues refunds against a contract's charge. Implemented by the
// escrow service.
type Refunder interface {
	RefundPayment(ctx context.Context, contractID uuid.UUID, amount *decimal.Decimal, reason string) (*domain.Payment, error)
}

// Service implements administrative interventions. Every action is recorded
// in the audit log with the acting moderator and a before/after snapshot.
type Service struct {
	Tasks     domain.TaskRepository
	Contracts domain.ContractRepository
	Audit     domain.AuditRepository
	Escrow    Refunder

	log *zap.Logger
}

// NewService creates a new moderation Service instance
func NewService(
	tasks domain.TaskRepository,
	contracts domain.ContractRepository,
	audit domain.AuditRepository,
	escrow Refunder,
	logger *zap.Logger,
) *Service {
	return &Service{
		Tasks:     tasks,
		Contracts: contracts,
		Audit:     audit,
		Escrow:    escrow,
		log:       logger,
	}
}

// LockTask freezes a task so no lifecycle transitions can run against it.
func (s *Service) LockTask(ctx context.Context, moderatorID, taskID uuid.UUID, reason string) (*domain.Task, error) {
	return s.setTaskLock(ctx, moderatorID, taskID, true, reason)
}

// UnlockTask lifts a moderation freeze from a task.
func (s *Service) UnlockTask(ctx context.Context, moderatorID, taskID uuid.UUID, reason string) (*domain.Task, error) {
	return s.setTaskLock(ctx, moderatorID, taskID, false, reason)
}

func (s *Service) setTaskLock(ctx context.Context, moderatorID, taskID uuid.UUID, locked bool, reason string) (*domain.Task, error) {
	if reason == "" {
		return nil, domain.NewValidationError("reason", "is required")
	}

	task, err := s.Tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	if task.Locked == locked {
		return nil, fmt.Errorf("%w: task lock already %t", domain.ErrConflict, locked)
	}

	before := task.Locked
	task.Locked = locked
	task.UpdatedAt = time.Now()
	if err := s.Tasks.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}

	action := "task.lock"
	if !locked {
		action = "task.unlock"
	}
	s.record(ctx, moderatorID, action, "task", taskID,
		strconv.FormatBool(before), strconv.FormatBool(locked), reason)

	s.log.Info("task lock changed",
		zap.String("task_id", taskID.String()),
		zap.String("moderator_id", moderatorID.String()),
		zap.Bool("locked", locked))
	return task, nil
}

// LockContract freezes a contract, blocking payout release and retries.
func (s *Service) LockContract(ctx context.Context, moderatorID, contractID uuid.UUID, reason string) (*domain.Contract, error) {
	return s.setContractLock(ctx, moderatorID, contractID, true, reason)
}

// UnlockContract lifts a moderation freeze from a contract.
func (s *Service) UnlockContract(ctx context.Context, moderatorID, contractID uuid.UUID, reason string) (*domain.Contract, error) {
	return s.setContractLock(ctx, moderatorID, contractID, false, reason)
}

func (s *Service) setContractLock(ctx context.Context, moderatorID, contractID uuid.UUID, locked bool, reason string) (*domain.Contract, error) {
	if reason == "" {
		return nil, domain.NewValidationError("reason", "is required")
	}

	contract, err := s.Contracts.GetByID(ctx, contractID)
	if err != nil {
		return nil, fmt.Errorf("get contract: %w", err)
	}
	if contract.Locked == locked {
		return nil, fmt.Errorf("%w: contract lock already %t", domain.ErrConflict, locked)
	}

	before := contract.Locked
	contract.Locked = locked
	contract.UpdatedAt = time.Now()
	if err := s.Contracts.Update(ctx, contract); err != nil {
		return nil, fmt.Errorf("update contract: %w", err)
	}

	action := "contract.lock"
	if !locked {
		action = "contract.unlock"
	}
	s.record(ctx, moderatorID, action, "contract", contractID,
		strconv.FormatBool(before), strconv.FormatBool(locked), reason)

	s.log.Info("contract lock changed",
		zap.String("contract_id", contractID.String()),
		zap.String("moderator_id", moderatorID.String()),
		zap.Bool("locked", locked))
	return contract, nil
}

// TriggerRefund issues a moderator-initiated refund. A nil amount refunds the
// full charge. The escrow layer enforces payment-state rules; moderation only
// adds the audit trail on top.
func (s *Service) TriggerRefund(ctx context.Context, moderatorID, contractID uuid.UUID, amount *decimal.Decimal, reason string) (*domain.Payment, error) {
	if reason == "" {
		return nil, domain.NewValidationError("reason", "is required")
	}

	contract, err := s.Contracts.GetByID(ctx, contractID)
	if err != nil {
		return nil, fmt.Errorf("get contract: %w", err)
	}
	before := string(contract.PaymentStatus)

	payment, err := s.Escrow.RefundPayment(ctx, contractID, amount, reason)
	if err != nil {
		return nil, err
	}

	refunded := "full"
	if amount != nil {
		refunded = amount.StringFixed(2)
	}
	s.record(ctx, moderatorID, "contract.refund", "contract", contractID,
		before, refunded, reason)

	s.log.Info("moderator refund issued",
		zap.String("contract_id", contractID.String()),
		zap.String("moderator_id", moderatorID.String()),
		zap.String("amount", refunded))
	return payment, nil
}

// record appends an audit entry. Audit storage failures are logged rather
// than propagated so they cannot undo an intervention that already happened.
func (s *Service) record(ctx context.Context, actorID uuid.UUID, action, entityType string, entityID uuid.UUID, before, after, reason string) {
	entry := &domain.AuditEntry{
		ID:         uuid.New(),
		ActorID:    actorID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Before:     before,
		After:      after,
		Reason:     reason,
		CreatedAt:  time.Now(),
	}
	if err := s.Audit.Record(ctx, entry); err != nil {
		s.log.Error("record audit entry",
			zap.String("action", action),
			zap.String("entity_id", entityID.String()),
			zap.Error(err))
	}
}
