package formation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/gigswap/gigswap-backend/internal/domain"
)

// Charger creates the escrow charge for a freshly formed contract.
// Implemented by the escrow service.
type Charger interface {
	ChargePoster(ctx context.Context, contractID uuid.UUID, amount decimal.Decimal, description string) (*domain.ChargeResult, error)
}

// Service turns an accepted bid into an exclusive contract. The atomic part
// of the operation (accept bid, reject siblings, assign helper, create
// contract) runs inside a single database transaction in the
// FormationRepository; charge creation happens after commit because it
// crosses the process boundary.
type Service struct {
	Formation domain.FormationRepository
	Escrow    Charger
	Notifier  domain.NotificationSink

	log *zap.Logger
}

// NewService creates a new formation Service instance
func NewService(formation domain.FormationRepository, escrow Charger, notifier domain.NotificationSink, logger *zap.Logger) *Service {
	return &Service{
		Formation: formation,
		Escrow:    escrow,
		Notifier:  notifier,
		log:       logger,
	}
}

// AcceptBid accepts one bid on behalf of the task's poster and creates the
// contract. Exactly one concurrent call per task succeeds; the rest fail
// with ErrConflict and leave no partial effects.
//
// A charge-creation failure after the commit does NOT roll the contract
// back: sibling bids were already rejected and cannot be un-rejected safely.
// The contract stays in PENDING payment state, recoverable via RetryCharge.
func (s *Service) AcceptBid(ctx context.Context, posterID, bidID uuid.UUID) (*domain.Contract, error) {
	contract, err := s.Formation.AcceptBid(ctx, posterID, bidID)
	if err != nil {
		return nil, fmt.Errorf("accept bid: %w", err)
	}

	if _, err := s.Escrow.ChargePoster(ctx, contract.ID, contract.AgreedAmount, "escrow charge"); err != nil {
		s.log.Error("charge creation failed after contract commit, contract stays pending",
			zap.String("contract_id", contract.ID.String()),
			zap.String("task_id", contract.TaskID.String()),
			zap.Error(err))
	}

	if err := s.Notifier.Notify(ctx, contract.HelperID, "bid.accepted", map[string]string{
		"task_id":     contract.TaskID.String(),
		"contract_id": contract.ID.String(),
		"amount":      contract.AgreedAmount.String(),
	}); err != nil {
		s.log.Warn("notify helper of accepted bid", zap.String("contract_id", contract.ID.String()), zap.Error(err))
	}

	return contract, nil
}
