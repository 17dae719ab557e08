package bidding

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/gigswap/gigswap-backend/internal/domain"
)

// PlaceBidInput represents the input for placing a bid
type PlaceBidInput struct {
	HelperID uuid.UUID
	TaskID   uuid.UUID
	Amount   decimal.Decimal
	Note     string
}

// Service handles bid placement, withdrawal and listing
type Service struct {
	Tasks    domain.TaskRepository
	Bids     domain.BidRepository
	Notifier domain.NotificationSink

	log *zap.Logger
}

// NewService creates a new bidding Service instance
func NewService(tasks domain.TaskRepository, bids domain.BidRepository, notifier domain.NotificationSink, logger *zap.Logger) *Service {
	return &Service{
		Tasks:    tasks,
		Bids:     bids,
		Notifier: notifier,
		log:      logger,
	}
}

// PlaceBid creates a PENDING bid on an open task.
// Fails if the task is missing, not open for bids, locked, owned by the
// bidder, or if the helper already has a PENDING bid on it.
func (s *Service) PlaceBid(ctx context.Context, input PlaceBidInput) (*domain.Bid, error) {
	bid := &domain.Bid{
		ID:        uuid.New(),
		TaskID:    input.TaskID,
		HelperID:  input.HelperID,
		Amount:    input.Amount,
		Note:      input.Note,
		Status:    domain.BidStatusPending,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := bid.Validate(); err != nil {
		return nil, err
	}

	task, err := s.Tasks.GetByID(ctx, input.TaskID)
	if err != nil {
		return nil, fmt.Errorf("load task: %w", err)
	}

	if task.PosterID == input.HelperID {
		return nil, fmt.Errorf("cannot bid on own task: %w", domain.ErrForbidden)
	}
	if task.Locked {
		return nil, fmt.Errorf("task is locked: %w", domain.ErrConflict)
	}
	if !task.Status.AcceptsBids() {
		return nil, fmt.Errorf("task is not open for bids (status %s): %w", task.Status, domain.ErrConflict)
	}

	exists, err := s.Bids.HasPendingBid(ctx, input.TaskID, input.HelperID)
	if err != nil {
		return nil, fmt.Errorf("check pending bid: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("helper already has a pending bid on this task: %w", domain.ErrConflict)
	}

	if err := s.Bids.Create(ctx, bid); err != nil {
		return nil, fmt.Errorf("create bid: %w", err)
	}

	// Notification is a side effect, never surfaced to the caller
	if err := s.Notifier.Notify(ctx, task.PosterID, "bid.placed", map[string]string{
		"task_id": task.ID.String(),
		"bid_id":  bid.ID.String(),
		"amount":  bid.Amount.String(),
	}); err != nil {
		s.log.Warn("notify poster of new bid", zap.String("task_id", task.ID.String()), zap.Error(err))
	}

	return bid, nil
}

// WithdrawBid sets the caller's PENDING bid to WITHDRAWN. Withdrawal is final.
func (s *Service) WithdrawBid(ctx context.Context, helperID, bidID uuid.UUID) (*domain.Bid, error) {
	bid, err := s.Bids.GetByID(ctx, bidID)
	if err != nil {
		return nil, fmt.Errorf("load bid: %w", err)
	}

	if bid.HelperID != helperID {
		return nil, fmt.Errorf("bid belongs to another helper: %w", domain.ErrForbidden)
	}
	if bid.Status != domain.BidStatusPending {
		return nil, fmt.Errorf("bid is %s, only pending bids can be withdrawn: %w", bid.Status, domain.ErrConflict)
	}

	bid.Status = domain.BidStatusWithdrawn
	bid.UpdatedAt = time.Now()
	if err := s.Bids.Update(ctx, bid); err != nil {
		return nil, fmt.Errorf("update bid: %w", err)
	}

	return bid, nil
}

// ListBids returns the bids on a task visible to the viewer: the poster sees
// every bid, any other caller sees only their own.
func (s *Service) ListBids(ctx context.Context, viewerID, taskID uuid.UUID, sort domain.BidSort) ([]*domain.Bid, error) {
	if err := sort.Validate(); err != nil {
		return nil, err
	}

	task, err := s.Tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("load task: %w", err)
	}

	if task.PosterID == viewerID {
		return s.Bids.ListByTask(ctx, taskID, sort)
	}
	return s.Bids.ListByTaskAndHelper(ctx, taskID, viewerID, sort)
}
