package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gigswap/gigswap-backend/internal/domain"
)

// formationRepository implements domain.FormationRepository
type formationRepository struct {
	db *DB
}

// NewFormationRepository creates a new formation repository
func NewFormationRepository(db *DB) domain.FormationRepository {
	return &formationRepository{db: db}
}

// AcceptBid runs the whole bid-acceptance sequence in one serializable
// database transaction. Row locks on the bid and its task keep two
// concurrent acceptances on the same task from both succeeding; the loser
// surfaces as ErrConflict.
func (r *formationRepository) AcceptBid(ctx context.Context, posterID, bidID uuid.UUID) (*domain.Contract, error) {
	dbTx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	contract, err := r.acceptBid(ctx, dbTx, posterID, bidID)
	if err != nil {
		return nil, err
	}

	if err := dbTx.Commit(); err != nil {
		if isSerializationFailure(err) {
			return nil, fmt.Errorf("concurrent bid acceptance on the same task: %w", domain.ErrConflict)
		}
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return contract, nil
}

func (r *formationRepository) acceptBid(ctx context.Context, dbTx *sql.Tx, posterID, bidID uuid.UUID) (*domain.Contract, error) {
	// Lock the bid row first, then its task
	bid, err := r.lockBid(ctx, dbTx, bidID)
	if err != nil {
		return nil, err
	}

	task, err := r.lockTask(ctx, dbTx, bid.TaskID)
	if err != nil {
		return nil, err
	}

	if task.PosterID != posterID {
		return nil, fmt.Errorf("only the poster can accept a bid: %w", domain.ErrForbidden)
	}
	if task.Locked {
		return nil, fmt.Errorf("task %s is locked by moderation: %w", task.ID, domain.ErrConflict)
	}
	if !task.Status.AcceptsBids() {
		return nil, fmt.Errorf("task %s no longer accepts bids: %w", task.ID, domain.ErrConflict)
	}
	if bid.Status != domain.BidStatusPending {
		return nil, fmt.Errorf("bid %s is not pending: %w", bid.ID, domain.ErrConflict)
	}

	now := time.Now()

	// Accept the winning bid
	if _, err := dbTx.ExecContext(ctx,
		`UPDATE bids SET status = $2, updated_at = $3 WHERE id = $1`,
		bid.ID, string(domain.BidStatusAccepted), now,
	); err != nil {
		return nil, fmt.Errorf("failed to accept bid: %w", err)
	}

	// Reject all remaining pending bids on the task
	if _, err := dbTx.ExecContext(ctx,
		`UPDATE bids SET status = $3, updated_at = $4 WHERE task_id = $1 AND id <> $2 AND status = $5`,
		task.ID, bid.ID, string(domain.BidStatusRejected), now, string(domain.BidStatusPending),
	); err != nil {
		return nil, fmt.Errorf("failed to reject sibling bids: %w", err)
	}

	// Assign the helper and move the task to ASSIGNED
	fromStatus := task.Status
	if err := task.Transition(domain.TaskStatusAssigned); err != nil {
		return nil, err
	}
	if _, err := dbTx.ExecContext(ctx,
		`UPDATE tasks SET status = $2, assigned_helper_id = $3, updated_at = $4 WHERE id = $1`,
		task.ID, string(task.Status), bid.HelperID, now,
	); err != nil {
		return nil, fmt.Errorf("failed to assign task: %w", err)
	}

	// Create the contract at the bid's amount
	contract := &domain.Contract{
		ID:            uuid.New(),
		TaskID:        task.ID,
		PosterID:      task.PosterID,
		HelperID:      bid.HelperID,
		AcceptedBidID: bid.ID,
		AgreedAmount:  bid.Amount,
		PaymentStatus: domain.PaymentStatusPending,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if _, err := dbTx.ExecContext(ctx,
		`INSERT INTO contracts (id, task_id, poster_id, helper_id, accepted_bid_id, agreed_amount, payment_status, locked, active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		contract.ID, contract.TaskID, contract.PosterID, contract.HelperID, contract.AcceptedBidID,
		contract.AgreedAmount.String(), string(contract.PaymentStatus), contract.Locked, contract.Active,
		contract.CreatedAt, contract.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("task %s already has a contract: %w", task.ID, domain.ErrConflict)
		}
		return nil, fmt.Errorf("failed to create contract: %w", err)
	}

	// Record the transition in the task timeline within the same transaction
	if _, err := dbTx.ExecContext(ctx,
		`INSERT INTO timeline_events (id, task_id, event, actor_id, from_status, to_status, note, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.New(), task.ID, "bid.accepted", posterID,
		string(fromStatus), string(domain.TaskStatusAssigned),
		fmt.Sprintf("bid %s accepted at %s", bid.ID, bid.Amount.StringFixed(2)), now,
	); err != nil {
		return nil, fmt.Errorf("failed to record timeline event: %w", err)
	}

	return contract, nil
}

func (r *formationRepository) lockBid(ctx context.Context, dbTx *sql.Tx, bidID uuid.UUID) (*domain.Bid, error) {
	query := `
		SELECT id, task_id, helper_id, amount, note, status, created_at, updated_at
		FROM bids
		WHERE id = $1
		FOR UPDATE
	`

	bid, err := scanBid(dbTx.QueryRowContext(ctx, query, bidID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("bid %s: %w", bidID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to lock bid: %w", err)
	}

	return bid, nil
}

func (r *formationRepository) lockTask(ctx context.Context, dbTx *sql.Tx, taskID uuid.UUID) (*domain.Task, error) {
	query := `
		SELECT id, poster_id, title, category, budget, status, assigned_helper_id, locked, created_at, updated_at
		FROM tasks
		WHERE id = $1
		FOR UPDATE
	`

	task, err := scanTask(dbTx.QueryRowContext(ctx, query, taskID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("task %s: %w", taskID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to lock task: %w", err)
	}

	return task, nil
}
