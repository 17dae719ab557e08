package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gigswap/gigswap-backend/internal/domain"
)

// contractRepository implements domain.ContractRepository
type contractRepository struct {
	db *DB
}

// NewContractRepository creates a new contract repository
func NewContractRepository(db *DB) domain.ContractRepository {
	return &contractRepository{db: db}
}

const contractColumns = `id, task_id, poster_id, helper_id, accepted_bid_id, agreed_amount, payment_status,
	charge_id, payout_id, refund_id, payment_completed_at, auto_release_at, payout_claimed_at,
	locked, active, created_at, updated_at`

// GetByID retrieves a contract by its ID
func (r *contractRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contracts WHERE id = $1`

	contract, err := scanContract(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("contract %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get contract by ID: %w", err)
	}

	return contract, nil
}

// GetByTaskID retrieves the contract for a task
func (r *contractRepository) GetByTaskID(ctx context.Context, taskID uuid.UUID) (*domain.Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contracts WHERE task_id = $1`

	contract, err := scanContract(r.db.QueryRowContext(ctx, query, taskID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("contract for task %s: %w", taskID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get contract by task ID: %w", err)
	}

	return contract, nil
}

// GetByChargeID retrieves the contract holding the processor charge reference
func (r *contractRepository) GetByChargeID(ctx context.Context, chargeID string) (*domain.Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contracts WHERE charge_id = $1`

	contract, err := scanContract(r.db.QueryRowContext(ctx, query, chargeID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("contract with charge %s: %w", chargeID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get contract by charge ID: %w", err)
	}

	return contract, nil
}

// Update persists the contract's mutable fields. Payout references are
// excluded on purpose; they only move through SetPayout.
func (r *contractRepository) Update(ctx context.Context, contract *domain.Contract) error {
	query := `
		UPDATE contracts
		SET payment_status = $2, charge_id = $3, refund_id = $4, payment_completed_at = $5,
			auto_release_at = $6, locked = $7, active = $8, updated_at = $9
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		contract.ID,
		string(contract.PaymentStatus),
		contract.ChargeID,
		contract.RefundID,
		contract.PaymentCompletedAt,
		contract.AutoReleaseAt,
		contract.Locked,
		contract.Active,
		contract.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update contract: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check updated rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("contract %s: %w", contract.ID, domain.ErrNotFound)
	}

	return nil
}

// ClaimPayout atomically claims the payout for release. The conditional
// update makes exactly one concurrent caller win.
func (r *contractRepository) ClaimPayout(ctx context.Context, contractID uuid.UUID, at time.Time) error {
	query := `
		UPDATE contracts
		SET payout_claimed_at = $2, updated_at = $2
		WHERE id = $1 AND payment_status = $3 AND payout_id IS NULL AND payout_claimed_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, contractID, at, string(domain.PaymentStatusCompleted))
	if err != nil {
		return fmt.Errorf("failed to claim payout: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check claimed rows: %w", err)
	}
	if rows == 0 {
		if _, err := r.GetByID(ctx, contractID); err != nil {
			return err
		}
		return fmt.Errorf("payout already claimed or released for contract %s: %w", contractID, domain.ErrConflict)
	}

	return nil
}

// ReleaseClaim clears a payout claim after a failed external transfer
func (r *contractRepository) ReleaseClaim(ctx context.Context, contractID uuid.UUID) error {
	query := `
		UPDATE contracts
		SET payout_claimed_at = NULL, updated_at = now()
		WHERE id = $1 AND payout_id IS NULL
	`

	if _, err := r.db.ExecContext(ctx, query, contractID); err != nil {
		return fmt.Errorf("failed to release payout claim: %w", err)
	}

	return nil
}

// SetPayout stores the processor transfer reference, set-once
func (r *contractRepository) SetPayout(ctx context.Context, contractID uuid.UUID, payoutID string) error {
	query := `
		UPDATE contracts
		SET payout_id = $2, updated_at = now()
		WHERE id = $1 AND payout_id IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, contractID, payoutID)
	if err != nil {
		return fmt.Errorf("failed to set payout reference: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check updated rows: %w", err)
	}
	if rows == 0 {
		if _, err := r.GetByID(ctx, contractID); err != nil {
			return err
		}
		return fmt.Errorf("payout reference already set for contract %s: %w", contractID, domain.ErrConflict)
	}

	return nil
}

// ListDueForRelease retrieves contracts past their auto-release deadline
// whose task is still awaiting confirmation
func (r *contractRepository) ListDueForRelease(ctx context.Context, now time.Time) ([]*domain.Contract, error) {
	query := `
		SELECT c.id, c.task_id, c.poster_id, c.helper_id, c.accepted_bid_id, c.agreed_amount, c.payment_status,
			c.charge_id, c.payout_id, c.refund_id, c.payment_completed_at, c.auto_release_at, c.payout_claimed_at,
			c.locked, c.active, c.created_at, c.updated_at
		FROM contracts c
		JOIN tasks t ON t.id = c.task_id
		WHERE c.auto_release_at IS NOT NULL
			AND c.auto_release_at <= $1
			AND c.payment_status = $2
			AND c.payout_id IS NULL
			AND c.payout_claimed_at IS NULL
			AND c.locked = FALSE
			AND c.active = TRUE
			AND t.status = $3
			AND t.locked = FALSE
		ORDER BY c.auto_release_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, now,
		string(domain.PaymentStatusCompleted),
		string(domain.TaskStatusAwaitingConfirmation),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list due contracts: %w", err)
	}
	defer rows.Close()

	var contracts []*domain.Contract
	for rows.Next() {
		contract, err := scanContract(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contract: %w", err)
		}
		contracts = append(contracts, contract)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate contracts: %w", err)
	}

	return contracts, nil
}

func scanContract(row rowScanner) (*domain.Contract, error) {
	var contract domain.Contract
	var agreedStr string
	var chargeID, payoutID, refundID sql.NullString
	var completedAt, releaseAt, claimedAt sql.NullTime

	err := row.Scan(
		&contract.ID,
		&contract.TaskID,
		&contract.PosterID,
		&contract.HelperID,
		&contract.AcceptedBidID,
		&agreedStr,
		&contract.PaymentStatus,
		&chargeID,
		&payoutID,
		&refundID,
		&completedAt,
		&releaseAt,
		&claimedAt,
		&contract.Locked,
		&contract.Active,
		&contract.CreatedAt,
		&contract.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	agreed, err := decimal.NewFromString(agreedStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse agreed_amount: %w", err)
	}
	contract.AgreedAmount = agreed

	if chargeID.Valid {
		contract.ChargeID = &chargeID.String
	}
	if payoutID.Valid {
		contract.PayoutID = &payoutID.String
	}
	if refundID.Valid {
		contract.RefundID = &refundID.String
	}
	if completedAt.Valid {
		contract.PaymentCompletedAt = &completedAt.Time
	}
	if releaseAt.Valid {
		contract.AutoReleaseAt = &releaseAt.Time
	}
	if claimedAt.Valid {
		contract.PayoutClaimedAt = &claimedAt.Time
	}

	return &contract, nil
}
