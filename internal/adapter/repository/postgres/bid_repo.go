package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gigswap/gigswap-backend/internal/domain"
)

// bidRepository implements domain.BidRepository
type bidRepository struct {
	db *DB
}

// NewBidRepository creates a new bid repository
func NewBidRepository(db *DB) domain.BidRepository {
	return &bidRepository{db: db}
}

// Create creates a new bid
func (r *bidRepository) Create(ctx context.Context, bid *domain.Bid) error {
	query := `
		INSERT INTO bids (id, task_id, helper_id, amount, note, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		bid.ID,
		bid.TaskID,
		bid.HelperID,
		bid.Amount.String(),
		bid.Note,
		string(bid.Status),
		bid.CreatedAt,
		bid.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("helper already has a pending bid on this task: %w", domain.ErrConflict)
		}
		return fmt.Errorf("failed to create bid: %w", err)
	}

	return nil
}

// GetByID retrieves a bid by its ID
func (r *bidRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Bid, error) {
	query := `
		SELECT id, task_id, helper_id, amount, note, status, created_at, updated_at
		FROM bids
		WHERE id = $1
	`

	bid, err := scanBid(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("bid %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get bid by ID: %w", err)
	}

	return bid, nil
}

// Update persists the bid's status
func (r *bidRepository) Update(ctx context.Context, bid *domain.Bid) error {
	query := `
		UPDATE bids
		SET status = $2, updated_at = $3
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, bid.ID, string(bid.Status), bid.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update bid: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check updated rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("bid %s: %w", bid.ID, domain.ErrNotFound)
	}

	return nil
}

// HasPendingBid reports whether the helper already has a PENDING bid on the task
func (r *bidRepository) HasPendingBid(ctx context.Context, taskID, helperID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM bids
			WHERE task_id = $1 AND helper_id = $2 AND status = $3
		)
	`

	var exists bool
	err := r.db.QueryRowContext(ctx, query, taskID, helperID, string(domain.BidStatusPending)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check pending bid: %w", err)
	}

	return exists, nil
}

// ListByTask retrieves all bids on a task in the requested order
func (r *bidRepository) ListByTask(ctx context.Context, taskID uuid.UUID, sort domain.BidSort) ([]*domain.Bid, error) {
	query := `
		SELECT b.id, b.task_id, b.helper_id, b.amount, b.note, b.status, b.created_at, b.updated_at
		FROM bids b
		LEFT JOIN users u ON u.id = b.helper_id
		WHERE b.task_id = $1
		ORDER BY ` + bidOrderClause(sort)

	return r.list(ctx, query, taskID)
}

// ListByTaskAndHelper retrieves the helper's own bids on a task
func (r *bidRepository) ListByTaskAndHelper(ctx context.Context, taskID, helperID uuid.UUID, sort domain.BidSort) ([]*domain.Bid, error) {
	query := `
		SELECT b.id, b.task_id, b.helper_id, b.amount, b.note, b.status, b.created_at, b.updated_at
		FROM bids b
		LEFT JOIN users u ON u.id = b.helper_id
		WHERE b.task_id = $1 AND b.helper_id = $2
		ORDER BY ` + bidOrderClause(sort)

	return r.list(ctx, query, taskID, helperID)
}

func (r *bidRepository) list(ctx context.Context, query string, args ...interface{}) ([]*domain.Bid, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list bids: %w", err)
	}
	defer rows.Close()

	var bids []*domain.Bid
	for rows.Next() {
		bid, err := scanBid(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bid: %w", err)
		}
		bids = append(bids, bid)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bids: %w", err)
	}

	return bids, nil
}

// bidOrderClause maps a validated sort to a SQL ORDER BY expression. The sort
// field has already passed the domain whitelist; this never interpolates
// caller input.
func bidOrderClause(sort domain.BidSort) string {
	var column string
	switch sort.Field {
	case domain.BidSortByAmount:
		column = "b.amount"
	case domain.BidSortByHelperName:
		column = "u.display_name"
	default:
		column = "b.created_at"
	}
	if sort.Descending {
		return column + " DESC"
	}
	return column + " ASC"
}

func scanBid(row rowScanner) (*domain.Bid, error) {
	var bid domain.Bid
	var amountStr string

	err := row.Scan(
		&bid.ID,
		&bid.TaskID,
		&bid.HelperID,
		&amountStr,
		&bid.Note,
		&bid.Status,
		&bid.CreatedAt,
		&bid.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse amount: %w", err)
	}
	bid.Amount = amount

	return &bid, nil
}
