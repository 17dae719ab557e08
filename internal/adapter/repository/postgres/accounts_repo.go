package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/gigswap/gigswap-backend/internal/domain"
)

// payoutAccountRepository implements domain.PayoutAccountRepository
type payoutAccountRepository struct {
	db *DB
}

// NewPayoutAccountRepository creates a new payout account repository
func NewPayoutAccountRepository(db *DB) domain.PayoutAccountRepository {
	return &payoutAccountRepository{db: db}
}

// AccountID retrieves the helper's processor account id
func (r *payoutAccountRepository) AccountID(ctx context.Context, helperID uuid.UUID) (string, error) {
	query := `SELECT account_id FROM payout_accounts WHERE helper_id = $1`

	var accountID string
	err := r.db.QueryRowContext(ctx, query, helperID).Scan(&accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("payout account for helper %s: %w", helperID, domain.ErrNotFound)
		}
		return "", fmt.Errorf("failed to get payout account: %w", err)
	}

	return accountID, nil
}

// SetAccountID stores or replaces the helper's processor account id
func (r *payoutAccountRepository) SetAccountID(ctx context.Context, helperID uuid.UUID, accountID string) error {
	query := `
		INSERT INTO payout_accounts (helper_id, account_id, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (helper_id) DO UPDATE SET account_id = EXCLUDED.account_id, updated_at = now()
	`

	if _, err := r.db.ExecContext(ctx, query, helperID, accountID); err != nil {
		return fmt.Errorf("failed to set payout account: %w", err)
	}

	return nil
}
