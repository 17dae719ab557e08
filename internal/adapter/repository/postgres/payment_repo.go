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

// paymentRepository implements domain.PaymentRepository
type paymentRepository struct {
	db *DB
}

// NewPaymentRepository creates a new payment ledger repository
func NewPaymentRepository(db *DB) domain.PaymentRepository {
	return &paymentRepository{db: db}
}

// Create appends a ledger entry
func (r *paymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	query := `
		INSERT INTO payments (id, contract_id, type, amount, status, processor_ref, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		payment.ID,
		payment.ContractID,
		string(payment.Type),
		payment.Amount.String(),
		string(payment.Status),
		payment.ProcessorRef,
		payment.Description,
		payment.CreatedAt,
		payment.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("ledger entry for reference %s already exists: %w", payment.ProcessorRef, domain.ErrConflict)
		}
		return fmt.Errorf("failed to create ledger entry: %w", err)
	}

	return nil
}

// GetByProcessorRef retrieves the entry recorded for a processor reference id
func (r *paymentRepository) GetByProcessorRef(ctx context.Context, ref string) (*domain.Payment, error) {
	query := `
		SELECT id, contract_id, type, amount, status, processor_ref, description, created_at, updated_at
		FROM payments
		WHERE processor_ref = $1
	`

	payment, err := scanPayment(r.db.QueryRowContext(ctx, query, ref))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("ledger entry for reference %s: %w", ref, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get ledger entry by reference: %w", err)
	}

	return payment, nil
}

// UpdateStatus transitions an entry's status
func (r *paymentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.EntryStatus) error {
	query := `
		UPDATE payments
		SET status = $2, updated_at = now()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, string(status))
	if err != nil {
		return fmt.Errorf("failed to update ledger entry status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check updated rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("ledger entry %s: %w", id, domain.ErrNotFound)
	}

	return nil
}

// ListByContract retrieves all ledger entries for a contract
func (r *paymentRepository) ListByContract(ctx context.Context, contractID uuid.UUID) ([]*domain.Payment, error) {
	query := `
		SELECT id, contract_id, type, amount, status, processor_ref, description, created_at, updated_at
		FROM payments
		WHERE contract_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, contractID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer rows.Close()

	var payments []*domain.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		payments = append(payments, payment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ledger entries: %w", err)
	}

	return payments, nil
}

func scanPayment(row rowScanner) (*domain.Payment, error) {
	var payment domain.Payment
	var amountStr string

	err := row.Scan(
		&payment.ID,
		&payment.ContractID,
		&payment.Type,
		&amountStr,
		&payment.Status,
		&payment.ProcessorRef,
		&payment.Description,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse amount: %w", err)
	}
	payment.Amount = amount

	return &payment, nil
}
