package paygate

import (
	"context"
	"fmt"
	"sync"

	"github.com/gigswap/gigswap-backend/internal/domain"
)

// Fake is an in-memory stand-in for the payment processor, used in local
// development and integration tests. It honors idempotency keys the way the
// real processor does: a repeated key returns the original result instead of
// creating a second object.
type Fake struct {
	mu       sync.Mutex
	seq      int
	byKey    map[string]string // idempotency key -> object id
	accounts map[string]domain.AccountStatus

	// FailNext makes the next call return ErrExternalService
	FailNext bool
}

// NewFake creates a new fake processor
func NewFake() *Fake {
	return &Fake{
		byKey:    make(map[string]string),
		accounts: make(map[string]domain.AccountStatus),
	}
}

// RegisterAccount overrides the status the fake reports for an account.
// Unregistered accounts default to fully enabled, so callers only register
// an account to simulate an incomplete onboarding.
func (f *Fake) RegisterAccount(accountID string, status domain.AccountStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[accountID] = status
}

// CreateCharge mimics the processor's charge endpoint
func (f *Fake) CreateCharge(ctx context.Context, req domain.ChargeRequest) (*domain.ChargeResult, error) {
	id, err := f.object("ch", req.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	return &domain.ChargeResult{ChargeID: id, ClientHandle: id + "_secret"}, nil
}

// CreateTransfer mimics the processor's transfer endpoint
func (f *Fake) CreateTransfer(ctx context.Context, req domain.TransferRequest) (*domain.TransferResult, error) {
	id, err := f.object("tr", req.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	return &domain.TransferResult{TransferID: id}, nil
}

// CreateRefund mimics the processor's refund endpoint
func (f *Fake) CreateRefund(ctx context.Context, req domain.RefundRequest) (*domain.RefundResult, error) {
	id, err := f.object("re", req.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	return &domain.RefundResult{RefundID: id}, nil
}

// RetrieveAccountStatus mimics the processor's account endpoint
func (f *Fake) RetrieveAccountStatus(ctx context.Context, accountID string) (*domain.AccountStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailNext {
		f.FailNext = false
		return nil, fmt.Errorf("fake processor failure: %w", domain.ErrExternalService)
	}

	if status, ok := f.accounts[accountID]; ok {
		return &status, nil
	}
	return &domain.AccountStatus{DetailsSubmitted: true, ChargesEnabled: true, PayoutsEnabled: true}, nil
}

func (f *Fake) object(prefix, idempotencyKey string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailNext {
		f.FailNext = false
		return "", fmt.Errorf("fake processor failure: %w", domain.ErrExternalService)
	}

	if id, ok := f.byKey[idempotencyKey]; ok {
		return id, nil
	}

	f.seq++
	id := fmt.Sprintf("%s_fake_%06d", prefix, f.seq)
	if idempotencyKey != "" {
		f.byKey[idempotencyKey] = id
	}
	return id, nil
}

var _ domain.PaymentGateway = (*Fake)(nil)
