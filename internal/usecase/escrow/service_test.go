package escrow

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gigswap/gigswap-backend/internal/domain"
)

// MockContractRepository is a mock implementation of ContractRepository for testing
type MockContractRepository struct {
	mock.Mock
}

func (m *MockContractRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Contract, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Contract), args.Error(1)
}

func (m *MockContractRepository) GetByTaskID(ctx context.Context, taskID uuid.UUID) (*domain.Contract, error) {
	args := m.Called(ctx, taskID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Contract), args.Error(1)
}

func (m *MockContractRepository) GetByChargeID(ctx context.Context, chargeID string) (*domain.Contract, error) {
	args := m.Called(ctx, chargeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Contract), args.Error(1)
}

func (m *MockContractRepository) Update(ctx context.Context, contract *domain.Contract) error {
	args := m.Called(ctx, contract)
	return args.Error(0)
}

func (m *MockContractRepository) ClaimPayout(ctx context.Context, contractID uuid.UUID, at time.Time) error {
	args := m.Called(ctx, contractID, at)
	return args.Error(0)
}

func (m *MockContractRepository) ReleaseClaim(ctx context.Context, contractID uuid.UUID) error {
	args := m.Called(ctx, contractID)
	return args.Error(0)
}

func (m *MockContractRepository) SetPayout(ctx context.Context, contractID uuid.UUID, payoutID string) error {
	args := m.Called(ctx, contractID, payoutID)
	return args.Error(0)
}

func (m *MockContractRepository) ListDueForRelease(ctx context.Context, now time.Time) ([]*domain.Contract, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Contract), args.Error(1)
}

// MockPaymentRepository is a mock implementation of PaymentRepository for testing
type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

func (m *MockPaymentRepository) GetByProcessorRef(ctx context.Context, ref string) (*domain.Payment, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

func (m *MockPaymentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.EntryStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockPaymentRepository) ListByContract(ctx context.Context, contractID uuid.UUID) ([]*domain.Payment, error) {
	args := m.Called(ctx, contractID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Payment), args.Error(1)
}

// MockGateway is a mock implementation of PaymentGateway for testing
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateCharge(ctx context.Context, req domain.ChargeRequest) (*domain.ChargeResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ChargeResult), args.Error(1)
}

func (m *MockGateway) CreateTransfer(ctx context.Context, req domain.TransferRequest) (*domain.TransferResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TransferResult), args.Error(1)
}

func (m *MockGateway) CreateRefund(ctx context.Context, req domain.RefundRequest) (*domain.RefundResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RefundResult), args.Error(1)
}

func (m *MockGateway) RetrieveAccountStatus(ctx context.Context, accountID string) (*domain.AccountStatus, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AccountStatus), args.Error(1)
}

// MockAccounts is a mock implementation of PayoutAccountRepository for testing
type MockAccounts struct {
	mock.Mock
}

func (m *MockAccounts) AccountID(ctx context.Context, helperID uuid.UUID) (string, error) {
	args := m.Called(ctx, helperID)
	return args.String(0), args.Error(1)
}

func (m *MockAccounts) SetAccountID(ctx context.Context, helperID uuid.UUID, accountID string) error {
	args := m.Called(ctx, helperID, accountID)
	return args.Error(0)
}

// MockNotifier is a mock implementation of NotificationSink for testing
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, userID uuid.UUID, kind string, payload map[string]string) error {
	args := m.Called(ctx, userID, kind, payload)
	return args.Error(0)
}

type testEnv struct {
	service   *Service
	contracts *MockContractRepository
	payments  *MockPaymentRepository
	gateway   *MockGateway
	accounts  *MockAccounts
	notifier  *MockNotifier
}

func newTestEnv() *testEnv {
	env := &testEnv{
		contracts: new(MockContractRepository),
		payments:  new(MockPaymentRepository),
		gateway:   new(MockGateway),
		accounts:  new(MockAccounts),
		notifier:  new(MockNotifier),
	}
	env.service = NewService(
		env.contracts, env.payments, env.gateway, env.accounts, env.notifier,
		decimal.NewFromInt(5), 48*time.Hour, "usd", zap.NewNop(),
	)
	return env
}

func pendingContract() *domain.Contract {
	return &domain.Contract{
		ID:            uuid.New(),
		TaskID:        uuid.New(),
		PosterID:      uuid.New(),
		HelperID:      uuid.New(),
		AcceptedBidID: uuid.New(),
		AgreedAmount:  decimal.NewFromInt(90),
		PaymentStatus: domain.PaymentStatusPending,
		Active:        true,
	}
}

func fundedContract() *domain.Contract {
	contract := pendingContract()
	chargeID := "ch_100"
	completedAt := time.Now().Add(-time.Hour)
	contract.ChargeID = &chargeID
	contract.PaymentStatus = domain.PaymentStatusCompleted
	contract.PaymentCompletedAt = &completedAt
	return contract
}

func TestChargePoster(t *testing.T) {
	ctx := context.Background()

	t.Run("creates charge and ledger entry", func(t *testing.T) {
		env := newTestEnv()
		contract := pendingContract()

		env.contracts.On("GetByID", ctx, contract.ID).Return(contract, nil)
		env.gateway.On("CreateCharge", ctx, mock.MatchedBy(func(req domain.ChargeRequest) bool {
			return req.Amount.Equal(decimal.NewFromInt(90)) &&
				req.Currency == "usd" &&
				req.IdempotencyKey == contract.ID.String()+":charge"
		})).Return(&domain.ChargeResult{ChargeID: "ch_1", ClientHandle: "secret_1"}, nil)
		env.contracts.On("Update", ctx, mock.MatchedBy(func(c *domain.Contract) bool {
			return c.PaymentStatus == domain.PaymentStatusProcessing && c.ChargeID != nil && *c.ChargeID == "ch_1"
		})).Return(nil)
		env.payments.On("Create", ctx, mock.MatchedBy(func(p *domain.Payment) bool {
			return p.Type == domain.PaymentTypeCharge &&
				p.Status == domain.EntryStatusProcessing &&
				p.ProcessorRef == "ch_1" &&
				p.Amount.Equal(decimal.NewFromInt(90))
		})).Return(nil)

		result, err := env.service.ChargePoster(ctx, contract.ID, decimal.NewFromInt(90), "escrow for tv mounting")
		require.NoError(t, err)
		assert.Equal(t, "ch_1", result.ChargeID)
		assert.Equal(t, "secret_1", result.ClientHandle)
		env.payments.AssertExpectations(t)
	})

	t.Run("second charge is a conflict", func(t *testing.T) {
		env := newTestEnv()
		contract := fundedContract()
		env.contracts.On("GetByID", ctx, contract.ID).Return(contract, nil)

		_, err := env.service.ChargePoster(ctx, contract.ID, decimal.NewFromInt(90), "")
		assert.ErrorIs(t, err, domain.ErrConflict)
		env.gateway.AssertNotCalled(t, "CreateCharge", mock.Anything, mock.Anything)
	})

	t.Run("gateway failure leaves contract untouched", func(t *testing.T) {
		env := newTestEnv()
		contract := pendingContract()
		env.contracts.On("GetByID", ctx, contract.ID).Return(contract, nil)
		env.gateway.On("CreateCharge", ctx, mock.Anything).Return(nil, domain.ErrExternalService)

		_, err := env.service.ChargePoster(ctx, contract.ID, decimal.NewFromInt(90), "")
		assert.ErrorIs(t, err, domain.ErrExternalService)
		assert.Equal(t, domain.PaymentStatusPending, contract.PaymentStatus)
		env.contracts.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})
}

func TestConfirmPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("completes escrow and sets auto-release deadline", func(t *testing.T) {
		env := newTestEnv()
		contract := pendingContract()
		chargeID := "ch_2"
		contract.ChargeID = &chargeID
		contract.PaymentStatus = domain.PaymentStatusProcessing

		entry := &domain.Payment{ID: uuid.New(), Status: domain.EntryStatusProcessing, ProcessorRef: "ch_2"}

		env.contracts.On("GetByChargeID", ctx, "ch_2").Return(contract, nil)
		env.contracts.On("Update", ctx, mock.MatchedBy(func(c *domain.Contract) bool {
			return c.PaymentStatus == domain.PaymentStatusCompleted &&
				c.PaymentCompletedAt != nil &&
				c.AutoReleaseAt != nil
		})).Return(nil)
		env.payments.On("GetByProcessorRef", ctx, "ch_2").Return(entry, nil)
		env.payments.On("UpdateStatus", ctx, entry.ID, domain.EntryStatusCompleted).Return(nil)
		env.notifier.On("Notify", ctx, contract.PosterID, "payment.confirmed", mock.Anything).Return(nil)

		err := env.service.ConfirmPayment(ctx, "ch_2")
		require.NoError(t, err)

		// ~48h ahead
		assert.WithinDuration(t, time.Now().Add(48*time.Hour), *contract.AutoReleaseAt, time.Minute)
	})

	t.Run("duplicate delivery is a no-op", func(t *testing.T) {
		env := newTestEnv()
		contract := fundedContract()
		env.contracts.On("GetByChargeID", ctx, *contract.ChargeID).Return(contract, nil)

		err := env.service.ConfirmPayment(ctx, *contract.ChargeID)
		assert.NoError(t, err)
		env.contracts.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("redelivery after a refund is a no-op", func(t *testing.T) {
		env := newTestEnv()
		contract := fundedContract()
		contract.PaymentStatus = domain.PaymentStatusRefunded
		env.contracts.On("GetByChargeID", ctx, *contract.ChargeID).Return(contract, nil)

		err := env.service.ConfirmPayment(ctx, *contract.ChargeID)
		assert.NoError(t, err)
		env.contracts.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("existing deadline is preserved", func(t *testing.T) {
		env := newTestEnv()
		contract := pendingContract()
		chargeID := "ch_3"
		deadline := time.Now().Add(12 * time.Hour)
		contract.ChargeID = &chargeID
		contract.PaymentStatus = domain.PaymentStatusProcessing
		contract.AutoReleaseAt = &deadline

		env.contracts.On("GetByChargeID", ctx, "ch_3").Return(contract, nil)
		env.contracts.On("Update", ctx, mock.Anything).Return(nil)
		env.payments.On("GetByProcessorRef", ctx, "ch_3").Return(nil, domain.ErrNotFound)
		env.notifier.On("Notify", ctx, contract.PosterID, "payment.confirmed", mock.Anything).Return(nil)

		require.NoError(t, env.service.ConfirmPayment(ctx, "ch_3"))
		assert.Equal(t, deadline, *contract.AutoReleaseAt)
	})
}

func TestFailPayment(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	contract := pendingContract()
	chargeID := "ch_4"
	contract.ChargeID = &chargeID
	contract.PaymentStatus = domain.PaymentStatusProcessing

	entry := &domain.Payment{ID: uuid.New(), Status: domain.EntryStatusProcessing, ProcessorRef: "ch_4"}

	env.contracts.On("GetByChargeID", ctx, "ch_4").Return(contract, nil)
	env.contracts.On("Update", ctx, mock.MatchedBy(func(c *domain.Contract) bool {
		return c.PaymentStatus == domain.PaymentStatusFailed
	})).Return(nil)
	env.payments.On("GetByProcessorRef", ctx, "ch_4").Return(entry, nil)
	env.payments.On("UpdateStatus", ctx, entry.ID, domain.EntryStatusFailed).Return(nil)

	require.NoError(t, env.service.FailPayment(ctx, "ch_4"))

	// Second delivery is a no-op
	require.NoError(t, env.service.FailPayment(ctx, "ch_4"))
	env.contracts.AssertNumberOfCalls(t, "Update", 1)
}

func TestReleasePayout(t *testing.T) {
	ctx := context.Background()

	t.Run("splits fee and transfers helper amount", func(t *testing.T) {
		env := newTestEnv()
		contract := fundedContract()

		env.contracts.On("GetByID", ctx, contract.ID).Return(contract, nil)
		env.accounts.On("AccountID", ctx, contract.HelperID).Return("acct_9", nil)
		env.gateway.On("RetrieveAccountStatus", ctx, "acct_9").
			Return(&domain.AccountStatus{DetailsSubmitted: true, ChargesEnabled: true, PayoutsEnabled: true}, nil)
		env.contracts.On("ClaimPayout", ctx, contract.ID, mock.Anything).Return(nil)
		env.gateway.On("CreateTransfer", ctx, mock.MatchedBy(func(req domain.TransferRequest) bool {
			// 5% of 90: fee 4.50, helper 85.50
			return req.Amount.Equal(decimal.RequireFromString("85.50")) &&
				req.DestinationAccount == "acct_9" &&
				req.IdempotencyKey == contract.ID.String()+":payout" &&
				req.Metadata["platform_fee"] == "4.5"
		})).Return(&domain.TransferResult{TransferID: "tr_1"}, nil)
		env.contracts.On("SetPayout", ctx, contract.ID, "tr_1").Return(nil)
		env.payments.On("Create", ctx, mock.MatchedBy(func(p *domain.Payment) bool {
			return p.Type == domain.PaymentTypePayout &&
				p.Amount.Equal(decimal.RequireFromString("85.50")) &&
				p.ProcessorRef == "tr_1"
		})).Return(nil)
		env.notifier.On("Notify", ctx, contract.HelperID, "payout.released", mock.Anything).Return(nil)

		entry, err := env.service.ReleasePayout(ctx, contract.ID)
		require.NoError(t, err)
		assert.True(t, entry.Amount.Equal(decimal.RequireFromString("85.50")))
		env.gateway.AssertExpectations(t)
	})

	t.Run("already released is a conflict", func(t *testing.T) {
		env := newTestEnv()
		contract := fundedContract()
		payoutID := "tr_done"
		contract.PayoutID = &payoutID

		env.contracts.On("GetByID", ctx, contract.ID).Return(contract, nil)

		_, err := env.service.ReleasePayout(ctx, contract.ID)
		assert.ErrorIs(t, err, domain.ErrConflict)
		env.gateway.AssertNotCalled(t, "CreateTransfer", mock.Anything, mock.Anything)
	})

	t.Run("losing the claim race stops before the transfer", func(t *testing.T) {
		env := newTestEnv()
		contract := fundedContract()

		env.contracts.On("GetByID", ctx, contract.ID).Return(contract, nil)
		env.accounts.On("AccountID", ctx, contract.HelperID).Return("acct_9", nil)
		env.gateway.On("RetrieveAccountStatus", ctx, "acct_9").
			Return(&domain.AccountStatus{PayoutsEnabled: true}, nil)
		env.contracts.On("ClaimPayout", ctx, contract.ID, mock.Anything).Return(domain.ErrConflict)

		_, err := env.service.ReleasePayout(ctx, contract.ID)
		assert.ErrorIs(t, err, domain.ErrConflict)
		env.gateway.AssertNotCalled(t, "CreateTransfer", mock.Anything, mock.Anything)
	})

	t.Run("transfer failure releases the claim", func(t *testing.T) {
		env := newTestEnv()
		contract := fundedContract()

		env.contracts.On("GetByID", ctx, contract.ID).Return(contract, nil)
		env.accounts.On("AccountID", ctx, contract.HelperID).Return("acct_9", nil)
		env.gateway.On("RetrieveAccountStatus", ctx, "acct_9").
			Return(&domain.AccountStatus{PayoutsEnabled: true}, nil)
		env.contracts.On("ClaimPayout", ctx, contract.ID, mock.Anything).Return(nil)
		env.gateway.On("CreateTransfer", ctx, mock.Anything).Return(nil, domain.ErrExternalService)
		env.contracts.On("ReleaseClaim", ctx, contract.ID).Return(nil)

		_, err := env.service.ReleasePayout(ctx, contract.ID)
		assert.ErrorIs(t, err, domain.ErrExternalService)
		env.contracts.AssertCalled(t, "ReleaseClaim", ctx, contract.ID)
		env.contracts.AssertNotCalled(t, "SetPayout", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unfunded escrow is a conflict", func(t *testing.T) {
		env := newTestEnv()
		contract := pendingContract()
		env.contracts.On("GetByID", ctx, contract.ID).Return(contract, nil)

		_, err := env.service.ReleasePayout(ctx, contract.ID)
		assert.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("missing payout account is a conflict", func(t *testing.T) {
		env := newTestEnv()
		contract := fundedContract()
		env.contracts.On("GetByID", ctx, contract.ID).Return(contract, nil)
		env.accounts.On("AccountID", ctx, contract.HelperID).Return("", domain.ErrNotFound)

		_, err := env.service.ReleasePayout(ctx, contract.ID)
		assert.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("payout-disabled account is a conflict", func(t *testing.T) {
		env := newTestEnv()
		contract := fundedContract()
		env.contracts.On("GetByID", ctx, contract.ID).Return(contract, nil)
		env.accounts.On("AccountID", ctx, contract.HelperID).Return("acct_9", nil)
		env.gateway.On("RetrieveAccountStatus", ctx, "acct_9").
			Return(&domain.AccountStatus{DetailsSubmitted: true, PayoutsEnabled: false}, nil)

		_, err := env.service.ReleasePayout(ctx, contract.ID)
		assert.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("locked contract is a conflict", func(t *testing.T) {
		env := newTestEnv()
		contract := fundedContract()
		contract.Locked = true
		env.contracts.On("GetByID", ctx, contract.ID).Return(contract, nil)

		_, err := env.service.ReleasePayout(ctx, contract.ID)
		assert.ErrorIs(t, err, domain.ErrConflict)
	})
}

func TestRefundPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("nil amount refunds in full", func(t *testing.T) {
		env := newTestEnv()
		contract := fundedContract()

		env.contracts.On("GetByID", ctx, contract.ID).Return(contract, nil)
		env.gateway.On("CreateRefund", ctx, mock.MatchedBy(func(req domain.RefundRequest) bool {
			return req.ChargeID == "ch_100" && req.Amount.Equal(decimal.NewFromInt(90))
		})).Return(&domain.RefundResult{RefundID: "re_1"}, nil)
		env.contracts.On("Update", ctx, mock.MatchedBy(func(c *domain.Contract) bool {
			return c.PaymentStatus == domain.PaymentStatusRefunded && c.RefundID != nil
		})).Return(nil)
		env.payments.On("Create", ctx, mock.MatchedBy(func(p *domain.Payment) bool {
			return p.Type == domain.PaymentTypeRefund && p.Amount.Equal(decimal.NewFromInt(90))
		})).Return(nil)
		env.notifier.On("Notify", ctx, mock.Anything, "payment.refunded", mock.Anything).Return(nil).Twice()

		entry, err := env.service.RefundPayment(ctx, contract.ID, nil, "task never happened")
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentTypeRefund, entry.Type)
		env.notifier.AssertNumberOfCalls(t, "Notify", 2)
	})

	t.Run("partial refund keeps charge row and sets partially refunded", func(t *testing.T) {
		env := newTestEnv()
		contract := fundedContract()
		partial := decimal.NewFromInt(30)

		env.contracts.On("GetByID", ctx, contract.ID).Return(contract, nil)
		env.gateway.On("CreateRefund", ctx, mock.MatchedBy(func(req domain.RefundRequest) bool {
			return req.Amount.Equal(partial)
		})).Return(&domain.RefundResult{RefundID: "re_2"}, nil)
		env.contracts.On("Update", ctx, mock.MatchedBy(func(c *domain.Contract) bool {
			return c.PaymentStatus == domain.PaymentStatusPartiallyRefunded
		})).Return(nil)
		env.payments.On("Create", ctx, mock.MatchedBy(func(p *domain.Payment) bool {
			return p.Type == domain.PaymentTypeRefund && p.Amount.Equal(partial)
		})).Return(nil)
		env.notifier.On("Notify", ctx, mock.Anything, "payment.refunded", mock.Anything).Return(nil)

		_, err := env.service.RefundPayment(ctx, contract.ID, &partial, "partial dispute settlement")
		require.NoError(t, err)
		// The original CHARGE entry is never mutated
		env.payments.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("refund above agreed amount fails validation", func(t *testing.T) {
		env := newTestEnv()
		contract := fundedContract()
		tooMuch := decimal.NewFromInt(100)
		env.contracts.On("GetByID", ctx, contract.ID).Return(contract, nil)

		_, err := env.service.RefundPayment(ctx, contract.ID, &tooMuch, "")
		var verr *domain.ValidationError
		assert.ErrorAs(t, err, &verr)
		env.gateway.AssertNotCalled(t, "CreateRefund", mock.Anything, mock.Anything)
	})

	t.Run("unfunded contract cannot be refunded", func(t *testing.T) {
		env := newTestEnv()
		contract := pendingContract()
		env.contracts.On("GetByID", ctx, contract.ID).Return(contract, nil)

		_, err := env.service.RefundPayment(ctx, contract.ID, nil, "")
		assert.ErrorIs(t, err, domain.ErrConflict)
	})
}

func TestHandleWebhook(t *testing.T) {
	ctx := context.Background()

	t.Run("transfer.created reconciles once", func(t *testing.T) {
		env := newTestEnv()
		entry := &domain.Payment{ID: uuid.New(), Status: domain.EntryStatusProcessing, ProcessorRef: "tr_5"}

		env.payments.On("GetByProcessorRef", ctx, "tr_5").Return(entry, nil).Once()
		env.payments.On("UpdateStatus", ctx, entry.ID, domain.EntryStatusCompleted).Return(nil).Once()

		err := env.service.HandleWebhook(ctx, WebhookEvent{Type: EventTransferCreated, ProcessorRef: "tr_5"})
		require.NoError(t, err)

		// Second delivery finds the entry completed and does nothing
		completed := &domain.Payment{ID: entry.ID, Status: domain.EntryStatusCompleted, ProcessorRef: "tr_5"}
		env.payments.On("GetByProcessorRef", ctx, "tr_5").Return(completed, nil).Once()

		err = env.service.HandleWebhook(ctx, WebhookEvent{Type: EventTransferCreated, ProcessorRef: "tr_5"})
		require.NoError(t, err)
		env.payments.AssertNumberOfCalls(t, "UpdateStatus", 1)
	})

	t.Run("unknown type is acknowledged", func(t *testing.T) {
		env := newTestEnv()
		err := env.service.HandleWebhook(ctx, WebhookEvent{Type: "account.updated", ProcessorRef: "acct_1"})
		assert.NoError(t, err)
	})

	t.Run("empty reference fails validation", func(t *testing.T) {
		env := newTestEnv()
		err := env.service.HandleWebhook(ctx, WebhookEvent{Type: EventPaymentSucceeded})
		var verr *domain.ValidationError
		assert.ErrorAs(t, err, &verr)
	})

	t.Run("unrecorded reference is logged not failed", func(t *testing.T) {
		env := newTestEnv()
		env.payments.On("GetByProcessorRef", ctx, "re_404").Return(nil, domain.ErrNotFound)

		err := env.service.HandleWebhook(ctx, WebhookEvent{Type: EventRefundCreated, ProcessorRef: "re_404"})
		assert.NoError(t, err)
	})
}
