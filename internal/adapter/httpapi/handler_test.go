package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gigswap/gigswap-backend/internal/domain"
	"github.com/gigswap/gigswap-backend/internal/usecase/bidding"
	"github.com/gigswap/gigswap-backend/internal/usecase/escrow"
	"github.com/gigswap/gigswap-backend/internal/usecase/lifecycle"
)

type lifecycleStub struct {
	createTask       func(ctx context.Context, input lifecycle.CreateTaskInput) (*domain.Task, error)
	confirm          func(ctx context.Context, taskID, posterID uuid.UUID, notes string) (*domain.Task, error)
	autoConfirmBatch func(ctx context.Context, hoursThreshold int) ([]lifecycle.BatchResult, error)
	resolveDispute   func(ctx context.Context, taskID, operatorID uuid.UUID, outcome domain.TaskStatus, reason string) (*domain.Task, error)
}

func (s *lifecycleStub) CreateTask(ctx context.Context, input lifecycle.CreateTaskInput) (*domain.Task, error) {
	return s.createTask(ctx, input)
}

func (s *lifecycleStub) OpenForBidding(ctx context.Context, taskID, posterID uuid.UUID) (*domain.Task, error) {
	return nil, domain.ErrNotFound
}

func (s *lifecycleStub) StartWork(ctx context.Context, taskID, helperID uuid.UUID) (*domain.Task, error) {
	return nil, domain.ErrNotFound
}

func (s *lifecycleStub) CompleteWork(ctx context.Context, taskID, helperID uuid.UUID, notes string) (*domain.Task, error) {
	return nil, domain.ErrNotFound
}

func (s *lifecycleStub) ConfirmCompletion(ctx context.Context, taskID, posterID uuid.UUID, notes string) (*domain.Task, error) {
	return s.confirm(ctx, taskID, posterID, notes)
}

func (s *lifecycleStub) Cancel(ctx context.Context, taskID, userID uuid.UUID, reason string) (*domain.Task, error) {
	return nil, domain.ErrNotFound
}

func (s *lifecycleStub) Dispute(ctx context.Context, taskID, userID uuid.UUID, reason string) (*domain.Task, error) {
	return nil, domain.ErrNotFound
}

func (s *lifecycleStub) ResolveDispute(ctx context.Context, taskID, operatorID uuid.UUID, outcome domain.TaskStatus, reason string) (*domain.Task, error) {
	return s.resolveDispute(ctx, taskID, operatorID, outcome, reason)
}

func (s *lifecycleStub) AutoConfirmBatch(ctx context.Context, hoursThreshold int) ([]lifecycle.BatchResult, error) {
	return s.autoConfirmBatch(ctx, hoursThreshold)
}

type biddingStub struct {
	placeBid func(ctx context.Context, input bidding.PlaceBidInput) (*domain.Bid, error)
	listBids func(ctx context.Context, viewerID, taskID uuid.UUID, sort domain.BidSort) ([]*domain.Bid, error)
}

func (s *biddingStub) PlaceBid(ctx context.Context, input bidding.PlaceBidInput) (*domain.Bid, error) {
	return s.placeBid(ctx, input)
}

func (s *biddingStub) WithdrawBid(ctx context.Context, helperID, bidID uuid.UUID) (*domain.Bid, error) {
	return nil, domain.ErrNotFound
}

func (s *biddingStub) ListBids(ctx context.Context, viewerID, taskID uuid.UUID, sort domain.BidSort) ([]*domain.Bid, error) {
	return s.listBids(ctx, viewerID, taskID, sort)
}

type formationStub struct {
	acceptBid func(ctx context.Context, posterID, bidID uuid.UUID) (*domain.Contract, error)
}

func (s *formationStub) AcceptBid(ctx context.Context, posterID, bidID uuid.UUID) (*domain.Contract, error) {
	return s.acceptBid(ctx, posterID, bidID)
}

type escrowStub struct {
	handleWebhook func(ctx context.Context, event escrow.WebhookEvent) error
	releasePayout func(ctx context.Context, contractID uuid.UUID) (*domain.Payment, error)
}

func (s *escrowStub) RetryCharge(ctx context.Context, contractID uuid.UUID) (*domain.ChargeResult, error) {
	return nil, domain.ErrNotFound
}

func (s *escrowStub) ReleasePayout(ctx context.Context, contractID uuid.UUID) (*domain.Payment, error) {
	return s.releasePayout(ctx, contractID)
}

func (s *escrowStub) HandleWebhook(ctx context.Context, event escrow.WebhookEvent) error {
	return s.handleWebhook(ctx, event)
}

type moderationStub struct{}

func (s *moderationStub) LockTask(ctx context.Context, moderatorID, taskID uuid.UUID, reason string) (*domain.Task, error) {
	return &domain.Task{ID: taskID, Locked: true}, nil
}

func (s *moderationStub) UnlockTask(ctx context.Context, moderatorID, taskID uuid.UUID, reason string) (*domain.Task, error) {
	return &domain.Task{ID: taskID}, nil
}

func (s *moderationStub) LockContract(ctx context.Context, moderatorID, contractID uuid.UUID, reason string) (*domain.Contract, error) {
	return &domain.Contract{ID: contractID, Locked: true}, nil
}

func (s *moderationStub) UnlockContract(ctx context.Context, moderatorID, contractID uuid.UUID, reason string) (*domain.Contract, error) {
	return &domain.Contract{ID: contractID}, nil
}

func (s *moderationStub) TriggerRefund(ctx context.Context, moderatorID, contractID uuid.UUID, amount *decimal.Decimal, reason string) (*domain.Payment, error) {
	return &domain.Payment{ID: uuid.New(), ContractID: contractID, Type: domain.PaymentTypeRefund}, nil
}

type taskRepoStub struct {
	getByID func(ctx context.Context, id uuid.UUID) (*domain.Task, error)
}

func (s *taskRepoStub) Create(ctx context.Context, task *domain.Task) error { return nil }

func (s *taskRepoStub) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	return s.getByID(ctx, id)
}

func (s *taskRepoStub) Update(ctx context.Context, task *domain.Task) error { return nil }

func (s *taskRepoStub) ListStaleAwaitingConfirmation(ctx context.Context, updatedBefore time.Time) ([]*domain.Task, error) {
	return nil, nil
}

type contractRepoStub struct {
	getByID func(ctx context.Context, id uuid.UUID) (*domain.Contract, error)
}

func (s *contractRepoStub) GetByID(ctx context.Context, id uuid.UUID) (*domain.Contract, error) {
	return s.getByID(ctx, id)
}

func (s *contractRepoStub) GetByTaskID(ctx context.Context, taskID uuid.UUID) (*domain.Contract, error) {
	return nil, domain.ErrNotFound
}

func (s *contractRepoStub) GetByChargeID(ctx context.Context, chargeID string) (*domain.Contract, error) {
	return nil, domain.ErrNotFound
}

func (s *contractRepoStub) Update(ctx context.Context, contract *domain.Contract) error { return nil }

func (s *contractRepoStub) ClaimPayout(ctx context.Context, contractID uuid.UUID, at time.Time) error {
	return nil
}

func (s *contractRepoStub) ReleaseClaim(ctx context.Context, contractID uuid.UUID) error { return nil }

func (s *contractRepoStub) SetPayout(ctx context.Context, contractID uuid.UUID, payoutID string) error {
	return nil
}

func (s *contractRepoStub) ListDueForRelease(ctx context.Context, now time.Time) ([]*domain.Contract, error) {
	return nil, nil
}

type paymentRepoStub struct{}

func (s *paymentRepoStub) Create(ctx context.Context, payment *domain.Payment) error { return nil }

func (s *paymentRepoStub) GetByProcessorRef(ctx context.Context, ref string) (*domain.Payment, error) {
	return nil, domain.ErrNotFound
}

func (s *paymentRepoStub) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.EntryStatus) error {
	return nil
}

func (s *paymentRepoStub) ListByContract(ctx context.Context, contractID uuid.UUID) ([]*domain.Payment, error) {
	return nil, nil
}

type timelineRepoStub struct{}

func (s *timelineRepoStub) Append(ctx context.Context, event *domain.TimelineEvent) error { return nil }

func (s *timelineRepoStub) ListByTask(ctx context.Context, taskID uuid.UUID) ([]*domain.TimelineEvent, error) {
	return nil, nil
}

type testRouter struct {
	engine    *gin.Engine
	lifecycle *lifecycleStub
	bidding   *biddingStub
	formation *formationStub
	escrow    *escrowStub
	tasks     *taskRepoStub
	contracts *contractRepoStub
}

const testOpsToken = "ops-secret"

func newTestRouter() *testRouter {
	gin.SetMode(gin.TestMode)
	tr := &testRouter{
		engine: gin.New(),
		lifecycle: &lifecycleStub{
			createTask: func(ctx context.Context, input lifecycle.CreateTaskInput) (*domain.Task, error) {
				return nil, domain.ErrNotFound
			},
		},
		bidding:   &biddingStub{},
		formation: &formationStub{},
		escrow:    &escrowStub{},
		tasks: &taskRepoStub{
			getByID: func(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
				return nil, fmt.Errorf("task %s: %w", id, domain.ErrNotFound)
			},
		},
		contracts: &contractRepoStub{
			getByID: func(ctx context.Context, id uuid.UUID) (*domain.Contract, error) {
				return nil, fmt.Errorf("contract %s: %w", id, domain.ErrNotFound)
			},
		},
	}
	SetupHandlers(tr.engine, tr.lifecycle, tr.bidding, tr.formation, tr.escrow, &moderationStub{},
		tr.tasks, tr.contracts, &paymentRepoStub{}, &timelineRepoStub{}, testOpsToken, zap.NewNop())
	return tr
}

func doJSON(t *testing.T, engine *gin.Engine, method, path string, userID *uuid.UUID, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != nil {
		req.Header.Set("X-User-ID", userID.String())
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestCreateTask(t *testing.T) {
	tr := newTestRouter()
	posterID := uuid.New()
	tr.lifecycle.createTask = func(ctx context.Context, input lifecycle.CreateTaskInput) (*domain.Task, error) {
		assert.Equal(t, posterID, input.PosterID)
		assert.True(t, input.Budget.Equal(decimal.NewFromFloat(120.50)))
		return &domain.Task{
			ID:       uuid.New(),
			PosterID: input.PosterID,
			Title:    input.Title,
			Category: input.Category,
			Budget:   input.Budget,
			Status:   domain.TaskStatusOpen,
		}, nil
	}

	w := doJSON(t, tr.engine, http.MethodPost, "/v1/tasks", &posterID, "", gin.H{
		"title": "Mount a TV", "category": "handyman", "budget": "120.50",
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp taskResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "OPEN", resp.Status)
	assert.Equal(t, "120.50", resp.Budget)
}

func TestMissingUserHeaderIsUnauthorized(t *testing.T) {
	tr := newTestRouter()

	w := doJSON(t, tr.engine, http.MethodPost, "/v1/tasks", nil, "", gin.H{
		"title": "x", "category": "y", "budget": "10",
	})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateTaskRejectsBadBudget(t *testing.T) {
	tr := newTestRouter()
	posterID := uuid.New()

	w := doJSON(t, tr.engine, http.MethodPost, "/v1/tasks", &posterID, "", gin.H{
		"title": "x", "category": "y", "budget": "-5",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "amount")
}

func TestPlaceBid(t *testing.T) {
	tr := newTestRouter()
	helperID := uuid.New()
	taskID := uuid.New()
	tr.bidding.placeBid = func(ctx context.Context, input bidding.PlaceBidInput) (*domain.Bid, error) {
		assert.Equal(t, helperID, input.HelperID)
		assert.Equal(t, taskID, input.TaskID)
		return &domain.Bid{
			ID:       uuid.New(),
			TaskID:   input.TaskID,
			HelperID: input.HelperID,
			Amount:   input.Amount,
			Status:   domain.BidStatusPending,
		}, nil
	}

	w := doJSON(t, tr.engine, http.MethodPost, "/v1/tasks/"+taskID.String()+"/bids", &helperID, "", gin.H{
		"amount": "75.00", "note": "can do tomorrow",
	})

	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestListBidsPassesSortParams(t *testing.T) {
	tr := newTestRouter()
	viewerID := uuid.New()
	taskID := uuid.New()
	tr.bidding.listBids = func(ctx context.Context, gotViewer, gotTask uuid.UUID, sort domain.BidSort) ([]*domain.Bid, error) {
		assert.Equal(t, viewerID, gotViewer)
		assert.Equal(t, domain.BidSortByAmount, sort.Field)
		assert.True(t, sort.Descending)
		return []*domain.Bid{}, nil
	}

	w := doJSON(t, tr.engine, http.MethodGet, "/v1/tasks/"+taskID.String()+"/bids?sort=amount&order=desc", &viewerID, "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAcceptBidConflictMapsTo409(t *testing.T) {
	tr := newTestRouter()
	posterID := uuid.New()
	tr.formation.acceptBid = func(ctx context.Context, gotPoster, bidID uuid.UUID) (*domain.Contract, error) {
		return nil, fmt.Errorf("task already has a contract: %w", domain.ErrConflict)
	}

	w := doJSON(t, tr.engine, http.MethodPost, "/v1/bids/"+uuid.New().String()+"/accept", &posterID, "", nil)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestReleasePayoutForbiddenForNonPoster(t *testing.T) {
	tr := newTestRouter()
	stranger := uuid.New()
	contract := &domain.Contract{ID: uuid.New(), PosterID: uuid.New(), HelperID: uuid.New()}
	tr.contracts.getByID = func(ctx context.Context, id uuid.UUID) (*domain.Contract, error) {
		return contract, nil
	}

	w := doJSON(t, tr.engine, http.MethodPost, "/v1/contracts/"+contract.ID.String()+"/release", &stranger, "", nil)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestReleasePayoutExternalFailureMapsTo502(t *testing.T) {
	tr := newTestRouter()
	contract := &domain.Contract{ID: uuid.New(), PosterID: uuid.New(), HelperID: uuid.New()}
	tr.contracts.getByID = func(ctx context.Context, id uuid.UUID) (*domain.Contract, error) {
		return contract, nil
	}
	tr.escrow.releasePayout = func(ctx context.Context, contractID uuid.UUID) (*domain.Payment, error) {
		return nil, fmt.Errorf("transfer failed: %w", domain.ErrExternalService)
	}

	w := doJSON(t, tr.engine, http.MethodPost, "/v1/contracts/"+contract.ID.String()+"/release", &contract.PosterID, "", nil)

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestPaymentWebhook(t *testing.T) {
	tr := newTestRouter()
	var gotEvent escrow.WebhookEvent
	tr.escrow.handleWebhook = func(ctx context.Context, event escrow.WebhookEvent) error {
		gotEvent = event
		return nil
	}

	// No X-User-ID header; the processor is not a user
	w := doJSON(t, tr.engine, http.MethodPost, "/webhooks/payments", nil, "", gin.H{
		"type": "payment.succeeded", "data": gin.H{"id": "ch_123"},
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "payment.succeeded", gotEvent.Type)
	assert.Equal(t, "ch_123", gotEvent.ProcessorRef)
}

func TestOpsRequiresToken(t *testing.T) {
	tr := newTestRouter()
	operatorID := uuid.New()

	w := doJSON(t, tr.engine, http.MethodPost, "/ops/auto-confirm", &operatorID, "wrong-token", nil)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAutoConfirmBatch(t *testing.T) {
	tr := newTestRouter()
	operatorID := uuid.New()
	okTask := uuid.New()
	failedTask := uuid.New()
	tr.lifecycle.autoConfirmBatch = func(ctx context.Context, hoursThreshold int) ([]lifecycle.BatchResult, error) {
		assert.Equal(t, 24, hoursThreshold)
		return []lifecycle.BatchResult{
			{TaskID: okTask, OK: true},
			{TaskID: failedTask, OK: false, Error: "payout claim lost: conflict"},
		}, nil
	}

	w := doJSON(t, tr.engine, http.MethodPost, "/ops/auto-confirm?hours=24", &operatorID, testOpsToken, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), okTask.String())
	assert.Contains(t, w.Body.String(), "payout claim lost")
}

func TestResolveDispute(t *testing.T) {
	tr := newTestRouter()
	operatorID := uuid.New()
	taskID := uuid.New()
	tr.lifecycle.resolveDispute = func(ctx context.Context, gotTask, gotOperator uuid.UUID, outcome domain.TaskStatus, reason string) (*domain.Task, error) {
		assert.Equal(t, domain.TaskStatusCompleted, outcome)
		return &domain.Task{ID: gotTask, Status: outcome}, nil
	}

	w := doJSON(t, tr.engine, http.MethodPost, "/ops/tasks/"+taskID.String()+"/resolve", &operatorID, testOpsToken, gin.H{
		"outcome": "COMPLETED", "reason": "work verified from photos",
	})

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealthz(t *testing.T) {
	tr := newTestRouter()

	w := doJSON(t, tr.engine, http.MethodGet, "/healthz", nil, "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
}
