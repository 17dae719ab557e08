package paygate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gigswap/gigswap-backend/internal/domain"
)

func newTestClient(serverURL string) *Client {
	return NewClient(serverURL, "sk_test_123", 2*time.Second, 2, 100, zap.NewNop())
}

func TestCreateChargeSendsAuthAndIdempotencyKey(t *testing.T) {
	var gotAuth, gotKey string
	var gotBody chargePayload

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotKey = r.Header.Get("Idempotency-Key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(chargeResponse{ID: "ch_123", ClientHandle: "ch_123_secret"})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	result, err := client.CreateCharge(context.Background(), domain.ChargeRequest{
		Amount:         decimal.NewFromFloat(90),
		Currency:       "usd",
		IdempotencyKey: "contract-1:charge",
		Metadata:       map[string]string{"task_id": "t1"},
	})

	require.NoError(t, err)
	assert.Equal(t, "ch_123", result.ChargeID)
	assert.Equal(t, "ch_123_secret", result.ClientHandle)
	assert.Equal(t, "Bearer sk_test_123", gotAuth)
	assert.Equal(t, "contract-1:charge", gotKey)
	assert.Equal(t, "90.00", gotBody.Amount)
	assert.Equal(t, "usd", gotBody.Currency)
}

func TestServerErrorIsRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(transferResponse{ID: "tr_456"})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	result, err := client.CreateTransfer(context.Background(), domain.TransferRequest{
		DestinationAccount: "acct_1",
		Amount:             decimal.NewFromFloat(85.50),
		Currency:           "usd",
		IdempotencyKey:     "contract-1:payout",
	})

	require.NoError(t, err)
	assert.Equal(t, "tr_456", result.TransferID)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusPaymentRequired)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.CreateRefund(context.Background(), domain.RefundRequest{
		ChargeID:       "ch_123",
		Amount:         decimal.NewFromFloat(10),
		IdempotencyKey: "contract-1:refund-10",
	})

	assert.ErrorIs(t, err, domain.ErrExternalService)
	assert.Equal(t, int32(1), calls.Load())
}

func TestUnreachableProcessorMapsToExternalService(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", "sk_test_123", 100*time.Millisecond, 0, 100, zap.NewNop())

	_, err := client.RetrieveAccountStatus(context.Background(), "acct_1")

	assert.ErrorIs(t, err, domain.ErrExternalService)
}

func TestRetrieveAccountStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/accounts/acct_1", r.URL.Path)
		json.NewEncoder(w).Encode(accountResponse{DetailsSubmitted: true, ChargesEnabled: true, PayoutsEnabled: true})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	status, err := client.RetrieveAccountStatus(context.Background(), "acct_1")

	require.NoError(t, err)
	assert.True(t, status.PayoutsEnabled)
}

func TestFakeIdempotency(t *testing.T) {
	fake := NewFake()
	req := domain.ChargeRequest{Amount: decimal.NewFromFloat(90), Currency: "usd", IdempotencyKey: "k1"}

	first, err := fake.CreateCharge(context.Background(), req)
	require.NoError(t, err)
	second, err := fake.CreateCharge(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.ChargeID, second.ChargeID)

	other, err := fake.CreateCharge(context.Background(), domain.ChargeRequest{Amount: decimal.NewFromFloat(90), Currency: "usd", IdempotencyKey: "k2"})
	require.NoError(t, err)
	assert.NotEqual(t, first.ChargeID, other.ChargeID)
}

func TestFakeAccountStatusDefaults(t *testing.T) {
	fake := NewFake()

	status, err := fake.RetrieveAccountStatus(context.Background(), "acct_never_seen")
	require.NoError(t, err)
	assert.True(t, status.PayoutsEnabled)

	fake.RegisterAccount("acct_incomplete", domain.AccountStatus{DetailsSubmitted: true})
	status, err = fake.RetrieveAccountStatus(context.Background(), "acct_incomplete")
	require.NoError(t, err)
	assert.False(t, status.PayoutsEnabled)
}

func TestFakeFailNext(t *testing.T) {
	fake := NewFake()
	fake.FailNext = true

	_, err := fake.CreateTransfer(context.Background(), domain.TransferRequest{IdempotencyKey: "k1"})
	assert.ErrorIs(t, err, domain.ErrExternalService)

	_, err = fake.CreateTransfer(context.Background(), domain.TransferRequest{IdempotencyKey: "k1"})
	assert.NoError(t, err)
}
