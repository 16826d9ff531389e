package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"raffler/application"
	"raffler/domain/entities"
	"raffler/domain/interfaces"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type MockEngine struct {
	mock.Mock
}

func (m *MockEngine) raffle(args mock.Arguments) (*entities.Raffle, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Raffle), args.Error(1)
}

func (m *MockEngine) record(args mock.Arguments) (*entities.PayoutRecord, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.PayoutRecord), args.Error(1)
}

func (m *MockEngine) CreateRaffle(ctx context.Context, params interfaces.CreateRaffleParams) (*entities.Raffle, error) {
	return m.raffle(m.Called(ctx, params))
}

func (m *MockEngine) GetRaffle(ctx context.Context, raffleID int64) (*entities.Raffle, error) {
	return m.raffle(m.Called(ctx, raffleID))
}

func (m *MockEngine) Activate(ctx context.Context, raffleID int64) (*entities.Raffle, error) {
	return m.raffle(m.Called(ctx, raffleID))
}

func (m *MockEngine) Pause(ctx context.Context, raffleID int64) (*entities.Raffle, error) {
	return m.raffle(m.Called(ctx, raffleID))
}

func (m *MockEngine) Resume(ctx context.Context, raffleID int64) (*entities.Raffle, error) {
	return m.raffle(m.Called(ctx, raffleID))
}

func (m *MockEngine) EndEntries(ctx context.Context, raffleID int64) (*entities.Raffle, error) {
	return m.raffle(m.Called(ctx, raffleID))
}

func (m *MockEngine) Cancel(ctx context.Context, raffleID int64, reason string) (*entities.Raffle, error) {
	return m.raffle(m.Called(ctx, raffleID, reason))
}

func (m *MockEngine) GetStatusHistory(ctx context.Context, raffleID int64) ([]*entities.RaffleStatusChange, error) {
	args := m.Called(ctx, raffleID)
	return args.Get(0).([]*entities.RaffleStatusChange), args.Error(1)
}

func (m *MockEngine) CreateEntry(ctx context.Context, params interfaces.EntryParams) (*entities.Entry, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Entry), args.Error(1)
}

func (m *MockEngine) GetEntries(ctx context.Context, raffleID int64) ([]*entities.Entry, error) {
	args := m.Called(ctx, raffleID)
	return args.Get(0).([]*entities.Entry), args.Error(1)
}

func (m *MockEngine) InitiateDraw(ctx context.Context, raffleID int64) (*entities.DrawResult, error) {
	args := m.Called(ctx, raffleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.DrawResult), args.Error(1)
}

func (m *MockEngine) AbortDraw(ctx context.Context, raffleID int64, reason string) (*entities.Raffle, error) {
	return m.raffle(m.Called(ctx, raffleID, reason))
}

func (m *MockEngine) GetDrawResult(ctx context.Context, raffleID int64) (*entities.DrawResult, error) {
	args := m.Called(ctx, raffleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.DrawResult), args.Error(1)
}

func (m *MockEngine) AuditDraw(ctx context.Context, raffleID int64) (*interfaces.DrawAudit, error) {
	args := m.Called(ctx, raffleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*interfaces.DrawAudit), args.Error(1)
}

func (m *MockEngine) SendPayout(ctx context.Context, winnerID int64) (*entities.PayoutRecord, error) {
	return m.record(m.Called(ctx, winnerID))
}

func (m *MockEngine) SendAllPayouts(ctx context.Context, raffleID int64) (*application.BatchResult, error) {
	args := m.Called(ctx, raffleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*application.BatchResult), args.Error(1)
}

func (m *MockEngine) RequestRetry(ctx context.Context, request interfaces.RetryRequest) (*entities.PayoutRecord, error) {
	return m.record(m.Called(ctx, request))
}

func (m *MockEngine) GetWinners(ctx context.Context, raffleID int64) ([]*entities.Winner, error) {
	args := m.Called(ctx, raffleID)
	return args.Get(0).([]*entities.Winner), args.Error(1)
}

func (m *MockEngine) GetPayoutHistory(ctx context.Context, winnerID int64) ([]*entities.PayoutRecord, error) {
	args := m.Called(ctx, winnerID)
	return args.Get(0).([]*entities.PayoutRecord), args.Error(1)
}

func newTestServer(engine Engine, health map[string]HealthChecker) *gin.Engine {
	return NewServer(engine, prometheus.NewRegistry(), health).Router()
}

func do(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestServer_ErrorKindMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   string
	}{
		{"not found", entities.NewNotFoundError("raffle", 9), http.StatusNotFound, "not_found"},
		{"not drawable", entities.NewRaffleNotDrawableError(entities.DrawReasonNotEnded), http.StatusConflict, "raffle_not_drawable"},
		{"randomness outage", entities.NewRandomnessUnavailableError(errors.New("rpc down")), http.StatusServiceUnavailable, "randomness_unavailable"},
		{"bad configuration", entities.NewInvalidConfigurationError("no tiers"), http.StatusBadRequest, "invalid_configuration"},
		{"internal", errors.New("connection reset"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			engine := new(MockEngine)
			engine.On("InitiateDraw", mock.Anything, int64(9)).Return(nil, tt.err)

			rec := do(newTestServer(engine, nil), http.MethodPost, "/raffles/9/draw", "")

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantKind, decodeError(t, rec).Error)
		})
	}
}

func TestServer_InvalidID(t *testing.T) {
	t.Parallel()

	engine := new(MockEngine)
	rec := do(newTestServer(engine, nil), http.MethodGet, "/raffles/abc", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	engine.AssertNotCalled(t, "GetRaffle", mock.Anything, mock.Anything)
}

func TestServer_CreateEntry(t *testing.T) {
	t.Parallel()

	engine := new(MockEngine)
	engine.On("CreateEntry", mock.Anything, interfaces.EntryParams{
		RaffleID:       4,
		Wallet:         "DWallet",
		Units:          3,
		AmountPaid:     300,
		TransferTxHash: "abc",
	}).Return(&entities.Entry{ID: 1, RaffleID: 4, Wallet: "DWallet", Units: 3}, nil)

	router := newTestServer(engine, nil)
	rec := do(router, http.MethodPost, "/raffles/4/entries",
		`{"wallet":"DWallet","units":3,"amount_paid":300,"transfer_tx_hash":"abc"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	var entry entities.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entry))
	assert.Equal(t, int64(3), entry.Units)

	rec = do(router, http.MethodPost, "/raffles/4/entries", `{"wallet":"DWallet"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "missing fields are rejected before the engine")
	engine.AssertNumberOfCalls(t, "CreateEntry", 1)
}

func TestServer_CancelWithOptionalReason(t *testing.T) {
	t.Parallel()

	engine := new(MockEngine)
	engine.On("Cancel", mock.Anything, int64(2), "").Return(&entities.Raffle{ID: 2, Status: entities.RaffleStatusCancelled}, nil)
	engine.On("Cancel", mock.Anything, int64(2), "fraud").Return(&entities.Raffle{ID: 2, Status: entities.RaffleStatusCancelled}, nil)

	router := newTestServer(engine, nil)
	assert.Equal(t, http.StatusOK, do(router, http.MethodPost, "/raffles/2/cancel", "").Code)
	assert.Equal(t, http.StatusOK, do(router, http.MethodPost, "/raffles/2/cancel", `{"reason":"fraud"}`).Code)
	engine.AssertExpectations(t)
}

func TestServer_PayoutRoutes(t *testing.T) {
	t.Parallel()

	engine := new(MockEngine)
	txID := "doge-tx"
	engine.On("SendPayout", mock.Anything, int64(5)).Return(&entities.PayoutRecord{ID: 1, WinnerID: 5, Status: entities.PayoutStatusPaid, TransactionID: &txID}, nil).Once()
	engine.On("SendPayout", mock.Anything, int64(5)).Return(nil, entities.NewPayoutAlreadyProcessedError(5)).Once()
	engine.On("RequestRetry", mock.Anything, interfaces.RetryRequest{WinnerID: 6, RequestedBy: "ops", Reason: "unlocked"}).
		Return(&entities.PayoutRecord{ID: 2, WinnerID: 6, Attempt: 2, Status: entities.PayoutStatusPending}, nil)
	engine.On("SendAllPayouts", mock.Anything, int64(3)).Return(&application.BatchResult{RaffleID: 3, Attempted: 2, Paid: 1, Failed: 1}, nil)

	router := newTestServer(engine, nil)

	rec := do(router, http.MethodPost, "/winners/5/payout", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"transaction_id":"doge-tx"`)

	rec = do(router, http.MethodPost, "/winners/5/payout", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "payout_already_processed", decodeError(t, rec).Error)

	rec = do(router, http.MethodPost, "/winners/6/retry", `{"requested_by":"ops","reason":"unlocked"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"attempt":2`)

	rec = do(router, http.MethodPost, "/raffles/3/payouts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var batch application.BatchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &batch))
	assert.Equal(t, 1, batch.Failed)

	engine.AssertExpectations(t)
}

func TestServer_VerifyReturnsAudit(t *testing.T) {
	t.Parallel()

	engine := new(MockEngine)
	engine.On("AuditDraw", mock.Anything, int64(8)).Return(&interfaces.DrawAudit{
		RaffleID: 8,
		Match:    false,
		Mismatches: []interfaces.WinnerMismatch{
			{Position: 1, Field: "wallet", Stored: "A", Computed: "B"},
		},
	}, nil)

	rec := do(newTestServer(engine, nil), http.MethodGet, "/raffles/8/verify", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var audit interfaces.DrawAudit
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &audit))
	assert.False(t, audit.Match)
	require.Len(t, audit.Mismatches, 1)
	assert.Equal(t, "wallet", audit.Mismatches[0].Field)
}

func TestServer_Health(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		health     map[string]HealthChecker
		wantStatus int
	}{
		{
			name:       "all healthy",
			health:     map[string]HealthChecker{"database": func(context.Context) error { return nil }},
			wantStatus: http.StatusOK,
		},
		{
			name: "degraded dependency",
			health: map[string]HealthChecker{
				"database": func(context.Context) error { return nil },
				"chain":    func(context.Context) error { return errors.New("connection refused") },
			},
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := do(newTestServer(new(MockEngine), tt.health), http.MethodGet, "/health", "")
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestServer_MetricsCountRequests(t *testing.T) {
	t.Parallel()

	engine := new(MockEngine)
	engine.On("GetRaffle", mock.Anything, int64(1)).Return(&entities.Raffle{ID: 1}, nil)

	router := newTestServer(engine, nil)
	do(router, http.MethodGet, "/raffles/1", "")

	rec := do(router, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `raffler_http_requests_total{method="GET",route="/raffles/:id",status="200"} 1`)
}
