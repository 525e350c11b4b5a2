package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Molemo21/ConnectSA-k9-sub017/internal/domain/payout"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/domain/shared"
)

type MockPayoutReader struct {
	mock.Mock
}

func (m *MockPayoutReader) GetByID(ctx context.Context, id uuid.UUID) (*payout.Payout, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payout.Payout), args.Error(1)
}

func (m *MockPayoutReader) GetByPaymentID(ctx context.Context, paymentID uuid.UUID) (*payout.Payout, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payout.Payout), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, key string, value interface{}) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *MockPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

func failedPayout() *payout.Payout {
	return &payout.Payout{
		ID:        uuid.New(),
		PaymentID: uuid.New(),
		Amount:    decimal.RequireFromString("90.00"),
		Status:    payout.StatusFailed,
		Attempts:  3,
		CreatedAt: time.Now(),
	}
}

func TestPayoutHandler_GetByID(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	t.Run("Success", func(t *testing.T) {
		mockReader := new(MockPayoutReader)
		mockPublisher := new(MockPublisher)
		handler := NewPayoutHandler(logger, mockReader, mockPublisher)

		p := failedPayout()
		mockReader.On("GetByID", mock.Anything, p.ID).Return(p, nil)

		router := setupTestRouter()
		router.GET("/payouts/:id", handler.GetByID)

		req, _ := http.NewRequest(http.MethodGet, "/payouts/"+p.ID.String(), nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		body := decodeData[PayoutResponse](t, rr.Body.Bytes())
		assert.Equal(t, p.ID.String(), body.ID)
		assert.Equal(t, "FAILED", body.Status)
		assert.Equal(t, 3, body.Attempts)
	})

	t.Run("NotFound", func(t *testing.T) {
		mockReader := new(MockPayoutReader)
		mockPublisher := new(MockPublisher)
		handler := NewPayoutHandler(logger, mockReader, mockPublisher)

		id := uuid.New()
		mockReader.On("GetByID", mock.Anything, id).
			Return(nil, payout.ErrPayoutNotFound{PayoutID: id})

		router := setupTestRouter()
		router.GET("/payouts/:id", handler.GetByID)

		req, _ := http.NewRequest(http.MethodGet, "/payouts/"+id.String(), nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestPayoutHandler_Retry(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	t.Run("AcceptedAndPublished", func(t *testing.T) {
		mockReader := new(MockPayoutReader)
		mockPublisher := new(MockPublisher)
		handler := NewPayoutHandler(logger, mockReader, mockPublisher)

		p := failedPayout()
		mockReader.On("GetByID", mock.Anything, p.ID).Return(p, nil)
		mockPublisher.On("Publish", mock.Anything, p.ID.String(), mock.MatchedBy(func(v interface{}) bool {
			event, ok := v.(*shared.SettlementEvent)
			return ok && event.Type == shared.EventPayoutRetryRequested && event.PayoutID == p.ID
		})).Return(nil)

		router := setupTestRouter()
		router.POST("/payouts/:id/retry", handler.Retry)

		req, _ := http.NewRequest(http.MethodPost, "/payouts/"+p.ID.String()+"/retry", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusAccepted, rr.Code)
		body := decodeData[RetryPayoutResponse](t, rr.Body.Bytes())
		assert.Equal(t, p.ID.String(), body.PayoutID)
		assert.Equal(t, "RETRY_REQUESTED", body.Status)
		mockPublisher.AssertExpectations(t)
	})

	t.Run("NotFailed", func(t *testing.T) {
		mockReader := new(MockPayoutReader)
		mockPublisher := new(MockPublisher)
		handler := NewPayoutHandler(logger, mockReader, mockPublisher)

		p := failedPayout()
		p.Status = payout.StatusCompleted
		mockReader.On("GetByID", mock.Anything, p.ID).Return(p, nil)

		router := setupTestRouter()
		router.POST("/payouts/:id/retry", handler.Retry)

		req, _ := http.NewRequest(http.MethodPost, "/payouts/"+p.ID.String()+"/retry", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusConflict, rr.Code)
		mockPublisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("PublishFailure", func(t *testing.T) {
		mockReader := new(MockPayoutReader)
		mockPublisher := new(MockPublisher)
		handler := NewPayoutHandler(logger, mockReader, mockPublisher)

		p := failedPayout()
		mockReader.On("GetByID", mock.Anything, p.ID).Return(p, nil)
		mockPublisher.On("Publish", mock.Anything, p.ID.String(), mock.Anything).
			Return(errors.New("kafka down"))

		router := setupTestRouter()
		router.POST("/payouts/:id/retry", handler.Retry)

		req, _ := http.NewRequest(http.MethodPost, "/payouts/"+p.ID.String()+"/retry", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})

	t.Run("NotFound", func(t *testing.T) {
		mockReader := new(MockPayoutReader)
		mockPublisher := new(MockPublisher)
		handler := NewPayoutHandler(logger, mockReader, mockPublisher)

		id := uuid.New()
		mockReader.On("GetByID", mock.Anything, id).
			Return(nil, payout.ErrPayoutNotFound{PayoutID: id})

		router := setupTestRouter()
		router.POST("/payouts/:id/retry", handler.Retry)

		req, _ := http.NewRequest(http.MethodPost, "/payouts/"+id.String()+"/retry", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestPayoutHandler_GetByPaymentID(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	t.Run("NoPayoutYet", func(t *testing.T) {
		mockReader := new(MockPayoutReader)
		mockPublisher := new(MockPublisher)
		handler := NewPayoutHandler(logger, mockReader, mockPublisher)

		paymentID := uuid.New()
		mockReader.On("GetByPaymentID", mock.Anything, paymentID).Return(nil, nil)

		router := setupTestRouter()
		router.GET("/payments/:id/payout", handler.GetByPaymentID)

		req, _ := http.NewRequest(http.MethodGet, "/payments/"+paymentID.String()+"/payout", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)

		var topLevel Response
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &topLevel))
		require.NotNil(t, topLevel.Error)
		assert.Equal(t, "NOT_FOUND", topLevel.Error.Code)
	})
}
