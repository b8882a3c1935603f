package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/orderhub-payment-ledger/internal/domain/shared"
)

// MockBaseProcessingService mocks the ProcessingService interface
type MockBaseProcessingService struct {
	mock.Mock
}

func (m *MockBaseProcessingService) ProcessEvent(ctx context.Context, event *shared.WebhookEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func TestWorkerPoolProcessingService_ProcessEvent(t *testing.T) {
	logger := slog.Default()

	event := &shared.WebhookEvent{
		EventID:  uuid.New(),
		Type:     shared.EventTypePayment,
		OrderIDs: []uuid.UUID{uuid.New()},
		Outcome:  shared.OutcomeSuccess,
		Payment: shared.PaymentData{
			GatewayTransactionID: "ch_1a2b3c",
			Amount:               decimal.RequireFromString("100.00"),
			Currency:             "USD",
			PaymentMethod:        shared.GatewayStripe,
		},
		CorrelationID: "corr1",
		Attempt:       1,
	}

	tests := []struct {
		name          string
		setupMocks    func(base *MockBaseProcessingService)
		expectedError error
	}{
		{
			name: "successful processing",
			setupMocks: func(base *MockBaseProcessingService) {
				base.On("ProcessEvent", mock.Anything, mock.MatchedBy(func(e *shared.WebhookEvent) bool {
					return e.EventID == event.EventID
				})).Return(nil).Once()
			},
			expectedError: nil,
		},
		{
			name: "processing error",
			setupMocks: func(base *MockBaseProcessingService) {
				base.On("ProcessEvent", mock.Anything, mock.Anything).Return(errors.New("processing error")).Once()
			},
			expectedError: errors.New("processing error"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockBaseService := &MockBaseProcessingService{}

			workerPoolService, err := NewWorkerPoolProcessingService(
				mockBaseService,
				WorkerPoolConfig{
					Size: 2,
				},
				logger,
			)
			assert.NoError(t, err)
			defer workerPoolService.Shutdown()

			tt.setupMocks(mockBaseService)
			ctx := context.Background()

			err = workerPoolService.ProcessEvent(ctx, event)

			if tt.expectedError != nil {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedError.Error())
			} else {
				assert.NoError(t, err)
			}

			mockBaseService.AssertExpectations(t)
		})
	}
}

func TestWorkerPoolProcessingService_Concurrency(t *testing.T) {
	mockBaseService := &MockBaseProcessingService{}
	logger := slog.Default()

	workerPoolService, err := NewWorkerPoolProcessingService(
		mockBaseService,
		WorkerPoolConfig{
			Size: 5,
		},
		logger,
	)
	assert.NoError(t, err)
	defer workerPoolService.Shutdown()

	var mu sync.Mutex
	counter := 0

	mockBaseService.On("ProcessEvent", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		// Simulate some work
		time.Sleep(10 * time.Millisecond)

		mu.Lock()
		counter++
		mu.Unlock()
	}).Return(nil)

	numEvents := 10
	var wg sync.WaitGroup
	wg.Add(numEvents)

	for i := 0; i < numEvents; i++ {
		go func() {
			defer wg.Done()

			event := &shared.WebhookEvent{
				EventID:  uuid.New(),
				Type:     shared.EventTypePayment,
				OrderIDs: []uuid.UUID{uuid.New()},
				Outcome:  shared.OutcomeSuccess,
				Payment: shared.PaymentData{
					GatewayTransactionID: uuid.New().String(),
					Amount:               decimal.RequireFromString("10.00"),
					Currency:             "USD",
					PaymentMethod:        shared.GatewayStripe,
				},
			}

			ctx := context.Background()
			err := workerPoolService.ProcessEvent(ctx, event)
			assert.NoError(t, err)
		}()
	}

	wg.Wait()

	assert.Equal(t, numEvents, counter)

	assert.True(t, workerPoolService.Running() > 0)
	assert.Equal(t, 5, workerPoolService.Capacity())
}
