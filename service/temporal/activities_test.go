package temporal

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ranklabs/txrank/service/db"
	natspkg "github.com/ranklabs/txrank/service/nats"
	"github.com/ranklabs/txrank/service/solana"
)

// Mock Solana Client
type MockSolanaClient struct {
	mock.Mock
}

func (m *MockSolanaClient) GetLatestSlot(ctx context.Context) (uint64, error) {
	args := m.Called(ctx)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockSolanaClient) GetBlockScores(ctx context.Context, slot uint64) ([]*solana.ScoredTransaction, error) {
	args := m.Called(ctx, slot)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*solana.ScoredTransaction), args.Error(1)
}

// Mock Store
type MockStore struct {
	mock.Mock
}

func (m *MockStore) CreateScore(ctx context.Context, params db.CreateScoreParams) (*db.Score, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*db.Score), args.Error(1)
}

func activityTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestActivities_GetLatestSlot(t *testing.T) {
	mockClient := &MockSolanaClient{}
	mockClient.On("GetLatestSlot", mock.Anything).Return(uint64(245_000_123), nil)

	activities := NewActivities(&MockStore{}, mockClient, natspkg.NewMockPublisher(), nil, activityTestLogger())

	result, err := activities.GetLatestSlot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(245_000_123), result.Slot)
	mockClient.AssertExpectations(t)
}

func TestActivities_FetchBlockScores(t *testing.T) {
	tests := []struct {
		name          string
		input         FetchBlockScoresInput
		setupMock     func(*MockSolanaClient)
		expectedCount int
		expectedError bool
	}{
		{
			name:  "successful fetch",
			input: FetchBlockScoresInput{Slot: 1000},
			setupMock: func(m *MockSolanaClient) {
				m.On("GetBlockScores", mock.Anything, uint64(1000)).Return([]*solana.ScoredTransaction{
					{Signature: "sig1", Slot: 1000, Priority: 5_000, ComputeUnitLimit: 150_000},
					{Signature: "sig2", Slot: 1000, Unresolved: true},
				}, nil)
			},
			expectedCount: 2,
		},
		{
			name:  "rpc error propagates",
			input: FetchBlockScoresInput{Slot: 42},
			setupMock: func(m *MockSolanaClient) {
				m.On("GetBlockScores", mock.Anything, uint64(42)).Return(nil, errors.New("block not available"))
			},
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockClient := &MockSolanaClient{}
			tt.setupMock(mockClient)

			activities := NewActivities(&MockStore{}, mockClient, natspkg.NewMockPublisher(), nil, activityTestLogger())

			result, err := activities.FetchBlockScores(context.Background(), tt.input)
			if tt.expectedError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, result.Transactions, tt.expectedCount)
			mockClient.AssertExpectations(t)
		})
	}
}

func TestActivities_WriteScores(t *testing.T) {
	blockTime := time.Now().UTC()
	transactions := []*solana.ScoredTransaction{
		{Signature: "sig1", Slot: 1000, BlockTime: blockTime, Priority: 5_000, ComputeUnitLimit: 150_000, Fee: 9_000},
		{Signature: "sig2", Slot: 1000, BlockTime: blockTime, Priority: 0, ComputeUnitLimit: 200_000, Fee: 5_000},
	}

	mockStore := &MockStore{}
	for _, txn := range transactions {
		txn := txn
		mockStore.On("CreateScore", mock.Anything, mock.MatchedBy(func(p db.CreateScoreParams) bool {
			return p.Signature == txn.Signature
		})).Return(&db.Score{
			Signature:        txn.Signature,
			Slot:             int64(txn.Slot),
			Priority:         int64(txn.Priority),
			ComputeUnitLimit: int64(txn.ComputeUnitLimit),
			Fee:              int64(txn.Fee),
		}, nil)
	}

	publisher := natspkg.NewMockPublisher()
	activities := NewActivities(mockStore, &MockSolanaClient{}, publisher, nil, activityTestLogger())

	result, err := activities.WriteScores(context.Background(), WriteScoresInput{
		Slot:         1000,
		Transactions: transactions,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Written)
	assert.Equal(t, 0, result.Skipped)

	// Written scores are published to NATS.
	events := publisher.GetPublishedEvents()
	require.Len(t, events, 2)
	assert.Equal(t, "sig1", events[0].Signature)
	assert.Equal(t, int64(5_000), events[0].Priority)
	mockStore.AssertExpectations(t)
}

func TestActivities_WriteScores_SkipsDuplicates(t *testing.T) {
	duplicateErr := &pgconn.PgError{Code: "23505"}

	mockStore := &MockStore{}
	mockStore.On("CreateScore", mock.Anything, mock.MatchedBy(func(p db.CreateScoreParams) bool {
		return p.Signature == "sig-dup"
	})).Return(nil, duplicateErr)
	mockStore.On("CreateScore", mock.Anything, mock.MatchedBy(func(p db.CreateScoreParams) bool {
		return p.Signature == "sig-new"
	})).Return(&db.Score{Signature: "sig-new", Slot: 1000}, nil)

	publisher := natspkg.NewMockPublisher()
	activities := NewActivities(mockStore, &MockSolanaClient{}, publisher, nil, activityTestLogger())

	result, err := activities.WriteScores(context.Background(), WriteScoresInput{
		Slot: 1000,
		Transactions: []*solana.ScoredTransaction{
			{Signature: "sig-dup", Slot: 1000},
			{Signature: "sig-new", Slot: 1000},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Written)
	assert.Equal(t, 1, result.Skipped)

	// Only the newly written score is published.
	assert.Equal(t, 1, publisher.GetPublishedEventCount())
}

func TestActivities_WriteScores_FailsOnDBError(t *testing.T) {
	mockStore := &MockStore{}
	mockStore.On("CreateScore", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))

	activities := NewActivities(mockStore, &MockSolanaClient{}, natspkg.NewMockPublisher(), nil, activityTestLogger())

	_, err := activities.WriteScores(context.Background(), WriteScoresInput{
		Slot: 1000,
		Transactions: []*solana.ScoredTransaction{
			{Signature: "sig1", Slot: 1000},
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to write score sig1")
}

func TestActivities_WriteScores_PublishFailureDoesNotFail(t *testing.T) {
	mockStore := &MockStore{}
	mockStore.On("CreateScore", mock.Anything, mock.Anything).Return(&db.Score{Signature: "sig1", Slot: 1000}, nil)

	publisher := natspkg.NewMockPublisher()
	publisher.SetPublishBatchError(errors.New("nats unavailable"))

	activities := NewActivities(mockStore, &MockSolanaClient{}, publisher, nil, activityTestLogger())

	// Scores are persisted; the NATS publish is best-effort.
	result, err := activities.WriteScores(context.Background(), WriteScoresInput{
		Slot: 1000,
		Transactions: []*solana.ScoredTransaction{
			{Signature: "sig1", Slot: 1000},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Written)
}
