package outbox_poller

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/invoice-ledger/internal/config"
	"github.com/invoice-ledger/internal/domain/outbox"
	"github.com/invoice-ledger/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newTestPoller(cfg *config.OutboxConfig, repo *MockOutboxRepo, publisher *MockHistoryPublisher) *Poller {
	return NewPoller(cfg, repo, publisher, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestPoller_ProcessPendingMessages(t *testing.T) {
	ctx := context.Background()
	cfg := &config.OutboxConfig{
		PollingInterval:  time.Second,
		BatchSize:        10,
		MaxRetryAttempts: 3,
	}
	pending := func(attempts int) []*outbox.Message {
		return []*outbox.Message{
			{ID: 1, OperationID: uuid.New(), Position: 1, Status: shared.OutboxStatusPending, Attempts: attempts},
			{ID: 2, OperationID: uuid.New(), Position: 2, Status: shared.OutboxStatusPending},
		}
	}

	t.Run("publishes every pending message", func(t *testing.T) {
		repo, publisher := &MockOutboxRepo{}, &MockHistoryPublisher{}
		msgs := pending(0)
		repo.On("GetPending", ctx, 10).Return(msgs, nil).Once()
		publisher.On("PublishToHistory", ctx, msgs[0]).Return(nil).Once()
		publisher.On("PublishToHistory", ctx, msgs[1]).Return(nil).Once()

		indexed, err := newTestPoller(cfg, repo, publisher).processPendingMessages(ctx)
		assert.NoError(t, err)
		assert.Equal(t, 2, indexed)
		publisher.AssertExpectations(t)
		repo.AssertNotCalled(t, "IncrementAttempts", mock.Anything, mock.Anything)
	})

	t.Run("failed publish counts an attempt and holds later positions", func(t *testing.T) {
		repo, publisher := &MockOutboxRepo{}, &MockHistoryPublisher{}
		msgs := pending(0)
		repo.On("GetPending", ctx, 10).Return(msgs, nil).Once()
		publisher.On("PublishToHistory", ctx, msgs[0]).Return(errors.New("mongo down")).Once()
		repo.On("IncrementAttempts", ctx, int64(1)).Return(nil).Once()

		indexed, err := newTestPoller(cfg, repo, publisher).processPendingMessages(ctx)
		assert.ErrorContains(t, err, "mongo down")
		assert.Zero(t, indexed)
		repo.AssertExpectations(t)
		publisher.AssertNotCalled(t, "PublishToHistory", ctx, msgs[1])
		repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("last attempt marks message failed", func(t *testing.T) {
		repo, publisher := &MockOutboxRepo{}, &MockHistoryPublisher{}
		msgs := pending(2)
		repo.On("GetPending", ctx, 10).Return(msgs, nil).Once()
		publisher.On("PublishToHistory", ctx, msgs[0]).Return(errors.New("mongo down")).Once()
		repo.On("IncrementAttempts", ctx, int64(1)).Return(nil).Once()
		repo.On("UpdateStatus", ctx, int64(1), shared.OutboxStatusFailedToPublish).Return(nil).Once()

		_, err := newTestPoller(cfg, repo, publisher).processPendingMessages(ctx)
		assert.Error(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("fetch failure is returned", func(t *testing.T) {
		repo, publisher := &MockOutboxRepo{}, &MockHistoryPublisher{}
		repo.On("GetPending", ctx, 10).Return(nil, errors.New("pg down")).Once()

		_, err := newTestPoller(cfg, repo, publisher).processPendingMessages(ctx)
		assert.Error(t, err)
	})

	t.Run("nothing pending", func(t *testing.T) {
		repo, publisher := &MockOutboxRepo{}, &MockHistoryPublisher{}
		repo.On("GetPending", ctx, 10).Return([]*outbox.Message{}, nil).Once()

		indexed, err := newTestPoller(cfg, repo, publisher).processPendingMessages(ctx)
		assert.NoError(t, err)
		assert.Zero(t, indexed)
		publisher.AssertNotCalled(t, "PublishToHistory", mock.Anything, mock.Anything)
	})
}

func TestPoller_DrainFetchesUntilBatchIsShort(t *testing.T) {
	ctx := context.Background()
	cfg := &config.OutboxConfig{PollingInterval: time.Hour, BatchSize: 2, MaxRetryAttempts: 3}
	repo, publisher := &MockOutboxRepo{}, &MockHistoryPublisher{}

	full := []*outbox.Message{
		{ID: 1, OperationID: uuid.New(), Position: 1},
		{ID: 2, OperationID: uuid.New(), Position: 2},
	}
	tail := []*outbox.Message{{ID: 3, OperationID: uuid.New(), Position: 3}}
	repo.On("GetPending", ctx, 2).Return(full, nil).Once()
	repo.On("GetPending", ctx, 2).Return(tail, nil).Once()
	publisher.On("PublishToHistory", ctx, mock.Anything).Return(nil).Times(3)

	newTestPoller(cfg, repo, publisher).drain(ctx)

	repo.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestPoller_StartIndexesBacklogImmediately(t *testing.T) {
	repo, publisher := &MockOutboxRepo{}, &MockHistoryPublisher{}
	msg := &outbox.Message{ID: 7, OperationID: uuid.New(), Position: 7}
	indexed := make(chan struct{})
	repo.On("GetPending", mock.Anything, 10).Return([]*outbox.Message{msg}, nil).Once()
	repo.On("GetPending", mock.Anything, 10).Return([]*outbox.Message{}, nil)
	publisher.On("PublishToHistory", mock.Anything, msg).Run(func(mock.Arguments) { close(indexed) }).Return(nil).Once()
	cfg := &config.OutboxConfig{PollingInterval: time.Hour, BatchSize: 10, MaxRetryAttempts: 1}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		newTestPoller(cfg, repo, publisher).Start(ctx)
		close(done)
	}()

	select {
	case <-indexed:
	case <-time.After(time.Second):
		t.Fatal("backlog was not indexed before the first tick")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}
