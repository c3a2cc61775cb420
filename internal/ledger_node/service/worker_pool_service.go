package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/invoice-ledger/internal/domain/operation"
	"github.com/panjf2000/ants/v2"
)

// ErrInvalidPoolSize is returned for a non-positive pool size, which ants
// would otherwise treat as unbounded
var ErrInvalidPoolSize = errors.New("worker pool size must be positive")

// idleWorkerExpiry reclaims workers left idle between bursts of operations
const idleWorkerExpiry = time.Minute

// WorkerPoolProcessingService bounds how many operations are applied at once
// across all consumers sharing it. Each call still waits for its own result.
type WorkerPoolProcessingService struct {
	baseService ProcessingService
	pool        *ants.Pool
	logger      *slog.Logger
}

type WorkerPoolConfig struct {
	Size int
}

func NewWorkerPoolProcessingService(
	baseService ProcessingService,
	config WorkerPoolConfig,
	logger *slog.Logger,
) (*WorkerPoolProcessingService, error) {
	if config.Size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPoolSize, config.Size)
	}
	pool, err := ants.NewPool(config.Size, ants.WithExpiryDuration(idleWorkerExpiry))
	if err != nil {
		return nil, fmt.Errorf("creating operation worker pool: %w", err)
	}

	return &WorkerPoolProcessingService{
		baseService: baseService,
		pool:        pool,
		logger:      logger,
	}, nil
}

// ProcessOperation applies op on a pooled worker. If ctx ends first the call
// returns but the operation runs to completion; its receipt records the
// outcome and a redelivery is absorbed as a duplicate.
func (s *WorkerPoolProcessingService) ProcessOperation(ctx context.Context, op *operation.Operation) error {
	resultChan := make(chan error, 1)
	opCopy := *op

	err := s.pool.Submit(func() {
		defer func() {
			if p := recover(); p != nil {
				resultChan <- fmt.Errorf("panic while applying %s operation %s: %v", opCopy.Kind, opCopy.ID, p)
			}
		}()
		resultChan <- s.baseService.ProcessOperation(ctx, &opCopy)
	})
	if err != nil {
		s.logger.Error("Failed to submit operation to worker pool",
			"operation_id", op.ID.String(),
			"kind", op.Kind,
			"error", err,
		)
		return fmt.Errorf("submitting operation %s: %w", op.ID, err)
	}

	select {
	case err := <-resultChan:
		return err
	case <-ctx.Done():
		s.logger.Warn("Stopped waiting for operation", "operation_id", op.ID.String(), "error", ctx.Err())
		return ctx.Err()
	}
}

// Shutdown releases the pool; queued submissions fail with ants.ErrPoolClosed
func (s *WorkerPoolProcessingService) Shutdown() {
	s.logger.Info("Shutting down worker pool", "running_workers", s.pool.Running())
	s.pool.Release()
}

func (s *WorkerPoolProcessingService) Running() int {
	return s.pool.Running()
}

func (s *WorkerPoolProcessingService) Capacity() int {
	return s.pool.Cap()
}
