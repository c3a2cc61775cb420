package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/invoice-ledger/internal/domain/operation"
	"github.com/invoice-ledger/internal/ledger_node/service"
	"github.com/invoice-ledger/internal/platform/messaging/producers"
)

// OperationEventHandler decodes operation messages and hands them to the processing service
type OperationEventHandler struct {
	processingService service.ProcessingService
	producer          producers.DeadLetterPublisher
	logger            *slog.Logger
}

func NewOperationEventHandler(
	logger *slog.Logger,
	processingService service.ProcessingService,
	producer producers.DeadLetterPublisher,
) *OperationEventHandler {
	return &OperationEventHandler{
		processingService: processingService,
		producer:          producer,
		logger:            logger,
	}
}

// HandleMessage processes one Kafka message. Undecodable messages go to the
// DLQ; a nil return commits the offset.
func (h *OperationEventHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var op operation.Operation
	if err := json.Unmarshal(value, &op); err != nil {
		const unmarshalErrorMsg = "Failed to unmarshal operation from Kafka message"
		h.logger.Error(unmarshalErrorMsg,
			"error", err,
			"message_key", string(key),
		)

		if h.producer != nil {
			dlqReason := fmt.Sprintf("%s: %s", unmarshalErrorMsg, err.Error())
			if dlqErr := h.producer.PublishToDLQ(ctx, string(key), value, dlqReason); dlqErr != nil {
				h.logger.Error("Failed to publish message to DLQ after unmarshal error",
					"dlq_error", dlqErr,
					"original_error", err,
					"message_key", string(key),
				)
			} else {
				h.logger.Info("Published unprocessable message to DLQ", "message_key", string(key))
				return nil
			}
		}
		return fmt.Errorf("failed to unmarshal message value: %w", err)
	}

	logger := h.logger
	if op.CorrelationID != "" {
		logger = h.logger.With("correlation_id", op.CorrelationID)
	}

	logger.Info("Received operation for processing",
		"operation_id", op.ID.String(),
		"kind", op.Kind,
		"caller", op.Caller,
	)

	if err := h.processingService.ProcessOperation(ctx, &op); err != nil {
		logger.Error("Failed to process operation",
			"operation_id", op.ID.String(),
			"error", err,
		)
		return fmt.Errorf("processing operation %s failed: %w", op.ID.String(), err)
	}

	return nil
}
