package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/invoice-ledger/internal/domain/history"
	"github.com/invoice-ledger/internal/domain/operation"
	"github.com/invoice-ledger/internal/domain/shared"
)

// Batch is everything one applied operation contributes to the history stream
type Batch struct {
	Receipt   *operation.Receipt       `json:"receipt"`
	Creations []history.CreationRecord `json:"creations,omitempty"`
	Payments  []history.PaymentRecord  `json:"payments,omitempty"`
}

// Message stores a batch for reliable indexing after the ledger commit
type Message struct {
	ID            int64               `json:"id"`
	OperationID   uuid.UUID           `json:"operation_id"`
	Position      uint64              `json:"position"`
	Payload       json.RawMessage     `json:"payload"`
	Status        shared.OutboxStatus `json:"status"`
	Attempts      int                 `json:"attempts"`
	CreatedAt     time.Time           `json:"created_at"`
	LastAttemptAt *time.Time          `json:"last_attempt_at,omitempty"`
}

func NewMessage(batch *Batch) (*Message, error) {
	payload, err := json.Marshal(batch)
	if err != nil {
		return nil, err
	}

	return &Message{
		OperationID: batch.Receipt.OperationID,
		Position:    batch.Receipt.Position,
		Payload:     payload,
		Status:      shared.OutboxStatusPending,
		Attempts:    0,
		CreatedAt:   time.Now(),
	}, nil
}

func (m *Message) IncrementAttempts() {
	m.Attempts++
	now := time.Now()
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsProcessed() {
	m.Status = shared.OutboxStatusProcessed
	now := time.Now()
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsFailed() {
	m.Status = shared.OutboxStatusFailedToPublish
	now := time.Now()
	m.LastAttemptAt = &now
}

// GetBatch decodes the payload
func (m *Message) GetBatch() (*Batch, error) {
	var batch Batch
	if err := json.Unmarshal(m.Payload, &batch); err != nil {
		return nil, err
	}
	return &batch, nil
}
