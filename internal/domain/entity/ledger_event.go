package entity

import (
	"encoding/json"
	"time"
)

// Tipos de evento del libro.
const (
	EventMovementApplied      = "movement.applied"
	EventPurchaseRecorded     = "purchase.recorded"
	EventPurchaseReversed     = "purchase.reversed"
	EventVerificationApproved = "verification.approved"
	EventVerificationRejected = "verification.rejected"
)

// Estados del outbox.
const (
	OutboxStatusPending   = "PENDING"
	OutboxStatusPublished = "PUBLISHED"
	OutboxStatusFailed    = "FAILED"
)

// LedgerEvent mensaje del outbox transaccional; se escribe en la misma transacción que el cambio.
type LedgerEvent struct {
	ID            int64
	AggregateType string // product, purchase, verification
	AggregateID   string
	EventType     string
	Payload       json.RawMessage
	Status        string
	Attempts      int
	CreatedAt     time.Time
	PublishedAt   *time.Time
}

// NewLedgerEvent serializa payload y arma el evento pendiente.
func NewLedgerEvent(aggregateType, aggregateID, eventType string, payload any, now time.Time) (*LedgerEvent, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &LedgerEvent{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       raw,
		Status:        OutboxStatusPending,
		CreatedAt:     now,
	}, nil
}
