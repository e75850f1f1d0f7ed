package model

import (
	"time"

	"github.com/google/uuid"
)

// Envelope is the canonical event wrapper published to NATS.
type Envelope struct {
	EventID       uuid.UUID `json:"event_id"`
	EventType     string    `json:"event_type"`
	CorrelationID uuid.UUID `json:"correlation_id"`
	OccurredAt    time.Time `json:"occurred_at"`
	Payload       any       `json:"payload"`
}

// ObservationRecordedEvent is emitted after a successful scan appends a
// price observation.
type ObservationRecordedEvent struct {
	ProductID  int64     `json:"product_id"`
	VendorID   int64     `json:"vendor_id"`
	Price      string    `json:"price"`
	Currency   string    `json:"currency"`
	InStock    bool      `json:"in_stock"`
	ObservedAt time.Time `json:"observed_at"`
}

// PolicyAppliedEvent is emitted after an apply-to-products pass completes.
type PolicyAppliedEvent struct {
	VendorID     *int64    `json:"vendor_id,omitempty"` // nil = all vendors
	UpdatedCount int       `json:"updated_count"`
	AppliedAt    time.Time `json:"applied_at"`
}
