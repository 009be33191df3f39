package orders

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventBatchCreated   = "BatchCreated"
	EventBatchAdjusted  = "BatchAdjusted"
	EventBatchResolved  = "BatchResolved"
	EventBatchDiscarded = "BatchDiscarded"
	EventOrderSaved     = "OrderSaved"
	EventEntryAged      = "EntryAged"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"` // batch or order id
	Payload       json.RawMessage `json:"payload"`
}

// Publisher ships lifecycle events. Failures are logged, never surfaced to the
// operation that produced the event.
type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Envelope) error { return nil }

// ---- payloads ----

type BatchPayload struct {
	BatchID       string          `json:"batch_id"`
	GroupKey      string          `json:"group_key"`
	Status        Status          `json:"status"`
	Items         []LineItem      `json:"items"`
	CurrentTotal  decimal.Decimal `json:"current_total"`
	OriginalTotal decimal.Decimal `json:"original_total"`
	Version       int64           `json:"version"`
}

type BatchResolvedPayload struct {
	BatchID    string          `json:"batch_id"`
	OrderID    string          `json:"order_id"`
	GroupKey   string          `json:"group_key"`
	Status     Status          `json:"status"`
	Resolution Resolution      `json:"resolution"`
	Total      decimal.Decimal `json:"total"`
}

type BatchDiscardedPayload struct {
	BatchID  string `json:"batch_id"`
	GroupKey string `json:"group_key"`
	Status   Status `json:"status"`
}

type OrderSavedPayload struct {
	OrderID  string          `json:"order_id"`
	BatchID  string          `json:"batch_id,omitempty"`
	GroupKey string          `json:"group_key"`
	Total    decimal.Decimal `json:"total"`
}

type EntryAgedPayload struct {
	EntryID  string    `json:"entry_id"`
	GroupKey string    `json:"group_key"`
	Kind     EntryKind `json:"kind"`
	AgeSec   int64     `json:"age_sec"`

	// ThresholdSec is the limit the age exceeded.
	ThresholdSec int64 `json:"threshold_sec,omitempty"`
}

// NewEnvelope wraps payload in a v1 envelope.
func NewEnvelope(eventType, producer, correlationID string, payload any, at time.Time) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    at.UTC(),
		Producer:      producer,
		CorrelationID: correlationID,
		Payload:       b,
	}, nil
}

func batchPayload(b PendingBatch, s Status) BatchPayload {
	return BatchPayload{
		BatchID:       b.ID,
		GroupKey:      b.GroupKey,
		Status:        s,
		Items:         CloneItems(b.CurrentItems),
		CurrentTotal:  b.CurrentTotal,
		OriginalTotal: b.OriginalTotal,
		Version:       b.Version,
	}
}
