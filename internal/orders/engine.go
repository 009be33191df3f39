package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mgHariom/orderly/pkg/logger"
)

// Engine moves pending batches to their resolution. Every mutation of a
// batch runs under that batch's lock.
type Engine struct {
	pending   *PendingOrderStore
	history   *OrderHistoryStore
	publisher Publisher
	log       logger.Logger
	now       func() time.Time
	newID     func() string
	producer  string
	locks     *keyedMutex
}

type EngineOption func(*Engine)

func WithPublisher(p Publisher) EngineOption {
	return func(e *Engine) { e.publisher = p }
}

func WithLogger(l logger.Logger) EngineOption {
	return func(e *Engine) { e.log = l }
}

func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

func WithIDGenerator(newID func() string) EngineOption {
	return func(e *Engine) { e.newID = newID }
}

func WithProducerName(name string) EngineOption {
	return func(e *Engine) { e.producer = name }
}

func NewEngine(pending *PendingOrderStore, history *OrderHistoryStore, opts ...EngineOption) *Engine {
	e := &Engine{
		pending:   pending,
		history:   history,
		publisher: NopPublisher{},
		log:       logger.Nop(),
		now:       time.Now,
		newID:     uuid.NewString,
		producer:  "orderly",
		locks:     newKeyedMutex(),
	}
	for _, o := range opts {
		o(e)
	}
	e.log = e.log.WithFields(logger.String("component", "reconciliation"))
	return e
}

type AdjustmentResult struct {
	Outcome Outcome       `json:"outcome"`
	Order   *Order        `json:"order,omitempty"`
	Batch   *PendingBatch `json:"batch,omitempty"`
}

// CreateBatch submits a staged list to the pending queue.
func (e *Engine) CreateBatch(ctx context.Context, groupKey string, items []LineItem) (PendingBatch, error) {
	b, err := e.pending.Create(ctx, groupKey, items)
	if err != nil {
		return PendingBatch{}, err
	}
	e.log.Info("pending batch created",
		logger.String("batch_id", b.ID),
		logger.String("group_key", b.GroupKey),
		logger.Int("items", len(b.CurrentItems)),
		logger.String("total", b.CurrentTotal.StringFixed(2)),
	)
	e.emit(ctx, EventBatchCreated, b.ID, batchPayload(b, StatusPending))
	return b, nil
}

// ConfirmFullDelivery records the batch's original request as delivered.
// Quantities reduced by earlier adjustments do not matter here.
func (e *Engine) ConfirmFullDelivery(ctx context.Context, batchID string) (Order, error) {
	unlock := e.locks.Lock(batchID)
	defer unlock()

	b, err := e.pending.Get(ctx, batchID)
	if err != nil {
		return Order{}, err
	}
	if len(b.OriginalItems) == 0 {
		return Order{}, fmt.Errorf("deliver %s: %w", batchID, ErrNothingToDeliver)
	}
	return e.resolveLocked(ctx, b, ResolutionFullDelivery)
}

// ApplyAdjustment applies edited quantities to a batch. Only ProductID and
// Quantity of each edited item are used; names and prices come from the
// batch. Items left out of edited are dropped, as are non-positive ones.
func (e *Engine) ApplyAdjustment(ctx context.Context, batchID string, edited []LineItem) (AdjustmentResult, error) {
	unlock := e.locks.Lock(batchID)
	defer unlock()

	b, err := e.pending.Get(ctx, batchID)
	if err != nil {
		return AdjustmentResult{}, err
	}

	valid, err := reconcileItems(b, edited)
	if err != nil {
		return AdjustmentResult{}, fmt.Errorf("adjust %s: %w", batchID, err)
	}

	switch {
	case Classify(valid) == StateExhausted && len(b.OriginalItems) > 0:
		o, err := e.resolveLocked(ctx, b, ResolutionAdjustedToZero)
		if err != nil {
			return AdjustmentResult{}, err
		}
		return AdjustmentResult{Outcome: OutcomeResolved, Order: &o}, nil

	case len(valid) > 0:
		updated, err := e.pending.Update(ctx, batchID, valid, b.Version)
		if err != nil {
			return AdjustmentResult{}, err
		}
		e.log.Info("pending batch adjusted",
			logger.String("batch_id", batchID),
			logger.String("group_key", updated.GroupKey),
			logger.String("current_total", updated.CurrentTotal.StringFixed(2)),
			logger.String("original_total", updated.OriginalTotal.StringFixed(2)),
		)
		e.emit(ctx, EventBatchAdjusted, batchID, batchPayload(updated, StatusPending))
		return AdjustmentResult{Outcome: OutcomeUpdated, Batch: &updated}, nil

	default:
		return AdjustmentResult{Outcome: OutcomeNoOp}, nil
	}
}

// RemovePendingBatch discards a batch without recording an order.
func (e *Engine) RemovePendingBatch(ctx context.Context, batchID string) error {
	unlock := e.locks.Lock(batchID)
	defer unlock()

	b, err := e.pending.Get(ctx, batchID)
	if err != nil {
		return err
	}
	if err := e.pending.Remove(ctx, batchID); err != nil {
		return err
	}
	e.log.Info("pending batch discarded",
		logger.String("batch_id", batchID),
		logger.String("group_key", b.GroupKey),
	)
	e.emit(ctx, EventBatchDiscarded, batchID, BatchDiscardedPayload{BatchID: batchID, GroupKey: b.GroupKey, Status: StatusDiscarded})
	return nil
}

// SaveDirect records an order straight from a staged list, skipping the
// pending stage.
func (e *Engine) SaveDirect(ctx context.Context, groupKey string, items []LineItem) (Order, error) {
	groupKey = strings.TrimSpace(groupKey)
	if groupKey == "" {
		return Order{}, ErrEmptyGroupKey
	}
	if err := validateItems(items); err != nil {
		return Order{}, err
	}
	o := Order{
		ID:         e.newID(),
		GroupKey:   groupKey,
		Items:      CloneItems(items),
		Total:      Total(items),
		OccurredAt: e.now().UTC(),
	}
	if err := e.history.Append(ctx, o); err != nil {
		return Order{}, err
	}
	e.log.Info("order saved directly",
		logger.String("order_id", o.ID),
		logger.String("group_key", o.GroupKey),
		logger.String("total", o.Total.StringFixed(2)),
	)
	e.emit(ctx, EventOrderSaved, o.ID, OrderSavedPayload{OrderID: o.ID, GroupKey: o.GroupKey, Total: o.Total})
	return o, nil
}

// Recover removes pending batches that already have an order in history.
// That state is left behind when a process dies between the append and the
// remove of a resolution.
func (e *Engine) Recover(ctx context.Context) (int, error) {
	batches, err := e.pending.List(ctx)
	if err != nil {
		return 0, err
	}
	if len(batches) == 0 {
		return 0, nil
	}
	orders, err := e.history.List(ctx, Filter{})
	if err != nil {
		return 0, err
	}
	resolved := make(map[string]Order, len(orders))
	for _, o := range orders {
		if o.BatchID != "" {
			resolved[o.BatchID] = o
		}
	}

	n := 0
	for _, b := range batches {
		o, ok := resolved[b.ID]
		if !ok {
			continue
		}
		unlock := e.locks.Lock(b.ID)
		err := e.pending.Remove(ctx, b.ID)
		unlock()
		if err != nil && !IsBenign(err) {
			return n, err
		}
		n++
		e.log.Warn("removed pending batch already resolved",
			logger.String("batch_id", b.ID),
			logger.String("order_id", o.ID),
		)
		e.emit(ctx, EventBatchResolved, b.ID, BatchResolvedPayload{
			BatchID: b.ID, OrderID: o.ID, GroupKey: b.GroupKey, Status: StatusResolved,
			Resolution: ResolutionRecovered, Total: o.Total,
		})
	}
	return n, nil
}

// resolveLocked appends the order built from the original request, then
// removes the batch.
func (e *Engine) resolveLocked(ctx context.Context, b PendingBatch, why Resolution) (Order, error) {
	o := Order{
		ID:         e.newID(),
		BatchID:    b.ID,
		GroupKey:   b.GroupKey,
		Items:      CloneItems(b.OriginalItems),
		Total:      b.OriginalTotal,
		OccurredAt: e.now().UTC(),
	}
	if err := e.history.Append(ctx, o); err != nil {
		return Order{}, err
	}
	if err := e.pending.Remove(ctx, b.ID); err != nil {
		if !errors.Is(err, ErrNotFound) {
			e.log.Error("order recorded but pending batch not removed",
				logger.String("batch_id", b.ID),
				logger.String("order_id", o.ID),
				logger.Error(err),
			)
			return o, err
		}
		e.log.Warn("pending batch vanished during resolution", logger.String("batch_id", b.ID))
	}
	e.log.Info("pending batch resolved",
		logger.String("batch_id", b.ID),
		logger.String("order_id", o.ID),
		logger.String("group_key", o.GroupKey),
		logger.String("resolution", string(why)),
		logger.String("total", o.Total.StringFixed(2)),
	)
	e.emit(ctx, EventBatchResolved, b.ID, BatchResolvedPayload{
		BatchID: b.ID, OrderID: o.ID, GroupKey: o.GroupKey, Status: StatusResolved,
		Resolution: why, Total: o.Total,
	})
	e.emit(ctx, EventOrderSaved, o.ID, OrderSavedPayload{
		OrderID: o.ID, BatchID: b.ID, GroupKey: o.GroupKey, Total: o.Total,
	})
	return o, nil
}

// reconcileItems maps edited quantities onto the batch's remaining items.
// Non-positive edits drop the product. Positive edits may only name a product
// still in the batch and may not raise its remaining quantity.
func reconcileItems(b PendingBatch, edited []LineItem) ([]LineItem, error) {
	current := make(map[string]LineItem, len(b.CurrentItems))
	for _, it := range b.CurrentItems {
		current[it.ProductID] = it
	}

	out := make([]LineItem, 0, len(edited))
	seen := make(map[string]int, len(edited))
	for _, ed := range edited {
		base, ok := current[ed.ProductID]
		if ed.Quantity > 0 {
			if !ok {
				return nil, fmt.Errorf("%s: %w", ed.ProductID, ErrItemNotInBatch)
			}
			if ed.Quantity > base.Quantity {
				return nil, fmt.Errorf("%s: %d exceeds remaining %d: %w",
					ed.ProductID, ed.Quantity, base.Quantity, ErrInvalidQuantity)
			}
		} else if !ok {
			continue
		}
		// last edit for a product wins
		if i, dup := seen[ed.ProductID]; dup {
			out[i].Quantity = ed.Quantity
			continue
		}
		seen[ed.ProductID] = len(out)
		base.Quantity = ed.Quantity
		out = append(out, base)
	}
	return DropNonPositive(out), nil
}

func (e *Engine) emit(ctx context.Context, eventType, correlationID string, payload any) {
	env, err := NewEnvelope(eventType, e.producer, correlationID, payload, e.now())
	if err != nil {
		e.log.Error("encode event", logger.String("event_type", eventType), logger.Error(err))
		return
	}
	if err := e.publisher.Publish(ctx, env); err != nil {
		e.log.Warn("publish event",
			logger.String("event_type", eventType),
			logger.String("correlation_id", correlationID),
			logger.Error(err),
		)
	}
}
