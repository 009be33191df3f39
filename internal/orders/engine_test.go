package orders

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestEngine_CreateAndDeliver(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	b, err := env.engine.CreateBatch(ctx, "Alice", []LineItem{item("p1", "Widget", 2, "5.00")})
	require.NoError(t, err)
	assertDecimal(t, "10.00", b.CurrentTotal)

	env.clock.Advance(time.Hour)
	o, err := env.engine.ConfirmFullDelivery(ctx, b.ID)
	require.NoError(t, err)
	assertDecimal(t, "10.00", o.Total)
	assertItems(t, []LineItem{item("p1", "Widget", 2, "5.00")}, o.Items)
	assert.Equal(t, "Alice", o.GroupKey)
	assert.Equal(t, b.ID, o.BatchID)
	assert.Equal(t, env.clock.Now(), o.OccurredAt)

	pending, err := env.pending.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	history, err := env.history.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, o.ID, history[0].ID)
}

func TestEngine_PartialAdjustmentThenDeliver(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	b, err := env.engine.CreateBatch(ctx, "Alice", []LineItem{item("p1", "Widget", 4, "2.50")})
	require.NoError(t, err)

	res, err := env.engine.ApplyAdjustment(ctx, b.ID, []LineItem{{ProductID: "p1", Quantity: 1}})
	require.NoError(t, err)
	require.Equal(t, OutcomeUpdated, res.Outcome)
	require.NotNil(t, res.Batch)
	assertDecimal(t, "2.50", res.Batch.CurrentTotal)
	assertDecimal(t, "10.00", res.Batch.OriginalTotal)
	assertItems(t, []LineItem{item("p1", "Widget", 1, "2.50")}, res.Batch.CurrentItems)

	o, err := env.engine.ConfirmFullDelivery(ctx, b.ID)
	require.NoError(t, err)
	assertDecimal(t, "10.00", o.Total)
	assertItems(t, []LineItem{item("p1", "Widget", 4, "2.50")}, o.Items)
}

func TestEngine_ZeroOutResolves(t *testing.T) {
	tests := []struct {
		name   string
		edited []LineItem
	}{
		{name: "explicit zero", edited: []LineItem{{ProductID: "p1", Quantity: 0}, {ProductID: "p2", Quantity: 0}}},
		{name: "negative", edited: []LineItem{{ProductID: "p1", Quantity: -1}}},
		{name: "empty set", edited: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			env := newTestEnv(t)
			orig := []LineItem{item("p1", "Widget", 3, "1.50"), item("p2", "Gadget", 1, "4.00")}
			b, err := env.engine.CreateBatch(ctx, "Alice", orig)
			require.NoError(t, err)
			_, err = env.engine.ApplyAdjustment(ctx, b.ID, []LineItem{{ProductID: "p1", Quantity: 1}})
			require.NoError(t, err)

			res, err := env.engine.ApplyAdjustment(ctx, b.ID, tt.edited)
			require.NoError(t, err)
			require.Equal(t, OutcomeResolved, res.Outcome)
			require.NotNil(t, res.Order)
			assertItems(t, orig, res.Order.Items)
			assertDecimal(t, "8.50", res.Order.Total)

			_, err = env.pending.Get(ctx, b.ID)
			assert.ErrorIs(t, err, ErrNotFound)
			history, err := env.history.List(ctx, Filter{})
			require.NoError(t, err)
			assert.Len(t, history, 1)
		})
	}
}

func TestEngine_AdjustmentIsIdempotent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	b, err := env.engine.CreateBatch(ctx, "Alice", []LineItem{item("p1", "A", 4, "2.50"), item("p2", "B", 2, "3.00")})
	require.NoError(t, err)

	res, err := env.engine.ApplyAdjustment(ctx, b.ID, []LineItem{{ProductID: "p1", Quantity: 2}, {ProductID: "p2", Quantity: 2}})
	require.NoError(t, err)
	first := *res.Batch

	res, err = env.engine.ApplyAdjustment(ctx, b.ID, first.CurrentItems)
	require.NoError(t, err)
	require.Equal(t, OutcomeUpdated, res.Outcome)
	assertItems(t, first.CurrentItems, res.Batch.CurrentItems)
	assert.True(t, first.CurrentTotal.Equal(res.Batch.CurrentTotal))
	assertDecimal(t, "11.00", res.Batch.CurrentTotal)
}

func TestEngine_AdjustmentRules(t *testing.T) {
	orig := []LineItem{item("p1", "A", 4, "2.50"), item("p2", "B", 2, "3.00")}

	tests := []struct {
		name    string
		edited  []LineItem
		want    []LineItem
		wantErr error
	}{
		{
			name:   "omitted items are dropped",
			edited: []LineItem{{ProductID: "p2", Quantity: 2}},
			want:   []LineItem{item("p2", "B", 2, "3.00")},
		},
		{
			name:   "names and prices come from the batch",
			edited: []LineItem{item("p1", "Renamed", 3, "999"), {ProductID: "p2", Quantity: 2}},
			want:   []LineItem{item("p1", "A", 3, "2.50"), item("p2", "B", 2, "3.00")},
		},
		{
			name:   "last edit wins",
			edited: []LineItem{{ProductID: "p1", Quantity: 3}, {ProductID: "p1", Quantity: 1}},
			want:   []LineItem{item("p1", "A", 1, "2.50")},
		},
		{
			name:   "zeroed unknown product is dropped",
			edited: []LineItem{{ProductID: "p1", Quantity: 2}, {ProductID: "p9", Quantity: 0}},
			want:   []LineItem{item("p1", "A", 2, "2.50")},
		},
		{
			name:    "unknown product rejected",
			edited:  []LineItem{{ProductID: "p9", Quantity: 1}},
			wantErr: ErrItemNotInBatch,
		},
		{
			name:    "above remaining rejected",
			edited:  []LineItem{{ProductID: "p1", Quantity: 5}},
			wantErr: ErrInvalidQuantity,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			env := newTestEnv(t)
			b, err := env.engine.CreateBatch(ctx, "Alice", orig)
			require.NoError(t, err)

			res, err := env.engine.ApplyAdjustment(ctx, b.ID, tt.edited)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.True(t, IsValidation(err))
				stored, err := env.pending.Get(ctx, b.ID)
				require.NoError(t, err)
				assertItems(t, orig, stored.CurrentItems)
				return
			}
			require.NoError(t, err)
			require.Equal(t, OutcomeUpdated, res.Outcome)
			assertItems(t, tt.want, res.Batch.CurrentItems)
			assertItems(t, orig, res.Batch.OriginalItems)
			assertDecimal(t, "16.00", res.Batch.OriginalTotal)
		})
	}
}

func TestEngine_AdjustmentCannotGrowRemaining(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	b, err := env.engine.CreateBatch(ctx, "Alice", []LineItem{item("p1", "W", 4, "2.50"), item("p2", "G", 1, "1")})
	require.NoError(t, err)

	res, err := env.engine.ApplyAdjustment(ctx, b.ID, []LineItem{{ProductID: "p1", Quantity: 1}})
	require.NoError(t, err)
	reduced := *res.Batch
	assertDecimal(t, "2.50", reduced.CurrentTotal)

	tests := []struct {
		name    string
		edited  []LineItem
		wantErr error
	}{
		{name: "back to original quantity", edited: []LineItem{{ProductID: "p1", Quantity: 4}}, wantErr: ErrInvalidQuantity},
		{name: "dropped product re-added", edited: []LineItem{{ProductID: "p1", Quantity: 1}, {ProductID: "p2", Quantity: 1}}, wantErr: ErrItemNotInBatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.engine.ApplyAdjustment(ctx, b.ID, tt.edited)
			assert.ErrorIs(t, err, tt.wantErr)

			stored, err := env.pending.Get(ctx, b.ID)
			require.NoError(t, err)
			assertItems(t, reduced.CurrentItems, stored.CurrentItems)
			assertDecimal(t, "2.50", stored.CurrentTotal)
			assert.Equal(t, reduced.Version, stored.Version)
		})
	}
}

func TestEngine_NotFound(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	_, err := env.engine.ConfirmFullDelivery(ctx, "missing-id")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = env.engine.ApplyAdjustment(ctx, "missing-id", nil)
	assert.ErrorIs(t, err, ErrNotFound)
	err = env.engine.RemovePendingBatch(ctx, "missing-id")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.True(t, IsBenign(err))
}

func TestEngine_DegenerateBatch(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	// a record written by an older revision without original items
	legacy := PendingBatch{ID: "legacy", GroupKey: "Old", CreatedAt: env.clock.Now(), Version: 1}
	require.NoError(t, env.pending.coll.Put(ctx, legacy.ID, legacy))

	_, err := env.engine.ConfirmFullDelivery(ctx, legacy.ID)
	assert.ErrorIs(t, err, ErrNothingToDeliver)

	res, err := env.engine.ApplyAdjustment(ctx, legacy.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoOp, res.Outcome)
}

func TestEngine_RemovePendingBatch(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	b, err := env.engine.CreateBatch(ctx, "Alice", []LineItem{item("p1", "A", 1, "1")})
	require.NoError(t, err)

	require.NoError(t, env.engine.RemovePendingBatch(ctx, b.ID))

	pending, err := env.pending.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
	history, err := env.history.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestEngine_SaveDirect(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	o, err := env.engine.SaveDirect(ctx, " Carol ", []LineItem{item("p1", "A", 2, "1.20")})
	require.NoError(t, err)
	assert.Equal(t, "Carol", o.GroupKey)
	assert.Empty(t, o.BatchID)
	assertDecimal(t, "2.40", o.Total)

	_, err = env.engine.SaveDirect(ctx, "", []LineItem{item("p1", "A", 2, "1.20")})
	assert.ErrorIs(t, err, ErrEmptyGroupKey)
	_, err = env.engine.SaveDirect(ctx, "Carol", nil)
	assert.ErrorIs(t, err, ErrNoItems)
}

func TestEngine_Recover(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	crashed, err := env.engine.CreateBatch(ctx, "Alice", []LineItem{item("p1", "A", 1, "1")})
	require.NoError(t, err)
	live, err := env.engine.CreateBatch(ctx, "Bob", []LineItem{item("p1", "A", 1, "1")})
	require.NoError(t, err)

	// the order was appended but the process died before the remove
	require.NoError(t, env.history.Append(ctx, Order{
		ID: "o-crash", BatchID: crashed.ID, GroupKey: "Alice",
		Items: crashed.OriginalItems, Total: crashed.OriginalTotal, OccurredAt: env.clock.Now(),
	}))

	n, err := env.engine.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	pending, err := env.pending.List(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, live.ID, pending[0].ID)

	n, err = env.engine.Recover(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestEngine_PublishesLifecycleEvents(t *testing.T) {
	ctx := context.Background()
	pub := new(mockPublisher)
	var types []string
	pub.On("Publish", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		types = append(types, args.Get(1).(Envelope).EventType)
	}).Return(nil)
	env := newTestEnv(t, WithPublisher(pub), WithProducerName("test"))

	b, err := env.engine.CreateBatch(ctx, "Alice", []LineItem{item("p1", "A", 2, "1")})
	require.NoError(t, err)
	_, err = env.engine.ApplyAdjustment(ctx, b.ID, []LineItem{{ProductID: "p1", Quantity: 1}})
	require.NoError(t, err)
	_, err = env.engine.ConfirmFullDelivery(ctx, b.ID)
	require.NoError(t, err)

	assert.Equal(t, []string{EventBatchCreated, EventBatchAdjusted, EventBatchResolved, EventOrderSaved}, types)

	resolved := pub.Calls[2].Arguments.Get(1).(Envelope)
	assert.Equal(t, "test", resolved.Producer)
	assert.Equal(t, b.ID, resolved.CorrelationID)
	var p BatchResolvedPayload
	require.NoError(t, json.Unmarshal(resolved.Payload, &p))
	assert.Equal(t, ResolutionFullDelivery, p.Resolution)
	assertDecimal(t, "2", p.Total)
}

func TestEngine_PublishFailureDoesNotFailOperation(t *testing.T) {
	pub := new(mockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything).Return(errors.New("broker down"))
	env := newTestEnv(t, WithPublisher(pub))

	b, err := env.engine.CreateBatch(context.Background(), "Alice", []LineItem{item("p1", "A", 1, "1")})
	require.NoError(t, err)
	_, err = env.engine.ConfirmFullDelivery(context.Background(), b.ID)
	require.NoError(t, err)
	pub.AssertNumberOfCalls(t, "Publish", 3)
}

func TestEngine_ConcurrentMutationsSerialised(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	b, err := env.engine.CreateBatch(ctx, "Alice", []LineItem{item("p1", "A", 50, "1")})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.engine.ApplyAdjustment(ctx, b.ID, []LineItem{{ProductID: "p1", Quantity: 25}})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	stored, err := env.pending.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(21), stored.Version)
	assertDecimal(t, "50", stored.OriginalTotal)
	assert.Zero(t, env.engine.locks.size())
}
