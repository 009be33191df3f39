package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mgHariom/orderly/internal/orders"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

type fakeReader struct {
	mu        sync.Mutex
	queue     chan kafka.Message
	committed []int64
	closed    bool
}

func newFakeReader(msgs ...kafka.Message) *fakeReader {
	r := &fakeReader{queue: make(chan kafka.Message, len(msgs))}
	for _, m := range msgs {
		r.queue <- m
	}
	return r
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.queue:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int64, len(r.committed))
	copy(out, r.committed)
	return out
}

func TestEventPublisher_RoutesAndFlushes(t *testing.T) {
	defer goleak.VerifyNone(t)

	w := &fakeWriter{}
	p := newProducer(w, 8, nil)
	p.Start()
	pub := NewEventPublisher(p)
	ctx := context.Background()

	created, err := orders.NewEnvelope(orders.EventBatchCreated, "test", "b1", orders.BatchDiscardedPayload{BatchID: "b1"}, time.Now())
	require.NoError(t, err)
	saved, err := orders.NewEnvelope(orders.EventOrderSaved, "test", "o1", orders.OrderSavedPayload{OrderID: "o1"}, time.Now())
	require.NoError(t, err)
	require.NoError(t, pub.Publish(ctx, created))
	require.NoError(t, pub.Publish(ctx, saved))

	p.Close()
	p.WaitClosed()
	assert.ErrorIs(t, pub.Publish(ctx, created), ErrProducerClosed)
	p.Close()

	require.Len(t, w.msgs, 2)
	assert.True(t, w.closed)
	assert.Equal(t, orders.TopicPending, w.msgs[0].Topic)
	assert.Equal(t, []byte("b1"), w.msgs[0].Key)
	assert.Equal(t, orders.TopicHistory, w.msgs[1].Topic)
	assert.Equal(t, HeaderEventType, w.msgs[1].Headers[0].Key)
	assert.Equal(t, []byte(orders.EventOrderSaved), w.msgs[1].Headers[0].Value)

	env, err := DecodeEnvelope(w.msgs[1].Value)
	require.NoError(t, err)
	payload, err := UnwrapPayload[orders.OrderSavedPayload](env.Payload)
	require.NoError(t, err)
	assert.Equal(t, "o1", payload.OrderID)
}

func TestConsumer_CommitsOnlySuccess(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := newFakeReader(
		kafka.Message{Offset: 1, Value: []byte("ok")},
		kafka.Message{Offset: 2, Value: []byte("fail")},
		kafka.Message{Offset: 3, Value: []byte("ok")},
	)
	c := newConsumer(r, 2, nil)

	var (
		mu      sync.Mutex
		handled int
	)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.Start(ctx, func(_ context.Context, m kafka.Message) error {
			mu.Lock()
			handled++
			n := handled
			mu.Unlock()
			if n == 3 {
				defer cancel()
			}
			if string(m.Value) == "fail" {
				return errors.New("boom")
			}
			return nil
		})
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}
	assert.ElementsMatch(t, []int64{1, 3}, r.commits())
	assert.True(t, r.closed)
}
