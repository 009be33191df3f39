package orders

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mgHariom/orderly/internal/docstore"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type seqIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

func (s *seqIDs) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("%s-%d", s.prefix, s.n)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, env Envelope) error {
	args := m.Called(ctx, env)
	return args.Error(0)
}

type testEnv struct {
	backend *docstore.Memory
	clock   *fakeClock
	pending *PendingOrderStore
	history *OrderHistoryStore
	engine  *Engine
}

func newTestEnv(t *testing.T, opts ...EngineOption) *testEnv {
	t.Helper()
	backend := docstore.NewMemory()
	clock := newClock()
	pending := NewPendingOrderStore(backend,
		WithStoreClock(clock.Now),
		WithStoreIDs((&seqIDs{prefix: "batch"}).Next),
	)
	history := NewOrderHistoryStore(backend)
	opts = append([]EngineOption{
		WithClock(clock.Now),
		WithIDGenerator((&seqIDs{prefix: "order"}).Next),
	}, opts...)
	return &testEnv{
		backend: backend,
		clock:   clock,
		pending: pending,
		history: history,
		engine:  NewEngine(pending, history, opts...),
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func item(id, name string, qty int, price string) LineItem {
	return LineItem{ProductID: id, ProductName: name, Quantity: qty, UnitPrice: dec(price)}
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, dec(want).Equal(got), "want %s, got %s", want, got)
}

func assertItems(t *testing.T, want, got []LineItem) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].ProductID, got[i].ProductID)
		assert.Equal(t, want[i].ProductName, got[i].ProductName)
		assert.Equal(t, want[i].Quantity, got[i].Quantity)
		assert.Truef(t, want[i].UnitPrice.Equal(got[i].UnitPrice),
			"%s: price want %s, got %s", want[i].ProductID, want[i].UnitPrice, got[i].UnitPrice)
	}
}
