package docstore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
)

const subscriberBuffer = 64

// Memory is an in-process Backend. Documents are copied on the way in and out.
type Memory struct {
	mu   sync.RWMutex
	docs map[string]map[string]json.RawMessage
	subs map[string]map[chan Change]struct{}
}

func NewMemory() *Memory {
	return &Memory{
		docs: map[string]map[string]json.RawMessage{},
		subs: map[string]map[chan Change]struct{}{},
	}
}

func (m *Memory) GetAll(ctx context.Context, collection string) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Document, 0, len(m.docs[collection]))
	for id, body := range m.docs[collection] {
		out = append(out, Document{ID: id, Body: clone(body)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) Get(ctx context.Context, collection, id string) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	body, ok := m.docs[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(body), nil
}

func (m *Memory) Upsert(ctx context.Context, collection, id string, body json.RawMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	coll, ok := m.docs[collection]
	if !ok {
		coll = map[string]json.RawMessage{}
		m.docs[collection] = coll
	}
	coll[id] = clone(body)
	m.notifyLocked(Change{Collection: collection, ID: id, Op: OpUpsert})
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.docs[collection][id]; !ok {
		return ErrNotFound
	}
	delete(m.docs[collection], id)
	m.notifyLocked(Change{Collection: collection, ID: id, Op: OpDelete})
	return nil
}

func (m *Memory) Subscribe(ctx context.Context, collection string) (<-chan Change, error) {
	ch := make(chan Change, subscriberBuffer)

	m.mu.Lock()
	if m.subs[collection] == nil {
		m.subs[collection] = map[chan Change]struct{}{}
	}
	m.subs[collection][ch] = struct{}{}
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		delete(m.subs[collection], ch)
		close(ch)
		m.mu.Unlock()
	}()
	return ch, nil
}

func (m *Memory) Close() error { return nil }

// notifyLocked never blocks writers: a slow subscriber misses notices and
// is expected to re-read the collection.
func (m *Memory) notifyLocked(c Change) {
	for ch := range m.subs[c.Collection] {
		select {
		case ch <- c:
		default:
		}
	}
}

func clone(b json.RawMessage) json.RawMessage {
	if b == nil {
		return nil
	}
	out := make(json.RawMessage, len(b))
	copy(out, b)
	return out
}
