package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/mgHariom/orderly/internal/docstore"
)

// DocStore keeps each collection in one hash and announces writes on a
// per-collection pub/sub channel.
type DocStore struct {
	rdb *redis.Client
}

func NewDocStore(rdb *redis.Client) *DocStore {
	return &DocStore{rdb: rdb}
}

func (s *DocStore) GetAll(ctx context.Context, collection string) ([]docstore.Document, error) {
	m, err := s.rdb.HGetAll(ctx, collectionKey(collection)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]docstore.Document, 0, len(m))
	for id, body := range m {
		out = append(out, docstore.Document{ID: id, Body: json.RawMessage(body)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *DocStore) Get(ctx context.Context, collection, id string) (json.RawMessage, error) {
	body, err := s.rdb.HGet(ctx, collectionKey(collection), id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, docstore.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (s *DocStore) Upsert(ctx context.Context, collection, id string, body json.RawMessage) error {
	note, err := encodeChange(docstore.Change{Collection: collection, ID: id, Op: docstore.OpUpsert})
	if err != nil {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, collectionKey(collection), id, []byte(body))
		p.Publish(ctx, changesKey(collection), note)
		return nil
	})
	return err
}

func (s *DocStore) Delete(ctx context.Context, collection, id string) error {
	n, err := s.rdb.HDel(ctx, collectionKey(collection), id).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return docstore.ErrNotFound
	}
	note, err := encodeChange(docstore.Change{Collection: collection, ID: id, Op: docstore.OpDelete})
	if err != nil {
		return err
	}
	return s.rdb.Publish(ctx, changesKey(collection), note).Err()
}

func (s *DocStore) Subscribe(ctx context.Context, collection string) (<-chan docstore.Change, error) {
	ps := s.rdb.Subscribe(ctx, changesKey(collection))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	out := make(chan docstore.Change, 64)
	go func() {
		defer close(out)
		defer ps.Close()
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				c, ok := decodeChange(m.Payload, collection)
				if !ok {
					continue
				}
				select {
				case out <- c:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (s *DocStore) Close() error {
	return s.rdb.Close()
}

func encodeChange(c docstore.Change) (string, error) {
	b, err := json.Marshal(c)
	return string(b), err
}

func decodeChange(payload, collection string) (docstore.Change, bool) {
	var c docstore.Change
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		return docstore.Change{}, false
	}
	if c.Collection != collection || c.ID == "" {
		return docstore.Change{}, false
	}
	return c, true
}
