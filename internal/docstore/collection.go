package docstore

import (
	"context"
	"encoding/json"
	"fmt"
)

// Collection is a typed JSON view over one named collection of a Backend.
type Collection[T any] struct {
	backend Backend
	name    string
}

func NewCollection[T any](b Backend, name string) *Collection[T] {
	return &Collection[T]{backend: b, name: name}
}

func (c *Collection[T]) Name() string { return c.name }

func (c *Collection[T]) All(ctx context.Context) ([]T, error) {
	docs, err := c.backend.GetAll(ctx, c.name)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		var v T
		if err := json.Unmarshal(d.Body, &v); err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", c.name, d.ID, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func (c *Collection[T]) Get(ctx context.Context, id string) (T, error) {
	var v T
	body, err := c.backend.Get(ctx, c.name, id)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(body, &v); err != nil {
		return v, fmt.Errorf("decode %s/%s: %w", c.name, id, err)
	}
	return v, nil
}

func (c *Collection[T]) Put(ctx context.Context, id string, v T) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", c.name, id, err)
	}
	return c.backend.Upsert(ctx, c.name, id, body)
}

func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	return c.backend.Delete(ctx, c.name, id)
}

func (c *Collection[T]) Watch(ctx context.Context) (<-chan Change, error) {
	return c.backend.Subscribe(ctx, c.name)
}
