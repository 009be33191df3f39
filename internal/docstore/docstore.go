// Package docstore is the persistence contract shared by the pending and
// history stores: a durable mapping from id to JSON document, grouped into
// named collections, with an optional change feed.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
)

var ErrNotFound = errors.New("document not found")

type Op string

const (
	OpUpsert Op = "upsert"
	OpDelete Op = "delete"
)

// Change is a notification that a document in a collection was written.
type Change struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
	Op         Op     `json:"op"`
}

type Document struct {
	ID   string
	Body json.RawMessage
}

type Backend interface {
	GetAll(ctx context.Context, collection string) ([]Document, error)
	Get(ctx context.Context, collection, id string) (json.RawMessage, error)
	Upsert(ctx context.Context, collection, id string, body json.RawMessage) error
	// Delete returns ErrNotFound when id is absent.
	Delete(ctx context.Context, collection, id string) error
	// Subscribe delivers changes until ctx is done, then closes the channel.
	Subscribe(ctx context.Context, collection string) (<-chan Change, error)
	Close() error
}
