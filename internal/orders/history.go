package orders

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/mgHariom/orderly/internal/docstore"
)

// OrderHistoryStore is the append-only record of finalized orders.
type OrderHistoryStore struct {
	coll *docstore.Collection[Order]
}

func NewOrderHistoryStore(b docstore.Backend) *OrderHistoryStore {
	return &OrderHistoryStore{coll: docstore.NewCollection[Order](b, CollectionHistory)}
}

// Filter narrows a history listing. Zero values match everything.
type Filter struct {
	GroupKey    string // case-insensitive substring
	BatchID     string
	From        time.Time // inclusive
	To          time.Time // inclusive
	OldestFirst bool
}

func (f Filter) match(o Order) bool {
	if f.GroupKey != "" && !strings.Contains(strings.ToLower(o.GroupKey), strings.ToLower(f.GroupKey)) {
		return false
	}
	if f.BatchID != "" && o.BatchID != f.BatchID {
		return false
	}
	if !f.From.IsZero() && o.OccurredAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && o.OccurredAt.After(f.To) {
		return false
	}
	return true
}

func (s *OrderHistoryStore) Append(ctx context.Context, o Order) error {
	if o.ID == "" {
		return errors.New("append order: empty id")
	}
	o.Items = CloneItems(o.Items)
	if err := s.coll.Put(ctx, o.ID, o); err != nil {
		return Unavailable(err)
	}
	return nil
}

func (s *OrderHistoryStore) Get(ctx context.Context, id string) (Order, error) {
	o, err := s.coll.Get(ctx, id)
	if err != nil {
		return Order{}, storeErr("get order "+id, err)
	}
	return o, nil
}

func (s *OrderHistoryStore) List(ctx context.Context, f Filter) ([]Order, error) {
	all, err := s.coll.All(ctx)
	if err != nil {
		return nil, Unavailable(err)
	}
	out := all[:0]
	for _, o := range all {
		if f.match(o) {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.OccurredAt.Equal(b.OccurredAt) {
			if f.OldestFirst {
				return a.OccurredAt.Before(b.OccurredAt)
			}
			return a.OccurredAt.After(b.OccurredAt)
		}
		return a.ID < b.ID
	})
	return out, nil
}
