package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mgHariom/orderly/internal/docstore"
)

// PendingOrderStore owns the pending batches. Writes from this process are
// serialised by mu; the version counter catches writers in other processes.
type PendingOrderStore struct {
	mu     sync.Mutex
	coll   *docstore.Collection[PendingBatch]
	now    func() time.Time
	newID  func() string
	seq    int64
	seeded bool
}

type StoreOption func(*PendingOrderStore)

func WithStoreClock(now func() time.Time) StoreOption {
	return func(s *PendingOrderStore) { s.now = now }
}

func WithStoreIDs(newID func() string) StoreOption {
	return func(s *PendingOrderStore) { s.newID = newID }
}

func NewPendingOrderStore(b docstore.Backend, opts ...StoreOption) *PendingOrderStore {
	s := &PendingOrderStore{
		coll:  docstore.NewCollection[PendingBatch](b, CollectionPending),
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Create deep-copies items into both the current and original views.
func (s *PendingOrderStore) Create(ctx context.Context, groupKey string, items []LineItem) (PendingBatch, error) {
	groupKey = strings.TrimSpace(groupKey)
	if groupKey == "" {
		return PendingBatch{}, ErrEmptyGroupKey
	}
	if err := validateItems(items); err != nil {
		return PendingBatch{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seq, err := s.nextSeqLocked(ctx)
	if err != nil {
		return PendingBatch{}, err
	}
	total := Total(items)
	b := PendingBatch{
		ID:            s.newID(),
		GroupKey:      groupKey,
		CurrentItems:  CloneItems(items),
		CurrentTotal:  total,
		OriginalItems: CloneItems(items),
		OriginalTotal: total,
		CreatedAt:     s.now().UTC(),
		Version:       1,
		Seq:           seq,
	}
	if err := s.coll.Put(ctx, b.ID, b); err != nil {
		return PendingBatch{}, Unavailable(err)
	}
	s.seq = seq
	return b.clone(), nil
}

func (s *PendingOrderStore) Get(ctx context.Context, id string) (PendingBatch, error) {
	b, err := s.coll.Get(ctx, id)
	if err != nil {
		return PendingBatch{}, storeErr("get pending "+id, err)
	}
	return b, nil
}

// Update replaces the current view of a batch. expectedVersion 0 skips the
// version check.
func (s *PendingOrderStore) Update(ctx context.Context, id string, items []LineItem, expectedVersion int64) (PendingBatch, error) {
	if err := validateItems(items); err != nil {
		return PendingBatch{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.coll.Get(ctx, id)
	if err != nil {
		return PendingBatch{}, storeErr("update pending "+id, err)
	}
	if expectedVersion != 0 && b.Version != expectedVersion {
		return PendingBatch{}, fmt.Errorf("update pending %s: version %d, expected %d: %w",
			id, b.Version, expectedVersion, ErrConflictOrUnavailable)
	}
	b.CurrentItems = CloneItems(items)
	b.CurrentTotal = Total(items)
	b.Version++
	if err := s.coll.Put(ctx, id, b); err != nil {
		return PendingBatch{}, Unavailable(err)
	}
	return b.clone(), nil
}

func (s *PendingOrderStore) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.coll.Delete(ctx, id); err != nil {
		return storeErr("remove pending "+id, err)
	}
	return nil
}

// List returns batches newest-created first; insertion order breaks ties.
func (s *PendingOrderStore) List(ctx context.Context) ([]PendingBatch, error) {
	all, err := s.coll.All(ctx)
	if err != nil {
		return nil, Unavailable(err)
	}
	sortBatches(all)
	return all, nil
}

// Watch streams change notices for the pending collection.
func (s *PendingOrderStore) Watch(ctx context.Context) (<-chan docstore.Change, error) {
	ch, err := s.coll.Watch(ctx)
	if err != nil {
		return nil, Unavailable(err)
	}
	return ch, nil
}

func (s *PendingOrderStore) nextSeqLocked(ctx context.Context) (int64, error) {
	if !s.seeded {
		all, err := s.coll.All(ctx)
		if err != nil {
			return 0, Unavailable(err)
		}
		for _, b := range all {
			if b.Seq > s.seq {
				s.seq = b.Seq
			}
		}
		s.seeded = true
	}
	return s.seq + 1, nil
}

func sortBatches(bs []PendingBatch) {
	sort.SliceStable(bs, func(i, j int) bool {
		if !bs[i].CreatedAt.Equal(bs[j].CreatedAt) {
			return bs[i].CreatedAt.After(bs[j].CreatedAt)
		}
		return bs[i].Seq > bs[j].Seq
	})
}

func storeErr(op string, err error) error {
	if errors.Is(err, docstore.ErrNotFound) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, Unavailable(err))
}
