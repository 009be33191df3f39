package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// UncategorizedGroup is the group key for products without a category.
const UncategorizedGroup = "Uncategorized"

// Catalog is the read side of the product catalog.
type Catalog interface {
	ListProducts(ctx context.Context) ([]Product, error)
	GetProduct(ctx context.Context, id string) (Product, error)
}

// Stager accumulates line items per group key before they are submitted as a
// pending batch. Staging lists are transient and not persisted.
type Stager struct {
	mu      sync.Mutex
	lists   map[string][]LineItem
	catalog Catalog
	engine  *Engine
}

func NewStager(catalog Catalog, engine *Engine) *Stager {
	return &Stager{lists: map[string][]LineItem{}, catalog: catalog, engine: engine}
}

// Add snapshots the product's current name and price into the group's list.
func (s *Stager) Add(ctx context.Context, groupKey, productID string, quantity int) ([]LineItem, error) {
	groupKey = strings.TrimSpace(groupKey)
	if groupKey == "" {
		return nil, ErrEmptyGroupKey
	}
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	p, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("stage %s: %w", productID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	list, err := AddOrIncrement(s.lists[groupKey], p.ID, p.Name, p.Price, quantity)
	if err != nil {
		return nil, err
	}
	s.lists[groupKey] = list
	return CloneItems(list), nil
}

// SetQuantity replaces a staged quantity; zero or less removes the item.
func (s *Stager) SetQuantity(groupKey, productID string, quantity int) ([]LineItem, error) {
	if quantity > MaxQuantity {
		return nil, fmt.Errorf("set %s: %w", productID, ErrInvalidQuantity)
	}
	groupKey = strings.TrimSpace(groupKey)
	s.mu.Lock()
	defer s.mu.Unlock()
	return CloneItems(s.storeLocked(groupKey, SetQuantity(s.lists[groupKey], productID, quantity))), nil
}

func (s *Stager) Remove(groupKey, productID string) []LineItem {
	groupKey = strings.TrimSpace(groupKey)
	s.mu.Lock()
	defer s.mu.Unlock()
	return CloneItems(s.storeLocked(groupKey, RemoveItem(s.lists[groupKey], productID)))
}

func (s *Stager) Items(groupKey string) []LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return CloneItems(s.lists[strings.TrimSpace(groupKey)])
}

func (s *Stager) Clear(groupKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lists, strings.TrimSpace(groupKey))
}

// Groups lists the group keys that have staged items, sorted.
func (s *Stager) Groups() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.lists))
	for k := range s.lists {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Submit turns the group's staged list into a pending batch and clears it.
// On failure the staged list is kept.
func (s *Stager) Submit(ctx context.Context, groupKey string) (PendingBatch, error) {
	groupKey = strings.TrimSpace(groupKey)
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.engine.CreateBatch(ctx, groupKey, s.lists[groupKey])
	if err != nil {
		return PendingBatch{}, err
	}
	delete(s.lists, groupKey)
	return b, nil
}

// SubmitByCategory splits the group's staged list by product category and
// creates one batch per category, keyed by the category name. Items of
// categories that fail stay staged.
func (s *Stager) SubmitByCategory(ctx context.Context, groupKey string) ([]PendingBatch, error) {
	groupKey = strings.TrimSpace(groupKey)
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := s.lists[groupKey]
	if len(staged) == 0 {
		return nil, ErrNoItems
	}

	byCategory := map[string][]LineItem{}
	var order []string
	for _, it := range staged {
		cat := UncategorizedGroup
		p, err := s.catalog.GetProduct(ctx, it.ProductID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		if err == nil && strings.TrimSpace(p.Category) != "" {
			cat = strings.TrimSpace(p.Category)
		}
		if _, ok := byCategory[cat]; !ok {
			order = append(order, cat)
		}
		byCategory[cat] = append(byCategory[cat], it)
	}

	var (
		batches []PendingBatch
		left    []LineItem
		errs    []error
	)
	for _, cat := range order {
		b, err := s.engine.CreateBatch(ctx, cat, byCategory[cat])
		if err != nil {
			errs = append(errs, fmt.Errorf("category %s: %w", cat, err))
			left = append(left, byCategory[cat]...)
			continue
		}
		batches = append(batches, b)
	}
	s.storeLocked(groupKey, left)
	return batches, errors.Join(errs...)
}

func (s *Stager) storeLocked(groupKey string, list []LineItem) []LineItem {
	if len(list) == 0 {
		delete(s.lists, groupKey)
		return nil
	}
	s.lists[groupKey] = list
	return list
}
