// Package catalog maintains the product list that staging draws from.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mgHariom/orderly/internal/docstore"
	"github.com/mgHariom/orderly/internal/orders"
)

var ErrEmptyName = errors.New("product name is empty")

type ProductInput struct {
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description,omitempty"`
	Category    string          `json:"category,omitempty"`
}

func (in ProductInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return ErrEmptyName
	}
	if in.Price.IsNegative() {
		return orders.ErrInvalidPrice
	}
	return nil
}

type Service struct {
	coll  *docstore.Collection[orders.Product]
	now   func() time.Time
	newID func() string
}

func NewService(b docstore.Backend) *Service {
	return &Service{
		coll:  docstore.NewCollection[orders.Product](b, orders.CollectionProducts),
		now:   time.Now,
		newID: uuid.NewString,
	}
}

func (s *Service) Create(ctx context.Context, in ProductInput) (orders.Product, error) {
	if err := in.validate(); err != nil {
		return orders.Product{}, err
	}
	now := s.now().UTC()
	p := orders.Product{
		ID:          s.newID(),
		Name:        strings.TrimSpace(in.Name),
		Price:       in.Price,
		Description: strings.TrimSpace(in.Description),
		Category:    strings.TrimSpace(in.Category),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.coll.Put(ctx, p.ID, p); err != nil {
		return orders.Product{}, orders.Unavailable(err)
	}
	return p, nil
}

// Update replaces the editable fields. Line items already staged or pending
// keep the snapshot they took.
func (s *Service) Update(ctx context.Context, id string, in ProductInput) (orders.Product, error) {
	if err := in.validate(); err != nil {
		return orders.Product{}, err
	}
	p, err := s.GetProduct(ctx, id)
	if err != nil {
		return orders.Product{}, err
	}
	p.Name = strings.TrimSpace(in.Name)
	p.Price = in.Price
	p.Description = strings.TrimSpace(in.Description)
	p.Category = strings.TrimSpace(in.Category)
	p.UpdatedAt = s.now().UTC()
	if err := s.coll.Put(ctx, p.ID, p); err != nil {
		return orders.Product{}, orders.Unavailable(err)
	}
	return p, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.coll.Delete(ctx, id); err != nil {
		return mapErr(id, err)
	}
	return nil
}

func (s *Service) GetProduct(ctx context.Context, id string) (orders.Product, error) {
	p, err := s.coll.Get(ctx, id)
	if err != nil {
		return orders.Product{}, mapErr(id, err)
	}
	return p, nil
}

// ListProducts returns products sorted by name.
func (s *Service) ListProducts(ctx context.Context) ([]orders.Product, error) {
	ps, err := s.coll.All(ctx)
	if err != nil {
		return nil, orders.Unavailable(err)
	}
	sort.SliceStable(ps, func(i, j int) bool {
		a, b := strings.ToLower(ps[i].Name), strings.ToLower(ps[j].Name)
		if a != b {
			return a < b
		}
		return ps[i].ID < ps[j].ID
	})
	return ps, nil
}

func mapErr(id string, err error) error {
	if errors.Is(err, docstore.ErrNotFound) {
		return fmt.Errorf("product %s: %w", id, orders.ErrNotFound)
	}
	return orders.Unavailable(err)
}
