package catalog

import (
	"context"
	"slices"
	"strings"
	"sync"
)

var _ Store = (*MemStore)(nil)

// MemStore is an in-memory [Store], used for YAML menus and tests.
type MemStore struct {
	mu     sync.RWMutex
	drinks map[string]Drink
}

// NewMemStore returns a store holding drinks. Drinks without an ID get
// [Slug] of their name.
func NewMemStore(drinks ...Drink) *MemStore {
	s := &MemStore{drinks: make(map[string]Drink, len(drinks))}
	for _, d := range drinks {
		s.Upsert(d)
	}
	return s
}

// List implements [Store.List]. Drinks are sorted by name.
func (s *MemStore) List(_ context.Context) ([]Drink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Drink, 0, len(s.drinks))
	for _, d := range s.drinks {
		out = append(out, d)
	}
	slices.SortFunc(out, func(a, b Drink) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

// Get implements [Store.Get].
func (s *MemStore) Get(_ context.Context, id string) (Drink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.drinks[id]
	if !ok {
		return Drink{}, ErrNotFound
	}
	return d, nil
}

// Upsert adds or replaces d and returns it with its ID set.
func (s *MemStore) Upsert(d Drink) Drink {
	if d.ID == "" {
		d.ID = Slug(d.Name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drinks[d.ID] = d
	return d
}

// SetInventory updates the stock level of id.
func (s *MemStore) SetInventory(id string, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drinks[id]
	if !ok {
		return ErrNotFound
	}
	d.Inventory = n
	s.drinks[id] = d
	return nil
}
