// Package catalog provides the read-only drink menu the entity matcher
// resolves names against, with in-memory, YAML and PostgreSQL sources and a
// polling snapshot that keeps a local copy fresh.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by Get when no drink has the requested ID.
var ErrNotFound = errors.New("catalog: drink not found")

var errNotLoaded = errors.New("catalog: menu not loaded yet")

// Drink is one menu entry.
type Drink struct {
	ID        string  `yaml:"id" json:"id"`
	Name      string  `yaml:"name" json:"name"`
	Category  string  `yaml:"category" json:"category"`
	Inventory int     `yaml:"inventory" json:"inventory"`
	Price     float64 `yaml:"price" json:"price"`

	// Ingredients answer "what's in it" questions. Optional.
	Ingredients []string `yaml:"ingredients,omitempty" json:"ingredients,omitempty"`
}

// InStock reports whether at least one unit is available.
func (d Drink) InStock() bool { return d.Inventory > 0 }

// Store is a source of drinks. Implementations must be safe for concurrent
// use.
type Store interface {
	// List returns every drink. Order is not guaranteed.
	List(ctx context.Context) ([]Drink, error)

	// Get returns the drink with id or [ErrNotFound].
	Get(ctx context.Context, id string) (Drink, error)
}

// Validate checks a menu for empty or duplicate names and negative prices.
func Validate(drinks []Drink) error {
	var errs []error
	seen := make(map[string]bool, len(drinks))
	for i, d := range drinks {
		name := strings.ToLower(strings.TrimSpace(d.Name))
		if name == "" {
			errs = append(errs, fmt.Errorf("drinks[%d]: name must not be empty", i))
			continue
		}
		if seen[name] {
			errs = append(errs, fmt.Errorf("drinks[%d]: duplicate name %q", i, d.Name))
		}
		seen[name] = true
		if d.Price < 0 {
			errs = append(errs, fmt.Errorf("drinks[%d]: price %.2f must not be negative", i, d.Price))
		}
	}
	return errors.Join(errs...)
}

// Slug derives a stable ID from a drink name: "Diet Coke" becomes
// "diet-coke".
func Slug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
