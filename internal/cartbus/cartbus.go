// Package cartbus publishes order deltas to the cart and UI layer.
package cartbus

import (
	"context"
	"time"

	"github.com/MrWong99/barkeep/internal/order"
)

// Delta is the change one command made to a session's cart.
type Delta struct {
	SessionID string       `json:"sessionId"`
	Intent    order.Intent `json:"intent"`

	// Items are the lines the command named.
	Items []order.Item `json:"items"`

	// Cart is the full cart after the command.
	Cart  []order.Item `json:"cart"`
	Total float64      `json:"total"`

	Timestamp time.Time `json:"timestamp"`
}

// Publisher delivers deltas. Implementations must be safe for concurrent
// use.
type Publisher interface {
	Publish(ctx context.Context, d Delta) error
	Close()
}

// Nop discards every delta. It is used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Delta) error { return nil }
func (Nop) Close()                               {}

var _ Publisher = Nop{}
