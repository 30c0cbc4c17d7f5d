package order

import (
	"slices"
	"time"
)

// Caps on the rolling context lists.
const (
	MaxReferencedItems  = 5
	MaxPreviousCommands = 10
)

// Tone is the emotional register detected from the customer.
type Tone string

const (
	ToneNeutral      Tone = "neutral"
	ToneEnthusiastic Tone = "enthusiastic"
	ToneApologetic   Tone = "apologetic"
	ToneFrustrated   Tone = "frustrated"
)

// ReferenceType says which earlier item a vague phrase points at.
type ReferenceType string

const (
	RefPrevious ReferenceType = "previous"
	RefCurrent  ReferenceType = "current"
	RefLast     ReferenceType = "last"
)

// Item is one order line.
type Item struct {
	Name      string   `json:"name"`
	Quantity  int      `json:"quantity"`
	Modifiers []string `json:"modifiers,omitempty"`
	ID        string   `json:"id,omitempty"`
	Price     float64  `json:"price,omitempty"`
}

// Clone returns a deep copy of it.
func (it Item) Clone() Item {
	it.Modifiers = slices.Clone(it.Modifiers)
	return it
}

// SameLine reports whether it and other describe the same drink with the
// same modifiers and can be merged into one line.
func (it Item) SameLine(other Item) bool {
	if !sameName(it.Name, other.Name) || len(it.Modifiers) != len(other.Modifiers) {
		return false
	}
	a, b := slices.Clone(it.Modifiers), slices.Clone(other.Modifiers)
	slices.Sort(a)
	slices.Sort(b)
	return slices.Equal(a, b)
}

// ConversationState tracks how well the exchange is going.
type ConversationState struct {
	UncertaintyLevel    int  `json:"uncertaintyLevel"`
	PendingConfirmation bool `json:"pendingConfirmation"`
}

// ReferencedItem is an entry of [Context.ReferencedItems].
type ReferencedItem struct {
	Item      Item      `json:"item"`
	Timestamp time.Time `json:"timestamp"`
	Action    Intent    `json:"action"`
}

// Context is the per-session conversational and order state. It is a value:
// stages receive a copy and return an updated copy.
type Context struct {
	LastOrder         *Item             `json:"lastOrder,omitempty"`
	CurrentItems      []Item            `json:"currentItems,omitempty"`
	LastIntent        Intent            `json:"lastIntent,omitempty"`
	EmotionalTone     Tone              `json:"emotionalTone"`
	ConversationState ConversationState `json:"conversationState"`
	ReferencedItems   []ReferencedItem  `json:"referencedItems"`
	PreviousCommands  []string          `json:"previousCommands"`

	// Timestamp is the time of the last update; expiry is measured from it.
	Timestamp time.Time `json:"timestamp"`
}

// NewContext returns a context with neutral defaults stamped at now.
func NewContext(now time.Time) Context {
	return Context{
		EmotionalTone:    ToneNeutral,
		ReferencedItems:  []ReferencedItem{},
		PreviousCommands: []string{},
		Timestamp:        now,
	}
}

// Clone returns a deep copy of c.
func (c Context) Clone() Context {
	if c.LastOrder != nil {
		lo := c.LastOrder.Clone()
		c.LastOrder = &lo
	}
	if c.CurrentItems != nil {
		items := make([]Item, len(c.CurrentItems))
		for i, it := range c.CurrentItems {
			items[i] = it.Clone()
		}
		c.CurrentItems = items
	}
	refs := make([]ReferencedItem, len(c.ReferencedItems))
	for i, r := range c.ReferencedItems {
		r.Item = r.Item.Clone()
		refs[i] = r
	}
	c.ReferencedItems = refs
	c.PreviousCommands = append([]string{}, c.PreviousCommands...)
	return c
}

// WithReference returns a copy of c with item pushed to the front of
// ReferencedItems, dropping the oldest entry beyond [MaxReferencedItems].
func (c Context) WithReference(item Item, action Intent, now time.Time) Context {
	out := c.Clone()
	refs := make([]ReferencedItem, 0, MaxReferencedItems)
	refs = append(refs, ReferencedItem{Item: item.Clone(), Timestamp: now, Action: action})
	for _, r := range out.ReferencedItems {
		if len(refs) == MaxReferencedItems {
			break
		}
		refs = append(refs, r)
	}
	out.ReferencedItems = refs
	return out
}

// WithCommand returns a copy of c with cmd appended to PreviousCommands,
// keeping the newest [MaxPreviousCommands].
func (c Context) WithCommand(cmd string) Context {
	out := c.Clone()
	out.PreviousCommands = append(out.PreviousCommands, cmd)
	if n := len(out.PreviousCommands); n > MaxPreviousCommands {
		out.PreviousCommands = out.PreviousCommands[n-MaxPreviousCommands:]
	}
	return out
}

// MostRecentReference returns the newest referenced item, if any.
func (c Context) MostRecentReference() (ReferencedItem, bool) {
	if len(c.ReferencedItems) == 0 {
		return ReferencedItem{}, false
	}
	return c.ReferencedItems[0], true
}

// ReferenceTarget returns the item a vague reference of type rt points at.
// previous is the last ordered item, current the item most recently talked
// about, last the final line in the cart.
func (c Context) ReferenceTarget(rt ReferenceType) (Item, bool) {
	switch rt {
	case RefPrevious:
		if c.LastOrder != nil {
			return c.LastOrder.Clone(), true
		}
	case RefCurrent:
		if r, ok := c.MostRecentReference(); ok {
			return r.Item.Clone(), true
		}
		if c.LastOrder != nil {
			return c.LastOrder.Clone(), true
		}
	case RefLast:
		if n := len(c.CurrentItems); n > 0 {
			return c.CurrentItems[n-1].Clone(), true
		}
	}
	return Item{}, false
}

// CartTotal returns the summed price of the current items.
func (c Context) CartTotal() float64 {
	var total float64
	for _, it := range c.CurrentItems {
		total += it.Price * float64(it.Quantity)
	}
	return total
}
