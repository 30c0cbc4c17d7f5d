package ordercontext

import (
	"slices"
	"strings"
	"time"

	"github.com/MrWong99/barkeep/internal/order"
)

// Turn is one processed command as seen by the context.
type Turn struct {
	// Command is the normalized text.
	Command string
	Intent  order.Intent

	// Items are the resolved order lines. For modify_item and
	// quantity_change an item with an empty Name targets the last line.
	Items []order.Item

	NeedsClarification bool
	Tone               order.Tone
}

// Applied reports what a turn did to the cart.
type Applied struct {
	// Changed are the cart lines remove_item, modify_item and
	// quantity_change touched, as they stand after the turn. For remove_item
	// Quantity is the amount taken off.
	Changed []order.Item

	// Missing are turn items that targeted no cart line.
	Missing []order.Item
}

// Advance returns the context that follows c after t at time now. c is not
// modified.
//
// Cart semantics:
//   - add_item merges lines with the same drink and modifiers and sets
//     LastOrder to the last added item
//   - remove_item lowers the quantity of the named line, dropping it at zero
//   - modify_item adds modifiers to the named (or last) line
//   - quantity_change sets the quantity of the named (or last) line
//   - undo_last drops the last line
//   - cancel_order resets everything except the command history entry
//   - complete_order empties the cart and keeps LastOrder
func Advance(c order.Context, t Turn, now time.Time) order.Context {
	out, _ := AdvanceTurn(c, t, now)
	return out
}

// AdvanceTurn is [Advance] that also reports the cart lines t touched.
func AdvanceTurn(c order.Context, t Turn, now time.Time) (order.Context, Applied) {
	out := c.Clone()
	var ap Applied

	switch t.Intent {
	case order.IntentCancelOrder:
		out = order.NewContext(now)
	case order.IntentAddItem:
		for _, it := range t.Items {
			out.CurrentItems = addLine(out.CurrentItems, it)
			last := it.Clone()
			out.LastOrder = &last
		}
	case order.IntentRemoveItem:
		for _, it := range t.Items {
			var removed order.Item
			var ok bool
			out.CurrentItems, removed, ok = removeLine(out.CurrentItems, it)
			ap.record(it, removed, ok)
		}
	case order.IntentModifyItem:
		for _, it := range t.Items {
			i := targetLine(out.CurrentItems, it.Name)
			if i >= 0 {
				line := &out.CurrentItems[i]
				for _, m := range it.Modifiers {
					if !slices.Contains(line.Modifiers, m) {
						line.Modifiers = append(line.Modifiers, m)
					}
				}
			}
			ap.recordLine(out.CurrentItems, i, it)
		}
	case order.IntentQuantityChange:
		for _, it := range t.Items {
			i := targetLine(out.CurrentItems, it.Name)
			if i >= 0 && it.Quantity > 0 {
				out.CurrentItems[i].Quantity = it.Quantity
			}
			ap.recordLine(out.CurrentItems, i, it)
		}
	case order.IntentUndoLast:
		if n := len(out.CurrentItems); n > 0 {
			out.CurrentItems = out.CurrentItems[:n-1]
		}
	case order.IntentCompleteOrder:
		out.CurrentItems = nil
	}

	refs := t.Items
	if t.Intent.TargetsLines() {
		refs = ap.Changed
	}
	if t.Intent != order.IntentCancelOrder {
		for _, it := range refs {
			if it.Name != "" {
				out = out.WithReference(it, t.Intent, now)
			}
		}
	}

	if t.Intent != "" {
		out.LastIntent = t.Intent
	}
	if t.Tone != "" {
		out.EmotionalTone = t.Tone
	}
	if t.NeedsClarification {
		out.ConversationState.UncertaintyLevel++
		out.ConversationState.PendingConfirmation = true
	} else {
		out.ConversationState = order.ConversationState{}
	}
	if t.Command != "" {
		out = out.WithCommand(t.Command)
	}
	out.Timestamp = now
	return out, ap
}

func (ap *Applied) record(want, got order.Item, ok bool) {
	if !ok {
		ap.Missing = append(ap.Missing, want.Clone())
		return
	}
	ap.Changed = append(ap.Changed, got)
}

func (ap *Applied) recordLine(items []order.Item, i int, want order.Item) {
	if i < 0 {
		ap.record(want, order.Item{}, false)
		return
	}
	ap.record(want, items[i].Clone(), true)
}

func addLine(items []order.Item, it order.Item) []order.Item {
	if it.Quantity <= 0 {
		it.Quantity = 1
	}
	for i := range items {
		if items[i].SameLine(it) {
			items[i].Quantity += it.Quantity
			return items
		}
	}
	return append(items, it.Clone())
}

// removeLine takes it off items and returns what was removed. ok is false
// when no line matched.
func removeLine(items []order.Item, it order.Item) (_ []order.Item, removed order.Item, ok bool) {
	i := targetLine(items, it.Name)
	if i < 0 {
		return items, order.Item{}, false
	}
	qty := max(it.Quantity, 1)
	removed = items[i].Clone()
	if items[i].Quantity > qty {
		items[i].Quantity -= qty
		removed.Quantity = qty
		return items, removed, true
	}
	return slices.Delete(items, i, i+1), removed, true
}

// targetLine returns the index of the newest line named name, or of the last
// line when name is empty. It returns -1 when nothing matches.
func targetLine(items []order.Item, name string) int {
	if name == "" {
		return len(items) - 1
	}
	for i := len(items) - 1; i >= 0; i-- {
		if strings.EqualFold(items[i].Name, name) {
			return i
		}
	}
	return -1
}
