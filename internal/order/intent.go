// Package order holds the vocabulary shared by the understanding pipeline:
// intents, order lines, the session order context and the parsing of item
// phrases such as "2 mojitos and a diet coke".
package order

// Intent is the action a spoken command requests.
type Intent string

// System tier.
const (
	IntentCancelOrder Intent = "cancel_order"
	IntentHelp        Intent = "help"
	IntentStop        Intent = "stop"
)

// Order tier.
const (
	IntentAddItem        Intent = "add_item"
	IntentRemoveItem     Intent = "remove_item"
	IntentModifyItem     Intent = "modify_item"
	IntentQuantityChange Intent = "quantity_change"
	IntentUndoLast       Intent = "undo_last"
)

// Management tier.
const (
	IntentSplitOrder     Intent = "split_order"
	IntentApplyDiscount  Intent = "apply_discount"
	IntentCompleteOrder  Intent = "complete_order"
	IntentAskPrice       Intent = "ask_price"
	IntentCheckInventory Intent = "check_inventory"
	IntentAskIngredients Intent = "ask_ingredients"
)

// IntentUnknown is reported when no pattern matched at all.
const IntentUnknown Intent = "unknown"

// Tier orders intents by priority. Lower tiers win ties.
type Tier int

const (
	TierSystem Tier = iota
	TierOrder
	TierManagement
	TierNone
)

// String implements [fmt.Stringer].
func (t Tier) String() string {
	switch t {
	case TierSystem:
		return "system"
	case TierOrder:
		return "order"
	case TierManagement:
		return "management"
	}
	return "none"
}

// Intents lists every classifiable intent in tier order.
var Intents = []Intent{
	IntentCancelOrder, IntentHelp, IntentStop,
	IntentAddItem, IntentRemoveItem, IntentModifyItem, IntentQuantityChange, IntentUndoLast,
	IntentSplitOrder, IntentApplyDiscount, IntentCompleteOrder, IntentAskPrice, IntentCheckInventory,
	IntentAskIngredients,
}

// Tier reports the priority tier of i.
func (i Intent) Tier() Tier {
	switch i {
	case IntentCancelOrder, IntentHelp, IntentStop:
		return TierSystem
	case IntentAddItem, IntentRemoveItem, IntentModifyItem, IntentQuantityChange, IntentUndoLast:
		return TierOrder
	case IntentSplitOrder, IntentApplyDiscount, IntentCompleteOrder, IntentAskPrice, IntentCheckInventory,
		IntentAskIngredients:
		return TierManagement
	}
	return TierNone
}

// Valid reports whether i is one of [Intents].
func (i Intent) Valid() bool { return i.Tier() != TierNone }

// ChangesCart reports whether a successful command with this intent mutates
// the cart and should be published to the cart layer.
func (i Intent) ChangesCart() bool {
	switch i {
	case IntentAddItem, IntentRemoveItem, IntentModifyItem, IntentQuantityChange,
		IntentUndoLast, IntentCancelOrder, IntentCompleteOrder:
		return true
	}
	return false
}

// NeedsItems reports whether the intent operates on named drinks and thus
// runs the entity matcher.
func (i Intent) NeedsItems() bool {
	switch i {
	case IntentAddItem, IntentRemoveItem, IntentModifyItem, IntentQuantityChange,
		IntentAskPrice, IntentCheckInventory, IntentAskIngredients:
		return true
	}
	return false
}

// TargetsLines reports whether the intent changes existing cart lines rather
// than adding new ones.
func (i Intent) TargetsLines() bool {
	switch i {
	case IntentRemoveItem, IntentModifyItem, IntentQuantityChange:
		return true
	}
	return false
}
