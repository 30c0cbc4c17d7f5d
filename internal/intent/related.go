package intent

import (
	"slices"

	"github.com/MrWong99/barkeep/internal/order"
)

// Related is the adjacency table used for the follow-up boost: when the
// previous turn's intent lists the current winner, confidence is multiplied
// by [RelatedBoost].
var Related = map[order.Intent][]order.Intent{
	order.IntentAddItem:        {order.IntentModifyItem, order.IntentQuantityChange, order.IntentUndoLast, order.IntentRemoveItem},
	order.IntentRemoveItem:     {order.IntentAddItem, order.IntentUndoLast},
	order.IntentModifyItem:     {order.IntentAddItem, order.IntentQuantityChange},
	order.IntentQuantityChange: {order.IntentAddItem, order.IntentModifyItem},
	order.IntentUndoLast:       {order.IntentAddItem},
	order.IntentCompleteOrder:  {order.IntentSplitOrder, order.IntentApplyDiscount},
	order.IntentSplitOrder:     {order.IntentCompleteOrder},
	order.IntentApplyDiscount:  {order.IntentCompleteOrder},
	order.IntentAskIngredients: {order.IntentAddItem, order.IntentAskPrice},
}

// IsRelated reports whether cur is a natural follow-up to prev.
func IsRelated(prev, cur order.Intent) bool {
	return slices.Contains(Related[prev], cur)
}
