package order_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/MrWong99/barkeep/internal/order"
)

func TestContext_WithReferenceCapsNewestFirst(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 1, 1, 20, 0, 0, 0, time.UTC)
	c := order.NewContext(now)
	for i := range 7 {
		c = c.WithReference(order.Item{Name: fmt.Sprintf("drink-%d", i), Quantity: 1}, order.IntentAddItem, now)
	}
	if len(c.ReferencedItems) != order.MaxReferencedItems {
		t.Fatalf("len = %d, want %d", len(c.ReferencedItems), order.MaxReferencedItems)
	}
	if got := c.ReferencedItems[0].Item.Name; got != "drink-6" {
		t.Errorf("newest = %q, want drink-6", got)
	}
	if got := c.ReferencedItems[4].Item.Name; got != "drink-2" {
		t.Errorf("oldest kept = %q, want drink-2", got)
	}
}

func TestContext_WithCommandCaps(t *testing.T) {
	t.Parallel()
	c := order.NewContext(time.Now())
	for i := range 12 {
		c = c.WithCommand(fmt.Sprintf("cmd %d", i))
	}
	if len(c.PreviousCommands) != order.MaxPreviousCommands {
		t.Fatalf("len = %d", len(c.PreviousCommands))
	}
	if c.PreviousCommands[0] != "cmd 2" || c.PreviousCommands[9] != "cmd 11" {
		t.Errorf("got %v", c.PreviousCommands)
	}
}

func TestContext_CloneIsDeep(t *testing.T) {
	t.Parallel()
	c := order.NewContext(time.Now())
	c.CurrentItems = []order.Item{{Name: "Mojito", Quantity: 1, Modifiers: []string{"no ice"}}}
	c.LastOrder = &order.Item{Name: "Mojito", Quantity: 1}

	cp := c.Clone()
	cp.CurrentItems[0].Modifiers[0] = "extra lime"
	cp.LastOrder.Quantity = 5

	if c.CurrentItems[0].Modifiers[0] != "no ice" {
		t.Error("clone shares modifier slice")
	}
	if c.LastOrder.Quantity != 1 {
		t.Error("clone shares LastOrder")
	}
}

func TestContext_ReferenceTarget(t *testing.T) {
	t.Parallel()
	now := time.Now()
	c := order.NewContext(now)
	if _, ok := c.ReferenceTarget(order.RefPrevious); ok {
		t.Fatal("empty context should have no target")
	}
	c.LastOrder = &order.Item{Name: "Mojito", Quantity: 2}
	c.CurrentItems = []order.Item{{Name: "Mojito", Quantity: 2}, {Name: "Beer", Quantity: 1}}
	c = c.WithReference(order.Item{Name: "Diet Coke", Quantity: 1}, order.IntentAskPrice, now)

	tests := []struct {
		rt   order.ReferenceType
		want string
	}{
		{order.RefPrevious, "Mojito"},
		{order.RefCurrent, "Diet Coke"},
		{order.RefLast, "Beer"},
	}
	for _, tt := range tests {
		got, ok := c.ReferenceTarget(tt.rt)
		if !ok || got.Name != tt.want {
			t.Errorf("ReferenceTarget(%s) = %q, %v; want %q", tt.rt, got.Name, ok, tt.want)
		}
	}
}

func TestItem_SameLine(t *testing.T) {
	t.Parallel()
	a := order.Item{Name: "Mojito", Modifiers: []string{"no ice", "large"}}
	b := order.Item{Name: "mojito", Modifiers: []string{"large", "no ice"}}
	if !a.SameLine(b) {
		t.Error("expected same line")
	}
	if a.SameLine(order.Item{Name: "Mojito"}) {
		t.Error("different modifiers must not merge")
	}
}

func TestIntent_Tier(t *testing.T) {
	t.Parallel()
	for _, i := range order.Intents {
		if !i.Valid() {
			t.Errorf("%s should be valid", i)
		}
	}
	if order.IntentUnknown.Valid() {
		t.Error("unknown must not be valid")
	}
	if order.IntentStop.Tier() != order.TierSystem || order.IntentAskPrice.Tier() != order.TierManagement {
		t.Error("tier mapping wrong")
	}
	if order.IntentAskIngredients.Tier() != order.TierManagement || !order.IntentAskIngredients.NeedsItems() || order.IntentAskIngredients.ChangesCart() {
		t.Error("ask_ingredients mapping wrong")
	}
}

func TestIntent_TargetsLines(t *testing.T) {
	t.Parallel()
	for _, i := range order.Intents {
		want := i == order.IntentRemoveItem || i == order.IntentModifyItem || i == order.IntentQuantityChange
		if got := i.TargetsLines(); got != want {
			t.Errorf("%s.TargetsLines() = %v, want %v", i, got, want)
		}
	}
}
