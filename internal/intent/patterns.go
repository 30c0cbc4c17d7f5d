package intent

import (
	"regexp"

	"github.com/MrWong99/barkeep/internal/order"
)

// Pattern is one row of a tagged pattern table.
//
// Named capture groups carry slots for later stages: "items" is an item list
// for the entity matcher, "qty" a bare quantity, "mods" modifier text and
// "code" a discount code.
type Pattern struct {
	Intent order.Intent
	Expr   *regexp.Regexp

	// Weight is the pattern specificity in [0.5, 1.0]. Anchored multi-word
	// patterns carry 0.9 to 1.0, single keyword patterns 0.6 to 0.75.
	Weight float64
}

func p(i order.Intent, expr string, weight float64) Pattern {
	return Pattern{Intent: i, Expr: regexp.MustCompile(expr), Weight: weight}
}

// System patterns run on text that still has its filler words, because the
// normalizer skips stop-word removal for system commands.
var systemPatterns = []Pattern{
	p(order.IntentCancelOrder, `^(?:cancel|clear|scrap|forget|void)(?: the| my| this)?(?: whole| entire)? (?:order|everything|tab|cart)$`, 1.0),
	p(order.IntentCancelOrder, `^(?:start over|start again|never mind everything)$`, 0.95),
	p(order.IntentCancelOrder, `\bcancel (?:the |my |this )?(?:whole |entire )?order\b`, 0.9),

	p(order.IntentHelp, `^(?:help(?: me)?|what can (?:i|you) (?:say|do)|how does this work|what are my options)$`, 1.0),
	p(order.IntentHelp, `\b(?:help|instructions)\b`, 0.7),

	p(order.IntentStop, `^(?:stop(?: listening)?|that's all|that is all|nevermind|never mind|be quiet|quiet|go to sleep|goodbye|bye)$`, 1.0),
	p(order.IntentStop, `\bstop listening\b`, 0.9),
}

var orderPatterns = []Pattern{
	p(order.IntentAddItem, `^(?:can i (?:get|have)|could i (?:get|have)|may i (?:get|have)|i(?:'d| would) like|i want|i need|i'll (?:have|take|get|do)|give me|get me|bring me|let me (?:get|have)|gimme|add|order|we'll have|we(?:'d| would) like)\s+(?P<items>.+)$`, 0.95),
	p(order.IntentAddItem, `^(?:(?:give me|get me|i'll have|can i (?:get|have)|i(?:'d| would) like)\s+)?(?P<items>another(?: 1| round)?|\d+ more|same (?:thing|again|1)|that again)$`, 0.9),
	p(order.IntentAddItem, `^(?:another|1 more)\s+(?P<items>.+)$`, 0.9),
	p(order.IntentAddItem, `^(?P<items>\d+ [a-z][a-z' ]*)$`, 0.75),
	p(order.IntentAddItem, `\b(?:add|want|get|have|order|bring)\b(?:\s+(?P<items>.+))?`, 0.6),

	p(order.IntentRemoveItem, `^(?:remove|take off|take away|drop|delete|cancel|no more|get rid|lose|skip)\s+(?P<items>.+?)(?:\s+from(?: my)? (?:order|tab|cart))?$`, 0.95),
	p(order.IntentRemoveItem, `^(?:i don't want|i do not want|don't want)\s+(?P<items>.+?)(?:\s+anymore)?$`, 0.9),
	p(order.IntentRemoveItem, `\b(?:remove|delete|take off)\b(?:\s+(?P<items>.+))?`, 0.65),

	p(order.IntentQuantityChange, `^(?:make|change)\s+(?:that|it|those|them|mine)(?:\s+to)?\s+(?P<qty>\d+)(?:\s+instead)?$`, 1.0),
	p(order.IntentQuantityChange, `^(?:make|change)\s+(?:that|it|those|them)(?:\s+to)?\s+(?P<qty>\d+)\s+(?P<items>[a-z].*?)(?:\s+instead)?$`, 0.95),
	p(order.IntentQuantityChange, `^(?:make|change)\s+(?P<items>.+?)(?:\s+to)?\s+(?P<qty>\d+)(?:\s+instead)?$`, 0.95),
	p(order.IntentQuantityChange, `^(?P<qty>\d+)\s+instead$`, 0.9),

	p(order.IntentModifyItem, `^(?:make|change|switch)\s+(?:that|it|mine|those|them)\s+(?:to\s+|into\s+)?(?P<mods>[a-z].*)$`, 0.9),
	p(order.IntentModifyItem, `^(?:make|change|switch)\s+(?P<items>.+?)\s+(?:to|into|with)\s+(?P<mods>.+)$`, 0.9),
	p(order.IntentModifyItem, `^(?P<mods>no ice|light ice|extra ice|extra lime|extra lemon|no lime|no lemon|with lime|with lemon|on rocks|neat|double|large|small|no salt|extra shot)(?:\s+(?:on|for|in|with)\s+(?P<items>.+))?$`, 0.85),
	p(order.IntentModifyItem, `\b(?:modify|change|switch)\b(?:\s+(?P<items>.+))?`, 0.6),

	p(order.IntentUndoLast, `^(?:scratch that|undo(?: that| last(?: 1| item)?)?|take that back|forget that|remove last(?: 1| item| drink)|never mind that|oops|my bad)$`, 1.0),
	p(order.IntentUndoLast, `\b(?:undo|scratch that)\b`, 0.7),
}

var managementPatterns = []Pattern{
	p(order.IntentSplitOrder, `^(?:split|divide|separate)(?: it| this| my| our)?(?: order| bill| check| tab)?(?:\s+(?:in|into|between|by|for)?\s*(?P<qty>\d+)(?:\s+(?:ways|people|of us))?)?$`, 1.0),
	p(order.IntentSplitOrder, `\b(?:separate (?:checks|bills)|split)\b`, 0.7),

	p(order.IntentApplyDiscount, `^(?:apply|use|add|redeem)\s+(?:my\s+)?(?:discount|coupon|promo(?: code)?|voucher|happy hour)(?:\s+(?:code\s+)?(?P<code>[a-z0-9]+))?$`, 1.0),
	p(order.IntentApplyDiscount, `\b(?:discount|coupon|promo|voucher|happy hour)\b`, 0.7),

	p(order.IntentCompleteOrder, `^(?:that's it|that is it|that'll be it|that'll be all|i'm done|we're done|i'm finished|done|place(?: my)? order|checkout|check out|ring (?:it|me) up|(?:complete|finish|confirm|submit|send)(?: my)? order|i'm ready to pay|ready to pay|pay|close(?: my)? tab)$`, 1.0),
	p(order.IntentCompleteOrder, `\b(?:checkout|check out|place order|pay|ring it up|that's it)\b`, 0.7),

	p(order.IntentAskPrice, `^(?:how much (?:is|are|does|do|for)|what(?:'s| is) price(?: for)?|what does|what do|price(?: for)?)\s+(?P<items>.+?)(?:\s+cost)?$`, 0.95),
	p(order.IntentAskPrice, `\b(?:how much|price|cost)\b`, 0.7),

	p(order.IntentCheckInventory, `^(?:do you (?:have|got|carry|serve|sell|stock)|have you got|you got|is there|are there|got any|any)\s+(?:any\s+)?(?P<items>.+?)(?:\s+(?:left|available|in stock|today|tonight))?$`, 0.95),
	p(order.IntentCheckInventory, `^what(?:'s| is| do you have)\s+(?:in stock|available|on tap)(?:\s+.*)?$`, 1.0),
	p(order.IntentCheckInventory, `\b(?:in stock|available|sold out|do you have)\b`, 0.7),

	p(order.IntentAskIngredients, `^(?:what(?:'s| is| goes) in(?:to)?|what(?:'s| are) (?:ingredients|recipe) (?:of|for|in)|ingredients (?:of|for|in)|recipe for|how do you make)\s+(?P<items>.+)$`, 0.95),
	p(order.IntentAskIngredients, `^what(?:'s| is| are)\s+(?P<items>.+?)\s+made\s+(?:of|with|from)$`, 0.95),
	p(order.IntentAskIngredients, `^how (?:is|are)\s+(?P<items>.+?)\s+made$`, 0.95),
	p(order.IntentAskIngredients, `\b(?:ingredients?|recipe)\b`, 0.7),
}

// DefaultPatterns is the full table in tier order.
var DefaultPatterns = concat(systemPatterns, orderPatterns, managementPatterns)

// uncertainty matches hedging words that lower confidence.
var uncertainty = regexp.MustCompile(`\b(?:maybe|perhaps|not sure|might|i think|probably|possibly|i guess|not certain|dunno|don't know)\b`)

func concat(tables ...[]Pattern) []Pattern {
	var out []Pattern
	for _, t := range tables {
		out = append(out, t...)
	}
	return out
}
