package ordercontext

import (
	"regexp"

	"github.com/MrWong99/barkeep/internal/order"
)

var (
	frustratedWords   = regexp.MustCompile(`\b(?:wrong|not what i|no no|ugh|seriously|come on|i said|already told|annoying|terrible)\b`)
	enthusiasticWords = regexp.MustCompile(`\b(?:awesome|great|perfect|love|amazing|excellent|fantastic|sweet|nice)\b`)
	apologeticWords   = regexp.MustCompile(`\b(?:sorry|my bad|oops|apologies|excuse me)\b`)
)

// DetectTone infers the customer's tone from the normalized text. A
// conversation that already needed clarification twice in a row turns
// apologetic so the reply can acknowledge it.
func DetectTone(text string, prev order.Context) order.Tone {
	switch {
	case frustratedWords.MatchString(text):
		return order.ToneFrustrated
	case apologeticWords.MatchString(text):
		return order.ToneApologetic
	case enthusiasticWords.MatchString(text):
		return order.ToneEnthusiastic
	case prev.ConversationState.UncertaintyLevel >= 2:
		return order.ToneApologetic
	}
	return order.ToneNeutral
}
