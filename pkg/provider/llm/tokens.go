package llm

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// perMessageOverhead approximates the role and separator tokens the chat
// format adds around every message.
const perMessageOverhead = 4

const defaultEncoding = "cl100k_base"

var (
	encMu    sync.Mutex
	encCache = map[string]*tiktoken.Tiktoken{}
)

// encodingFor returns a cached tokenizer for model, falling back to
// cl100k_base for models tiktoken does not know. It returns nil when no
// encoding can be loaded (for example when the BPE files are unreachable).
func encodingFor(model string) *tiktoken.Tiktoken {
	key := strings.ToLower(model)

	encMu.Lock()
	defer encMu.Unlock()
	if enc, ok := encCache[key]; ok {
		return enc
	}

	enc, err := tiktoken.EncodingForModel(key)
	if err != nil {
		enc, err = tiktoken.GetEncoding(defaultEncoding)
	}
	if err != nil {
		slog.Debug("llm: tiktoken unavailable, using heuristic", "model", model, "err", err)
		enc = nil
	}
	encCache[key] = enc
	return enc
}

// CountTokens estimates the context tokens messages consume for model.
// The tiktoken encoding is used when available; otherwise a chars/4
// approximation is returned, which overcounts slightly for English text.
func CountTokens(model string, messages []Message) int {
	enc := encodingFor(model)
	total := 0
	for _, m := range messages {
		total += perMessageOverhead
		if enc != nil {
			total += len(enc.Encode(m.Content, nil, nil))
			if m.Name != "" {
				total += len(enc.Encode(m.Name, nil, nil))
			}
			continue
		}
		total += (len(m.Content) + 3) / 4
	}
	return total
}
