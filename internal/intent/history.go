package intent

import (
	"sync"
	"time"

	"github.com/MrWong99/barkeep/internal/order"
)

// DefaultHistorySize is the capacity of a [History] ring.
const DefaultHistorySize = 10

// Entry is one classified command.
type Entry struct {
	Command    string       `json:"command"`
	Intent     order.Intent `json:"intent"`
	Confidence float64      `json:"confidence"`
	Timestamp  time.Time    `json:"timestamp"`
	Success    bool         `json:"success"`
}

// History is a fixed-size ring of recent commands. It is safe for
// concurrent use.
type History struct {
	mu   sync.Mutex
	buf  []Entry
	next int
	full bool
}

// NewHistory returns a ring holding size entries; size <= 0 selects
// [DefaultHistorySize].
func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{buf: make([]Entry, size)}
}

// Add records e, overwriting the oldest entry when full.
func (h *History) Add(e Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.buf[h.next] = e
	h.next = (h.next + 1) % len(h.buf)
	if h.next == 0 {
		h.full = true
	}
}

// Entries returns the recorded entries, oldest first.
func (h *History) Entries() []Entry {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.full {
		return append([]Entry(nil), h.buf[:h.next]...)
	}
	out := make([]Entry, 0, len(h.buf))
	out = append(out, h.buf[h.next:]...)
	return append(out, h.buf[:h.next]...)
}

// LastSuccessful returns the newest successful entry.
func (h *History) LastSuccessful() (Entry, bool) {
	entries := h.Entries()
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Success {
			return entries[i], true
		}
	}
	return Entry{}, false
}
