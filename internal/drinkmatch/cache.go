package drinkmatch

import (
	"strings"
	"sync"
	"time"
)

// Cache limits.
const (
	MaxVariations       = 5
	MaxRecentReferences = 10
	DefaultCacheSize    = 64
)

// Reference is a vague phrase that resolved to an entry.
type Reference struct {
	Phrase    string    `json:"phrase"`
	Timestamp time.Time `json:"timestamp"`
}

// CacheEntry is what the matcher remembers about one drink.
type CacheEntry struct {
	CanonicalName string `json:"canonicalName"`

	// Variations are spoken forms that resolved to this drink, most recent
	// first, capped at [MaxVariations].
	Variations []string `json:"variations"`

	MatchCount  int       `json:"matchCount"`
	LastMatched time.Time `json:"lastMatched"`

	// RecentReferences are capped at [MaxRecentReferences], newest first.
	RecentReferences []Reference `json:"recentReferences"`
}

func (e *CacheEntry) clone() CacheEntry {
	out := *e
	out.Variations = append([]string(nil), e.Variations...)
	out.RecentReferences = append([]Reference(nil), e.RecentReferences...)
	return out
}

// Cache is a small LRU-like store of recently matched drinks. When full the
// entry matched longest ago is evicted. It is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	size    int
	entries map[string]*CacheEntry
}

// NewCache returns a cache holding up to size drinks; size <= 0 selects
// [DefaultCacheSize].
func NewCache(size int) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &Cache{size: size, entries: make(map[string]*CacheEntry)}
}

func key(name string) string { return strings.ToLower(strings.TrimSpace(name)) }

// entry returns the entry for name, creating it (and evicting) as needed.
// The caller holds c.mu.
func (c *Cache) entry(name string) *CacheEntry {
	k := key(name)
	if e, ok := c.entries[k]; ok {
		return e
	}
	if len(c.entries) >= c.size {
		var oldest string
		var oldestAt time.Time
		for ek, e := range c.entries {
			if oldest == "" || e.LastMatched.Before(oldestAt) {
				oldest, oldestAt = ek, e.LastMatched
			}
		}
		delete(c.entries, oldest)
	}
	e := &CacheEntry{CanonicalName: name}
	c.entries[k] = e
	return e
}

// Record notes that phrase resolved to the drink called name. phrase is
// stored as a variation unless it is the canonical name itself.
func (c *Cache) Record(name, phrase string, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entry(name)
	e.MatchCount++
	e.LastMatched = now

	p := key(phrase)
	if p == "" || p == key(name) {
		return
	}
	vars := make([]string, 0, MaxVariations)
	vars = append(vars, p)
	for _, v := range e.Variations {
		if v != p && len(vars) < MaxVariations {
			vars = append(vars, v)
		}
	}
	e.Variations = vars
}

// RecordReference notes that a reference phrase resolved to name. It does
// not add a variation, so reference phrases stay subject to the freshness
// window.
func (c *Cache) RecordReference(name, phrase string, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entry(name)
	e.MatchCount++
	e.LastMatched = now
	refs := make([]Reference, 0, MaxRecentReferences)
	refs = append(refs, Reference{Phrase: phrase, Timestamp: now})
	for _, r := range e.RecentReferences {
		if len(refs) == MaxRecentReferences {
			break
		}
		refs = append(refs, r)
	}
	e.RecentReferences = refs
}

// LookupVariation returns the canonical name a known variation belongs to.
// When several entries share it the most recently matched wins.
func (c *Cache) LookupVariation(phrase string) (string, bool) {
	p := key(phrase)
	c.mu.Lock()
	defer c.mu.Unlock()
	var best *CacheEntry
	for _, e := range c.entries {
		for _, v := range e.Variations {
			if v == p && (best == nil || e.LastMatched.After(best.LastMatched)) {
				best = e
			}
		}
	}
	if best == nil {
		return "", false
	}
	return best.CanonicalName, true
}

// Entry returns a copy of the entry for name.
func (c *Cache) Entry(name string) (CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key(name)]
	if !ok {
		return CacheEntry{}, false
	}
	return e.clone(), true
}

// Freshest returns the most recently matched entry, provided it was matched
// within window of now.
func (c *Cache) Freshest(now time.Time, window time.Duration) (CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var best *CacheEntry
	for _, e := range c.entries {
		if best == nil || e.LastMatched.After(best.LastMatched) {
			best = e
		}
	}
	if best == nil || now.Sub(best.LastMatched) > window {
		return CacheEntry{}, false
	}
	return best.clone(), true
}

// Entries returns copies of every entry.
func (c *Cache) Entries() []CacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]CacheEntry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e.clone())
	}
	return out
}
