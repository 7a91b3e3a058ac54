package bus

import (
	"sync"
	"time"

	"github.com/nextlevelbuilder/wagate/internal/clock"
)

const (
	// DefaultDedupeTTL is how long a message ID is remembered.
	DefaultDedupeTTL = 20 * time.Minute
	// DefaultDedupeMax bounds the number of remembered IDs.
	DefaultDedupeMax = 5000
)

// DedupeCache is a TTL-based deduplication cache for inbound message IDs.
// Entries expire after ttl and are pruned lazily on each check.
type DedupeCache struct {
	mu      sync.Mutex
	entries map[string]int64 // key → unix millis
	ttl     time.Duration
	maxSize int
	clock   clock.Clock
}

// NewDedupeCache creates a dedupe cache. clk may be nil for the wall clock.
func NewDedupeCache(ttl time.Duration, maxSize int, clk clock.Clock) *DedupeCache {
	if clk == nil {
		clk = clock.Real{}
	}
	return &DedupeCache{
		entries: make(map[string]int64, 256),
		ttl:     ttl,
		maxSize: maxSize,
		clock:   clk,
	}
}

// IsDuplicate reports whether key was already seen within the TTL window.
// A fresh key is recorded for future checks.
func (d *DedupeCache) IsDuplicate(key string) bool {
	now := d.clock.Now().UnixMilli()
	cutoff := now - d.ttl.Milliseconds()

	d.mu.Lock()
	defer d.mu.Unlock()

	if ts, ok := d.entries[key]; ok && ts >= cutoff {
		return true
	}

	d.cleanup(cutoff)
	d.entries[key] = now
	return false
}

// Len returns the number of tracked keys.
func (d *DedupeCache) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

// cleanup removes expired entries and evicts arbitrary ones while at capacity.
// Must be called with d.mu held.
func (d *DedupeCache) cleanup(cutoff int64) {
	for k, ts := range d.entries {
		if ts < cutoff {
			delete(d.entries, k)
		}
	}

	if d.maxSize > 0 && len(d.entries) >= d.maxSize {
		excess := len(d.entries) - d.maxSize + 1
		for k := range d.entries {
			if excess <= 0 {
				break
			}
			delete(d.entries, k)
			excess--
		}
	}
}
