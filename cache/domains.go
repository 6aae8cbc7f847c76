// Package cache provides a thread-safe domain to address cache with
// per-entry time-based expiry.
package cache

import (
	"sync"
	"time"

	"github.com/credprobe-dev/credprobe/domain/ports"
)

// entry is one cached binding. expiresAt is an instant from the cache's
// clock, so wall-clock adjustments never expire or resurrect entries.
type entry struct {
	address   string
	expiresAt time.Time
}

// DomainsCache maps domain names to address strings. Every entry expires
// a fixed TTL after insertion. All operations are safe for concurrent use;
// each takes one exclusive lock over the whole map. Capacity is unbounded.
type DomainsCache struct {
	mu      sync.Mutex
	entries map[string]entry
	clock   ports.Clock
	ttl     time.Duration
}

// Option configures a DomainsCache.
type Option func(*DomainsCache)

// WithClock sets the time source. Tests inject a manual clock here;
// production code keeps the default monotonic system clock.
func WithClock(c ports.Clock) Option {
	return func(d *DomainsCache) {
		if c != nil {
			d.clock = c
		}
	}
}

// New creates a DomainsCache whose entries live for ttl after insertion.
// The TTL is fixed for the cache's lifetime.
func New(ttl time.Duration, opts ...Option) *DomainsCache {
	d := &DomainsCache{
		entries: make(map[string]entry),
		clock:   ports.ClockFunc(time.Now),
		ttl:     ttl,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Insert records the address for name, replacing any prior entry and
// restarting its TTL.
func (d *DomainsCache) Insert(name, address string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries[name] = entry{
		address:   address,
		expiresAt: d.clock.Now().Add(d.ttl),
	}
}

// Lookup returns the cached address for name. An entry found expired is
// removed during the lookup and reported absent.
func (d *DomainsCache) Lookup(name string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.entries[name]
	if !ok {
		return "", false
	}
	if !d.clock.Now().Before(e.expiresAt) {
		delete(d.entries, name)
		return "", false
	}
	return e.address, true
}

// Sweep removes every expired entry.
func (d *DomainsCache) Sweep() {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.clock.Now()
	for name, e := range d.entries {
		if !now.Before(e.expiresAt) {
			delete(d.entries, name)
		}
	}
}

// Len returns the number of entries currently stored, expired or not.
func (d *DomainsCache) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}
