// Package progress implements the process-wide keyed progress register UI
// consumers poll while a harvest runs. It is a write-only side channel from
// the core's perspective: nothing here pushes to a transport.
package progress

import (
	"sync"
	"time"

	"github.com/replythread/harvester/internal/clock"
	"github.com/replythread/harvester/internal/model"
)

// Sink observes every Set call, in addition to the channel's own storage,
// without coupling the channel to whatever the sink mirrors into. The app
// installs no sink, so progress is not exported to Prometheus.
type Sink interface {
	Observe(targetKey string, record model.ScrapeProgress)
}

// record pairs a progress snapshot with its last-updated instant.
type record struct {
	progress    model.ScrapeProgress
	lastUpdated time.Time
}

// Channel is the process-wide map from harvest target to latest progress.
// Safe for concurrent use.
type Channel struct {
	mu     sync.RWMutex
	byKey  map[string]record
	clock  clock.Clock
	sinks  []Sink
}

// New returns an empty Channel.
func New(sinks ...Sink) *Channel {
	return &Channel{
		byKey: make(map[string]record),
		clock: clock.System{},
		sinks: sinks,
	}
}

// Set merges new into the stored record for targetKey: RepliesFound takes
// the max of the previous and new value, every other field is overwritten.
func (c *Channel) Set(targetKey string, next model.ScrapeProgress) {
	c.mu.Lock()
	prev, existed := c.byKey[targetKey]
	if existed && prev.progress.RepliesFound > next.RepliesFound {
		next.RepliesFound = prev.progress.RepliesFound
	}
	next.UpdatedAt = c.clock.Now()
	c.byKey[targetKey] = record{progress: next, lastUpdated: next.UpdatedAt}
	c.mu.Unlock()

	for _, s := range c.sinks {
		s.Observe(targetKey, next)
	}
}

// Get returns the current record for targetKey, or false if none exists.
func (c *Channel) Get(targetKey string) (model.ScrapeProgress, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.byKey[targetKey]
	return r.progress, ok
}

// Clear resets the stored record for targetKey before a new run starts.
func (c *Channel) Clear(targetKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byKey, targetKey)
}

// Sweep removes any record whose last update is older than ttl, bounding
// memory growth from harvests a UI never polled to completion.
func (c *Channel) Sweep(ttl time.Duration) {
	cutoff := c.clock.Now().Add(-ttl)
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, r := range c.byKey {
		if r.lastUpdated.Before(cutoff) {
			delete(c.byKey, key)
		}
	}
}
