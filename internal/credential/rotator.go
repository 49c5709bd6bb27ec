// Package credential implements the process-wide credential ring the
// harvester rotates through to spread load across operator accounts.
package credential

import (
	"sync"

	"github.com/replythread/harvester/internal/model"
)

// Rotator is a thread-safe round-robin ring of credential bundles. Lookups
// mutate the cursor, so every access goes through the mutex even though a
// single Next call looks pure.
type Rotator struct {
	mu      sync.Mutex
	bundles []model.CredentialBundle
	cursor  int
}

// New returns an empty Rotator.
func New() *Rotator {
	return &Rotator{}
}

// SetAll replaces the ring contents and resets the cursor.
func (r *Rotator) SetAll(bundles []model.CredentialBundle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bundles = append([]model.CredentialBundle(nil), bundles...)
	r.cursor = 0
}

// Add appends a bundle to the ring. In-flight harvests that already
// snapshotted a credential are unaffected.
func (r *Rotator) Add(b model.CredentialBundle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bundles = append(r.bundles, b)
}

// RemoveAt removes the bundle at index i, shifting the cursor back if its
// removal would otherwise overflow the shrunk ring.
func (r *Rotator) RemoveAt(i int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i < 0 || i >= len(r.bundles) {
		return
	}
	r.bundles = append(r.bundles[:i], r.bundles[i+1:]...)
	if len(r.bundles) == 0 {
		r.cursor = 0
		return
	}
	if r.cursor >= len(r.bundles) {
		r.cursor = 0
	}
}

// Count returns the number of bundles currently in the ring.
func (r *Rotator) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bundles)
}

// Next returns the bundle at the cursor and advances it modulo the ring
// size. An empty ring returns (zero value, false); the caller may still
// attempt an anonymous harvest.
func (r *Rotator) Next() (model.CredentialBundle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.bundles) == 0 {
		return model.CredentialBundle{}, false
	}
	b := r.bundles[r.cursor]
	r.cursor = (r.cursor + 1) % len(r.bundles)
	return b, true
}

// CurrentIndex returns the cursor position that will be served by the next
// call to Next.
func (r *Rotator) CurrentIndex() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cursor
}
