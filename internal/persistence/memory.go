package persistence

import (
	"context"
	"sync"

	"github.com/replythread/harvester/internal/clock"
	"github.com/replythread/harvester/internal/model"
)

// MemoryStore is an in-process Store implementation used by tests and by the
// CLI when no database DSN is configured. It is safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	clock   clock.Clock
	config  map[string]string
	roots   map[string]model.RootPost
	replies map[string]model.Reply
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		clock:   clock.System{},
		config:  make(map[string]string),
		roots:   make(map[string]model.RootPost),
		replies: make(map[string]model.Reply),
	}
}

// GetConfig implements ConfigStore.
func (m *MemoryStore) GetConfig(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.config[key]
	return v, ok, nil
}

// SetConfig implements ConfigStore. The description is accepted but not
// stored; MemoryStore has no schema for it.
func (m *MemoryStore) SetConfig(_ context.Context, key, value, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config[key] = value
	return nil
}

// UpsertRootPost implements PostStore. CreatedAt never changes across
// upserts; LikeCount and fetched-at semantics refresh.
func (m *MemoryStore) UpsertRootPost(_ context.Context, post model.RootPost) error {
	post.Text = NormalizeMediaTags(post.Text)
	post.FetchedAt = m.clock.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.roots[post.ID]; ok {
		post.CreatedAt = existing.CreatedAt
	}
	m.roots[post.ID] = post
	return nil
}

// UpsertReply implements PostStore.
func (m *MemoryStore) UpsertReply(_ context.Context, reply model.Reply) error {
	if reply.ID == reply.RootID {
		return nil
	}
	reply.Text = NormalizeMediaTags(reply.Text)
	reply.FetchedAt = m.clock.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.replies[reply.ID]; ok {
		reply.CreatedAt = existing.CreatedAt
	}
	m.replies[reply.ID] = reply
	return nil
}

// RootPosts returns a snapshot of persisted root posts, for tests.
func (m *MemoryStore) RootPosts() []model.RootPost {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.RootPost, 0, len(m.roots))
	for _, p := range m.roots {
		out = append(out, p)
	}
	return out
}

// Replies returns a snapshot of persisted replies, excluding any row whose
// id equals its own root id, for tests.
func (m *MemoryStore) Replies() []model.Reply {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Reply, 0, len(m.replies))
	for _, r := range m.replies {
		if r.ID == r.RootID {
			continue
		}
		out = append(out, r)
	}
	return out
}

// RootPost looks up a single persisted root post, for tests.
func (m *MemoryStore) RootPost(id string) (model.RootPost, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.roots[id]
	return p, ok
}
