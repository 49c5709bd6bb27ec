// Package persistence defines the narrow storage port the scraping core
// depends on. The relational schema and ORM are external collaborators;
// this package only describes the contract the core needs.
package persistence

import (
	"context"

	"github.com/replythread/harvester/internal/model"
)

// ConfigStore is a narrow read/write port over the external KV config table.
type ConfigStore interface {
	GetConfig(ctx context.Context, key string) (string, bool, error)
	SetConfig(ctx context.Context, key, value, description string) error
}

// PostStore persists root posts and replies. Upserts are idempotent on ID.
type PostStore interface {
	UpsertRootPost(ctx context.Context, post model.RootPost) error
	UpsertReply(ctx context.Context, reply model.Reply) error
}

// Store is the full persistence port the scraping core consumes.
type Store interface {
	ConfigStore
	PostStore
}

// Config keys read/written by the core.
const (
	KeyXCookies            = "X_COOKIES"
	KeyXCookiesList        = "X_COOKIES_LIST"
	KeyApifyToken          = "APIFY_TOKEN"
	KeyProxyURL            = "PROXY_URL"
	KeyScrapePacingPreset  = "SCRAPE_PACING_PRESET"
)
