package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver

	"github.com/replythread/harvester/internal/model"
)

// PostgresStore implements Store against the relational schema described in
// SPEC_FULL.md §3: root_posts, replies, app_config.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore connects to dsn and verifies the connection is alive.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Close releases the underlying connection pool.
func (p *PostgresStore) Close() error {
	if err := p.db.Close(); err != nil {
		return fmt.Errorf("close postgres: %w", err)
	}
	return nil
}

// GetConfig implements ConfigStore.
func (p *PostgresStore) GetConfig(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := p.db.GetContext(ctx, &value, `SELECT value FROM app_config WHERE key = $1`, key)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", false, nil
	case err != nil:
		return "", false, fmt.Errorf("get config %s: %w", key, err)
	}
	return value, true, nil
}

// SetConfig implements ConfigStore.
func (p *PostgresStore) SetConfig(ctx context.Context, key, value, description string) error {
	const query = `
		INSERT INTO app_config (key, value, description, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, description = EXCLUDED.description, updated_at = NOW()
	`
	if _, err := p.db.ExecContext(ctx, query, key, value, description); err != nil {
		return fmt.Errorf("set config %s: %w", key, err)
	}
	return nil
}

// UpsertRootPost implements PostStore. CreatedAt is only set on insert; a
// later observation refreshes LikeCount and fetched_at but not CreatedAt.
func (p *PostgresStore) UpsertRootPost(ctx context.Context, post model.RootPost) error {
	post.Text = NormalizeMediaTags(post.Text)
	const query = `
		INSERT INTO root_posts (id, author_name, author_handle, text, created_at, like_count, reply_count, repost_count, fetched_at)
		VALUES (:id, :author_name, :author_handle, :text, :created_at, :like_count, :reply_count, :repost_count, NOW())
		ON CONFLICT (id) DO UPDATE SET
			author_name = EXCLUDED.author_name,
			author_handle = EXCLUDED.author_handle,
			text = EXCLUDED.text,
			like_count = EXCLUDED.like_count,
			reply_count = EXCLUDED.reply_count,
			repost_count = EXCLUDED.repost_count,
			fetched_at = NOW()
	`
	if _, err := p.db.NamedExecContext(ctx, query, post); err != nil {
		return fmt.Errorf("upsert root post %s: %w", post.ID, err)
	}
	return nil
}

// UpsertReply implements PostStore.
func (p *PostgresStore) UpsertReply(ctx context.Context, reply model.Reply) error {
	if reply.ID == reply.RootID {
		return nil
	}
	reply.Text = NormalizeMediaTags(reply.Text)
	const query = `
		INSERT INTO replies (id, root_id, author_id, author_name, author_handle, text, created_at, like_count, reply_to, fetched_at)
		VALUES (:id, :root_id, :author_id, :author_name, :author_handle, :text, :created_at, :like_count, :reply_to, NOW())
		ON CONFLICT (id) DO UPDATE SET
			author_name = EXCLUDED.author_name,
			author_handle = EXCLUDED.author_handle,
			text = EXCLUDED.text,
			like_count = EXCLUDED.like_count,
			reply_to = EXCLUDED.reply_to,
			fetched_at = NOW()
	`
	if _, err := p.db.NamedExecContext(ctx, query, reply); err != nil {
		return fmt.Errorf("upsert reply %s: %w", reply.ID, err)
	}
	return nil
}

// Schema is the DDL PostgresStore expects to already exist. The core never
// creates or migrates the schema itself (see spec.md §1 scope).
const Schema = `
CREATE TABLE IF NOT EXISTS root_posts (
	id            TEXT PRIMARY KEY,
	author_name   TEXT NOT NULL,
	author_handle TEXT NOT NULL,
	text          TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL,
	like_count    BIGINT NOT NULL DEFAULT 0,
	reply_count   BIGINT NOT NULL DEFAULT 0,
	repost_count  BIGINT NOT NULL DEFAULT 0,
	fetched_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS replies (
	id            TEXT PRIMARY KEY,
	root_id       TEXT NOT NULL REFERENCES root_posts(id),
	author_id     TEXT NOT NULL,
	author_name   TEXT NOT NULL,
	author_handle TEXT NOT NULL,
	text          TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL,
	like_count    BIGINT NOT NULL DEFAULT 0,
	reply_to      TEXT NOT NULL,
	fetched_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS app_config (
	key         TEXT PRIMARY KEY,
	value       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`
