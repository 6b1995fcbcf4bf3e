package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"examsearch/internal/cache"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const kvSchema = `
CREATE TABLE IF NOT EXISTS kv_cache (
  key        TEXT PRIMARY KEY,
  value      BYTEA NOT NULL,
  expires_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS kv_cache_expires_at_idx ON kv_cache (expires_at)`

// Conn is the subset of pgxpool.Pool the repo needs.
type Conn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ cache.Cache = (*KVRepo)(nil)

// KVRepo stores cache entries in Postgres so they survive process restarts.
type KVRepo struct {
	conn Conn
	now  func() time.Time
}

func NewKVRepo(db *DB) *KVRepo {
	return NewKVRepoWithConn(db.Pool)
}

func NewKVRepoWithConn(conn Conn) *KVRepo {
	return &KVRepo{conn: conn, now: time.Now}
}

func (r *KVRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.conn.Exec(ctx, kvSchema); err != nil {
		return fmt.Errorf("create kv_cache: %w", err)
	}
	return nil
}

func (r *KVRepo) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := r.conn.QueryRow(ctx, `SELECT value FROM kv_cache WHERE key=$1 AND expires_at > $2`, key, r.now()).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get cache entry: %w", err)
	}
	return value, true, nil
}

func (r *KVRepo) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		if _, err := r.conn.Exec(ctx, `DELETE FROM kv_cache WHERE key=$1`, key); err != nil {
			return fmt.Errorf("delete cache entry: %w", err)
		}
		return nil
	}
	_, err := r.conn.Exec(ctx, `
INSERT INTO kv_cache (key, value, expires_at)
VALUES ($1, $2, $3)
ON CONFLICT (key)
DO UPDATE SET
  value = EXCLUDED.value,
  expires_at = EXCLUDED.expires_at,
  updated_at = NOW()`,
		key, value, r.now().Add(ttl),
	)
	if err != nil {
		return fmt.Errorf("put cache entry: %w", err)
	}
	return nil
}

// DeleteExpired drops entries past their deadline and reports how many went.
func (r *KVRepo) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.conn.Exec(ctx, `DELETE FROM kv_cache WHERE expires_at <= $1`, r.now())
	if err != nil {
		return 0, fmt.Errorf("delete expired cache entries: %w", err)
	}
	return tag.RowsAffected(), nil
}
