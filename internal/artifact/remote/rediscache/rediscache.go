// Package rediscache provides an optional shared LRU-touch/metadata
// index backed by Redis, for deployments running multiple scheduler
// processes against the same remote artifact cache — each needs a
// consistent view of "oldest mtime first" without sharing a local
// filesystem. Mirrors the teacher's registry/storage/cache Redis-backed
// descriptor cache, adapted from caching blob descriptors to caching
// artifact ref LRU timestamps.
package rediscache

import (
	"context"
	"fmt"
	"time"

	"github.com/gomodule/redigo/redis"

	"github.com/buildstream-go/core/internal/corectx"
)

// Index is a Redis-backed sorted set of artifact ref names scored by
// last-touch Unix time, the shared analogue of internal/cas.Store's local
// refs/heads mtime ordering.
type Index struct {
	pool   *redis.Pool
	setKey string
}

// New returns an Index using pool as its connection pool (callers own the
// pool's lifecycle; Index never closes it). setKey namespaces the sorted
// set, e.g. "buildstream:artifact-lru".
func New(pool *redis.Pool, setKey string) *Index {
	return &Index{pool: pool, setKey: setKey}
}

// Touch records ref as most-recently-used, the Redis analogue of
// Store.Touch (spec §4.4 update_mtime), usable from any scheduler process
// sharing this Index.
func (idx *Index) Touch(ctx context.Context, ref string) error {
	conn, err := idx.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("rediscache: get connection: %w", err)
	}
	defer conn.Close()

	_, err = conn.Do("ZADD", idx.setKey, time.Now().Unix(), ref)
	if err != nil {
		corectx.GetLogger(ctx, "component", "rediscache").Warnf("ZADD %s failed: %v", ref, err)
		return err
	}
	return nil
}

// Remove drops ref from the shared LRU index, called alongside a local
// Cache.Remove / EvictUnderQuota so every scheduler's view stays
// consistent.
func (idx *Index) Remove(ctx context.Context, ref string) error {
	conn, err := idx.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("rediscache: get connection: %w", err)
	}
	defer conn.Close()

	_, err = conn.Do("ZREM", idx.setKey, ref)
	return err
}

// OldestN returns up to n ref names in oldest-touched-first order, the
// shared equivalent of Store.ListRefs used to drive cross-process
// eviction decisions.
func (idx *Index) OldestN(ctx context.Context, n int) ([]string, error) {
	conn, err := idx.pool.GetContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("rediscache: get connection: %w", err)
	}
	defer conn.Close()

	return redis.Strings(conn.Do("ZRANGE", idx.setKey, 0, n-1))
}
