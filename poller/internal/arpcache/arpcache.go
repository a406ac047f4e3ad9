// Package arpcache remembers which (netbox, ip, mac) sightings are already
// open in the database, so repeated collection runs skip the rewrite when
// nothing changed. The cache is advisory: a miss only costs a database sync.
package arpcache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrCacheMiss is returned when a key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

// KV is the storage the cache runs on, kept small so tests can swap Redis
// for an in-memory map.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

// RedisKV implements KV on a go-redis client.
type RedisKV struct {
	client *redis.Client
}

func NewRedisKV(client *redis.Client) *RedisKV {
	return &RedisKV{client: client}
}

func (r *RedisKV) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", ErrCacheMiss
		}
		return "", err
	}
	return val, nil
}

func (r *RedisKV) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

// MemKV is an in-memory KV with TTL, used when no Redis address is
// configured and in tests.
type MemKV struct {
	mu   sync.Mutex
	data map[string]memItem
}

type memItem struct {
	value   string
	expires time.Time // zero = no ttl
}

func NewMemKV() *MemKV {
	return &MemKV{data: make(map[string]memItem)}
}

func (m *MemKV) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.data[key]
	if !ok {
		return "", ErrCacheMiss
	}
	if !item.expires.IsZero() && time.Now().After(item.expires) {
		delete(m.data, key)
		return "", ErrCacheMiss
	}
	return item.value, nil
}

func (m *MemKV) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	m.data[key] = memItem{value: value, expires: exp}
	return nil
}

// Cache is the neighbor cache used by the arp plugin. A run's sighting set
// is fingerprinted; when the fingerprint matches the previous run's, the
// database sync is skipped.
type Cache struct {
	kv  KV
	ttl time.Duration
}

// New returns a cache over kv. Entries expire after ttl so a wedged cache
// never suppresses syncs forever.
func New(kv KV, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{kv: kv, ttl: ttl}
}

func (c *Cache) key(netboxID int64) string {
	return fmt.Sprintf("arp:%d", netboxID)
}

// Unchanged reports whether the fingerprint matches the cached one for the
// netbox. Cache errors count as changed.
func (c *Cache) Unchanged(ctx context.Context, netboxID int64, fingerprint string) bool {
	cached, err := c.kv.Get(ctx, c.key(netboxID))
	return err == nil && cached == fingerprint
}

// Remember stores the fingerprint of the latest synced run.
func (c *Cache) Remember(ctx context.Context, netboxID int64, fingerprint string) error {
	return c.kv.Set(ctx, c.key(netboxID), fingerprint, c.ttl)
}
