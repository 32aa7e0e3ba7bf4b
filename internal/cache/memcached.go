package cache

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/bradfitz/gomemcache/memcache"
)

const (
	keyPrefix     = "wxmap:"
	maxKeyLength  = 250
	brotliQuality = 5
)

// MemcachedStore implements Store using memcached. Values are brotli-compressed.
type MemcachedStore struct {
	client     *memcache.Client
	defaultTTL time.Duration
}

// NewMemcachedStore creates a MemcachedStore. addrs is a comma-separated list
// (e.g. "localhost:11211" or "host1:11211,host2:11211"). timeout and maxIdleConns
// configure the client; both use package defaults if zero.
func NewMemcachedStore(addrs string, timeout time.Duration, maxIdleConns int, defaultTTL time.Duration) (*MemcachedStore, error) {
	servers := parseAddrs(addrs)
	if len(servers) == 0 {
		servers = []string{"localhost:11211"}
	}
	client := memcache.New(servers...)
	if timeout > 0 {
		client.Timeout = timeout
	}
	if maxIdleConns > 0 {
		client.MaxIdleConns = maxIdleConns
	}
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	return &MemcachedStore{client: client, defaultTTL: defaultTTL}, nil
}

func parseAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

// key prefixes k and hashes anything memcached would reject for length.
func (c *MemcachedStore) key(k string) string {
	full := keyPrefix + k
	if len(full) <= maxKeyLength && !strings.ContainsAny(full, " \t\r\n") {
		return full
	}
	sum := sha1.Sum([]byte(k))
	return keyPrefix + "h_" + hex.EncodeToString(sum[:])
}

// Get implements Store.Get. Returns false, nil on cache miss; false, err on error.
func (c *MemcachedStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if ctx.Err() != nil {
		return nil, false, ctx.Err()
	}
	item, err := c.client.Get(c.key(key))
	if err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			return nil, false, nil
		}
		return nil, false, err
	}
	raw, err := io.ReadAll(brotli.NewReader(bytes.NewReader(item.Value)))
	if err != nil {
		return nil, false, fmt.Errorf("decompress %s: %w", key, err)
	}
	return raw, true, nil
}

// Set implements Store.Set.
func (c *MemcachedStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	var buf bytes.Buffer
	w := brotli.NewWriterLevel(&buf, brotliQuality)
	if _, err := w.Write(value); err != nil {
		return fmt.Errorf("compress %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("compress %s: %w", key, err)
	}

	expSec := int32(ttl.Seconds())
	const maxRelativeExp = 30 * 24 * 60 * 60 // 30 days
	if expSec <= 0 || expSec > maxRelativeExp {
		expSec = 3600
	}
	return c.client.Set(&memcache.Item{
		Key:        c.key(key),
		Value:      buf.Bytes(),
		Expiration: expSec,
	})
}

// Ping checks if memcached is reachable. Used for health checks.
func (c *MemcachedStore) Ping() error {
	return c.client.Ping()
}

// Close closes the memcached client connections. Call during shutdown.
func (c *MemcachedStore) Close() error {
	return c.client.Close()
}
