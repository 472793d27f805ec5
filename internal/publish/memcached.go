package publish

import (
	"context"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

// MemcachedSink stores the document under a fixed key so co-located
// consumers can read the latest snapshot without touching the filesystem.
type MemcachedSink struct {
	client *memcache.Client
	key    string
	ttl    time.Duration
}

// NewMemcachedSink builds a MemcachedSink against the given servers.
// timeout bounds each memcached operation; zero keeps the client default.
func NewMemcachedSink(servers []string, key string, ttl, timeout time.Duration) *MemcachedSink {
	client := memcache.New(servers...)
	if timeout > 0 {
		client.Timeout = timeout
	}
	return &MemcachedSink{
		client: client,
		key:    key,
		ttl:    ttl,
	}
}

// Name implements Sink.
func (s *MemcachedSink) Name() string { return "memcached" }

// Publish implements Sink.
func (s *MemcachedSink) Publish(ctx context.Context, pub Publication) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	expSec := int32(s.ttl.Seconds())
	const maxRelativeExp = 30 * 24 * 60 * 60
	if expSec <= 0 || expSec > maxRelativeExp {
		expSec = 300
	}
	return s.client.Set(&memcache.Item{
		Key:        s.key,
		Value:      pub.Body,
		Expiration: expSec,
	})
}

// Ping reports whether memcached is reachable. Used by startup checks.
func (s *MemcachedSink) Ping() error {
	return s.client.Ping()
}
