//go:build integration
// +build integration

package publish

import (
	"context"
	"testing"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

// TestMemcachedSink_Publish_Integration verifies the document round-trips
// through a running memcached server.
func TestMemcachedSink_Publish_Integration(t *testing.T) {
	sink := NewMemcachedSink([]string{"localhost:11211"}, "gauge-data-test", time.Minute, 500*time.Millisecond)

	body := []byte(`{"temp":"18.2"}`)
	pub := Publication{ID: "itest", Timestamp: time.Now(), Body: body}
	if err := sink.Publish(context.Background(), pub); err != nil {
		t.Skipf("Publish failed (memcached may not be running): %v", err)
	}

	client := memcache.New("localhost:11211")
	item, err := client.Get("gauge-data-test")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(item.Value) != string(body) {
		t.Errorf("stored value = %s, want %s", item.Value, body)
	}
}
