package cache

import (
	"testing"
	"time"
)

func TestSetGetRoundtrip(t *testing.T) {
	c := New()
	defer c.Stop()

	c.Set("a", "hello", time.Minute)
	v, ok := c.Get("a")
	if !ok {
		t.Fatalf("expected hit for key a")
	}
	if v.(string) != "hello" {
		t.Fatalf("unexpected value: %v", v)
	}
}

func TestExpiredEntryIsMiss(t *testing.T) {
	c := New()
	defer c.Stop()

	c.Set("a", 1, 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	if _, ok := c.Get("a"); ok {
		t.Fatalf("expected expired entry to miss")
	}
	if c.Len() != 0 {
		t.Fatalf("expected expired entry to be dropped, len=%d", c.Len())
	}
}

func TestZeroTTLIsNoop(t *testing.T) {
	c := New()
	defer c.Stop()

	c.Set("a", 1, 0)
	if _, ok := c.Get("a"); ok {
		t.Fatalf("zero ttl must not store")
	}
}

func TestDelete(t *testing.T) {
	c := New()
	defer c.Stop()

	c.Set("a", 1, time.Minute)
	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Fatalf("expected delete to remove entry")
	}
}

func TestStatsCounters(t *testing.T) {
	c := New()
	defer c.Stop()

	c.Set("a", 1, time.Minute)
	c.Get("a")
	c.Get("missing")

	st := c.Stats()
	if st.Hits != 1 || st.Misses != 1 || st.Entries != 1 {
		t.Fatalf("unexpected stats: %+v", st)
	}
}
