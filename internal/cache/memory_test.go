package cache

import (
	"bytes"
	"testing"
	"time"
)

func TestMemory_SetGet(t *testing.T) {
	c := NewMemory(16)
	defer c.Stop()

	c.Set("k", []byte("payload"), time.Minute)

	e, ok := c.Get("k")
	if !ok {
		t.Fatal("expected hit")
	}
	if !bytes.Equal(e.Payload, []byte("payload")) {
		t.Errorf("unexpected payload %q", e.Payload)
	}
	if e.FetchedAt.IsZero() {
		t.Error("entry must carry its fetch time")
	}
}

func TestMemory_Expiry(t *testing.T) {
	c := NewMemory(16)
	defer c.Stop()

	c.Set("k", []byte("v"), 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get("k"); ok {
		t.Error("expired entry must be a miss")
	}
}

func TestMemory_KeyIndependence(t *testing.T) {
	c := NewMemory(16)
	defer c.Stop()

	c.Set("protocol:lido:days=7", []byte("seven"), time.Minute)
	c.Set("protocol:lido:days=90", []byte("ninety"), time.Minute)

	seven, _ := c.Get("protocol:lido:days=7")
	ninety, _ := c.Get("protocol:lido:days=90")
	if string(seven.Payload) != "seven" || string(ninety.Payload) != "ninety" {
		t.Errorf("window entries conflated: %q / %q", seven.Payload, ninety.Payload)
	}
}

func TestMemory_ReplacementOnly(t *testing.T) {
	c := NewMemory(16)
	defer c.Stop()

	c.Set("k", []byte("old"), time.Minute)
	c.Set("k", []byte("new"), time.Minute)

	e, _ := c.Get("k")
	if string(e.Payload) != "new" {
		t.Errorf("expected replaced payload, got %q", e.Payload)
	}
}

func TestMemory_EvictsLRUAtCapacity(t *testing.T) {
	c := NewMemory(2)
	defer c.Stop()

	c.Set("a", []byte("1"), time.Minute)
	time.Sleep(time.Millisecond)
	c.Set("b", []byte("2"), time.Minute)
	time.Sleep(time.Millisecond)
	c.Get("a") // refresh a's access time
	c.Set("c", []byte("3"), time.Minute)

	if _, ok := c.Get("b"); ok {
		t.Error("expected least recently accessed entry to be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("recently accessed entry must survive eviction")
	}
	if c.Stats().Evictions != 1 {
		t.Errorf("expected 1 eviction, got %d", c.Stats().Evictions)
	}
}

func TestMemory_Stats(t *testing.T) {
	c := NewMemory(16)
	defer c.Stop()

	c.Set("k", []byte("v"), time.Minute)
	c.Get("k")
	c.Get("missing")

	s := c.Stats()
	if s.Hits != 1 || s.Misses != 1 || s.Entries != 1 {
		t.Errorf("unexpected stats: %+v", s)
	}
}
