package cache

import (
	"testing"
	"time"
)

func id(b byte) (out [32]byte) {
	out[0] = b
	return out
}

func TestGetSetRoundTrip(t *testing.T) {
	c := New(0)
	c.Set(id(1), Entry{Value: []byte("hello")})
	v, ok := c.Get(id(1))
	if !ok || string(v) != "hello" {
		t.Fatalf("Get() = %q, %v", v, ok)
	}
}

func TestExpiryEvictsOnGet(t *testing.T) {
	c := New(0)
	now := time.Now()
	c.nowFunc = func() time.Time { return now }
	c.Set(id(1), Entry{Value: []byte("x"), TTL: time.Second})

	now = now.Add(2 * time.Second)
	if _, ok := c.Get(id(1)); ok {
		t.Fatalf("expired entry should miss on Get()")
	}
	if c.Len() != 0 {
		t.Fatalf("expired entry should be evicted, Len() = %d", c.Len())
	}
}

func TestInvalidateRunsDestructor(t *testing.T) {
	c := New(0)
	var destroyed bool
	c.Set(id(1), Entry{Value: []byte("x"), Destructor: func([]byte) { destroyed = true }})
	if !c.Invalidate(id(1)) {
		t.Fatalf("Invalidate() should report the entry was present")
	}
	if !destroyed {
		t.Fatalf("destructor did not run on Invalidate")
	}
}

func TestSweepEvictsOnlyExpired(t *testing.T) {
	c := New(0)
	now := time.Now()
	c.nowFunc = func() time.Time { return now }
	c.Set(id(1), Entry{Value: []byte("short"), TTL: time.Second})
	c.Set(id(2), Entry{Value: []byte("long"), TTL: time.Hour})

	now = now.Add(2 * time.Second)
	evicted := c.Sweep()
	if evicted != 1 {
		t.Fatalf("Sweep() evicted %d, want 1", evicted)
	}
	if c.Len() != 1 {
		t.Fatalf("Len() after Sweep = %d, want 1", c.Len())
	}
}

func TestDrainReturnsOnlyPromotableEntries(t *testing.T) {
	c := New(0)
	var destroyedPermanent bool
	c.Set(id(1), Entry{Value: []byte("ttl"), TTL: time.Hour})
	c.Set(id(2), Entry{Value: []byte("no-ttl"), Destructor: func([]byte) { destroyedPermanent = true }})

	promotable := c.Drain()
	if len(promotable) != 1 {
		t.Fatalf("Drain() returned %d promotable entries, want 1", len(promotable))
	}
	if _, ok := promotable[id(1)]; !ok {
		t.Fatalf("TTL-bearing entry should be promotable")
	}
	if !destroyedPermanent {
		t.Fatalf("non-promotable entry's destructor should run on Drain")
	}
	if c.Len() != 0 {
		t.Fatalf("cache should be empty after Drain, Len() = %d", c.Len())
	}
}

func TestSetReplacesRunsPriorDestructor(t *testing.T) {
	c := New(0)
	var destroyed bool
	c.Set(id(1), Entry{Value: []byte("old"), Destructor: func([]byte) { destroyed = true }})
	c.Set(id(1), Entry{Value: []byte("new")})
	if !destroyed {
		t.Fatalf("replacing an entry should run the prior destructor")
	}
	v, _ := c.Get(id(1))
	if string(v) != "new" {
		t.Fatalf("Get() = %q, want new", v)
	}
}

func TestMaxSizeEvictsOverCapacity(t *testing.T) {
	c := New(10)
	c.Set(id(1), Entry{Value: []byte("a"), SizeHint: 6})
	c.Set(id(2), Entry{Value: []byte("b"), SizeHint: 6})
	if c.Len() >= 2 {
		t.Fatalf("inserting past maxSize should trigger eviction, Len() = %d", c.Len())
	}
}
