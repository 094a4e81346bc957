// ABOUTME: Tests for the dedupe cache
// ABOUTME: Covers atomic check-and-mark, TTL expiry, and size eviction

package dedupe

import (
	"fmt"
	"testing"
	"time"
)

func TestCheckAndMark(t *testing.T) {
	c := New(time.Minute, 100)
	defer c.Close()

	if c.CheckAndMark("$event1") {
		t.Error("first CheckAndMark should report new")
	}
	if !c.CheckAndMark("$event1") {
		t.Error("second CheckAndMark should report duplicate")
	}
	if c.CheckAndMark("$event2") {
		t.Error("different event should report new")
	}
}

func TestCheckAndMark_ExpiredEntryIsNew(t *testing.T) {
	c := New(10*time.Millisecond, 100)
	defer c.Close()

	c.CheckAndMark("$event1")
	time.Sleep(20 * time.Millisecond)

	if c.CheckAndMark("$event1") {
		t.Error("expired entry should be treated as new")
	}
}

func TestEviction(t *testing.T) {
	c := New(time.Minute, 3)
	defer c.Close()

	for i := 0; i < 4; i++ {
		c.CheckAndMark(fmt.Sprintf("$event%d", i))
	}

	// Oldest entry was evicted to stay within capacity
	if c.CheckAndMark("$event0") {
		t.Error("evicted entry should be treated as new")
	}
	if !c.CheckAndMark("$event3") {
		t.Error("recent entry should still be a duplicate")
	}
}

func TestClose_Idempotent(t *testing.T) {
	c := New(time.Minute, 10)
	c.Close()
	c.Close()
}
