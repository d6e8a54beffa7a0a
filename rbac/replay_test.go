package rbac

import (
	"testing"
	"time"
)

func TestReplayCacheDetectsDuplicate(t *testing.T) {
	c := NewReplayCache(10, time.Minute)
	if c.SeenOrRecord("m1") {
		t.Fatal("first sighting should not be seen")
	}
	if !c.SeenOrRecord("m1") {
		t.Fatal("second sighting should be a replay")
	}
}

func TestReplayCacheEvictsOverCapacity(t *testing.T) {
	c := NewReplayCache(2, time.Minute)
	c.SeenOrRecord("a")
	c.SeenOrRecord("b")
	c.SeenOrRecord("c")
	if c.Len() != 2 {
		t.Fatalf("expected capacity-bounded length 2, got %d", c.Len())
	}
	if c.SeenOrRecord("a") {
		t.Fatal("oldest entry should have been evicted, so 'a' reads as unseen again")
	}
}
