package coordinator

import "testing"

func TestMerkleClockTickAdvancesDeterministically(t *testing.T) {
	c1 := NewMerkleClock()
	c2 := NewMerkleClock()
	h1 := c1.Tick("event-a")
	h2 := c2.Tick("event-a")
	if h1 != h2 {
		t.Fatalf("two fresh clocks ticking the same event must converge, got %s vs %s", h1, h2)
	}
	if h1 == ClockHead(zeroHead) {
		t.Fatalf("tick must advance the head away from zero")
	}
}

func TestMerkleClockMergeIsDeterministicAndCommutative(t *testing.T) {
	c := NewMerkleClock()
	c.Tick("local-event")

	remote := ClockHead("ffffffffffffffffffffffffffffffffffffffff")
	got := c.Merge(remote)
	if got != remote {
		t.Fatalf("expected lexicographically greater remote head to win merge")
	}

	lesser := ClockHead("0000000000000000000000000000000000000000")
	got = c.Merge(lesser)
	if got != remote {
		t.Fatalf("merging a lexicographically lesser head must not regress the clock")
	}
}
