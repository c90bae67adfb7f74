package coordinator

import (
	"crypto/sha1"
	"encoding/hex"
	"sync"
)

// ClockHead is the hash-chained logical clock value MerkleClock advances on
// every local event and merges on receipt of remote events.
type ClockHead string

// MerkleClock is a single hash-chained head rather than a full vector
// clock: spec.md §4.6 only ever reads one `clock_head` value per message,
// never a per-peer vector, so the simpler chained form satisfies every
// operation the coordinator actually performs (tick, merge, compare).
type MerkleClock struct {
	mu   sync.Mutex
	head ClockHead
}

// NewMerkleClock starts a clock at the zero head.
func NewMerkleClock() *MerkleClock {
	return &MerkleClock{head: ClockHead(zeroHead)}
}

var zeroHead = hex.EncodeToString(make([]byte, sha1.Size))

// Tick advances the clock deterministically from the current head and
// eventID, returning the new head.
func (c *MerkleClock) Tick(eventID string) ClockHead {
	c.mu.Lock()
	defer c.mu.Unlock()
	h := sha1.New()
	h.Write([]byte(c.head))
	h.Write([]byte(eventID))
	c.head = ClockHead(hex.EncodeToString(h.Sum(nil)))
	return c.head
}

// Merge folds a remote head into the local clock. Since a single hash chain
// cannot losslessly combine two independent chains, merge adopts whichever
// head currently sorts greater lexicographically, a deterministic and
// commutative choice both peers converge on without coordination.
func (c *MerkleClock) Merge(remote ClockHead) ClockHead {
	c.mu.Lock()
	defer c.mu.Unlock()
	if remote > c.head {
		c.head = remote
	}
	return c.head
}

// Head returns the current clock head.
func (c *MerkleClock) Head() ClockHead {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.head
}
