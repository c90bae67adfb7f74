package coordinator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/swarmguard/gotcore/internal/cas"
)

func TestCoordinatorSingleNodeAlwaysElectsItself(t *testing.T) {
	hub := NewMemoryHub()
	bus := hub.Join("only-peer")

	var executed int32
	var mu sync.Mutex
	done := make(chan struct{})

	exec := func(ctx context.Context, taskID string) (cas.CID, error) {
		mu.Lock()
		executed++
		mu.Unlock()
		return cas.CID("result-" + taskID), nil
	}
	onDone := func(taskID string, resultCID cas.CID) {
		close(done)
	}

	c := New(bus, exec, onDone)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := c.Announce(ctx, "task-1"); err != nil {
		t.Fatalf("announce: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2500 * time.Millisecond):
		t.Fatalf("expected the sole peer to execute and complete the task")
	}

	mu.Lock()
	defer mu.Unlock()
	if executed != 1 {
		t.Fatalf("expected exactly one execution, got %d", executed)
	}
	status, ok := c.TaskStatus("task-1")
	if !ok || status != "completed" {
		t.Fatalf("expected task-1 completed, got %s (ok=%v)", status, ok)
	}
}

func TestCoordinatorOnlyResponsiblePeerExecutes(t *testing.T) {
	hub := NewMemoryHub()
	// literal bit-string peer ids per spec.md Scenario F.
	busA := hub.Join("0001")
	busB := hub.Join("0100")

	var mu sync.Mutex
	executedBy := map[string]int{}
	doneA := make(chan struct{})
	doneB := make(chan struct{})
	var onceA, onceB sync.Once

	newExec := func(peer string) Executor {
		return func(ctx context.Context, taskID string) (cas.CID, error) {
			mu.Lock()
			executedBy[peer]++
			mu.Unlock()
			return cas.CID("result"), nil
		}
	}
	onDoneA := func(taskID string, resultCID cas.CID) { onceA.Do(func() { close(doneA) }) }
	onDoneB := func(taskID string, resultCID cas.CID) { onceB.Do(func() { close(doneB) }) }

	cA := New(busA, newExec("0001"), onDoneA)
	cB := New(busB, newExec("0100"), onDoneB)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := cA.Start(ctx); err != nil {
		t.Fatalf("start A: %v", err)
	}
	if err := cB.Start(ctx); err != nil {
		t.Fatalf("start B: %v", err)
	}

	if err := cA.Announce(ctx, "task-x"); err != nil {
		t.Fatalf("announce: %v", err)
	}

	select {
	case <-doneA:
	case <-doneB:
	case <-time.After(2500 * time.Millisecond):
		t.Fatalf("expected exactly one peer to complete task-x")
	}
	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	total := executedBy["0001"] + executedBy["0100"]
	if total != 1 {
		t.Fatalf("expected exactly one peer to execute task-x, got %v (total %d)", executedBy, total)
	}
}
