package control

import (
	"context"
	"testing"
	"time"
)

func TestRegisterThenCancelStopsContextAndMarksCancelled(t *testing.T) {
	cm := New()
	ctx := cm.Register(context.Background(), "q1")

	if err := cm.Cancel(context.Background(), "q1", "user requested"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	select {
	case <-ctx.Done():
	default:
		t.Fatalf("expected the derived context to be cancelled")
	}
	status, ok := cm.Status("q1")
	if !ok || status != QueryCancelled {
		t.Fatalf("expected status cancelled, got %s (ok=%v)", status, ok)
	}
}

func TestCancelUnknownQueryReturnsError(t *testing.T) {
	cm := New()
	if err := cm.Cancel(context.Background(), "missing", "x"); err == nil {
		t.Fatalf("expected an error cancelling an unregistered query")
	}
}

func TestCancelAlreadyCompletedQueryReturnsError(t *testing.T) {
	cm := New()
	cm.Register(context.Background(), "q1")
	cm.Complete("q1", QueryCompleted)
	if err := cm.Cancel(context.Background(), "q1", "x"); err == nil {
		t.Fatalf("expected an error cancelling a query that already completed")
	}
}

func TestListRunningOnlyIncludesRunningQueries(t *testing.T) {
	cm := New()
	cm.Register(context.Background(), "q1")
	cm.Register(context.Background(), "q2")
	cm.Complete("q2", QueryCompleted)

	running := cm.ListRunning()
	if len(running) != 1 || running[0] != "q1" {
		t.Fatalf("expected only q1 running, got %v", running)
	}
}

func TestCleanupRemovesOldTerminalEntriesOnly(t *testing.T) {
	cm := New()
	cm.Register(context.Background(), "old")
	cm.Complete("old", QueryCompleted)
	cm.Register(context.Background(), "fresh")
	cm.Complete("fresh", QueryCompleted)

	time.Sleep(5 * time.Millisecond)
	cleaned := cm.Cleanup(time.Millisecond)
	if cleaned != 2 {
		t.Fatalf("expected both terminal entries older than the retention to be cleaned, got %d", cleaned)
	}
	if _, ok := cm.Status("old"); ok {
		t.Fatalf("expected old entry to be gone after cleanup")
	}
}

func TestCancelAllCancelsOnlyRunningQueries(t *testing.T) {
	cm := New()
	ctx1 := cm.Register(context.Background(), "q1")
	cm.Register(context.Background(), "q2")
	cm.Complete("q2", QueryCompleted)

	cancelled := cm.CancelAll("shutdown")
	if cancelled != 1 {
		t.Fatalf("expected exactly 1 running query cancelled, got %d", cancelled)
	}
	select {
	case <-ctx1.Done():
	default:
		t.Fatalf("expected q1's context to be cancelled by CancelAll")
	}
}
