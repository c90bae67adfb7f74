// Package control tracks in-flight queries so a caller can cancel one by id,
// adapted from the orchestrator's workflow cancellation manager.
package control

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// QueryStatus mirrors graph.Status at the query-execution granularity
// rather than the per-node one.
type QueryStatus string

const (
	QueryRunning   QueryStatus = "running"
	QueryCompleted QueryStatus = "completed"
	QueryFailed    QueryStatus = "failed"
	QueryCancelled QueryStatus = "cancelled"
)

// trackedQuery is one in-flight process_query call.
type trackedQuery struct {
	cancel       context.CancelFunc
	status       QueryStatus
	cancelReason string
	cancelledAt  time.Time
	endedAt      time.Time
}

// CancellationManager tracks every in-flight query by id so a separate
// control-plane caller (the HTTP surface) can cancel one mid-flight.
type CancellationManager struct {
	mu      sync.RWMutex
	queries map[string]*trackedQuery

	cancellations metric.Int64Counter
	tracer        trace.Tracer
}

// New constructs an empty CancellationManager.
func New() *CancellationManager {
	meter := otel.Meter("gotcore")
	cancellations, _ := meter.Int64Counter("got_query_cancellations_total")
	return &CancellationManager{
		queries:       make(map[string]*trackedQuery),
		cancellations: cancellations,
		tracer:        otel.Tracer("gotcore/control"),
	}
}

// Register derives a cancellable context for queryID from parent and starts
// tracking it as running.
func (cm *CancellationManager) Register(parent context.Context, queryID string) context.Context {
	ctx, cancel := context.WithCancel(parent)
	cm.mu.Lock()
	cm.queries[queryID] = &trackedQuery{cancel: cancel, status: QueryRunning}
	cm.mu.Unlock()
	return ctx
}

// Cancel stops a running query, recording reason.
func (cm *CancellationManager) Cancel(ctx context.Context, queryID, reason string) error {
	ctx, span := cm.tracer.Start(ctx, "control.Cancel", trace.WithAttributes(
		attribute.String("query_id", queryID),
		attribute.String("reason", reason),
	))
	defer span.End()

	cm.mu.Lock()
	defer cm.mu.Unlock()

	q, ok := cm.queries[queryID]
	if !ok {
		return fmt.Errorf("query not found or already completed: %s", queryID)
	}
	if q.status != QueryRunning {
		return fmt.Errorf("query %s is not running (status: %s)", queryID, q.status)
	}

	q.cancel()
	q.cancelReason = reason
	q.cancelledAt = time.Now()
	q.status = QueryCancelled
	q.endedAt = q.cancelledAt

	cm.cancellations.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	return nil
}

// Complete marks queryID finished with the given terminal status.
func (cm *CancellationManager) Complete(queryID string, status QueryStatus) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if q, ok := cm.queries[queryID]; ok {
		q.status = status
		q.endedAt = time.Now()
	}
}

// Status returns the current status of queryID.
func (cm *CancellationManager) Status(queryID string) (QueryStatus, bool) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	q, ok := cm.queries[queryID]
	if !ok {
		return "", false
	}
	return q.status, true
}

// ListRunning returns the ids of every query still running.
func (cm *CancellationManager) ListRunning() []string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	var out []string
	for id, q := range cm.queries {
		if q.status == QueryRunning {
			out = append(out, id)
		}
	}
	return out
}

// Cleanup removes terminal entries older than retention, returning the
// count removed.
func (cm *CancellationManager) Cleanup(retention time.Duration) int {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	now := time.Now()
	cleaned := 0
	for id, q := range cm.queries {
		if q.status == QueryRunning {
			continue
		}
		if !q.endedAt.IsZero() && now.Sub(q.endedAt) > retention {
			delete(cm.queries, id)
			cleaned++
		}
	}
	return cleaned
}

// StartCleanupLoop runs Cleanup on a ticker until ctx is done.
func (cm *CancellationManager) StartCleanupLoop(ctx context.Context, interval, retention time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cm.Cleanup(retention)
		}
	}
}

// CancelAll cancels every running query, for graceful shutdown.
func (cm *CancellationManager) CancelAll(reason string) int {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cancelled := 0
	for _, q := range cm.queries {
		if q.status == QueryRunning {
			q.cancel()
			q.cancelReason = reason
			q.cancelledAt = time.Now()
			q.status = QueryCancelled
			q.endedAt = q.cancelledAt
			cancelled++
		}
	}
	return cancelled
}
