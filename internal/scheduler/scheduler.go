// Package scheduler wraps the Fibonacci heap with a NodeId index and drives
// per-node execution: CAS fetches, processor dispatch, retry policy, and
// cooperative cancellation via a deadline.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/swarmguard/gotcore/internal/cas"
	"github.com/swarmguard/gotcore/internal/fibheap"
	"github.com/swarmguard/gotcore/internal/goterr"
	"github.com/swarmguard/gotcore/internal/graph"
)

// Processor transforms a node into new nodes/edges, given a read-only graph
// view and the node's fetched inputs. It is the per-node-type function the
// processor package's dispatch table supplies.
type Processor interface {
	Process(ctx context.Context, node graph.Node, view *graph.ReadOnlyView, instructions, data []byte) (ProcessingResult, error)
}

// ProcessingResult is what a successful Processor.Process call produces.
type ProcessingResult struct {
	NewNodes []*graph.Node
	Edges    []graph.Edge
	Result   *graph.Result
}

// Dispatch resolves a Processor by node type.
type Dispatch interface {
	For(t graph.NodeType) (Processor, bool)
}

// Scheduler is the single owner of one Fibonacci heap and the NodeId index
// into it. It is not safe for concurrent use from multiple goroutines
// beyond the mutex it holds internally — heap manipulations are
// non-suspending and run under that mutex, per spec.md §5.
type Scheduler struct {
	mu      sync.Mutex
	heap    *fibheap.Heap[string] // value: NodeId
	index   map[string]fibheap.Handle
	casCli  cas.Client
	dispatch Dispatch
	graph   *graph.Graph

	taskDuration    metric.Float64Histogram
	taskRetries     metric.Int64Counter
	taskFailures    metric.Int64Counter
	pendingGauge    metric.Int64UpDownCounter
}

// New builds a Scheduler over g, dispatching processed nodes through
// dispatch and persisting artifacts via casCli.
func New(g *graph.Graph, casCli cas.Client, dispatch Dispatch) *Scheduler {
	meter := otel.Meter("gotcore")
	taskDuration, _ := meter.Float64Histogram("got_scheduler_task_duration_ms")
	taskRetries, _ := meter.Int64Counter("got_scheduler_task_retries_total")
	taskFailures, _ := meter.Int64Counter("got_scheduler_task_failures_total")
	pendingGauge, _ := meter.Int64UpDownCounter("got_scheduler_pending_tasks")
	return &Scheduler{
		heap:         fibheap.New[string](),
		index:        make(map[string]fibheap.Handle),
		casCli:       casCli,
		dispatch:     dispatch,
		graph:        g,
		taskDuration: taskDuration,
		taskRetries:  taskRetries,
		taskFailures: taskFailures,
		pendingGauge: pendingGauge,
	}
}

// AddTask enqueues node iff it is Ready and not already indexed. Idempotent:
// a second call with the same Ready node is a no-op (spec.md §8 property 5).
func (s *Scheduler) AddTask(node *graph.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if node.Status != graph.Ready {
		return
	}
	if _, already := s.index[node.ID]; already {
		return
	}
	handle := s.heap.Insert(node.ID, node.Priority)
	s.index[node.ID] = handle
	s.pendingGauge.Add(context.Background(), 1)
}

// UpdatePriority decreases node_id's key in the heap. Increases are refused
// and return false without mutating heap state (spec.md §8 property 6).
func (s *Scheduler) UpdatePriority(nodeID string, newPriority int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	handle, ok := s.index[nodeID]
	if !ok {
		return false
	}
	if !s.heap.DecreaseKey(handle, newPriority) {
		return false
	}
	s.graph.UpdatePriority(nodeID, newPriority)
	return true
}

// HasPending reports whether any task remains queued.
func (s *Scheduler) HasPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.heap.IsEmpty()
}

// PendingCount reports the number of queued tasks.
func (s *Scheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.heap.Size()
}

// popLocked extracts the minimum-priority NodeId and removes it from the
// index. Caller must hold s.mu.
func (s *Scheduler) popLocked() (string, bool) {
	nodeID, _, ok := s.heap.ExtractMin()
	if !ok {
		return "", false
	}
	delete(s.index, nodeID)
	s.pendingGauge.Add(context.Background(), -1)
	return nodeID, true
}

// reenqueueLocked re-inserts nodeID at priority, used both for the
// deadline-exceeded-mid-fetch path and for retries. Caller must hold s.mu.
func (s *Scheduler) reenqueueLocked(nodeID string, priority int) {
	handle := s.heap.Insert(nodeID, priority)
	s.index[nodeID] = handle
	s.pendingGauge.Add(context.Background(), 1)
}

// ExecuteNext extracts and runs the minimum-priority task. It returns
// (nil, nil) if the heap is empty or if ctx's deadline is exceeded while
// fetching the node's CAS-backed inputs (the node is returned to Ready and
// re-enqueued at its original priority in that case).
func (s *Scheduler) ExecuteNext(ctx context.Context) (*graph.Node, error) {
	s.mu.Lock()
	nodeID, ok := s.popLocked()
	s.mu.Unlock()
	if !ok {
		return nil, nil
	}

	node, ok := s.graph.Node(nodeID)
	if !ok {
		return nil, goterr.New("scheduler.ExecuteNext", goterr.DependencyMissing, nil)
	}
	originalPriority := node.Priority

	if err := s.graph.SetStatus(nodeID, graph.InProgress); err != nil {
		return nil, err
	}

	instructions, data, fetchErr := s.fetchInputs(ctx, node)
	if fetchErr != nil {
		if ctx.Err() != nil {
			s.graph.SetStatus(nodeID, graph.Ready)
			s.mu.Lock()
			s.reenqueueLocked(nodeID, originalPriority)
			s.mu.Unlock()
			return nil, nil
		}
		return s.handleFailure(ctx, nodeID, originalPriority, fetchErr)
	}

	start := time.Now()
	view := s.graph.View()
	proc, ok := s.dispatch.For(node.Type)
	if !ok {
		return s.handleFailure(ctx, nodeID, originalPriority, goterr.New("scheduler.ExecuteNext", goterr.OracleMalformed, nil))
	}

	result, procErr := proc.Process(ctx, *node, view, instructions, data)
	elapsed := time.Since(start)
	s.taskDuration.Record(ctx, float64(elapsed.Milliseconds()))

	if procErr != nil {
		return s.handleFailure(ctx, nodeID, originalPriority, procErr)
	}

	return s.finish(ctx, nodeID, originalPriority, result, elapsed)
}

func (s *Scheduler) fetchInputs(ctx context.Context, node *graph.Node) (instructions, data []byte, err error) {
	if node.Storage.InstructionsCID != "" {
		instructions, err = s.casCli.Get(ctx, cas.CID(node.Storage.InstructionsCID))
		if err != nil {
			return nil, nil, err
		}
	}
	if ctx.Err() != nil {
		return instructions, nil, ctx.Err()
	}
	if node.Storage.DataCID != "" {
		data, err = s.casCli.Get(ctx, cas.CID(node.Storage.DataCID))
		if err != nil {
			return instructions, nil, err
		}
	}
	return instructions, data, nil
}

func (s *Scheduler) finish(ctx context.Context, nodeID string, originalPriority int, result ProcessingResult, elapsed time.Duration) (*graph.Node, error) {
	var resultCID cas.CID
	if result.Result != nil {
		b, err := encodeResult(result.Result)
		if err != nil {
			return s.handleFailure(ctx, nodeID, originalPriority, err)
		}
		cid, err := s.casCli.Put(ctx, b)
		if err != nil {
			return s.handleFailure(ctx, nodeID, originalPriority, err)
		}
		resultCID = cid
	}

	for _, n := range result.NewNodes {
		if err := s.graph.AddNode(n); err != nil {
			return nil, err
		}
	}
	for _, e := range result.Edges {
		if err := s.graph.AddEdge(e); err != nil {
			return nil, err
		}
	}
	if err := s.graph.Complete(nodeID, result.Result, graph.CID(resultCID), elapsed.Milliseconds()); err != nil {
		return nil, err
	}
	node, _ := s.graph.Node(nodeID)
	return node, nil
}

func (s *Scheduler) handleFailure(ctx context.Context, nodeID string, originalPriority int, cause error) (*graph.Node, error) {
	s.taskFailures.Add(ctx, 1)
	retryable, err := s.graph.Fail(nodeID, cause)
	if err != nil {
		return nil, err
	}
	if retryable {
		s.taskRetries.Add(ctx, 1)
		s.mu.Lock()
		s.reenqueueLocked(nodeID, originalPriority)
		s.mu.Unlock()
	}
	node, _ := s.graph.Node(nodeID)
	return node, nil
}
