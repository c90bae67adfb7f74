// Package engine owns the GoT graph lifecycle: query decomposition,
// dependency-driven scheduling, completion detection, and final synthesis.
package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/swarmguard/gotcore/internal/cas"
	"github.com/swarmguard/gotcore/internal/graph"
	"github.com/swarmguard/gotcore/internal/processor"
	"github.com/swarmguard/gotcore/internal/scheduler"
)

// Options configures a single process_query call.
type Options struct {
	// TimeoutMS bounds the whole query; defaults to 60000 per spec.md §5.
	TimeoutMS int64
}

const defaultTimeoutMS = 60_000

// Result is what process_query returns.
type Result struct {
	Answer      string
	Confidence  float64
	GraphCID    cas.CID
	NodeCount   int
	ElapsedMS   int64
	Conclusions []string // node ids, ordered by confidence descending
	FailedNodes []string
	DeadlineHit bool
}

// Engine owns exactly one graph and one scheduler, per spec.md §4.5.
type Engine struct {
	graph     *graph.Graph
	scheduler *scheduler.Scheduler
	casCli    cas.Client
	tracer    trace.Tracer

	queryDuration metric.Float64Histogram
	nodeCount     metric.Int64Histogram
}

// New constructs an Engine over a fresh graph, wiring casCli and dispatch
// into a new Scheduler.
func New(casCli cas.Client, oracle processor.LLMOracle) *Engine {
	g := graph.New("")
	reg := processor.NewRegistry(oracle)
	sched := scheduler.New(g, casCli, reg)
	meter := otel.Meter("gotcore")
	queryDuration, _ := meter.Float64Histogram("got_engine_query_duration_ms")
	nodeCount, _ := meter.Int64Histogram("got_engine_node_count")
	return &Engine{
		graph:         g,
		scheduler:     sched,
		casCli:        casCli,
		tracer:        otel.Tracer("gotcore/engine"),
		queryDuration: queryDuration,
		nodeCount:     nodeCount,
	}
}

// ProcessQuery runs the full GoT pipeline for query and returns the
// synthesized result, per spec.md §4.5.
func (e *Engine) ProcessQuery(ctx context.Context, query string, opts Options) (Result, error) {
	start := time.Now()
	timeoutMS := opts.TimeoutMS
	if timeoutMS <= 0 {
		timeoutMS = defaultTimeoutMS
	}
	ctx, cancel := context.WithTimeout(ctx, time.Duration(timeoutMS)*time.Millisecond)
	defer cancel()

	ctx, span := e.tracer.Start(ctx, "engine.ProcessQuery")
	defer span.End()

	dataCID, err := e.casCli.Put(ctx, []byte(query))
	if err != nil {
		return Result{}, err
	}

	rootID := uuid.NewString()
	now := time.Now()
	root := &graph.Node{
		ID:      rootID,
		Type:    graph.Question,
		Content: query,
		Status:  graph.Completed,
		Storage: graph.Storage{DataCID: graph.CID(dataCID)},
		Metadata: graph.Metadata{
			CreatedAt:   now,
			CompletedAt: now,
			Confidence:  1,
		},
	}
	if err := e.graph.AddNode(root); err != nil {
		return Result{}, err
	}
	e.graph.RootNodeID = rootID

	decompID := uuid.NewString()
	decomp := &graph.Node{
		ID:           decompID,
		Type:         graph.Decomposition,
		Content:      query,
		Dependencies: []string{rootID},
		Priority:     processor.PriorityDecomposition,
		Status:       graph.Ready,
		Metadata:     graph.Metadata{CreatedAt: now},
	}
	if err := e.graph.AddNode(decomp); err != nil {
		return Result{}, err
	}
	if err := e.graph.AddEdge(graph.Edge{Source: rootID, Target: decompID, Type: graph.Decomposes, Weight: 1}); err != nil {
		return Result{}, err
	}
	e.scheduler.AddTask(decomp)

	deadlineHit := false
	for e.scheduler.HasPending() {
		if ctx.Err() != nil {
			deadlineHit = true
			break
		}
		node, err := e.scheduler.ExecuteNext(ctx)
		if err != nil {
			return Result{}, err
		}
		if node == nil {
			if ctx.Err() != nil {
				deadlineHit = true
			}
			break
		}
		if node.Status == graph.Completed {
			e.handleCompleted(node.ID)
		}
	}

	result := e.synthesize(ctx, start, deadlineHit)
	result.NodeCount = e.graph.Len()
	e.nodeCount.Record(ctx, int64(result.NodeCount))

	canonical, err := e.graph.Canonicalize()
	if err != nil {
		return result, err
	}
	graphCID, err := e.casCli.PutGraph(ctx, canonical)
	if err != nil {
		return result, err
	}
	result.GraphCID = graphCID
	result.ElapsedMS = time.Since(start).Milliseconds()
	e.queryDuration.Record(ctx, float64(result.ElapsedMS))
	return result, nil
}

// handleCompleted scans nodeID's successors and promotes any whose
// dependencies are all Completed from Pending to Ready, then enqueues them
// (spec.md §4.5, "Dependency resolution").
func (e *Engine) handleCompleted(nodeID string) {
	for _, succID := range e.graph.Successors(nodeID) {
		succ, ok := e.graph.Node(succID)
		if !ok || succ.Status != graph.Pending {
			continue
		}
		if !e.graph.DependenciesCompleted(succID) {
			continue
		}
		e.graph.SetStatus(succID, graph.Ready)
		succ, _ = e.graph.Node(succID)
		e.scheduler.AddTask(succ)
	}
}

// synthesize collects all Completed Conclusion nodes, sorts by confidence
// descending with a lexicographic node-id tiebreak, and picks the highest
// as the final answer. If none exist, it emits a synthetic low-confidence
// conclusion listing the failed node ids (spec.md §4.5, §7).
func (e *Engine) synthesize(ctx context.Context, start time.Time, deadlineHit bool) Result {
	type scored struct {
		node       *graph.Node
		confidence float64
	}
	var conclusions []scored
	var failed []string

	for _, n := range e.graph.AllNodes() {
		if n.Type == graph.Conclusion && n.Status == graph.Completed {
			conf := 0.0
			if n.Result != nil && n.Result.Fields != nil {
				if c, ok := n.Result.Fields["confidence"].(float64); ok {
					conf = c
				}
			}
			conclusions = append(conclusions, scored{node: n, confidence: conf})
		}
		if n.Status == graph.Failed {
			failed = append(failed, n.ID)
		}
	}

	sort.Slice(conclusions, func(i, j int) bool {
		if conclusions[i].confidence != conclusions[j].confidence {
			return conclusions[i].confidence > conclusions[j].confidence
		}
		return conclusions[i].node.ID < conclusions[j].node.ID
	})
	sort.Strings(failed)

	ordered := make([]string, len(conclusions))
	for i, c := range conclusions {
		ordered[i] = c.node.ID
	}

	if len(conclusions) == 0 {
		answer := "no conclusion reached"
		if len(failed) > 0 {
			answer = fmt.Sprintf("no conclusion reached; failed nodes: %v", failed)
		}
		return Result{
			Answer:      answer,
			Confidence:  0.5,
			Conclusions: ordered,
			FailedNodes: failed,
			DeadlineHit: deadlineHit,
		}
	}

	best := conclusions[0]
	answer := best.node.Content
	if best.node.Result != nil && best.node.Result.Text != "" {
		answer = best.node.Result.Text
	}
	return Result{
		Answer:      answer,
		Confidence:  best.confidence,
		Conclusions: ordered,
		FailedNodes: failed,
		DeadlineHit: deadlineHit,
	}
}
