package graph

import (
	"fmt"
	"sync"
	"time"

	"github.com/swarmguard/gotcore/internal/goterr"
)

// Graph is the mutable DAG owned by exactly one Engine. It holds the node
// map, the edge list, and a reverse-edge index kept in sync on every
// mutation so dependency resolution never needs a linear scan.
type Graph struct {
	mu sync.RWMutex

	nodes      map[string]*Node
	edges      []Edge
	successors map[string][]string // source -> targets that depend on source
	RootNodeID string
	Metadata   GraphMetadata
}

// New returns an empty graph.
func New(name string) *Graph {
	now := time.Now()
	return &Graph{
		nodes:      make(map[string]*Node),
		successors: make(map[string][]string),
		Metadata: GraphMetadata{
			CreatedAt: now,
			UpdatedAt: now,
			Name:      name,
		},
	}
}

// AddNode inserts a node, validating that every listed dependency already
// exists in the graph. Returns goterr.DependencyMissing otherwise.
func (g *Graph) AddNode(n *Node) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.addNodeLocked(n)
}

func (g *Graph) addNodeLocked(n *Node) error {
	for _, dep := range n.Dependencies {
		if _, ok := g.nodes[dep]; !ok {
			return goterr.New("graph.AddNode", goterr.DependencyMissing, fmt.Errorf("node %s depends on unknown node %s", n.ID, dep))
		}
	}
	g.nodes[n.ID] = n
	g.Metadata.UpdatedAt = time.Now()
	return nil
}

// AddEdge appends a directed edge, validating both endpoints exist and that
// the insertion would not create a cycle.
func (g *Graph) AddEdge(e Edge) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.nodes[e.Source]; !ok {
		return goterr.New("graph.AddEdge", goterr.DependencyMissing, fmt.Errorf("edge source %s not in graph", e.Source))
	}
	if _, ok := g.nodes[e.Target]; !ok {
		return goterr.New("graph.AddEdge", goterr.DependencyMissing, fmt.Errorf("edge target %s not in graph", e.Target))
	}
	if g.reachableLocked(e.Target, e.Source) {
		return goterr.New("graph.AddEdge", goterr.CycleDetected, fmt.Errorf("edge %s->%s would create a cycle", e.Source, e.Target))
	}
	g.edges = append(g.edges, e)
	g.successors[e.Source] = append(g.successors[e.Source], e.Target)
	g.Metadata.UpdatedAt = time.Now()
	return nil
}

// reachableLocked reports whether target is reachable from start following
// successor edges. Caller must hold g.mu.
func (g *Graph) reachableLocked(start, target string) bool {
	if start == target {
		return true
	}
	visited := make(map[string]bool)
	stack := []string{start}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur == target {
			return true
		}
		if visited[cur] {
			continue
		}
		visited[cur] = true
		stack = append(stack, g.successors[cur]...)
	}
	return false
}

// Node returns the stored node by id. The pointer is shared with the graph,
// not a copy.
func (g *Graph) Node(id string) (*Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	return n, ok
}

// Successors returns the target ids of id's outgoing edges, as tracked by
// the successor index AddEdge maintains.
func (g *Graph) Successors(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, len(g.successors[id]))
	copy(out, g.successors[id])
	return out
}

// DependenciesCompleted reports whether every dependency of id is Completed.
func (g *Graph) DependenciesCompleted(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	if !ok {
		return false
	}
	for _, dep := range n.Dependencies {
		d, ok := g.nodes[dep]
		if !ok || d.Status != Completed {
			return false
		}
	}
	return true
}

// SetStatus transitions a node's status under the graph lock.
func (g *Graph) SetStatus(id string, status Status) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.nodes[id]
	if !ok {
		return goterr.New("graph.SetStatus", goterr.DependencyMissing, fmt.Errorf("unknown node %s", id))
	}
	n.Status = status
	g.Metadata.UpdatedAt = time.Now()
	return nil
}

// Complete marks a node Completed, stamping CompletedAt/ExecutionMS and
// attaching the result and result CID, per the invariant that a Completed
// node always has completed_at set and result_cid set when a result exists.
func (g *Graph) Complete(id string, result *Result, resultCID CID, executionMS int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.nodes[id]
	if !ok {
		return goterr.New("graph.Complete", goterr.DependencyMissing, fmt.Errorf("unknown node %s", id))
	}
	n.Status = Completed
	n.Result = result
	n.Metadata.CompletedAt = time.Now()
	n.Metadata.ExecutionMS = executionMS
	if result != nil {
		n.Storage.ResultCID = resultCID
	}
	g.Metadata.UpdatedAt = time.Now()
	return nil
}

// Fail increments retry_count and either returns the node to Ready (under
// MaxRetry) or marks it permanently Failed.
func (g *Graph) Fail(id string, cause error) (retryable bool, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.nodes[id]
	if !ok {
		return false, goterr.New("graph.Fail", goterr.DependencyMissing, fmt.Errorf("unknown node %s", id))
	}
	if cause != nil {
		n.Error = cause.Error()
	}
	n.Metadata.RetryCount++
	if n.Metadata.RetryCount >= MaxRetry {
		n.Status = Failed
		return false, nil
	}
	n.Status = Ready
	return true, nil
}

// UpdatePriority decreases a node's priority. Increases are refused, mirroring
// the Fibonacci heap's decrease-only contract.
func (g *Graph) UpdatePriority(id string, newPriority int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.nodes[id]
	if !ok || newPriority >= n.Priority {
		return false
	}
	n.Priority = newPriority
	return true
}

// AllNodes returns a snapshot slice of all nodes, for synthesis and
// serialization.
func (g *Graph) AllNodes() []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	return out
}

// Edges returns a snapshot of the edge list.
func (g *Graph) Edges() []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// Len reports the number of nodes in the graph.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// View returns a ReadOnlyView processors use to inspect dependency content
// and results without being able to mutate the graph.
func (g *Graph) View() *ReadOnlyView {
	return &ReadOnlyView{g: g}
}

// ReadOnlyView is the read-only projection of a Graph passed to processors,
// per spec: "a read-only view of the graph."
type ReadOnlyView struct {
	g *Graph
}

// Node returns the node by id, or false if absent.
func (v *ReadOnlyView) Node(id string) (Node, bool) {
	n, ok := v.g.Node(id)
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// Dependencies returns the full dependency nodes of id, in order.
func (v *ReadOnlyView) Dependencies(id string) []Node {
	n, ok := v.g.Node(id)
	if !ok {
		return nil
	}
	out := make([]Node, 0, len(n.Dependencies))
	for _, dep := range n.Dependencies {
		if d, ok := v.g.Node(dep); ok {
			out = append(out, *d)
		}
	}
	return out
}
