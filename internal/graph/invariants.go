package graph

import "fmt"

// Validate checks the invariants spec.md §3 requires to hold between
// scheduler ticks: acyclicity, dependency/edge referential integrity, the
// root's existence, and per-node status consistency. It is intended for
// tests and for defensive checks after bulk mutation (e.g. FromCanonical).
func (g *Graph) Validate() error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.RootNodeID != "" {
		if _, ok := g.nodes[g.RootNodeID]; !ok {
			return fmt.Errorf("root node %s not present in graph", g.RootNodeID)
		}
	}

	for id, n := range g.nodes {
		for _, dep := range n.Dependencies {
			if _, ok := g.nodes[dep]; !ok {
				return fmt.Errorf("node %s depends on missing node %s", id, dep)
			}
		}
		if n.Status == Ready {
			for _, dep := range n.Dependencies {
				if d := g.nodes[dep]; d.Status != Completed {
					return fmt.Errorf("node %s is Ready but dependency %s is %s", id, dep, d.Status)
				}
			}
		}
		if n.Status == Completed {
			if n.Metadata.CompletedAt.IsZero() {
				return fmt.Errorf("node %s is Completed but has no completed_at", id)
			}
			if n.Result != nil && n.Storage.ResultCID == "" {
				return fmt.Errorf("node %s is Completed with a result but no result_cid", id)
			}
			if !n.Metadata.CreatedAt.IsZero() && n.Metadata.CreatedAt.After(n.Metadata.CompletedAt) {
				return fmt.Errorf("node %s created_at is after completed_at", id)
			}
		}
		if n.Metadata.RetryCount > MaxRetry {
			return fmt.Errorf("node %s retry_count %d exceeds MaxRetry %d", id, n.Metadata.RetryCount, MaxRetry)
		}
	}

	for _, e := range g.edges {
		if _, ok := g.nodes[e.Source]; !ok {
			return fmt.Errorf("edge source %s not present in graph", e.Source)
		}
		if _, ok := g.nodes[e.Target]; !ok {
			return fmt.Errorf("edge target %s not present in graph", e.Target)
		}
	}

	if g.hasCycleLocked() {
		return fmt.Errorf("graph contains a cycle")
	}
	return nil
}

// hasCycleLocked runs a DFS-based cycle check over the successor index.
// Caller must hold g.mu for reading.
func (g *Graph) hasCycleLocked() bool {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(g.nodes))

	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = gray
		for _, next := range g.successors[id] {
			switch color[next] {
			case gray:
				return true
			case white:
				if visit(next) {
					return true
				}
			}
		}
		color[id] = black
		return false
	}

	for id := range g.nodes {
		if color[id] == white {
			if visit(id) {
				return true
			}
		}
	}
	return false
}
