package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/swarmguard/gotcore/internal/goterr"
	"github.com/swarmguard/gotcore/internal/graph"
	"github.com/swarmguard/gotcore/internal/scheduler"
)

// ResearchProcessor requires all dependencies Completed and emits zero or
// more Evidence/Counterpoint nodes (spec.md §4.4).
type ResearchProcessor struct {
	Oracle LLMOracle
}

func (p ResearchProcessor) Process(ctx context.Context, node graph.Node, view *graph.ReadOnlyView, instructions, data []byte) (scheduler.ProcessingResult, error) {
	for _, dep := range view.Dependencies(node.ID) {
		if dep.Status != graph.Completed {
			return scheduler.ProcessingResult{}, goterr.New("processor.Research", goterr.InvalidGraph, fmt.Errorf("dependency %s is %s, not Completed", dep.ID, dep.Status))
		}
	}

	raw, err := p.Oracle.Complete(ctx, "research: "+node.Content)
	if err != nil {
		return scheduler.ProcessingResult{}, goterr.New("processor.Research", goterr.OracleMalformed, err)
	}
	var out researchOutput
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return scheduler.ProcessingResult{}, goterr.New("processor.Research", goterr.OracleMalformed, err)
	}

	now := time.Now()
	var newNodes []*graph.Node
	var edges []graph.Edge

	for _, f := range out.Evidence {
		id := uuid.NewString()
		newNodes = append(newNodes, completedLeaf(id, graph.Evidence, f.Content, node.ID, now))
		edges = append(edges, graph.Edge{Source: node.ID, Target: id, Type: graph.Supports, Weight: f.Importance})
	}
	for _, f := range out.Counterpoints {
		id := uuid.NewString()
		newNodes = append(newNodes, completedLeaf(id, graph.Counterpoint, f.Content, node.ID, now))
		edges = append(edges, graph.Edge{Source: node.ID, Target: id, Type: graph.Contradicts, Weight: f.Importance})
	}

	return scheduler.ProcessingResult{
		NewNodes: newNodes,
		Edges:    edges,
		Result:   &graph.Result{Text: fmt.Sprintf("%d evidence, %d counterpoints", len(out.Evidence), len(out.Counterpoints))},
	}, nil
}

// completedLeaf builds a node that is born Completed, for content-bearing
// leaf types a parent processor writes directly rather than scheduling. Its
// content lives in Content, not Result, since it is never routed through
// the scheduler's Complete path that stamps a result_cid.
func completedLeaf(id string, t graph.NodeType, content, parentID string, now time.Time) *graph.Node {
	return &graph.Node{
		ID:           id,
		Type:         t,
		Content:      content,
		Dependencies: []string{parentID},
		Priority:     PriorityConclusion, // leaves never compete for scheduling; value is inert
		Status:       graph.Completed,
		Metadata: graph.Metadata{
			CreatedAt:   now,
			CompletedAt: now,
		},
	}
}
