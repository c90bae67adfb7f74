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

// DecompositionProcessor expands a Question or Synthesis node into 3-7
// subquestions, a Synthesis node depending on all of them, and a Conclusion
// node depending on that Synthesis (spec.md §4.4).
type DecompositionProcessor struct {
	Oracle LLMOracle
}

func (p DecompositionProcessor) Process(ctx context.Context, node graph.Node, view *graph.ReadOnlyView, instructions, data []byte) (scheduler.ProcessingResult, error) {
	if len(node.Dependencies) != 1 {
		return scheduler.ProcessingResult{}, goterr.New("processor.Decomposition", goterr.InvalidGraph, fmt.Errorf("expected exactly one dependency, got %d", len(node.Dependencies)))
	}
	parent, _ := view.Node(node.Dependencies[0])
	if parent.Type != graph.Question && parent.Type != graph.Synthesis {
		return scheduler.ProcessingResult{}, goterr.New("processor.Decomposition", goterr.InvalidGraph, fmt.Errorf("dependency %s is type %s, want Question or Synthesis", parent.ID, parent.Type))
	}

	prompt := fmt.Sprintf("decompose: %s", node.Content)
	raw, err := p.Oracle.Complete(ctx, prompt)
	if err != nil {
		return scheduler.ProcessingResult{}, goterr.New("processor.Decomposition", goterr.OracleMalformed, err)
	}
	var out decompositionOutput
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return scheduler.ProcessingResult{}, goterr.New("processor.Decomposition", goterr.OracleMalformed, err)
	}
	if len(out.Subquestions) < 3 || len(out.Subquestions) > 7 {
		return scheduler.ProcessingResult{}, goterr.New("processor.Decomposition", goterr.OracleMalformed, fmt.Errorf("expected 3-7 subquestions, got %d", len(out.Subquestions)))
	}

	now := time.Now()
	var newNodes []*graph.Node
	var edges []graph.Edge
	subIDs := make([]string, 0, len(out.Subquestions))

	for _, sq := range out.Subquestions {
		nt := graph.Research
		if sq.Approach == "analysis" {
			nt = graph.Analysis
		}
		id := uuid.NewString()
		subIDs = append(subIDs, id)
		newNodes = append(newNodes, &graph.Node{
			ID:           id,
			Type:         nt,
			Content:      sq.Content,
			Dependencies: []string{node.ID},
			Priority:     ImportancePriority(sq.Importance),
			Status:       graph.Pending,
			Metadata:     graph.Metadata{CreatedAt: now},
		})
		edges = append(edges, graph.Edge{Source: node.ID, Target: id, Type: graph.Decomposes, Weight: 1})
	}

	synthID := uuid.NewString()
	newNodes = append(newNodes, &graph.Node{
		ID:           synthID,
		Type:         graph.Synthesis,
		Content:      "synthesize: " + node.Content,
		Dependencies: subIDs,
		Priority:     PrioritySynthesis,
		Status:       graph.Pending,
		Metadata:     graph.Metadata{CreatedAt: now},
	})
	for _, id := range subIDs {
		edges = append(edges, graph.Edge{Source: id, Target: synthID, Type: graph.Synthesizes, Weight: 1})
	}

	conclID := uuid.NewString()
	newNodes = append(newNodes, &graph.Node{
		ID:           conclID,
		Type:         graph.Conclusion,
		Content:      "conclude: " + node.Content,
		Dependencies: []string{synthID},
		Priority:     PriorityConclusion,
		Status:       graph.Pending,
		Metadata:     graph.Metadata{CreatedAt: now},
	})
	edges = append(edges, graph.Edge{Source: synthID, Target: conclID, Type: graph.Concludes, Weight: 1})

	return scheduler.ProcessingResult{NewNodes: newNodes, Edges: edges}, nil
}
