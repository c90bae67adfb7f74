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

// AnalysisProcessor requires at least one Evidence dependency and emits zero
// or more Hypothesis or Synthesis nodes (spec.md §4.4).
type AnalysisProcessor struct {
	Oracle LLMOracle
}

func (p AnalysisProcessor) Process(ctx context.Context, node graph.Node, view *graph.ReadOnlyView, instructions, data []byte) (scheduler.ProcessingResult, error) {
	evidenceCount := 0
	for _, dep := range view.Dependencies(node.ID) {
		if dep.Type == graph.Evidence {
			evidenceCount++
		}
	}
	if evidenceCount < 1 {
		return scheduler.ProcessingResult{}, goterr.New("processor.Analysis", goterr.InvalidGraph, fmt.Errorf("node %s has no Evidence dependency", node.ID))
	}

	raw, err := p.Oracle.Complete(ctx, "analyze: "+node.Content)
	if err != nil {
		return scheduler.ProcessingResult{}, goterr.New("processor.Analysis", goterr.OracleMalformed, err)
	}
	var out analysisOutput
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return scheduler.ProcessingResult{}, goterr.New("processor.Analysis", goterr.OracleMalformed, err)
	}

	now := time.Now()
	var newNodes []*graph.Node
	var edges []graph.Edge

	for _, h := range out.Hypotheses {
		id := uuid.NewString()
		newNodes = append(newNodes, completedLeaf(id, graph.Hypothesis, h.Content, node.ID, now))
		edges = append(edges, graph.Edge{Source: node.ID, Target: id, Type: graph.Generates, Weight: h.Importance})
	}

	if out.Synthesize {
		id := uuid.NewString()
		newNodes = append(newNodes, &graph.Node{
			ID:           id,
			Type:         graph.Synthesis,
			Content:      "synthesize: " + node.Content,
			Dependencies: []string{node.ID},
			Priority:     PrioritySynthesis,
			Status:       graph.Pending,
			Metadata:     graph.Metadata{CreatedAt: now},
		})
		edges = append(edges, graph.Edge{Source: node.ID, Target: id, Type: graph.Synthesizes, Weight: 1})
	}

	return scheduler.ProcessingResult{
		NewNodes: newNodes,
		Edges:    edges,
		Result:   &graph.Result{Text: fmt.Sprintf("%d hypotheses", len(out.Hypotheses))},
	}, nil
}
