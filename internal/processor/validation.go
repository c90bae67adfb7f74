package processor

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/swarmguard/gotcore/internal/goterr"
	"github.com/swarmguard/gotcore/internal/graph"
	"github.com/swarmguard/gotcore/internal/scheduler"
)

// ValidationProcessor checks a single dependency's result, emitting a
// boolean result and an optional Counterpoint (spec.md §4.4).
type ValidationProcessor struct {
	Oracle LLMOracle
}

func (p ValidationProcessor) Process(ctx context.Context, node graph.Node, view *graph.ReadOnlyView, instructions, data []byte) (scheduler.ProcessingResult, error) {
	deps := view.Dependencies(node.ID)
	if len(deps) != 1 {
		return scheduler.ProcessingResult{}, goterr.New("processor.Validation", goterr.InvalidGraph, nil)
	}
	subject := deps[0]

	raw, err := p.Oracle.Complete(ctx, "validate: "+subject.Content)
	if err != nil {
		return scheduler.ProcessingResult{}, goterr.New("processor.Validation", goterr.OracleMalformed, err)
	}
	var out validationOutput
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return scheduler.ProcessingResult{}, goterr.New("processor.Validation", goterr.OracleMalformed, err)
	}

	var newNodes []*graph.Node
	var edges []graph.Edge
	if !out.Valid && out.Counterpoint != "" {
		id := uuid.NewString()
		now := time.Now()
		newNodes = append(newNodes, completedLeaf(id, graph.Counterpoint, out.Counterpoint, node.ID, now))
		edges = append(edges, graph.Edge{Source: node.ID, Target: id, Type: graph.Contradicts, Weight: 1})
	}

	return scheduler.ProcessingResult{
		NewNodes: newNodes,
		Edges:    edges,
		Result: &graph.Result{
			Fields: map[string]any{
				"valid":      out.Valid,
				"confidence": out.Confidence,
			},
		},
	}, nil
}
