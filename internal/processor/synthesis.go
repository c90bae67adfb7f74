package processor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/swarmguard/gotcore/internal/goterr"
	"github.com/swarmguard/gotcore/internal/graph"
	"github.com/swarmguard/gotcore/internal/scheduler"
)

// SynthesisProcessor requires all dependencies Completed and writes a
// combined result, spawning no new nodes (spec.md §4.4).
type SynthesisProcessor struct {
	Oracle LLMOracle
}

func (p SynthesisProcessor) Process(ctx context.Context, node graph.Node, view *graph.ReadOnlyView, instructions, data []byte) (scheduler.ProcessingResult, error) {
	var parts []string
	for _, dep := range view.Dependencies(node.ID) {
		if dep.Status != graph.Completed {
			return scheduler.ProcessingResult{}, goterr.New("processor.Synthesis", goterr.InvalidGraph, fmt.Errorf("dependency %s is %s, not Completed", dep.ID, dep.Status))
		}
		if dep.Result != nil {
			parts = append(parts, dep.Result.Text)
		} else {
			parts = append(parts, dep.Content)
		}
	}

	raw, err := p.Oracle.Complete(ctx, "synthesize: "+node.Content)
	if err != nil {
		return scheduler.ProcessingResult{}, goterr.New("processor.Synthesis", goterr.OracleMalformed, err)
	}
	var out synthesisOutput
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return scheduler.ProcessingResult{}, goterr.New("processor.Synthesis", goterr.OracleMalformed, err)
	}

	summary := out.Summary
	if summary == "" {
		for i, p := range parts {
			if i > 0 {
				summary += " "
			}
			summary += p
		}
	}

	return scheduler.ProcessingResult{
		Result: &graph.Result{
			Text: summary,
			Fields: map[string]any{
				"confidence": out.Confidence,
			},
		},
	}, nil
}
