package processor

import (
	"context"
	"encoding/json"

	"github.com/swarmguard/gotcore/internal/goterr"
	"github.com/swarmguard/gotcore/internal/graph"
	"github.com/swarmguard/gotcore/internal/scheduler"
)

// ConclusionProcessor requires exactly one Synthesis dependency and writes
// the final answer, spawning no new nodes (spec.md §4.4).
type ConclusionProcessor struct {
	Oracle LLMOracle
}

func (p ConclusionProcessor) Process(ctx context.Context, node graph.Node, view *graph.ReadOnlyView, instructions, data []byte) (scheduler.ProcessingResult, error) {
	deps := view.Dependencies(node.ID)
	if len(deps) != 1 || deps[0].Type != graph.Synthesis {
		return scheduler.ProcessingResult{}, goterr.New("processor.Conclusion", goterr.InvalidGraph, nil)
	}
	synth := deps[0]

	raw, err := p.Oracle.Complete(ctx, "conclude: "+node.Content)
	if err != nil {
		return scheduler.ProcessingResult{}, goterr.New("processor.Conclusion", goterr.OracleMalformed, err)
	}
	var out conclusionOutput
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return scheduler.ProcessingResult{}, goterr.New("processor.Conclusion", goterr.OracleMalformed, err)
	}

	answer := out.Answer
	confidence := out.Confidence
	if answer == "" && synth.Result != nil {
		answer = synth.Result.Text
	}
	if confidence == 0 {
		if synth.Result != nil && synth.Result.Fields != nil {
			if c, ok := synth.Result.Fields["confidence"].(float64); ok {
				confidence = c
			}
		}
	}

	return scheduler.ProcessingResult{
		Result: &graph.Result{
			Text: answer,
			Fields: map[string]any{
				"confidence": confidence,
			},
		},
	}, nil
}
