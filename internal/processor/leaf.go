package processor

import (
	"context"

	"github.com/swarmguard/gotcore/internal/graph"
	"github.com/swarmguard/gotcore/internal/scheduler"
)

// LeafProcessor handles node types that are always created already
// Completed by their parent processor (Hypothesis, Calculation, Evidence,
// Counterpoint, Reflection, Action): content-bearing nodes that spawn no
// children of their own. It is wired into the dispatch table defensively,
// in case one is ever enqueued Ready directly.
type LeafProcessor struct{}

func (LeafProcessor) Process(ctx context.Context, node graph.Node, view *graph.ReadOnlyView, instructions, data []byte) (scheduler.ProcessingResult, error) {
	return scheduler.ProcessingResult{Result: &graph.Result{Text: node.Content}}, nil
}
