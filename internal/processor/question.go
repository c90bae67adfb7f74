package processor

import (
	"context"

	"github.com/swarmguard/gotcore/internal/graph"
	"github.com/swarmguard/gotcore/internal/scheduler"
)

// QuestionProcessor exists only to satisfy the Dispatch contract. The engine
// creates the root Question node already Completed (spec.md §4.4: "Marked
// Completed synthetically; never executed"), so the scheduler never
// actually invokes this.
type QuestionProcessor struct{}

func (QuestionProcessor) Process(ctx context.Context, node graph.Node, view *graph.ReadOnlyView, instructions, data []byte) (scheduler.ProcessingResult, error) {
	return scheduler.ProcessingResult{}, nil
}
