package processor

import (
	"github.com/swarmguard/gotcore/internal/graph"
	"github.com/swarmguard/gotcore/internal/scheduler"
)

// Registry is the tagged-variant dispatch table spec.md §9's design notes
// prescribe in place of open inheritance: a closed map from node type to
// its processor.
type Registry struct {
	table map[graph.NodeType]scheduler.Processor
}

// NewRegistry builds the canonical dispatch table, wiring every node type
// to the oracle-backed processor from spec.md §4.4's table, or to
// LeafProcessor/QuestionProcessor for the synthetically-completed types.
func NewRegistry(oracle LLMOracle) *Registry {
	return &Registry{table: map[graph.NodeType]scheduler.Processor{
		graph.Question:      QuestionProcessor{},
		graph.Decomposition: DecompositionProcessor{Oracle: oracle},
		graph.Research:      ResearchProcessor{Oracle: oracle},
		graph.Analysis:      AnalysisProcessor{Oracle: oracle},
		graph.Synthesis:     SynthesisProcessor{Oracle: oracle},
		graph.Conclusion:    ConclusionProcessor{Oracle: oracle},
		graph.Validation:    ValidationProcessor{Oracle: oracle},
		graph.Hypothesis:    LeafProcessor{},
		graph.Calculation:   LeafProcessor{},
		graph.Evidence:      LeafProcessor{},
		graph.Counterpoint:  LeafProcessor{},
		graph.Reflection:    LeafProcessor{},
		graph.Action:        LeafProcessor{},
	}}
}

// For resolves the processor for a node type.
func (r *Registry) For(t graph.NodeType) (scheduler.Processor, bool) {
	p, ok := r.table[t]
	return p, ok
}

var _ scheduler.Dispatch = (*Registry)(nil)
