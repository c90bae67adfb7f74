package processor

import (
	"context"
	"testing"
	"time"

	"github.com/swarmguard/gotcore/internal/goterr"
	"github.com/swarmguard/gotcore/internal/graph"
)

// scriptedOracle answers Complete by prompt prefix, the way a recorded
// fixture would.
type scriptedOracle map[string]string

func (s scriptedOracle) Complete(ctx context.Context, prompt string) (string, error) {
	for prefix, resp := range s {
		if len(prompt) >= len(prefix) && prompt[:len(prefix)] == prefix {
			return resp, nil
		}
	}
	return "", nil
}

func mustAddNode(t *testing.T, g *graph.Graph, n *graph.Node) {
	t.Helper()
	if err := g.AddNode(n); err != nil {
		t.Fatalf("add node %s: %v", n.ID, err)
	}
}

func TestDecompositionProcessorRejectsWrongParentType(t *testing.T) {
	g := graph.New("t")
	parent := &graph.Node{ID: "research-1", Type: graph.Research, Status: graph.Completed}
	mustAddNode(t, g, parent)
	node := graph.Node{ID: "decomp-1", Type: graph.Decomposition, Content: "q", Dependencies: []string{"research-1"}}

	p := DecompositionProcessor{Oracle: scriptedOracle{}}
	_, err := p.Process(context.Background(), node, g.View(), nil, nil)
	if !goterr.Is(err, goterr.InvalidGraph) {
		t.Fatalf("expected InvalidGraph rejecting a non-Question/Synthesis parent, got %v", err)
	}
}

func TestDecompositionProcessorBuildsSubquestionsSynthesisAndConclusion(t *testing.T) {
	g := graph.New("t")
	question := &graph.Node{ID: "q", Type: graph.Question, Status: graph.Completed}
	mustAddNode(t, g, question)
	node := graph.Node{ID: "decomp-1", Type: graph.Decomposition, Content: "original question", Dependencies: []string{"q"}}

	oracle := scriptedOracle{"decompose:": `{"subquestions":[
		{"content":"sub-a","approach":"research","importance":0.2},
		{"content":"sub-b","approach":"analysis","importance":0.9},
		{"content":"sub-c","approach":"research","importance":0.5}
	]}`}
	p := DecompositionProcessor{Oracle: oracle}
	result, err := p.Process(context.Background(), node, g.View(), nil, nil)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	// 3 subquestions + 1 synthesis + 1 conclusion.
	if len(result.NewNodes) != 5 {
		t.Fatalf("expected 5 new nodes, got %d", len(result.NewNodes))
	}
	var analysisCount, researchCount, synthCount, conclCount int
	for _, n := range result.NewNodes {
		switch n.Type {
		case graph.Analysis:
			analysisCount++
		case graph.Research:
			researchCount++
		case graph.Synthesis:
			synthCount++
		case graph.Conclusion:
			conclCount++
		}
	}
	if analysisCount != 1 || researchCount != 2 || synthCount != 1 || conclCount != 1 {
		t.Fatalf("unexpected node type mix: analysis=%d research=%d synth=%d concl=%d", analysisCount, researchCount, synthCount, conclCount)
	}
}

func TestDecompositionProcessorRejectsOutOfRangeSubquestionCount(t *testing.T) {
	g := graph.New("t")
	question := &graph.Node{ID: "q", Type: graph.Question, Status: graph.Completed}
	mustAddNode(t, g, question)
	node := graph.Node{ID: "decomp-1", Type: graph.Decomposition, Content: "q", Dependencies: []string{"q"}}

	oracle := scriptedOracle{"decompose:": `{"subquestions":[{"content":"only-one","approach":"research","importance":0.5}]}`}
	p := DecompositionProcessor{Oracle: oracle}
	_, err := p.Process(context.Background(), node, g.View(), nil, nil)
	if !goterr.Is(err, goterr.OracleMalformed) {
		t.Fatalf("expected OracleMalformed for a 1-subquestion decomposition, got %v", err)
	}
}

func TestResearchProcessorRejectsIncompleteDependency(t *testing.T) {
	g := graph.New("t")
	dep := &graph.Node{ID: "dep", Type: graph.Decomposition, Status: graph.Ready}
	mustAddNode(t, g, dep)
	node := graph.Node{ID: "research-1", Type: graph.Research, Content: "sub", Dependencies: []string{"dep"}}

	p := ResearchProcessor{Oracle: scriptedOracle{}}
	_, err := p.Process(context.Background(), node, g.View(), nil, nil)
	if !goterr.Is(err, goterr.InvalidGraph) {
		t.Fatalf("expected InvalidGraph for an incomplete dependency, got %v", err)
	}
}

func TestResearchProcessorEmitsEvidenceAndCounterpoints(t *testing.T) {
	g := graph.New("t")
	dep := &graph.Node{ID: "dep", Type: graph.Decomposition, Status: graph.Completed}
	mustAddNode(t, g, dep)
	node := graph.Node{ID: "research-1", Type: graph.Research, Content: "sub", Dependencies: []string{"dep"}}

	oracle := scriptedOracle{"research:": `{"evidence":[{"content":"e1","importance":0.6}],"counterpoints":[{"content":"c1","importance":0.4}]}`}
	p := ResearchProcessor{Oracle: oracle}
	result, err := p.Process(context.Background(), node, g.View(), nil, nil)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(result.NewNodes) != 2 {
		t.Fatalf("expected 2 new nodes (evidence + counterpoint), got %d", len(result.NewNodes))
	}
	for _, n := range result.NewNodes {
		if n.Status != graph.Completed {
			t.Fatalf("expected research leaves to be born Completed, got %s for %s", n.Status, n.ID)
		}
	}
}

func TestAnalysisProcessorRequiresEvidenceDependency(t *testing.T) {
	g := graph.New("t")
	dep := &graph.Node{ID: "dep", Type: graph.Research, Status: graph.Completed}
	mustAddNode(t, g, dep)
	node := graph.Node{ID: "analysis-1", Type: graph.Analysis, Content: "x", Dependencies: []string{"dep"}}

	p := AnalysisProcessor{Oracle: scriptedOracle{}}
	_, err := p.Process(context.Background(), node, g.View(), nil, nil)
	if !goterr.Is(err, goterr.InvalidGraph) {
		t.Fatalf("expected InvalidGraph without an Evidence dependency, got %v", err)
	}
}

func TestAnalysisProcessorEmitsHypothesesAndSynthesis(t *testing.T) {
	g := graph.New("t")
	evidence := &graph.Node{ID: "ev", Type: graph.Evidence, Status: graph.Completed}
	mustAddNode(t, g, evidence)
	node := graph.Node{ID: "analysis-1", Type: graph.Analysis, Content: "x", Dependencies: []string{"ev"}}

	oracle := scriptedOracle{"analyze:": `{"hypotheses":[{"content":"h1","importance":0.5}],"synthesize":true}`}
	p := AnalysisProcessor{Oracle: oracle}
	result, err := p.Process(context.Background(), node, g.View(), nil, nil)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(result.NewNodes) != 2 {
		t.Fatalf("expected a hypothesis and a synthesis node, got %d", len(result.NewNodes))
	}
	var sawSynthesis bool
	for _, n := range result.NewNodes {
		if n.Type == graph.Synthesis {
			sawSynthesis = true
			if n.Status != graph.Pending {
				t.Fatalf("expected the synthesize=true branch to emit a Pending synthesis node awaiting its Analysis dependency, got %s", n.Status)
			}
		}
	}
	if !sawSynthesis {
		t.Fatalf("expected a synthesis node when synthesize=true")
	}
}

func TestValidationProcessorRequiresExactlyOneDependency(t *testing.T) {
	g := graph.New("t")
	a := &graph.Node{ID: "a", Type: graph.Hypothesis, Status: graph.Completed}
	b := &graph.Node{ID: "b", Type: graph.Hypothesis, Status: graph.Completed}
	mustAddNode(t, g, a)
	mustAddNode(t, g, b)
	node := graph.Node{ID: "val-1", Type: graph.Validation, Dependencies: []string{"a", "b"}}

	p := ValidationProcessor{Oracle: scriptedOracle{}}
	_, err := p.Process(context.Background(), node, g.View(), nil, nil)
	if !goterr.Is(err, goterr.InvalidGraph) {
		t.Fatalf("expected InvalidGraph with 2 dependencies, got %v", err)
	}
}

func TestValidationProcessorEmitsCounterpointWhenInvalid(t *testing.T) {
	g := graph.New("t")
	subject := &graph.Node{ID: "h", Type: graph.Hypothesis, Content: "claim", Status: graph.Completed}
	mustAddNode(t, g, subject)
	node := graph.Node{ID: "val-1", Type: graph.Validation, Dependencies: []string{"h"}}

	oracle := scriptedOracle{"validate:": `{"valid":false,"counterpoint":"this contradicts evidence x","confidence":0.7}`}
	p := ValidationProcessor{Oracle: oracle}
	result, err := p.Process(context.Background(), node, g.View(), nil, nil)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(result.NewNodes) != 1 || result.NewNodes[0].Type != graph.Counterpoint {
		t.Fatalf("expected a single counterpoint node, got %v", result.NewNodes)
	}
}

func TestValidationProcessorEmitsNoNodesWhenValid(t *testing.T) {
	g := graph.New("t")
	subject := &graph.Node{ID: "h", Type: graph.Hypothesis, Content: "claim", Status: graph.Completed}
	mustAddNode(t, g, subject)
	node := graph.Node{ID: "val-1", Type: graph.Validation, Dependencies: []string{"h"}}

	oracle := scriptedOracle{"validate:": `{"valid":true,"confidence":0.9}`}
	p := ValidationProcessor{Oracle: oracle}
	result, err := p.Process(context.Background(), node, g.View(), nil, nil)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(result.NewNodes) != 0 {
		t.Fatalf("expected no new nodes when valid, got %v", result.NewNodes)
	}
}

func TestSynthesisProcessorRejectsIncompleteDependency(t *testing.T) {
	g := graph.New("t")
	dep := &graph.Node{ID: "dep", Type: graph.Research, Status: graph.Ready}
	mustAddNode(t, g, dep)
	node := graph.Node{ID: "synth-1", Type: graph.Synthesis, Dependencies: []string{"dep"}}

	p := SynthesisProcessor{Oracle: scriptedOracle{}}
	_, err := p.Process(context.Background(), node, g.View(), nil, nil)
	if !goterr.Is(err, goterr.InvalidGraph) {
		t.Fatalf("expected InvalidGraph, got %v", err)
	}
}

func TestSynthesisProcessorFallsBackToDependencyContentWhenSummaryEmpty(t *testing.T) {
	g := graph.New("t")
	dep := &graph.Node{ID: "dep", Type: graph.Research, Content: "dependency content", Status: graph.Completed}
	mustAddNode(t, g, dep)
	node := graph.Node{ID: "synth-1", Type: graph.Synthesis, Content: "synthesize: q", Dependencies: []string{"dep"}}

	oracle := scriptedOracle{"synthesize:": `{"summary":"","confidence":0.6}`}
	p := SynthesisProcessor{Oracle: oracle}
	result, err := p.Process(context.Background(), node, g.View(), nil, nil)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if result.Result.Text != "dependency content" {
		t.Fatalf("expected fallback to dependency content, got %q", result.Result.Text)
	}
}

func TestConclusionProcessorRequiresSynthesisDependency(t *testing.T) {
	g := graph.New("t")
	dep := &graph.Node{ID: "dep", Type: graph.Research, Status: graph.Completed}
	mustAddNode(t, g, dep)
	node := graph.Node{ID: "concl-1", Type: graph.Conclusion, Dependencies: []string{"dep"}}

	p := ConclusionProcessor{Oracle: scriptedOracle{}}
	_, err := p.Process(context.Background(), node, g.View(), nil, nil)
	if !goterr.Is(err, goterr.InvalidGraph) {
		t.Fatalf("expected InvalidGraph without a Synthesis dependency, got %v", err)
	}
}

func TestConclusionProcessorFallsBackToSynthesisConfidence(t *testing.T) {
	g := graph.New("t")
	synth := &graph.Node{
		ID:     "synth",
		Type:   graph.Synthesis,
		Status: graph.Completed,
		Result: &graph.Result{Text: "synthesized answer", Fields: map[string]any{"confidence": 0.77}},
	}
	mustAddNode(t, g, synth)
	node := graph.Node{ID: "concl-1", Type: graph.Conclusion, Content: "conclude: q", Dependencies: []string{"synth"}}

	oracle := scriptedOracle{"conclude:": `{"answer":"","confidence":0}`}
	p := ConclusionProcessor{Oracle: oracle}
	result, err := p.Process(context.Background(), node, g.View(), nil, nil)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if result.Result.Text != "synthesized answer" {
		t.Fatalf("expected fallback answer from synthesis result, got %q", result.Result.Text)
	}
	if result.Result.Fields["confidence"] != 0.77 {
		t.Fatalf("expected fallback confidence 0.77, got %v", result.Result.Fields["confidence"])
	}
}

func TestQuestionProcessorIsANoOp(t *testing.T) {
	p := QuestionProcessor{}
	result, err := p.Process(context.Background(), graph.Node{ID: "q"}, nil, nil, nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(result.NewNodes) != 0 || result.Result != nil {
		t.Fatalf("expected a zero-value result, got %+v", result)
	}
}

func TestLeafProcessorEchoesContentAsResult(t *testing.T) {
	p := LeafProcessor{}
	node := graph.Node{ID: "h1", Content: "some hypothesis text"}
	result, err := p.Process(context.Background(), node, nil, nil, nil)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if result.Result == nil || result.Result.Text != "some hypothesis text" {
		t.Fatalf("expected the leaf's content echoed as the result text, got %+v", result.Result)
	}
}

func TestImportancePriorityClampsToReservedBand(t *testing.T) {
	cases := []struct {
		importance float64
		want       int
	}{
		{-1, importanceMin},
		{0, importanceMin},
		{1, importanceMax},
		{2, importanceMax},
		{0.5, 6},
	}
	for _, c := range cases {
		if got := ImportancePriority(c.importance); got != c.want {
			t.Fatalf("ImportancePriority(%v) = %d, want %d", c.importance, got, c.want)
		}
	}
}

func TestRegistryCoversEveryNodeType(t *testing.T) {
	reg := NewRegistry(scriptedOracle{})
	for _, nt := range []graph.NodeType{
		graph.Question, graph.Decomposition, graph.Research, graph.Analysis,
		graph.Synthesis, graph.Conclusion, graph.Validation, graph.Hypothesis,
		graph.Calculation, graph.Evidence, graph.Counterpoint, graph.Reflection,
		graph.Action,
	} {
		if _, ok := reg.For(nt); !ok {
			t.Fatalf("expected a processor registered for node type %s", nt)
		}
	}
}

func TestCompletedLeafIsBornCompletedWithTimestamp(t *testing.T) {
	now := time.Now()
	n := completedLeaf("id-1", graph.Evidence, "text", "parent-1", now)
	if n.Status != graph.Completed {
		t.Fatalf("expected a completed leaf, got status %s", n.Status)
	}
	if n.Metadata.CompletedAt != now {
		t.Fatalf("expected CompletedAt stamped at construction time")
	}
	if len(n.Dependencies) != 1 || n.Dependencies[0] != "parent-1" {
		t.Fatalf("expected the leaf to depend on its parent, got %v", n.Dependencies)
	}
}
