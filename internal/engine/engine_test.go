package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/swarmguard/gotcore/internal/cas"
	"github.com/swarmguard/gotcore/internal/processor"
)

// memCAS is a minimal in-memory cas.Client for engine tests.
type memCAS struct {
	mu   sync.Mutex
	data map[cas.CID][]byte
}

func newMemCAS() *memCAS { return &memCAS{data: make(map[cas.CID][]byte)} }

func (m *memCAS) Put(ctx context.Context, data []byte) (cas.CID, error) {
	sum := sha256.Sum256(data)
	id := cas.CID(hex.EncodeToString(sum[:]))
	m.mu.Lock()
	m.data[id] = data
	m.mu.Unlock()
	return id, nil
}

func (m *memCAS) Get(ctx context.Context, id cas.CID) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.data[id]
	if !ok {
		return nil, cas.ErrNotFound
	}
	return data, nil
}

func (m *memCAS) PutGraph(ctx context.Context, canonical []byte) (cas.CID, error) {
	return m.Put(ctx, canonical)
}

func (m *memCAS) GetGraph(ctx context.Context, id cas.CID) ([]byte, error) { return m.Get(ctx, id) }

var _ cas.Client = (*memCAS)(nil)

// scriptedOracle answers every LLMOracle.Complete call by matching the
// prompt's prefix against a fixed script, the way a recorded fixture would.
type scriptedOracle struct{}

func (scriptedOracle) Complete(ctx context.Context, prompt string) (string, error) {
	switch {
	case strings.HasPrefix(prompt, "decompose:"):
		return `{"subquestions":[
			{"content":"sub-a","approach":"research","importance":0.3},
			{"content":"sub-b","approach":"research","importance":0.5},
			{"content":"sub-c","approach":"research","importance":0.7}
		]}`, nil
	case strings.HasPrefix(prompt, "research:"):
		return `{"evidence":[],"counterpoints":[]}`, nil
	case strings.HasPrefix(prompt, "synthesize:"):
		return `{"summary":"combined synthesis","confidence":0.8}`, nil
	case strings.HasPrefix(prompt, "conclude:"):
		return `{"answer":"final answer","confidence":0.9}`, nil
	default:
		return "", fmt.Errorf("unscripted prompt: %s", prompt)
	}
}

func TestProcessQueryEndToEnd(t *testing.T) {
	eng := New(newMemCAS(), scriptedOracle{})
	result, err := eng.ProcessQuery(context.Background(), "what is the answer?", Options{TimeoutMS: 5000})
	if err != nil {
		t.Fatalf("process query: %v", err)
	}
	if result.Answer != "final answer" {
		t.Fatalf("expected scripted final answer, got %q", result.Answer)
	}
	if result.Confidence != 0.9 {
		t.Fatalf("expected confidence 0.9, got %v", result.Confidence)
	}
	if result.GraphCID == "" {
		t.Fatalf("expected a non-empty graph CID")
	}
	if len(result.Conclusions) != 1 {
		t.Fatalf("expected exactly one conclusion node, got %d", len(result.Conclusions))
	}
	if len(result.FailedNodes) != 0 {
		t.Fatalf("expected no failed nodes, got %v", result.FailedNodes)
	}
}

func TestProcessQueryWithMalformedOracleOutputFailsGracefully(t *testing.T) {
	badOracle := oracleFunc(func(ctx context.Context, prompt string) (string, error) {
		return "not json", nil
	})
	eng := New(newMemCAS(), badOracle)
	result, err := eng.ProcessQuery(context.Background(), "broken", Options{TimeoutMS: 5000})
	if err != nil {
		t.Fatalf("process query should not bubble a processor error to the caller: %v", err)
	}
	if len(result.FailedNodes) == 0 {
		t.Fatalf("expected the decomposition node to exhaust retries and appear in FailedNodes")
	}
	if result.Confidence != 0.5 {
		t.Fatalf("expected the synthetic fallback confidence 0.5, got %v", result.Confidence)
	}
}

type oracleFunc func(ctx context.Context, prompt string) (string, error)

func (f oracleFunc) Complete(ctx context.Context, prompt string) (string, error) { return f(ctx, prompt) }

var _ processor.LLMOracle = oracleFunc(nil)
