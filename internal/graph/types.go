// Package graph implements the Graph-of-Thought data model: typed reasoning
// nodes, directed edges between them, and the invariants that must hold
// between scheduler ticks.
package graph

import "time"

// CID is an opaque content identifier returned by the CAS client. Two CIDs
// are equal iff the blobs they name are byte-equal.
type CID string

// NodeType is the closed set of reasoning-node roles. Each variant selects a
// processor in the dispatch table built by the processor package.
type NodeType string

const (
	Question     NodeType = "question"
	Hypothesis   NodeType = "hypothesis"
	Decomposition NodeType = "decomposition"
	Research     NodeType = "research"
	Analysis     NodeType = "analysis"
	Calculation  NodeType = "calculation"
	Evidence     NodeType = "evidence"
	Counterpoint NodeType = "counterpoint"
	Synthesis    NodeType = "synthesis"
	Conclusion   NodeType = "conclusion"
	Validation   NodeType = "validation"
	Reflection   NodeType = "reflection"
	Action       NodeType = "action"
)

// Status is a node's place in its lifecycle state machine.
type Status string

const (
	Pending    Status = "pending"
	Ready      Status = "ready"
	InProgress Status = "in_progress"
	Completed  Status = "completed"
	Failed     Status = "failed"
	Skipped    Status = "skipped"
)

// EdgeType labels the relationship a directed edge expresses between two
// nodes.
type EdgeType string

const (
	Decomposes  EdgeType = "decomposes"
	Supports    EdgeType = "supports"
	Contradicts EdgeType = "contradicts"
	Synthesizes EdgeType = "synthesizes"
	Concludes   EdgeType = "concludes"
	Generates   EdgeType = "generates"
)

// MaxRetry bounds retry_count before a node is permanently Failed.
const MaxRetry = 3

// Storage records the CIDs under which a node's inputs and output live.
type Storage struct {
	InstructionsCID CID `json:"instructions_cid,omitempty"`
	DataCID         CID `json:"data_cid,omitempty"`
	ResultCID       CID `json:"result_cid,omitempty"`
}

// Metadata carries the bookkeeping fields attached to every node.
type Metadata struct {
	CreatedAt   time.Time `json:"created_at"`
	CompletedAt time.Time `json:"completed_at,omitzero"`
	Confidence  float64   `json:"confidence"`
	Complexity  int       `json:"complexity"`
	ExecutionMS int64     `json:"execution_ms"`
	RetryCount  int       `json:"retry_count"`
	Author      string    `json:"author,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
}

// Result is the structured output a processor attaches to a completed node.
// Its shape is processor-defined; callers type-assert by convention.
type Result struct {
	Text   string         `json:"text,omitempty"`
	Fields map[string]any `json:"fields,omitempty"`
}

// Node is a single reasoning step. NodeId is a process-unique UUID string.
type Node struct {
	ID           string   `json:"id"`
	Type         NodeType `json:"type"`
	Content      string   `json:"content"`
	Dependencies []string `json:"dependencies"`
	Priority     int      `json:"priority"`
	Status       Status   `json:"status"`
	Result       *Result  `json:"result,omitempty"`
	Metadata     Metadata `json:"metadata"`
	Storage      Storage  `json:"storage"`
	Error        string   `json:"error,omitempty"`
}

// Edge is a directed, typed, weighted relationship between two node ids.
type Edge struct {
	Source string   `json:"source"`
	Target string   `json:"target"`
	Type   EdgeType `json:"type"`
	Weight float64  `json:"weight"`
}

// GraphMetadata carries descriptive fields for a graph as a whole.
type GraphMetadata struct {
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Name        string    `json:"name,omitempty"`
	Description string    `json:"description,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
}
