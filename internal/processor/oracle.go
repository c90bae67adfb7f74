// Package processor implements the per-node-type transformers dispatched by
// the scheduler: each consumes a read-only graph view plus the node's
// fetched inputs and produces new nodes/edges, delegating the actual
// reasoning to an external LLMOracle.
package processor

import "context"

// LLMOracle is the external interface spec.md §6 describes: a deterministic
// completion function the core never implements itself. Processors parse
// structured JSON out of its return value; malformed JSON is an
// OracleMalformed failure, which the scheduler retries.
type LLMOracle interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
