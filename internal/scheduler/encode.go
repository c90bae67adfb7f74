package scheduler

import (
	"encoding/json"

	"github.com/swarmguard/gotcore/internal/graph"
)

// encodeResult serializes a node result to the bytes persisted under its
// result_cid.
func encodeResult(r *graph.Result) ([]byte, error) {
	return json.Marshal(r)
}
