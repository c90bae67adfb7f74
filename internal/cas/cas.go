// Package cas implements the content-addressed storage client: a
// cache-backed get/put interface over byte blobs and serialized graphs,
// keyed by a SHA-256 content hash rather than a caller-chosen name.
package cas

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/swarmguard/gotcore/internal/goterr"
)

// Client is the CAS contract spec.md §4.1 requires: deduplicating put, get
// that fails NotFound on an absent CID, and the structured-graph variants
// used by the engine to persist a whole GoT graph under one CID.
type Client interface {
	Put(ctx context.Context, data []byte) (CID, error)
	Get(ctx context.Context, id CID) ([]byte, error)
	PutGraph(ctx context.Context, canonical []byte) (CID, error)
	GetGraph(ctx context.Context, id CID) ([]byte, error)
}

// CID mirrors graph.CID without importing the graph package, so cas has no
// dependency on the data model it stores bytes for.
type CID string

// contentHash returns the hex SHA-256 digest used as both the dedup key and
// the CID value — the client treats hash equality as content equality, which
// is safe under SHA-256's collision resistance.
func contentHash(data []byte) CID {
	sum := sha256.Sum256(data)
	return CID(hex.EncodeToString(sum[:]))
}

// ErrNotFound is returned by Get/GetGraph when the CID is unknown upstream.
var ErrNotFound = goterr.New("cas.Get", goterr.CASNotFound, nil)

var (
	_ Client = (*HTTPClient)(nil)
	_ Client = (*BoltClient)(nil)
	_ Client = (*CachingCAS)(nil)
)
