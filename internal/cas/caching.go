package cas

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// CachingCAS decorates a Client with an in-process LRU of canonical graph
// blobs, so repeated get_graph calls for the same query's CID (synthesis
// re-reads its own graph, the HTTP control surface re-reads a completed
// query) don't round-trip to the backing store.
type CachingCAS struct {
	next   Client
	graphs *lru.Cache[CID, []byte]
	hits   metric.Int64Counter
	misses metric.Int64Counter
}

// NewCachingCAS wraps next with an LRU of up to graphCacheSize canonical
// graph blobs.
func NewCachingCAS(next Client, graphCacheSize int) *CachingCAS {
	if graphCacheSize <= 0 {
		graphCacheSize = 256
	}
	graphs, _ := lru.New[CID, []byte](graphCacheSize)
	meter := otel.Meter("gotcore")
	hits, _ := meter.Int64Counter("got_cas_graph_cache_hits_total")
	misses, _ := meter.Int64Counter("got_cas_graph_cache_misses_total")
	return &CachingCAS{next: next, graphs: graphs, hits: hits, misses: misses}
}

// Put delegates to the wrapped client; blob dedup already lives there.
func (c *CachingCAS) Put(ctx context.Context, data []byte) (CID, error) {
	return c.next.Put(ctx, data)
}

// Get delegates to the wrapped client without caching here. HTTPClient
// consults its own Cache only when one is attached via WithCache;
// BoltClient reads its bucket directly.
func (c *CachingCAS) Get(ctx context.Context, id CID) ([]byte, error) {
	return c.next.Get(ctx, id)
}

// PutGraph stores the canonical form in both the wrapped client and the
// local graph LRU, so a subsequent GetGraph in this process skips the
// round trip entirely.
func (c *CachingCAS) PutGraph(ctx context.Context, canonical []byte) (CID, error) {
	id, err := c.next.PutGraph(ctx, canonical)
	if err != nil {
		return "", err
	}
	c.graphs.Add(id, canonical)
	return id, nil
}

// GetGraph serves from the local LRU when present, otherwise falls through
// to the wrapped client and backfills the LRU on success.
func (c *CachingCAS) GetGraph(ctx context.Context, id CID) ([]byte, error) {
	if data, ok := c.graphs.Get(id); ok {
		c.hits.Add(ctx, 1)
		return data, nil
	}
	c.misses.Add(ctx, 1)
	data, err := c.next.GetGraph(ctx, id)
	if err != nil {
		return nil, err
	}
	c.graphs.Add(id, data)
	return data, nil
}
