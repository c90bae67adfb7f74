package cas

import (
	"context"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/swarmguard/gotcore/internal/goterr"
)

var (
	bucketBlobs  = []byte("blobs")
	bucketGraphs = []byte("graphs")
)

// BoltClient is an embedded, single-node CAS backend over go.etcd.io/bbolt,
// for standalone deployments or tests that should not depend on a reachable
// IPFS gateway.
type BoltClient struct {
	db *bbolt.DB

	readLatency  metric.Float64Histogram
	writeLatency metric.Float64Histogram
}

// NewBoltClient opens (creating if absent) a bbolt-backed CAS at path.
func NewBoltClient(path string) (*BoltClient, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{})
	if err != nil {
		return nil, fmt.Errorf("open boltdb: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{bucketBlobs, bucketGraphs} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}
	meter := otel.Meter("gotcore")
	readLatency, _ := meter.Float64Histogram("got_cas_bolt_read_ms")
	writeLatency, _ := meter.Float64Histogram("got_cas_bolt_write_ms")
	return &BoltClient{db: db, readLatency: readLatency, writeLatency: writeLatency}, nil
}

// Close releases the underlying database handle.
func (b *BoltClient) Close() error { return b.db.Close() }

func (b *BoltClient) putBucket(ctx context.Context, bucket []byte, data []byte) (CID, error) {
	start := time.Now()
	id := contentHash(data)
	err := b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucket).Put([]byte(id), data)
	})
	b.writeLatency.Record(ctx, float64(time.Since(start).Milliseconds()))
	if err != nil {
		return "", goterr.New("cas.BoltClient", goterr.CASTransport, err)
	}
	return id, nil
}

func (b *BoltClient) getBucket(ctx context.Context, bucket []byte, id CID) ([]byte, error) {
	start := time.Now()
	var data []byte
	err := b.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucket).Get([]byte(id))
		if v == nil {
			return goterr.New("cas.BoltClient", goterr.CASNotFound, fmt.Errorf("cid %s not found", id))
		}
		data = append(data, v...)
		return nil
	})
	b.readLatency.Record(ctx, float64(time.Since(start).Milliseconds()))
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Put stores data under its content hash in the blobs bucket.
func (b *BoltClient) Put(ctx context.Context, data []byte) (CID, error) {
	return b.putBucket(ctx, bucketBlobs, data)
}

// Get retrieves previously Put bytes by CID.
func (b *BoltClient) Get(ctx context.Context, id CID) ([]byte, error) {
	return b.getBucket(ctx, bucketBlobs, id)
}

// PutGraph stores an already-canonicalized graph blob in the graphs bucket,
// kept separate from raw blobs so the two content-hash spaces never collide
// in tooling that lists one bucket at a time.
func (b *BoltClient) PutGraph(ctx context.Context, canonical []byte) (CID, error) {
	return b.putBucket(ctx, bucketGraphs, canonical)
}

// GetGraph retrieves a previously PutGraph canonical graph blob by CID.
func (b *BoltClient) GetGraph(ctx context.Context, id CID) ([]byte, error) {
	return b.getBucket(ctx, bucketGraphs, id)
}
