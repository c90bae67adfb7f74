package cas

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/swarmguard/gotcore/internal/goterr"
	"github.com/swarmguard/gotcore/internal/resilience"
)

// headerCarrier adapts http.Header for OpenTelemetry trace propagation.
type headerCarrier struct{ header http.Header }

func (hc *headerCarrier) Get(key string) string       { return hc.header.Get(key) }
func (hc *headerCarrier) Set(key, value string)       { hc.header.Set(key, value) }
func (hc *headerCarrier) Keys() []string {
	keys := make([]string, 0, len(hc.header))
	for k := range hc.header {
		keys = append(keys, k)
	}
	return keys
}

// HTTPClient is the CAS client consuming the external IPFS-shaped HTTP
// surface described in spec.md §6: POST /ipfs/add, GET /ipfs/cat, POST
// /ipld/store, GET /ipld/load.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
	tracer  trace.Tracer
	cache   *Cache
	backoff resilience.BackoffPolicy
}

// HTTPOption configures an HTTPClient at construction time.
type HTTPOption func(*HTTPClient)

// WithBearerToken attaches an Authorization header to every request.
func WithBearerToken(token string) HTTPOption {
	return func(c *HTTPClient) { c.token = token }
}

// WithCache attaches a Cache, consulted before every network round trip.
func WithCache(cache *Cache) HTTPOption {
	return func(c *HTTPClient) { c.cache = cache }
}

// WithBackoffPolicy overrides the default transport retry policy.
func WithBackoffPolicy(p resilience.BackoffPolicy) HTTPOption {
	return func(c *HTTPClient) { c.backoff = p }
}

// NewHTTPClient builds a CAS client against baseURL, pooling connections the
// way the orchestrator's HTTPTaskExecutor does.
func NewHTTPClient(baseURL string, opts ...HTTPOption) *HTTPClient {
	c := &HTTPClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		tracer:  otel.Tracer("gotcore/cas"),
		backoff: resilience.DefaultCASBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *HTTPClient) do(req *http.Request) (*http.Response, error) {
	otel.GetTextMapPropagator().Inject(req.Context(), &headerCarrier{req.Header})
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return c.client.Do(req)
}

// Put uploads data via POST /ipfs/add, returning its content-hash CID.
func (c *HTTPClient) Put(ctx context.Context, data []byte) (CID, error) {
	ctx, span := c.tracer.Start(ctx, "cas.Put")
	defer span.End()

	id := contentHash(data)
	if c.cache != nil {
		c.cache.Put(id, data)
	}

	// The response CID is discarded: Put is content-hash keyed, so the CID
	// the caller sees is always the locally computed hash, never whatever
	// the upstream gateway happens to echo back.
	_, err := resilience.Retry(ctx, c.backoff, goterr.Retryable, func() (struct{}, error) {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		part, err := mw.CreateFormFile("file", "blob")
		if err != nil {
			return struct{}{}, goterr.New("cas.Put", goterr.CASTransport, err)
		}
		if _, err := part.Write(data); err != nil {
			return struct{}{}, goterr.New("cas.Put", goterr.CASTransport, err)
		}
		mw.Close()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ipfs/add", &body)
		if err != nil {
			return struct{}{}, goterr.New("cas.Put", goterr.CASTransport, err)
		}
		req.Header.Set("Content-Type", mw.FormDataContentType())

		resp, err := c.do(req)
		if err != nil {
			return struct{}{}, goterr.New("cas.Put", goterr.CASTransport, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 500 {
			return struct{}{}, goterr.New("cas.Put", goterr.CASTransport, fmt.Errorf("add: status %d", resp.StatusCode))
		}
		if resp.StatusCode != http.StatusOK {
			return struct{}{}, goterr.New("cas.Put", goterr.InvalidGraph, fmt.Errorf("add rejected: status %d", resp.StatusCode))
		}
		var out struct {
			CID string `json:"cid"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return struct{}{}, goterr.New("cas.Put", goterr.InvalidGraph, err)
		}
		return struct{}{}, nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// Get fetches the bytes for id via GET /ipfs/cat, serving from cache first.
func (c *HTTPClient) Get(ctx context.Context, id CID) ([]byte, error) {
	ctx, span := c.tracer.Start(ctx, "cas.Get")
	defer span.End()

	if c.cache != nil {
		if data, ok := c.cache.Get(id); ok {
			return data, nil
		}
	}

	data, err := resilience.Retry(ctx, c.backoff, goterr.Retryable, func() ([]byte, error) {
		u := c.baseURL + "/ipfs/cat?cid=" + url.QueryEscape(string(id))
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, goterr.New("cas.Get", goterr.CASTransport, err)
		}
		resp, err := c.do(req)
		if err != nil {
			return nil, goterr.New("cas.Get", goterr.CASTransport, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound {
			return nil, goterr.New("cas.Get", goterr.CASNotFound, fmt.Errorf("cid %s not found", id))
		}
		if resp.StatusCode >= 500 {
			return nil, goterr.New("cas.Get", goterr.CASTransport, fmt.Errorf("cat: status %d", resp.StatusCode))
		}
		if resp.StatusCode != http.StatusOK {
			return nil, goterr.New("cas.Get", goterr.InvalidGraph, fmt.Errorf("cat: status %d", resp.StatusCode))
		}
		return io.ReadAll(resp.Body)
	})
	if err != nil {
		return nil, err
	}
	if c.cache != nil {
		c.cache.Put(id, data)
	}
	return data, nil
}

// PutGraph stores an already-canonicalized graph blob via POST /ipld/store.
func (c *HTTPClient) PutGraph(ctx context.Context, canonical []byte) (CID, error) {
	ctx, span := c.tracer.Start(ctx, "cas.PutGraph")
	defer span.End()

	id := contentHash(canonical)
	return resilience.Retry(ctx, c.backoff, goterr.Retryable, func() (CID, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ipld/store", bytes.NewReader(canonical))
		if err != nil {
			return "", goterr.New("cas.PutGraph", goterr.CASTransport, err)
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := c.do(req)
		if err != nil {
			return "", goterr.New("cas.PutGraph", goterr.CASTransport, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 500 {
			return "", goterr.New("cas.PutGraph", goterr.CASTransport, fmt.Errorf("store: status %d", resp.StatusCode))
		}
		if resp.StatusCode != http.StatusOK {
			return "", goterr.New("cas.PutGraph", goterr.InvalidGraph, fmt.Errorf("store rejected: status %d", resp.StatusCode))
		}
		var out struct {
			CID string `json:"cid"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return "", goterr.New("cas.PutGraph", goterr.InvalidGraph, err)
		}
		if out.CID != "" {
			return CID(out.CID), nil
		}
		return id, nil
	})
}

// GetGraph fetches a serialized graph via GET /ipld/load.
func (c *HTTPClient) GetGraph(ctx context.Context, id CID) ([]byte, error) {
	ctx, span := c.tracer.Start(ctx, "cas.GetGraph")
	defer span.End()
	return resilience.Retry(ctx, c.backoff, goterr.Retryable, func() ([]byte, error) {
		u := c.baseURL + "/ipld/load?cid=" + url.QueryEscape(string(id))
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, goterr.New("cas.GetGraph", goterr.CASTransport, err)
		}
		resp, err := c.do(req)
		if err != nil {
			return nil, goterr.New("cas.GetGraph", goterr.CASTransport, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound {
			return nil, goterr.New("cas.GetGraph", goterr.CASNotFound, fmt.Errorf("cid %s not found", id))
		}
		if resp.StatusCode >= 500 {
			return nil, goterr.New("cas.GetGraph", goterr.CASTransport, fmt.Errorf("load: status %d", resp.StatusCode))
		}
		if resp.StatusCode != http.StatusOK {
			return nil, goterr.New("cas.GetGraph", goterr.InvalidGraph, fmt.Errorf("load: status %d", resp.StatusCode))
		}
		return io.ReadAll(resp.Body)
	})
}
