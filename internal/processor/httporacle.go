package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/swarmguard/gotcore/internal/resilience"
)

// HTTPOracle calls an external LLM completion endpoint over HTTP, with a
// pooled client the way the orchestrator's HTTPTaskExecutor is configured,
// throttled by a token-bucket limiter since a wide decomposition fan-out can
// otherwise burst well past most providers' rate limits.
type HTTPOracle struct {
	url     string
	token   string
	client  *http.Client
	limiter *resilience.RateLimiter
	tracer  trace.Tracer
}

// NewHTTPOracle builds an HTTPOracle posting prompts to url, capped at
// ratePerSecond sustained requests with bursts up to burst.
func NewHTTPOracle(url, bearerToken string, ratePerSecond float64, burst int64) *HTTPOracle {
	return &HTTPOracle{
		url:     url,
		token:   bearerToken,
		limiter: resilience.NewRateLimiter(burst, ratePerSecond, time.Second, 0),
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		tracer: otel.Tracer("gotcore/oracle"),
	}
}

type completionRequest struct {
	Prompt string `json:"prompt"`
}

type completionResponse struct {
	Text string `json:"text"`
}

// Complete implements LLMOracle by POSTing prompt and reading back text.
func (o *HTTPOracle) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, span := o.tracer.Start(ctx, "oracle.Complete", trace.WithAttributes(
		attribute.Int("prompt_len", len(prompt)),
	))
	defer span.End()

	if !o.limiter.Allow() {
		wait := o.limiter.ReserveAfter(1)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	body, err := json.Marshal(completionRequest{Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("marshal prompt: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build oracle request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if o.token != "" {
		req.Header.Set("Authorization", "Bearer "+o.token)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("oracle request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read oracle response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("oracle returned status %d: %s", resp.StatusCode, string(data))
	}

	var out completionResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("decode oracle response: %w", err)
	}
	return out.Text, nil
}
