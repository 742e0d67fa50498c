package embedding

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

	"ai-agent-go/internal/config"
	"ai-agent-go/internal/ratelimit"
	"ai-agent-go/internal/tracing"
)

var embeddingTracer = otel.Tracer("ai-agent-go/embedding")

// AliyunClient implements Client against Aliyun DashScope's OpenAI-
// compatible embeddings endpoint, the way the teacher's AliyunEmbedder
// does for cloudwego/eino's embedding.Embedder interface. It gates every
// call through a token bucket and never retries a rejected or failed call
// (spec §7's no-retry policy for paid providers).
type AliyunClient struct {
	apiKey     string
	model      string
	dimensions int
	baseURL    string
	httpClient *http.Client
	limiter    *ratelimit.TokenBucket
}

// NewAliyunClient builds a client from an embedding config. qpm overrides
// cfg.QPM when the caller has a model-specific limit (see
// Config.QPMFor).
func NewAliyunClient(apiKey string, cfg config.EmbeddingConfig, qpm int) (*AliyunClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("embedding api key cannot be empty")
	}
	model := cfg.Model
	if model == "" {
		model = "text-embedding-v3"
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1/embeddings"
	}
	if qpm <= 0 {
		qpm = 1200
	}

	return &AliyunClient{
		apiKey:     apiKey,
		model:      model,
		dimensions: cfg.Dimensions,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    ratelimit.NewTokenBucket(qpm, 0),
	}, nil
}

// Dimension returns the configured embedding dimension.
func (a *AliyunClient) Dimension() int {
	return a.dimensions
}

type aliyunEmbeddingRequest struct {
	Input      interface{} `json:"input"`
	Model      string      `json:"model"`
	Dimensions int         `json:"dimensions,omitempty"`
}

type aliyunEmbeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

// Embed requests a single embedding for text. It waits on the rate
// limiter up to ctx's deadline before issuing the HTTP call; it never
// retries the call itself.
func (a *AliyunClient) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, span := embeddingTracer.Start(ctx, "AliyunClient.Embed", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("embedding.model", a.model),
		attribute.Int("embedding.dimensions", a.dimensions),
	)

	if err := a.limiter.Wait(ctx); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeEmbedding)
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	reqBody := aliyunEmbeddingRequest{Input: text, Model: a.model}
	if a.dimensions > 0 {
		reqBody.Dimensions = a.dimensions
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("build embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeEmbedding)
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read embedding response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("embedding provider returned status %d: %s", resp.StatusCode, tracing.TruncateString(string(body), tracing.DefaultMaxLength))
		tracing.RecordHTTPError(span, err, resp.StatusCode)
		return nil, err
	}

	var parsed aliyunEmbeddingResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse embedding response: %w", err)
	}
	if parsed.Error != nil {
		err := fmt.Errorf("embedding provider error: %s (%s)", parsed.Error.Message, parsed.Error.Code)
		tracing.RecordErrorWithInfo(span, err, tracing.ErrorTypeEmbedding, attribute.String("embedding.error_code", parsed.Error.Code))
		return nil, err
	}
	if len(parsed.Data) == 0 {
		return nil, fmt.Errorf("embedding provider returned no data")
	}

	vector := parsed.Data[0].Embedding
	if a.dimensions > 0 && len(vector) != a.dimensions {
		err := &ErrDimensionMismatch{Expected: a.dimensions, Got: len(vector)}
		tracing.RecordError(span, err, tracing.ErrorTypeEmbedding)
		return nil, err
	}

	span.SetAttributes(attribute.Int("embedding.result_dimension", len(vector)))
	return vector, nil
}
