package store

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
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"ai-agent-go/internal/config"
	"ai-agent-go/internal/tracing"
	"ai-agent-go/internal/types"
)

var qdrantTracer = otel.Tracer("ai-agent-go/store/vector")

// VectorMatch is one hit from vector_query: a document plus its raw cosine
// similarity, before the Vector Engine's [0,1] clamp.
type VectorMatch struct {
	Document types.ResumeDocument
	Score    float64
}

// VectorStore is the vector half of the Document Store Adapter (spec
// §4.A), a hand-rolled client over Qdrant's HTTP API — there was no
// official Go SDK in the teacher's dependency set, so neither is there one
// here.
type VectorStore struct {
	endpoint       string
	collectionName string
	vectorSize     int
	apiKey         string
	httpClient     *http.Client
}

// NewVectorStore builds a client for the configured Qdrant collection. It
// does not verify the collection exists; VectorQuery surfaces
// ErrIndexUnavailable lazily on first use if it doesn't, since the adapter
// never retries and startup shouldn't hard-fail on a transient Qdrant
// outage (spec §7's "pipeline not ready" is handled one layer up).
func NewVectorStore(cfg *config.QdrantConfig) (*VectorStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("qdrant config cannot be nil")
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "http://localhost:6333"
	}
	collection := cfg.Collection
	if collection == "" {
		collection = "resume_documents"
	}
	size := cfg.Dimension
	if size <= 0 {
		size = 1024
	}

	return &VectorStore{
		endpoint:       endpoint,
		collectionName: collection,
		vectorSize:     size,
		apiKey:         cfg.APIKey,
		httpClient:     &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// qdrantSearchPayload is the subset of a point's stored payload the core
// reads back; ingestion (out of scope) is responsible for writing it
// alongside each embedding.
type qdrantSearchPayload struct {
	DocumentID string   `json:"document_id"`
	Name       string   `json:"name"`
	Email      string   `json:"email"`
	Phone      string   `json:"phone"`
	Role       string   `json:"role"`
	Company    string   `json:"company"`
	Text       string   `json:"text"`
	Skills     []string `json:"skills"`
}

// VectorQuery issues Qdrant's points/search against the query vector and
// returns up to limit ordered matches. An unavailable collection (Qdrant's
// 404 "Not found: Collection") is mapped to ErrIndexUnavailable so callers
// can distinguish it from other transport failures.
func (v *VectorStore) VectorQuery(ctx context.Context, vector []float32, limit int) ([]VectorMatch, error) {
	ctx, span := qdrantTracer.Start(ctx, "VectorStore.VectorQuery", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("db.system", "qdrant"),
		attribute.String("db.collection", v.collectionName),
		attribute.Int("search.limit", limit),
		attribute.Int("query_vector.size", len(vector)),
	)

	if limit <= 0 {
		limit = 10
	}

	reqBody := map[string]interface{}{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}

	var result struct {
		Result []struct {
			ID      interface{}         `json:"id"`
			Score   float64             `json:"score"`
			Payload qdrantSearchPayload `json:"payload"`
		} `json:"result"`
		Status string `json:"status"`
	}

	err := v.doRequest(ctx, http.MethodPost,
		fmt.Sprintf("/collections/%s/points/search", v.collectionName), reqBody, &result)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return nil, err
	}

	matches := make([]VectorMatch, 0, len(result.Result))
	for _, point := range result.Result {
		p := point.Payload
		matches = append(matches, VectorMatch{
			Document: types.ResumeDocument{
				ID:      p.DocumentID,
				Name:    p.Name,
				Email:   p.Email,
				Phone:   p.Phone,
				Role:    p.Role,
				Company: p.Company,
				Text:    p.Text,
				Skills:  p.Skills,
			},
			Score: point.Score,
		})
	}

	span.SetAttributes(attribute.Int("search.results.count", len(matches)))
	return matches, nil
}

func (v *VectorStore) doRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	ctx, span := qdrantTracer.Start(ctx, fmt.Sprintf("%s %s", method, path), trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "qdrant"),
		attribute.String("db.operation", path),
	)

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			err = fmt.Errorf("marshal request: %w", err)
			tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
			return err
		}
		reader = bytes.NewReader(data)
		span.SetAttributes(attribute.Int("http.request.body.size", len(data)))
	}

	req, err := http.NewRequestWithContext(ctx, method, v.endpoint+path, reader)
	if err != nil {
		err = fmt.Errorf("build request: %w", err)
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if v.apiKey != "" {
		req.Header.Set("api-key", v.apiKey)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := v.httpClient.Do(req)
	if err != nil {
		err = fmt.Errorf("qdrant request failed: %w", err)
		tracing.RecordError(span, err, tracing.ErrorTypeHTTP)
		return err
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		err = fmt.Errorf("read qdrant response: %w", err)
		tracing.RecordError(span, err, tracing.ErrorTypeHTTP)
		return err
	}

	if resp.StatusCode == http.StatusNotFound {
		tracing.RecordHTTPError(span, ErrIndexUnavailable, resp.StatusCode)
		return ErrIndexUnavailable
	}
	if resp.StatusCode != http.StatusOK {
		httpErr := fmt.Errorf("qdrant returned status %d: %s", resp.StatusCode, tracing.TruncateString(string(respBody), tracing.MaxQdrantLength))
		tracing.RecordHTTPError(span, httpErr, resp.StatusCode)
		return httpErr
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			err = fmt.Errorf("parse qdrant response: %w", err)
			tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
			return err
		}
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// Close releases the HTTP client's idle connections. The Qdrant client
// holds no other resources that need explicit teardown.
func (v *VectorStore) Close() error {
	v.httpClient.CloseIdleConnections()
	return nil
}
