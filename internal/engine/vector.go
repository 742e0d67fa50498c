package engine

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"ai-agent-go/internal/embedding"
	"ai-agent-go/internal/logger"
	"ai-agent-go/internal/store"
	"ai-agent-go/internal/tracing"
	"ai-agent-go/internal/types"
)

var vectorTracer = otel.Tracer("ai-agent-go/engine/vector")

// VectorStore is the narrow slice of the Document Store Adapter the
// Vector Engine depends on, letting tests supply a fake in place of a
// live Qdrant-backed store.VectorStore.
type VectorStore interface {
	VectorQuery(ctx context.Context, vector []float32, limit int) ([]store.VectorMatch, error)
}

// DocumentByIDStore hydrates display fields for a vector hit whose Qdrant
// payload didn't carry them (a stale or partially-ingested point still
// has an embedding and a document_id, but no name/email/phone). Optional:
// a nil hydrator just leaves such hits with blank display fields.
type DocumentByIDStore interface {
	GetByID(ctx context.Context, id string) (*types.ResumeDocument, error)
}

// Vector is the embedding + ANN search engine (component E).
type Vector struct {
	embedder embedding.Client
	store    VectorStore
	hydrator DocumentByIDStore
}

// NewVector builds a Vector engine over an embedding client and vector
// store. hydrator may be nil; it is only consulted for a match whose
// payload lacks display fields.
func NewVector(embedder embedding.Client, s VectorStore, hydrator DocumentByIDStore) *Vector {
	return &Vector{embedder: embedder, store: s, hydrator: hydrator}
}

// Search embeds query, issues an ANN search via the store, and maps each
// match to a Search Result Item ordered exactly as the store returned
// them. A dimension mismatch from the embedder is fatal for this request.
func (v *Vector) Search(ctx context.Context, query string, limit int) ([]types.SearchResultItem, error) {
	ctx, span := vectorTracer.Start(ctx, "Vector.Search", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()
	span.SetAttributes(attribute.String("engine.query", tracing.SafeAttributeValue("engine.query", query, tracing.DefaultMaxLength)), attribute.Int("engine.k", limit))
	log := logger.Component("engine.vector")

	if v.embedder == nil || v.store == nil {
		return nil, fmt.Errorf("vector engine: not fully configured")
	}
	if limit <= 0 {
		return nil, nil
	}

	vec, err := v.embedder.Embed(ctx, query)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeEmbedding)
		return nil, fmt.Errorf("vector engine: embed query: %w", err)
	}

	matches, err := v.store.VectorQuery(ctx, vec, limit)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return nil, fmt.Errorf("vector engine: vector query: %w", err)
	}

	hydrated := 0
	items := make([]types.SearchResultItem, 0, len(matches))
	for _, m := range matches {
		score := m.Score
		if score < 0 {
			score = 0
		}
		if score > 1 {
			score = 1
		}

		doc := m.Document
		if v.hydrator != nil && doc.ID != "" && doc.Name == "" && doc.Email == "" && doc.Phone == "" {
			if full, err := v.hydrator.GetByID(ctx, doc.ID); err == nil {
				doc = *full
				hydrated++
			} else {
				log.Warn().Str("document_id", doc.ID).Err(err).Msg("vector hit had no display fields and hydration failed")
			}
		}

		items = append(items, types.SearchResultItem{
			ID:        doc.ID,
			Name:      doc.Name,
			Email:     doc.Email,
			Phone:     doc.Phone,
			Content:   tracing.TruncateString(doc.Text, snippetMaxRunes),
			Score:     score,
			MatchType: types.MatchVector,
		})
	}
	if hydrated > 0 {
		span.SetAttributes(attribute.Int("engine.hydrated_hits", hydrated))
	}

	if len(items) > 0 {
		span.SetAttributes(attribute.String("engine.top_match.content", tracing.SafeDocumentContent(items[0].Content)))
	}

	log.Debug().Int("matched", len(items)).Msg("vector search complete")
	return items, nil
}
