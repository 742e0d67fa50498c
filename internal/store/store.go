// Package store implements the Document Store Adapter (spec §4.A): a
// keyword half backed by MySQL/GORM and a vector half backed by a
// hand-rolled Qdrant HTTP client, plus a Redis-backed search cache and
// dedup lock used by the Retrieval Pipeline.
package store

import (
	"ai-agent-go/internal/config"
	"ai-agent-go/internal/logger"
)

// Store aggregates the collaborators the Retrieval Pipeline needs to talk
// to the outside world. A partial failure to connect one backing store at
// startup is logged, not fatal — the service degrades rather than refusing
// to start, matching the teacher's own NewStorage tolerance.
type Store struct {
	Keyword *KeywordStore
	Vector  *VectorStore
	Cache   *SearchCache
}

// New connects to MySQL, Qdrant, and Redis per cfg. A nil field on the
// returned Store means that backing store could not be reached; callers
// (the engines) treat a nil collaborator as a transport error.
func New(cfg *config.Config) (*Store, error) {
	log := logger.Component("store")
	s := &Store{}

	if kw, err := NewKeywordStore(&cfg.MySQL); err != nil {
		log.Warn().Err(err).Msg("keyword store unavailable")
	} else {
		s.Keyword = kw
	}

	if vs, err := NewVectorStore(&cfg.Qdrant); err != nil {
		log.Warn().Err(err).Msg("vector store unavailable")
	} else {
		s.Vector = vs
	}

	if sc, err := NewSearchCache(&cfg.Redis); err != nil {
		log.Warn().Err(err).Msg("search cache unavailable")
	} else {
		s.Cache = sc
	}

	if s.Keyword == nil && s.Vector == nil {
		return s, ErrDocumentStoreUnavailable
	}
	return s, nil
}

// Close releases every backing connection the Store holds.
func (s *Store) Close() {
	if s.Keyword != nil {
		_ = s.Keyword.Close()
	}
	if s.Vector != nil {
		_ = s.Vector.Close()
	}
	if s.Cache != nil {
		_ = s.Cache.Close()
	}
}
