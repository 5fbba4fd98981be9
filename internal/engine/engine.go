// Package engine implements the associative memory core: ingestion of
// conversation windows into a knowledge graph, query-time spreading
// activation over that graph, and session boundary detection.
package engine

import (
	"github.com/lazypower/synapse/internal/llm"
	"github.com/lazypower/synapse/internal/store"
	"go.uber.org/zap"
)

// Engine orchestrates ingestion, activation, and summarization against the
// shared graph store. It holds no mutable state of its own; concurrent calls
// are safe because everything shared lives in the store.
type Engine struct {
	DB       *store.DB
	LLM      llm.Client
	Embedder Embedder
	Sessions *Segmenter

	log *zap.SugaredLogger
}

// New creates a new Engine. The LLM client may be nil, in which case
// ingestion and summarization are disabled; activation still works as long
// as an embedder is configured.
func New(db *store.DB, client llm.Client, log *zap.SugaredLogger) *Engine {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Engine{
		DB:       db,
		LLM:      client,
		Sessions: NewSegmenter(db, 0),
		log:      log,
	}
}

// SetEmbedder configures the embedding provider.
func (e *Engine) SetEmbedder(emb Embedder) {
	e.Embedder = emb
}
