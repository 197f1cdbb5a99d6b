package knowledge

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/psybrarian/psybrarian/internal/log"
	"github.com/psybrarian/psybrarian/internal/vector"
)

// ChunkSource supplies the chunk rows the index scans. Implemented by Store.
type ChunkSource interface {
	ListChunks(ctx context.Context) ([]Chunk, error)
}

// ChunkIndex performs exhaustive cosine-similarity search over all stored
// chunks. At the deployment's scale (a few thousand chunks) an exact linear
// scan beats the operational cost of an approximate index; the Search
// contract does not expose scan order beyond the documented stable tie-break,
// so the implementation can swap to ANN later without breaking callers.
type ChunkIndex struct {
	source ChunkSource
	logger log.Logger

	// dimWarn collapses dimension-mismatch warnings to one log line per
	// process; the condition indicates stored vectors from an older embedding
	// model, which is an operational signal, not a per-row event.
	dimWarn sync.Once
}

// NewChunkIndex creates an index over the given chunk source.
func NewChunkIndex(source ChunkSource, logger log.Logger) *ChunkIndex {
	if logger == nil {
		logger = log.NewNop()
	}
	return &ChunkIndex{source: source, logger: logger}
}

// Search scores every stored chunk against queryVec and returns at most topN
// results with score >= threshold, highest first. Equal scores preserve
// storage order. An empty result is a normal outcome, not an error.
//
// Stored embeddings are re-normalized before scoring. They are expected to be
// unit-length already, but stale rows written before normalization was
// enforced would otherwise produce scores that are not true cosine
// similarity.
func (ix *ChunkIndex) Search(ctx context.Context, queryVec []float32, topN int, threshold float32) ([]ScoredChunk, error) {
	if len(queryVec) == 0 {
		return nil, fmt.Errorf("empty query vector")
	}

	chunks, err := ix.source.ListChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading chunks: %w", err)
	}

	scored := make([]ScoredChunk, 0, len(chunks))
	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			continue
		}
		if vector.Mismatched(queryVec, c.Embedding) {
			ix.dimWarn.Do(func() {
				ix.logger.Warn("chunk embedding dimension differs from query; comparing over shorter length",
					"query_dim", len(queryVec),
					"chunk_dim", len(c.Embedding),
					"chunk_id", c.ID)
			})
		}
		score := vector.Cosine(queryVec, vector.Normalize(c.Embedding))
		scored = append(scored, ScoredChunk{Chunk: c, Score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > topN {
		scored = scored[:topN]
	}

	// Threshold filter runs after the topN cut, matching the documented
	// order: take the best N, then drop those below the bar.
	kept := scored[:0]
	for _, sc := range scored {
		if sc.Score >= threshold {
			kept = append(kept, sc)
		}
	}

	ix.logger.Debug("chunk scan complete",
		"scanned", len(chunks),
		"returned", len(kept),
		"threshold", threshold)
	return kept, nil
}
