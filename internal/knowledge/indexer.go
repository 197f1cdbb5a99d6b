package knowledge

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/psybrarian/psybrarian/internal/embedding"
	"github.com/psybrarian/psybrarian/internal/log"
)

// EntryStore is the slice of Store the indexer consumes.
type EntryStore interface {
	GetEntry(ctx context.Context, id uuid.UUID) (Entry, error)
	ReplaceChunks(ctx context.Context, parentID uuid.UUID, chunks []Chunk) error
}

// Indexer rebuilds the chunk set for an entry: split content into
// sentence-bounded pieces, embed each piece independently, and replace the
// parent's chunks in one transaction.
//
// Chunk embeddings are computed from chunk content, never inherited from the
// parent entry's embedding.
type Indexer struct {
	store    EntryStore
	embedder embedding.Client
	logger   log.Logger
}

// NewIndexer creates an Indexer.
func NewIndexer(store EntryStore, embedder embedding.Client, logger log.Logger) *Indexer {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Indexer{store: store, embedder: embedder, logger: logger}
}

// Reindex re-chunks and re-embeds a single entry, returning the number of
// chunks written. An embedding failure aborts the whole rebuild; the previous
// chunk set stays in place because the replacement is transactional.
func (ix *Indexer) Reindex(ctx context.Context, entryID uuid.UUID) (int, error) {
	entry, err := ix.store.GetEntry(ctx, entryID)
	if err != nil {
		return 0, err
	}

	pieces := SplitContent(entry.Content, MaxChunkLen)
	now := time.Now().UTC()

	chunks := make([]Chunk, 0, len(pieces))
	for i, piece := range pieces {
		emb, err := ix.embedder.Embed(ctx, piece)
		if err != nil {
			return 0, fmt.Errorf("embedding chunk %d of entry %s: %w", i, entryID, err)
		}
		chunks = append(chunks, Chunk{
			ID:         uuid.New(),
			ParentID:   entry.ID,
			SourceType: entry.SourceType,
			ChunkIndex: i,
			Content:    piece,
			Embedding:  emb,
			Metadata:   entry.Metadata,
			CreatedAt:  now,
		})
	}

	if err := ix.store.ReplaceChunks(ctx, entry.ID, chunks); err != nil {
		return 0, err
	}

	ix.logger.Info("reindexed entry", "entry_id", entryID, "chunks", len(chunks))
	return len(chunks), nil
}
