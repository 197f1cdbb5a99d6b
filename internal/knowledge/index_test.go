package knowledge

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/uuid"

	"github.com/psybrarian/psybrarian/internal/log"
	"github.com/psybrarian/psybrarian/internal/vector"
)

// stubChunkSource returns a fixed chunk slice.
type stubChunkSource struct {
	chunks []Chunk
	err    error
}

func (s *stubChunkSource) ListChunks(context.Context) ([]Chunk, error) {
	return s.chunks, s.err
}

// chunkWithEmbedding builds a chunk whose embedding is the normalized input.
func chunkWithEmbedding(content string, emb []float32) Chunk {
	return Chunk{
		ID:         uuid.New(),
		ParentID:   uuid.New(),
		SourceType: SourceText,
		Content:    content,
		Embedding:  vector.Normalize(emb),
	}
}

func TestChunkIndex_Search_RankingAndThreshold(t *testing.T) {
	t.Parallel()

	query := vector.Normalize([]float32{1, 0, 0})
	source := &stubChunkSource{chunks: []Chunk{
		chunkWithEmbedding("orthogonal", []float32{0, 1, 0}),       // score 0
		chunkWithEmbedding("close", []float32{1, 0.1, 0}),          // ~0.995
		chunkWithEmbedding("identical", []float32{1, 0, 0}),        // 1.0
		chunkWithEmbedding("borderline", []float32{1, 0.48, 0.05}), // ~0.90
	}}

	ix := NewChunkIndex(source, log.NewNop())
	got, err := ix.Search(context.Background(), query, 3, 0.90)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}

	if len(got) < 2 {
		t.Fatalf("expected at least 2 results above threshold, got %d", len(got))
	}
	if got[0].Chunk.Content != "identical" {
		t.Errorf("top result = %q, want %q", got[0].Chunk.Content, "identical")
	}
	if got[1].Chunk.Content != "close" {
		t.Errorf("second result = %q, want %q", got[1].Chunk.Content, "close")
	}
	for _, sc := range got {
		if sc.Score < 0.90 {
			t.Errorf("result %q below threshold: %v", sc.Chunk.Content, sc.Score)
		}
	}
}

func TestChunkIndex_Search_ThresholdIsInclusive(t *testing.T) {
	t.Parallel()

	query := []float32{1, 0}
	emb := []float32{0.90, 0.43588989} // roughly unit-length, score near 0.90

	// Compute the exact score the index will produce, then probe the
	// boundary on both sides of it.
	score := vector.Cosine(query, vector.Normalize(emb))

	source := &stubChunkSource{chunks: []Chunk{
		{ID: uuid.New(), Content: "borderline", Embedding: emb},
	}}
	ix := NewChunkIndex(source, log.NewNop())

	got, err := ix.Search(context.Background(), query, 3, score)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("chunk scoring exactly at threshold excluded; threshold must be inclusive")
	}

	justAbove := float32(math.Nextafter32(score, 2))
	got, err = ix.Search(context.Background(), query, 3, justAbove)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("chunk scoring below threshold included")
	}
}

func TestChunkIndex_Search_StableTieBreak(t *testing.T) {
	t.Parallel()

	emb := []float32{1, 0}
	source := &stubChunkSource{chunks: []Chunk{
		{ID: uuid.New(), Content: "first stored", Embedding: emb},
		{ID: uuid.New(), Content: "second stored", Embedding: emb},
		{ID: uuid.New(), Content: "third stored", Embedding: emb},
	}}

	ix := NewChunkIndex(source, log.NewNop())
	got, err := ix.Search(context.Background(), []float32{1, 0}, 3, 0.5)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}

	want := []string{"first stored", "second stored", "third stored"}
	for i, w := range want {
		if got[i].Chunk.Content != w {
			t.Errorf("position %d = %q, want %q (storage order on equal scores)", i, got[i].Chunk.Content, w)
		}
	}
}

func TestChunkIndex_Search_EmptyResultIsNotError(t *testing.T) {
	t.Parallel()

	source := &stubChunkSource{chunks: []Chunk{
		chunkWithEmbedding("far away", []float32{0, 1}),
	}}

	ix := NewChunkIndex(source, log.NewNop())
	got, err := ix.Search(context.Background(), []float32{1, 0}, 3, 0.90)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d results, want 0", len(got))
	}
}

func TestChunkIndex_Search_RenormalizesStaleVectors(t *testing.T) {
	t.Parallel()

	// Stored un-normalized (norm 2). Without defensive renormalization the
	// score would be 2.0 and leak past the similarity bound.
	source := &stubChunkSource{chunks: []Chunk{
		{ID: uuid.New(), Content: "stale", Embedding: []float32{2, 0}},
	}}

	ix := NewChunkIndex(source, log.NewNop())
	got, err := ix.Search(context.Background(), []float32{1, 0}, 1, 0.5)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d results, want 1", len(got))
	}
	if got[0].Score > 1.0001 {
		t.Errorf("score %v exceeds cosine bound; stored vector was not renormalized", got[0].Score)
	}
}

func TestChunkIndex_Search_TopNBeforeThreshold(t *testing.T) {
	t.Parallel()

	// Five chunks above threshold; topN=2 keeps only the best two.
	source := &stubChunkSource{chunks: []Chunk{
		chunkWithEmbedding("a", []float32{1, 0.01}),
		chunkWithEmbedding("b", []float32{1, 0.02}),
		chunkWithEmbedding("c", []float32{1, 0.03}),
		chunkWithEmbedding("d", []float32{1, 0.04}),
		chunkWithEmbedding("e", []float32{1, 0.05}),
	}}

	ix := NewChunkIndex(source, log.NewNop())
	got, err := ix.Search(context.Background(), []float32{1, 0}, 2, 0.5)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("got %d results, want topN=2", len(got))
	}
}

func TestChunkIndex_Search_Errors(t *testing.T) {
	t.Parallel()

	t.Run("source failure propagates", func(t *testing.T) {
		t.Parallel()

		srcErr := errors.New("connection refused")
		ix := NewChunkIndex(&stubChunkSource{err: srcErr}, log.NewNop())
		if _, err := ix.Search(context.Background(), []float32{1}, 3, 0.9); !errors.Is(err, srcErr) {
			t.Errorf("Search() = %v, want wrapped source error", err)
		}
	})

	t.Run("empty query vector rejected", func(t *testing.T) {
		t.Parallel()

		ix := NewChunkIndex(&stubChunkSource{}, log.NewNop())
		if _, err := ix.Search(context.Background(), nil, 3, 0.9); err == nil {
			t.Error("Search(nil vector) = nil error, want error")
		}
	})
}
