package testutil

import (
	"context"
	"hash/fnv"
	"math/rand"

	"github.com/psybrarian/psybrarian/internal/vector"
)

// HashEmbedder is a deterministic offline stand-in for the embedding
// provider: the same text always maps to the same unit vector, and distinct
// texts almost surely map to distinct directions. No semantic similarity is
// implied.
type HashEmbedder struct {
	Dim int
}

// Embed derives a unit-normalized vector from a hash of text.
func (e *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	dim := e.Dim
	if dim <= 0 {
		dim = 64
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	rng := rand.New(rand.NewSource(int64(h.Sum64()))) // #nosec G404 -- deterministic test data

	v := make([]float32, dim)
	for i := range v {
		v[i] = float32(rng.NormFloat64())
	}
	return vector.Normalize(v), nil
}
