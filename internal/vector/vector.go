// Package vector implements the similarity math used by the chunk index.
//
// All embeddings in the system are expected to be unit-normalized before they
// are compared, so Cosine is implemented as a plain dot product. Normalize is
// idempotent, which lets callers re-normalize defensively without changing
// already-normalized vectors.
package vector

import "math"

// normEpsilon is added to the L2 norm before dividing so an all-zero vector
// normalizes to zero instead of dividing by zero.
const normEpsilon = 1e-8

// Normalize returns v scaled to unit length. The input slice is not modified.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum) + normEpsilon

	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// Cosine returns the dot product of a and b. When both inputs are
// unit-normalized this is the cosine similarity in [-1, 1].
//
// If the lengths differ, only the overlapping prefix is compared. This
// tolerates stored vectors produced by an older embedding model rather than
// failing the whole search; callers that care should check Mismatched first
// and log the drift.
func Cosine(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var sum float64
	for i := range n {
		sum += float64(a[i]) * float64(b[i])
	}
	return float32(sum)
}

// Mismatched reports whether two vectors differ in dimensionality.
func Mismatched(a, b []float32) bool {
	return len(a) != len(b)
}
