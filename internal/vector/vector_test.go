package vector

import (
	"math"
	"math/rand/v2"
	"testing"
)

const tolerance = 1e-4

func l2(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func TestNormalize_UnitLength(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []float32
		tol  float64
	}{
		{"simple", []float32{3, 4}, tolerance},
		{"negative components", []float32{-1, 2, -3}, tolerance},
		{"already normalized", []float32{1, 0, 0}, tolerance},
		// The epsilon in the denominator shortens the output by roughly
		// epsilon/‖v‖, which at this magnitude is ~4.5e-4.
		{"tiny values", []float32{1e-5, 2e-5}, 1e-3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := Normalize(tt.in)
			if norm := l2(got); math.Abs(norm-1) > tt.tol {
				t.Errorf("‖Normalize(%v)‖ = %v, want 1", tt.in, norm)
			}
		})
	}
}

func TestNormalize_ZeroVector(t *testing.T) {
	t.Parallel()

	got := Normalize([]float32{0, 0, 0})
	for i, x := range got {
		if x != 0 {
			t.Errorf("Normalize(zero)[%d] = %v, want 0", i, x)
		}
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	t.Parallel()

	r := rand.New(rand.NewPCG(7, 11))
	v := make([]float32, 64)
	for i := range v {
		v[i] = float32(r.NormFloat64())
	}

	once := Normalize(v)
	twice := Normalize(once)
	for i := range once {
		if math.Abs(float64(once[i]-twice[i])) > tolerance {
			t.Fatalf("component %d drifted after second normalize: %v vs %v", i, once[i], twice[i])
		}
	}
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	t.Parallel()

	v := []float32{3, 4}
	Normalize(v)
	if v[0] != 3 || v[1] != 4 {
		t.Errorf("input slice was modified: %v", v)
	}
}

func TestCosine_Bounds(t *testing.T) {
	t.Parallel()

	r := rand.New(rand.NewPCG(42, 1))
	for range 100 {
		a := make([]float32, 32)
		b := make([]float32, 32)
		for i := range a {
			a[i] = float32(r.NormFloat64())
			b[i] = float32(r.NormFloat64())
		}

		sim := Cosine(Normalize(a), Normalize(b))
		if sim < -1-tolerance || sim > 1+tolerance {
			t.Fatalf("Cosine out of bounds: %v", sim)
		}
	}
}

func TestCosine_KnownValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b []float32
		want float32
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := Cosine(tt.a, tt.b); math.Abs(float64(got-tt.want)) > tolerance {
				t.Errorf("Cosine(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

// Mismatched lengths compare only the overlapping prefix. This is a
// documented leniency for stored vectors from an older embedding model, not
// an accident; see Mismatched for the detection hook.
func TestCosine_DimensionMismatchTruncates(t *testing.T) {
	t.Parallel()

	a := []float32{1, 0, 0, 0}
	b := []float32{1, 0}

	if got := Cosine(a, b); got != 1 {
		t.Errorf("Cosine over shorter prefix = %v, want 1", got)
	}
	if got := Cosine(b, a); got != 1 {
		t.Errorf("Cosine is not symmetric under truncation: %v", got)
	}
	if !Mismatched(a, b) {
		t.Error("Mismatched(a, b) = false, want true")
	}
	if Mismatched(a, a) {
		t.Error("Mismatched(a, a) = true, want false")
	}
}
