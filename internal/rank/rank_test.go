package rank

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/psybrarian/psybrarian/internal/log"
	"github.com/psybrarian/psybrarian/internal/websearch"
)

const featuredDomain = "psychedelics.com"

func featuredResult(n int) websearch.Result {
	return websearch.Result{
		URL:    fmt.Sprintf("https://psychedelics.com/article-%d", n),
		Title:  fmt.Sprintf("Featured %d", n),
		Domain: featuredDomain,
	}
}

func otherResult(n int) websearch.Result {
	return websearch.Result{
		URL:    fmt.Sprintf("https://example%d.org/post", n),
		Title:  fmt.Sprintf("Other %d", n),
		Domain: fmt.Sprintf("example%d.org", n),
	}
}

func urls(results []websearch.Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.URL
	}
	return out
}

func noFallback(t *testing.T) SearchFn {
	t.Helper()
	return func(context.Context) ([]websearch.Result, error) {
		t.Fatal("fallback search should not run")
		return nil, nil
	}
}

func TestApplyAbundantFeatured(t *testing.T) {
	var results []websearch.Result
	for i := 1; i <= 4; i++ {
		results = append(results, featuredResult(i))
	}
	for i := 1; i <= 4; i++ {
		results = append(results, otherResult(i))
	}

	engine := NewEngine(featuredDomain, log.NewNop())
	got := engine.Apply(context.Background(), results, noFallback(t))

	want := []string{
		featuredResult(1).URL,
		otherResult(1).URL,
		otherResult(2).URL,
		featuredResult(2).URL,
		featuredResult(3).URL,
		otherResult(3).URL,
	}
	assertURLs(t, got, want)
	assertNoDuplicates(t, got)
}

func TestApplyFewFeatured(t *testing.T) {
	results := []websearch.Result{
		otherResult(1),
		featuredResult(1),
		otherResult(2),
		otherResult(3),
		featuredResult(2),
		otherResult(4),
		otherResult(5),
	}

	engine := NewEngine(featuredDomain, log.NewNop())
	got := engine.Apply(context.Background(), results, noFallback(t))

	want := []string{
		featuredResult(1).URL,
		otherResult(1).URL,
		otherResult(2).URL,
		otherResult(3).URL,
		otherResult(4).URL,
	}
	assertURLs(t, got, want)
}

func TestApplyZeroFeaturedTriggersFallback(t *testing.T) {
	var results []websearch.Result
	for i := 1; i <= 6; i++ {
		results = append(results, otherResult(i))
	}

	fallbackHit := featuredResult(99)
	called := 0
	fallback := func(context.Context) ([]websearch.Result, error) {
		called++
		return []websearch.Result{fallbackHit}, nil
	}

	engine := NewEngine(featuredDomain, log.NewNop())
	got := engine.Apply(context.Background(), results, fallback)

	if called != 1 {
		t.Fatalf("fallback called %d times, want 1", called)
	}
	want := []string{
		fallbackHit.URL,
		otherResult(1).URL,
		otherResult(2).URL,
		otherResult(3).URL,
		otherResult(4).URL,
		otherResult(5).URL,
	}
	assertURLs(t, got, want)
}

func TestApplyThreeFeaturedNoOther(t *testing.T) {
	results := []websearch.Result{
		featuredResult(1),
		featuredResult(2),
		featuredResult(3),
	}

	engine := NewEngine(featuredDomain, log.NewNop())
	got := engine.Apply(context.Background(), results, noFallback(t))

	want := []string{
		featuredResult(1).URL,
		featuredResult(2).URL,
		featuredResult(3).URL,
	}
	assertURLs(t, got, want)
}

func TestApplyEmptyInput(t *testing.T) {
	called := 0
	fallback := func(context.Context) ([]websearch.Result, error) {
		called++
		return nil, nil
	}

	engine := NewEngine(featuredDomain, log.NewNop())
	got := engine.Apply(context.Background(), nil, fallback)

	if called != 1 {
		t.Fatalf("fallback called %d times, want 1", called)
	}
	if len(got) != 0 {
		t.Fatalf("got %d results, want 0", len(got))
	}
}

// A www-prefixed featured URL partitions as featured but fails the
// exact-host check, so the fallback still runs.
func TestApplyWWWVariantStillTriggersFallback(t *testing.T) {
	results := []websearch.Result{
		{
			URL:    "https://www.psychedelics.com/guide",
			Title:  "Guide",
			Domain: featuredDomain,
		},
		otherResult(1),
	}

	called := 0
	fallback := func(context.Context) ([]websearch.Result, error) {
		called++
		return []websearch.Result{featuredResult(50)}, nil
	}

	engine := NewEngine(featuredDomain, log.NewNop())
	got := engine.Apply(context.Background(), results, fallback)

	if called != 1 {
		t.Fatalf("fallback called %d times, want 1", called)
	}
	if got[0].URL != featuredResult(50).URL {
		t.Fatalf("fallback result not prepended, got %q first", got[0].URL)
	}
}

func TestApplyFallbackDuplicateNotPrepended(t *testing.T) {
	dup := websearch.Result{
		URL:    "https://www.psychedelics.com/guide",
		Title:  "Guide",
		Domain: featuredDomain,
	}
	results := []websearch.Result{dup, otherResult(1)}

	fallback := func(context.Context) ([]websearch.Result, error) {
		return []websearch.Result{dup}, nil
	}

	engine := NewEngine(featuredDomain, log.NewNop())
	got := engine.Apply(context.Background(), results, fallback)

	assertNoDuplicates(t, got)
	if len(got) != 2 {
		t.Fatalf("got %d results, want 2", len(got))
	}
}

func TestApplyFallbackErrorDegrades(t *testing.T) {
	results := []websearch.Result{otherResult(1), otherResult(2)}

	fallback := func(context.Context) ([]websearch.Result, error) {
		return nil, errors.New("provider down")
	}

	engine := NewEngine(featuredDomain, log.NewNop())
	got := engine.Apply(context.Background(), results, fallback)

	assertURLs(t, got, []string{otherResult(1).URL, otherResult(2).URL})
}

func TestApplyNilFallback(t *testing.T) {
	results := []websearch.Result{otherResult(1)}

	engine := NewEngine(featuredDomain, log.NewNop())
	got := engine.Apply(context.Background(), results, nil)

	assertURLs(t, got, []string{otherResult(1).URL})
}

func TestHasExactHost(t *testing.T) {
	tests := []struct {
		name    string
		results []websearch.Result
		want    bool
	}{
		{
			name:    "bare host matches",
			results: []websearch.Result{{URL: "https://psychedelics.com/a"}},
			want:    true,
		},
		{
			name:    "www variant does not match",
			results: []websearch.Result{{URL: "https://www.psychedelics.com/a"}},
			want:    false,
		},
		{
			name:    "case insensitive",
			results: []websearch.Result{{URL: "https://Psychedelics.COM/a"}},
			want:    true,
		},
		{
			name:    "unparseable URL skipped",
			results: []websearch.Result{{URL: "://bad"}, {URL: "https://psychedelics.com/b"}},
			want:    true,
		},
		{
			name:    "empty list",
			results: nil,
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := hasExactHost(tt.results, featuredDomain); got != tt.want {
				t.Fatalf("hasExactHost() = %v, want %v", got, tt.want)
			}
		})
	}
}

func assertURLs(t *testing.T, got []websearch.Result, want []string) {
	t.Helper()
	gotURLs := urls(got)
	if len(gotURLs) != len(want) {
		t.Fatalf("got %d results %v, want %d %v", len(gotURLs), gotURLs, len(want), want)
	}
	for i := range want {
		if gotURLs[i] != want[i] {
			t.Fatalf("position %d: got %q, want %q (full: %v)", i, gotURLs[i], want[i], gotURLs)
		}
	}
}

func assertNoDuplicates(t *testing.T, got []websearch.Result) {
	t.Helper()
	seen := make(map[string]struct{}, len(got))
	for _, r := range got {
		if _, dup := seen[r.URL]; dup {
			t.Fatalf("duplicate URL %q in output %v", r.URL, urls(got))
		}
		seen[r.URL] = struct{}{}
	}
}
