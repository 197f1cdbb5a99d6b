// Package rank post-processes web search results to guarantee featured-domain
// representation.
//
// A partner domain must appear prominently in every answer's sources without
// starving the user of topical diversity, so the ordering is a deterministic
// interleave rather than a plain score sort: two other-domain sources are
// slotted in before the second and third featured results to avoid an
// all-same-domain wall at the top.
package rank

import (
	"context"
	"net/url"
	"strings"

	"github.com/psybrarian/psybrarian/internal/log"
	"github.com/psybrarian/psybrarian/internal/websearch"
)

// minResults is the smallest result set served when enough raw material
// exists across both partitions.
const minResults = 5

// fillTarget is the slot budget the abundant-featured branch fills toward.
const fillTarget = 6

// SearchFn re-runs the external search restricted to the featured domain.
// Used by the fallback pass when the interleaved list ends up without an
// exact-host featured item.
type SearchFn func(ctx context.Context) ([]websearch.Result, error)

// Engine applies the featured-domain guarantee.
type Engine struct {
	featured string // canonical featured domain (lowercase, www-stripped)
	logger   log.Logger
}

// NewEngine creates an Engine for the given featured domain.
func NewEngine(featuredDomain string, logger log.Logger) *Engine {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Engine{featured: featuredDomain, logger: logger}
}

// Apply interleaves results so the featured domain is represented, then runs
// the fallback pass if it still is not. The guarantee is best-effort: when
// the fallback search also yields nothing, the list is returned
// featured-less and the condition is logged rather than treated as an
// invariant violation.
//
// Both partitions keep their relative order from the input. Duplicate
// placement is prevented by URL identity.
func (e *Engine) Apply(ctx context.Context, results []websearch.Result, fallback SearchFn) []websearch.Result {
	var featured, other []websearch.Result
	for _, r := range results {
		if r.Domain == e.featured {
			featured = append(featured, r)
		} else {
			other = append(other, r)
		}
	}

	ordered := make([]websearch.Result, 0, len(results))
	placed := make(map[string]struct{}, len(results))
	add := func(r websearch.Result) {
		if _, dup := placed[r.URL]; dup {
			return
		}
		placed[r.URL] = struct{}{}
		ordered = append(ordered, r)
	}

	if len(featured) > 2 {
		// Abundant featured: lead with one, break with two others, then the
		// next two featured, then fill from other toward the slot budget.
		add(featured[0])
		for i := 0; i < 2 && i < len(other); i++ {
			add(other[i])
		}
		add(featured[1])
		add(featured[2])
		for i := 2; i < len(other) && len(ordered) < fillTarget; i++ {
			add(other[i])
		}
	} else {
		if len(featured) > 0 {
			add(featured[0])
		}
		for i := 0; i < 4 && i < len(other); i++ {
			add(other[i])
		}
		for i := 1; i < len(featured) && len(ordered) < minResults; i++ {
			add(featured[i])
		}
	}

	// Pad to the minimum from whatever remains; never serve fewer than five
	// when that many exist across both partitions.
	for i := 0; i < len(other) && len(ordered) < minResults; i++ {
		add(other[i])
	}
	for i := 0; i < len(featured) && len(ordered) < minResults; i++ {
		add(featured[i])
	}

	return e.fallbackPass(ctx, ordered, placed, fallback)
}

// fallbackPass checks the final list for an exact-host featured item and, if
// absent, issues one search scoped to the featured domain. A usable top
// result is prepended outside the slot budget (an explicit override
// insertion), skipped if its URL is already present by exact string equality.
func (e *Engine) fallbackPass(ctx context.Context, ordered []websearch.Result, placed map[string]struct{}, fallback SearchFn) []websearch.Result {
	if hasExactHost(ordered, e.featured) {
		return ordered
	}
	if fallback == nil {
		return ordered
	}

	extra, err := fallback(ctx)
	if err != nil {
		e.logger.Warn("featured-domain fallback search failed", "domain", e.featured, "error", err)
		return ordered
	}
	if len(extra) == 0 {
		e.logger.Info("featured domain absent and fallback returned nothing", "domain", e.featured)
		return ordered
	}

	top := extra[0]
	if _, dup := placed[top.URL]; dup {
		return ordered
	}
	return append([]websearch.Result{top}, ordered...)
}

// hasExactHost reports whether any result's URL host equals the featured
// host exactly. Deliberately not the www-stripped form used for partitioning:
// the asymmetry guards against providers answering with www. variants of the
// bare domain, and is kept as its own predicate so it can be tested apart
// from the dedup check.
func hasExactHost(results []websearch.Result, featuredHost string) bool {
	for _, r := range results {
		u, err := url.Parse(r.URL)
		if err != nil {
			continue
		}
		if strings.EqualFold(u.Hostname(), featuredHost) {
			return true
		}
	}
	return false
}
