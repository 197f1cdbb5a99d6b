// Package answer orchestrates resolution of a user question against the
// local knowledge base and the external search provider.
//
// Resolution precedence is exact match, then chunk similarity, then nothing
// local. Web sources are gathered regardless of whether a local answer wins;
// they are shown as supporting citations or, when no local answer exists,
// handed to the downstream generator.
package answer

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/psybrarian/psybrarian/internal/knowledge"
	"github.com/psybrarian/psybrarian/internal/log"
	"github.com/psybrarian/psybrarian/internal/rank"
	"github.com/psybrarian/psybrarian/internal/websearch"
)

// featuredPriorityWeight is the hint weight sent to the search provider for
// the featured domain.
const featuredPriorityWeight = 1.0

// fallbackResultLimit bounds the featured-domain-only fallback search.
const fallbackResultLimit = 3

// Origin identifies which local mechanism produced an answer.
type Origin string

const (
	OriginNone  Origin = ""
	OriginExact Origin = "exact"
	OriginChunk Origin = "chunk"
)

// Turn is one prior question/answer pair of the conversation.
type Turn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Result is the outcome of one resolved turn. LocalAnswer is empty when no
// local mechanism produced an answer; Sources may be empty when the external
// provider failed. Both conditions are valid partial results.
type Result struct {
	LocalAnswer string
	Origin      Origin
	Sources     []websearch.Result
	ChatlogID   uuid.UUID
	History     []Turn
}

// EntrySource lists knowledge entries by source type.
type EntrySource interface {
	ListEntries(ctx context.Context, st knowledge.SourceType) ([]knowledge.Entry, error)
}

// ChunkSearcher ranks stored chunks against a query vector.
type ChunkSearcher interface {
	Search(ctx context.Context, queryVec []float32, topN int, threshold float32) ([]knowledge.ScoredChunk, error)
}

// LogStore persists question/answer turns.
type LogStore interface {
	InsertPending(ctx context.Context, question string) (uuid.UUID, error)
	UpdateAnswer(ctx context.Context, id uuid.UUID, answer string) error
}

// DomainSource provides the domain allow-list.
type DomainSource interface {
	Allowed(ctx context.Context) ([]string, error)
}

// Embedder produces a unit-normalized vector for a text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Config tunes the orchestrator.
type Config struct {
	FeaturedDomain string
	ChunkThreshold float32
	ChunkTopN      int
	ResultLimit    int
	MaxHistory     int
}

// Orchestrator resolves one question per call. All collaborators are
// injected; the orchestrator holds no mutable state and is safe for
// concurrent use.
type Orchestrator struct {
	embedder Embedder
	entries  EntrySource
	index    ChunkSearcher
	logs     LogStore
	domains  DomainSource
	search   websearch.Searcher
	ranker   *rank.Engine
	cfg      Config
	logger   log.Logger
}

// NewOrchestrator wires an Orchestrator. logger may be nil.
func NewOrchestrator(
	embedder Embedder,
	entries EntrySource,
	index ChunkSearcher,
	logs LogStore,
	domains DomainSource,
	search websearch.Searcher,
	ranker *rank.Engine,
	cfg Config,
	logger log.Logger,
) *Orchestrator {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Orchestrator{
		embedder: embedder,
		entries:  entries,
		index:    index,
		logs:     logs,
		domains:  domains,
		search:   search,
		ranker:   ranker,
		cfg:      cfg,
		logger:   logger,
	}
}

// Resolve handles one user question end to end.
//
// The chat log insert is the only fatal step: without the row there is no
// record of the turn and nothing for the generator to write into. Every
// other failure degrades to a smaller result. A turn with no local answer
// and no sources is still a valid result.
func (o *Orchestrator) Resolve(ctx context.Context, query string, history []Turn) (Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Result{}, fmt.Errorf("empty query")
	}

	trimmed := trimHistory(history, o.cfg.MaxHistory)
	prompt := buildPrompt(trimmed, query)

	// An embedding failure disables chunk similarity for this turn but
	// nothing else: exact match is string comparison and web search uses
	// the raw text.
	queryVec, embErr := o.embedder.Embed(ctx, prompt)
	if embErr != nil {
		o.logger.Warn("embedding failed, vector search disabled for this turn", "error", embErr)
	}

	logID, err := o.logs.InsertPending(ctx, query)
	if err != nil {
		return Result{}, fmt.Errorf("recording chat log: %w", err)
	}

	var (
		local   string
		origin  Origin
		sources []websearch.Result
	)

	// Local resolution and web search share no state; run them in parallel.
	// Neither goroutine returns an error, failures degrade in place.
	var g errgroup.Group
	g.Go(func() error {
		local, origin = o.resolveLocal(ctx, query, queryVec, embErr)
		return nil
	})
	g.Go(func() error {
		sources = o.gatherSources(ctx, query)
		return nil
	})
	_ = g.Wait()

	if local != "" {
		if err := o.logs.UpdateAnswer(ctx, logID, local); err != nil {
			// The answer is still served; the log row keeps its sentinel.
			o.logger.Warn("failed to persist resolved answer", "log_id", logID, "error", err)
		}
	}

	updated := append(trimmed, Turn{Question: query, Answer: local})
	updated = trimHistory(updated, o.cfg.MaxHistory)

	return Result{
		LocalAnswer: local,
		Origin:      origin,
		Sources:     sources,
		ChatlogID:   logID,
		History:     updated,
	}, nil
}

// CompleteAnswer writes the generator's final text into an answered turn's
// log row. Called by the downstream generation collaborator once streaming
// finishes.
func (o *Orchestrator) CompleteAnswer(ctx context.Context, logID uuid.UUID, answer string) error {
	if strings.TrimSpace(answer) == "" {
		return fmt.Errorf("empty answer for chat log %s", logID)
	}
	return o.logs.UpdateAnswer(ctx, logID, answer)
}

// resolveLocal tries exact match first, then chunk similarity. Exact match
// always wins, even over a higher-scoring chunk.
func (o *Orchestrator) resolveLocal(ctx context.Context, query string, queryVec []float32, embErr error) (string, Origin) {
	entries, err := o.entries.ListEntries(ctx, knowledge.SourceQA)
	if err != nil {
		o.logger.Warn("listing qa entries failed, exact match skipped", "error", err)
	} else if hit := knowledge.FindExactMatch(query, entries); hit != nil {
		return hit.Metadata.QA.Answer, OriginExact
	}

	if embErr != nil {
		return "", OriginNone
	}

	scored, err := o.index.Search(ctx, queryVec, o.cfg.ChunkTopN, o.cfg.ChunkThreshold)
	if err != nil {
		o.logger.Warn("chunk search failed", "error", err)
		return "", OriginNone
	}
	if len(scored) == 0 {
		return "", OriginNone
	}
	return scored[0].Chunk.Content, OriginChunk
}

// gatherSources runs the allow-listed web search and applies the
// featured-domain guarantee. Failures return an empty slice.
func (o *Orchestrator) gatherSources(ctx context.Context, query string) []websearch.Result {
	allowed, err := o.domains.Allowed(ctx)
	if err != nil {
		o.logger.Warn("loading domain allow-list failed", "error", err)
		return nil
	}

	priority := map[string]float64{o.cfg.FeaturedDomain: featuredPriorityWeight}

	results, err := o.search.Search(ctx, query, allowed, priority, o.cfg.ResultLimit)
	if err != nil {
		o.logger.Warn("external search failed", "error", err)
		results = nil
	}

	fallback := func(ctx context.Context) ([]websearch.Result, error) {
		return o.search.Search(ctx, query, []string{o.cfg.FeaturedDomain}, priority, fallbackResultLimit)
	}
	return o.ranker.Apply(ctx, results, fallback)
}

// buildPrompt concatenates the trimmed history with the current query. The
// prompt feeds the embedding call only; exact match and web search use the
// raw query.
func buildPrompt(history []Turn, query string) string {
	if len(history) == 0 {
		return query
	}
	var b strings.Builder
	for _, t := range history {
		b.WriteString("Q: ")
		b.WriteString(t.Question)
		b.WriteString("\n")
		if t.Answer != "" {
			b.WriteString("A: ")
			b.WriteString(t.Answer)
			b.WriteString("\n")
		}
	}
	b.WriteString("Q: ")
	b.WriteString(query)
	return b.String()
}

// trimHistory keeps the last max turns.
func trimHistory(history []Turn, max int) []Turn {
	if max <= 0 || len(history) <= max {
		return history
	}
	return history[len(history)-max:]
}
