// Package embedding converts text into unit-normalized vectors via the
// OpenAI embeddings API.
//
// A nil vector with a non-nil error means "no embedding for this turn".
// Callers must treat that as "vector search unavailable", not as a fatal
// condition: exact-match lookup and web search proceed without a vector.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	openai "github.com/sashabaranov/go-openai"

	"github.com/psybrarian/psybrarian/internal/log"
	"github.com/psybrarian/psybrarian/internal/vector"
)

// MaxInputChars is the provider-imposed input cap. Longer text is truncated
// silently before submission; the tail is simply not represented in the
// vector.
const MaxInputChars = 2000

// ErrEmptyEmbedding indicates the provider returned no vector data.
var ErrEmptyEmbedding = errors.New("provider returned empty embedding")

// Client produces embeddings for arbitrary text.
type Client interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// embeddingAPI is the slice of the OpenAI client this package consumes.
// Consumer-defined so tests can stub the provider without network access.
type embeddingAPI interface {
	CreateEmbeddings(ctx context.Context, req openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// OpenAI is a Client backed by the OpenAI embeddings endpoint.
type OpenAI struct {
	api     embeddingAPI
	model   openai.EmbeddingModel
	timeout time.Duration
	logger  log.Logger
}

// NewOpenAI creates an embeddings client for the given model.
// timeout bounds each provider call; zero means 20 seconds.
func NewOpenAI(apiKey, model string, timeout time.Duration, logger log.Logger) *OpenAI {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	if logger == nil {
		logger = log.NewNop()
	}

	return &OpenAI{
		api:     openai.NewClient(apiKey),
		model:   openai.EmbeddingModel(model),
		timeout: timeout,
		logger:  logger,
	}
}

// Embed returns a unit-normalized embedding for text.
//
// Input beyond MaxInputChars is dropped without error. Provider failures
// (network, bad key, malformed response) surface as errors; there is no
// retry.
func (c *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	text = truncate(text, MaxInputChars)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: c.model,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("embedding request timeout: %w", err)
		}
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}

	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, ErrEmptyEmbedding
	}

	emb := vector.Normalize(resp.Data[0].Embedding)
	c.logger.Debug("embedded text", "model", c.model, "input_chars", len(text), "dimensions", len(emb))
	return emb, nil
}

// truncate cuts s to at most max bytes without splitting a multi-byte rune;
// a cut landing inside one backs up to the rune's start.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
