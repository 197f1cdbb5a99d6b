package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/psybrarian/psybrarian/internal/answer"
	"github.com/psybrarian/psybrarian/internal/chatlog"
	"github.com/psybrarian/psybrarian/internal/log"
	"github.com/psybrarian/psybrarian/internal/websearch"
)

// maxAskBodySize bounds the request body read for /ask.
const maxAskBodySize = 64 << 10 // 64 KB

// maxQuestionLen bounds the accepted question length in bytes.
const maxQuestionLen = 4096

// Resolver answers user questions. *answer.Orchestrator satisfies it.
type Resolver interface {
	Resolve(ctx context.Context, query string, history []answer.Turn) (answer.Result, error)
	CompleteAnswer(ctx context.Context, logID uuid.UUID, text string) error
}

// ReactionStore records reader verdicts. *chatlog.Store satisfies it.
type ReactionStore interface {
	SetReaction(ctx context.Context, id uuid.UUID, r chatlog.Reaction) error
}

// askHandler serves question resolution and chat log follow-ups.
type askHandler struct {
	resolver  Resolver
	reactions ReactionStore
	logger    log.Logger
}

type askRequest struct {
	Question string        `json:"question"`
	History  []answer.Turn `json:"history,omitempty"`
}

type sourceResponse struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet,omitempty"`
	Favicon string `json:"favicon,omitempty"`
	Domain  string `json:"domain"`
}

type askResponse struct {
	LocalAnswer string           `json:"local_answer,omitempty"`
	Origin      string           `json:"origin,omitempty"`
	Sources     []sourceResponse `json:"sources"`
	ChatlogID   uuid.UUID        `json:"chatlog_id"`
	History     []answer.Turn    `json:"history"`
}

// ask handles POST /api/v1/ask.
func (h *askHandler) ask(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error(), h.logger)
		return
	}

	question := strings.TrimSpace(req.Question)
	if question == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "question is required", h.logger)
		return
	}
	if len(question) > maxQuestionLen {
		writeError(w, http.StatusBadRequest, "invalid_request", "question too long", h.logger)
		return
	}

	result, err := h.resolver.Resolve(r.Context(), question, req.History)
	if err != nil {
		h.logger.Error("resolving question failed", "error", err)
		writeError(w, http.StatusInternalServerError, "resolution_failed", "could not resolve question", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, toAskResponse(result), h.logger)
}

type completeRequest struct {
	Answer string `json:"answer"`
}

// complete handles POST /api/v1/chatlogs/{id}/answer. The downstream
// generator calls it once streaming finishes to replace the pending
// sentinel.
func (h *askHandler) complete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "chat log id must be a UUID", h.logger)
		return
	}

	var req completeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error(), h.logger)
		return
	}

	if err := h.resolver.CompleteAnswer(r.Context(), id, req.Answer); err != nil {
		if errors.Is(err, chatlog.ErrLogNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "chat log not found", h.logger)
			return
		}
		h.logger.Error("completing answer failed", "log_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "update_failed", "could not store answer", h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type reactionRequest struct {
	Reaction string `json:"reaction"`
}

// react handles POST /api/v1/chatlogs/{id}/reaction.
func (h *askHandler) react(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "chat log id must be a UUID", h.logger)
		return
	}

	var req reactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error(), h.logger)
		return
	}

	reaction := chatlog.Reaction(req.Reaction)
	if !reaction.Valid() {
		writeError(w, http.StatusBadRequest, "invalid_request", "reaction must be up, down, or empty", h.logger)
		return
	}

	if err := h.reactions.SetReaction(r.Context(), id, reaction); err != nil {
		if errors.Is(err, chatlog.ErrLogNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "chat log not found", h.logger)
			return
		}
		h.logger.Error("setting reaction failed", "log_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "update_failed", "could not store reaction", h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func toAskResponse(result answer.Result) askResponse {
	sources := make([]sourceResponse, 0, len(result.Sources))
	for _, s := range result.Sources {
		sources = append(sources, toSourceResponse(s))
	}
	return askResponse{
		LocalAnswer: result.LocalAnswer,
		Origin:      string(result.Origin),
		Sources:     sources,
		ChatlogID:   result.ChatlogID,
		History:     result.History,
	}
}

func toSourceResponse(s websearch.Result) sourceResponse {
	return sourceResponse{
		URL:     s.URL,
		Title:   s.Title,
		Snippet: s.Snippet,
		Favicon: s.Favicon,
		Domain:  s.Domain,
	}
}

// decodeJSON reads a bounded JSON body into dst, rejecting unknown fields
// and trailing data.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxAskBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.New("malformed JSON body")
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}
