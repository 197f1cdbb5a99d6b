package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/psybrarian/psybrarian/internal/knowledge"
	"github.com/psybrarian/psybrarian/internal/log"
)

// Reindexer rebuilds an entry's chunk set. *knowledge.Indexer satisfies it.
type Reindexer interface {
	Reindex(ctx context.Context, entryID uuid.UUID) (int, error)
}

// reindexHandler serves the admin reindex hook.
type reindexHandler struct {
	indexer Reindexer
	logger  log.Logger
}

type reindexResponse struct {
	EntryID uuid.UUID `json:"entry_id"`
	Chunks  int       `json:"chunks"`
}

// reindex handles POST /api/v1/admin/reindex/{entryID}.
func (h *reindexHandler) reindex(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("entryID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "entry id must be a UUID", h.logger)
		return
	}

	count, err := h.indexer.Reindex(r.Context(), id)
	if err != nil {
		if errors.Is(err, knowledge.ErrEntryNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "knowledge entry not found", h.logger)
			return
		}
		h.logger.Error("reindex failed", "entry_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "reindex_failed", "could not reindex entry", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, reindexResponse{EntryID: id, Chunks: count}, h.logger)
}
