package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/goodtune/cortes/internal/cnel"
	"github.com/goodtune/cortes/internal/metrics"
	"github.com/goodtune/cortes/internal/storage"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// IdentifierHandler handles the saved identifier API.
type IdentifierHandler struct {
	store  storage.IdentifierStore
	logger zerolog.Logger
}

// NewIdentifierHandler creates a new identifier handler.
func NewIdentifierHandler(store storage.IdentifierStore, logger zerolog.Logger) *IdentifierHandler {
	return &IdentifierHandler{
		store:  store,
		logger: logger.With().Str("handler", "identifiers").Logger(),
	}
}

// List returns the saved identifiers in save order.
func (h *IdentifierHandler) List(w http.ResponseWriter, r *http.Request) {
	identifiers, err := h.store.List(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list identifiers")
		WriteError(w, http.StatusInternalServerError, "Failed to retrieve identifiers")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"identifiers": identifiers,
		"count":       len(identifiers),
	})
}

type saveRequest struct {
	ID        string `json:"id"`
	Criterion string `json:"criterion"`
}

// Save stores an identifier. Saving an identifier twice is not an error.
func (h *IdentifierHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	criterion, err := cnel.ParseCriterion(req.Criterion, cnel.CriterionID)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	id := strings.TrimSpace(req.ID)
	if err := cnel.ValidateIdentifier(criterion, id); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	ident := storage.SavedIdentifier{
		ID:        id,
		Criterion: string(criterion),
		SavedAt:   time.Now(),
	}
	added, err := h.store.Save(r.Context(), ident)
	if err != nil {
		h.logger.Error().Err(err).Str("id", id).Msg("Failed to save identifier")
		WriteError(w, http.StatusInternalServerError, "Failed to save identifier")
		return
	}

	status := http.StatusOK
	if added {
		status = http.StatusCreated
		metrics.SavedIdentifiers.Inc()
		h.logger.Info().Str("id", id).Str("criterion", string(criterion)).Msg("Identifier saved")
	}

	saved, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.logger.Error().Err(err).Str("id", id).Msg("Failed to read saved identifier")
		WriteError(w, http.StatusInternalServerError, "Failed to save identifier")
		return
	}

	WriteJSON(w, status, saved)
}

// Delete removes one identifier.
func (h *IdentifierHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "Identifier not found")
			return
		}
		h.logger.Error().Err(err).Str("id", id).Msg("Failed to delete identifier")
		WriteError(w, http.StatusInternalServerError, "Failed to delete identifier")
		return
	}

	metrics.SavedIdentifiers.Dec()
	w.WriteHeader(http.StatusNoContent)
}

// Clear removes every saved identifier.
func (h *IdentifierHandler) Clear(w http.ResponseWriter, r *http.Request) {
	n, err := h.store.Clear(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to clear identifiers")
		WriteError(w, http.StatusInternalServerError, "Failed to clear identifiers")
		return
	}

	metrics.SavedIdentifiers.Set(0)
	h.logger.Info().Int("removed", n).Msg("Saved identifiers cleared")

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"removed": n,
	})
}
