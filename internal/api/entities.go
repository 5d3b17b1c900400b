package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-homey/internal/bridges/homey"
	"github.com/nerrad567/gray-logic-homey/internal/entity"
)

// handleListEntities returns all entities sorted by id.
//
// Query parameters:
//   - adapter: only entities announced by this adapter
func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if adapterID := r.URL.Query().Get("adapter"); adapterID != "" {
		entities, err := s.registry.ListByAdapter(ctx, adapterID)
		if err != nil {
			writeInternalError(w, "failed to list entities")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"entities": entities, "count": len(entities)})
		return
	}

	entities := s.registry.List(ctx)
	writeJSON(w, http.StatusOK, map[string]any{"entities": entities, "count": len(entities)})
}

// handleGetEntity returns a single entity by ID.
func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	e, err := s.registry.LookupByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, entity.ErrEntityNotFound) {
			writeNotFound(w, "entity not found")
			return
		}
		writeInternalError(w, "failed to get entity")
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// handleEntityCommand routes a command to the adapter owning the entity.
//
// Body: {"command": "brightness", "parameter": 75}
//
// The command is queued on the adapter; 202 does not mean the hub applied
// it. Commands the adapter cannot encode, or that arrive while its socket is
// closed, are dropped and counted.
func (s *Server) handleEntityCommand(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req homey.CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	err := s.bridge.SendCommand(r.Context(), id, req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, map[string]string{
			"status":    "accepted",
			"entity_id": id,
			"command":   req.Command,
		})
	case errors.Is(err, homey.ErrInvalidCommand):
		writeBadRequest(w, "command is required")
	case errors.Is(err, entity.ErrEntityNotFound):
		writeNotFound(w, "entity not found")
	case errors.Is(err, homey.ErrUnknownAdapter):
		writeConflict(w, "entity's adapter is not running")
	default:
		writeAdapterError(w, err)
	}
}
