package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-homey/internal/bridges/homey"
)

// handleListAdapters returns every configured hub adapter with its
// connection state and counters.
func (s *Server) handleListAdapters(w http.ResponseWriter, _ *http.Request) {
	adapters := s.bridge.AdapterHealth()
	writeJSON(w, http.StatusOK, map[string]any{"adapters": adapters, "count": len(adapters)})
}

// handleGetAdapter returns a single adapter by ID.
func (s *Server) handleGetAdapter(w http.ResponseWriter, r *http.Request) {
	a, ok := s.lookupAdapter(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, homey.AdapterHealth{
		ID:      a.ID(),
		Address: a.Address(),
		State:   a.State().String(),
		Stats:   a.Stats(),
	})
}

// handleConnectAdapter asks an adapter to connect. A parked adapter starts
// a fresh retry budget.
func (s *Server) handleConnectAdapter(w http.ResponseWriter, r *http.Request) {
	a, ok := s.lookupAdapter(w, r)
	if !ok {
		return
	}
	if err := a.Connect(); err != nil {
		writeAdapterError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "adapter_id": a.ID()})
}

// handleDisconnectAdapter closes an adapter's socket and suppresses reconnects.
func (s *Server) handleDisconnectAdapter(w http.ResponseWriter, r *http.Request) {
	a, ok := s.lookupAdapter(w, r)
	if !ok {
		return
	}
	if err := a.Disconnect(); err != nil {
		writeAdapterError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "adapter_id": a.ID()})
}

func (s *Server) lookupAdapter(w http.ResponseWriter, r *http.Request) (*homey.Adapter, bool) {
	a, err := s.bridge.Adapter(chi.URLParam(r, "id"))
	if err != nil {
		writeNotFound(w, "adapter not found")
		return nil, false
	}
	return a, true
}

// writeAdapterError maps adapter request errors to HTTP responses.
func writeAdapterError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, homey.ErrAdapterStopped):
		writeConflict(w, "adapter is stopped")
	case errors.Is(err, homey.ErrMailboxFull):
		writeUnavailable(w, "adapter is busy, retry later")
	default:
		writeInternalError(w, "adapter request failed")
	}
}
