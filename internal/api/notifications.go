package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-homey/internal/notify"
)

// handleListNotifications returns stored notifications, oldest first.
func (s *Server) handleListNotifications(w http.ResponseWriter, _ *http.Request) {
	list := s.notifications.List()
	writeJSON(w, http.StatusOK, map[string]any{"notifications": list, "count": len(list)})
}

// handleInvokeNotification runs the notification's action (e.g. Reconnect)
// and dismisses it.
func (s *Server) handleInvokeNotification(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.notifications.Invoke(id); err != nil {
		writeNotificationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "invoked", "id": id})
}

// handleDismissNotification removes a notification without running its action.
func (s *Server) handleDismissNotification(w http.ResponseWriter, r *http.Request) {
	if err := s.notifications.Dismiss(chi.URLParam(r, "id")); err != nil {
		writeNotificationError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeNotificationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, notify.ErrNotFound):
		writeNotFound(w, "notification not found")
	case errors.Is(err, notify.ErrNoAction):
		writeConflict(w, "notification has no action")
	default:
		writeInternalError(w, "notification request failed")
	}
}
