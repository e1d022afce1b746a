package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apperrors "investing_monitor/internal/errors"
	"investing_monitor/internal/repository"
)

// NotificationHandler handles persistent error notification routes.
type NotificationHandler struct {
	notifs *repository.NotificationRepository
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(notifs *repository.NotificationRepository) *NotificationHandler {
	return &NotificationHandler{notifs: notifs}
}

// List returns all undismissed notifications.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	notifications, err := h.notifs.GetActive()
	if err != nil {
		respondError(w, apperrors.Wrap(apperrors.ErrInternal, "listing notifications", err))
		return
	}
	respondJSON(w, http.StatusOK, notifications)
}

// Dismiss marks a notification as handled.
func (h *NotificationHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, apperrors.Validation("invalid notification id"))
		return
	}

	dismissed, err := h.notifs.Dismiss(id)
	if err != nil {
		respondError(w, apperrors.Wrap(apperrors.ErrInternal, "dismissing notification", err))
		return
	}
	if !dismissed {
		respondError(w, apperrors.NotFound("notification"))
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}
