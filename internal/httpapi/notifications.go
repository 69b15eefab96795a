package httpapi

import (
	"fmt"
	"net/http"

	"github.com/miniis3/lotteryd/internal/farcaster"
	"github.com/miniis3/lotteryd/internal/metrics"
	"github.com/miniis3/lotteryd/internal/notify"
)

func (h *Handler) sendCustomNotification(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		FID   int64  `json:"fid"`
		Title string `json:"title"`
		Body  string `json:"body"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if payload.FID <= 0 || payload.Title == "" || payload.Body == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("fid, title and body are required"))
		return
	}

	state, err := h.notifier.Send(r.Context(), []int64{payload.FID}, notify.Notification{
		Title: payload.Title,
		Body:  payload.Body,
	})
	metrics.NotificationsSent.WithLabelValues(string(state)).Inc()

	switch state {
	case notify.StateSuccess:
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	case notify.StateRateLimit:
		writeError(w, http.StatusTooManyRequests, fmt.Errorf("rate limited"))
	case notify.StateNoToken:
		writeError(w, http.StatusBadRequest, fmt.Errorf("no notification token"))
	default:
		if err == nil {
			err = fmt.Errorf("notification delivery failed")
		}
		writeError(w, http.StatusInternalServerError, err)
	}
}

// webhook receives Farcaster mini-app lifecycle events and maintains the
// notification tokens plus the broadcast audience.
func (h *Handler) webhook(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		FID                 int64                          `json:"fid"`
		Event               string                         `json:"event"`
		NotificationDetails *farcaster.NotificationDetails `json:"notificationDetails,omitempty"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if payload.FID <= 0 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("fid is required"))
		return
	}
	ctx := r.Context()
	log := h.log.WithField("fid", payload.FID).WithField("event", payload.Event)

	switch payload.Event {
	case "frame_added", "notifications_enabled":
		if payload.NotificationDetails != nil {
			if err := h.store.SetNotificationDetails(ctx, payload.FID, *payload.NotificationDetails); err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
		}
		if err := h.store.AddUserFID(ctx, payload.FID); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
	case "notifications_disabled":
		if err := h.store.DeleteNotificationDetails(ctx, payload.FID); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
	case "frame_removed":
		if err := h.store.DeleteNotificationDetails(ctx, payload.FID); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if err := h.store.RemoveUserFID(ctx, payload.FID); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
	default:
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown event %q", payload.Event))
		return
	}

	log.Info("webhook event processed")
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
