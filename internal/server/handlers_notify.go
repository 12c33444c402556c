package server

import (
	"errors"
	"net/http"
	"slices"

	"github.com/google/uuid"

	"github.com/Alfred252525/Analytical-Fire-sub000/internal/model"
	"github.com/Alfred252525/Analytical-Fire-sub000/internal/notify"
	"github.com/Alfred252525/Analytical-Fire-sub000/internal/storage"
)

// EvaluatedNotification is one filter decision with its dispatch outcome.
type EvaluatedNotification struct {
	notify.Decision
	Delivery []notify.ChannelResult `json:"delivery,omitempty"`
}

// HandleEvaluateNotifications handles POST /v1/agents/{id}/notifications/evaluate.
// Candidates are filtered in order against the agent's stored preference.
// Recorded decisions are logged; queued ones are dispatched on request.
func (h *Handlers) HandleEvaluateNotifications(w http.ResponseWriter, r *http.Request) {
	agentID, err := pathID(r, "id")
	if err != nil {
		badRequest(w, r, err)
		return
	}
	var req model.EvaluateNotificationsRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if err := model.Validate(req); err != nil {
		badRequest(w, r, err)
		return
	}

	for i := range req.Notifications {
		if req.Notifications[i].ID == uuid.Nil {
			req.Notifications[i].ID = uuid.New()
		}
	}

	ctx := r.Context()
	var pref *model.NotificationPreference
	stored, err := h.store.GetNotificationPreference(ctx, agentID)
	switch {
	case err == nil:
		pref = &stored
	case errors.Is(err, storage.ErrNotFound):
		// The filter falls back to defaults and reports a warning.
	default:
		h.writeInternalError(w, r, "load notification preference", err)
		return
	}

	decisions, failed, err := h.filter.EvaluateBatch(ctx, pref, agentID, req.Notifications)
	if err != nil {
		h.writeInternalError(w, r, "evaluate notifications", err)
		return
	}

	byID := make(map[uuid.UUID]model.Notification, len(req.Notifications))
	for _, n := range req.Notifications {
		byID[n.ID] = n
	}
	var sendPref model.NotificationPreference
	if pref != nil {
		sendPref = *pref
	} else {
		sendPref = model.DefaultNotificationPreference(agentID)
	}

	out := make([]EvaluatedNotification, len(decisions))
	var warnings []string
	for i, d := range decisions {
		n := byID[d.NotificationID]
		out[i] = EvaluatedNotification{Decision: d}
		for _, warn := range d.Warnings {
			if !slices.Contains(warnings, warn) {
				warnings = append(warnings, warn)
			}
		}
		if !d.Record {
			continue
		}
		inserted, err := h.store.RecordNotification(ctx, storage.NotificationRecord{
			Notification: n,
			Status:       string(d.Status),
			Reason:       string(d.Reason),
			Channels:     d.Channels,
		})
		if err != nil {
			h.writeInternalError(w, r, "record notification", err)
			return
		}
		if !inserted {
			h.logger.DebugContext(ctx, "server: notification re-evaluated",
				"notification_id", n.ID, "status", d.Status, "reason", d.Reason)
		}
		if !req.Dispatch || h.dispatcher == nil || d.Status != notify.StatusQueued {
			continue
		}
		dispatched, results := h.dispatcher.Dispatch(ctx, d, n, sendPref)
		out[i] = EvaluatedNotification{Decision: dispatched, Delivery: results}
		if dispatched.Status == notify.StatusDelivered {
			if err := h.store.UpdateNotificationStatus(ctx, n.ID, string(notify.StatusDelivered)); err != nil {
				h.logger.WarnContext(ctx, "server: mark notification delivered", "notification_id", n.ID, "error", err)
			}
		}
	}

	meta := newMeta(r)
	meta.Warnings = warnings
	if len(failed) > 0 {
		meta.FailedItems = make([]string, len(failed))
		for i, f := range failed {
			meta.FailedItems[i] = f.ItemID
		}
	}
	writeJSONMeta(w, r, http.StatusOK, out, meta)
}
