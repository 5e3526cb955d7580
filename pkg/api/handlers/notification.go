package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/nfmesh/scp/internal/logger"
	"github.com/nfmesh/scp/pkg/nrf"
	"github.com/nfmesh/scp/pkg/registry"
)

// NotificationHandler applies NRF push notifications to the profile
// cache the selector reads from.
type NotificationHandler struct {
	registry *registry.Registry
}

// NewNotificationHandler creates the NRF notification sink.
func NewNotificationHandler(reg *registry.Registry) *NotificationHandler {
	return &NotificationHandler{registry: reg}
}

// Notify handles POST /nrf-notify.
func (h *NotificationHandler) Notify(w http.ResponseWriter, r *http.Request) {
	var notification nrf.Notification
	if err := json.NewDecoder(r.Body).Decode(&notification); err != nil {
		BadRequest(w, "malformed notification body")
		return
	}
	if !notification.Event.Valid() {
		BadRequest(w, "unknown notification event type")
		return
	}

	instanceID := extractInstanceID(notification.NFInstanceURI)
	logger.Info("received NRF notification",
		logger.KeyEvent, string(notification.Event),
		logger.KeyInstanceID, instanceID,
	)

	switch notification.Event {
	case nrf.EventNFRegistered, nrf.EventNFProfileChanged, nrf.EventNFStatusChanged:
		if notification.NFProfile == nil {
			// An upsert without a profile carries nothing to apply;
			// log and drop rather than synthesize an entry.
			logger.Warn("notification without NF profile dropped",
				logger.KeyEvent, string(notification.Event),
				logger.KeyInstanceID, instanceID,
			)
			break
		}
		h.registry.UpsertProfile(instanceID, *notification.NFProfile)
	case nrf.EventNFDeregistered:
		h.registry.RemoveProfile(instanceID)
	}

	WriteNoContent(w)
}

// extractInstanceID takes the last path segment of the notification's
// nfInstanceUri.
func extractInstanceID(nfInstanceURI string) string {
	segments := strings.Split(nfInstanceURI, "/")
	last := segments[len(segments)-1]
	if last == "" {
		return nfInstanceURI
	}
	return last
}
