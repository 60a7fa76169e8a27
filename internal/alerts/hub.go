package alerts

import (
	"github.com/tradefin-io/tradefingo/internal/models"
	"github.com/tradefin-io/tradefingo/internal/websocket"
)

// HubNotifier pushes new alerts to connected auditor websocket sessions.
type HubNotifier struct {
	hub *websocket.Hub
}

// NewHubNotifier creates a notifier over the alert hub.
func NewHubNotifier(hub *websocket.Hub) *HubNotifier {
	return &HubNotifier{hub: hub}
}

// Notify broadcasts the alert. The hub drops slow subscribers itself, so
// this never blocks and never fails.
func (n *HubNotifier) Notify(alert *models.IntegrityAlert) error {
	n.hub.Broadcast(map[string]interface{}{
		"type":  "INTEGRITY_ALERT",
		"alert": alert,
	})
	return nil
}
