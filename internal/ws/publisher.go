package ws

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Topics published by the core
const (
	TopicNodes = "nodes"
	TopicOTA   = "ota"
)

// Publish broadcasts an event to every connected client as <topic>:update.
// A nil Hub drops the event. Broadcast failure never affects the caller.
func (h *Hub) Publish(topic, eventType string, data interface{}) {
	if h == nil || h.broadcast == nil {
		return
	}

	ok := h.broadcast.BroadcastToNamespace(namespace, topic+":update", map[string]interface{}{
		"type": eventType,
		"data": data,
		"time": time.Now().UTC(),
	})
	if !ok {
		h.logger.WithFields(logrus.Fields{"topic": topic, "type": eventType}).Debug("Event not broadcast")
	}
}
