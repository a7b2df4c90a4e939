package ws

import (
	"context"
	"fmt"

	socketio "github.com/googollee/go-socket.io"
)

// RegisterSnapshot makes request:<topic> answer with <topic>:initial carrying
// the output of fn. Call before Start.
func (h *Hub) RegisterSnapshot(topic string, fn SnapshotFunc) {
	h.mu.Lock()
	h.snapshots[topic] = fn
	h.mu.Unlock()

	if h.server != nil {
		h.server.OnEvent(namespace, "request:"+topic, func(s socketio.Conn, data interface{}) {
			h.handleRequest(s, topic)
		})
	}
}

func (h *Hub) handleRequest(s socketio.Conn, topic string) {
	payload, err := h.snapshot(topic)
	if err != nil {
		h.logger.WithError(err).WithField("topic", topic).Warn("Snapshot request failed")
		s.Emit("error", map[string]interface{}{
			"message": fmt.Sprintf("failed to query %s", topic),
		})
		return
	}
	s.Emit(topic+":initial", payload)
}

// snapshot builds the <topic>:initial payload
func (h *Hub) snapshot(topic string) (map[string]interface{}, error) {
	h.mu.RLock()
	fn, ok := h.snapshots[topic]
	h.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown topic %q", topic)
	}

	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()

	items, err := fn(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"topic": topic,
		"items": items,
	}, nil
}
