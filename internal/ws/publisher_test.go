package ws

import (
	"context"
	"errors"
	"testing"

	"mesh_manager/internal/testutil"
)

type recordedBroadcast struct {
	namespace string
	event     string
	args      []interface{}
}

type fakeBroadcaster struct {
	calls []recordedBroadcast
}

func (f *fakeBroadcaster) BroadcastToNamespace(namespace string, event string, args ...interface{}) bool {
	f.calls = append(f.calls, recordedBroadcast{namespace: namespace, event: event, args: args})
	return true
}

func newTestHub() (*Hub, *fakeBroadcaster) {
	fake := &fakeBroadcaster{}
	return &Hub{
		broadcast: fake,
		logger:    testutil.Logger(),
		snapshots: make(map[string]SnapshotFunc),
	}, fake
}

func TestPublish(t *testing.T) {
	hub, fake := newTestHub()

	hub.Publish(TopicOTA, "started", map[string]interface{}{"id": 7})

	if len(fake.calls) != 1 {
		t.Fatalf("Expected 1 broadcast, got %d", len(fake.calls))
	}
	call := fake.calls[0]
	if call.namespace != "/" || call.event != "ota:update" {
		t.Errorf("Unexpected broadcast %s %s", call.namespace, call.event)
	}
	payload, ok := call.args[0].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected map payload, got %T", call.args[0])
	}
	if payload["type"] != "started" {
		t.Errorf("Expected type started, got %v", payload["type"])
	}
}

func TestPublish_NilHub(t *testing.T) {
	var hub *Hub
	hub.Publish(TopicNodes, "telemetry", nil)
	if err := hub.Close(); err != nil {
		t.Errorf("Close() on nil hub: %v", err)
	}
}

func TestSnapshot(t *testing.T) {
	hub, _ := newTestHub()
	hub.RegisterSnapshot(TopicNodes, func(ctx context.Context) (interface{}, error) {
		return []string{"a", "b"}, nil
	})
	hub.RegisterSnapshot(TopicOTA, func(ctx context.Context) (interface{}, error) {
		return nil, errors.New("db down")
	})

	payload, err := hub.snapshot(TopicNodes)
	if err != nil {
		t.Fatalf("snapshot() failed: %v", err)
	}
	items, ok := payload["items"].([]string)
	if !ok || len(items) != 2 {
		t.Errorf("Unexpected items: %v", payload["items"])
	}

	if _, err := hub.snapshot(TopicOTA); err == nil {
		t.Error("Expected error from failing snapshot")
	}
	if _, err := hub.snapshot("unknown"); err == nil {
		t.Error("Expected error for unknown topic")
	}
}
