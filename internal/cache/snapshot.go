package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// NodeSnapshot is the latest telemetry sample of a node
type NodeSnapshot struct {
	NodeID    string    `json:"nodeId"`
	Time      time.Time `json:"time"`
	HeapFree  *int      `json:"heapFree,omitempty"`
	UptimeSec *int      `json:"uptimeSec,omitempty"`
	PeerCount *int      `json:"peerCount,omitempty"`
	Role      *string   `json:"role,omitempty"`
}

// SnapshotStore keeps the latest telemetry sample per node in Redis.
// A nil *SnapshotStore is valid and behaves as an always-empty cache.
type SnapshotStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewSnapshotStore creates a snapshot store. Entries expire after ttl, so a
// node that stops reporting falls back to the database.
func NewSnapshotStore(rdb *redis.Client, ttl time.Duration) *SnapshotStore {
	if rdb == nil {
		return nil
	}
	return &SnapshotStore{rdb: rdb, ttl: ttl}
}

func snapshotKey(nodeID string) string {
	return fmt.Sprintf("mesh:node:snapshot:%s", nodeID)
}

// Put stores the snapshot, replacing any previous one
func (s *SnapshotStore) Put(ctx context.Context, snap NodeSnapshot) error {
	if s == nil {
		return nil
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := s.rdb.Set(ctx, snapshotKey(snap.NodeID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store snapshot in Redis: %w", err)
	}
	return nil
}

// Get returns the cached snapshot, or nil when absent or expired
func (s *SnapshotStore) Get(ctx context.Context, nodeID string) (*NodeSnapshot, error) {
	if s == nil {
		return nil, nil
	}
	data, err := s.rdb.Get(ctx, snapshotKey(nodeID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	var snap NodeSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// Delete removes the snapshot of a node
func (s *SnapshotStore) Delete(ctx context.Context, nodeID string) error {
	if s == nil {
		return nil
	}
	return s.rdb.Del(ctx, snapshotKey(nodeID)).Err()
}
