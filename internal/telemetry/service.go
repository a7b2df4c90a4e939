package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"mesh_manager/internal/cache"
	"mesh_manager/internal/httpx"
	"mesh_manager/internal/model"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MaxNodeIDLength matches the width of the node id columns
const MaxNodeIDLength = 32

// MaxStateKeyLength matches the width of the state_key columns
const MaxStateKeyLength = 64

// maxStateCASAttempts bounds retries of a lost compare-and-set on one state key
const maxStateCASAttempts = 3

// Notifier receives node events for operator dashboards
type Notifier interface {
	Publish(topic, eventType string, data interface{})
}

// EventTopic is the notifier topic for node events
const EventTopic = "nodes"

// Service ingests telemetry and reconciles versioned node state
type Service struct {
	db        *gorm.DB
	snapshots *cache.SnapshotStore
	logger    *logrus.Entry
	notifier  Notifier
	now       func() time.Time
}

// NewService creates a telemetry service. snapshots may be nil.
func NewService(db *gorm.DB, snapshots *cache.SnapshotStore, logger *logrus.Entry) *Service {
	return &Service{
		db:        db,
		snapshots: snapshots,
		logger:    logger.WithField("component", "telemetry"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithNotifier sets an optional event notifier
func (s *Service) WithNotifier(n Notifier) *Service {
	s.notifier = n
	return s
}

// Push records one telemetry report. The node upsert, the sample and every
// state change are committed together or not at all.
func (s *Service) Push(ctx context.Context, nodeID string, req *PushRequest) (*PushResult, error) {
	if nodeID == "" {
		return nil, httpx.ErrParamMissing("node id is required")
	}
	if len(nodeID) > MaxNodeIDLength {
		return nil, httpx.ErrParamIllegal(fmt.Sprintf("node id longer than %d characters", MaxNodeIDLength))
	}
	for key := range req.State {
		if key == "" {
			return nil, httpx.ErrParamIllegal("state key must not be empty")
		}
		if len(key) > MaxStateKeyLength {
			return nil, httpx.ErrParamIllegal(fmt.Sprintf("state key %q longer than %d characters", key, MaxStateKeyLength))
		}
	}

	now := s.now()
	changes := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := upsertNode(tx, nodeID, req, now); err != nil {
			return httpx.ErrDatabaseError("failed to upsert node", err)
		}

		sample := &model.Telemetry{
			NodeID:    nodeID,
			Time:      now,
			HeapFree:  req.HeapFree,
			UptimeSec: req.Uptime,
			PeerCount: req.PeerCount,
			Role:      req.Role,
		}
		if len(req.State) > 0 {
			sample.State = make(datatypes.JSONMap, len(req.State))
			for k, v := range req.State {
				sample.State[k] = v
			}
		}
		if err := tx.Create(sample).Error; err != nil {
			return httpx.ErrDatabaseError("failed to store telemetry", err)
		}

		// Stable key order keeps lock acquisition consistent across pushes.
		keys := make([]string, 0, len(req.State))
		for k := range req.State {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, key := range keys {
			changed, err := applyState(tx, nodeID, key, req.State[key], now)
			if err != nil {
				return err
			}
			if changed {
				changes++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.snapshots.Put(ctx, cache.NodeSnapshot{
		NodeID:    nodeID,
		Time:      now,
		HeapFree:  req.HeapFree,
		UptimeSec: req.Uptime,
		PeerCount: req.PeerCount,
		Role:      req.Role,
	}); err != nil {
		s.logger.WithError(err).WithField("node_id", nodeID).Warn("Failed to cache telemetry snapshot")
	}

	s.logger.WithFields(logrus.Fields{
		"node_id":       nodeID,
		"state_keys":    len(req.State),
		"state_changes": changes,
	}).Debug("Telemetry received")

	result := &PushResult{
		Status:       "ok",
		NodeID:       nodeID,
		Timestamp:    now,
		StateChanges: changes,
	}
	if s.notifier != nil {
		s.notifier.Publish(EventTopic, "telemetry", result)
	}
	return result, nil
}

// upsertNode registers the node on first contact and refreshes liveness.
// Optional fields are only overwritten when reported.
func upsertNode(tx *gorm.DB, nodeID string, req *PushRequest, now time.Time) error {
	role := model.DefaultNodeRole
	if nonEmpty(req.Role) {
		role = *req.Role
	}

	node := &model.Node{
		ID:        nodeID,
		FirstSeen: now,
		LastSeen:  now,
		IsOnline:  true,
		Role:      role,
	}
	assign := map[string]interface{}{
		"last_seen":  now,
		"is_online":  true,
		"updated_at": now,
	}
	if nonEmpty(req.Name) {
		node.Name = req.Name
		assign["name"] = *req.Name
	}
	if nonEmpty(req.Firmware) {
		node.FirmwareVersion = req.Firmware
		assign["firmware_version"] = *req.Firmware
	}
	if nonEmpty(req.Role) {
		assign["role"] = *req.Role
	}
	if nonEmpty(req.IPAddress) {
		node.IPAddress = req.IPAddress
		assign["ip_address"] = *req.IPAddress
	}

	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(assign),
	}).Create(node).Error
}

// applyState reconciles one reported key against current_state.
// Unchanged values are a no-op; a change bumps the version by exactly one
// with a compare-and-set on the version read, and appends one history row.
func applyState(tx *gorm.DB, nodeID, key, value string, now time.Time) (bool, error) {
	for attempt := 0; attempt < maxStateCASAttempts; attempt++ {
		var current model.CurrentState
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("node_id = ? AND state_key = ?", nodeID, key).
			Take(&current).Error

		if errors.Is(err, gorm.ErrRecordNotFound) {
			entry := &model.CurrentState{
				NodeID:    nodeID,
				Key:       key,
				Value:     &value,
				Version:   1,
				UpdatedAt: now,
			}
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(entry)
			if res.Error != nil {
				return false, httpx.ErrDatabaseError("failed to create state", res.Error)
			}
			if res.RowsAffected == 0 {
				// Inserted concurrently; compare against the winner.
				continue
			}
			return true, appendHistory(tx, nodeID, key, value, 1, now)
		}
		if err != nil {
			return false, httpx.ErrDatabaseError("failed to load state", err)
		}

		if current.Value != nil && *current.Value == value {
			return false, nil
		}

		res := tx.Model(&model.CurrentState{}).
			Where("node_id = ? AND state_key = ? AND version = ?", nodeID, key, current.Version).
			Updates(map[string]interface{}{
				"value":      value,
				"version":    gorm.Expr("version + 1"),
				"updated_at": now,
			})
		if res.Error != nil {
			return false, httpx.ErrDatabaseError("failed to update state", res.Error)
		}
		if res.RowsAffected == 0 {
			continue
		}
		return true, appendHistory(tx, nodeID, key, value, current.Version+1, now)
	}

	return false, httpx.ErrStateConflict(fmt.Sprintf("state %q of node %s changed concurrently, retry", key, nodeID))
}

func appendHistory(tx *gorm.DB, nodeID, key, value string, version int, now time.Time) error {
	row := &model.StateHistory{
		NodeID:    nodeID,
		Key:       key,
		Value:     &value,
		Version:   version,
		ChangedAt: now,
	}
	if err := tx.Create(row).Error; err != nil {
		return httpx.ErrDatabaseError("failed to append state history", err)
	}
	return nil
}

func nonEmpty(p *string) bool {
	return p != nil && *p != ""
}
