package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mesh_manager/internal/httpx"
	"mesh_manager/internal/model"

	"gorm.io/gorm"
)

// History lookback bounds, in hours
const (
	DefaultHistoryHours = 24
	MinHistoryHours     = 1
	MaxHistoryHours     = 168
)

// History returns samples of a node newer than now-hours, newest first
func (s *Service) History(ctx context.Context, nodeID string, hours int) ([]model.Telemetry, error) {
	if hours < MinHistoryHours || hours > MaxHistoryHours {
		return nil, httpx.ErrParamIllegal(fmt.Sprintf("hours must be between %d and %d", MinHistoryHours, MaxHistoryHours))
	}

	since := s.now().Add(-time.Duration(hours) * time.Hour)
	var samples []model.Telemetry
	if err := s.db.WithContext(ctx).
		Where("node_id = ? AND time >= ?", nodeID, since).
		Order("time DESC").
		Order("id DESC").
		Find(&samples).Error; err != nil {
		return nil, httpx.ErrDatabaseError("failed to load telemetry", err)
	}
	return samples, nil
}

// AllState returns every current state entry, ordered by node then key
func (s *Service) AllState(ctx context.Context) ([]model.CurrentState, error) {
	var entries []model.CurrentState
	if err := s.db.WithContext(ctx).
		Order("node_id ASC").
		Order("state_key ASC").
		Find(&entries).Error; err != nil {
		return nil, httpx.ErrDatabaseError("failed to load state", err)
	}
	return entries, nil
}

// NodeState returns the current state entries of one node
func (s *Service) NodeState(ctx context.Context, nodeID string) ([]model.CurrentState, error) {
	if err := s.requireNode(ctx, nodeID); err != nil {
		return nil, err
	}

	var entries []model.CurrentState
	if err := s.db.WithContext(ctx).
		Where("node_id = ?", nodeID).
		Order("state_key ASC").
		Find(&entries).Error; err != nil {
		return nil, httpx.ErrDatabaseError("failed to load state", err)
	}
	return entries, nil
}

// StateHistory returns the change log of a node, newest first, optionally
// restricted to one key
func (s *Service) StateHistory(ctx context.Context, nodeID, key string) ([]model.StateHistory, error) {
	if err := s.requireNode(ctx, nodeID); err != nil {
		return nil, err
	}

	query := s.db.WithContext(ctx).Where("node_id = ?", nodeID)
	if key != "" {
		query = query.Where("state_key = ?", key)
	}

	var rows []model.StateHistory
	if err := query.Order("changed_at DESC").Order("id DESC").Find(&rows).Error; err != nil {
		return nil, httpx.ErrDatabaseError("failed to load state history", err)
	}
	return rows, nil
}

func (s *Service) requireNode(ctx context.Context, nodeID string) error {
	var node model.Node
	if err := s.db.WithContext(ctx).Select("id").Where("id = ?", nodeID).Take(&node).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return httpx.ErrNotFound("node not found")
		}
		return httpx.ErrDatabaseError("failed to load node", err)
	}
	return nil
}
