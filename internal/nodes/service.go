package nodes

import (
	"context"
	"errors"
	"strings"
	"time"

	"mesh_manager/internal/cache"
	"mesh_manager/internal/httpx"
	"mesh_manager/internal/model"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// NodeView is a node with the peer count of its latest telemetry sample
type NodeView struct {
	ID              string    `json:"id"`
	Name            *string   `json:"name"`
	FirmwareVersion *string   `json:"firmware_version"`
	IPAddress       *string   `json:"ip_address"`
	FirstSeen       time.Time `json:"first_seen"`
	LastSeen        time.Time `json:"last_seen"`
	IsOnline        bool      `json:"is_online"`
	Role            string    `json:"role"`
	PeerCount       *int      `json:"peer_count"`
}

// Service 节点注册表查询与运维操作
type Service struct {
	db        *gorm.DB
	snapshots *cache.SnapshotStore
	logger    *logrus.Entry
}

// NewService creates a node service. snapshots may be nil.
func NewService(db *gorm.DB, snapshots *cache.SnapshotStore, logger *logrus.Entry) *Service {
	return &Service{
		db:        db,
		snapshots: snapshots,
		logger:    logger.WithField("component", "nodes"),
	}
}

// List returns all nodes, most recently seen first
func (s *Service) List(ctx context.Context) ([]NodeView, error) {
	var nodes []model.Node
	if err := s.db.WithContext(ctx).Order("last_seen DESC").Find(&nodes).Error; err != nil {
		return nil, httpx.ErrDatabaseError("failed to fetch nodes", err)
	}

	items := make([]NodeView, 0, len(nodes))
	for i := range nodes {
		peers, err := s.peerCount(ctx, nodes[i].ID)
		if err != nil {
			return nil, err
		}
		items = append(items, toView(&nodes[i], peers))
	}
	return items, nil
}

// Get returns one node
func (s *Service) Get(ctx context.Context, id string) (*NodeView, error) {
	node, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	peers, err := s.peerCount(ctx, id)
	if err != nil {
		return nil, err
	}
	view := toView(node, peers)
	return &view, nil
}

// Rename sets the display name of a node
func (s *Service) Rename(ctx context.Context, id, name string) (*NodeView, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, httpx.ErrParamInvalid("name cannot be empty")
	}

	node, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&model.Node{}).Where("id = ?", id).Update("name", name).Error; err != nil {
		return nil, httpx.ErrDatabaseError("failed to rename node", err)
	}
	node.Name = &name

	peers, err := s.peerCount(ctx, id)
	if err != nil {
		return nil, err
	}
	view := toView(node, peers)
	return &view, nil
}

// Delete removes a node from the registry. Telemetry, state and history rows
// are kept; the node reappears on its next report.
func (s *Service) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Node{})
	if res.Error != nil {
		return httpx.ErrDatabaseError("failed to delete node", res.Error)
	}
	if res.RowsAffected == 0 {
		return httpx.ErrNotFound("node not found")
	}

	if err := s.snapshots.Delete(ctx, id); err != nil {
		s.logger.WithError(err).WithField("node_id", id).Warn("Failed to evict telemetry snapshot")
	}
	s.logger.WithField("node_id", id).Info("Node deleted")
	return nil
}

func (s *Service) find(ctx context.Context, id string) (*model.Node, error) {
	var node model.Node
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&node).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, httpx.ErrNotFound("node not found")
		}
		return nil, httpx.ErrDatabaseError("failed to fetch node", err)
	}
	return &node, nil
}

// peerCount reads the cached snapshot first and falls back to the latest sample
func (s *Service) peerCount(ctx context.Context, nodeID string) (*int, error) {
	snap, err := s.snapshots.Get(ctx, nodeID)
	if err != nil {
		s.logger.WithError(err).WithField("node_id", nodeID).Warn("Failed to read telemetry snapshot")
	}
	if snap != nil {
		return snap.PeerCount, nil
	}

	var samples []model.Telemetry
	if err := s.db.WithContext(ctx).
		Select("peer_count").
		Where("node_id = ?", nodeID).
		Order("time DESC").
		Order("id DESC").
		Limit(1).
		Find(&samples).Error; err != nil {
		return nil, httpx.ErrDatabaseError("failed to fetch telemetry", err)
	}
	if len(samples) == 0 {
		return nil, nil
	}
	return samples[0].PeerCount, nil
}

func toView(node *model.Node, peers *int) NodeView {
	return NodeView{
		ID:              node.ID,
		Name:            node.Name,
		FirmwareVersion: node.FirmwareVersion,
		IPAddress:       node.IPAddress,
		FirstSeen:       node.FirstSeen,
		LastSeen:        node.LastSeen,
		IsOnline:        node.IsOnline,
		Role:            node.Role,
		PeerCount:       peers,
	}
}
