package ota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mesh_manager/internal/httpx"
	"mesh_manager/internal/model"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FirmwareSource resolves firmware metadata. Implementations must not load
// the binary payload.
type FirmwareSource interface {
	Metadata(ctx context.Context, id int) (*model.Firmware, error)
	MetadataByIDs(ctx context.Context, ids []int) (map[int]*model.Firmware, error)
}

// Notifier receives job lifecycle events for operator dashboards
type Notifier interface {
	Publish(topic, eventType string, data interface{})
}

// EventTopic is the notifier topic for update job events
const EventTopic = "ota"

// Service OTA 任务编排
// 任务状态机: pending -> distributing -> completed/failed, pending 可取消(删除)
type Service struct {
	db       *gorm.DB
	firmware FirmwareSource
	logger   *logrus.Entry
	notifier Notifier
	now      func() time.Time
}

// NewService 创建 OTA 服务
func NewService(db *gorm.DB, firmware FirmwareSource, logger *logrus.Entry) *Service {
	return &Service{
		db:       db,
		firmware: firmware,
		logger:   logger.WithField("component", "ota"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithNotifier 设置事件通知（可选）
func (s *Service) WithNotifier(n Notifier) *Service {
	s.notifier = n
	return s
}

func (s *Service) publish(eventType string, data interface{}) {
	if s.notifier != nil {
		s.notifier.Publish(EventTopic, eventType, data)
	}
}

// Create 创建 OTA 任务
func (s *Service) Create(ctx context.Context, req *CreateRequest) (*model.OTAUpdate, error) {
	fw, err := s.firmware.Metadata(ctx, req.FirmwareID)
	if err != nil {
		return nil, err
	}

	nodeType := fw.NodeType
	if req.TargetNodeType != nil && *req.TargetNodeType != "" {
		nodeType = *req.TargetNodeType
	}

	var targetNodeID *string
	if req.TargetNodeID != nil && *req.TargetNodeID != "" {
		targetNodeID = req.TargetNodeID
	}

	job := &model.OTAUpdate{
		FirmwareID:     fw.ID,
		TargetNodeID:   targetNodeID,
		TargetNodeType: &nodeType,
		Status:         model.OTAUpdateStatusPending,
		ForceUpdate:    req.ForceUpdate,
		CreatedAt:      s.now(),
	}
	if err := s.db.WithContext(ctx).Create(job).Error; err != nil {
		return nil, httpx.ErrDatabaseError("failed to create update", err)
	}

	s.logger.WithFields(logrus.Fields{
		"update_id":   job.ID,
		"firmware_id": fw.ID,
		"node_type":   nodeType,
		"target_node": model.StrVal(targetNodeID),
		"force":       job.ForceUpdate,
	}).Info("OTA update created")

	s.publish("created", job)
	return job, nil
}

// List 列出任务（按创建时间倒序），status 为空表示不过滤
func (s *Service) List(ctx context.Context, status string) ([]model.OTAUpdate, error) {
	query := s.db.WithContext(ctx).Model(&model.OTAUpdate{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var jobs []model.OTAUpdate
	if err := query.Order("created_at DESC").Order("id DESC").Find(&jobs).Error; err != nil {
		return nil, httpx.ErrDatabaseError("failed to list updates", err)
	}
	return jobs, nil
}

// ListPending 返回全部 pending 任务，最早创建的在前
// num_parts 在轮询时根据固件当前大小计算，不落库
func (s *Service) ListPending(ctx context.Context) ([]PendingUpdate, error) {
	var jobs []model.OTAUpdate
	if err := s.db.WithContext(ctx).
		Where("status = ?", model.OTAUpdateStatusPending).
		Order("created_at ASC").
		Order("id ASC").
		Find(&jobs).Error; err != nil {
		return nil, httpx.ErrDatabaseError("failed to list pending updates", err)
	}
	if len(jobs) == 0 {
		return []PendingUpdate{}, nil
	}

	ids := make([]int, 0, len(jobs))
	for _, job := range jobs {
		ids = append(ids, job.FirmwareID)
	}
	firmware, err := s.firmware.MetadataByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	pending := make([]PendingUpdate, 0, len(jobs))
	for _, job := range jobs {
		fw, ok := firmware[job.FirmwareID]
		if !ok {
			// Firmware removed underneath a pending job; nothing to distribute.
			s.logger.WithFields(logrus.Fields{
				"update_id":   job.ID,
				"firmware_id": job.FirmwareID,
			}).Warn("Pending update references missing firmware, skipping")
			continue
		}
		pending = append(pending, PendingUpdate{
			UpdateID:     job.ID,
			FirmwareID:   fw.ID,
			NodeType:     fw.NodeType,
			Version:      fw.Version,
			Hardware:     fw.Hardware,
			MD5:          fw.MD5Hash,
			NumParts:     ChunkCount(fw.SizeBytes),
			SizeBytes:    fw.SizeBytes,
			TargetNodeID: job.TargetNodeID,
			Force:        job.ForceUpdate,
		})
	}
	return pending, nil
}

// Start 网关开始分发任务
// 使用 status = pending 作为条件更新，重复调用只会得到状态冲突
func (s *Service) Start(ctx context.Context, id int64) (*model.OTAUpdate, error) {
	now := s.now()
	res := s.db.WithContext(ctx).
		Model(&model.OTAUpdate{}).
		Where("id = ? AND status = ?", id, model.OTAUpdateStatusPending).
		Updates(map[string]interface{}{
			"status":     model.OTAUpdateStatusDistributing,
			"started_at": now,
		})
	if res.Error != nil {
		return nil, httpx.ErrDatabaseError("failed to start update", res.Error)
	}

	job, err := s.find(s.db.WithContext(ctx), id, false)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		return nil, httpx.ErrStateConflict(fmt.Sprintf("update is not pending (status: %s)", job.Status))
	}

	s.logger.WithField("update_id", id).Info("OTA update distributing")
	s.publish("started", job)
	return job, nil
}

// ReportProgress 记录单节点进度
// 首次上报创建记录并写 started_at，之后原地覆盖（后写覆盖先写）
func (s *Service) ReportProgress(ctx context.Context, id int64, nodeID string, report *ProgressReport) (*model.OTANodeStatus, error) {
	if report.CurrentPart == nil || report.TotalParts == nil {
		return nil, httpx.ErrParamMissing("current_part and total_parts are required")
	}

	status := ParseNodeStatus(report.Status)
	if !status.Recognized() {
		s.logger.WithFields(logrus.Fields{
			"update_id": id,
			"node_id":   nodeID,
			"status":    status.Raw,
		}).Warn("Unrecognized node status reported, storing as-is")
	}

	now := s.now()
	totalParts := *report.TotalParts
	row := model.OTANodeStatus{
		UpdateID:     id,
		NodeID:       nodeID,
		Status:       status.String(),
		CurrentPart:  *report.CurrentPart,
		TotalParts:   &totalParts,
		ErrorMessage: report.ErrorMessage,
		StartedAt:    &now,
		UpdatedAt:    now,
	}
	assign := []string{"status", "current_part", "total_parts", "error_message", "updated_at"}
	if status.Terminal() {
		row.CompletedAt = &now
		assign = append(assign, "completed_at")
	}

	var stored model.OTANodeStatus
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.find(tx, id, false); err != nil {
			return err
		}

		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "update_id"}, {Name: "node_id"}},
			DoUpdates: clause.AssignmentColumns(assign),
		}).Create(&row).Error; err != nil {
			return httpx.ErrDatabaseError("failed to save node progress", err)
		}

		if err := tx.Where("update_id = ? AND node_id = ?", id, nodeID).First(&stored).Error; err != nil {
			return httpx.ErrDatabaseError("failed to reload node progress", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"update_id": id,
		"node_id":   nodeID,
		"status":    stored.Status,
		"progress":  fmt.Sprintf("%d/%d", *report.CurrentPart, *report.TotalParts),
	}).Debug("OTA node progress")

	s.publish("progress", &stored)
	return &stored, nil
}

// Complete 网关声明任务完成（不检查当前状态）
func (s *Service) Complete(ctx context.Context, id int64) (*model.OTAUpdate, error) {
	return s.finish(ctx, id, model.OTAUpdateStatusCompleted, nil)
}

// Fail 网关声明任务失败（不检查当前状态）
func (s *Service) Fail(ctx context.Context, id int64, errorMessage string) (*model.OTAUpdate, error) {
	if errorMessage == "" {
		errorMessage = "Unknown error"
	}
	return s.finish(ctx, id, model.OTAUpdateStatusFailed, &errorMessage)
}

func (s *Service) finish(ctx context.Context, id int64, status model.OTAUpdateStatus, errorMessage *string) (*model.OTAUpdate, error) {
	var job *model.OTAUpdate
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		found, err := s.find(tx, id, true)
		if err != nil {
			return err
		}

		now := s.now()
		updates := map[string]interface{}{
			"status":       status,
			"completed_at": now,
		}
		if errorMessage != nil {
			updates["error_message"] = *errorMessage
		}
		if err := tx.Model(&model.OTAUpdate{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return httpx.ErrDatabaseError("failed to update status", err)
		}

		found.Status = status
		found.CompletedAt = &now
		if errorMessage != nil {
			found.ErrorMessage = errorMessage
		}
		job = found
		return nil
	})
	if err != nil {
		return nil, err
	}

	entry := s.logger.WithFields(logrus.Fields{"update_id": id, "status": status})
	if errorMessage != nil {
		entry.WithField("error", *errorMessage).Warn("OTA update finished")
	} else {
		entry.Info("OTA update finished")
	}
	s.publish(string(status), job)
	return job, nil
}

// Cancel 取消（删除）任务及其节点进度，distributing 状态不可取消
func (s *Service) Cancel(ctx context.Context, id int64) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		job, err := s.find(tx, id, true)
		if err != nil {
			return err
		}
		if job.Status == model.OTAUpdateStatusDistributing {
			return httpx.ErrStateConflict("cannot cancel update in progress")
		}

		if err := tx.Where("update_id = ?", id).Delete(&model.OTANodeStatus{}).Error; err != nil {
			return httpx.ErrDatabaseError("failed to delete node statuses", err)
		}
		if err := tx.Delete(&model.OTAUpdate{}, id).Error; err != nil {
			return httpx.ErrDatabaseError("failed to delete update", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.WithField("update_id", id).Info("OTA update cancelled")
	s.publish("cancelled", map[string]interface{}{"id": id})
	return nil
}

// GetStatus 任务详情及全部节点进度（按上报先后）
func (s *Service) GetStatus(ctx context.Context, id int64) (*UpdateStatus, error) {
	gdb := s.db.WithContext(ctx)
	job, err := s.find(gdb, id, false)
	if err != nil {
		return nil, err
	}

	var rows []model.OTANodeStatus
	if err := gdb.Where("update_id = ?", id).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, httpx.ErrDatabaseError("failed to load node statuses", err)
	}

	out := &UpdateStatus{
		ID:             job.ID,
		FirmwareID:     job.FirmwareID,
		Status:         string(job.Status),
		TargetNodeID:   job.TargetNodeID,
		TargetNodeType: job.TargetNodeType,
		ForceUpdate:    job.ForceUpdate,
		ErrorMessage:   job.ErrorMessage,
		CreatedAt:      job.CreatedAt,
		StartedAt:      job.StartedAt,
		CompletedAt:    job.CompletedAt,
		Nodes:          make([]NodeProgress, 0, len(rows)),
	}

	fw, err := s.firmware.Metadata(ctx, job.FirmwareID)
	switch {
	case err == nil:
		out.NodeType = fw.NodeType
		out.Version = fw.Version
	case httpx.IsCode(err, httpx.CodeNotFound):
		out.NodeType = model.StrVal(job.TargetNodeType)
	default:
		return nil, err
	}

	for _, row := range rows {
		out.Nodes = append(out.Nodes, NodeProgress{
			NodeID:       row.NodeID,
			Status:       row.Status,
			CurrentPart:  row.CurrentPart,
			TotalParts:   row.TotalParts,
			ErrorMessage: row.ErrorMessage,
			StartedAt:    row.StartedAt,
			CompletedAt:  row.CompletedAt,
		})
	}
	return out, nil
}

// find 查询任务，lock 为 true 时在事务内加行锁
func (s *Service) find(tx *gorm.DB, id int64, lock bool) (*model.OTAUpdate, error) {
	query := tx
	if lock {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var job model.OTAUpdate
	if err := query.First(&job, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, httpx.ErrNotFound("update not found")
		}
		return nil, httpx.ErrDatabaseError("failed to load update", err)
	}
	return &job, nil
}
