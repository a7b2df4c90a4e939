package firmware

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"mesh_manager/internal/httpx"
	"mesh_manager/internal/model"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// metadataColumns excludes binary_data so listing never drags payloads around
var metadataColumns = []string{
	"id", "node_type", "version", "hardware", "filename", "size_bytes",
	"md5_hash", "release_notes", "is_stable", "created_at",
}

// UploadRequest carries a firmware image and its identity
type UploadRequest struct {
	NodeType     string
	Version      string
	Hardware     string
	Filename     string
	ReleaseNotes *string
	IsStable     bool
	Data         []byte
}

// Service stores firmware images and serves their metadata
type Service struct {
	db     *gorm.DB
	logger *logrus.Entry
}

// NewService creates a firmware service
func NewService(db *gorm.DB, logger *logrus.Entry) *Service {
	return &Service{
		db:     db,
		logger: logger.WithField("component", "firmware"),
	}
}

// Upload stores a new image. (node_type, version, hardware) must be unique.
func (s *Service) Upload(ctx context.Context, req *UploadRequest) (*model.Firmware, error) {
	nodeType := strings.TrimSpace(req.NodeType)
	version := strings.TrimSpace(req.Version)
	if nodeType == "" || version == "" {
		return nil, httpx.ErrParamMissing("node_type and version are required")
	}
	if len(req.Data) == 0 {
		return nil, httpx.ErrParamInvalid("firmware file is empty")
	}
	hardware := strings.TrimSpace(req.Hardware)
	if hardware == "" {
		hardware = model.DefaultHardware
	}
	filename := req.Filename
	if filename == "" {
		filename = fmt.Sprintf("%s_%s.bin", nodeType, version)
	}

	sum := md5.Sum(req.Data)
	fw := &model.Firmware{
		NodeType:     nodeType,
		Version:      version,
		Hardware:     hardware,
		Filename:     filename,
		SizeBytes:    int64(len(req.Data)),
		MD5Hash:      hex.EncodeToString(sum[:]),
		BinaryData:   req.Data,
		ReleaseNotes: req.ReleaseNotes,
		IsStable:     req.IsStable,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Firmware{}).
			Where("node_type = ? AND version = ? AND hardware = ?", nodeType, version, hardware).
			Count(&count).Error; err != nil {
			return httpx.ErrDatabaseError("failed to check firmware", err)
		}
		if count > 0 {
			return httpx.ErrAlreadyExists(fmt.Sprintf("firmware already exists for %s v%s (%s)", nodeType, version, hardware))
		}
		if err := tx.Create(fw).Error; err != nil {
			return httpx.ErrDatabaseError("failed to save firmware", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"firmware_id": fw.ID,
		"node_type":   fw.NodeType,
		"version":     fw.Version,
		"hardware":    fw.Hardware,
		"size":        fw.SizeBytes,
	}).Info("Firmware uploaded")

	fw.BinaryData = nil
	return fw, nil
}

// List returns firmware metadata ordered by node type then version (newest first)
func (s *Service) List(ctx context.Context, nodeType string) ([]model.Firmware, int64, error) {
	query := s.db.WithContext(ctx).Model(&model.Firmware{})
	if nodeType != "" {
		query = query.Where("node_type = ?", nodeType)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, httpx.ErrDatabaseError("failed to count firmware", err)
	}

	var items []model.Firmware
	if err := query.Select(metadataColumns).
		Order("node_type ASC").
		Order("version DESC").
		Find(&items).Error; err != nil {
		return nil, 0, httpx.ErrDatabaseError("failed to list firmware", err)
	}
	return items, total, nil
}

// Metadata returns a firmware record without its payload
func (s *Service) Metadata(ctx context.Context, id int) (*model.Firmware, error) {
	return s.get(ctx, id, false)
}

// MetadataByIDs resolves several firmware records at once. Unknown ids are
// absent from the result.
func (s *Service) MetadataByIDs(ctx context.Context, ids []int) (map[int]*model.Firmware, error) {
	out := make(map[int]*model.Firmware, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var items []model.Firmware
	if err := s.db.WithContext(ctx).Select(metadataColumns).Where("id IN ?", ids).Find(&items).Error; err != nil {
		return nil, httpx.ErrDatabaseError("failed to load firmware", err)
	}
	for i := range items {
		out[items[i].ID] = &items[i]
	}
	return out, nil
}

// Download returns a firmware record including its payload
func (s *Service) Download(ctx context.Context, id int) (*model.Firmware, error) {
	return s.get(ctx, id, true)
}

// Delete removes a firmware record. Update jobs referencing it are removed
// by the foreign key cascade.
func (s *Service) Delete(ctx context.Context, id int) (*model.Firmware, error) {
	fw, err := s.get(ctx, id, false)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Delete(&model.Firmware{}, id).Error; err != nil {
		return nil, httpx.ErrDatabaseError("failed to delete firmware", err)
	}

	s.logger.WithField("firmware_id", id).Info("Firmware deleted")
	return fw, nil
}

// SetStable marks or unmarks a firmware as a stable release
func (s *Service) SetStable(ctx context.Context, id int, stable bool) (*model.Firmware, error) {
	fw, err := s.get(ctx, id, false)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&model.Firmware{}).Where("id = ?", id).Update("is_stable", stable).Error; err != nil {
		return nil, httpx.ErrDatabaseError("failed to update firmware", err)
	}
	fw.IsStable = stable
	return fw, nil
}

func (s *Service) get(ctx context.Context, id int, withPayload bool) (*model.Firmware, error) {
	query := s.db.WithContext(ctx)
	if !withPayload {
		query = query.Select(metadataColumns)
	}

	var fw model.Firmware
	if err := query.First(&fw, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, httpx.ErrNotFound("firmware not found")
		}
		return nil, httpx.ErrDatabaseError("failed to load firmware", err)
	}
	return &fw, nil
}
