package firmware

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"testing"

	"mesh_manager/internal/httpx"
	"mesh_manager/internal/model"
	"mesh_manager/internal/testutil"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(testutil.NewDB(t), testutil.Logger())
}

func TestUpload(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	data := []byte("firmware-image-bytes")

	fw, err := svc.Upload(ctx, &UploadRequest{NodeType: "SENSOR", Version: "1.0.0", Data: data})
	if err != nil {
		t.Fatalf("Upload() failed: %v", err)
	}

	sum := md5.Sum(data)
	if fw.MD5Hash != hex.EncodeToString(sum[:]) {
		t.Errorf("Expected md5 %x, got %s", sum, fw.MD5Hash)
	}
	if fw.SizeBytes != int64(len(data)) {
		t.Errorf("Expected size %d, got %d", len(data), fw.SizeBytes)
	}
	if fw.Hardware != model.DefaultHardware {
		t.Errorf("Expected default hardware, got %s", fw.Hardware)
	}
	if fw.Filename != "SENSOR_1.0.0.bin" {
		t.Errorf("Expected generated filename, got %s", fw.Filename)
	}
	if fw.BinaryData != nil {
		t.Error("Upload result should not carry the payload")
	}

	full, err := svc.Download(ctx, fw.ID)
	if err != nil {
		t.Fatalf("Download() failed: %v", err)
	}
	if string(full.BinaryData) != string(data) {
		t.Error("Downloaded payload differs from upload")
	}
}

func TestUpload_Duplicate(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	req := &UploadRequest{NodeType: "SENSOR", Version: "1.0.0", Data: []byte{1}}

	if _, err := svc.Upload(ctx, req); err != nil {
		t.Fatalf("Upload() failed: %v", err)
	}
	if _, err := svc.Upload(ctx, req); !httpx.IsCode(err, httpx.CodeAlreadyExists) {
		t.Fatalf("Expected AlreadyExists, got %v", err)
	}

	// Same version on other hardware is a distinct image
	other := *req
	other.Hardware = "ESP32-C3"
	if _, err := svc.Upload(ctx, &other); err != nil {
		t.Errorf("Upload() for other hardware failed: %v", err)
	}
}

func TestUpload_Invalid(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Upload(ctx, &UploadRequest{Version: "1.0.0", Data: []byte{1}}); !httpx.IsCode(err, httpx.CodeParamMissing) {
		t.Errorf("Expected ParamMissing, got %v", err)
	}
	if _, err := svc.Upload(ctx, &UploadRequest{NodeType: "SENSOR", Version: "1.0.0"}); !httpx.IsCode(err, httpx.CodeParamInvalid) {
		t.Errorf("Expected ParamInvalid, got %v", err)
	}
}

func TestListAndMetadata(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	a, _ := svc.Upload(ctx, &UploadRequest{NodeType: "SENSOR", Version: "1.0.0", Data: []byte{1}})
	b, _ := svc.Upload(ctx, &UploadRequest{NodeType: "SENSOR", Version: "1.1.0", Data: []byte{1, 2}})
	c, _ := svc.Upload(ctx, &UploadRequest{NodeType: "RELAY", Version: "0.9.0", Data: []byte{3}})

	items, total, err := svc.List(ctx, "SENSOR")
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if total != 2 || len(items) != 2 {
		t.Fatalf("Expected 2 SENSOR images, got %d", total)
	}
	if items[0].ID != b.ID {
		t.Errorf("Expected newest version first, got %s", items[0].Version)
	}
	for _, item := range items {
		if len(item.BinaryData) != 0 {
			t.Error("List should not load payloads")
		}
	}

	byID, err := svc.MetadataByIDs(ctx, []int{a.ID, c.ID, 999})
	if err != nil {
		t.Fatalf("MetadataByIDs() failed: %v", err)
	}
	if len(byID) != 2 || byID[c.ID].NodeType != "RELAY" {
		t.Errorf("Unexpected metadata map: %+v", byID)
	}

	if _, err := svc.Metadata(ctx, 999); !httpx.IsCode(err, httpx.CodeNotFound) {
		t.Errorf("Expected NotFound, got %v", err)
	}
}

func TestSetStableAndDelete(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	fw, _ := svc.Upload(ctx, &UploadRequest{NodeType: "SENSOR", Version: "2.0.0", Data: []byte{1}})

	updated, err := svc.SetStable(ctx, fw.ID, true)
	if err != nil {
		t.Fatalf("SetStable() failed: %v", err)
	}
	if !updated.IsStable {
		t.Error("Expected stable flag set")
	}
	reloaded, _ := svc.Metadata(ctx, fw.ID)
	if !reloaded.IsStable {
		t.Error("Expected stable flag persisted")
	}

	if _, err := svc.Delete(ctx, fw.ID); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if _, err := svc.Metadata(ctx, fw.ID); !httpx.IsCode(err, httpx.CodeNotFound) {
		t.Errorf("Expected NotFound after delete, got %v", err)
	}
	if _, err := svc.Delete(ctx, fw.ID); !httpx.IsCode(err, httpx.CodeNotFound) {
		t.Errorf("Expected NotFound on second delete, got %v", err)
	}
}
