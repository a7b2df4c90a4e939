package v1

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"mesh_manager/internal/httpx"
	"mesh_manager/internal/testutil"

	"github.com/gin-gonic/gin"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := testutil.Logger()
	r := gin.New()
	SetupRouter(r, NewServices(testutil.NewDB(t), nil, nil, log), log)
	return r
}

func do(t *testing.T, r *gin.Engine, method, path string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: invalid response %q: %v", method, path, w.Body.String(), err)
	}
	return w.Code, env
}

func uploadFirmware(t *testing.T, r *gin.Engine, nodeType, version string, size int) int {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("node_type", nodeType)
	mw.WriteField("version", version)
	part, _ := mw.CreateFormFile("file", "fw.bin")
	part.Write(bytes.Repeat([]byte{0xAB}, size))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/firmware", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("upload failed: %d %s", w.Code, w.Body.String())
	}

	var env struct {
		Data struct {
			ID int `json:"id"`
		} `json:"data"`
	}
	json.Unmarshal(w.Body.Bytes(), &env)
	return env.Data.ID
}

func TestPing(t *testing.T) {
	r := newTestRouter(t)
	code, env := do(t, r, http.MethodGet, "/api/v1/ping", nil)
	if code != http.StatusOK || env.Code != httpx.CodeSuccess {
		t.Errorf("Expected success, got %d %+v", code, env)
	}
}

func TestHealth(t *testing.T) {
	r := newTestRouter(t)
	code, env := do(t, r, http.MethodGet, "/health", nil)
	if code != http.StatusOK || env.Code != httpx.CodeSuccess {
		t.Errorf("Expected healthy, got %d %+v", code, env)
	}
}

func TestOTARollout_HTTP(t *testing.T) {
	r := newTestRouter(t)
	fwID := uploadFirmware(t, r, "SENSOR", "1.3.0", 2048)

	code, env := do(t, r, http.MethodPost, "/api/v1/ota/updates", map[string]any{"firmware_id": fwID})
	if code != http.StatusOK {
		t.Fatalf("create failed: %d %s", code, env.Message)
	}
	var job struct {
		ID int64 `json:"id"`
	}
	json.Unmarshal(env.Data, &job)

	_, env = do(t, r, http.MethodGet, "/api/v1/ota/updates/pending", nil)
	var pending []struct {
		UpdateID int64 `json:"update_id"`
		NumParts int   `json:"num_parts"`
	}
	json.Unmarshal(env.Data, &pending)
	if len(pending) != 1 || pending[0].UpdateID != job.ID || pending[0].NumParts != 2 {
		t.Fatalf("Unexpected pending list: %+v", pending)
	}

	base := fmt.Sprintf("/api/v1/ota/updates/%d", job.ID)
	if code, env := do(t, r, http.MethodPost, base+"/start", nil); code != http.StatusOK {
		t.Fatalf("start failed: %d %s", code, env.Message)
	}
	code, env = do(t, r, http.MethodPost, base+"/start", nil)
	if code != http.StatusConflict || env.Code != httpx.CodeStateConflict {
		t.Errorf("Expected 409 on second start, got %d %+v", code, env)
	}

	code, env = do(t, r, http.MethodDelete, base, nil)
	if code != http.StatusConflict {
		t.Errorf("Expected 409 cancelling distributing job, got %d", code)
	}

	for _, node := range []string{"A", "B"} {
		report := map[string]any{"current_part": 2, "total_parts": 2, "status": "completed"}
		if code, env := do(t, r, http.MethodPost, base+"/node/"+node+"/progress", report); code != http.StatusOK {
			t.Fatalf("progress %s failed: %d %s", node, code, env.Message)
		}
	}

	if code, env := do(t, r, http.MethodPost, base+"/complete", nil); code != http.StatusOK {
		t.Fatalf("complete failed: %d %s", code, env.Message)
	}

	_, env = do(t, r, http.MethodGet, base, nil)
	var status struct {
		Status  string `json:"status"`
		Version string `json:"version"`
		Nodes   []struct {
			NodeID string `json:"node_id"`
			Status string `json:"status"`
		} `json:"nodes"`
	}
	json.Unmarshal(env.Data, &status)
	if status.Status != "completed" || status.Version != "1.3.0" || len(status.Nodes) != 2 {
		t.Errorf("Unexpected final status: %+v", status)
	}
}

func TestOTA_InvalidInput(t *testing.T) {
	r := newTestRouter(t)

	if code, _ := do(t, r, http.MethodGet, "/api/v1/ota/updates/abc", nil); code != http.StatusBadRequest {
		t.Errorf("Expected 400 for non-numeric id, got %d", code)
	}
	if code, _ := do(t, r, http.MethodGet, "/api/v1/ota/updates/99", nil); code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown job, got %d", code)
	}
	if code, _ := do(t, r, http.MethodPost, "/api/v1/ota/updates", map[string]any{}); code != http.StatusBadRequest {
		t.Errorf("Expected 400 without firmware_id, got %d", code)
	}
	if code, _ := do(t, r, http.MethodGet, "/api/v1/ota/updates?status=bogus", nil); code != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid status filter, got %d", code)
	}
}

func TestOTAProgress_RequiredFields(t *testing.T) {
	r := newTestRouter(t)
	fwID := uploadFirmware(t, r, "SENSOR", "1.0.0", 100)
	_, env := do(t, r, http.MethodPost, "/api/v1/ota/updates", map[string]any{"firmware_id": fwID})
	var job struct {
		ID int64 `json:"id"`
	}
	json.Unmarshal(env.Data, &job)
	path := fmt.Sprintf("/api/v1/ota/updates/%d/node/n1/progress", job.ID)

	if code, _ := do(t, r, http.MethodPost, path, map[string]any{}); code != http.StatusBadRequest {
		t.Errorf("Expected 400 for empty progress body, got %d", code)
	}
	if code, _ := do(t, r, http.MethodPost, path, map[string]any{"current_part": 1}); code != http.StatusBadRequest {
		t.Errorf("Expected 400 without total_parts, got %d", code)
	}

	code, env := do(t, r, http.MethodPost, path, map[string]any{"current_part": 0, "total_parts": 1})
	if code != http.StatusOK {
		t.Fatalf("Expected part 0 to be accepted, got %d %s", code, env.Message)
	}
	var row struct {
		CurrentPart int `json:"current_part"`
	}
	json.Unmarshal(env.Data, &row)
	if row.CurrentPart != 0 {
		t.Errorf("Expected current_part 0, got %d", row.CurrentPart)
	}
}

func TestTelemetryAndState_HTTP(t *testing.T) {
	r := newTestRouter(t)

	push := map[string]any{"name": "porch", "peer_count": 2, "state": map[string]string{"led": "on"}}
	code, env := do(t, r, http.MethodPost, "/api/v1/nodes/n1/telemetry", push)
	if code != http.StatusOK {
		t.Fatalf("push failed: %d %s", code, env.Message)
	}
	push["state"] = map[string]string{"led": "off"}
	do(t, r, http.MethodPost, "/api/v1/nodes/n1/telemetry", push)

	_, env = do(t, r, http.MethodGet, "/api/v1/nodes/n1/state", nil)
	var state []struct {
		Key     string `json:"key"`
		Value   string `json:"value"`
		Version int    `json:"version"`
	}
	json.Unmarshal(env.Data, &state)
	if len(state) != 1 || state[0].Value != "off" || state[0].Version != 2 {
		t.Errorf("Unexpected state: %+v", state)
	}

	_, env = do(t, r, http.MethodGet, "/api/v1/nodes/n1/state/history?key=led", nil)
	var history []json.RawMessage
	json.Unmarshal(env.Data, &history)
	if len(history) != 2 {
		t.Errorf("Expected 2 history rows, got %d", len(history))
	}

	_, env = do(t, r, http.MethodGet, "/api/v1/nodes/n1/history", nil)
	var samples []json.RawMessage
	json.Unmarshal(env.Data, &samples)
	if len(samples) != 2 {
		t.Errorf("Expected 2 samples, got %d", len(samples))
	}

	if code, _ := do(t, r, http.MethodGet, "/api/v1/nodes/n1/history?hours=500", nil); code != http.StatusBadRequest {
		t.Errorf("Expected 400 for out-of-range hours, got %d", code)
	}
	if code, _ := do(t, r, http.MethodGet, "/api/v1/nodes/ghost/state", nil); code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown node, got %d", code)
	}

	code, env = do(t, r, http.MethodGet, "/api/v1/nodes", nil)
	var list struct {
		Items []struct {
			ID        string `json:"id"`
			Name      string `json:"name"`
			PeerCount int    `json:"peer_count"`
			IsOnline  bool   `json:"is_online"`
		} `json:"items"`
		Total int64 `json:"total"`
	}
	json.Unmarshal(env.Data, &list)
	if code != http.StatusOK || list.Total != 1 || list.Items[0].Name != "porch" || list.Items[0].PeerCount != 2 || !list.Items[0].IsOnline {
		t.Errorf("Unexpected node list: %+v", list)
	}
}

func TestFirmwareDownload_HTTP(t *testing.T) {
	r := newTestRouter(t)
	id := uploadFirmware(t, r, "RELAY", "0.1.0", 10)

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/firmware/%d/download", id), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("download failed: %d", w.Code)
	}
	if w.Body.Len() != 10 {
		t.Errorf("Expected 10 bytes, got %d", w.Body.Len())
	}
	if w.Header().Get("X-MD5") == "" {
		t.Error("Expected X-MD5 header")
	}

	if code, _ := do(t, r, http.MethodPut, fmt.Sprintf("/api/v1/firmware/%d/stable", id), map[string]any{"stable": true}); code != http.StatusOK {
		t.Errorf("Expected stable update to succeed, got %d", code)
	}
}
