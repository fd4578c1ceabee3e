package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ZhaoYaoJing/internal/config"
	"ZhaoYaoJing/internal/model"
	"ZhaoYaoJing/internal/scanner"
	"ZhaoYaoJing/internal/store"
)

func testServer(t *testing.T) (*Server, store.ScanStore) {
	t.Helper()
	cfg := &config.Config{
		Prober:              "connect",
		ConnectTimeout:      500 * time.Millisecond,
		TLSTimeout:          time.Second,
		HTTPProbeTimeout:    500 * time.Millisecond,
		CTLogTimeout:        time.Second,
		ZoneTransferTimeout: time.Second,
		ScanDeadline:        30 * time.Second,
		Threads:             20,
		MaxSubdomains:       10,
		RateLimit:           100,
		RateWindow:          time.Hour,
		JobTTL:              time.Hour,
		ServerAddr:          ":0",
	}

	orchestrator, err := scanner.NewOrchestrator(cfg)
	if err != nil {
		t.Fatalf("创建编排器失败: %v", err)
	}
	scanStore, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "scan_history.db"))
	if err != nil {
		t.Fatalf("创建存储失败: %v", err)
	}

	srv := New(cfg, orchestrator, scanStore)
	t.Cleanup(func() {
		srv.Close()
		scanStore.Close()
	})
	return srv, scanStore
}

func doJSON(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	return recorder
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := testServer(t)
	resp := doJSON(t, srv.Handler(), http.MethodGet, "/health", "")
	if resp.Code != http.StatusOK {
		t.Errorf("期望200, 实际得到 %d", resp.Code)
	}
}

func TestStartRejectsInvalidInput(t *testing.T) {
	srv, _ := testServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"缺少domain", `{}`},
		{"非法domain", `{"domain": "not a domain!!"}`},
		{"非法profile", `{"domain": "example.com", "profile": "bogus"}`},
		{"非法JSON", `{{{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(t, srv.Handler(), http.MethodPost, "/scan/start", tt.body)
			if resp.Code != http.StatusBadRequest {
				t.Errorf("期望400, 实际得到 %d: %s", resp.Code, resp.Body.String())
			}
		})
	}
}

func TestStartAndStatus(t *testing.T) {
	srv, _ := testServer(t)

	resp := doJSON(t, srv.Handler(), http.MethodPost, "/scan/start", `{"domain": "127.0.0.1", "profile": "quick"}`)
	if resp.Code != http.StatusAccepted {
		t.Fatalf("期望202, 实际得到 %d: %s", resp.Code, resp.Body.String())
	}

	var started struct {
		ScanID string `json:"scan_id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &started); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	if started.ScanID == "" {
		t.Fatal("响应应包含scan_id")
	}

	statusResp := doJSON(t, srv.Handler(), http.MethodGet, "/scan/status/"+started.ScanID, "")
	if statusResp.Code != http.StatusOK {
		t.Fatalf("期望200, 实际得到 %d", statusResp.Code)
	}
	var job ScanJob
	if err := json.Unmarshal(statusResp.Body.Bytes(), &job); err != nil {
		t.Fatalf("解析任务状态失败: %v", err)
	}
	if job.Domain != "127.0.0.1" {
		t.Errorf("期望域名 127.0.0.1, 实际得到 %s", job.Domain)
	}
}

func TestStatusUnknownScan(t *testing.T) {
	srv, _ := testServer(t)
	resp := doJSON(t, srv.Handler(), http.MethodGet, "/scan/status/unknown-id", "")
	if resp.Code != http.StatusNotFound {
		t.Errorf("期望404, 实际得到 %d", resp.Code)
	}
}

func TestResultUnknownScan(t *testing.T) {
	srv, _ := testServer(t)
	resp := doJSON(t, srv.Handler(), http.MethodGet, "/scan/result/unknown-id", "")
	if resp.Code != http.StatusNotFound {
		t.Errorf("期望404, 实际得到 %d", resp.Code)
	}
}

func TestStopUnknownScan(t *testing.T) {
	srv, _ := testServer(t)
	resp := doJSON(t, srv.Handler(), http.MethodPost, "/scan/stop/unknown-id", "")
	if resp.Code != http.StatusConflict {
		t.Errorf("期望409, 实际得到 %d", resp.Code)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	srv, _ := testServer(t)
	srv.limiter.Close()
	srv.limiter = NewRateLimiter(1, time.Hour)

	first := doJSON(t, srv.Handler(), http.MethodPost, "/scan/start", `{"domain": "127.0.0.1"}`)
	if first.Code != http.StatusAccepted {
		t.Fatalf("首次请求应放行, 实际得到 %d", first.Code)
	}
	second := doJSON(t, srv.Handler(), http.MethodPost, "/scan/start", `{"domain": "127.0.0.1"}`)
	if second.Code != http.StatusTooManyRequests {
		t.Errorf("期望429, 实际得到 %d", second.Code)
	}
}

func TestCompareEndpoint(t *testing.T) {
	srv, scanStore := testServer(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	previous := &store.ScanRecord{
		ID: "scan-prev", Domain: "example.com", Profile: model.ProfileQuick,
		CreatedAt: base,
		Result: &model.ScanResult{
			Domain: "example.com",
			Vulnerabilities: []model.Vulnerability{
				{ID: "vuln-ftp-21", Title: "FTP Service Detected", Severity: model.SeverityHigh, Service: "ftp", Port: 21},
			},
		},
	}
	current := &store.ScanRecord{
		ID: "scan-curr", Domain: "example.com", Profile: model.ProfileQuick,
		CreatedAt: base.Add(time.Hour),
		Result:    &model.ScanResult{Domain: "example.com"},
	}
	if err := scanStore.Save(ctx, previous); err != nil {
		t.Fatalf("保存失败: %v", err)
	}
	if err := scanStore.Save(ctx, current); err != nil {
		t.Fatalf("保存失败: %v", err)
	}

	resp := doJSON(t, srv.Handler(), http.MethodGet, "/scan/compare/scan-curr", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("期望200, 实际得到 %d: %s", resp.Code, resp.Body.String())
	}

	var payload struct {
		CurrentScan  string               `json:"current_scan"`
		PreviousScan string               `json:"previous_scan"`
		Comparison   model.ScanComparison `json:"comparison"`
		SummaryText  string               `json:"summary_text"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	if payload.PreviousScan != "scan-prev" {
		t.Errorf("期望对比基线 scan-prev, 实际得到 %s", payload.PreviousScan)
	}
	if len(payload.Comparison.ResolvedVulnerabilities) != 1 {
		t.Errorf("期望1个已修复, 实际得到 %d", len(payload.Comparison.ResolvedVulnerabilities))
	}
	if payload.Comparison.Summary.OverallStatus != model.StatusImproved {
		t.Errorf("期望 improved, 实际得到 %s", payload.Comparison.Summary.OverallStatus)
	}
	if payload.SummaryText == "" {
		t.Error("摘要不应为空")
	}
}

func TestCompareNoPrevious(t *testing.T) {
	srv, scanStore := testServer(t)

	record := &store.ScanRecord{
		ID: "scan-only", Domain: "example.com", Profile: model.ProfileQuick,
		CreatedAt: time.Now().UTC(),
		Result:    &model.ScanResult{Domain: "example.com"},
	}
	if err := scanStore.Save(context.Background(), record); err != nil {
		t.Fatalf("保存失败: %v", err)
	}

	resp := doJSON(t, srv.Handler(), http.MethodGet, "/scan/compare/scan-only", "")
	if resp.Code != http.StatusNotFound {
		t.Errorf("无历史可比时期望404, 实际得到 %d", resp.Code)
	}
}

func TestJobRegistryLifecycle(t *testing.T) {
	registry := NewJobRegistry(time.Hour)
	defer registry.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	job := &ScanJob{ID: "job-1", Domain: "example.com", Status: JobQueued, StartedAt: time.Now()}
	registry.Add(job, cancel)

	registry.SetStatus("job-1", JobRunning, "")
	got, ok := registry.Get("job-1")
	if !ok || got.Status != JobRunning {
		t.Fatalf("期望 running, 实际得到 %v (%v)", got.Status, ok)
	}

	if !registry.Cancel("job-1") {
		t.Fatal("运行中的任务应可取消")
	}
	if ctx.Err() == nil {
		t.Error("取消任务应触发context取消")
	}

	// 终态不被覆盖
	registry.SetStatus("job-1", JobFailed, "late write")
	got, _ = registry.Get("job-1")
	if got.Status != JobCancelled {
		t.Errorf("终态不应被覆盖, 实际得到 %s", got.Status)
	}

	if registry.Cancel("job-1") {
		t.Error("已结束的任务不应再次取消")
	}
	if _, ok := registry.Get("missing"); ok {
		t.Error("不存在的任务不应返回")
	}
}

// 已结束的任务过保留期后被清除, 运行中的任务保留
func TestJobRegistryEviction(t *testing.T) {
	registry := NewJobRegistry(time.Minute)
	defer registry.Close()

	registry.Add(&ScanJob{ID: "done", Domain: "example.com", Status: JobRunning}, nil)
	registry.SetStatus("done", JobCompleted, "")
	registry.Add(&ScanJob{ID: "active", Domain: "example.com", Status: JobRunning}, nil)

	registry.evict(time.Now())
	if _, ok := registry.Get("done"); !ok {
		t.Error("保留期内的任务不应被清除")
	}

	registry.evict(time.Now().Add(2 * time.Minute))
	if _, ok := registry.Get("done"); ok {
		t.Error("过保留期的已结束任务应被清除")
	}
	if _, ok := registry.Get("active"); !ok {
		t.Error("运行中的任务不应被清除")
	}
}
