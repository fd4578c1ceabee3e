package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"ZhaoYaoJing/internal/model"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "scan_history.db"))
	if err != nil {
		t.Fatalf("创建存储失败: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRecord(id, domain string, createdAt time.Time) *ScanRecord {
	return &ScanRecord{
		ID:        id,
		Domain:    domain,
		Profile:   model.ProfileQuick,
		CreatedAt: createdAt,
		Result: &model.ScanResult{
			Domain:    domain,
			IPAddress: "93.184.216.34",
			OpenPorts: []model.PortInfo{{Port: 443, Protocol: "tcp", State: "open", Service: "https"}},
			Vulnerabilities: []model.Vulnerability{
				{ID: "vuln-http-only", Title: "HTTP Without HTTPS", Severity: model.SeverityMedium},
			},
			Timestamp: createdAt,
		},
	}
}

func TestSaveAndGet(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	record := sampleRecord("scan-1", "example.com", time.Now().UTC())
	if err := s.Save(ctx, record); err != nil {
		t.Fatalf("保存失败: %v", err)
	}

	loaded, err := s.Get(ctx, "scan-1")
	if err != nil {
		t.Fatalf("读取失败: %v", err)
	}
	if loaded.Domain != "example.com" {
		t.Errorf("期望域名 example.com, 实际得到 %s", loaded.Domain)
	}
	if loaded.Profile != model.ProfileQuick {
		t.Errorf("期望模式 quick, 实际得到 %s", loaded.Profile)
	}
	if len(loaded.Result.OpenPorts) != 1 || loaded.Result.OpenPorts[0].Port != 443 {
		t.Errorf("扫描结果主体不符: %+v", loaded.Result)
	}
	if len(loaded.Result.Vulnerabilities) != 1 || loaded.Result.Vulnerabilities[0].ID != "vuln-http-only" {
		t.Errorf("漏洞列表不符: %+v", loaded.Result.Vulnerabilities)
	}
}

func TestGetNotFound(t *testing.T) {
	s := testStore(t)
	if _, err := s.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("期望 ErrNotFound, 实际得到 %v", err)
	}
}

func TestLatestAndHistory(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"scan-1", "scan-2", "scan-3"} {
		record := sampleRecord(id, "example.com", base.Add(time.Duration(i)*time.Hour))
		if err := s.Save(ctx, record); err != nil {
			t.Fatalf("保存 %s 失败: %v", id, err)
		}
	}
	// 其他域名的记录不应串进来
	if err := s.Save(ctx, sampleRecord("scan-x", "other.com", base)); err != nil {
		t.Fatalf("保存失败: %v", err)
	}

	latest, err := s.Latest(ctx, "example.com")
	if err != nil {
		t.Fatalf("查询最新失败: %v", err)
	}
	if latest.ID != "scan-3" {
		t.Errorf("期望最新为 scan-3, 实际得到 %s", latest.ID)
	}

	history, err := s.History(ctx, "example.com", 2)
	if err != nil {
		t.Fatalf("查询历史失败: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("期望2条历史, 实际得到 %d", len(history))
	}
	if history[0].ID != "scan-3" || history[1].ID != "scan-2" {
		t.Errorf("历史应按时间倒序: %s, %s", history[0].ID, history[1].ID)
	}
}

func TestLatestNotFound(t *testing.T) {
	s := testStore(t)
	if _, err := s.Latest(context.Background(), "never-scanned.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("期望 ErrNotFound, 实际得到 %v", err)
	}
}

func TestSaveDuplicateID(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	record := sampleRecord("scan-1", "example.com", time.Now().UTC())
	if err := s.Save(ctx, record); err != nil {
		t.Fatalf("保存失败: %v", err)
	}
	if err := s.Save(ctx, record); err == nil {
		t.Error("重复ID应报错")
	}
}
