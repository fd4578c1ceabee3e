package model

import "testing"

func TestAffected(t *testing.T) {
	tests := []struct {
		name string
		vuln Vulnerability
		want string
	}{
		{"有服务和端口", Vulnerability{Service: "redis", Port: 6379}, "redis:6379"},
		{"只有服务", Vulnerability{Service: "redis"}, "redis"},
		{"无服务", Vulnerability{Port: 443}, "general"},
		{"全空", Vulnerability{}, "general"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.vuln.Affected(); got != tt.want {
				t.Errorf("期望 %s, 实际得到 %s", tt.want, got)
			}
		})
	}
}

func TestSortBySeverity(t *testing.T) {
	vulns := []Vulnerability{
		{ID: "a", Severity: SeverityLow},
		{ID: "b", Severity: SeverityCritical},
		{ID: "c", Severity: SeverityMedium},
		{ID: "d", Severity: SeverityCritical},
		{ID: "e", Severity: SeverityHigh},
	}
	SortBySeverity(vulns)

	wantOrder := []string{"b", "d", "e", "c", "a"}
	for i, want := range wantOrder {
		if vulns[i].ID != want {
			t.Errorf("位置 %d 期望 %s, 实际得到 %s", i, want, vulns[i].ID)
		}
	}
}

func TestSortBySeverityStable(t *testing.T) {
	// 同级漏洞保持插入顺序
	vulns := []Vulnerability{
		{ID: "first", Severity: SeverityHigh},
		{ID: "second", Severity: SeverityHigh},
		{ID: "third", Severity: SeverityHigh},
	}
	SortBySeverity(vulns)

	if vulns[0].ID != "first" || vulns[1].ID != "second" || vulns[2].ID != "third" {
		t.Errorf("稳定排序被破坏: %v", vulns)
	}
}

func TestSeverityRankUnknown(t *testing.T) {
	if Severity("bogus").Rank() <= SeverityLow.Rank() {
		t.Error("未知严重程度应排在 low 之后")
	}
}

func TestCountBySeverity(t *testing.T) {
	vulns := []Vulnerability{
		{Severity: SeverityCritical},
		{Severity: SeverityCritical},
		{Severity: SeverityLow},
	}
	counts := CountBySeverity(vulns)
	if counts[SeverityCritical] != 2 {
		t.Errorf("期望 2 个 critical, 实际得到 %d", counts[SeverityCritical])
	}
	if counts[SeverityLow] != 1 {
		t.Errorf("期望 1 个 low, 实际得到 %d", counts[SeverityLow])
	}
	if counts[SeverityHigh] != 0 {
		t.Errorf("期望 0 个 high, 实际得到 %d", counts[SeverityHigh])
	}
}

func TestServiceNameForPort(t *testing.T) {
	if got := ServiceNameForPort(6379); got != "redis" {
		t.Errorf("期望 redis, 实际得到 %s", got)
	}
	if got := ServiceNameForPort(54321); got != "unknown" {
		t.Errorf("期望 unknown, 实际得到 %s", got)
	}
}
