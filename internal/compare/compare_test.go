package compare

import (
	"testing"

	"ZhaoYaoJing/internal/model"
)

func scanWith(vulns ...model.Vulnerability) *model.ScanResult {
	return &model.ScanResult{Domain: "example.com", Vulnerabilities: vulns}
}

func TestCompareScansIdentical(t *testing.T) {
	vuln := model.Vulnerability{
		ID: "vuln-telnet-23", Title: "Telnet Service Detected",
		Severity: model.SeverityCritical, Service: "telnet", Port: 23,
	}
	comparison := CompareScans(scanWith(vuln), scanWith(vuln))

	if len(comparison.NewVulnerabilities) != 0 {
		t.Errorf("相同扫描不应有新增, 实际得到 %d", len(comparison.NewVulnerabilities))
	}
	if len(comparison.ResolvedVulnerabilities) != 0 {
		t.Errorf("相同扫描不应有已修复, 实际得到 %d", len(comparison.ResolvedVulnerabilities))
	}
	if len(comparison.ChangedVulnerabilities) != 0 {
		t.Errorf("相同扫描不应有变化, 实际得到 %d", len(comparison.ChangedVulnerabilities))
	}
	if comparison.SecurityScoreDelta != 0 {
		t.Errorf("相同扫描分数差应为0, 实际得到 %d", comparison.SecurityScoreDelta)
	}
	if comparison.Summary.OverallStatus != model.StatusUnchanged {
		t.Errorf("期望 unchanged, 实际得到 %s", comparison.Summary.OverallStatus)
	}
}

func TestCompareScansNewAndResolved(t *testing.T) {
	resolved := model.Vulnerability{
		ID: "vuln-ftp-21", Title: "FTP Service Detected",
		Severity: model.SeverityHigh, Service: "ftp", Port: 21,
	}
	added := model.Vulnerability{
		ID: "db-exposed-redis-6379", Title: "Redis Database Exposed to Internet",
		Severity: model.SeverityCritical, Service: "redis", Port: 6379,
	}
	comparison := CompareScans(scanWith(resolved), scanWith(added))

	if len(comparison.NewVulnerabilities) != 1 || comparison.NewVulnerabilities[0].ID != added.ID {
		t.Fatalf("期望1个新增 %s, 实际得到 %v", added.ID, comparison.NewVulnerabilities)
	}
	if len(comparison.ResolvedVulnerabilities) != 1 || comparison.ResolvedVulnerabilities[0].ID != resolved.ID {
		t.Fatalf("期望1个已修复 %s, 实际得到 %v", resolved.ID, comparison.ResolvedVulnerabilities)
	}
	if comparison.Summary.CriticalNew != 1 {
		t.Errorf("期望1个新增critical, 实际得到 %d", comparison.Summary.CriticalNew)
	}
	// critical(-25) 换掉了 high(-15), 分数下降10
	if comparison.SecurityScoreDelta != -10 {
		t.Errorf("期望分数差 -10, 实际得到 %d", comparison.SecurityScoreDelta)
	}
	if comparison.Summary.OverallStatus != model.StatusDegraded {
		t.Errorf("期望 degraded, 实际得到 %s", comparison.Summary.OverallStatus)
	}
}

func TestCompareScansImproved(t *testing.T) {
	vuln := model.Vulnerability{
		ID: "vuln-telnet-23", Title: "Telnet Service Detected",
		Severity: model.SeverityCritical, Service: "telnet", Port: 23,
	}
	comparison := CompareScans(scanWith(vuln), scanWith())

	if comparison.Summary.OverallStatus != model.StatusImproved {
		t.Errorf("期望 improved, 实际得到 %s", comparison.Summary.OverallStatus)
	}
	if comparison.SecurityScoreDelta != 25 {
		t.Errorf("期望分数差 +25, 实际得到 %d", comparison.SecurityScoreDelta)
	}
}

func TestCompareScansChanged(t *testing.T) {
	before := model.Vulnerability{
		ID: "ssl-cert-expiring", Title: "SSL Certificate Expiring Soon",
		Severity: model.SeverityMedium, CVSSScore: 4.0,
		Description: "SSL certificate expires in 20 days.",
	}
	after := before
	after.Severity = model.SeverityHigh
	after.CVSSScore = 6.0
	after.Description = "SSL certificate expires in 5 days."

	comparison := CompareScans(scanWith(before), scanWith(after))

	if len(comparison.ChangedVulnerabilities) != 1 {
		t.Fatalf("期望1个变化, 实际得到 %d", len(comparison.ChangedVulnerabilities))
	}
	changes := comparison.ChangedVulnerabilities[0].Changes
	if len(changes) != 3 {
		t.Fatalf("期望3条变化描述, 实际得到 %v", changes)
	}
	if changes[0] != "Severity changed from medium to high" {
		t.Errorf("严重程度变化描述不符: %s", changes[0])
	}
	if changes[1] != "CVSS score changed from 4.0 to 6.0" {
		t.Errorf("CVSS变化描述不符: %s", changes[1])
	}
	if changes[2] != "Description updated" {
		t.Errorf("描述变化不符: %s", changes[2])
	}
	if len(comparison.NewVulnerabilities) != 0 || len(comparison.ResolvedVulnerabilities) != 0 {
		t.Error("变化的漏洞不应同时计入新增或已修复")
	}
}

// 无分值的一侧显示 N/A 而非 0.0
func TestCompareScansChangedCVSSWithoutScore(t *testing.T) {
	before := model.Vulnerability{
		ID: "ai-vuln-aaa", Title: "Weak Configuration",
		Severity: model.SeverityMedium, Service: "http", Port: 80,
	}
	after := before
	after.CVSSScore = 6.5

	comparison := CompareScans(scanWith(before), scanWith(after))

	if len(comparison.ChangedVulnerabilities) != 1 {
		t.Fatalf("期望1个变化, 实际得到 %d", len(comparison.ChangedVulnerabilities))
	}
	changes := comparison.ChangedVulnerabilities[0].Changes
	if len(changes) != 1 || changes[0] != "CVSS score changed from N/A to 6.5" {
		t.Errorf("CVSS变化描述不符: %v", changes)
	}
}

// 同一匹配键出现多条时按去重后的单条计算, 后写入的覆盖先写入的
func TestCompareScansDuplicateKeyCollapse(t *testing.T) {
	dup1 := model.Vulnerability{
		ID: "ai-vuln-aaa", Title: "Weak Configuration",
		Severity: model.SeverityMedium, Service: "http", Port: 80,
	}
	dup2 := dup1
	dup2.ID = "ai-vuln-bbb"

	comparison := CompareScans(scanWith(), scanWith(dup1, dup2))

	if len(comparison.NewVulnerabilities) != 1 {
		t.Fatalf("重复键应折叠为1个新增, 实际得到 %d", len(comparison.NewVulnerabilities))
	}
	if comparison.NewVulnerabilities[0].ID != "ai-vuln-bbb" {
		t.Errorf("期望保留后写入的 ai-vuln-bbb, 实际得到 %s", comparison.NewVulnerabilities[0].ID)
	}
}

// 交换两次扫描的顺序, 新增与已修复互换, 分数差取反
func TestCompareScansSymmetry(t *testing.T) {
	prev := scanWith(model.Vulnerability{
		ID: "vuln-ftp-21", Title: "FTP Service Detected",
		Severity: model.SeverityHigh, Service: "ftp", Port: 21,
	})
	curr := scanWith(model.Vulnerability{
		ID: "vuln-telnet-23", Title: "Telnet Service Detected",
		Severity: model.SeverityCritical, Service: "telnet", Port: 23,
	})

	forward := CompareScans(prev, curr)
	backward := CompareScans(curr, prev)

	if len(forward.NewVulnerabilities) != len(backward.ResolvedVulnerabilities) {
		t.Errorf("正向新增(%d)应等于反向已修复(%d)",
			len(forward.NewVulnerabilities), len(backward.ResolvedVulnerabilities))
	}
	if len(forward.ResolvedVulnerabilities) != len(backward.NewVulnerabilities) {
		t.Errorf("正向已修复(%d)应等于反向新增(%d)",
			len(forward.ResolvedVulnerabilities), len(backward.NewVulnerabilities))
	}
	if forward.SecurityScoreDelta != -backward.SecurityScoreDelta {
		t.Errorf("分数差应互为相反数: %d vs %d",
			forward.SecurityScoreDelta, backward.SecurityScoreDelta)
	}
}

func TestCompareScansDoesNotMutateInputs(t *testing.T) {
	prev := scanWith(model.Vulnerability{ID: "a", Title: "A", Severity: model.SeverityLow})
	curr := scanWith(model.Vulnerability{ID: "b", Title: "B", Severity: model.SeverityHigh})

	CompareScans(prev, curr)

	if len(prev.Vulnerabilities) != 1 || prev.Vulnerabilities[0].ID != "a" {
		t.Error("对比不应修改上一次扫描结果")
	}
	if len(curr.Vulnerabilities) != 1 || curr.Vulnerabilities[0].ID != "b" {
		t.Error("对比不应修改当前扫描结果")
	}
}

func TestGenerateComparisonSummary(t *testing.T) {
	noChange := CompareScans(scanWith(), scanWith())
	if got := GenerateComparisonSummary(noChange); got != "No changes detected since the previous scan." {
		t.Errorf("无变化时摘要不符: %s", got)
	}

	degraded := CompareScans(scanWith(), scanWith(model.Vulnerability{
		ID: "vuln-telnet-23", Title: "Telnet Service Detected",
		Severity: model.SeverityCritical, Service: "telnet", Port: 23,
	}))
	summary := GenerateComparisonSummary(degraded)
	if summary == "" {
		t.Fatal("摘要不应为空")
	}
	if degraded.Summary.CriticalNew != 1 {
		t.Fatalf("期望1个新增critical, 实际得到 %d", degraded.Summary.CriticalNew)
	}
}
