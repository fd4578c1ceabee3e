package model

// OverallStatus 两次扫描对比后的整体趋势
type OverallStatus string

const (
	StatusImproved  OverallStatus = "improved"
	StatusDegraded  OverallStatus = "degraded"
	StatusUnchanged OverallStatus = "unchanged"
)

// ChangedVulnerability 两次扫描间发生变化的漏洞对
type ChangedVulnerability struct {
	Previous Vulnerability `json:"previous"`
	Current  Vulnerability `json:"current"`
	Changes  []string      `json:"changes"`
}

// ComparisonSummary 对比结果的汇总统计
type ComparisonSummary struct {
	TotalNew      int           `json:"total_new"`
	TotalResolved int           `json:"total_resolved"`
	TotalChanged  int           `json:"total_changed"`
	CriticalNew   int           `json:"critical_new"`
	HighNew       int           `json:"high_new"`
	OverallStatus OverallStatus `json:"overall_status"`
}

// ScanComparison 两次扫描的差分结果，由纯函数计算得出，不落库
type ScanComparison struct {
	NewVulnerabilities      []Vulnerability        `json:"new_vulnerabilities"`
	ResolvedVulnerabilities []Vulnerability        `json:"resolved_vulnerabilities"`
	ChangedVulnerabilities  []ChangedVulnerability `json:"changed_vulnerabilities"`
	SecurityScoreDelta      int                    `json:"security_score_delta"`
	Summary                 ComparisonSummary      `json:"summary"`
}
