package model

import (
	"fmt"
	"sort"
)

// Severity 漏洞严重程度
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// severityRank 排序用的序号，critical 排最前
var severityRank = map[Severity]int{
	SeverityCritical: 0,
	SeverityHigh:     1,
	SeverityMedium:   2,
	SeverityLow:      3,
}

// Rank 返回严重程度的排序序号，未知值排在最后
func (s Severity) Rank() int {
	if rank, ok := severityRank[s]; ok {
		return rank
	}
	return len(severityRank)
}

// Vulnerability 一条结构化的安全发现
type Vulnerability struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
	Port        int      `json:"port,omitempty"`
	Service     string   `json:"service,omitempty"`
	Remediation string   `json:"remediation"`
	CVSSScore   float64  `json:"cvss_score,omitempty"`
	CVEIDs      []string `json:"cve_ids,omitempty"`
}

// Affected 跨扫描匹配用的受影响对象标识。
// 有服务名时为 service 或 service:port，否则为 general。
func (v Vulnerability) Affected() string {
	if v.Service == "" {
		return "general"
	}
	if v.Port > 0 {
		return fmt.Sprintf("%s:%d", v.Service, v.Port)
	}
	return v.Service
}

// SortBySeverity 按严重程度升序(critical 在前)稳定排序，
// 同级保持插入顺序
func SortBySeverity(vulns []Vulnerability) {
	sort.SliceStable(vulns, func(i, j int) bool {
		return vulns[i].Severity.Rank() < vulns[j].Severity.Rank()
	})
}

// CountBySeverity 统计各严重程度的数量
func CountBySeverity(vulns []Vulnerability) map[Severity]int {
	counts := make(map[Severity]int)
	for _, v := range vulns {
		counts[v.Severity]++
	}
	return counts
}
