package compare

import (
	"fmt"

	"ZhaoYaoJing/internal/model"
)

// matchKey 跨扫描匹配漏洞的键。
// 同一问题在两次扫描中ID可能不同(AI发现带随机后缀)，
// 因此用标题加受影响对象匹配
func matchKey(v model.Vulnerability) string {
	return v.Title + ":" + v.Affected()
}

// CompareScans 对比两次扫描结果，产出新增/已修复/变化三类差异。
// 纯函数，两个输入都不被修改
func CompareScans(previous, current *model.ScanResult) *model.ScanComparison {
	prevByKey := make(map[string]model.Vulnerability)
	for _, vuln := range previous.Vulnerabilities {
		prevByKey[matchKey(vuln)] = vuln
	}
	currByKey := make(map[string]model.Vulnerability)
	for _, vuln := range current.Vulnerabilities {
		currByKey[matchKey(vuln)] = vuln
	}

	var newVulns, resolvedVulns []model.Vulnerability
	var changedVulns []model.ChangedVulnerability

	for _, vuln := range current.Vulnerabilities {
		key := matchKey(vuln)
		prev, existed := prevByKey[key]
		if !existed {
			// 去重：同键多条时只记一次
			if currByKey[key].ID == vuln.ID {
				newVulns = append(newVulns, vuln)
			}
			continue
		}
		if changes := describeChanges(prev, vuln); len(changes) > 0 && currByKey[key].ID == vuln.ID {
			changedVulns = append(changedVulns, model.ChangedVulnerability{
				Previous: prev,
				Current:  vuln,
				Changes:  changes,
			})
		}
	}

	for _, vuln := range previous.Vulnerabilities {
		key := matchKey(vuln)
		if _, stillPresent := currByKey[key]; !stillPresent {
			if prevByKey[key].ID == vuln.ID {
				resolvedVulns = append(resolvedVulns, vuln)
			}
		}
	}

	delta := CalculateSecurityScore(current.Vulnerabilities) - CalculateSecurityScore(previous.Vulnerabilities)

	newCounts := model.CountBySeverity(newVulns)
	summary := model.ComparisonSummary{
		TotalNew:      len(newVulns),
		TotalResolved: len(resolvedVulns),
		TotalChanged:  len(changedVulns),
		CriticalNew:   newCounts[model.SeverityCritical],
		HighNew:       newCounts[model.SeverityHigh],
		OverallStatus: statusForDelta(delta),
	}

	return &model.ScanComparison{
		NewVulnerabilities:      newVulns,
		ResolvedVulnerabilities: resolvedVulns,
		ChangedVulnerabilities:  changedVulns,
		SecurityScoreDelta:      delta,
		Summary:                 summary,
	}
}

func statusForDelta(delta int) model.OverallStatus {
	switch {
	case delta > 0:
		return model.StatusImproved
	case delta < 0:
		return model.StatusDegraded
	default:
		return model.StatusUnchanged
	}
}

// describeChanges 输出同一漏洞两个版本间的可读差异
func describeChanges(prev, curr model.Vulnerability) []string {
	var changes []string
	if prev.Severity != curr.Severity {
		changes = append(changes, fmt.Sprintf("Severity changed from %s to %s", prev.Severity, curr.Severity))
	}
	if prev.CVSSScore != curr.CVSSScore {
		changes = append(changes, fmt.Sprintf("CVSS score changed from %s to %s",
			formatCVSS(prev.CVSSScore), formatCVSS(curr.CVSSScore)))
	}
	if prev.Description != curr.Description {
		changes = append(changes, "Description updated")
	}
	return changes
}

// formatCVSS 无分值时显示 N/A
func formatCVSS(score float64) string {
	if score == 0 {
		return "N/A"
	}
	return fmt.Sprintf("%.1f", score)
}

// GenerateComparisonSummary 生成一句话的对比结论
func GenerateComparisonSummary(comparison *model.ScanComparison) string {
	s := comparison.Summary
	if s.TotalNew == 0 && s.TotalResolved == 0 && s.TotalChanged == 0 {
		return "No changes detected since the previous scan."
	}

	var verdict string
	switch s.OverallStatus {
	case model.StatusImproved:
		verdict = "Security posture improved"
	case model.StatusDegraded:
		verdict = "Security posture degraded"
	default:
		verdict = "Security posture unchanged"
	}

	text := fmt.Sprintf("%s: %d new, %d resolved, %d changed vulnerabilities (score delta %+d).",
		verdict, s.TotalNew, s.TotalResolved, s.TotalChanged, comparison.SecurityScoreDelta)
	if s.CriticalNew > 0 {
		text += fmt.Sprintf(" %d new critical issues require immediate attention.", s.CriticalNew)
	}
	return text
}
