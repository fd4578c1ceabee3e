package compare

import "ZhaoYaoJing/internal/model"

// 各严重程度的扣分权重
var severityPenalty = map[model.Severity]int{
	model.SeverityCritical: 25,
	model.SeverityHigh:     15,
	model.SeverityMedium:   5,
	model.SeverityLow:      2,
}

// CalculateSecurityScore 从满分100按漏洞严重程度扣分，下限为0。
// 无漏洞即满分
func CalculateSecurityScore(vulns []model.Vulnerability) int {
	score := 100
	for _, vuln := range vulns {
		score -= severityPenalty[vuln.Severity]
	}
	if score < 0 {
		return 0
	}
	return score
}
