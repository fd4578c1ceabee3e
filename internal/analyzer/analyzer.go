package analyzer

import (
	"context"
	"fmt"
	"strings"

	"ZhaoYaoJing/internal/config"
	"ZhaoYaoJing/internal/model"
	"ZhaoYaoJing/internal/utils"
)

// Analyzer 漏洞分析器。实现必须保证：
// 失败时退回规则基线而不是返回错误，扫描流程不因分析失败中断
type Analyzer interface {
	Analyze(ctx context.Context, facts ScanFacts) *AnalysisResult
}

// New 根据配置选择分析器，未配置API密钥时使用纯规则分析
func New(cfg *config.Config) Analyzer {
	if cfg.OpenAIAPIKey != "" {
		return NewAIAnalyzer(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
	}
	return NewRuleAnalyzer()
}

// RuleAnalyzer 纯规则分析器，无任何外部依赖
type RuleAnalyzer struct {
	logger *utils.Logger
}

func NewRuleAnalyzer() *RuleAnalyzer {
	return &RuleAnalyzer{logger: utils.NewLogger("analyzer")}
}

// Analyze 运行全部检测规则并汇总风险评估
func (r *RuleAnalyzer) Analyze(ctx context.Context, facts ScanFacts) *AnalysisResult {
	vulns := Detect(facts.Services, facts.OpenPorts)
	vulns = append(vulns, detectSSL(facts.SSLCertificate)...)
	vulns = append(vulns, detectOS(facts.OSFingerprint)...)
	model.SortBySeverity(vulns)

	result := &AnalysisResult{
		Vulnerabilities: vulns,
		RiskScore:       riskScoreFor(vulns),
		Summary:         summarize(vulns),
		Recommendations: collectRecommendations(vulns),
		AttackVectors:   collectAttackVectors(vulns),
	}
	r.logger.Info("规则分析完成: %d 个发现, 风险分 %d", len(vulns), result.RiskScore)
	return result
}

// 各规则对整体风险分的贡献，取最大值而非累加
var riskWeights = []struct {
	prefix string
	score  int
}{
	{"db-exposed-", 95},
	{"os-eol-windows", 95},
	{"vuln-telnet-", 95},
	{"ssl-cert-expired", 90},
	{"debug-exposed-", 85},
	{"os-legacy-windows-server", 80},
	{"ssl-self-signed", 75},
	{"ssl-weak-protocol", 75},
	{"os-old-linux-kernel", 75},
	{"vuln-ftp-", 70},
	{"vuln-ssl-old-", 70},
	{"excessive-ports", 60},
	{"ssl-weak-cipher", 60},
	{"excessive-services", 55},
	{"vuln-http-only", 40},
	{"vuln-ssh-", 20},
}

func riskScoreFor(vulns []model.Vulnerability) int {
	score := 0
	for _, vuln := range vulns {
		matched := false
		for _, weight := range riskWeights {
			if strings.HasPrefix(vuln.ID, weight.prefix) {
				if weight.score > score {
					score = weight.score
				}
				matched = true
				break
			}
		}
		if matched {
			continue
		}
		fallback := severityRisk(vuln.Severity)
		if fallback > score {
			score = fallback
		}
	}
	return score
}

func severityRisk(s model.Severity) int {
	switch s {
	case model.SeverityCritical:
		return 90
	case model.SeverityHigh:
		return 70
	case model.SeverityMedium:
		return 50
	default:
		return 20
	}
}

func summarize(vulns []model.Vulnerability) string {
	if len(vulns) == 0 {
		return "No significant security issues detected. The target appears to follow good security practices."
	}
	counts := model.CountBySeverity(vulns)
	return fmt.Sprintf("Security analysis identified %d issues: %d critical, %d high, %d medium, %d low severity.",
		len(vulns),
		counts[model.SeverityCritical],
		counts[model.SeverityHigh],
		counts[model.SeverityMedium],
		counts[model.SeverityLow])
}

// collectRecommendations 按严重度顺序收集修复建议并去重
func collectRecommendations(vulns []model.Vulnerability) []string {
	seen := make(map[string]bool)
	var recs []string
	for _, vuln := range vulns {
		if vuln.Remediation == "" || seen[vuln.Remediation] {
			continue
		}
		seen[vuln.Remediation] = true
		recs = append(recs, vuln.Remediation)
	}
	return recs
}

var attackVectorRules = []struct {
	prefix string
	vector string
}{
	{"db-exposed-", "Direct database access and data exfiltration"},
	{"vuln-telnet-", "Credential interception on plaintext protocols"},
	{"vuln-ftp-", "Credential interception on plaintext protocols"},
	{"vuln-port-", "Remote exploitation of exposed Windows services"},
	{"debug-exposed-", "Compromise of development and CI infrastructure"},
	{"ssl-", "Man-in-the-middle attacks against TLS sessions"},
	{"os-", "Exploitation of unpatched operating system vulnerabilities"},
	{"vuln-http-only", "Traffic interception on unencrypted HTTP"},
}

func collectAttackVectors(vulns []model.Vulnerability) []string {
	seen := make(map[string]bool)
	var vectors []string
	for _, vuln := range vulns {
		for _, rule := range attackVectorRules {
			if strings.HasPrefix(vuln.ID, rule.prefix) {
				if !seen[rule.vector] {
					seen[rule.vector] = true
					vectors = append(vectors, rule.vector)
				}
				break
			}
		}
	}
	return vectors
}
