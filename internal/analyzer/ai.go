package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"ZhaoYaoJing/internal/model"
	"ZhaoYaoJing/internal/utils"
)

const systemPrompt = `You are a cybersecurity expert analyzing network scan results. ` +
	`Respond only with a JSON object containing these fields: ` +
	`additionalVulnerabilities (array of {title, severity, description, port, service, remediation, cvssScore}), ` +
	`attackVectors (array of strings), ` +
	`riskAssessment ({overallRisk, riskScore, criticalFindings, immediateActions}), ` +
	`recommendations ({immediate, shortTerm, longTerm} arrays of strings). ` +
	`Severity must be one of: critical, high, medium, low.`

// AIAnalyzer 在规则基线之上叠加大模型分析。
// 任何环节失败都退回规则基线，扫描不因外部服务中断
type AIAnalyzer struct {
	client *openai.Client
	model  string
	rules  *RuleAnalyzer
	logger *utils.Logger
}

func NewAIAnalyzer(apiKey, baseURL, modelName string) *AIAnalyzer {
	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientConfig.BaseURL = baseURL
	}
	return &AIAnalyzer{
		client: openai.NewClientWithConfig(clientConfig),
		model:  modelName,
		rules:  NewRuleAnalyzer(),
		logger: utils.NewLogger("ai-analyzer"),
	}
}

// 模型响应的约定格式
type aiResponse struct {
	AdditionalVulnerabilities []aiVulnerability `json:"additionalVulnerabilities"`
	AttackVectors             []string          `json:"attackVectors"`
	RiskAssessment            struct {
		OverallRisk      string   `json:"overallRisk"`
		RiskScore        int      `json:"riskScore"`
		CriticalFindings []string `json:"criticalFindings"`
		ImmediateActions []string `json:"immediateActions"`
	} `json:"riskAssessment"`
	Recommendations struct {
		Immediate []string `json:"immediate"`
		ShortTerm []string `json:"shortTerm"`
		LongTerm  []string `json:"longTerm"`
	} `json:"recommendations"`
}

type aiVulnerability struct {
	Title       string  `json:"title"`
	Severity    string  `json:"severity"`
	Description string  `json:"description"`
	Port        int     `json:"port"`
	Service     string  `json:"service"`
	Remediation string  `json:"remediation"`
	CVSSScore   float64 `json:"cvssScore"`
}

// Analyze 规则基线 + 模型增强。模型只能补充发现，不能否决规则结果
func (a *AIAnalyzer) Analyze(ctx context.Context, facts ScanFacts) *AnalysisResult {
	baseline := a.rules.Analyze(ctx, facts)

	prompt, err := a.buildPrompt(facts, baseline)
	if err != nil {
		a.logger.Warn("构建分析提示失败: %v", err)
		return baseline
	}

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.model,
		Temperature: 0.2,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		a.logger.Warn("模型调用失败, 使用规则基线: %v", err)
		return baseline
	}
	if len(resp.Choices) == 0 {
		a.logger.Warn("模型未返回内容, 使用规则基线")
		return baseline
	}

	var parsed aiResponse
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &parsed); err != nil {
		a.logger.Warn("解析模型响应失败, 使用规则基线: %v", err)
		return baseline
	}

	return a.merge(baseline, &parsed)
}

// buildPrompt 将扫描事实与规则发现序列化为分析提示
func (a *AIAnalyzer) buildPrompt(facts ScanFacts, baseline *AnalysisResult) (string, error) {
	factsJSON, err := json.MarshalIndent(facts, "", "  ")
	if err != nil {
		return "", err
	}
	findingsJSON, err := json.MarshalIndent(baseline.Vulnerabilities, "", "  ")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Analyze this network scan result:\n%s\n\nBaseline findings already identified:\n%s\n\nIdentify additional vulnerabilities, attack vectors, and prioritized recommendations.",
		factsJSON, findingsJSON), nil
}

// merge 合并基线与模型补充。按 (标题, 端口) 去重，先到的条目保留
func (a *AIAnalyzer) merge(baseline *AnalysisResult, parsed *aiResponse) *AnalysisResult {
	type key struct {
		title string
		port  int
	}
	seen := make(map[key]bool)

	merged := make([]model.Vulnerability, 0, len(baseline.Vulnerabilities)+len(parsed.AdditionalVulnerabilities))
	for _, vuln := range baseline.Vulnerabilities {
		seen[key{vuln.Title, vuln.Port}] = true
		merged = append(merged, vuln)
	}

	added := 0
	for _, aiVuln := range parsed.AdditionalVulnerabilities {
		if aiVuln.Title == "" {
			continue
		}
		k := key{aiVuln.Title, aiVuln.Port}
		if seen[k] {
			continue
		}
		seen[k] = true
		merged = append(merged, model.Vulnerability{
			ID:          "ai-vuln-" + uuid.NewString(),
			Title:       aiVuln.Title,
			Severity:    normalizeSeverity(aiVuln.Severity),
			Description: aiVuln.Description,
			Port:        aiVuln.Port,
			Service:     aiVuln.Service,
			Remediation: aiVuln.Remediation,
			CVSSScore:   aiVuln.CVSSScore,
		})
		added++
	}
	model.SortBySeverity(merged)

	riskScore := baseline.RiskScore
	if parsed.RiskAssessment.RiskScore > 0 {
		riskScore = parsed.RiskAssessment.RiskScore
	}

	recommendations := appendUnique(baseline.Recommendations,
		parsed.Recommendations.Immediate,
		parsed.Recommendations.ShortTerm,
		parsed.Recommendations.LongTerm)
	attackVectors := appendUnique(baseline.AttackVectors, parsed.AttackVectors)

	summary := baseline.Summary
	if parsed.RiskAssessment.OverallRisk != "" {
		summary = fmt.Sprintf("%s AI assessment: %s risk.", baseline.Summary, parsed.RiskAssessment.OverallRisk)
	}

	a.logger.Info("模型分析完成: 新增 %d 个发现", added)

	return &AnalysisResult{
		Vulnerabilities: merged,
		RiskScore:       riskScore,
		Summary:         summary,
		Recommendations: recommendations,
		AttackVectors:   attackVectors,
	}
}

func normalizeSeverity(raw string) model.Severity {
	switch model.Severity(strings.ToLower(strings.TrimSpace(raw))) {
	case model.SeverityCritical:
		return model.SeverityCritical
	case model.SeverityHigh:
		return model.SeverityHigh
	case model.SeverityLow:
		return model.SeverityLow
	default:
		return model.SeverityMedium
	}
}

func appendUnique(base []string, extra ...[]string) []string {
	seen := make(map[string]bool, len(base))
	out := make([]string, 0, len(base))
	for _, s := range base {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, group := range extra {
		for _, s := range group {
			if s != "" && !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out
}
