package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"ZhaoYaoJing/internal/model"
)

type OutputFormatter struct {
	format string
}

func NewOutputFormatter(format string) *OutputFormatter {
	return &OutputFormatter{format: format}
}

func (of *OutputFormatter) PrintResult(result *model.ScanResult, outputFile string) error {
	var output string

	switch strings.ToLower(of.format) {
	case "json":
		output = of.formatJSON(result)
	case "csv":
		output = of.formatCSV(result)
	default:
		output = of.formatText(result)
	}

	if outputFile != "" {
		return os.WriteFile(outputFile, []byte(output), 0644)
	}

	fmt.Print(output)
	return nil
}

func severityIcon(s model.Severity) string {
	switch s {
	case model.SeverityCritical:
		return "🔥"
	case model.SeverityHigh:
		return "🔴"
	case model.SeverityMedium:
		return "🟠"
	default:
		return "🟢"
	}
}

func severityText(s model.Severity) string {
	switch s {
	case model.SeverityCritical:
		return "严重"
	case model.SeverityHigh:
		return "高危"
	case model.SeverityMedium:
		return "中危"
	default:
		return "低危"
	}
}

// formatText 增强版nmap风格输出
func (of *OutputFormatter) formatText(result *model.ScanResult) string {
	var builder strings.Builder

	// 标题行
	builder.WriteString("\n🪞 照妖镜漏洞监控扫描器 v1.0\n")
	builder.WriteString(strings.Repeat("═", 60) + "\n")

	// 扫描信息
	builder.WriteString(fmt.Sprintf("目标: %s\n", result.Domain))
	builder.WriteString(fmt.Sprintf("IP地址: %s\n", result.IPAddress))
	if result.OSFingerprint != "" {
		builder.WriteString(fmt.Sprintf("操作系统: %s\n", result.OSFingerprint))
	}
	builder.WriteString(fmt.Sprintf("耗时: %dms\n\n", result.ScanDuration))

	// 端口表格
	if len(result.OpenPorts) == 0 {
		builder.WriteString("❌ 未发现开放端口\n")
	} else {
		builder.WriteString(fmt.Sprintf("🔍 发现 %d 个开放端口:\n", len(result.OpenPorts)))
		builder.WriteString(strings.Repeat("─", 60) + "\n")

		w := tabwriter.NewWriter(&builder, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "端口\t状态\t服务\t版本")
		for _, port := range result.OpenPorts {
			version := port.Version
			if version == "" {
				version = "-"
			}
			fmt.Fprintf(w, "%d/%s\t🟢 开放\t%s\t%s\n", port.Port, port.Protocol, port.Service, version)
		}
		w.Flush()
	}

	// SSL证书
	if cert := result.SSLCertificate; cert != nil {
		builder.WriteString("\n🔒 SSL证书:\n")
		builder.WriteString(strings.Repeat("─", 60) + "\n")
		builder.WriteString(fmt.Sprintf("  颁发者: %s\n", cert.Issuer))
		builder.WriteString(fmt.Sprintf("  协议: %s (%s)\n", cert.Protocol, cert.Cipher))
		if cert.IsExpired {
			builder.WriteString("  有效期: ❌ 已过期\n")
		} else {
			builder.WriteString(fmt.Sprintf("  有效期: 剩余 %d 天\n", cert.DaysUntilExpiry))
		}
		builder.WriteString(fmt.Sprintf("  评级: %s\n", cert.Grade))
	}

	// 子域名
	if subs := result.Subdomains; subs != nil && subs.TotalFound > 0 {
		builder.WriteString(fmt.Sprintf("\n🌐 发现 %d 个子域名:\n", subs.TotalFound))
		builder.WriteString(strings.Repeat("─", 60) + "\n")
		for _, sub := range subs.Subdomains {
			ips := strings.Join(sub.IPAddresses, ", ")
			if ips == "" {
				ips = "未解析 ⚠️"
			}
			builder.WriteString(fmt.Sprintf("  %s → %s (%s)\n", sub.FullDomain, ips, sub.Source))
		}
	}

	// 漏洞详情
	if len(result.Vulnerabilities) == 0 {
		builder.WriteString("\n✅ 好消息！未发现安全问题\n")
	} else {
		builder.WriteString(fmt.Sprintf("\n⚠️  发现 %d 个安全问题:\n", len(result.Vulnerabilities)))
		builder.WriteString(strings.Repeat("═", 60) + "\n")

		for _, vuln := range result.Vulnerabilities {
			builder.WriteString(fmt.Sprintf("\n%s %s (%s", severityIcon(vuln.Severity), vuln.Title, severityText(vuln.Severity)))
			if vuln.CVSSScore > 0 {
				builder.WriteString(fmt.Sprintf(", CVSS: %.1f", vuln.CVSSScore))
			}
			builder.WriteString(")\n")

			if vuln.Port > 0 {
				builder.WriteString(fmt.Sprintf("   📍 端口 %d", vuln.Port))
				if vuln.Service != "" {
					builder.WriteString(fmt.Sprintf(" (%s)", vuln.Service))
				}
				builder.WriteString("\n")
			}

			desc := vuln.Description
			if len(desc) > 120 {
				desc = desc[:120] + "..."
			}
			builder.WriteString(fmt.Sprintf("   📝 %s\n", desc))

			if vuln.Remediation != "" {
				builder.WriteString(fmt.Sprintf("   🔧 %s\n", vuln.Remediation))
			}
			if len(vuln.CVEIDs) > 0 {
				builder.WriteString(fmt.Sprintf("   🔗 %s\n", strings.Join(vuln.CVEIDs, ", ")))
			}
		}
	}

	builder.WriteString("\n" + strings.Repeat("═", 60) + "\n")
	builder.WriteString("✨ 扫描完成！\n")

	return builder.String()
}

// FormatComparison 两次扫描差分的文本输出
func FormatComparison(comparison *model.ScanComparison, summaryText string) string {
	var builder strings.Builder

	builder.WriteString("\n🪞 照妖镜扫描对比\n")
	builder.WriteString(strings.Repeat("═", 60) + "\n")
	builder.WriteString(summaryText + "\n")

	if len(comparison.NewVulnerabilities) > 0 {
		builder.WriteString(fmt.Sprintf("\n🆕 新增 %d 个问题:\n", len(comparison.NewVulnerabilities)))
		for _, vuln := range comparison.NewVulnerabilities {
			builder.WriteString(fmt.Sprintf("  %s %s (%s)\n", severityIcon(vuln.Severity), vuln.Title, severityText(vuln.Severity)))
		}
	}
	if len(comparison.ResolvedVulnerabilities) > 0 {
		builder.WriteString(fmt.Sprintf("\n✅ 已修复 %d 个问题:\n", len(comparison.ResolvedVulnerabilities)))
		for _, vuln := range comparison.ResolvedVulnerabilities {
			builder.WriteString(fmt.Sprintf("  %s\n", vuln.Title))
		}
	}
	if len(comparison.ChangedVulnerabilities) > 0 {
		builder.WriteString(fmt.Sprintf("\n🔄 变化 %d 个问题:\n", len(comparison.ChangedVulnerabilities)))
		for _, changed := range comparison.ChangedVulnerabilities {
			builder.WriteString(fmt.Sprintf("  %s\n", changed.Current.Title))
			for _, change := range changed.Changes {
				builder.WriteString(fmt.Sprintf("    · %s\n", change))
			}
		}
	}

	builder.WriteString(fmt.Sprintf("\n安全评分变化: %+d\n", comparison.SecurityScoreDelta))
	return builder.String()
}

func (of *OutputFormatter) formatJSON(result *model.ScanResult) string {
	jsonBytes, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"error": "%v"}`, err)
	}
	return string(jsonBytes)
}

func (of *OutputFormatter) formatCSV(result *model.ScanResult) string {
	var builder strings.Builder
	writer := csv.NewWriter(&builder)

	// 每条漏洞一行
	writer.Write([]string{"漏洞ID", "标题", "严重程度", "端口", "服务", "CVSS分数", "CVE编号", "修复建议"})
	for _, vuln := range result.Vulnerabilities {
		port := ""
		if vuln.Port > 0 {
			port = strconv.Itoa(vuln.Port)
		}
		cvss := ""
		if vuln.CVSSScore > 0 {
			cvss = fmt.Sprintf("%.1f", vuln.CVSSScore)
		}
		writer.Write([]string{
			vuln.ID,
			vuln.Title,
			string(vuln.Severity),
			port,
			vuln.Service,
			cvss,
			strings.Join(vuln.CVEIDs, ";"),
			vuln.Remediation,
		})
	}

	writer.Flush()
	return builder.String()
}
