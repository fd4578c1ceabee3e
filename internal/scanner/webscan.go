package scanner

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"strings"
	"time"

	"ZhaoYaoJing/internal/model"
	"ZhaoYaoJing/internal/utils"
)

// securityHeaders 缺失时产生发现的安全响应头清单
var securityHeaders = []struct {
	name  string
	title string
}{
	{"X-Frame-Options", "Clickjacking Protection Missing"},
	{"X-Content-Type-Options", "MIME Type Sniffing Protection Missing"},
	{"X-XSS-Protection", "XSS Protection Header Missing"},
	{"Strict-Transport-Security", "HSTS Not Enabled"},
	{"Content-Security-Policy", "Content Security Policy Missing"},
}

// WebScanner 检查Web服务的安全响应头与版本信息泄露
type WebScanner struct {
	client *http.Client
	logger *utils.Logger
}

func NewWebScanner(timeout time.Duration) *WebScanner {
	return &WebScanner{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
		logger: utils.NewLogger("webscan"),
	}
}

// Scan 对目标URL发起HEAD请求并检查响应头。
// 请求失败返回空，Web检查失败不中断整体扫描
func (w *WebScanner) Scan(ctx context.Context, url string) []model.Vulnerability {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", "ZhaoYaoJing-Scanner/1.0")

	resp, err := w.client.Do(req)
	if err != nil {
		w.logger.Warn("Web检查失败 %s: %v", url, err)
		return nil
	}
	defer resp.Body.Close()

	vulns := inspectHeaders(resp.Header)
	w.logger.Debug("Web检查完成 %s: %d 个发现", url, len(vulns))
	return vulns
}

// inspectHeaders 缺失的安全头各产生一个发现，HSTS缺失按高危计
func inspectHeaders(headers http.Header) []model.Vulnerability {
	var vulns []model.Vulnerability
	for _, header := range securityHeaders {
		if headers.Get(header.name) != "" {
			continue
		}
		severity := model.SeverityMedium
		cvss := 4.3
		if header.name == "Strict-Transport-Security" {
			severity = model.SeverityHigh
			cvss = 6.5
		}
		vulns = append(vulns, model.Vulnerability{
			ID:          "vuln-header-" + strings.ToLower(header.name),
			Title:       header.title,
			Severity:    severity,
			Description: fmt.Sprintf("The %s header is not set, leaving the application vulnerable to certain attacks.", header.name),
			Remediation: fmt.Sprintf("Add the %s header to all HTTP responses.", header.name),
			CVSSScore:   cvss,
		})
	}

	if server := headers.Get("Server"); server != "" &&
		(strings.Contains(server, "version") || strings.Contains(server, "/")) {
		vulns = append(vulns, model.Vulnerability{
			ID:          "vuln-server-disclosure",
			Title:       "Server Version Disclosure",
			Severity:    model.SeverityLow,
			Description: "Server header reveals version information: " + server,
			Remediation: "Configure server to hide version information in HTTP headers.",
			CVSSScore:   3.1,
		})
	}
	return vulns
}
