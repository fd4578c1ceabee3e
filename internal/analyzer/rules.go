package analyzer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"ZhaoYaoJing/internal/model"
)

// ScanFacts 送入分析器的结构化扫描事实
type ScanFacts struct {
	Domain         string                    `json:"domain"`
	OpenPorts      []model.PortInfo          `json:"open_ports"`
	Services       []model.ServiceInfo       `json:"services"`
	OSFingerprint  string                    `json:"os_fingerprint,omitempty"`
	SSLCertificate *model.SSLCertificateInfo `json:"ssl_certificate,omitempty"`
}

// AnalysisResult 分析产出：漏洞列表 + 风险评估
type AnalysisResult struct {
	Vulnerabilities []model.Vulnerability `json:"vulnerabilities"`
	RiskScore       int                   `json:"risk_score"`
	Summary         string                `json:"summary"`
	Recommendations []string              `json:"recommendations"`
	AttackVectors   []string              `json:"attack_vectors"`
}

// 暴露在公网即视为严重问题的数据库服务
var databaseServices = map[string]bool{
	"mysql":         true,
	"postgresql":    true,
	"mongodb":       true,
	"redis":         true,
	"memcached":     true,
	"elasticsearch": true,
	"cassandra":     true,
}

// 开发/运维类服务及其暴露风险
var debugServices = []struct {
	name string
	risk string
}{
	{"docker", "Container escape and host compromise"},
	{"kubernetes", "Cluster takeover"},
	{"jenkins", "Code execution and supply chain attacks"},
	{"gitlab", "Source code theft"},
	{"elasticsearch", "Data exposure"},
}

// 高风险端口表
var riskyPorts = []struct {
	port     int
	name     string
	severity model.Severity
}{
	{135, "RPC", model.SeverityHigh},
	{137, "NetBIOS", model.SeverityHigh},
	{139, "NetBIOS", model.SeverityHigh},
	{445, "SMB", model.SeverityCritical},
	{3389, "RDP", model.SeverityHigh},
	{5900, "VNC", model.SeverityHigh},
}

var linuxKernelPattern = regexp.MustCompile(`(\d+)\.(\d+)\.(\d+)`)

// Detect 规则检测，纯函数无IO。
// 同样的输入两次运行产出完全一致的漏洞ID集合，差分比对依赖这一点
func Detect(services []model.ServiceInfo, openPorts []model.PortInfo) []model.Vulnerability {
	var vulns []model.Vulnerability

	hasHTTPS := false
	for _, svc := range services {
		if strings.EqualFold(svc.Name, "https") || strings.EqualFold(svc.Name, "https-alt") {
			hasHTTPS = true
		}
	}

	for _, svc := range services {
		name := strings.ToLower(svc.Name)

		if databaseServices[name] {
			vuln := model.Vulnerability{
				ID:          fmt.Sprintf("db-exposed-%s-%d", name, svc.Port),
				Title:       fmt.Sprintf("%s Database Exposed to Internet", svc.Name),
				Severity:    model.SeverityCritical,
				Description: fmt.Sprintf("%s database service is directly accessible from the internet on port %d. This allows attackers to attempt authentication bypass, data theft, or denial of service attacks.", svc.Name, svc.Port),
				Port:        svc.Port,
				Service:     svc.Name,
				Remediation: fmt.Sprintf("Immediately restrict access to %s using firewall rules. Implement VPN or SSH tunneling for remote access. Enable authentication and encryption.", svc.Name),
				CVSSScore:   9.8,
			}
			if name == "redis" {
				vuln.CVEIDs = []string{"CVE-2022-0543"}
			}
			vulns = append(vulns, vuln)
		}

		if name == "telnet" {
			vulns = append(vulns, model.Vulnerability{
				ID:          fmt.Sprintf("vuln-telnet-%d", svc.Port),
				Title:       "Telnet Service Detected",
				Severity:    model.SeverityCritical,
				Description: "Telnet transmits data in plain text, including passwords. This is a severe security risk.",
				Port:        svc.Port,
				Service:     "telnet",
				Remediation: "Disable Telnet immediately and use SSH for remote access instead.",
				CVSSScore:   9.8,
			})
		}

		if name == "ftp" {
			vulns = append(vulns, model.Vulnerability{
				ID:          fmt.Sprintf("vuln-ftp-%d", svc.Port),
				Title:       "FTP Service Detected",
				Severity:    model.SeverityHigh,
				Description: "FTP transmits credentials in plain text and is vulnerable to various attacks.",
				Port:        svc.Port,
				Service:     "ftp",
				Remediation: "Replace FTP with SFTP or FTPS for secure file transfers.",
				CVSSScore:   7.5,
			})
		}

		if name == "http" && !hasHTTPS {
			vulns = append(vulns, model.Vulnerability{
				ID:          "vuln-http-only",
				Title:       "HTTP Without HTTPS",
				Severity:    model.SeverityMedium,
				Description: "Website is accessible over unencrypted HTTP without HTTPS alternative.",
				Port:        svc.Port,
				Service:     "http",
				Remediation: "Implement HTTPS with a valid SSL/TLS certificate and redirect all HTTP traffic to HTTPS.",
				CVSSScore:   5.3,
			})
		}

		if name == "ssh" && svc.Port != 22 {
			vulns = append(vulns, model.Vulnerability{
				ID:          fmt.Sprintf("vuln-ssh-%d", svc.Port),
				Title:       "SSH Service on Non-Standard Port",
				Severity:    model.SeverityLow,
				Description: fmt.Sprintf("SSH service detected on port %d. While not inherently vulnerable, non-standard ports may indicate security through obscurity.", svc.Port),
				Port:        svc.Port,
				Service:     "ssh",
				Remediation: "Ensure SSH is properly configured with key-based authentication and disable password authentication.",
			})
		}

		if svc.Version != "" && (strings.Contains(svc.Version, "SSLv2") || strings.Contains(svc.Version, "SSLv3")) {
			vulns = append(vulns, model.Vulnerability{
				ID:          fmt.Sprintf("vuln-ssl-old-%d", svc.Port),
				Title:       "Outdated SSL/TLS Version",
				Severity:    model.SeverityHigh,
				Description: fmt.Sprintf("Service is using outdated SSL/TLS version: %s", svc.Version),
				Port:        svc.Port,
				Service:     svc.Name,
				Remediation: "Update to TLS 1.2 or higher and disable older SSL/TLS versions.",
				CVSSScore:   7.0,
			})
		}

		for _, debug := range debugServices {
			if strings.Contains(name, debug.name) {
				vulns = append(vulns, model.Vulnerability{
					ID:          fmt.Sprintf("debug-exposed-%s-%d", name, svc.Port),
					Title:       fmt.Sprintf("%s Development Service Exposed", svc.Name),
					Severity:    model.SeverityHigh,
					Description: fmt.Sprintf("%s is accessible from the internet. Risk: %s", svc.Name, debug.risk),
					Port:        svc.Port,
					Service:     svc.Name,
					Remediation: "Restrict access using IP whitelisting or move behind VPN. Implement strong authentication.",
					CVSSScore:   8.8,
				})
			}
		}
	}

	for _, risky := range riskyPorts {
		for _, port := range openPorts {
			if port.Port == risky.port && port.State == "open" {
				cvss := 7.0
				if risky.severity == model.SeverityCritical {
					cvss = 9.0
				}
				vulns = append(vulns, model.Vulnerability{
					ID:          fmt.Sprintf("vuln-port-%d", risky.port),
					Title:       fmt.Sprintf("%s Port Open", risky.name),
					Severity:    risky.severity,
					Description: fmt.Sprintf("Port %d (%s) is open and accessible from the internet.", risky.port, risky.name),
					Port:        risky.port,
					Remediation: fmt.Sprintf("Close port %d or restrict access using firewall rules to trusted IP addresses only.", risky.port),
					CVSSScore:   cvss,
				})
				break
			}
		}
	}

	if len(openPorts) > 20 {
		vulns = append(vulns, model.Vulnerability{
			ID:          "excessive-ports",
			Title:       "Excessive Number of Open Ports",
			Severity:    model.SeverityMedium,
			Description: fmt.Sprintf("%d ports are open. This large attack surface increases the risk of exploitation.", len(openPorts)),
			Remediation: "Review and close unnecessary ports. Implement strict firewall rules with default deny policy.",
			CVSSScore:   5.5,
		})
	}

	if len(services) > 15 {
		vulns = append(vulns, model.Vulnerability{
			ID:          "excessive-services",
			Title:       "Excessive Number of Network Services",
			Severity:    model.SeverityMedium,
			Description: fmt.Sprintf("%d services are exposed. Each service increases attack surface.", len(services)),
			Remediation: "Audit all services and disable those not required for business operations.",
			CVSSScore:   5.0,
		})
	}

	return vulns
}

// detectSSL TLS证书相关规则，阈值与评级逻辑保持一致
func detectSSL(cert *model.SSLCertificateInfo) []model.Vulnerability {
	if cert == nil {
		return nil
	}
	var vulns []model.Vulnerability

	if cert.IsExpired {
		vulns = append(vulns, model.Vulnerability{
			ID:          "ssl-cert-expired",
			Title:       "SSL Certificate Expired",
			Severity:    model.SeverityCritical,
			Description: fmt.Sprintf("SSL certificate expired on %s. Users will see security warnings.", cert.ValidTo.Format("2006-01-02")),
			Remediation: "Immediately renew the SSL certificate.",
			CVSSScore:   8.0,
		})
	} else if cert.DaysUntilExpiry < 30 {
		severity := model.SeverityMedium
		cvss := 4.0
		if cert.DaysUntilExpiry < 7 {
			severity = model.SeverityHigh
			cvss = 6.0
		}
		vulns = append(vulns, model.Vulnerability{
			ID:          "ssl-cert-expiring",
			Title:       "SSL Certificate Expiring Soon",
			Severity:    severity,
			Description: fmt.Sprintf("SSL certificate expires in %d days.", cert.DaysUntilExpiry),
			Remediation: "Plan certificate renewal before expiry.",
			CVSSScore:   cvss,
		})
	}

	if cert.IsSelfSigned {
		vulns = append(vulns, model.Vulnerability{
			ID:          "ssl-self-signed",
			Title:       "Self-Signed SSL Certificate",
			Severity:    model.SeverityHigh,
			Description: "Certificate is self-signed, which prevents proper identity verification.",
			Remediation: "Obtain a certificate from a trusted Certificate Authority.",
			CVSSScore:   7.5,
		})
	}

	if cert.Protocol == "TLSv1" || cert.Protocol == "TLSv1.1" {
		vulns = append(vulns, model.Vulnerability{
			ID:          "ssl-weak-protocol",
			Title:       "Weak TLS Protocol Version",
			Severity:    model.SeverityHigh,
			Description: fmt.Sprintf("Server supports weak TLS protocol: %s", cert.Protocol),
			Remediation: "Disable TLS 1.0 and 1.1. Only allow TLS 1.2 and above.",
			CVSSScore:   7.0,
			CVEIDs:      []string{"CVE-2014-3566"},
		})
	}

	if strings.Contains(cert.Cipher, "RC4") {
		vulns = append(vulns, model.Vulnerability{
			ID:          "ssl-weak-cipher",
			Title:       "Weak SSL Cipher Suite",
			Severity:    model.SeverityMedium,
			Description: "Server supports weak RC4 cipher.",
			Remediation: "Disable RC4 and other weak ciphers. Use strong cipher suites only.",
			CVSSScore:   5.5,
			CVEIDs:      []string{"CVE-2013-2566"},
		})
	}

	return vulns
}

// detectOS 操作系统指纹规则，识别已停止维护的系统
func detectOS(osFingerprint string) []model.Vulnerability {
	if osFingerprint == "" {
		return nil
	}
	var vulns []model.Vulnerability
	osLower := strings.ToLower(osFingerprint)

	if strings.Contains(osLower, "windows") {
		switch {
		case strings.Contains(osLower, "xp"),
			strings.Contains(osLower, "2003"),
			strings.Contains(osLower, "vista"),
			strings.Contains(osLower, "windows 7"):
			vulns = append(vulns, model.Vulnerability{
				ID:          "os-eol-windows",
				Title:       "End-of-Life Windows Version Detected",
				Severity:    model.SeverityCritical,
				Description: "This Windows version no longer receives security updates, leaving it vulnerable to all newly discovered exploits.",
				Remediation: "Immediately upgrade to Windows 10 or later, or migrate to a supported operating system.",
				CVSSScore:   9.5,
				CVEIDs:      []string{"CVE-2017-0144", "CVE-2019-0708"}, // EternalBlue, BlueKeep
			})
		case strings.Contains(osLower, "server 2008"), strings.Contains(osLower, "server 2012"):
			vulns = append(vulns, model.Vulnerability{
				ID:          "os-legacy-windows-server",
				Title:       "Legacy Windows Server Version",
				Severity:    model.SeverityHigh,
				Description: "Running legacy Windows Server version with limited security support.",
				Remediation: "Plan migration to Windows Server 2019 or later.",
				CVSSScore:   7.5,
			})
		}
	}

	if strings.Contains(osLower, "linux") {
		if match := linuxKernelPattern.FindStringSubmatch(osLower); match != nil {
			if major, err := strconv.Atoi(match[1]); err == nil && major < 4 {
				vulns = append(vulns, model.Vulnerability{
					ID:          "os-old-linux-kernel",
					Title:       "Outdated Linux Kernel",
					Severity:    model.SeverityHigh,
					Description: fmt.Sprintf("Linux kernel version %s is outdated and may have unpatched vulnerabilities.", match[0]),
					Remediation: "Update to a supported kernel version (5.x or later recommended).",
					CVSSScore:   7.0,
				})
			}
		}
	}

	return vulns
}
