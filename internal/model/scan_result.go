package model

import "time"

// ScanProfile 扫描模式
type ScanProfile string

const (
	ProfileQuick ScanProfile = "quick" // 快速扫描：少量端口，不枚举子域名
	ProfileDeep  ScanProfile = "deep"  // 深度扫描：完整端口列表 + 子域名枚举
)

// ScanResult 一次扫描运行的完整快照，返回给调用方后不再修改
type ScanResult struct {
	Domain          string                      `json:"domain"`
	IPAddress       string                      `json:"ip_address"`
	OpenPorts       []PortInfo                  `json:"open_ports"`
	Services        []ServiceInfo               `json:"services"`
	OSFingerprint   string                      `json:"os_fingerprint,omitempty"`
	Vulnerabilities []Vulnerability             `json:"vulnerabilities"`
	SSLCertificate  *SSLCertificateInfo         `json:"ssl_certificate,omitempty"`
	Subdomains      *SubdomainEnumerationResult `json:"subdomains,omitempty"`
	ScanDuration    int64                       `json:"scan_duration"` // 毫秒
	Timestamp       time.Time                   `json:"timestamp"`
}

// PortInfo 端口信息，结果内按端口号唯一
type PortInfo struct {
	Port     int    `json:"port"`
	Protocol string `json:"protocol"`
	State    string `json:"state"`
	Service  string `json:"service,omitempty"`
	Version  string `json:"version,omitempty"`
}

// ServiceInfo 服务信息，同名服务只保留首次出现
type ServiceInfo struct {
	Name            string   `json:"name"`
	Version         string   `json:"version,omitempty"`
	Port            int      `json:"port"`
	Vulnerabilities []string `json:"vulnerabilities"`
}

// ScanOptions 扫描配置
type ScanOptions struct {
	Target       string
	Profile      string
	Prober       string // connect 或 nmap
	Timeout      int    // 单端口连接超时(秒)
	Threads      int    // 并发线程数
	OutputFile   string
	OutputFormat string // text, json, csv
	Verbose      bool
}
