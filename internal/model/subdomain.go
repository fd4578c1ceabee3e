package model

import "time"

// 子域名来源
const (
	SourceBruteForce   = "DNS Brute Force"
	SourceCertLog      = "Certificate Transparency"
	SourceZoneTransfer = "Zone Transfer"
)

// SubdomainInfo 单个子域名发现记录，按 FullDomain 去重，
// 先发现的来源保留归属
type SubdomainInfo struct {
	Subdomain   string    `json:"subdomain"` // 仅标签部分
	FullDomain  string    `json:"full_domain"`
	IPAddresses []string  `json:"ip_addresses"`
	Discovered  time.Time `json:"discovered"`
	Source      string    `json:"source"`
}

// SubdomainEnumerationResult 子域名枚举结果
type SubdomainEnumerationResult struct {
	Domain     string          `json:"domain"`
	Subdomains []SubdomainInfo `json:"subdomains"`
	TotalFound int             `json:"total_found"`
	Duration   int64           `json:"duration"` // 毫秒
}
