package model

import "time"

// SSLCertificateInfo TLS 证书与协商信息
type SSLCertificateInfo struct {
	Issuer          string    `json:"issuer"`
	Subject         string    `json:"subject"`
	ValidFrom       time.Time `json:"valid_from"`
	ValidTo         time.Time `json:"valid_to"`
	DaysUntilExpiry int       `json:"days_until_expiry"`
	IsExpired       bool      `json:"is_expired"`
	IsSelfSigned    bool      `json:"is_self_signed"`
	Protocol        string    `json:"protocol,omitempty"`
	Cipher          string    `json:"cipher,omitempty"`
	Grade           string    `json:"grade,omitempty"` // A+, A, B, C, D, F
}
