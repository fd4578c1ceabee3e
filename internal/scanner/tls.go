package scanner

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"math"
	"net"
	"strings"
	"time"

	"ZhaoYaoJing/internal/model"
	"ZhaoYaoJing/internal/utils"
)

var tlsLogger = utils.NewLogger("tls")

// 测试时可替换的时钟
var timeNow = time.Now

var tlsVersionNames = map[uint16]string{
	tls.VersionTLS13: "TLSv1.3",
	tls.VersionTLS12: "TLSv1.2",
	tls.VersionTLS11: "TLSv1.1",
	tls.VersionTLS10: "TLSv1",
}

// InspectTLS 检查目标的TLS证书与协商参数。
// 扫描自签名/未知CA是常态，因此不做链校验；
// 超时或连接失败返回nil，不向上抛错
func InspectTLS(ctx context.Context, host string, port int, timeout time.Duration) *model.SSLCertificateInfo {
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: timeout},
		Config: &tls.Config{
			ServerName:         host,
			InsecureSkipVerify: true,
			MinVersion:         tls.VersionTLS10,
		},
	}

	conn, err := dialer.DialContext(dialCtx, "tcp", net.JoinHostPort(host, fmt.Sprintf("%d", port)))
	if err != nil {
		tlsLogger.Debug("TLS检查失败 %s:%d: %v", host, port, err)
		return nil
	}
	defer conn.Close()

	state := conn.(*tls.Conn).ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return nil
	}

	return buildCertificateInfo(state.PeerCertificates[0], state, timeNow())
}

func buildCertificateInfo(cert *x509.Certificate, state tls.ConnectionState, now time.Time) *model.SSLCertificateInfo {
	daysUntilExpiry := int(math.Floor(cert.NotAfter.Sub(now).Hours() / 24))

	issuer := cert.Issuer.String()
	subject := cert.Subject.String()

	protocol := tlsVersionNames[state.Version]
	cipher := tls.CipherSuiteName(state.CipherSuite)

	return &model.SSLCertificateInfo{
		Issuer:          issuer,
		Subject:         subject,
		ValidFrom:       cert.NotBefore,
		ValidTo:         cert.NotAfter,
		DaysUntilExpiry: daysUntilExpiry,
		IsExpired:       now.After(cert.NotAfter),
		IsSelfSigned:    issuer == subject,
		Protocol:        protocol,
		Cipher:          cipher,
		Grade:           CalculateSSLGrade(protocol, cipher, daysUntilExpiry),
	}
}

// CalculateSSLGrade 按协议/密码套件/有效期扣分后映射为等级
func CalculateSSLGrade(protocol, cipher string, daysUntilExpiry int) string {
	score := 100

	switch protocol {
	case "TLSv1.3":
		// 不扣分
	case "TLSv1.2":
		score -= 10
	case "TLSv1.1":
		score -= 30
	default:
		score -= 50
	}

	switch {
	case strings.Contains(cipher, "GCM"):
		// 不扣分
	case strings.Contains(cipher, "CBC"):
		score -= 10
	default:
		score -= 20
	}

	switch {
	case daysUntilExpiry < 0:
		score -= 50
	case daysUntilExpiry < 30:
		score -= 20
	case daysUntilExpiry < 90:
		score -= 10
	}

	switch {
	case score >= 90:
		return "A+"
	case score >= 80:
		return "A"
	case score >= 70:
		return "B"
	case score >= 60:
		return "C"
	case score >= 50:
		return "D"
	default:
		return "F"
	}
}
