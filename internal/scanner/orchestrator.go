package scanner

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"ZhaoYaoJing/internal/analyzer"
	"ZhaoYaoJing/internal/config"
	"ZhaoYaoJing/internal/model"
	"ZhaoYaoJing/internal/subdomain"
	"ZhaoYaoJing/internal/utils"
)

// Orchestrator 扫描编排器，串联探测/TLS检查/子域名枚举/漏洞分析
type Orchestrator struct {
	cfg        *config.Config
	prober     Prober
	fallback   Prober // nmap不可用时的回退探测器
	web        *WebScanner
	enumerator *subdomain.Enumerator
	analyzer   analyzer.Analyzer
	logger     *utils.Logger
}

// NewOrchestrator 按配置组装编排器
func NewOrchestrator(cfg *config.Config) (*Orchestrator, error) {
	connect, err := NewConnectProber(cfg.ConnectTimeout, cfg.HTTPProbeTimeout, cfg.Threads)
	if err != nil {
		return nil, err
	}

	var primary Prober = connect
	var fallback Prober
	if cfg.Prober == "nmap" {
		primary = NewNmapProber()
		fallback = connect
	}

	enumerator := subdomain.NewEnumerator(
		nil,
		subdomain.NewCTLogClient(cfg.CTLogTimeout),
		subdomain.NewZoneTransferrer(cfg.ZoneTransferTimeout),
	)

	return &Orchestrator{
		cfg:        cfg,
		prober:     primary,
		fallback:   fallback,
		web:        NewWebScanner(cfg.HTTPProbeTimeout),
		enumerator: enumerator,
		analyzer:   analyzer.New(cfg),
		logger:     utils.NewLogger("orchestrator"),
	}, nil
}

// RunScan 对目标执行一次完整扫描。
// 取消时返回 ctx.Err()，部分阶段失败则降级继续并在结果中留痕
func (o *Orchestrator) RunScan(ctx context.Context, target string, profile model.ScanProfile) (*model.ScanResult, error) {
	ports, err := portsForProfile(profile)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, o.cfg.ScanDeadline)
	defer cancel()

	start := time.Now()
	o.logger.Info("开始扫描: %s (模式: %s)", target, profile)

	ip, resolved := o.resolveTarget(ctx, target)

	// 端口探测与子域名枚举互不依赖，并行执行
	var probeResult *ProbeResult
	var probeErr error
	var subdomains *model.SubdomainEnumerationResult

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		probeResult, probeErr = o.probe(ctx, ip, ports)
	}()

	if profile == model.ProfileDeep {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := o.enumerator.Enumerate(ctx, target, subdomain.Options{
				UseExternal:   o.cfg.UseExternal,
				MaxSubdomains: o.cfg.MaxSubdomains,
			})
			if err != nil {
				o.logger.Warn("子域名枚举失败: %v", err)
				return
			}
			subdomains = result
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if probeErr != nil {
		o.logger.Warn("端口探测失败: %v", probeErr)
		probeResult = &ProbeResult{}
	}

	// TLS检查依赖探测结果，只在发现HTTPS能力后进行
	var sslCert *model.SSLCertificateInfo
	if tlsPort, ok := tlsPortFor(probeResult); ok {
		sslCert = InspectTLS(ctx, target, tlsPort, o.cfg.TLSTimeout)
	}

	analysis := o.analyzer.Analyze(ctx, analyzer.ScanFacts{
		Domain:         target,
		OpenPorts:      probeResult.OpenPorts,
		Services:       probeResult.Services,
		OSFingerprint:  probeResult.OSFingerprint,
		SSLCertificate: sslCert,
	})
	vulns := analysis.Vulnerabilities

	// 发现Web服务时追加安全响应头检查
	if url, ok := webTargetFor(target, probeResult); ok {
		vulns = append(vulns, o.web.Scan(ctx, url)...)
	}

	if subdomains != nil {
		vulns = append(vulns, detectTakeoverCandidates(subdomains)...)
	}

	if !resolved && len(probeResult.OpenPorts) == 0 {
		vulns = append(vulns, model.Vulnerability{
			ID:          "scan-incomplete",
			Title:       "Scan Incomplete",
			Severity:    model.SeverityLow,
			Description: fmt.Sprintf("Target %s could not be resolved or reached. Results may be incomplete.", target),
			Remediation: "Verify the target domain is correct and publicly reachable, then rescan.",
		})
	}

	model.SortBySeverity(vulns)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &model.ScanResult{
		Domain:          target,
		IPAddress:       ip,
		OpenPorts:       probeResult.OpenPorts,
		Services:        probeResult.Services,
		OSFingerprint:   probeResult.OSFingerprint,
		Vulnerabilities: vulns,
		SSLCertificate:  sslCert,
		Subdomains:      subdomains,
		ScanDuration:    time.Since(start).Milliseconds(),
		Timestamp:       time.Now(),
	}
	o.logger.Info("扫描完成: %s, %d 个开放端口, %d 个发现, 耗时 %dms",
		target, len(result.OpenPorts), len(vulns), result.ScanDuration)
	return result, nil
}

// probe 用主探测器探测，nmap失败时降级到connect
func (o *Orchestrator) probe(ctx context.Context, host string, ports []int) (*ProbeResult, error) {
	result, err := o.prober.Probe(ctx, host, ports)
	if err != nil && o.fallback != nil && ctx.Err() == nil {
		o.logger.Warn("主探测器失败, 降级到connect探测: %v", err)
		return o.fallback.Probe(ctx, host, ports)
	}
	return result, err
}

// resolveTarget 解析目标为IPv4地址。
// 解析失败时直接用原始输入继续，IP字面量无需解析
func (o *Orchestrator) resolveTarget(ctx context.Context, target string) (ip string, resolved bool) {
	if net.ParseIP(target) != nil {
		return target, true
	}
	addrs, err := net.DefaultResolver.LookupHost(ctx, target)
	if err != nil {
		o.logger.Warn("域名解析失败 %s: %v", target, err)
		return target, false
	}
	for _, addr := range addrs {
		if parsed := net.ParseIP(addr); parsed != nil && parsed.To4() != nil {
			return addr, true
		}
	}
	if len(addrs) > 0 {
		return addrs[0], true
	}
	return target, false
}

func portsForProfile(profile model.ScanProfile) ([]int, error) {
	switch profile {
	case model.ProfileQuick:
		return model.QuickScanPorts, nil
	case model.ProfileDeep:
		return model.DeepScanPorts, nil
	default:
		return nil, fmt.Errorf("未知的扫描模式: %s (支持 quick, deep)", profile)
	}
}

// tlsPortFor 选择TLS检查的端口。
// 优先用开放的HTTPS端口，发现web服务但443未在列表时回退检查443
func tlsPortFor(probe *ProbeResult) (int, bool) {
	for _, port := range probe.OpenPorts {
		if model.IsTLSPort(port.Port) {
			return port.Port, true
		}
	}
	for _, svc := range probe.Services {
		if svc.Name == "http" || svc.Name == "http-alt" || svc.Name == "dev-server" {
			return 443, true
		}
	}
	return 0, false
}

// webTargetFor 发现Web服务时返回要检查的URL，HTTPS优先
func webTargetFor(target string, probe *ProbeResult) (string, bool) {
	hasWeb := false
	for _, svc := range probe.Services {
		switch svc.Name {
		case "https", "https-alt":
			return "https://" + target, true
		case "http", "http-alt", "dev-server":
			hasWeb = true
		}
	}
	if hasWeb {
		return "http://" + target, true
	}
	return "", false
}

// detectTakeoverCandidates 无法解析出IP的子域名可能存在悬挂DNS记录，
// 是子域名接管的候选目标
func detectTakeoverCandidates(subdomains *model.SubdomainEnumerationResult) []model.Vulnerability {
	var vulns []model.Vulnerability
	for _, sub := range subdomains.Subdomains {
		if len(sub.IPAddresses) > 0 {
			continue
		}
		vulns = append(vulns, model.Vulnerability{
			ID:          "vuln-subdomain-takeover-" + sub.FullDomain,
			Title:       "Potential Subdomain Takeover",
			Severity:    model.SeverityHigh,
			Description: fmt.Sprintf("Subdomain %s has DNS records but does not resolve to any IP address. Dangling records can be claimed by attackers.", sub.FullDomain),
			Service:     sub.FullDomain,
			Remediation: "Remove the dangling DNS record or reclaim the resource it points to.",
			CVSSScore:   7.4,
		})
	}
	return vulns
}
