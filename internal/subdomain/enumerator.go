package subdomain

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"ZhaoYaoJing/internal/model"
	"ZhaoYaoJing/internal/utils"
)

// commonLabels DNS爆破使用的固定字典
var commonLabels = []string{
	"www", "mail", "ftp", "localhost", "webmail", "smtp", "pop", "ns1", "ns2",
	"blog", "dev", "staging", "beta", "test", "api", "app", "admin", "portal",
	"cdn", "static", "assets", "img", "images", "media", "files", "docs",
	"vpn", "remote", "server", "git", "repo", "jenkins", "jira", "wiki",
	"forum", "shop", "store", "m", "mobile", "api-v1", "api-v2", "v1", "v2",
}

// Resolver DNS解析能力，由环境注入，net.Resolver即满足
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
	LookupNS(ctx context.Context, name string) ([]*net.NS, error)
}

// Options 枚举参数
type Options struct {
	UseExternal   bool          // 是否查询证书透明日志
	Timeout       time.Duration // 整体枚举超时
	MaxSubdomains int           // 结果数量硬上限
}

// Enumerator 子域名枚举器。三个来源独立运行，
// 结果按固定优先级合并去重：爆破 > 证书透明 > 区域传送
type Enumerator struct {
	resolver Resolver
	ctlog    *CTLogClient
	axfr     *ZoneTransferrer
	logger   *utils.Logger
}

func NewEnumerator(resolver Resolver, ctlog *CTLogClient, axfr *ZoneTransferrer) *Enumerator {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	return &Enumerator{
		resolver: resolver,
		ctlog:    ctlog,
		axfr:     axfr,
		logger:   utils.NewLogger("subdomain"),
	}
}

// Enumerate 枚举目标域名的子域名并解析IP
func (e *Enumerator) Enumerate(ctx context.Context, domain string, opts Options) (*model.SubdomainEnumerationResult, error) {
	if opts.MaxSubdomains <= 0 {
		return nil, fmt.Errorf("maxSubdomains 必须为正值: %d", opts.MaxSubdomains)
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	start := time.Now()

	// 各来源写入独立累加器，全部结束后再合并
	var bruteFound, certFound, axfrFound []model.SubdomainInfo
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		bruteFound = e.bruteForce(ctx, domain, opts.MaxSubdomains)
	}()

	if opts.UseExternal && e.ctlog != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			certFound = e.ctlog.Query(ctx, domain, opts.MaxSubdomains)
		}()
	}

	if e.axfr != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			axfrFound = e.axfr.Attempt(ctx, domain, e.resolver)
		}()
	}

	wg.Wait()

	// 合并去重：按完整域名，先到的来源保留归属
	discovered := make(map[string]model.SubdomainInfo)
	var order []string
	merge := func(entries []model.SubdomainInfo) {
		for _, entry := range entries {
			if len(discovered) >= opts.MaxSubdomains {
				return
			}
			if _, exists := discovered[entry.FullDomain]; !exists {
				discovered[entry.FullDomain] = entry
				order = append(order, entry.FullDomain)
			}
		}
	}
	merge(bruteFound)
	merge(certFound)
	merge(axfrFound)

	subdomains := make([]model.SubdomainInfo, 0, len(order))
	for _, fullDomain := range order {
		subdomains = append(subdomains, discovered[fullDomain])
	}

	// 对缺少IP的条目补充解析
	e.resolveMissingIPs(ctx, subdomains)

	e.logger.Info("枚举完成: %s 共发现 %d 个子域名", domain, len(subdomains))

	return &model.SubdomainEnumerationResult{
		Domain:     domain,
		Subdomains: subdomains,
		TotalFound: len(subdomains),
		Duration:   time.Since(start).Milliseconds(),
	}, nil
}

// bruteForce 并发解析字典中的候选名，失败的候选静默跳过
func (e *Enumerator) bruteForce(ctx context.Context, domain string, max int) []model.SubdomainInfo {
	var mu sync.Mutex
	var found []model.SubdomainInfo
	var wg sync.WaitGroup

	for _, label := range commonLabels {
		// 达到上限后不再发起新的解析
		mu.Lock()
		reached := len(found) >= max
		mu.Unlock()
		if reached {
			break
		}

		wg.Add(1)
		go func(label string) {
			defer wg.Done()
			fullDomain := label + "." + domain
			ips := e.resolveIPv4(ctx, fullDomain)
			if len(ips) == 0 {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if len(found) < max {
				found = append(found, model.SubdomainInfo{
					Subdomain:   label,
					FullDomain:  fullDomain,
					IPAddresses: ips,
					Discovered:  time.Now(),
					Source:      model.SourceBruteForce,
				})
			}
		}(label)
	}

	wg.Wait()
	return found
}

func (e *Enumerator) resolveMissingIPs(ctx context.Context, subdomains []model.SubdomainInfo) {
	var wg sync.WaitGroup
	for i := range subdomains {
		if len(subdomains[i].IPAddresses) > 0 {
			continue
		}
		wg.Add(1)
		go func(entry *model.SubdomainInfo) {
			defer wg.Done()
			entry.IPAddresses = e.resolveIPv4(ctx, entry.FullDomain)
		}(&subdomains[i])
	}
	wg.Wait()
}

// resolveIPv4 解析主机名并只保留IPv4地址
func (e *Enumerator) resolveIPv4(ctx context.Context, host string) []string {
	addrs, err := e.resolver.LookupHost(ctx, host)
	if err != nil {
		return nil
	}
	var ips []string
	for _, addr := range addrs {
		if ip := net.ParseIP(addr); ip != nil && ip.To4() != nil {
			ips = append(ips, addr)
		}
	}
	return ips
}

// normalizeName 清理并校验候选域名是否属于目标域
func normalizeName(name, domain string) (label, fullDomain string, ok bool) {
	cleaned := strings.ToLower(strings.TrimSpace(name))
	cleaned = strings.TrimSuffix(cleaned, ".")
	suffix := "." + strings.ToLower(domain)
	if !strings.HasSuffix(cleaned, suffix) {
		return "", "", false
	}
	label = strings.TrimSuffix(cleaned, suffix)
	if label == "" {
		return "", "", false
	}
	return label, cleaned, true
}
