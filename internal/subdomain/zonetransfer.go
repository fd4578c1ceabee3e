package subdomain

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"

	"ZhaoYaoJing/internal/model"
	"ZhaoYaoJing/internal/utils"
)

// ZoneTransferrer 对目标域的权威NS尝试AXFR区域传送。
// 绝大多数服务器会拒绝，失败是预期内的，不算错误
type ZoneTransferrer struct {
	timeout time.Duration // 单个NS的超时
	logger  *utils.Logger
}

func NewZoneTransferrer(timeout time.Duration) *ZoneTransferrer {
	return &ZoneTransferrer{
		timeout: timeout,
		logger:  utils.NewLogger("axfr"),
	}
}

// Attempt 最多向前2个权威NS发起区域传送
func (z *ZoneTransferrer) Attempt(ctx context.Context, domain string, resolver Resolver) []model.SubdomainInfo {
	nameservers, err := resolver.LookupNS(ctx, domain)
	if err != nil {
		z.logger.Debug("查询 %s 的NS记录失败: %v", domain, err)
		return nil
	}

	if len(nameservers) > 2 {
		nameservers = nameservers[:2]
	}

	var found []model.SubdomainInfo
	for _, ns := range nameservers {
		records := z.transferFrom(ctx, domain, ns.Host)
		if len(records) > 0 {
			found = append(found, records...)
			break
		}
	}
	return found
}

func (z *ZoneTransferrer) transferFrom(ctx context.Context, domain, nameserver string) []model.SubdomainInfo {
	transfer := &dns.Transfer{
		DialTimeout:  z.timeout,
		ReadTimeout:  z.timeout,
		WriteTimeout: z.timeout,
	}

	msg := new(dns.Msg)
	msg.SetAxfr(dns.Fqdn(domain))

	host := strings.TrimSuffix(nameserver, ".")
	envelopes, err := transfer.In(msg, net.JoinHostPort(host, "53"))
	if err != nil {
		z.logger.Debug("区域传送失败 %s@%s: %v", domain, nameserver, err)
		return nil
	}

	found := z.consumeEnvelopes(ctx, envelopes, domain, nameserver)
	if len(found) > 0 {
		z.logger.Info("区域传送成功 %s@%s: %d 条记录", domain, nameserver, len(found))
	}
	return found
}

// consumeEnvelopes 读取传送结果直到出错或取消。
// 提前停止后继续排空通道，发送端goroutine才能退出
func (z *ZoneTransferrer) consumeEnvelopes(ctx context.Context, envelopes <-chan *dns.Envelope, domain, nameserver string) []model.SubdomainInfo {
	var found []model.SubdomainInfo
	stopped := false
	for envelope := range envelopes {
		if stopped {
			continue
		}
		if envelope.Error != nil {
			z.logger.Debug("区域传送中断 %s@%s: %v", domain, nameserver, envelope.Error)
			stopped = true
			continue
		}
		found = append(found, collectARecords(envelope.RR, domain)...)
		if ctx.Err() != nil {
			stopped = true
		}
	}
	return found
}

// collectARecords 从传送结果中提取属于目标域的A记录
func collectARecords(records []dns.RR, domain string) []model.SubdomainInfo {
	var found []model.SubdomainInfo
	for _, rr := range records {
		a, ok := rr.(*dns.A)
		if !ok {
			continue
		}
		label, fullDomain, valid := normalizeName(a.Hdr.Name, domain)
		if !valid {
			continue
		}
		found = append(found, model.SubdomainInfo{
			Subdomain:   label,
			FullDomain:  fullDomain,
			IPAddresses: []string{a.A.String()},
			Discovered:  time.Now(),
			Source:      model.SourceZoneTransfer,
		})
	}
	return found
}
