package subdomain

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ZhaoYaoJing/internal/model"
	"ZhaoYaoJing/internal/utils"
)

// CTLogClient 证书透明日志(crt.sh)查询客户端
type CTLogClient struct {
	baseURL    string
	logger     *utils.Logger
	httpClient *http.Client
}

func NewCTLogClient(timeout time.Duration) *CTLogClient {
	return &CTLogClient{
		baseURL: "https://crt.sh",
		logger:  utils.NewLogger("ctlog"),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     30 * time.Second,
				MaxIdleConnsPerHost: 10,
			},
		},
	}
}

type ctLogEntry struct {
	NameValue string `json:"name_value"`
}

// Query 查询证书透明日志并过滤出目标域的子域名。
// 外部API不可用只记录日志，枚举继续依赖其他来源
func (c *CTLogClient) Query(ctx context.Context, domain string, max int) []model.SubdomainInfo {
	query := url.Values{}
	query.Set("q", "%."+domain)
	query.Set("output", "json")

	reqURL := fmt.Sprintf("%s/?%s", c.baseURL, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", "ZhaoYaoJing-Scanner/1.0")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("证书透明日志查询失败: %v", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("证书透明日志返回错误状态: %s", resp.Status)
		return nil
	}

	var entries []ctLogEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		c.logger.Warn("解析证书透明日志响应失败: %v", err)
		return nil
	}

	return parseCertNames(entries, domain, max)
}

// parseCertNames 解析证书的 name_value 字段。
// 一条证书可能包含多个换行分隔的域名，达到上限即停止
func parseCertNames(entries []ctLogEntry, domain string, max int) []model.SubdomainInfo {
	seen := make(map[string]bool)
	var found []model.SubdomainInfo

	for _, entry := range entries {
		if len(found) >= max {
			break
		}
		for _, name := range strings.Split(entry.NameValue, "\n") {
			if len(found) >= max {
				break
			}
			label, fullDomain, ok := normalizeName(name, domain)
			if !ok || seen[fullDomain] {
				continue
			}
			seen[fullDomain] = true
			found = append(found, model.SubdomainInfo{
				Subdomain:   label,
				FullDomain:  fullDomain,
				IPAddresses: nil,
				Discovered:  time.Now(),
				Source:      model.SourceCertLog,
			})
		}
	}
	return found
}
