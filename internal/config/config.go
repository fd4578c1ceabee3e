package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 扫描引擎全局配置，来自环境变量(ZYJ_前缀)与默认值
type Config struct {
	Prober string // connect 或 nmap

	ConnectTimeout      time.Duration // 单端口TCP连接超时
	TLSTimeout          time.Duration // TLS握手超时
	HTTPProbeTimeout    time.Duration // HTTP指纹探测超时
	CTLogTimeout        time.Duration // 证书透明日志查询超时
	ZoneTransferTimeout time.Duration // 单个NS的区域传送超时
	ScanDeadline        time.Duration // 整次扫描的总超时

	Threads       int  // 端口扫描并发数
	MaxSubdomains int  // 子域名数量上限
	UseExternal   bool // 是否查询外部数据源(crt.sh)

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	ServerAddr   string
	DatabasePath string

	RateLimit  int           // 每个客户端在窗口内允许的扫描次数
	RateWindow time.Duration // 限流窗口
	JobTTL     time.Duration // 已结束任务在登记表中的保留期
}

// Load 读取配置并做启动期校验，配置非法直接报错
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ZYJ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("prober", "connect")
	v.SetDefault("connect_timeout", "3s")
	v.SetDefault("tls_timeout", "5s")
	v.SetDefault("http_probe_timeout", "3s")
	v.SetDefault("ctlog_timeout", "10s")
	v.SetDefault("zone_transfer_timeout", "5s")
	v.SetDefault("scan_deadline", "5m")
	v.SetDefault("threads", 100)
	v.SetDefault("max_subdomains", 50)
	v.SetDefault("use_external", true)
	v.SetDefault("openai_model", "gpt-4o")
	v.SetDefault("openai_base_url", "")
	v.SetDefault("server_addr", ":8000")
	v.SetDefault("database_path", "database/scan_history.db")
	v.SetDefault("rate_limit", 10)
	v.SetDefault("rate_window", "1h")
	v.SetDefault("job_ttl", "1h")

	cfg := &Config{
		Prober:              v.GetString("prober"),
		ConnectTimeout:      v.GetDuration("connect_timeout"),
		TLSTimeout:          v.GetDuration("tls_timeout"),
		HTTPProbeTimeout:    v.GetDuration("http_probe_timeout"),
		CTLogTimeout:        v.GetDuration("ctlog_timeout"),
		ZoneTransferTimeout: v.GetDuration("zone_transfer_timeout"),
		ScanDeadline:        v.GetDuration("scan_deadline"),
		Threads:             v.GetInt("threads"),
		MaxSubdomains:       v.GetInt("max_subdomains"),
		UseExternal:         v.GetBool("use_external"),
		OpenAIAPIKey:        v.GetString("openai_api_key"),
		OpenAIBaseURL:       v.GetString("openai_base_url"),
		OpenAIModel:         v.GetString("openai_model"),
		ServerAddr:          v.GetString("server_addr"),
		DatabasePath:        v.GetString("database_path"),
		RateLimit:           v.GetInt("rate_limit"),
		RateWindow:          v.GetDuration("rate_window"),
		JobTTL:              v.GetDuration("job_ttl"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验配置，属于程序员/部署错误，立即失败不做恢复
func (c *Config) Validate() error {
	if c.Prober != "connect" && c.Prober != "nmap" {
		return fmt.Errorf("非法的prober类型: %s (支持 connect, nmap)", c.Prober)
	}
	for name, d := range map[string]time.Duration{
		"connect_timeout":       c.ConnectTimeout,
		"tls_timeout":           c.TLSTimeout,
		"http_probe_timeout":    c.HTTPProbeTimeout,
		"ctlog_timeout":         c.CTLogTimeout,
		"zone_transfer_timeout": c.ZoneTransferTimeout,
		"scan_deadline":         c.ScanDeadline,
	} {
		if d <= 0 {
			return fmt.Errorf("超时配置 %s 必须为正值: %v", name, d)
		}
	}
	if c.Threads <= 0 {
		return fmt.Errorf("线程数必须为正值: %d", c.Threads)
	}
	if c.MaxSubdomains <= 0 {
		return fmt.Errorf("子域名上限必须为正值: %d", c.MaxSubdomains)
	}
	if c.RateLimit <= 0 || c.RateWindow <= 0 {
		return fmt.Errorf("限流配置非法: limit=%d window=%v", c.RateLimit, c.RateWindow)
	}
	if c.JobTTL <= 0 {
		return fmt.Errorf("任务保留期必须为正值: %v", c.JobTTL)
	}
	return nil
}
