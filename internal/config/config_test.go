package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("默认配置应通过校验: %v", err)
	}
	if cfg.Prober != "connect" {
		t.Errorf("默认探测器应为 connect, 实际得到 %s", cfg.Prober)
	}
	if cfg.ConnectTimeout != 3*time.Second {
		t.Errorf("默认连接超时应为3s, 实际得到 %v", cfg.ConnectTimeout)
	}
	if cfg.Threads != 100 {
		t.Errorf("默认线程数应为100, 实际得到 %d", cfg.Threads)
	}
	if cfg.MaxSubdomains != 50 {
		t.Errorf("默认子域名上限应为50, 实际得到 %d", cfg.MaxSubdomains)
	}
	if cfg.OpenAIModel != "gpt-4o" {
		t.Errorf("默认模型应为 gpt-4o, 实际得到 %s", cfg.OpenAIModel)
	}
	if !cfg.UseExternal {
		t.Error("默认应启用外部数据源")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("ZYJ_PROBER", "nmap")
	t.Setenv("ZYJ_THREADS", "7")
	t.Setenv("ZYJ_USE_EXTERNAL", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("加载失败: %v", err)
	}
	if cfg.Prober != "nmap" {
		t.Errorf("环境变量应覆盖探测器, 实际得到 %s", cfg.Prober)
	}
	if cfg.Threads != 7 {
		t.Errorf("环境变量应覆盖线程数, 实际得到 %d", cfg.Threads)
	}
	if cfg.UseExternal {
		t.Error("环境变量应关闭外部数据源")
	}
}

func TestValidateErrors(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Prober:              "connect",
			ConnectTimeout:      time.Second,
			TLSTimeout:          time.Second,
			HTTPProbeTimeout:    time.Second,
			CTLogTimeout:        time.Second,
			ZoneTransferTimeout: time.Second,
			ScanDeadline:        time.Minute,
			Threads:             10,
			MaxSubdomains:       10,
			RateLimit:           10,
			RateWindow:          time.Hour,
			JobTTL:              time.Hour,
		}
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("合法配置不应报错: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"非法探测器", func(c *Config) { c.Prober = "udp" }},
		{"超时为0", func(c *Config) { c.ConnectTimeout = 0 }},
		{"线程数为0", func(c *Config) { c.Threads = 0 }},
		{"子域名上限为负", func(c *Config) { c.MaxSubdomains = -1 }},
		{"限流为0", func(c *Config) { c.RateLimit = 0 }},
		{"任务保留期为0", func(c *Config) { c.JobTTL = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("非法配置应报错")
			}
		})
	}
}
