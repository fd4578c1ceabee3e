package scanner

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"ZhaoYaoJing/internal/model"
	"ZhaoYaoJing/internal/utils"
)

// ProbeResult 端口探测阶段的产出
type ProbeResult struct {
	OpenPorts     []model.PortInfo
	Services      []model.ServiceInfo
	OSFingerprint string // 尽力而为，仅nmap探测器会填充
}

// Prober 端口探测器。connect 实现适用于受限环境(纯socket)，
// nmap 实现依赖本机扫描工具，由配置在启动时选择
type Prober interface {
	Probe(ctx context.Context, host string, ports []int) (*ProbeResult, error)
}

// ValidatePorts 校验端口列表，非法列表属于调用方错误，立即失败
func ValidatePorts(ports []int) error {
	if len(ports) == 0 {
		return fmt.Errorf("端口列表不能为空")
	}
	seen := make(map[int]bool, len(ports))
	for _, port := range ports {
		if port < 1 || port > 65535 {
			return fmt.Errorf("端口号必须在 1-65535 之间: %d", port)
		}
		if seen[port] {
			return fmt.Errorf("端口列表存在重复: %d", port)
		}
		seen[port] = true
	}
	return nil
}

// ConnectProber 基于TCP connect的探测器
type ConnectProber struct {
	timeout     time.Duration // 单端口连接超时
	httpTimeout time.Duration // HTTP指纹探测超时
	threads     int
	logger      *utils.Logger
}

// NewConnectProber 创建connect探测器，超时与并发数非法时直接报错
func NewConnectProber(timeout, httpTimeout time.Duration, threads int) (*ConnectProber, error) {
	if timeout <= 0 || httpTimeout <= 0 {
		return nil, fmt.Errorf("超时时间必须为正值: connect=%v http=%v", timeout, httpTimeout)
	}
	if threads <= 0 {
		return nil, fmt.Errorf("线程数必须为正值: %d", threads)
	}
	return &ConnectProber{
		timeout:     timeout,
		httpTimeout: httpTimeout,
		threads:     threads,
		logger:      utils.NewLogger("prober"),
	}, nil
}

type portProbe struct {
	port    int
	service string
	version string
}

// Probe 并发探测所有端口。连接成功视为开放，
// 任何错误或超时视为关闭，不再进一步区分 filtered
func (p *ConnectProber) Probe(ctx context.Context, host string, ports []int) (*ProbeResult, error) {
	if err := ValidatePorts(ports); err != nil {
		return nil, err
	}

	portChan := make(chan int, len(ports))
	resultChan := make(chan portProbe, len(ports))

	workers := p.threads
	if workers > len(ports) {
		workers = len(ports)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for port := range portChan {
				select {
				case <-ctx.Done():
					return
				default:
				}
				if p.checkPort(ctx, host, port) {
					probe := portProbe{port: port, service: model.ServiceNameForPort(port)}
					// 对已知HTTP端口做轻量指纹识别，失败忽略，不影响开放判定
					if model.HTTPPorts[port] {
						probe.version = p.fingerprintHTTP(ctx, host, port)
					}
					resultChan <- probe
				}
			}
		}()
	}

	for _, port := range ports {
		portChan <- port
	}
	close(portChan)
	wg.Wait()
	close(resultChan)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var probes []portProbe
	for probe := range resultChan {
		probes = append(probes, probe)
	}
	sort.Slice(probes, func(i, j int) bool { return probes[i].port < probes[j].port })

	result := &ProbeResult{}
	seenServices := make(map[string]bool)
	for _, probe := range probes {
		result.OpenPorts = append(result.OpenPorts, model.PortInfo{
			Port:     probe.port,
			Protocol: "tcp",
			State:    "open",
			Service:  probe.service,
			Version:  probe.version,
		})
		if probe.service != "" && !seenServices[probe.service] {
			seenServices[probe.service] = true
			result.Services = append(result.Services, model.ServiceInfo{
				Name:            probe.service,
				Version:         probe.version,
				Port:            probe.port,
				Vulnerabilities: []string{},
			})
		}
	}

	p.logger.Debug("探测完成: %s, %d 个端口开放", host, len(result.OpenPorts))
	return result, nil
}

func (p *ConnectProber) checkPort(ctx context.Context, host string, port int) bool {
	dialer := &net.Dialer{Timeout: p.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, fmt.Sprintf("%d", port)))
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// fingerprintHTTP 发送HEAD请求读取 Server / X-Powered-By 头，
// 任何失败都静默忽略
func (p *ConnectProber) fingerprintHTTP(ctx context.Context, host string, port int) string {
	scheme := "http"
	if model.IsTLSPort(port) {
		scheme = "https"
	}

	client := &http.Client{
		Timeout: p.httpTimeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	defer client.CloseIdleConnections()

	reqCtx, cancel := context.WithTimeout(ctx, p.httpTimeout)
	defer cancel()

	url := fmt.Sprintf("%s://%s:%d", scheme, host, port)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodHead, url, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", "ZhaoYaoJing-Scanner/1.0")

	resp, err := client.Do(req)
	if err != nil {
		p.logger.Debug("HTTP指纹探测失败 %s: %v", url, err)
		return ""
	}
	defer resp.Body.Close()

	if server := resp.Header.Get("Server"); server != "" {
		return server
	}
	return resp.Header.Get("X-Powered-By")
}
