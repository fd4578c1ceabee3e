package scanner

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"ZhaoYaoJing/internal/model"
	"ZhaoYaoJing/internal/utils"
)

// NmapProber 调用本机nmap做服务识别与OS指纹，
// 仅在非受限环境下可用，失败时由编排层回退到connect探测器
type NmapProber struct {
	binary string
	logger *utils.Logger
}

func NewNmapProber() *NmapProber {
	return &NmapProber{
		binary: "nmap",
		logger: utils.NewLogger("nmap"),
	}
}

var grepPortPattern = regexp.MustCompile(`(\d+)/open/tcp//([^/]*)//([^/]*)/`)

func (n *NmapProber) Probe(ctx context.Context, host string, ports []int) (*ProbeResult, error) {
	if err := ValidatePorts(ports); err != nil {
		return nil, err
	}

	if _, err := exec.LookPath(n.binary); err != nil {
		return nil, fmt.Errorf("未找到nmap: %w", err)
	}

	portArgs := make([]string, len(ports))
	for i, port := range ports {
		portArgs[i] = strconv.Itoa(port)
	}

	// -O 需要root权限, 无权限时nmap报错并由编排层降级
	cmd := exec.CommandContext(ctx, n.binary,
		"-sV", "-O",
		"-p", strings.Join(portArgs, ","),
		"-oG", "-",
		host,
	)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("nmap执行失败: %w", err)
	}

	result := n.parseGrepable(string(output))
	n.logger.Debug("nmap探测完成: %s, %d 个端口开放", host, len(result.OpenPorts))
	return result, nil
}

// parseGrepable 解析 -oG 格式输出中的开放端口行
func (n *NmapProber) parseGrepable(output string) *ProbeResult {
	result := &ProbeResult{}
	seenPorts := make(map[int]bool)
	seenServices := make(map[string]bool)

	for _, line := range strings.Split(output, "\n") {
		if !strings.Contains(line, "Ports:") {
			if strings.Contains(line, "OS:") {
				if idx := strings.Index(line, "OS:"); idx >= 0 {
					result.OSFingerprint = strings.TrimSpace(strings.SplitN(line[idx+3:], "\t", 2)[0])
				}
			}
			continue
		}
		for _, match := range grepPortPattern.FindAllStringSubmatch(line, -1) {
			port, err := strconv.Atoi(match[1])
			if err != nil || seenPorts[port] {
				continue
			}
			seenPorts[port] = true

			service := match[2]
			if service == "" {
				service = model.ServiceNameForPort(port)
			}
			version := strings.TrimSpace(match[3])

			result.OpenPorts = append(result.OpenPorts, model.PortInfo{
				Port:     port,
				Protocol: "tcp",
				State:    "open",
				Service:  service,
				Version:  version,
			})
			if service != "" && !seenServices[service] {
				seenServices[service] = true
				result.Services = append(result.Services, model.ServiceInfo{
					Name:            service,
					Version:         version,
					Port:            port,
					Vulnerabilities: []string{},
				})
			}
		}
	}

	sort.Slice(result.OpenPorts, func(i, j int) bool {
		return result.OpenPorts[i].Port < result.OpenPorts[j].Port
	})
	return result
}
