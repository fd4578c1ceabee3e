package model

// PortService 端口对应的默认服务
type PortService struct {
	Name        string
	Description string
}

// CommonPorts 常见端口与服务映射
var CommonPorts = map[int]PortService{
	21:    {"ftp", "文件传输协议"},
	22:    {"ssh", "安全外壳协议"},
	23:    {"telnet", "远程登录协议"},
	25:    {"smtp", "简单邮件传输协议"},
	53:    {"dns", "域名系统"},
	80:    {"http", "网页服务器"},
	110:   {"pop3", "邮局协议第3版"},
	135:   {"msrpc", "微软远程过程调用"},
	139:   {"netbios-ssn", "NetBIOS会话服务"},
	143:   {"imap", "互联网消息访问协议"},
	443:   {"https", "安全网页服务器"},
	445:   {"smb", "服务器消息块"},
	3000:  {"dev-server", "开发服务器"},
	3306:  {"mysql", "数据库"},
	3389:  {"rdp", "远程桌面协议"},
	5000:  {"dev-server", "开发服务器"},
	5432:  {"postgresql", "数据库"},
	5900:  {"vnc", "虚拟网络计算"},
	6379:  {"redis", "数据库"},
	8000:  {"dev-server", "开发服务器"},
	8080:  {"http-alt", "备用HTTP"},
	8443:  {"https-alt", "备用HTTPS"},
	9200:  {"elasticsearch", "搜索与分析引擎"},
	11211: {"memcached", "缓存服务"},
	27017: {"mongodb", "NoSQL数据库"},
}

// DeepScanPorts 深度扫描的端口列表
var DeepScanPorts = []int{
	21, 22, 23, 25, 53, 80, 110, 135, 139, 143, 443, 445,
	3000, 3306, 3389, 5000, 5432, 5900, 6379, 8000, 8080, 8443,
	9200, 11211, 27017,
}

// QuickScanPorts 快速扫描只检查的核心端口
var QuickScanPorts = []int{80, 443, 22, 8080}

// HTTPPorts 会尝试HTTP指纹识别的端口
var HTTPPorts = map[int]bool{
	80:   true,
	443:  true,
	3000: true,
	5000: true,
	8000: true,
	8080: true,
	8443: true,
}

// ServiceNameForPort 返回端口的默认服务名，未知端口返回 unknown
func ServiceNameForPort(port int) string {
	if svc, ok := CommonPorts[port]; ok {
		return svc.Name
	}
	return "unknown"
}

// IsTLSPort 端口默认是否走TLS
func IsTLSPort(port int) bool {
	return port == 443 || port == 8443
}
