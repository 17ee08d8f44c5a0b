package iface

// State 接口关联状态
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateFailed
)

// String 状态的人类可读名称
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Interface 单个接口的状态快照
type Interface struct {
	Name      string
	State     State
	SSID      string // 已关联的 SSID，可为空
	IPAddress string // 分配的本机地址（CIDR），可为空
	Gateway   string // 网关地址，可为空
	LastError error  // 最近一次失败原因，可为空
}

// WifiInterface 系统上发现的无线接口
type WifiInterface struct {
	Name  string
	State string // NetworkManager 报告的原始状态（connected/disconnected/...）
	IsUSB bool
}

// Network 扫描发现的接入点
type Network struct {
	SSID     string
	Signal   int    // 信号强度百分比 0-100
	Security string // 加密类型，空串表示开放网络
}
