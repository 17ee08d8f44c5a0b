// Package control 将浏览器输入事件翻译为设备控制指令并转发到网关
package control

import (
	"fmt"
	"net/url"
)

// CommandKind 指令类别
type CommandKind int

const (
	// KindMove 连续移动向量
	KindMove CommandKind = iota
	// KindAction 离散动作
	KindAction
)

// 离散动作集合
const (
	ActionStop  = "stop"
	ActionSit   = "sit"
	ActionStand = "stand"
	ActionGreet = "greet"
)

// Command 规范化控制指令：移动向量或离散动作二选一。
// 向量分量钳制在 [-1, 1]。
type Command struct {
	Kind   CommandKind
	DX     float64
	DY     float64
	Action string
}

// Neutral 中立指令（全停）
func Neutral() Command {
	return Command{Kind: KindAction, Action: ActionStop}
}

// Equal 指令等价判断
func (c Command) Equal(o Command) bool {
	if c.Kind != o.Kind {
		return false
	}
	if c.Kind == KindAction {
		return c.Action == o.Action
	}
	return c.DX == o.DX && c.DY == o.DY
}

// Values 编码为网关控制端点的查询参数
func (c Command) Values() url.Values {
	v := url.Values{}
	if c.Kind == KindAction {
		v.Set("cmd", c.Action)
		return v
	}
	v.Set("cmd", "move")
	v.Set("dx", fmt.Sprintf("%.3f", c.DX))
	v.Set("dy", fmt.Sprintf("%.3f", c.DY))
	return v
}

// String 日志用简短表示
func (c Command) String() string {
	if c.Kind == KindAction {
		return c.Action
	}
	return fmt.Sprintf("move(%.2f,%.2f)", c.DX, c.DY)
}

// clamp 钳制到 [-1, 1]
func clamp(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
