package control

import "strings"

// InputEvent 浏览器原始输入事件（键盘或手柄）
type InputEvent struct {
	Type   string  `json:"type"`             // keydown / keyup / axis / button
	Key    string  `json:"key,omitempty"`    // 键盘键名（小写）
	Axis   string  `json:"axis,omitempty"`   // x / y
	Value  float64 `json:"value,omitempty"`  // 轴取值 [-1, 1]
	Button string  `json:"button,omitempty"` // 手柄按键名
}

// axisDeadzone 手柄轴死区
const axisDeadzone = 0.15

// movementKeys 移动键 → 向量分量增量
var movementKeys = map[string][2]float64{
	"w":          {0, 1},
	"arrowup":    {0, 1},
	"s":          {0, -1},
	"arrowdown":  {0, -1},
	"a":          {-1, 0},
	"arrowleft":  {-1, 0},
	"d":          {1, 0},
	"arrowright": {1, 0},
}

// actionKeys 离散动作键 → 动作（固定表）
var actionKeys = map[string]string{
	"space": ActionStop,
	"x":     ActionSit,
	"z":     ActionStand,
	"g":     ActionGreet,
}

// buttonActions 手柄按键 → 动作（固定 1:1 表）
var buttonActions = map[string]string{
	"a":     ActionSit,
	"b":     ActionStand,
	"x":     ActionGreet,
	"y":     ActionStop,
	"start": ActionStop,
}

// normalizeKey 键名规范化。浏览器把空格键上报为 " "，统一成 "space"
func normalizeKey(key string) string {
	if key == " " {
		return "space"
	}
	return strings.ToLower(strings.TrimSpace(key))
}

// applyDeadzone 死区内归零，区外钳制
func applyDeadzone(v float64) float64 {
	if v > -axisDeadzone && v < axisDeadzone {
		return 0
	}
	return clamp(v)
}
