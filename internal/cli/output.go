package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

var (
	colorSuccess = color.New(color.FgGreen).SprintFunc()
	colorError   = color.New(color.FgRed).SprintFunc()
	colorWarning = color.New(color.FgYellow).SprintFunc()
	colorInfo    = color.New(color.FgCyan).SprintFunc()
	colorBold    = color.New(color.Bold).SprintFunc()
	colorFaint   = color.New(color.Faint).SprintFunc()
)

// Output 提供结构化的输出接口
type Output struct {
	noColor bool
}

// NewOutput 创建输出工具，非终端时自动关闭颜色
func NewOutput() *Output {
	noColor := !isatty.IsTerminal(os.Stdout.Fd())
	if noColor {
		color.NoColor = true
	}
	return &Output{noColor: noColor}
}

// Success 输出成功消息
func (o *Output) Success(format string, args ...interface{}) {
	fmt.Printf("%s %s\n", colorSuccess("OK"), fmt.Sprintf(format, args...))
}

// Error 输出错误消息
func (o *Output) Error(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "%s %s\n", colorError("ERROR"), fmt.Sprintf(format, args...))
}

// Warning 输出警告消息
func (o *Output) Warning(format string, args ...interface{}) {
	fmt.Printf("%s %s\n", colorWarning("WARN"), fmt.Sprintf(format, args...))
}

// Info 输出提示消息
func (o *Output) Info(format string, args ...interface{}) {
	fmt.Printf("%s\n", fmt.Sprintf(format, args...))
}

// Bold 加粗
func (o *Output) Bold(s string) string {
	return colorBold(s)
}

// Faint 弱化
func (o *Output) Faint(s string) string {
	return colorFaint(s)
}

// SignalBars 把信号强度百分比画成五格条
func SignalBars(signal int) string {
	filled := signal / 20
	if signal > 0 && filled == 0 {
		filled = 1
	}
	if filled > 5 {
		filled = 5
	}
	bars := strings.Repeat("▂", filled) + strings.Repeat(" ", 5-filled)

	switch {
	case signal >= 60:
		return colorSuccess(bars)
	case signal >= 30:
		return colorWarning(bars)
	default:
		return colorError(bars)
	}
}

// MaskPassword 密码掩码展示
func MaskPassword(password string) string {
	if password == "" {
		return "(none)"
	}
	return strings.Repeat("*", 8)
}
