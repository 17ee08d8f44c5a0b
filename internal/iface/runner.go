// Package iface 管理辅助无线接口与接入点的关联生命周期
package iface

import (
	"bytes"
	"context"
	goerrors "errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"wifibridge/internal/errors"
)

// Runner 执行网络管理命令（nmcli）并返回标准输出。
// 抽象出来便于测试注入假实现。
type Runner interface {
	Run(ctx context.Context, args ...string) (string, error)
}

// defaultCommandTimeout nmcli 单次调用超时
const defaultCommandTimeout = 45 * time.Second

// ExecRunner 基于 os/exec 的 Runner 实现
type ExecRunner struct {
	Bin string // 默认 "nmcli"
}

// NewExecRunner 创建默认的 nmcli 执行器
func NewExecRunner() *ExecRunner {
	return &ExecRunner{Bin: "nmcli"}
}

// Run 执行一次 nmcli 调用，失败时错误信息携带 stderr
func (r *ExecRunner) Run(ctx context.Context, args ...string) (string, error) {
	bin := r.Bin
	if bin == "" {
		bin = "nmcli"
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultCommandTimeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if goerrors.Is(err, exec.ErrNotFound) {
			return "", errors.ErrFacilityUnavailable
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = strings.TrimSpace(stdout.String())
		}
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("nmcli %s: %s", strings.Join(args, " "), msg)
	}

	return stdout.String(), nil
}

// CheckFacility 校验网络管理设施可用；不可用是致命的启动错误，不做重试
func CheckFacility(ctx context.Context, runner Runner) error {
	if _, err := runner.Run(ctx, "--version"); err != nil {
		if errors.Is(err, errors.ErrFacilityUnavailable) {
			return errors.ErrFacilityUnavailable
		}
		return fmt.Errorf("%w: %v", errors.ErrFacilityUnavailable, err)
	}
	return nil
}
