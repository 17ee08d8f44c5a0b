package utils

import (
	"context"
	"math/rand"
	"time"
)

// BackoffConfig 指数退避配置
type BackoffConfig struct {
	InitialDelay time.Duration // 初始延迟
	MaxDelay     time.Duration // 最大延迟
	MaxAttempts  int           // 最大尝试次数（>=1）
	Factor       float64       // 退避因子（2.0=指数退避）
	JitterFactor float64       // 抖动因子（0.0-1.0）
}

// DefaultBackoffConfig 默认退避配置
var DefaultBackoffConfig = BackoffConfig{
	InitialDelay: time.Second,
	MaxDelay:     30 * time.Second,
	MaxAttempts:  3,
	Factor:       2.0,
	JitterFactor: 0.2,
}

// Delay 计算第 attempt 次重试（从0开始）前的等待时间
func (c BackoffConfig) Delay(attempt int) time.Duration {
	delay := c.InitialDelay
	for i := 0; i < attempt; i++ {
		delay = time.Duration(float64(delay) * c.Factor)
		if c.MaxDelay > 0 && delay > c.MaxDelay {
			delay = c.MaxDelay
			break
		}
	}
	return addJitter(delay, c.JitterFactor)
}

// addJitter 添加随机抖动
func addJitter(delay time.Duration, jitterFactor float64) time.Duration {
	if jitterFactor <= 0 {
		return delay
	}
	jitter := float64(delay) * jitterFactor * (2*rand.Float64() - 1)
	return time.Duration(float64(delay) + jitter)
}

// Retry 按退避配置重复执行 fn，直到成功、不可重试或次数耗尽。
// retryable 返回 false 的错误立即向上抛出。
func Retry(ctx context.Context, cfg BackoffConfig, fn func() error, retryable func(error) bool) error {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(cfg.Delay(attempt - 1)):
			}
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if retryable != nil && !retryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}
