package dispose

import (
	"context"
	"fmt"
	"sync"

	"wifibridge/internal/utils"
)

// DisposeError 清理过程中的错误信息
type DisposeError struct {
	HandlerIndex int
	Err          error
}

func (e *DisposeError) Error() string {
	return fmt.Sprintf("cleanup handler[%d] failed: %v", e.HandlerIndex, e.Err)
}

// DisposeResult 清理结果
type DisposeResult struct {
	Errors []*DisposeError
}

func (r *DisposeResult) HasErrors() bool {
	return len(r.Errors) > 0
}

func (r *DisposeResult) Error() string {
	if !r.HasErrors() {
		return ""
	}
	return fmt.Sprintf("dispose cleanup failed with %d errors", len(r.Errors))
}

// Disposable 统一的资源释放接口
type Disposable interface {
	Dispose() error
}

// Dispose 资源管理基类：持有上下文，按注册顺序执行清理处理器
type Dispose struct {
	mu            sync.Mutex
	closed        bool
	ctx           context.Context
	cancel        context.CancelFunc
	cleanHandlers []func() error
}

func (c *Dispose) Ctx() context.Context {
	return c.ctx
}

func (c *Dispose) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// SetCtx 初始化上下文，onClose 可为 nil
func (c *Dispose) SetCtx(parent context.Context, onClose func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ctx != nil {
		utils.Warn("dispose: ctx already set")
		return
	}
	if parent == nil {
		parent = context.Background()
	}
	if onClose != nil {
		c.cleanHandlers = append(c.cleanHandlers, onClose)
	}
	c.ctx, c.cancel = context.WithCancel(parent)

	// 父上下文取消时同样触发清理
	go func() {
		<-c.ctx.Done()
		c.Close()
	}()
}

// AddCleanHandler 添加清理处理器
func (c *Dispose) AddCleanHandler(f func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanHandlers = append(c.cleanHandlers, f)
}

// Close 幂等关闭：取消上下文并执行全部清理处理器
func (c *Dispose) Close() *DisposeResult {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return &DisposeResult{}
	}
	c.closed = true
	if c.cancel != nil {
		c.cancel()
	}
	handlers := make([]func() error, len(c.cleanHandlers))
	copy(handlers, c.cleanHandlers)
	c.mu.Unlock()

	result := &DisposeResult{}
	for i, handler := range handlers {
		if err := handler(); err != nil {
			result.Errors = append(result.Errors, &DisposeError{HandlerIndex: i, Err: err})
			// 记录错误但不中断其余清理
			utils.Errorf("dispose: cleanup handler[%d] failed: %v", i, err)
		}
	}
	return result
}

// CloseWithError 以 error 形式返回清理结果
func (c *Dispose) CloseWithError() error {
	result := c.Close()
	if result.HasErrors() {
		return result.Errors[0].Err
	}
	return nil
}

// Dispose 实现 Disposable
func (c *Dispose) Dispose() error {
	return c.CloseWithError()
}
