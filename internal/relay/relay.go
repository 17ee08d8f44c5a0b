package relay

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"wifibridge/internal/core/dispose"
	"wifibridge/internal/errors"
	"wifibridge/internal/utils"

	"github.com/google/uuid"
)

// subscriberBufferSize 每订阅者的出站缓冲容量（帧）
const subscriberBufferSize = 4

// reconnectBackoff 上游意外断开后的重连策略
var reconnectBackoff = utils.BackoffConfig{
	InitialDelay: 500 * time.Millisecond,
	MaxDelay:     4 * time.Second,
	MaxAttempts:  4,
	Factor:       2.0,
	JitterFactor: 0.2,
}

// Frame 中继打点后的媒体帧
type Frame struct {
	Seq      uint64 // 中继本地单调序号
	Payload  []byte
	Captured time.Time
}

// Subscription 单个订阅者的帧通道。
// Frames 关闭后通过 Err 区分正常关闭与上游失败。
type Subscription struct {
	ID     string
	frames chan Frame
	err    error // 粘性错误，仅在 frames 关闭前由中继设置
	relay  *Relay
	once   sync.Once
}

// Frames 帧通道，按序号严格递增（允许空洞，不重复不乱序）
func (s *Subscription) Frames() <-chan Frame {
	return s.frames
}

// Err 订阅终止原因；nil 表示主动关闭
func (s *Subscription) Err() error {
	return s.err
}

// Close 取消订阅，幂等
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.relay.unsubscribe(s.ID)
	})
}

// Relay 流中继：单上游读取者 + 多订阅者扇出。
// 上游连接随首个订阅者懒建立，随最后一个订阅者拆除；
// 订阅者缓冲满时丢最旧帧，绝不阻塞上游读取者或其它订阅者。
type Relay struct {
	dispose.Dispose

	source FrameSource
	seq    atomic.Uint64

	mu           sync.Mutex
	subs         map[string]*Subscription
	readerCancel context.CancelFunc
	gen          uint64 // 读取者代次，防止旧读取者退出时清掉新读取者
	closed       bool
}

// NewRelay 创建中继
func NewRelay(ctx context.Context, source FrameSource) *Relay {
	r := &Relay{
		source: source,
		subs:   make(map[string]*Subscription),
	}
	r.SetCtx(ctx, r.onClose)
	return r
}

// Subscribe 注册新订阅者。首个订阅者触发上游连接建立。
func (r *Relay) Subscribe() (*Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, errors.ErrStreamClosed
	}

	sub := &Subscription{
		ID:     uuid.NewString(),
		frames: make(chan Frame, subscriberBufferSize),
		relay:  r,
	}
	r.subs[sub.ID] = sub

	if r.readerCancel == nil {
		readerCtx, cancel := context.WithCancel(r.Ctx())
		r.readerCancel = cancel
		r.gen++
		go r.readLoop(readerCtx, r.gen)
		utils.Infof("StreamRelay: upstream reader started (first subscriber %s)", sub.ID)
	} else {
		utils.Debugf("StreamRelay: subscriber %s joined, total=%d", sub.ID, len(r.subs))
	}
	return sub, nil
}

// unsubscribe 移除订阅者；最后一个离开时拆除上游连接
func (r *Relay) unsubscribe(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.subs[id]
	if !ok {
		return
	}
	delete(r.subs, id)
	close(sub.frames)

	if len(r.subs) == 0 && r.readerCancel != nil {
		r.readerCancel()
		r.readerCancel = nil
		utils.Infof("StreamRelay: last subscriber left, upstream closed")
	}
}

// SubscriberCount 当前订阅者数
func (r *Relay) SubscriberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// readLoop 上游读取者：建立连接、拉帧、广播；断开后有界重连
func (r *Relay) readLoop(ctx context.Context, gen uint64) {
	defer r.readerExited(gen)

	failures := 0
	for ctx.Err() == nil {
		reader, err := r.source.Open(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			failures++
			utils.Warnf("StreamRelay: upstream open failed (attempt %d): %v", failures, err)
			if failures >= reconnectBackoff.MaxAttempts {
				r.failAll(errors.NewProxyError("/stream", "upstream reconnect exhausted", err))
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(reconnectBackoff.Delay(failures - 1)):
			}
			continue
		}

		failures = 0
		r.pump(ctx, reader)
		reader.Close()

		if ctx.Err() == nil {
			utils.Warnf("StreamRelay: upstream dropped, reconnecting")
		}
	}
}

// pump 持续拉帧直到上游出错或上下文取消
func (r *Relay) pump(ctx context.Context, reader FrameReader) {
	for ctx.Err() == nil {
		payload, err := reader.ReadFrame()
		if err != nil {
			return
		}
		r.broadcast(Frame{
			Seq:      r.seq.Add(1),
			Payload:  payload,
			Captured: time.Now(),
		})
	}
}

// broadcast 向所有订阅者推帧。
// 缓冲满则丢最旧一帧再推新帧：实时性优先于完整性，
// 慢消费者不拖慢生产者，也不影响其它订阅者。
func (r *Relay) broadcast(frame Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, sub := range r.subs {
		select {
		case sub.frames <- frame:
		default:
			select {
			case <-sub.frames:
			default:
			}
			select {
			case sub.frames <- frame:
			default:
			}
		}
	}
}

// failAll 上游不可恢复：向所有订阅者暴露错误并终止订阅，不静默挂起
func (r *Relay) failAll(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	utils.Errorf("StreamRelay: surfacing upstream failure to %d subscribers: %v", len(r.subs), err)
	for id, sub := range r.subs {
		sub.err = err
		close(sub.frames)
		delete(r.subs, id)
	}
	if r.readerCancel != nil {
		r.readerCancel()
		r.readerCancel = nil
	}
}

// readerExited 读取者退出时清理自身代次的句柄
func (r *Relay) readerExited(gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gen == gen && r.readerCancel != nil {
		r.readerCancel()
		r.readerCancel = nil
	}
}

// onClose 关停中继：断开上游并终止全部订阅
func (r *Relay) onClose() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	for id, sub := range r.subs {
		sub.err = errors.ErrStreamClosed
		close(sub.frames)
		delete(r.subs, id)
	}
	if r.readerCancel != nil {
		r.readerCancel()
		r.readerCancel = nil
	}
	return nil
}
