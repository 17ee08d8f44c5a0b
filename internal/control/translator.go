package control

import (
	"context"
	"sync"
	"time"

	"wifibridge/internal/core/dispose"
	"wifibridge/internal/errors"
	"wifibridge/internal/utils"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Forwarder 指令下发契约，由网关客户端适配实现
type Forwarder interface {
	Forward(ctx context.Context, cmd Command) error
}

// ForwarderFunc 函数适配器
type ForwarderFunc func(ctx context.Context, cmd Command) error

func (f ForwarderFunc) Forward(ctx context.Context, cmd Command) error {
	return f(ctx, cmd)
}

// 转发节奏
const (
	// DefaultHeartbeat 不变指令的保活重发间隔
	DefaultHeartbeat = 250 * time.Millisecond
	// DefaultMinInterval 最小发送间隔（合并抖动，避免打满链路）
	DefaultMinInterval = 50 * time.Millisecond
	// eventQueueSize 每会话输入事件队列容量
	eventQueueSize = 64
	// stopSendTimeout 会话关闭时补发停止指令的时限
	stopSendTimeout = time.Second
)

// Translator 输入事件翻译器，管理全部控制会话
type Translator struct {
	dispose.Dispose

	forwarder   Forwarder
	heartbeat   time.Duration
	minInterval time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewTranslator 创建翻译器
func NewTranslator(ctx context.Context, forwarder Forwarder) *Translator {
	t := &Translator{
		forwarder:   forwarder,
		heartbeat:   DefaultHeartbeat,
		minInterval: DefaultMinInterval,
		sessions:    make(map[string]*Session),
	}
	t.SetCtx(ctx, t.onClose)
	return t
}

// SetTiming 调整转发节奏（测试用）
func (t *Translator) SetTiming(heartbeat, minInterval time.Duration) {
	t.heartbeat = heartbeat
	t.minInterval = minInterval
}

// NewSession 创建控制会话并启动其转发循环
func (t *Translator) NewSession() (*Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.IsClosed() {
		return nil, errors.ErrSessionClosed
	}

	s := &Session{
		ID:         uuid.NewString(),
		translator: t,
		events:     make(chan InputEvent, eventQueueSize),
		keysDown:   make(map[string]bool),
		current:    Neutral(),
		limiter:    rate.NewLimiter(rate.Every(t.minInterval), 1),
	}
	s.SetCtx(t.Ctx(), s.onClose)
	t.sessions[s.ID] = s

	go s.run()
	utils.Infof("ControlTranslator: session %s started", s.ID)
	return s, nil
}

// removeSession 摘除会话记录
func (t *Translator) removeSession(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, id)
}

// SessionCount 活跃会话数
func (t *Translator) SessionCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

// onClose 关停全部会话
func (t *Translator) onClose() error {
	t.mu.Lock()
	sessions := make([]*Session, 0, len(t.sessions))
	for _, s := range t.sessions {
		sessions = append(sessions, s)
	}
	t.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
	return nil
}

// Session 单个浏览器连接的控制会话。
// 仅保留最近一次指令（last-write-wins），不排历史队列。
type Session struct {
	dispose.Dispose

	ID         string
	translator *Translator
	events     chan InputEvent
	limiter    *rate.Limiter

	mu       sync.Mutex
	keysDown map[string]bool // 按下的移动键
	axisX    float64         // 手柄轴（死区处理后）
	axisY    float64
	current  Command // 最近生效指令
	lastSent Command // 最近下发指令
	sentOnce bool
}

// HandleEvent 投递输入事件。队列满时丢最旧事件，保证新事件不被丢弃。
func (s *Session) HandleEvent(ev InputEvent) error {
	if s.IsClosed() {
		return errors.ErrSessionClosed
	}
	select {
	case s.events <- ev:
	default:
		select {
		case <-s.events:
		default:
		}
		select {
		case s.events <- ev:
		default:
		}
	}
	return nil
}

// Current 当前生效指令快照
func (s *Session) Current() Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// run 会话转发循环：变更立即下发（受最小间隔约束），
// 心跳周期重发不变指令，防止设备因单包丢失回退到失效保护态。
func (s *Session) run() {
	ticker := time.NewTicker(s.translator.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-s.Ctx().Done():
			return
		case ev := <-s.events:
			if changed := s.apply(ev); changed && s.limiter.Allow() {
				s.forward(s.Current())
			}
		case <-ticker.C:
			// 保活：不变指令也至少每个心跳周期下发一次
			s.forward(s.Current())
		}
	}
}

// apply 应用一个输入事件，返回生效指令是否变化
func (s *Session) apply(ev InputEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.current
	switch ev.Type {
	case "keydown":
		key := normalizeKey(ev.Key)
		if action, ok := actionKeys[key]; ok {
			// 离散动作立即取代移动向量
			s.current = Command{Kind: KindAction, Action: action}
			return !s.current.Equal(prev)
		}
		if _, ok := movementKeys[key]; ok {
			s.keysDown[key] = true
			s.current = s.compose()
		}
	case "keyup":
		key := normalizeKey(ev.Key)
		if _, ok := movementKeys[key]; ok {
			delete(s.keysDown, key)
			s.current = s.compose()
		}
	case "axis":
		v := applyDeadzone(ev.Value)
		switch ev.Axis {
		case "x":
			s.axisX = v
		case "y":
			s.axisY = v
		}
		s.current = s.compose()
	case "button":
		if action, ok := buttonActions[normalizeKey(ev.Button)]; ok {
			s.current = Command{Kind: KindAction, Action: action}
		}
	default:
		utils.Debugf("ControlTranslator: session %s ignoring event type %q", s.ID, ev.Type)
	}
	return !s.current.Equal(prev)
}

// compose 由按键与手柄轴合成移动向量：分量叠加后逐轴钳制；
// 全零向量即中立指令。
func (s *Session) compose() Command {
	dx, dy := s.axisX, s.axisY
	for key := range s.keysDown {
		d := movementKeys[key]
		dx += d[0]
		dy += d[1]
	}
	dx, dy = clamp(dx), clamp(dy)

	if dx == 0 && dy == 0 {
		return Neutral()
	}
	return Command{Kind: KindMove, DX: dx, DY: dy}
}

// forward 下发指令，失败仅告警（下一心跳自然重试）
func (s *Session) forward(cmd Command) {
	ctx, cancel := context.WithTimeout(s.Ctx(), stopSendTimeout)
	defer cancel()

	if err := s.translator.forwarder.Forward(ctx, cmd); err != nil {
		utils.Warnf("ControlTranslator: session %s forward %s failed: %v", s.ID, cmd, err)
		return
	}

	s.mu.Lock()
	s.lastSent = cmd
	s.sentOnce = true
	s.mu.Unlock()
}

// onClose 会话断开：尽力补发一次中立指令，设备立即停止
func (s *Session) onClose() error {
	ctx, cancel := context.WithTimeout(context.Background(), stopSendTimeout)
	defer cancel()

	if err := s.translator.forwarder.Forward(ctx, Neutral()); err != nil {
		utils.Warnf("ControlTranslator: session %s stop-on-close failed: %v", s.ID, err)
	}
	s.translator.removeSession(s.ID)
	utils.Infof("ControlTranslator: session %s closed", s.ID)
	return nil
}

// Close 关闭会话，幂等
func (s *Session) Close() {
	s.Dispose.Close()
}
