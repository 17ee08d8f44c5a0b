package control

import (
	"context"
	"sync"
	"testing"
	"time"

	"wifibridge/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingForwarder 记录全部下发指令
type recordingForwarder struct {
	mu   sync.Mutex
	cmds []Command
}

func (f *recordingForwarder) Forward(ctx context.Context, cmd Command) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cmds = append(f.cmds, cmd)
	return nil
}

func (f *recordingForwarder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cmds)
}

func (f *recordingForwarder) last() (Command, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.cmds) == 0 {
		return Command{}, false
	}
	return f.cmds[len(f.cmds)-1], true
}

func newTestSession(t *testing.T, heartbeat, minInterval time.Duration) (*Session, *recordingForwarder) {
	t.Helper()
	forwarder := &recordingForwarder{}
	tr := NewTranslator(context.Background(), forwarder)
	tr.SetTiming(heartbeat, minInterval)
	t.Cleanup(func() { tr.Close() })

	session, err := tr.NewSession()
	require.NoError(t, err)
	return session, forwarder
}

// waitCurrent 等待会话生效指令到达期望值
func waitCurrent(t *testing.T, s *Session, want Command) {
	t.Helper()
	require.Eventually(t, func() bool {
		return s.Current().Equal(want)
	}, time.Second, time.Millisecond, "current=%s want=%s", s.Current(), want)
}

func TestKeyPressComposesMoveVector(t *testing.T) {
	session, forwarder := newTestSession(t, time.Hour, time.Millisecond)

	require.NoError(t, session.HandleEvent(InputEvent{Type: "keydown", Key: "w"}))
	waitCurrent(t, session, Command{Kind: KindMove, DX: 0, DY: 1})

	require.Eventually(t, func() bool {
		cmd, ok := forwarder.last()
		return ok && cmd.Equal(Command{Kind: KindMove, DX: 0, DY: 1})
	}, time.Second, time.Millisecond)
}

func TestDiagonalComposition(t *testing.T) {
	session, _ := newTestSession(t, time.Hour, time.Millisecond)

	require.NoError(t, session.HandleEvent(InputEvent{Type: "keydown", Key: "w"}))
	require.NoError(t, session.HandleEvent(InputEvent{Type: "keydown", Key: "d"}))
	waitCurrent(t, session, Command{Kind: KindMove, DX: 1, DY: 1})
}

func TestOverlappingKeysClamped(t *testing.T) {
	session, _ := newTestSession(t, time.Hour, time.Millisecond)

	// w 与 ArrowUp 同向叠加，分量钳制在 1
	require.NoError(t, session.HandleEvent(InputEvent{Type: "keydown", Key: "w"}))
	require.NoError(t, session.HandleEvent(InputEvent{Type: "keydown", Key: "ArrowUp"}))
	waitCurrent(t, session, Command{Kind: KindMove, DX: 0, DY: 1})
}

func TestReleaseAllGoesNeutral(t *testing.T) {
	session, _ := newTestSession(t, time.Hour, time.Millisecond)

	require.NoError(t, session.HandleEvent(InputEvent{Type: "keydown", Key: "w"}))
	waitCurrent(t, session, Command{Kind: KindMove, DX: 0, DY: 1})

	require.NoError(t, session.HandleEvent(InputEvent{Type: "keyup", Key: "w"}))
	waitCurrent(t, session, Neutral())
}

func TestActionKeySupersedesMovement(t *testing.T) {
	session, _ := newTestSession(t, time.Hour, time.Millisecond)

	require.NoError(t, session.HandleEvent(InputEvent{Type: "keydown", Key: "w"}))
	waitCurrent(t, session, Command{Kind: KindMove, DX: 0, DY: 1})

	require.NoError(t, session.HandleEvent(InputEvent{Type: "keydown", Key: "x"}))
	waitCurrent(t, session, Command{Kind: KindAction, Action: ActionSit})
}

func TestGamepadAxisWithDeadzone(t *testing.T) {
	session, _ := newTestSession(t, time.Hour, time.Millisecond)

	// 死区内归零
	require.NoError(t, session.HandleEvent(InputEvent{Type: "axis", Axis: "x", Value: 0.05}))
	require.NoError(t, session.HandleEvent(InputEvent{Type: "axis", Axis: "y", Value: 0.7}))
	waitCurrent(t, session, Command{Kind: KindMove, DX: 0, DY: 0.7})

	// 超界钳制
	require.NoError(t, session.HandleEvent(InputEvent{Type: "axis", Axis: "y", Value: 1.8}))
	waitCurrent(t, session, Command{Kind: KindMove, DX: 0, DY: 1})
}

func TestGamepadButtonAction(t *testing.T) {
	session, _ := newTestSession(t, time.Hour, time.Millisecond)

	require.NoError(t, session.HandleEvent(InputEvent{Type: "button", Button: "b"}))
	waitCurrent(t, session, Command{Kind: KindAction, Action: ActionStand})
}

func TestHeartbeatResendsUnchangedCommand(t *testing.T) {
	session, forwarder := newTestSession(t, 10*time.Millisecond, time.Millisecond)

	require.NoError(t, session.HandleEvent(InputEvent{Type: "keydown", Key: "w"}))
	waitCurrent(t, session, Command{Kind: KindMove, DX: 0, DY: 1})

	before := forwarder.count()
	require.Eventually(t, func() bool {
		return forwarder.count() >= before+3
	}, time.Second, time.Millisecond, "unchanged command should be resent on each heartbeat")

	cmd, ok := forwarder.last()
	require.True(t, ok)
	assert.True(t, cmd.Equal(Command{Kind: KindMove, DX: 0, DY: 1}))
}

func TestMinIntervalCoalescesBursts(t *testing.T) {
	// 心跳与最小间隔都拉长，连发变更只能立即透出第一条
	session, forwarder := newTestSession(t, time.Hour, time.Hour)

	require.NoError(t, session.HandleEvent(InputEvent{Type: "keydown", Key: "w"}))
	require.NoError(t, session.HandleEvent(InputEvent{Type: "keydown", Key: "d"}))
	require.NoError(t, session.HandleEvent(InputEvent{Type: "keydown", Key: "a"}))

	waitCurrent(t, session, Command{Kind: KindMove, DX: 0, DY: 1})
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, forwarder.count())
}

func TestCloseSendsNeutral(t *testing.T) {
	session, forwarder := newTestSession(t, time.Hour, time.Millisecond)

	require.NoError(t, session.HandleEvent(InputEvent{Type: "keydown", Key: "w"}))
	waitCurrent(t, session, Command{Kind: KindMove, DX: 0, DY: 1})

	session.Close()

	cmd, ok := forwarder.last()
	require.True(t, ok)
	assert.True(t, cmd.Equal(Neutral()), "close must forward a neutral command, got %s", cmd)

	err := session.HandleEvent(InputEvent{Type: "keydown", Key: "w"})
	assert.True(t, errors.Is(err, errors.ErrSessionClosed))
}

func TestTranslatorCloseStopsSessions(t *testing.T) {
	forwarder := &recordingForwarder{}
	tr := NewTranslator(context.Background(), forwarder)
	tr.SetTiming(time.Hour, time.Millisecond)

	first, err := tr.NewSession()
	require.NoError(t, err)
	_, err = tr.NewSession()
	require.NoError(t, err)
	require.Equal(t, 2, tr.SessionCount())

	tr.Close()

	require.Eventually(t, func() bool {
		return tr.SessionCount() == 0
	}, time.Second, time.Millisecond)
	assert.True(t, first.IsClosed())

	_, err = tr.NewSession()
	assert.True(t, errors.Is(err, errors.ErrSessionClosed))
}
