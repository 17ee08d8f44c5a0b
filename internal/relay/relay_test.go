package relay

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"wifibridge/internal/errors"
	"wifibridge/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource 按需产帧的假上游
type fakeSource struct {
	opens    atomic.Int32
	openErr  error
	maxOpens int32 // >0 时超过次数后 Open 报错

	frameDelay time.Duration
	framesPer  int // 每条连接产出多少帧后断开，0 表示不断开
}

func (s *fakeSource) Open(ctx context.Context) (FrameReader, error) {
	n := s.opens.Add(1)
	if s.openErr != nil {
		return nil, s.openErr
	}
	if s.maxOpens > 0 && n > s.maxOpens {
		return nil, fmt.Errorf("open %d: %w", n, io.ErrUnexpectedEOF)
	}
	return &fakeReader{ctx: ctx, delay: s.frameDelay, remaining: s.framesPer}, nil
}

type fakeReader struct {
	ctx       context.Context
	delay     time.Duration
	remaining int
	count     int
}

func (r *fakeReader) ReadFrame() ([]byte, error) {
	if r.ctx.Err() != nil {
		return nil, r.ctx.Err()
	}
	if r.remaining > 0 && r.count >= r.remaining {
		return nil, io.EOF
	}
	if r.delay > 0 {
		select {
		case <-r.ctx.Done():
			return nil, r.ctx.Err()
		case <-time.After(r.delay):
		}
	}
	r.count++
	return []byte{byte(r.count)}, nil
}

func (r *fakeReader) Close() error { return nil }

func fastReconnectBackoff(t *testing.T) {
	t.Helper()
	saved := reconnectBackoff
	reconnectBackoff = utils.BackoffConfig{
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		MaxAttempts:  3,
		Factor:       2.0,
	}
	t.Cleanup(func() { reconnectBackoff = saved })
}

// collect 从订阅读取 n 帧，超时报错
func collect(t *testing.T, sub *Subscription, n int) []Frame {
	t.Helper()
	frames := make([]Frame, 0, n)
	timeout := time.After(5 * time.Second)
	for len(frames) < n {
		select {
		case frame, ok := <-sub.Frames():
			require.True(t, ok, "subscription closed early: %v", sub.Err())
			frames = append(frames, frame)
		case <-timeout:
			t.Fatalf("timed out after %d/%d frames", len(frames), n)
		}
	}
	return frames
}

func TestSubscribeDeliversOrderedFrames(t *testing.T) {
	r := NewRelay(context.Background(), &fakeSource{})
	defer r.Close()

	sub, err := r.Subscribe()
	require.NoError(t, err)
	defer sub.Close()

	frames := collect(t, sub, 5)
	for i := 1; i < len(frames); i++ {
		assert.Greater(t, frames[i].Seq, frames[i-1].Seq, "sequence must be strictly increasing")
	}
}

func TestSlowSubscriberDropsOldestOnly(t *testing.T) {
	r := NewRelay(context.Background(), &fakeSource{frameDelay: 2 * time.Millisecond})
	defer r.Close()

	slow, err := r.Subscribe()
	require.NoError(t, err)
	defer slow.Close()

	fast, err := r.Subscribe()
	require.NoError(t, err)
	defer fast.Close()

	// 慢订阅者不消费，生产者与其它订阅者不得受阻
	frames := collect(t, fast, 50)
	latest := frames[len(frames)-1].Seq

	// 慢订阅者缓冲积压有界，旧帧被丢弃，留下的是较新的帧
	assert.LessOrEqual(t, len(slow.Frames()), subscriberBufferSize)

	first, ok := <-slow.Frames()
	require.True(t, ok)
	assert.Greater(t, first.Seq+2*subscriberBufferSize, latest,
		"slow subscriber should hold recent frames, not the oldest")
}

func TestFanoutFiveSubscribersUnsubscribeIsolated(t *testing.T) {
	r := NewRelay(context.Background(), &fakeSource{frameDelay: time.Millisecond})
	defer r.Close()

	const n = 5
	subs := make([]*Subscription, n)
	for i := range subs {
		sub, err := r.Subscribe()
		require.NoError(t, err)
		subs[i] = sub
	}
	require.Equal(t, n, r.SubscriberCount())

	// 每个订阅者各自拿到严格递增的序号（允许空洞）
	for _, sub := range subs {
		frames := collect(t, sub, 3)
		for i := 1; i < len(frames); i++ {
			assert.Greater(t, frames[i].Seq, frames[i-1].Seq)
		}
	}

	// 中途退订一个，其余订阅者的投递节奏不受影响
	subs[2].Close()
	assert.NoError(t, subs[2].Err())

	for i, sub := range subs {
		if i == 2 {
			continue
		}
		frames := collect(t, sub, 3)
		for j := 1; j < len(frames); j++ {
			assert.Greater(t, frames[j].Seq, frames[j-1].Seq)
		}
	}
	assert.Equal(t, n-1, r.SubscriberCount())
}

func TestLastUnsubscribeStopsUpstream(t *testing.T) {
	source := &fakeSource{frameDelay: time.Millisecond}
	r := NewRelay(context.Background(), source)
	defer r.Close()

	sub, err := r.Subscribe()
	require.NoError(t, err)
	collect(t, sub, 1)
	sub.Close()

	require.Eventually(t, func() bool {
		return r.SubscriberCount() == 0
	}, time.Second, 10*time.Millisecond)

	opensBefore := source.opens.Load()
	time.Sleep(50 * time.Millisecond)
	// 没有订阅者时不再碰上游
	assert.Equal(t, opensBefore, source.opens.Load())

	// 新订阅者重新拉起上游
	again, err := r.Subscribe()
	require.NoError(t, err)
	defer again.Close()
	collect(t, again, 1)
	assert.Greater(t, source.opens.Load(), opensBefore)
}

func TestReconnectAfterUpstreamDrop(t *testing.T) {
	fastReconnectBackoff(t)
	source := &fakeSource{framesPer: 3}
	r := NewRelay(context.Background(), source)
	defer r.Close()

	sub, err := r.Subscribe()
	require.NoError(t, err)
	defer sub.Close()

	// 每条连接只给 3 帧，拿到 7 帧说明至少重连了两次
	frames := collect(t, sub, 7)
	for i := 1; i < len(frames); i++ {
		assert.Greater(t, frames[i].Seq, frames[i-1].Seq)
	}
	assert.GreaterOrEqual(t, source.opens.Load(), int32(3))
}

func TestReconnectExhaustedSurfacesError(t *testing.T) {
	fastReconnectBackoff(t)
	source := &fakeSource{openErr: io.ErrUnexpectedEOF}
	r := NewRelay(context.Background(), source)
	defer r.Close()

	sub, err := r.Subscribe()
	require.NoError(t, err)
	defer sub.Close()

	select {
	case _, ok := <-sub.Frames():
		assert.False(t, ok, "channel should close without frames")
	case <-time.After(5 * time.Second):
		t.Fatal("subscription did not terminate")
	}
	require.Error(t, sub.Err())
	assert.Equal(t, int32(reconnectBackoff.MaxAttempts), source.opens.Load())
}

func TestSubscribeAfterCloseRejected(t *testing.T) {
	r := NewRelay(context.Background(), &fakeSource{})
	r.Close()

	_, err := r.Subscribe()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrStreamClosed))
}

func TestCloseTerminatesSubscribers(t *testing.T) {
	r := NewRelay(context.Background(), &fakeSource{})

	sub, err := r.Subscribe()
	require.NoError(t, err)
	collect(t, sub, 1)

	r.Close()

	require.Eventually(t, func() bool {
		select {
		case _, ok := <-sub.Frames():
			return !ok
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
	assert.True(t, errors.Is(sub.Err(), errors.ErrStreamClosed))
}
