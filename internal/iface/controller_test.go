package iface

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"wifibridge/internal/errors"
	"wifibridge/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner 可编程的命令执行器
type fakeRunner struct {
	mu      sync.Mutex
	calls   [][]string
	handler func(args []string) (string, error)
}

func (f *fakeRunner) Run(ctx context.Context, args ...string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, args)
	handler := f.handler
	f.mu.Unlock()

	if handler == nil {
		return "", nil
	}
	return handler(args)
}

func (f *fakeRunner) callCount(keyword string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, call := range f.calls {
		if strings.Contains(strings.Join(call, " "), keyword) {
			n++
		}
	}
	return n
}

// fakeStore 内存凭据存取
type fakeStore struct {
	mu    sync.Mutex
	creds map[string]string
	saved int
}

func newFakeStore() *fakeStore {
	return &fakeStore{creds: make(map[string]string)}
}

func (f *fakeStore) Find(ssid, iface string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pw, ok := f.creds[ssid]
	return pw, ok
}

func (f *fakeStore) Save(ssid, password, iface string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creds[ssid] = password
	f.saved++
	return nil
}

const deviceShowConnected = `GENERAL.DEVICE:wlan1
GENERAL.STATE:100 (connected)
GENERAL.CONNECTION:RobotAP
IP4.ADDRESS[1]:192.168.4.2/24
IP4.GATEWAY:192.168.4.1`

// fastBackoff 测试用的快速重试配置
func fastBackoff(t *testing.T) {
	t.Helper()
	saved := associateBackoff
	associateBackoff = utils.BackoffConfig{
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		MaxAttempts:  3,
		Factor:       2.0,
	}
	t.Cleanup(func() { associateBackoff = saved })
}

func TestConnectSuccess(t *testing.T) {
	runner := &fakeRunner{handler: func(args []string) (string, error) {
		if args[0] == "-t" {
			return deviceShowConnected, nil
		}
		return "", nil
	}}
	store := newFakeStore()
	c := NewController(runner, store)

	err := c.Connect(context.Background(), "wlan1", "RobotAP", "secret", true)
	require.NoError(t, err)

	snap := c.Snapshot("wlan1")
	assert.Equal(t, StateConnected, snap.State)
	assert.Equal(t, "RobotAP", snap.SSID)
	assert.Equal(t, "192.168.4.2/24", snap.IPAddress)
	assert.Equal(t, "192.168.4.1", snap.Gateway)

	// save 置位时成功后持久化
	pw, ok := store.Find("RobotAP", "wlan1")
	require.True(t, ok)
	assert.Equal(t, "secret", pw)
}

func TestConnectMissingPassword(t *testing.T) {
	c := NewController(&fakeRunner{}, newFakeStore())

	err := c.Connect(context.Background(), "wlan1", "RobotAP", "", false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNoCredential))
	assert.Equal(t, StateFailed, c.Snapshot("wlan1").State)
}

func TestConnectSavedCredentialFallback(t *testing.T) {
	var gotPassword string
	runner := &fakeRunner{handler: func(args []string) (string, error) {
		if args[0] == "device" && args[2] == "connect" {
			gotPassword = args[5]
		}
		if args[0] == "-t" {
			return deviceShowConnected, nil
		}
		return "", nil
	}}
	store := newFakeStore()
	store.creds["RobotAP"] = "stored-secret"
	c := NewController(runner, store)

	err := c.Connect(context.Background(), "wlan1", "RobotAP", "", false)
	require.NoError(t, err)
	assert.Equal(t, "stored-secret", gotPassword)
	// save 未置位，不重复写入
	assert.Equal(t, 0, store.saved)
}

func TestConnectRejectedNotRetried(t *testing.T) {
	fastBackoff(t)
	runner := &fakeRunner{handler: func(args []string) (string, error) {
		if args[0] == "device" && args[2] == "connect" {
			return "", errors.NewInterfaceError("wlan1", "run", "Error: Secrets were required, but not provided", nil)
		}
		return "", nil
	}}
	c := NewController(runner, newFakeStore())

	err := c.Connect(context.Background(), "wlan1", "RobotAP", "wrong", false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrAssociationRejected))
	assert.Equal(t, 1, runner.callCount("wifi connect"))

	snap := c.Snapshot("wlan1")
	assert.Equal(t, StateFailed, snap.State)
	assert.Error(t, snap.LastError)
}

func TestConnectRetriesTimeoutThenSucceeds(t *testing.T) {
	fastBackoff(t)
	var attempts int
	runner := &fakeRunner{}
	runner.handler = func(args []string) (string, error) {
		if args[0] == "device" && args[2] == "connect" {
			attempts++
			if attempts < 3 {
				return "", errors.NewInterfaceError("wlan1", "run", "Error: Timeout expired", nil)
			}
			return "", nil
		}
		if args[0] == "-t" {
			return deviceShowConnected, nil
		}
		return "", nil
	}
	c := NewController(runner, newFakeStore())

	err := c.Connect(context.Background(), "wlan1", "RobotAP", "secret", false)
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, StateConnected, c.Snapshot("wlan1").State)
}

func TestConnectRetriesBounded(t *testing.T) {
	fastBackoff(t)
	runner := &fakeRunner{handler: func(args []string) (string, error) {
		if args[0] == "device" && args[2] == "connect" {
			return "", errors.NewInterfaceError("wlan1", "run", "Error: Timeout expired", nil)
		}
		return "", nil
	}}
	c := NewController(runner, newFakeStore())

	err := c.Connect(context.Background(), "wlan1", "RobotAP", "secret", false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrAssociationTimeout))
	assert.Equal(t, 3, runner.callCount("wifi connect"))
}

func TestConcurrentConnectRejected(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	runner := &fakeRunner{handler: func(args []string) (string, error) {
		if args[0] == "device" && args[2] == "connect" {
			close(started)
			<-release
		}
		if args[0] == "-t" {
			return deviceShowConnected, nil
		}
		return "", nil
	}}
	c := NewController(runner, newFakeStore())

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- c.Connect(context.Background(), "wlan1", "RobotAP", "secret", false)
	}()
	<-started

	// 第一个 connect 还在关联中，第二个立即被拒
	err := c.Connect(context.Background(), "wlan1", "OtherAP", "secret", false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrAlreadyInProgress))

	close(release)
	require.NoError(t, <-firstDone)
	assert.Equal(t, StateConnected, c.Snapshot("wlan1").State)
}

func TestDisconnectIdempotent(t *testing.T) {
	runner := &fakeRunner{}
	c := NewController(runner, newFakeStore())

	// 从未连接过，直接为空操作
	require.NoError(t, c.Disconnect(context.Background(), "wlan1"))
	assert.Equal(t, 0, runner.callCount("disconnect"))
}

func TestDisconnectTearsDown(t *testing.T) {
	runner := &fakeRunner{handler: func(args []string) (string, error) {
		if args[0] == "-t" {
			return deviceShowConnected, nil
		}
		return "", nil
	}}
	c := NewController(runner, newFakeStore())
	require.NoError(t, c.Connect(context.Background(), "wlan1", "RobotAP", "secret", false))

	require.NoError(t, c.Disconnect(context.Background(), "wlan1"))
	assert.Equal(t, 1, runner.callCount("device disconnect"))

	snap := c.Snapshot("wlan1")
	assert.Equal(t, StateDisconnected, snap.State)
	assert.Empty(t, snap.SSID)
	assert.Empty(t, snap.IPAddress)
}

func TestStatusRefreshesSnapshot(t *testing.T) {
	runner := &fakeRunner{handler: func(args []string) (string, error) {
		return deviceShowConnected, nil
	}}
	c := NewController(runner, newFakeStore())

	snap, err := c.Status(context.Background(), "wlan1")
	require.NoError(t, err)
	assert.Equal(t, StateConnected, snap.State)
	assert.Equal(t, "RobotAP", snap.SSID)
	assert.Equal(t, "192.168.4.1", snap.Gateway)
}

func TestScanBusyDuringTransition(t *testing.T) {
	c := NewController(&fakeRunner{}, newFakeStore())
	e := c.entryFor("wlan1")
	e.snap.State = StateConnecting

	_, err := c.Scan(context.Background(), "wlan1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrBusy))
}

func TestScanCachesResults(t *testing.T) {
	runner := &fakeRunner{handler: func(args []string) (string, error) {
		if args[0] == "-t" {
			return "RobotAP:78:WPA2\nHomeNet:52:WPA1:WPA2", nil
		}
		return "", nil
	}}
	c := NewController(runner, newFakeStore())

	first, err := c.Scan(context.Background(), "wlan1")
	require.NoError(t, err)
	require.Len(t, first, 2)

	second, err := c.Scan(context.Background(), "wlan1")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	// 缓存命中，wifi list 只执行一次
	assert.Equal(t, 1, runner.callCount("wifi list"))
}

func TestParseScanOutput(t *testing.T) {
	out := `HomeNet:52:WPA1:WPA2
RobotAP:78:WPA2
:90:WPA2
RobotAP:40:WPA2
OpenNet:31:`

	networks := parseScanOutput(out)
	require.Len(t, networks, 3)

	// 按信号降序，重复 SSID 与隐藏网络被剔除
	assert.Equal(t, "RobotAP", networks[0].SSID)
	assert.Equal(t, 78, networks[0].Signal)
	assert.Equal(t, "HomeNet", networks[1].SSID)
	assert.Equal(t, "WPA1:WPA2", networks[1].Security)
	assert.Equal(t, "OpenNet", networks[2].SSID)
	assert.Empty(t, networks[2].Security)
}

func TestClassifyAssociationError(t *testing.T) {
	rejected := classifyAssociationError(errors.NewInterfaceError("", "run", "Error: Secrets were required, but not provided", nil))
	assert.True(t, errors.Is(rejected, errors.ErrAssociationRejected))

	timeout := classifyAssociationError(errors.NewInterfaceError("", "run", "Error: Timeout expired", nil))
	assert.True(t, errors.Is(timeout, errors.ErrAssociationTimeout))

	unknown := classifyAssociationError(errors.NewInterfaceError("", "run", "Error: something else", nil))
	assert.True(t, errors.Is(unknown, errors.ErrAssociationTimeout))
}
