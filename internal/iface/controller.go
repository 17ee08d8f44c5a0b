package iface

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"wifibridge/internal/errors"
	"wifibridge/internal/utils"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CredentialStore 凭据存取契约。connect 未显式提供密码时读取，
// save 置位且连接成功后写入。
type CredentialStore interface {
	Find(ssid, iface string) (password string, ok bool)
	Save(ssid, password, iface string) error
}

// scanCacheTTL 扫描结果缓存时长，避免连续触发底层重扫
const scanCacheTTL = 10 * time.Second

// scanSettleDelay 触发重扫后给驱动的稳定时间
const scanSettleDelay = 500 * time.Millisecond

// associateBackoff 关联重试策略：3 次尝试，基础延迟翻倍
var associateBackoff = utils.BackoffConfig{
	InitialDelay: time.Second,
	MaxDelay:     8 * time.Second,
	MaxAttempts:  3,
	Factor:       2.0,
	JitterFactor: 0.2,
}

// entry 单个接口的受锁状态记录
type entry struct {
	opMu    sync.Mutex // 串行化 connect/disconnect
	stateMu sync.Mutex // 保护快照字段
	snap    Interface
}

// Controller 接口关联控制器。
// 每个接口名对应唯一一份状态记录，状态迁移按接口名串行化。
type Controller struct {
	runner  Runner
	store   CredentialStore
	mu      sync.Mutex
	entries map[string]*entry

	scanCache *expirable.LRU[string, []Network]
}

// NewController 创建控制器。store 可为 nil（不做凭据回退）。
func NewController(runner Runner, store CredentialStore) *Controller {
	return &Controller{
		runner:    runner,
		store:     store,
		entries:   make(map[string]*entry),
		scanCache: expirable.NewLRU[string, []Network](8, nil, scanCacheTTL),
	}
}

// entryFor 获取（或创建）接口的状态记录
func (c *Controller) entryFor(name string) *entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[name]
	if !ok {
		e = &entry{snap: Interface{Name: name, State: StateDisconnected}}
		c.entries[name] = e
	}
	return e
}

// Snapshot 返回接口状态快照，纯本地读取，不触网
func (c *Controller) Snapshot(name string) Interface {
	e := c.entryFor(name)
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.snap
}

// Connect 连接到指定 SSID。
// 同一接口上已有 Connecting 时立即返回 ErrAlreadyInProgress；
// 关联超时类失败做有界退避重试，认证拒绝不重试。
// save 置位时仅在成功后持久化凭据。
func (c *Controller) Connect(ctx context.Context, name, ssid, password string, save bool) error {
	e := c.entryFor(name)

	// 原子检查并进入 Connecting，拒绝并发的第二个 connect
	e.stateMu.Lock()
	if e.snap.State == StateConnecting {
		e.stateMu.Unlock()
		return errors.NewInterfaceError(name, "connect", "another connect is running", errors.ErrAlreadyInProgress)
	}
	e.snap.State = StateConnecting
	e.snap.SSID = ssid
	e.snap.LastError = nil
	e.stateMu.Unlock()

	e.opMu.Lock()
	defer e.opMu.Unlock()

	// 密码回退：显式密码优先，其次已保存凭据
	if password == "" && c.store != nil {
		if saved, ok := c.store.Find(ssid, name); ok {
			utils.Infof("InterfaceController: using saved credential for %q", ssid)
			password = saved
		}
	}
	if password == "" {
		c.fail(e, errors.ErrNoCredential)
		return errors.NewInterfaceError(name, "connect", "missing password", errors.ErrNoCredential)
	}

	utils.Infof("InterfaceController: connecting %s to %q", name, ssid)

	err := utils.Retry(ctx, associateBackoff, func() error {
		return c.associate(ctx, name, ssid, password)
	}, func(err error) bool {
		// 仅超时类失败重试
		return errors.Is(err, errors.ErrAssociationTimeout)
	})
	if err != nil {
		c.fail(e, err)
		utils.Errorf("InterfaceController: connect %s to %q failed: %v", name, ssid, err)
		return errors.NewInterfaceError(name, "connect", "association failed", err)
	}

	// 成功后查询一次状态，记录分配地址
	status, qerr := c.queryStatus(ctx, name)
	e.stateMu.Lock()
	e.snap.State = StateConnected
	e.snap.SSID = ssid
	e.snap.LastError = nil
	if qerr == nil {
		e.snap.IPAddress = status.IPAddress
		e.snap.Gateway = status.Gateway
	}
	e.stateMu.Unlock()

	utils.Infof("InterfaceController: %s connected to %q", name, ssid)

	if save && c.store != nil {
		if serr := c.store.Save(ssid, password, name); serr != nil {
			// 保存失败不影响连接结果
			utils.Warnf("InterfaceController: failed to save credential: %v", serr)
		}
	}
	return nil
}

// fail 记录失败状态
func (c *Controller) fail(e *entry, cause error) {
	e.stateMu.Lock()
	e.snap.State = StateFailed
	e.snap.LastError = cause
	e.snap.IPAddress = ""
	e.snap.Gateway = ""
	e.stateMu.Unlock()
}

// associate 执行一次 nmcli 关联并归类失败原因
func (c *Controller) associate(ctx context.Context, name, ssid, password string) error {
	_, err := c.runner.Run(ctx, "device", "wifi", "connect", ssid, "password", password, "ifname", name)
	if err == nil {
		return nil
	}
	if errors.Is(err, errors.ErrFacilityUnavailable) {
		return err
	}
	return classifyAssociationError(err)
}

// classifyAssociationError 将 nmcli 失败输出归类为拒绝/超时
func classifyAssociationError(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "secrets were required"),
		strings.Contains(msg, "secrets"),
		strings.Contains(msg, "password"),
		strings.Contains(msg, "802.1x"),
		strings.Contains(msg, "no network with ssid"):
		return errors.NewInterfaceError("", "associate", msg, errors.ErrAssociationRejected)
	case strings.Contains(msg, "timeout"),
		strings.Contains(msg, "timed out"),
		strings.Contains(msg, "context deadline exceeded"):
		return errors.NewInterfaceError("", "associate", msg, errors.ErrAssociationTimeout)
	default:
		// 未知失败当作超时处理，给一次重试机会
		return errors.NewInterfaceError("", "associate", msg, errors.ErrAssociationTimeout)
	}
}

// Disconnect 断开接口。幂等：已处于 Disconnected 时为空操作。
func (c *Controller) Disconnect(ctx context.Context, name string) error {
	e := c.entryFor(name)
	e.opMu.Lock()
	defer e.opMu.Unlock()

	e.stateMu.Lock()
	if e.snap.State == StateDisconnected {
		e.stateMu.Unlock()
		return nil
	}
	e.stateMu.Unlock()

	if _, err := c.runner.Run(ctx, "device", "disconnect", name); err != nil {
		return errors.NewInterfaceError(name, "disconnect", "teardown failed", err)
	}

	e.stateMu.Lock()
	e.snap.State = StateDisconnected
	e.snap.SSID = ""
	e.snap.IPAddress = ""
	e.snap.Gateway = ""
	e.snap.LastError = nil
	e.stateMu.Unlock()

	utils.Infof("InterfaceController: %s disconnected", name)
	return nil
}

// Status 查询接口当前状态（nmcli -t device show）并刷新快照
func (c *Controller) Status(ctx context.Context, name string) (Interface, error) {
	status, err := c.queryStatus(ctx, name)
	if err != nil {
		return Interface{}, err
	}

	e := c.entryFor(name)
	e.stateMu.Lock()
	// 仅在非迁移中才用外部状态覆盖本地状态机
	if e.snap.State != StateConnecting {
		e.snap.State = status.State
		e.snap.SSID = status.SSID
	}
	e.snap.IPAddress = status.IPAddress
	e.snap.Gateway = status.Gateway
	snap := e.snap
	e.stateMu.Unlock()
	return snap, nil
}

// queryStatus 解析 nmcli 的设备详情输出
func (c *Controller) queryStatus(ctx context.Context, name string) (Interface, error) {
	out, err := c.runner.Run(ctx, "-t", "device", "show", name)
	if err != nil {
		return Interface{}, errors.NewInterfaceError(name, "status", "device show failed", err)
	}

	status := Interface{Name: name, State: StateDisconnected}
	for _, line := range strings.Split(out, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		switch key {
		case "GENERAL.STATE":
			if strings.Contains(value, "connected") && !strings.Contains(value, "disconnected") {
				status.State = StateConnected
			}
		case "GENERAL.CONNECTION":
			if value != "" && value != "--" {
				status.SSID = value
			}
		case "IP4.ADDRESS[1]":
			if value != "" && value != "--" {
				status.IPAddress = value
			}
		case "IP4.GATEWAY":
			if value != "" && value != "--" {
				status.Gateway = value
			}
		}
	}
	return status, nil
}

// Scan 扫描可见接入点。只读，不改变接口状态；
// 接口处于迁移中时直接返回 ErrBusy。
func (c *Controller) Scan(ctx context.Context, name string) ([]Network, error) {
	e := c.entryFor(name)
	e.stateMu.Lock()
	busy := e.snap.State == StateConnecting
	e.stateMu.Unlock()
	if busy {
		return nil, errors.NewInterfaceError(name, "scan", "interface is mid-transition", errors.ErrBusy)
	}

	if cached, ok := c.scanCache.Get(name); ok {
		utils.Debugf("InterfaceController: scan cache hit for %s", name)
		return cached, nil
	}

	// 重扫可能因接口忙而失败，忽略错误沿用驱动缓存
	_, _ = c.runner.Run(ctx, "device", "wifi", "rescan", "ifname", name)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(scanSettleDelay):
	}

	out, err := c.runner.Run(ctx, "-t", "-f", "SSID,SIGNAL,SECURITY", "device", "wifi", "list", "ifname", name)
	if err != nil {
		return nil, errors.NewInterfaceError(name, "scan", "wifi list failed", err)
	}

	networks := parseScanOutput(out)
	c.scanCache.Add(name, networks)
	return networks, nil
}

// parseScanOutput 解析扫描输出：去重、滤隐藏网络、按信号降序
func parseScanOutput(out string) []Network {
	seen := make(map[string]bool)
	var networks []Network

	for _, line := range strings.Split(out, "\n") {
		parts := strings.Split(line, ":")
		if len(parts) < 3 {
			continue
		}
		ssid := parts[0]
		if ssid == "" || seen[ssid] {
			continue
		}
		seen[ssid] = true

		signal, _ := strconv.Atoi(parts[1])

		networks = append(networks, Network{
			SSID:   ssid,
			Signal: signal,
			// SECURITY 字段本身可能含冒号
			Security: strings.Join(parts[2:], ":"),
		})
	}

	sort.SliceStable(networks, func(i, j int) bool {
		return networks[i].Signal > networks[j].Signal
	})
	return networks
}
