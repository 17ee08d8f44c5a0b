// Package gateway 提供绑定到辅助接口本机地址的设备网关 HTTP 客户端
package gateway

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"wifibridge/internal/errors"
	"wifibridge/internal/utils"
)

// 请求超时与重试策略
const (
	dialTimeout    = 5 * time.Second
	requestTimeout = 5 * time.Second
)

// requestBackoff 幂等读请求的重试策略
var requestBackoff = utils.BackoffConfig{
	InitialDelay: 300 * time.Millisecond,
	MaxDelay:     2 * time.Second,
	MaxAttempts:  3,
	Factor:       2.0,
	JitterFactor: 0.2,
}

// Client 设备网关客户端。
// 所有出站请求的源地址都显式钉在辅助接口的本机地址上，
// 避免设备流量走默认路由泄漏到主网络。
type Client struct {
	gatewayHost string // 网关地址（IP 或 IP:port 基准）
	localIP     net.IP
	httpClient  *http.Client // 普通请求，带整体超时
	streamCli   *http.Client // 媒体流请求，无整体超时
}

// NewClient 创建网关客户端。
// localAddr 为辅助接口的本机地址（可带 CIDR 后缀），gatewayHost 为网关 IP。
func NewClient(localAddr, gatewayHost string) (*Client, error) {
	ipStr := localAddr
	if i := strings.IndexByte(ipStr, '/'); i >= 0 {
		ipStr = ipStr[:i]
	}
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return nil, fmt.Errorf("invalid local address %q", localAddr)
	}

	dialer := &net.Dialer{
		Timeout:   dialTimeout,
		LocalAddr: &net.TCPAddr{IP: ip},
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          4,
		IdleConnTimeout:       30 * time.Second,
		ResponseHeaderTimeout: requestTimeout,
	}

	return &Client{
		gatewayHost: gatewayHost,
		localIP:     ip,
		httpClient:  &http.Client{Transport: transport, Timeout: requestTimeout},
		// 流连接长寿命，不能设整体超时；拨号与响应头超时仍然生效
		streamCli: &http.Client{Transport: transport},
	}, nil
}

// LocalIP 钉定的本机地址
func (c *Client) LocalIP() net.IP {
	return c.localIP
}

// GatewayHost 网关地址
func (c *Client) GatewayHost() string {
	return c.gatewayHost
}

// buildURL 拼接网关 URL，path 以 / 开头
func (c *Client) buildURL(path string) string {
	return "http://" + c.gatewayHost + path
}

// Request 向网关发起一次请求。
// GET 做有界重试（退避），非幂等方法只尝试一次。
// 网络层失败归一为 ErrGatewayUnreachable。
func (c *Client) Request(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	// 幂等读请求才重试；带请求体的请求无法重放
	cfg := requestBackoff
	if body != nil || (method != http.MethodGet && method != http.MethodHead) {
		cfg.MaxAttempts = 1
	}

	var resp *http.Response
	err := utils.Retry(ctx, cfg, func() error {
		req, rerr := http.NewRequestWithContext(ctx, method, c.buildURL(path), body)
		if rerr != nil {
			return rerr
		}
		r, rerr := c.httpClient.Do(req)
		if rerr != nil {
			return rerr
		}
		resp = r
		return nil
	}, nil)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.NewGatewayError(c.gatewayHost, "request failed", err)
	}
	return resp, nil
}

// SendCommand 转发控制指令（fire-and-forget，至多重试一次）。
// 实时控制链路上新鲜度优先于可靠性。
func (c *Client) SendCommand(ctx context.Context, params url.Values) error {
	path := "/control"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.buildURL(path), nil)
		if err != nil {
			return err
		}
		resp, err := c.httpClient.Do(req)
		if err == nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return errors.NewGatewayError(c.gatewayHost, "command forward failed", lastErr)
}

// OpenStream 打开媒体端点的长连接（媒体服务可能挂在独立端口，传完整 URL）。
// 返回响应体与内容类型，调用方负责关闭。
func (c *Client) OpenStream(ctx context.Context, rawURL string) (io.ReadCloser, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := c.streamCli.Do(req)
	if err != nil {
		return nil, "", errors.NewGatewayError(c.gatewayHost, "stream open failed", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, "", errors.NewGatewayError(c.gatewayHost,
			fmt.Sprintf("stream endpoint returned %d", resp.StatusCode), nil)
	}
	return resp.Body, resp.Header.Get("Content-Type"), nil
}

// Fetch 抓取任意 URL（fetch-gateway 命令用），仍然走钉定接口
func (c *Client) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewGatewayError(rawURL, "fetch failed", err)
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}
