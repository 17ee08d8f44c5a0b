package proxy

import "fmt"

// Config 代理服务配置
type Config struct {
	// ListenAddr 本地监听地址，如 ":8080"
	ListenAddr string

	// MediaPort 网关媒体服务端口（ESP32-CAM 惯例为 81），
	// 0 表示媒体端点与网关同端口
	MediaPort int

	// MediaPath 网关媒体端点路径
	MediaPath string

	// CORS 是否放开跨域（浏览器控制页需要）
	CORS bool
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		ListenAddr: ":8080",
		MediaPort:  81,
		MediaPath:  "/stream",
		CORS:       true,
	}
}

// MediaURL 拼出网关媒体端点完整 URL
func (c *Config) MediaURL(gatewayHost string) string {
	if c.MediaPort == 0 {
		return fmt.Sprintf("http://%s%s", gatewayHost, c.MediaPath)
	}
	return fmt.Sprintf("http://%s:%d%s", gatewayHost, c.MediaPort, c.MediaPath)
}
