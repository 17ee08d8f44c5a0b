// Package config 管理保存的网络凭据与默认接口配置
package config

import (
	"os"
	"path/filepath"

	"wifibridge/internal/errors"
	"wifibridge/internal/utils"

	"gopkg.in/yaml.v3"
)

// appDirName 用户配置目录下的应用子目录
const appDirName = "wifibridge"

// configFileName 配置文件名
const configFileName = "config.yaml"

// NetworkCredential 单个已保存网络的凭据
// (ssid, interface) 唯一
type NetworkCredential struct {
	SSID      string `yaml:"ssid"`
	Password  string `yaml:"password"`
	Interface string `yaml:"interface,omitempty"`
}

// Config 应用配置
type Config struct {
	// Networks 已保存的网络凭据，按保存顺序
	Networks []NetworkCredential `yaml:"networks"`

	// DefaultInterface 默认使用的接口名，为空时自动探测 USB 接口
	DefaultInterface string `yaml:"default_interface,omitempty"`

	// Log 日志配置
	Log utils.LogConfig `yaml:"log,omitempty"`
}

// Manager 配置管理器
type Manager struct {
	path string
}

// NewManager 创建配置管理器，使用用户配置目录下的固定路径
func NewManager() (*Manager, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return nil, errors.NewConfigError("", "cannot determine user config directory", err)
	}
	return &Manager{path: filepath.Join(dir, appDirName, configFileName)}, nil
}

// NewManagerWithPath 创建指定路径的配置管理器（测试用）
func NewManagerWithPath(path string) *Manager {
	return &Manager{path: path}
}

// Path 配置文件路径
func (m *Manager) Path() string {
	return m.path
}

// Load 加载配置；文件不存在时返回空配置
func (m *Manager) Load() (*Config, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			utils.Debugf("ConfigManager: no config file at %s, using empty config", m.path)
			return &Config{}, nil
		}
		return nil, errors.NewConfigError(m.path, "failed to read config file", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.NewConfigError(m.path, "failed to parse config file", err)
	}
	return &cfg, nil
}

// Save 保存配置，父目录不存在时创建
func (m *Manager) Save(cfg *Config) error {
	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return errors.NewConfigError(m.path, "failed to create config directory", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.NewConfigError(m.path, "failed to serialize config", err)
	}

	// 凭据文件含明文密码，收紧权限
	if err := os.WriteFile(m.path, data, 0600); err != nil {
		return errors.NewConfigError(m.path, "failed to write config file", err)
	}

	utils.Infof("ConfigManager: config saved to %s", m.path)
	return nil
}

// FindNetwork 按 SSID 与接口查找已保存凭据。
// 优先返回 (ssid, iface) 精确匹配，其次返回仅 SSID 匹配的条目。
func (c *Config) FindNetwork(ssid, iface string) *NetworkCredential {
	var bySSID *NetworkCredential
	for i := range c.Networks {
		n := &c.Networks[i]
		if n.SSID != ssid {
			continue
		}
		if n.Interface == iface {
			return n
		}
		if bySSID == nil {
			bySSID = n
		}
	}
	return bySSID
}

// AddNetwork 添加或覆盖凭据，(ssid, interface) 唯一
func (c *Config) AddNetwork(cred NetworkCredential) {
	for i := range c.Networks {
		if c.Networks[i].SSID == cred.SSID && c.Networks[i].Interface == cred.Interface {
			c.Networks[i] = cred
			return
		}
	}
	c.Networks = append(c.Networks, cred)
}
