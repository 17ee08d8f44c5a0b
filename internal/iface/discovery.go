package iface

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"wifibridge/internal/errors"
)

// sysClassNet sysfs 网络设备根目录，测试可覆盖
var sysClassNet = "/sys/class/net"

// ListWifiInterfaces 列出系统上的全部无线接口
// nmcli -t -f DEVICE,TYPE,STATE device
func ListWifiInterfaces(ctx context.Context, runner Runner) ([]WifiInterface, error) {
	out, err := runner.Run(ctx, "-t", "-f", "DEVICE,TYPE,STATE", "device")
	if err != nil {
		return nil, err
	}

	var interfaces []WifiInterface
	for _, line := range strings.Split(out, "\n") {
		parts := strings.Split(line, ":")
		if len(parts) < 3 || parts[1] != "wifi" {
			continue
		}
		name := parts[0]
		interfaces = append(interfaces, WifiInterface{
			Name:  name,
			State: parts[2],
			IsUSB: isUSBInterface(name),
		})
	}
	return interfaces, nil
}

// isUSBInterface 通过 sysfs 判断接口是否为 USB 设备。
// device 符号链接路径含 "usb" 即认定；uevent 内容作为兜底。
func isUSBInterface(name string) bool {
	devicePath := filepath.Join(sysClassNet, name, "device")
	if _, err := os.Lstat(devicePath); err != nil {
		return false
	}

	if resolved, err := os.Readlink(devicePath); err == nil {
		if strings.Contains(resolved, "usb") {
			return true
		}
	}

	if content, err := os.ReadFile(filepath.Join(devicePath, "uevent")); err == nil {
		return strings.Contains(string(content), "usb")
	}
	return false
}

// FindUSBInterface 返回第一个 USB 无线接口
func FindUSBInterface(ctx context.Context, runner Runner) (WifiInterface, error) {
	interfaces, err := ListWifiInterfaces(ctx, runner)
	if err != nil {
		return WifiInterface{}, err
	}
	for _, it := range interfaces {
		if it.IsUSB {
			return it, nil
		}
	}
	return WifiInterface{}, errors.ErrNoUSBInterface
}

// Resolve 解析要使用的接口：指定名称时校验存在，否则自动探测 USB 接口
func Resolve(ctx context.Context, runner Runner, name string) (WifiInterface, error) {
	if name == "" {
		return FindUSBInterface(ctx, runner)
	}

	interfaces, err := ListWifiInterfaces(ctx, runner)
	if err != nil {
		return WifiInterface{}, err
	}
	for _, it := range interfaces {
		if it.Name == name {
			return it, nil
		}
	}
	return WifiInterface{}, errors.NewInterfaceError(name, "resolve", "no such wifi interface", errors.ErrInterfaceNotFound)
}
