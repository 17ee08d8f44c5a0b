// Package cli 提供 wifibridge 的命令框架
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"wifibridge/internal/config"
	"wifibridge/internal/iface"
	"wifibridge/internal/utils"
	"wifibridge/internal/version"

	"github.com/spf13/cobra"
)

// 全局标志
var (
	flagInterface string
	flagConfig    string
	flagLogLevel  string
)

// rootCmd 代表根命令
var rootCmd = &cobra.Command{
	Use:   "wifibridge",
	Short: "WiFi bridge for robot gateways over a secondary wireless interface",
	Long: `wifibridge connects a secondary (typically USB) WiFi interface to a
robot gateway network and bridges its video stream and control endpoint
onto your regular network.

Quick Start:
  wifibridge list-interfaces        Show available WiFi interfaces
  wifibridge scan                   Scan for networks on the USB interface
  wifibridge connect <ssid>         Join the robot's network
  wifibridge serve                  Start the local bridge proxy`,
	Version:       version.GetVersion(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging()
	},
}

// Execute 执行根命令
func Execute() {
	// 全局 panic recovery
	defer func() {
		if r := recover(); r != nil {
			utils.Errorf("FATAL: main goroutine panic recovered: %v", r)
			fmt.Fprintf(os.Stderr, "\nPANIC: %v\n", r)
			fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", string(debug.Stack()))
			os.Exit(2)
		}
	}()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagInterface, "interface", "i", "", "WiFi interface name (default: auto-detect USB interface)")
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "Config file path")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug/info/warn/error")

	rootCmd.AddCommand(listInterfacesCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(disconnectCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(saveNetworkCmd)
	rootCmd.AddCommand(showConfigCmd)
	rootCmd.AddCommand(fetchGatewayCmd)
	rootCmd.AddCommand(versionCmd)
}

// setupLogging 先用配置文件里的日志配置，标志优先
func setupLogging() error {
	manager, err := newManager()
	if err != nil {
		return err
	}
	cfg, err := manager.Load()
	if err != nil {
		return err
	}

	logCfg := cfg.Log
	if flagLogLevel != "" {
		logCfg.Level = flagLogLevel
	}
	return utils.InitLogger(&logCfg)
}

// newManager 按 --config 或默认路径创建配置管理器
func newManager() (*config.Manager, error) {
	if flagConfig != "" {
		return config.NewManagerWithPath(flagConfig), nil
	}
	return config.NewManager()
}

// newController 组装接口控制器
func newController() (*iface.Controller, iface.Runner, error) {
	manager, err := newManager()
	if err != nil {
		return nil, nil, err
	}
	runner := iface.NewExecRunner()
	return iface.NewController(runner, config.NewCredentialStore(manager)), runner, nil
}

// resolveInterface 按 --interface 解析目标接口，空则自动找 USB 网卡
func resolveInterface(ctx context.Context, runner iface.Runner) (iface.WifiInterface, error) {
	name := flagInterface
	if name == "" {
		manager, err := newManager()
		if err == nil {
			if cfg, err := manager.Load(); err == nil {
				name = cfg.DefaultInterface
			}
		}
	}
	return iface.Resolve(ctx, runner, name)
}

// signalContext 监听 SIGINT/SIGTERM 的上下文
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
