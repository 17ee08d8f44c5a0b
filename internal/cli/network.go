package cli

import (
	"fmt"
	"os"

	"wifibridge/internal/config"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var saveNetworkPassword string

// saveNetworkCmd 保存网络凭据
var saveNetworkCmd = &cobra.Command{
	Use:   "save-network <ssid>",
	Short: "Save a network credential to the config file",
	Long: `Save a network credential without connecting. The credential is
bound to the interface given with --interface, or stored for any
interface when omitted.

Example:
  wifibridge save-network RobotAP --password secret
  wifibridge save-network RobotAP`,
	Args: cobra.ExactArgs(1),
	RunE: runSaveNetwork,
}

// showConfigCmd 展示当前配置
var showConfigCmd = &cobra.Command{
	Use:   "show-config",
	Short: "Show the config file with passwords masked",
	RunE:  runShowConfig,
}

func init() {
	saveNetworkCmd.Flags().StringVarP(&saveNetworkPassword, "password", "p", "", "Network password (omit to prompt)")
}

func runSaveNetwork(cmd *cobra.Command, args []string) error {
	ssid := args[0]

	password := saveNetworkPassword
	if password == "" && isatty.IsTerminal(os.Stdin.Fd()) {
		var err error
		password, err = promptPassword(ssid)
		if err != nil {
			return err
		}
	}

	manager, err := newManager()
	if err != nil {
		return err
	}
	store := config.NewCredentialStore(manager)
	if err := store.Save(ssid, password, flagInterface); err != nil {
		return err
	}

	NewOutput().Success("Saved credential for %s", ssid)
	return nil
}

func runShowConfig(cmd *cobra.Command, args []string) error {
	manager, err := newManager()
	if err != nil {
		return err
	}
	cfg, err := manager.Load()
	if err != nil {
		return err
	}

	out := NewOutput()
	out.Info("%s", out.Bold(manager.Path()))

	if cfg.DefaultInterface != "" {
		out.Info("default interface: %s", cfg.DefaultInterface)
	}
	if len(cfg.Networks) == 0 {
		out.Info("no saved networks")
		return nil
	}

	out.Info("networks:")
	for _, n := range cfg.Networks {
		scope := "any interface"
		if n.Interface != "" {
			scope = n.Interface
		}
		fmt.Printf("  %-32s %-10s %s\n", n.SSID, MaskPassword(n.Password), out.Faint(scope))
	}
	return nil
}
