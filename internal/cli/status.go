package cli

import (
	"wifibridge/internal/iface"

	"github.com/spf13/cobra"
)

// statusCmd 查看接口状态
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the bridge interface connection state",
	Long: `Show the current state of the selected interface, including the
associated SSID, assigned address and gateway.

Example:
  wifibridge status
  wifibridge status -i wlan1`,
	RunE: runStatus,
}

// disconnectCmd 断开接口
var disconnectCmd = &cobra.Command{
	Use:   "disconnect",
	Short: "Disconnect the bridge interface",
	Long: `Disconnect the selected interface from its current network.
Already-disconnected interfaces are left as-is.

Example:
  wifibridge disconnect`,
	RunE: runDisconnect,
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	controller, runner, err := newController()
	if err != nil {
		return err
	}
	if err := iface.CheckFacility(ctx, runner); err != nil {
		return err
	}

	wi, err := resolveInterface(ctx, runner)
	if err != nil {
		return err
	}

	snap, err := controller.Status(ctx, wi.Name)
	if err != nil {
		return err
	}

	out := NewOutput()
	out.Info("%s: %s", out.Bold(snap.Name), snap.State)
	if snap.SSID != "" {
		out.Info("  ssid:    %s", snap.SSID)
	}
	if snap.IPAddress != "" {
		out.Info("  address: %s", snap.IPAddress)
	}
	if snap.Gateway != "" {
		out.Info("  gateway: %s", snap.Gateway)
	}
	if snap.LastError != nil {
		out.Warning("  last error: %v", snap.LastError)
	}
	return nil
}

func runDisconnect(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	controller, runner, err := newController()
	if err != nil {
		return err
	}
	if err := iface.CheckFacility(ctx, runner); err != nil {
		return err
	}

	wi, err := resolveInterface(ctx, runner)
	if err != nil {
		return err
	}

	if err := controller.Disconnect(ctx, wi.Name); err != nil {
		return err
	}

	NewOutput().Success("Disconnected %s", wi.Name)
	return nil
}
