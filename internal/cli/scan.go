package cli

import (
	"fmt"

	"wifibridge/internal/iface"

	"github.com/spf13/cobra"
)

// scanCmd 扫描附近网络
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for WiFi networks on the bridge interface",
	Long: `Scan for nearby WiFi networks on the selected interface.

Results are sorted by signal strength. Repeated scans within a few
seconds return cached results.

Example:
  wifibridge scan
  wifibridge scan -i wlan1`,
	RunE: runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
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

	out := NewOutput()
	out.Info("Scanning on %s...", out.Bold(wi.Name))

	networks, err := controller.Scan(ctx, wi.Name)
	if err != nil {
		return err
	}
	if len(networks) == 0 {
		out.Warning("No networks found")
		return nil
	}

	for _, n := range networks {
		security := n.Security
		if security == "" {
			security = out.Faint("open")
		}
		fmt.Printf("  %s %3d%%  %-32s %s\n", SignalBars(n.Signal), n.Signal, n.SSID, security)
	}
	return nil
}
