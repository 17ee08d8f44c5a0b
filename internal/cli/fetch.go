package cli

import (
	"fmt"
	"os"

	apperrors "wifibridge/internal/errors"
	"wifibridge/internal/gateway"
	"wifibridge/internal/iface"

	"github.com/spf13/cobra"
)

var (
	fetchOutput string
	fetchURL    string
)

// fetchGatewayCmd 抓取网关首页
var fetchGatewayCmd = &cobra.Command{
	Use:   "fetch-gateway",
	Short: "Fetch the gateway landing page over the bridge interface",
	Long: `Fetch the gateway's landing page through the bridge interface and
write it to a file. Useful for checking reachability and inspecting
the gateway's own UI.

Example:
  wifibridge fetch-gateway
  wifibridge fetch-gateway --output robot.html
  wifibridge fetch-gateway --url http://192.168.4.1/status`,
	RunE: runFetchGateway,
}

func init() {
	fetchGatewayCmd.Flags().StringVarP(&fetchOutput, "output", "o", "gateway.html", "Output file path")
	fetchGatewayCmd.Flags().StringVar(&fetchURL, "url", "", "Fetch this URL instead of the gateway root")
}

func runFetchGateway(cmd *cobra.Command, args []string) error {
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
	if snap.State != iface.StateConnected || snap.IPAddress == "" {
		return apperrors.NewInterfaceError(wi.Name, "fetch-gateway",
			"interface is not connected, run \"wifibridge connect\" first", nil)
	}
	if snap.Gateway == "" {
		return apperrors.ErrNoGateway
	}

	client, err := gateway.NewClient(snap.IPAddress, snap.Gateway)
	if err != nil {
		return err
	}

	target := fetchURL
	if target == "" {
		target = fmt.Sprintf("http://%s/", snap.Gateway)
	}

	body, err := client.Fetch(ctx, target)
	if err != nil {
		return err
	}

	if err := os.WriteFile(fetchOutput, body, 0644); err != nil {
		return fmt.Errorf("write %s: %w", fetchOutput, err)
	}

	NewOutput().Success("Wrote %d bytes from %s to %s", len(body), target, fetchOutput)
	return nil
}
