package cli

import (
	"fmt"

	apperrors "wifibridge/internal/errors"
	"wifibridge/internal/gateway"
	"wifibridge/internal/iface"
	"wifibridge/internal/proxy"
	"wifibridge/internal/utils"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	servePort      int
	serveMediaPort int
)

// serveCmd 启动桥接代理
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local bridge proxy",
	Long: `Start the local HTTP proxy bridging the robot gateway onto your
regular network.

The bridge interface must already be connected (see "wifibridge
connect"). Gateway traffic is pinned to the bridge interface address,
so your primary connection stays untouched. Stopping the proxy leaves
the interface connected.

Endpoints:
  /          built-in control page
  /stream    MJPEG video stream fan-out
  /control   control session (WebSocket) or command passthrough
  anything else is forwarded to the gateway verbatim.

Example:
  wifibridge serve
  wifibridge serve --port 9090 -i wlan1`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "Local listen port")
	serveCmd.Flags().IntVar(&serveMediaPort, "media-port", 81, "Gateway media service port")
}

func runServe(cmd *cobra.Command, args []string) error {
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
		return apperrors.NewInterfaceError(wi.Name, "serve",
			"interface is not connected, run \"wifibridge connect\" first", nil)
	}
	if snap.Gateway == "" {
		return apperrors.ErrNoGateway
	}

	client, err := gateway.NewClient(snap.IPAddress, snap.Gateway)
	if err != nil {
		return err
	}

	cfg := proxy.DefaultConfig()
	cfg.ListenAddr = fmt.Sprintf(":%d", servePort)
	cfg.MediaPort = serveMediaPort

	service := proxy.NewService(ctx, cfg, client)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(service.Start)
	g.Go(func() error {
		<-gctx.Done()
		// 停服不断网，接口保持连接
		service.Close()
		return nil
	})

	utils.Infof("Bridge ready: interface %s, gateway %s", wi.Name, snap.Gateway)
	return g.Wait()
}
