package cli

import (
	"fmt"
	"os"

	apperrors "wifibridge/internal/errors"
	"wifibridge/internal/iface"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	connectPassword string
	connectSave     bool
)

// connectCmd 连接到指定网络
var connectCmd = &cobra.Command{
	Use:   "connect <ssid>",
	Short: "Connect the bridge interface to a WiFi network",
	Long: `Connect the selected interface to the given SSID.

Password lookup order: the --password flag, then credentials saved in
the config file, then an interactive prompt on a terminal. With --save
the credential is stored after a successful connection.

Example:
  wifibridge connect RobotAP --password secret --save
  wifibridge connect RobotAP`,
	Args: cobra.ExactArgs(1),
	RunE: runConnect,
}

func init() {
	connectCmd.Flags().StringVarP(&connectPassword, "password", "p", "", "Network password (omit to use saved credential or prompt)")
	connectCmd.Flags().BoolVar(&connectSave, "save", false, "Save the credential after a successful connection")
}

func runConnect(cmd *cobra.Command, args []string) error {
	ssid := args[0]

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
	out.Info("Connecting %s to %s...", out.Bold(wi.Name), out.Bold(ssid))

	err = controller.Connect(ctx, wi.Name, ssid, connectPassword, connectSave)
	if apperrors.Is(err, apperrors.ErrNoCredential) && isatty.IsTerminal(os.Stdin.Fd()) {
		password, perr := promptPassword(ssid)
		if perr != nil {
			return perr
		}
		err = controller.Connect(ctx, wi.Name, ssid, password, connectSave)
	}
	if err != nil {
		return err
	}

	snap := controller.Snapshot(wi.Name)
	out.Success("Connected to %s", ssid)
	if snap.IPAddress != "" {
		out.Info("  address: %s", snap.IPAddress)
	}
	if snap.Gateway != "" {
		out.Info("  gateway: %s", snap.Gateway)
	}
	return nil
}

// promptPassword 终端密码输入，不回显
func promptPassword(ssid string) (string, error) {
	fmt.Printf("Password for %s: ", ssid)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(raw), nil
}
