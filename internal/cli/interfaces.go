package cli

import (
	"fmt"

	"wifibridge/internal/iface"

	"github.com/spf13/cobra"
)

// listInterfacesCmd 列出无线接口
var listInterfacesCmd = &cobra.Command{
	Use:   "list-interfaces",
	Short: "List WiFi interfaces and mark USB adapters",
	Long: `List all WiFi interfaces known to NetworkManager.

USB adapters are marked, since the bridge is meant to run on a secondary
USB WiFi interface while your primary connection stays untouched.

Example:
  wifibridge list-interfaces`,
	RunE: runListInterfaces,
}

func runListInterfaces(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	runner := iface.NewExecRunner()
	if err := iface.CheckFacility(ctx, runner); err != nil {
		return err
	}

	interfaces, err := iface.ListWifiInterfaces(ctx, runner)
	if err != nil {
		return err
	}

	out := NewOutput()
	if len(interfaces) == 0 {
		out.Warning("No WiFi interfaces found")
		return nil
	}

	out.Info("%s", out.Bold("WiFi Interfaces"))
	for _, wi := range interfaces {
		marker := "  "
		suffix := ""
		if wi.IsUSB {
			marker = "* "
			suffix = out.Faint(" (USB)")
		}
		fmt.Printf("%s%-12s %s%s\n", marker, wi.Name, wi.State, suffix)
	}
	return nil
}
