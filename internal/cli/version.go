package cli

import (
	"fmt"

	"wifibridge/internal/version"

	"github.com/spf13/cobra"
)

// versionCmd 显示版本信息
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run:   runVersion,
}

func runVersion(cmd *cobra.Command, args []string) {
	fmt.Printf("wifibridge %s\n", version.GetVersion())
	if version.GitCommit != "" {
		fmt.Printf("  commit: %s\n", version.GitCommit)
	}
	if version.BuildTime != "" {
		fmt.Printf("  built:  %s\n", version.BuildTime)
	}
}
