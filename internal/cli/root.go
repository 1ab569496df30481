// Package cli wires the configuration, engine and scheduler into the
// slotwatch command tree.
package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	CommitSHA = "none"
	BuildDate = "unknown"
)

func NewRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "slotwatch",
		Short:         "Watches the ICBC road test calendar and alerts when a matching slot opens",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath(), "path to the slotwatch.yaml document")

	root.AddCommand(newWatchCmd(&configPath))
	root.AddCommand(newOnceCmd(&configPath))
	root.AddCommand(newDryRunCmd(&configPath))
	root.AddCommand(newVersionCmd())

	return root
}

func defaultConfigPath() string {
	if v := os.Getenv("SLOTWATCH_CONFIG"); v != "" {
		return v
	}
	return "slotwatch.yaml"
}
