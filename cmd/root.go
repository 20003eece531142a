package cmd

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "j1939c",
	Short: "J1939 console backend: navigation menus, PGN/SPN viewer and reference data",
	Long: `j1939c serves the console for a J1939 telematics catalogue. It renders the
disclosure navigation menu, normalizes uploaded vehicle records into a
canonical PGN/SPN structure for the viewer, and manages products, firmware
and J1939 reference data. AI agents can query the same data over MCP.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", ".j1939c.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
