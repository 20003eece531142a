package cmd

import (
	"github.com/spf13/cobra"

	"github.com/voltline/j1939-console/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize j1939c configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to configure the console backend and writes the config file given by --config.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard(cfgFile)
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
