package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	mcpserver "github.com/voltline/j1939-console/internal/mcp"
	"github.com/voltline/j1939-console/internal/reference"
	"github.com/voltline/j1939-console/internal/vehicles"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server for AI agent integration",
	Long: `Starts a Model Context Protocol (MCP) server on stdio, exposing the J1939
normalizer, stored vehicles and reference PGN/SPN lookups as tools.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		closer := setupLogging(cfg, "mcp")
		defer closer.Close()

		database, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		mcpserver.Version = Version

		fmt.Fprintf(os.Stderr, "j1939c MCP server started on stdio (database=%s)\n", database.Path())

		srv := mcpserver.NewServer(vehicles.NewStore(database), reference.NewStore(database), nil)
		return srv.Serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
