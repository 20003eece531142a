package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/voltline/j1939-console/internal/importer"
	"github.com/voltline/j1939-console/internal/progress"
	"github.com/voltline/j1939-console/internal/reference"
	"github.com/voltline/j1939-console/internal/vehicles"
)

var (
	importDryRun bool
	importJSON   bool
	importBy     string
)

var importCmd = &cobra.Command{
	Use:   "import <path>",
	Short: "Import vehicle records and reference bundles from a directory",
	Long: `Walks <path> and imports every file matching import.include and not
import.exclude. Files with a top-level "standard" key are loaded as reference
bundles; every other JSON object is stored as a vehicle record.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		closer := setupLogging(cfg, "import")
		defer closer.Close()

		database, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		var reporter progress.Reporter = progress.NewReporter()
		if importJSON {
			reporter = progress.Nop{}
		}
		im := importer.New(vehicles.NewStore(database), reference.NewStore(database), nil, reporter)
		sum, err := im.Run(cmd.Context(), args[0], importer.Options{
			Include:     cfg.Import.Include,
			Exclude:     cfg.Import.Exclude,
			Concurrency: cfg.Import.Concurrency,
			UploadedBy:  importBy,
			DryRun:      importDryRun,
		})
		if err != nil {
			return err
		}

		if importJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(sum)
		}
		if verbose {
			for _, f := range sum.Files {
				fmt.Printf("%-10s %-8s %s  %s\n", f.Outcome, f.Kind, f.RelPath, f.Detail)
			}
		}
		if sum.Failed > 0 {
			return fmt.Errorf("%d file(s) failed to import", sum.Failed)
		}
		return nil
	},
}

func init() {
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "parse and classify files without storing them")
	importCmd.Flags().BoolVar(&importJSON, "json", false, "print the per-file summary as JSON")
	importCmd.Flags().StringVar(&importBy, "as", "import", "uploader recorded on imported vehicles")
	rootCmd.AddCommand(importCmd)
}
