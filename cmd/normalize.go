package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/voltline/j1939-console/internal/j1939"
)

var normalizeRows bool

var normalizeCmd = &cobra.Command{
	Use:   "normalize [file]",
	Short: "Normalize one vehicle record and print the canonical PGN/SPN structure",
	Long: `Reads a vehicle record from [file] (or stdin when omitted or "-") and prints
the canonical PGN list as JSON. With --rows it prints the viewer table instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			data []byte
			err  error
		)
		if len(args) == 0 || args[0] == "-" {
			data, err = io.ReadAll(cmd.InOrStdin())
		} else {
			data, err = os.ReadFile(args[0])
		}
		if err != nil {
			return fmt.Errorf("reading record: %w", err)
		}

		rec, err := j1939.ParseRecord(data)
		if err != nil {
			return err
		}
		res := j1939.Normalize(rec)
		out := cmd.OutOrStdout()

		if !normalizeRows {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}

		fmt.Fprintf(out, "%s: %d PGN(s), %d SPN(s)\n", j1939.DisplayName(rec), res.PGNCount, res.SPNCount)
		for _, p := range res.PGNList {
			fmt.Fprintf(out, "\n%s (%d) %s\n", p.PGNHex, p.PGNDec, p.Name)
			rows := j1939.Rows(p)
			if len(rows) == 0 {
				fmt.Fprintln(out, "  "+j1939.NoSPNData)
				continue
			}
			for _, row := range rows {
				fmt.Fprintf(out, "  %-40s %-8s %s %s\n", row.Name, row.BitRange, row.Value, row.Unit)
			}
		}
		return nil
	},
}

func init() {
	normalizeCmd.Flags().BoolVar(&normalizeRows, "rows", false, "print the SPN table instead of JSON")
	rootCmd.AddCommand(normalizeCmd)
}
