package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sifan077/redirector/internal/app/service"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import <domain> <file.csv>",
	Short: "Bulk import backlinks from a CSV export",
	Long: `Import backlinks from a CSV file with the columns linking_url and target.
A header row is detected and skipped. Use "-" to read from stdin.

Rows that fail validation are reported and skipped; the rest are imported
and configuration is regenerated once.`,
	Args: cobra.ExactArgs(2),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	var in io.Reader = cmd.InOrStdin()
	if args[1] != "-" {
		f, err := os.Open(args[1])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	rows, err := readBacklinkCSV(in)
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	result, cfg, err := a.backlinks.ImportBacklinks(cmd.Context(), args[0], rows)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), struct {
			Import *service.ImportResult `json:"import"`
			Config *service.ConfigStatus `json:"config"`
		}{result, cfg})
	}

	fmt.Fprintf(cmd.OutOrStdout(), "imported %d, skipped %d\n", result.Imported, result.Skipped)
	for _, e := range result.Errors {
		fmt.Fprintf(cmd.ErrOrStderr(), "  row %d: %s\n", e.Row, e.Message)
	}
	return reportConfig(cmd, cfg)
}

// readBacklinkCSV reads linking_url,target rows. Extra columns are ignored.
func readBacklinkCSV(r io.Reader) ([]service.BacklinkInput, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var rows []service.BacklinkInput
	for line := 1; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		if len(record) < 2 {
			return nil, fmt.Errorf("read csv: line %d: expected linking_url and target columns", line)
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(record[0]), "linking_url") {
			continue
		}
		rows = append(rows, service.BacklinkInput{
			LinkingURL: strings.TrimSpace(record[0]),
			Target:     strings.TrimSpace(record[1]),
		})
	}
	return rows, nil
}
