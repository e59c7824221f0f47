package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/bug-intake/internal/findings"
	"github.com/example/bug-intake/internal/patterns"
	"github.com/example/bug-intake/internal/report"
	"github.com/example/bug-intake/internal/scanner"
)

const (
	formatText  = "text"
	formatJSON  = "json"
	formatSARIF = "sarif"
)

func newScanCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:          "scan [files...]",
		Short:        "Scan local files with the bug patterns and print the findings",
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := scanFiles(scanner.New(patterns.Default()), args)
			if err != nil {
				return err
			}
			return writeFindings(cmd, format, result)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", formatText, "output format: text, json or sarif")
	return cmd
}

func scanFiles(s *scanner.Scanner, paths []string) ([]findings.Finding, error) {
	var all []findings.Finding
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("unable to read %s: %w", path, err)
		}
		all = append(all, s.Scan(string(data), findings.FileRef{Name: path, Path: path})...)
	}
	return all, nil
}

func writeFindings(cmd *cobra.Command, format string, items []findings.Finding) error {
	out := cmd.OutOrStdout()
	switch format {
	case formatText:
		_, err := fmt.Fprint(out, report.Text(items))
		return err
	case formatJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Summary  report.Summary     `json:"summary"`
			Findings []findings.Finding `json:"findings"`
		}{Summary: report.Summarize(items), Findings: items})
	case formatSARIF:
		return findings.WriteSARIF(out, items)
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}
