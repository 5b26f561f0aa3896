package main

import (
	"fmt"
	"os"
	"time"

	"challenge-scoring-api/services"
	"challenge-scoring-api/utils"

	"github.com/spf13/cobra"
)

func newExportCmd(opts *rootOptions) *cobra.Command {
	var (
		outPath      string
		statuses     []string
		from, to     string
		eligibleOnly bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export applications with their current evaluation as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := services.ExportFilter{EligibleOnly: eligibleOnly}
			if len(statuses) > 0 {
				parsed, err := utils.ParseStatuses(statuses)
				if err != nil {
					return err
				}
				filter.Statuses = parsed
			}
			var err error
			if filter.SubmittedFrom, err = parseDay(from, false); err != nil {
				return err
			}
			if filter.SubmittedTo, err = parseDay(to, true); err != nil {
				return err
			}

			rt, err := setup(cmd.Context(), opts, true)
			if err != nil {
				return err
			}
			defer rt.cleanup()

			rows, err := rt.engine.Exports.ExportEvaluationData(cmd.Context(), rt.actor, filter)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if outPath != "" && outPath != "-" {
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("create %s: %w", outPath, err)
				}
				defer f.Close()
				w = f
			}
			if err := services.WriteCSV(w, rows); err != nil {
				return fmt.Errorf("write csv: %w", err)
			}
			if outPath != "" && outPath != "-" {
				fmt.Fprintf(cmd.ErrOrStderr(), "exported %d applications to %s\n", len(rows), outPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output file (default stdout)")
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Application statuses to include")
	cmd.Flags().StringVar(&from, "from", "", "Submitted on or after (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "Submitted on or before (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&eligibleOnly, "eligible-only", false, "Only export eligible applications")
	return cmd
}

func parseDay(raw string, endOfDay bool) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation("2006-01-02", raw, time.Local)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", raw)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}
