package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"challenge-scoring-api/services"

	"github.com/spf13/cobra"
)

func newReEvaluateCmd(opts *rootOptions) *cobra.Command {
	var (
		configurationID int
		applicationIDs  []int
		workers         int
		reason          string
		outputFmt       string
	)

	cmd := &cobra.Command{
		Use:   "reevaluate",
		Short: "Re-score applications under a configuration",
		Long: `Re-scores the given applications (all submitted applications when --ids is
omitted) and prints the per-application deltas. Interrupting the command stops
the batch; applications already re-evaluated stay committed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := setup(ctx, opts, true)
			if err != nil {
				return err
			}
			defer rt.cleanup()

			result, err := rt.engine.ReEvaluations.ReEvaluate(ctx, rt.actor, services.ReEvaluationRequest{
				ConfigurationID: configurationID,
				ApplicationIDs:  applicationIDs,
				Reason:          reason,
				Workers:         workers,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if outputFmt == "json" {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}

			s := result.Summary
			fmt.Fprintf(out, "batch %s under configuration %d\n", result.BatchID, result.ConfigurationID)
			fmt.Fprintf(out, "evaluated: %d  eligibility changes: %d (+%d / -%d)  avg score change: %.2f\n",
				s.TotalEvaluated, s.EligibilityChanges, s.NewlyEligibleCount, s.LostEligibilityCount, s.AverageScoreChange)
			for _, f := range result.Failed {
				fmt.Fprintf(out, "failed: application %d (%s): %s\n", f.ApplicationID, f.Kind, f.Message)
			}
			if result.Cancelled {
				fmt.Fprintf(out, "cancelled: %d applications not started\n", len(result.Skipped))
			}
			if len(result.Failed) > 0 || result.Cancelled {
				return fmt.Errorf("batch %s incomplete", result.BatchID)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&configurationID, "configuration", 0, "Scoring configuration id (required)")
	cmd.Flags().IntSliceVar(&applicationIDs, "ids", nil, "Comma-separated application ids")
	cmd.Flags().IntVar(&workers, "workers", 0, "Worker count (default from settings)")
	cmd.Flags().StringVar(&reason, "reason", "", "Reason recorded in the evaluation history")
	cmd.Flags().StringVar(&outputFmt, "output", "text", "Output format: text or json")
	_ = cmd.MarkFlagRequired("configuration")
	return cmd
}
