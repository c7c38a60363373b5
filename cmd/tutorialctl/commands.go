package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kirillkom/tutorial-pipeline/internal/bootstrap"
	"github.com/kirillkom/tutorial-pipeline/internal/core/domain"
	"github.com/kirillkom/tutorial-pipeline/internal/core/ports"
)

var (
	submitHotNews bool

	advanceBudget  time.Duration
	advanceHotNews bool

	retryFromScratch bool
	retryAllLimit    int

	reportOut      string
	reportStatuses []string
	reportLimit    int
)

var submitCmd = &cobra.Command{
	Use:   "submit <url>",
	Short: "Register a URL and enqueue it for processing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, app *bootstrap.App) error {
			sub, err := app.IngestUC.Submit(ctx, ports.SubmitRequest{
				URL:     args[0],
				Channel: domain.ChannelAPI,
				Sender:  "tutorialctl",
				HotNews: submitHotNews,
			})
			if err := queueDeferred(cmd, sub, err); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), sub)
		})
	},
}

var getCmd = &cobra.Command{
	Use:   "get <submission-id>",
	Short: "Show a submission",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, app *bootstrap.App) error {
			sub, err := app.Submissions.GetByID(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), sub)
		})
	},
}

var advanceCmd = &cobra.Command{
	Use:   "advance <submission-id>",
	Short: "Run pipeline steps in-process until published, failed or out of budget",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, app *bootstrap.App) error {
			result, err := app.Advancer.Advance(ctx, args[0], domain.AdvanceOptions{
				HotNews: advanceHotNews,
				Budget:  advanceBudget,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		})
	},
}

var retryCmd = &cobra.Command{
	Use:   "retry <submission-id>",
	Short: "Reset a failed or dead submission and enqueue it again",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, app *bootstrap.App) error {
			sub, err := app.RetryUC.Retry(ctx, args[0], retryFromScratch)
			if err := queueDeferred(cmd, sub, err); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), sub)
		})
	},
}

var retryAllCmd = &cobra.Command{
	Use:   "retry-all",
	Short: "Re-enqueue failed submissions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, app *bootstrap.App) error {
			queued, err := app.RetryUC.RedriveFailed(ctx, retryAllLimit)
			if err != nil {
				return fmt.Errorf("redrive failed submissions (queued %d): %w", queued, err)
			}
			return printJSON(cmd.OutOrStdout(), map[string]int{"queued": queued})
		})
	},
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Export submissions to an xlsx workbook",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		statuses, err := parseStatuses(reportStatuses)
		if err != nil {
			return err
		}
		return withApp(cmd.Context(), func(ctx context.Context, app *bootstrap.App) error {
			data, err := app.ReportUC.Export(ctx, statuses, reportLimit)
			if err != nil {
				return err
			}
			if err := os.WriteFile(reportOut, data, 0o644); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d bytes to %s\n", len(data), reportOut)
			return nil
		})
	},
}

// queueDeferred tolerates a stored submission whose queue publish failed;
// the worker's redrive sweeper picks it up later.
func queueDeferred(cmd *cobra.Command, sub *domain.Submission, err error) error {
	if err == nil || sub == nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "warning: submission %s stored but not queued: %v\n", sub.ID, err)
	return nil
}

func init() {
	submitCmd.Flags().BoolVar(&submitHotNews, "hot-news", false, "Mark the resulting tutorial as hot news")

	advanceCmd.Flags().DurationVar(&advanceBudget, "budget", 0, "Time budget for starting steps (defaults to PIPELINE_BUDGET)")
	advanceCmd.Flags().BoolVar(&advanceHotNews, "hot-news", false, "Generate in hot-news mode")

	retryCmd.Flags().BoolVar(&retryFromScratch, "from-scratch", false, "Discard extracted text, classification and generated tutorial")

	retryAllCmd.Flags().IntVar(&retryAllLimit, "limit", 100, "Maximum number of submissions to re-enqueue")

	reportCmd.Flags().StringVarP(&reportOut, "out", "o", "submissions.xlsx", "Output file")
	reportCmd.Flags().StringSliceVar(&reportStatuses, "status", nil, "Only include these statuses (repeatable or comma separated)")
	reportCmd.Flags().IntVar(&reportLimit, "limit", 1000, "Maximum number of rows")

	rootCmd.AddCommand(submitCmd, getCmd, advanceCmd, retryCmd, retryAllCmd, reportCmd)
}
