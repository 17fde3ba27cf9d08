package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/market-insights/internal/bootstrap"
	"github.com/jonesrussell/market-insights/internal/database"
	"github.com/jonesrussell/market-insights/internal/domain"
)

const defaultStatsWindow = 24 * time.Hour

func statsCommand() *cobra.Command {
	var window time.Duration

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print translation job counts and LLM usage",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx := cmd.Context()
			db, err := bootstrap.SetupDatabase(ctx, cfg.Database, log)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			jobs, err := database.NewJobRepository(db).Stats(ctx)
			if err != nil {
				return err
			}
			usage, err := database.NewUsageLogRepository(db).Summary(ctx, time.Now().Add(-window))
			if err != nil {
				return err
			}

			renderStats(cmd.OutOrStdout(), jobs, usage, window)
			return nil
		},
	}
	cmd.Flags().DurationVar(&window, "window", defaultStatsWindow, "usage summary window")
	return cmd
}

func renderStats(w io.Writer, jobs *domain.JobStats, usage *domain.UsageSummary, window time.Duration) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.SetTitle("Translation jobs")
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
	t.AppendHeader(table.Row{"Status", "Jobs"})
	t.AppendRows([]table.Row{
		{domain.JobStatusPending, jobs.Pending},
		{domain.JobStatusProcessing, jobs.Processing},
		{domain.JobStatusRetry, jobs.Retry},
		{domain.JobStatusCompleted, jobs.Completed},
		{domain.JobStatusFailed, jobs.Failed},
	})
	total := jobs.Pending + jobs.Processing + jobs.Retry + jobs.Completed + jobs.Failed
	t.AppendFooter(table.Row{"Total", total})
	t.Render()

	u := table.NewWriter()
	u.SetOutputMirror(w)
	u.SetStyle(table.StyleRounded)
	u.SetTitle("LLM usage, last %s", window)
	u.AppendHeader(table.Row{"Calls", "Failures", "Input tokens", "Output tokens", "Cost (USD)"})
	u.AppendRow(table.Row{
		usage.Calls,
		usage.Failures,
		usage.InputTokens,
		usage.OutputTokens,
		fmt.Sprintf("%.6f", usage.CostUSD),
	})
	u.Render()
}
