package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/market-insights/internal/bootstrap"
)

func serveCommand() *cobra.Command {
	var noWorker bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long:  "Run the HTTP API. The translation queue worker runs in the same process unless --no-worker is set.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(app *bootstrap.App) error {
				return app.Serve(cmd.Context(), !noWorker)
			})
		},
	}
	cmd.Flags().BoolVar(&noWorker, "no-worker", false, "do not poll the translation queue")
	return cmd
}

func workerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Poll the translation queue without serving HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(app *bootstrap.App) error {
				return app.RunWorker(cmd.Context())
			})
		},
	}
}

func processQueueCommand() *cobra.Command {
	var batchSize int

	cmd := &cobra.Command{
		Use:   "process-queue",
		Short: "Process one batch of pending and due retry jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(app *bootstrap.App) error {
				result, err := app.ProcessQueue(cmd.Context(), batchSize)
				if result != nil {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					if encErr := enc.Encode(result); encErr != nil {
						return encErr
					}
				}
				return err
			})
		},
	}
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "jobs to claim (default translation.batch_size)")
	return cmd
}
