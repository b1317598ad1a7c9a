package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sandevgo/tuskmem/internal/service/memory"
	"github.com/sandevgo/tuskmem/internal/service/ui"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index pending conversations once and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flushLog := setupLogger(cmd.Context())
		defer flushLog()

		app := NewApp(ctx)
		defer app.Close(ctx)

		indexed, err := newIndexer(app).RunOnce(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %d\n", ui.UsageStyle.Render("indexed conversations:"), indexed)
		return nil
	},
}

func newIndexer(app *App) *memory.Indexer {
	return memory.NewIndexer(
		app.Turns,
		app.Turns,
		app.Memory,
		app.Metrics,
		app.AppCfg.IndexInterval,
		app.AppCfg.IndexBatchSize,
	)
}

func init() {
	rootCmd.AddCommand(indexCmd)
}
