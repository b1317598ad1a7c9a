package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sandevgo/tuskmem/internal/core"
	"github.com/sandevgo/tuskmem/internal/service/ui"
)

var searchFlags struct {
	user         string
	conversation string
	topK         int
	minScore     float64
}

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search a user's memories",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flushLog := setupLogger(cmd.Context())
		defer flushLog()

		app := NewApp(ctx)
		defer app.Close(ctx)

		topK := searchFlags.topK
		if topK <= 0 {
			topK = app.MemoryCfg.TopK
		}
		results, err := app.Memory.Retrieve(ctx, core.RetrieveRequest{
			Query:          args[0],
			UserID:         searchFlags.user,
			ConversationID: searchFlags.conversation,
			TopK:           topK,
			MinScore:       searchFlags.minScore,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(results) == 0 {
			fmt.Fprintln(out, ui.DescStyle.Render("no memories found"))
			return nil
		}
		for _, r := range results {
			fmt.Fprintf(out, "%s %s %s\n",
				ui.FlagStyle.Render(fmt.Sprintf("%.3f", r.Score)),
				ui.UsageStyle.Render(string(r.Role)),
				r.Content,
			)
			fmt.Fprintf(out, "      %s\n", ui.DescStyle.Render(fmt.Sprintf("%s  %s",
				r.ConversationID,
				r.Timestamp.Format("2006-01-02 15:04"),
			)))
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().StringVarP(&searchFlags.user, "user", "u", "", "user id")
	searchCmd.Flags().StringVarP(&searchFlags.conversation, "conversation", "c", "", "limit search to one conversation")
	searchCmd.Flags().IntVarP(&searchFlags.topK, "top-k", "k", 0, "maximum number of results (default from config)")
	searchCmd.Flags().Float64Var(&searchFlags.minScore, "min-score", 0, "minimum similarity (default from config)")
	_ = searchCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(searchCmd)
}
