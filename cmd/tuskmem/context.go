package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sandevgo/tuskmem/internal/service/memory"
)

var contextFlags struct {
	conversation string
	user         string
	topK         int
}

var contextCmd = &cobra.Command{
	Use:   "context [query]",
	Short: "Assemble context for the next response of a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flushLog := setupLogger(cmd.Context())
		defer flushLog()

		app := NewApp(ctx)
		defer app.Close(ctx)

		topK := contextFlags.topK
		if topK <= 0 {
			topK = app.MemoryCfg.TopK
		}
		ac, err := app.Memory.ConversationContext(ctx, contextFlags.conversation, contextFlags.user, args[0], topK)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), memory.FormatContext(ac))
		return nil
	},
}

func init() {
	contextCmd.Flags().StringVarP(&contextFlags.conversation, "conversation", "c", "", "conversation id")
	contextCmd.Flags().StringVarP(&contextFlags.user, "user", "u", "", "user id")
	contextCmd.Flags().IntVarP(&contextFlags.topK, "top-k", "k", 0, "maximum number of entries (default from config)")
	_ = contextCmd.MarkFlagRequired("conversation")
	_ = contextCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(contextCmd)
}
