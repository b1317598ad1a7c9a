package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sandevgo/tuskmem/internal/core"
	"github.com/sandevgo/tuskmem/internal/service/ui"
)

var appendFlags struct {
	conversation string
	user         string
	role         string
	index        bool
}

var appendCmd = &cobra.Command{
	Use:   "append [content]",
	Short: "Append a turn to the conversation log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flushLog := setupLogger(cmd.Context())
		defer flushLog()

		app := NewApp(ctx)
		defer app.Close(ctx)

		turn, err := app.Turns.AppendTurn(ctx, core.Turn{
			ConversationID: appendFlags.conversation,
			UserID:         appendFlags.user,
			Role:           core.Role(appendFlags.role),
			Content:        args[0],
			Timestamp:      time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", ui.UsageStyle.Render("appended"), turn.ID)

		if !appendFlags.index {
			return nil
		}
		indexer := newIndexer(app)
		if err := indexer.IndexConversation(ctx, turn.ConversationID, turn.UserID); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.DescStyle.Render("conversation indexed"))
		return nil
	},
}

func init() {
	appendCmd.Flags().StringVarP(&appendFlags.conversation, "conversation", "c", "", "conversation id")
	appendCmd.Flags().StringVarP(&appendFlags.user, "user", "u", "", "user id")
	appendCmd.Flags().StringVarP(&appendFlags.role, "role", "r", string(core.RoleUser), "turn role: user or assistant")
	appendCmd.Flags().BoolVar(&appendFlags.index, "index", false, "index the conversation right away")
	_ = appendCmd.MarkFlagRequired("conversation")
	_ = appendCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(appendCmd)
}
