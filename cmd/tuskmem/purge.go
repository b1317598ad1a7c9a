package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sandevgo/tuskmem/internal/service/ui"
)

var purgeFlags struct {
	conversation string
	user         string
}

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete the memories of a conversation or a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		if (purgeFlags.conversation == "") == (purgeFlags.user == "") {
			return errors.New("exactly one of --conversation or --user is required")
		}

		ctx, flushLog := setupLogger(cmd.Context())
		defer flushLog()

		app := NewApp(ctx)
		defer app.Close(ctx)

		var err error
		scope := "conversation " + purgeFlags.conversation
		if purgeFlags.user != "" {
			scope = "user " + purgeFlags.user
			err = app.Memory.DeleteUserMemory(ctx, purgeFlags.user)
		} else {
			err = app.Memory.DeleteConversationMemory(ctx, purgeFlags.conversation)
		}
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", ui.UsageStyle.Render("purged"), scope)
		return nil
	},
}

func init() {
	purgeCmd.Flags().StringVarP(&purgeFlags.conversation, "conversation", "c", "", "conversation id")
	purgeCmd.Flags().StringVarP(&purgeFlags.user, "user", "u", "", "user id")
	rootCmd.AddCommand(purgeCmd)
}
