package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newConversationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conversations",
		Short: "List conversations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			controller, _, cleanup, err := buildController(cfg, nil)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := rootContext(cmd)
			if err := controller.SyncConversations(ctx); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, conv := range controller.Conversations() {
				fmt.Fprintf(out, "%s  %s  %s\n",
					conv.CreateTime.Format("2006-01-02 15:04"),
					conv.ID,
					titleStyle.Render(conv.Title),
				)
			}
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete <conversation-id>",
		Short: "Delete a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			controller, _, cleanup, err := buildController(cfg, nil)
			if err != nil {
				return err
			}
			defer cleanup()

			return controller.DeleteConversation(rootContext(cmd), args[0])
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete the entire conversation history",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			_, apiClient, cleanup, err := buildController(cfg, nil)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := apiClient.DeleteAllConversations(rootContext(cmd)); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "conversation history cleared")
			return nil
		},
	}

	cmd.AddCommand(del, clearCmd)
	return cmd
}
