package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/classline/classline/internal/app"
	"github.com/classline/classline/internal/config"
)

func newStatusCmd(loadConfig func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the persisted session and unread summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			engine, err := app.New(cfg)
			if err != nil {
				return err
			}
			defer engine.Close()

			out := cmd.OutOrStdout()
			session := engine.Session()
			if !session.Authenticated {
				fmt.Fprintln(out, "Not logged in")
				return nil
			}

			fmt.Fprintf(out, "Logged in as %s (%s)\n", session.Name, session.Role)
			fmt.Fprintf(out, "Unread: %d\n", engine.Accountant.TotalUnread())
			for _, entry := range engine.Directory.ListVisibleChats(session.Role, session.UserID) {
				marker := " "
				if entry.Chat.Unread > 0 {
					marker = "*"
				}
				fmt.Fprintf(out, "%s %-30s %d\n", marker, entry.Chat.Name, entry.Chat.Unread)
			}
			return nil
		},
	}
}
