package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/classline/classline/internal/app"
	"github.com/classline/classline/internal/config"
)

func newLoginCmd(loadConfig func() (*config.Config, error)) *cobra.Command {
	var phone string
	var password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate and persist the session",
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

			user, err := engine.Login(cmd.Context(), phone, password)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s)\n", user.Name, user.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&phone, "phone", "", "Phone number")
	cmd.Flags().StringVar(&password, "password", "", "Password")
	_ = cmd.MarkFlagRequired("phone")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
