package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vetclinic/clinic-session/internal/core/domain"
)

var (
	loginEmail    string
	loginPassword string
	loginClient   bool
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and store the session",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.ready(ctx); err != nil {
			return err
		}

		var snap domain.Snapshot
		if loginClient {
			snap, err = a.manager.ClientLogin(ctx, loginEmail, loginPassword)
		} else {
			snap, err = a.manager.Login(ctx, loginEmail, loginPassword)
		}
		if err != nil {
			var le *domain.LoginError
			if errors.As(err, &le) {
				return fmt.Errorf("%s", domain.DisplayMessage(err))
			}
			return err
		}
		return printJSON(cmd.OutOrStdout(), snap)
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "Account email")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "Account password")
	loginCmd.Flags().BoolVar(&loginClient, "client", false, "Use the client portal login")
	_ = loginCmd.MarkFlagRequired("email")
	_ = loginCmd.MarkFlagRequired("password")
}
