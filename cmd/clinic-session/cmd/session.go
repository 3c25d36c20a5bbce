package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vetclinic/clinic-session/internal/core/domain"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and clear the stored session",
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
		snap, err := a.manager.Logout(ctx)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), snap)
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Restore the stored session and print it",
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
		return printJSON(cmd.OutOrStdout(), a.manager.Snapshot())
	},
}

var accessCmd = &cobra.Command{
	Use:   "access [role...]",
	Short: "Check the stored staff session against roles",
	Example: `  clinic-session access ADMIN VET
  clinic-session access ADMIN,RECEPTION`,
	RunE: func(cmd *cobra.Command, args []string) error {
		roles := domain.ParseRoles(strings.Join(args, ","))
		for _, r := range roles {
			if !r.Valid() {
				return fmt.Errorf("unknown role %q", r)
			}
		}

		ctx := cmd.Context()
		a, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.ready(ctx); err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), a.manager.HasAccess(roles...))
	},
}

func init() {
	rootCmd.AddCommand(logoutCmd, whoamiCmd, accessCmd)
}
