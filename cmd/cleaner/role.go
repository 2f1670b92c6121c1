package main

import (
	"fmt"

	"remoteworks-cleaner/internal/models/entities"

	"github.com/spf13/cobra"
)

func newSetAdminRoleCmd(setup setupFunc) *cobra.Command {
	var role string

	cmd := &cobra.Command{
		Use:   "set-admin-role <email>",
		Short: "Grant a role to the user with the given email",
		Long: `Grant a role to the user with the given email.

Only the role field is changed. The command fails when no user or more
than one user has the email.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, ctx, cancel, err := setup(cmd)
			if err != nil {
				return err
			}
			defer cancel()
			defer rt.close()

			result, err := rt.app.Roles.SetUserRole(ctx, entities.RoleUpdateRequest{
				Email: args[0],
				Role:  role,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "User:          %s (%s)\n", result.Email, result.UserID)
			fmt.Fprintf(out, "Role before:   %q\n", result.PreviousRole)
			fmt.Fprintf(out, "Role after:    %q\n", result.CurrentRole)
			return nil
		},
	}

	cmd.Flags().StringVar(&role, "role", entities.DefaultAdminRole, "Role to assign")
	return cmd
}
