package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nhle/taskflow/internal/output"
)

func loginCmd(rt *runtime) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the TaskFlow backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := rt.open(ctx); err != nil {
				return err
			}
			if rt.opts.Interactive {
				if err := promptCredentials(&email, &password); err != nil {
					return err
				}
			}

			s, err := rt.session.Login(ctx, email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s)\n", s.Name, s.Role)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password (prompted when omitted)")
	return cmd
}

func logoutCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := rt.open(ctx); err != nil {
				return err
			}
			if _, ok := rt.session.Current(); !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "Not logged in")
				return nil
			}
			if err := rt.session.Logout(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func whoamiCmd(rt *runtime) *cobra.Command {
	var remote bool
	var format string

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := output.ParseFormat(format)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			s, err := rt.requireSession(ctx)
			if err != nil {
				return err
			}
			if !remote {
				return output.Session(cmd.OutOrStdout(), f, s)
			}

			u, err := rt.session.Profile(ctx)
			if err != nil {
				return err
			}
			return output.User(cmd.OutOrStdout(), f, u)
		},
	}

	cmd.Flags().BoolVar(&remote, "remote", false, "Fetch the profile from the backend")
	cmd.Flags().StringVarP(&format, "output", "o", "table", "Output format: table, json or yaml")
	return cmd
}
