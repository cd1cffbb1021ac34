package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/nhle/taskflow/internal/api"
	"github.com/nhle/taskflow/internal/model"
	"github.com/nhle/taskflow/internal/output"
)

func usersCmd(rt *runtime) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "users",
		Short: "Browse and create users",
	}
	cmd.PersistentFlags().StringVarP(&format, "output", "o", "table", "Output format: table, json or yaml")

	list := func(fetch func(*api.Client, context.Context) ([]model.User, error)) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			f, err := output.ParseFormat(format)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if _, err := rt.requireSession(ctx); err != nil {
				return err
			}
			users, err := fetch(rt.client, ctx)
			if err != nil {
				return err
			}
			return output.Users(cmd.OutOrStdout(), f, users)
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List users visible to you",
			Args:  cobra.NoArgs,
			RunE:  list((*api.Client).ListUsers),
		},
		&cobra.Command{
			Use:   "all",
			Short: "List every user (admin)",
			Args:  cobra.NoArgs,
			RunE:  list((*api.Client).ListAllUsers),
		},
		&cobra.Command{
			Use:   "get ID",
			Short: "Show one user",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				f, err := output.ParseFormat(format)
				if err != nil {
					return err
				}
				ctx := cmd.Context()
				if _, err := rt.requireSession(ctx); err != nil {
					return err
				}
				u, err := rt.client.GetUser(ctx, args[0])
				if err != nil {
					return err
				}
				return output.User(cmd.OutOrStdout(), f, u)
			},
		},
		usersCreateCmd(rt, &format),
	)
	return cmd
}

func usersCreateCmd(rt *runtime, format *string) *cobra.Command {
	var req api.CreateUserRequest

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user (admin)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := output.ParseFormat(*format)
			if err != nil {
				return err
			}
			if err := req.Validate(); err != nil {
				return err
			}
			ctx := cmd.Context()
			if _, err := rt.requireSession(ctx); err != nil {
				return err
			}
			u, err := rt.client.CreateUser(ctx, req)
			if err != nil {
				return err
			}
			return output.User(cmd.OutOrStdout(), f, u)
		},
	}

	cmd.Flags().StringVar(&req.Name, "name", "", "Full name (required)")
	cmd.Flags().StringVar(&req.Email, "email", "", "Email (required)")
	cmd.Flags().StringVar(&req.Password, "password", "", "Initial password (required)")
	return cmd
}
