package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nhle/taskflow/internal/api"
	"github.com/nhle/taskflow/internal/model"
)

func configCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage taskflow configuration",
	}
	cmd.AddCommand(configInitCmd(rt), configShowCmd(rt), configPathCmd(rt))
	return cmd
}

func configInitCmd(rt *runtime) *cobra.Command {
	var force bool
	var baseURL string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := rt.path()
			if _, err := os.Stat(path); err == nil && !force {
				return &api.ValidationError{Field: "config", Message: path + " already exists (use --force)"}
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}

			cfg := model.DefaultAppConfig()
			if baseURL != "" {
				cfg.Backend.BaseURL = baseURL
			}
			if err := model.SaveConfig(path, cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Backend origin to store in the file")
	return cmd
}

func configShowCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rt.config()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s", rt.path(), data)
			return nil
		},
	}
}

func configPathCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show the configuration file path",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), rt.path())
		},
	}
}
