package main

import (
	"fmt"

	"github.com/danmuck/uwbranging/internal/config"
	"github.com/spf13/cobra"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create or check uwbctl config files",
	}
	cmd.AddCommand(configInitCmd(), configValidateCmd())
	return cmd
}

func configInitCmd() *cobra.Command {
	var (
		kind  string
		force bool
	)
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a config template",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "uwbctl.toml"
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.WriteTemplate(path, kind, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s config to %s\n", kind, path)
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "sim", "template kind (sim, minimal)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	return cmd
}

func configValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <path>",
		Short: "Load and validate a config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}
			if _, err := loadRunConfig(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok node=%s controlees=%d admin=%t\n",
				cfg.Node.ID, cfg.Sim.Controlees, cfg.Admin.Enabled)
			return nil
		},
	}
}
