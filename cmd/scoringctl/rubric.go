package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

func newRubricCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rubric",
		Short: "Manage scoring configurations",
	}
	cmd.AddCommand(newRubricImportCmd(opts), newRubricActivateCmd(opts))
	return cmd
}

func newRubricImportCmd(opts *rootOptions) *cobra.Command {
	var activate bool

	cmd := &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Create a scoring configuration from a YAML rubric",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read rubric: %w", err)
			}

			rt, err := setup(cmd.Context(), opts, true)
			if err != nil {
				return err
			}
			defer rt.cleanup()

			created, err := rt.engine.Configurations.ImportRubric(cmd.Context(), rt.actor, data)
			if err != nil {
				return err
			}
			cfg := created.Configuration
			if activate && !cfg.IsActive {
				if cfg, err = rt.engine.Configurations.Activate(cmd.Context(), rt.actor, cfg.ID); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "created configuration %d %q version %d (active: %t)\n", cfg.ID, cfg.Name, cfg.Version, cfg.IsActive)
			for _, w := range created.Warnings {
				fmt.Fprintf(out, "warning: %s\n", w)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&activate, "activate", false, "Activate the configuration after import")
	return cmd
}

func newRubricActivateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "activate <configuration-id>",
		Short: "Make a configuration the only active one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid configuration id %q", args[0])
			}

			rt, err := setup(cmd.Context(), opts, true)
			if err != nil {
				return err
			}
			defer rt.cleanup()

			cfg, err := rt.engine.Configurations.Activate(cmd.Context(), rt.actor, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "configuration %d %q is now active\n", cfg.ID, cfg.Name)
			return nil
		},
	}
}
