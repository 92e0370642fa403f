package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Rafael-2109/frete-sistema-sub002/pkg/registry"
)

func newRegistryCmd(a *app) *cobra.Command {
	var path string
	load := func() (*registry.ActivityRegistry, error) {
		if path != "" {
			return registry.LoadRegistry(path)
		}
		return registry.Default()
	}

	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Inspect the activity registry served by the workers",
		// The registry needs neither config nor the service.
		PersistentPreRunE:  func(*cobra.Command, []string) error { return nil },
		PersistentPostRunE: func(*cobra.Command, []string) error { return nil },
	}
	cmd.PersistentFlags().StringVar(&path, "path", "", "registry file (default: the embedded registry)")

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List registered activities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := load()
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), reg, func(w io.Writer) {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "TASK TYPE\tID\tVERSION\tSTATUS\tTIMEOUT")
				for _, act := range reg.Activities {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", act.TaskType, act.ID, act.Version, act.ImplementationStatus, act.Timeout)
				}
				_ = tw.Flush()
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Check activity naming and compile every input schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := load()
			if err != nil {
				return err
			}
			for _, act := range reg.Activities {
				if _, err := reg.InputValidator(act.TaskType); err != nil {
					return fmt.Errorf("activity %s: %w", act.ID, err)
				}
				if !act.Throws("INVALID_INPUT") {
					return fmt.Errorf("activity %s: INVALID_INPUT missing from errorCodes", act.ID)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registry ok: %d activities\n", len(reg.Activities))
			return nil
		},
	})
	return cmd
}
