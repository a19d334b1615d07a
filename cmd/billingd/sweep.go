package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newSweepCmd runs one reconciliation pass, for deployments that schedule
// sweeps with cron instead of running serve.
func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Expire overdue subscriptions and warn trials once, then exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.sweeper.Sweep(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "expired=%d warned=%d skipped=%t\n", res.Expired, res.Warned, res.Skipped)
			return err
		},
	}
}
