// Command billingd runs the subscription billing service.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Kiranbanna12/setup-first-sub002/pkg/config"
)

// Set at build time with -ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFiles []string

	root := &cobra.Command{
		Use:           "billingd",
		Short:         "Subscription billing service",
		Long:          "billingd runs checkout, payment verification, cancellation and reconciliation of subscriptions against Razorpay or Stripe.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if len(envFiles) == 0 {
				return nil
			}
			return config.LoadEnv(envFiles...)
		},
	}
	root.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "dotenv files applied over the environment")

	root.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newSweepCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "billingd %s\n", Version)
			if Commit != "unknown" {
				fmt.Fprintf(cmd.OutOrStdout(), "Commit: %s\n", Commit)
			}
		},
	}
}
