// Package cmd defines the CLI commands for the kotori-notify executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kotori-notify",
		Short: "Watches a translation-status page and emails on changes",
		Long: `kotori-notify periodically scrapes a light-novel translation status
page, records every per-volume status transition in a durable history,
and emails the subscriber about each change. Notifications that fail to
send are retried at the start of every following run, so a transition is
never silently lost.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newServeCmd())
	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
