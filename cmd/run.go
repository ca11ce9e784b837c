package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tymekw/kotori-notify/internal/app"
	"github.com/tymekw/kotori-notify/internal/config"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <recipient>",
		Short: "Executes a single batch run",
		Long: `Performs one scrape-detect-notify cycle and exits. Unsent
notifications left over from earlier runs are re-attempted first.`,
		Args: requireRecipient,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			a, err := app.New(cmd.Context(), cfg, args[0])
			if err != nil {
				return fmt.Errorf("initialize services: %w", err)
			}
			defer a.Close()

			if err := a.Runner.RunOnce(cmd.Context()); err != nil {
				return fmt.Errorf("run: %w", err)
			}
			return nil
		},
	}
}

// requireRecipient enforces the single positional recipient address; a
// missing recipient is a usage error and the run never starts.
func requireRecipient(_ *cobra.Command, args []string) error {
	if len(args) != 1 || args[0] == "" {
		return fmt.Errorf("exactly one notification recipient address is required")
	}
	return nil
}
