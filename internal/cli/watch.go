package cli

import (
	"github.com/spf13/cobra"

	"github.com/bellwood/slotwatch/internal/scheduler"
)

func newWatchCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Poll the booking calendar continuously and alert on matching openings",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := buildApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer app.Close()

			opts, err := app.schedulerOptions(false)
			if err != nil {
				return err
			}
			return scheduler.New(app.engine, opts...).Run(ctx)
		},
	}
}

func newOnceCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Run a single poll cycle and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := buildApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer app.Close()

			opts, err := app.schedulerOptions(true)
			if err != nil {
				return err
			}
			return scheduler.New(app.engine, opts...).Run(ctx)
		},
	}
}
