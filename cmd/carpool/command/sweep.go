package command

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/ecoride/carpool/internal/logging"
)

var sweepOnce bool

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Start departed rides and complete rides past their grace period",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		app, err := loadApp()
		if err != nil {
			return err
		}
		defer app.Close()
		ctx, stop := signalContext()
		defer stop()

		if sweepOnce {
			res, err := app.Rides.Sweep(ctx)
			if err != nil {
				return err
			}
			logging.Info(ctx, "sweep done", logging.Component("sweeper"),
				logging.Count("started", res.Started), logging.Count("completed", res.Completed))
			return nil
		}
		if err := app.Rides.RunSweeper(ctx, app.Core.SweepInterval); err != nil && !errors.Is(err, ctx.Err()) {
			return err
		}
		return nil
	},
}

func init() {
	sweepCmd.Flags().BoolVar(&sweepOnce, "once", false, "run a single pass and exit")
	rootCmd.AddCommand(sweepCmd)
}
