package command

import (
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ecoride/carpool/internal/logging"
)

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Drain the outbox to the broker or the inline dispatcher",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		app, err := loadApp()
		if err != nil {
			return err
		}
		defer app.Close()
		relay, err := app.Relay()
		if err != nil {
			return err
		}
		ctx, stop := signalContext()
		defer stop()

		logging.Info(ctx, "relay started", logging.Component("relay"), slog.String("driver", app.Queue.Driver))
		if err := relay.Run(ctx, app.Queue.PollInterval); err != nil && !errors.Is(err, ctx.Err()) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(relayCmd)
}
