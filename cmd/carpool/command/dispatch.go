package command

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/ecoride/carpool/internal/config"
	"github.com/ecoride/carpool/internal/logging"
)

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Consume events from RabbitMQ and write user notifications",
	Long: `Consumes the notifications queue and stores one notification per
recipient. Redelivered events are written once. Failed deliveries go to
the retry queue and are parked after the configured attempts.`,
	Args: cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		app, err := loadApp()
		if err != nil {
			return err
		}
		defer app.Close()
		if app.Queue.Driver != config.QueueAMQP {
			return errors.New("dispatch needs QUEUE_DRIVER=amqp and the mysql store")
		}
		ctx, stop := signalContext()
		defer stop()

		logging.Info(ctx, "dispatcher started", logging.Component("dispatch"))
		if err := app.Consumer().Run(ctx); err != nil && !errors.Is(err, ctx.Err()) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dispatchCmd)
}
