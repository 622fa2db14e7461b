// Package command provides the carpool CLI. The root command starts the
// HTTP API; sub-commands run the schema migration and the background
// workers.
//
//	./carpool [--env-file .env]       # HTTP API with sweeper and relay
//	./carpool migrate
//	./carpool relay                   # outbox relay only
//	./carpool dispatch                # broker consumer writing notifications
//	./carpool sweep [--once]          # departure and completion sweeper
package command

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ecoride/carpool/internal/config"
	"github.com/ecoride/carpool/internal/logging"
	"github.com/ecoride/carpool/internal/service"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "carpool",
	Short: "Carpooling engine: rides, bookings, credits and reviews",
	Long: `Carpooling engine exposing a JSON API for drivers, passengers
and staff. Bookings hold credits until the ride completes, reviews go
through moderation and every state change is announced through a
transactional outbox relayed to RabbitMQ or dispatched in process.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		config.LoadDotenv(envFile)
	},
	RunE: runServe,
}

// Execute runs the most specific command for the CLI arguments.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file read before the environment")
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// loadApp reads the configuration, sets up logging and wires the engine.
func loadApp() (*service.App, error) {
	cfg := config.Load()
	logging.Setup(cfg.Env, cfg.LogLevel)
	app, err := service.New(cfg, config.LoadCoreConfig(), config.LoadQueueConfig())
	if err != nil {
		return nil, fmt.Errorf("wiring engine: %w", err)
	}
	return app, nil
}
