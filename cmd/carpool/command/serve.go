package command

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/ecoride/carpool/internal/config"
	"github.com/ecoride/carpool/internal/logging"
)

var serveWorkers bool

func init() {
	rootCmd.Flags().BoolVar(&serveWorkers, "workers", true, "run the sweeper and the outbox relay in process")
}

func runServe(_ *cobra.Command, _ []string) error {
	app, err := loadApp()
	if err != nil {
		return err
	}
	defer app.Close()
	app.Redis = config.NewRedisClient()

	ctx, stop := signalContext()
	defer stop()

	var wg sync.WaitGroup
	if serveWorkers {
		relay, err := app.Relay()
		if err != nil {
			return err
		}
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = app.Rides.RunSweeper(ctx, app.Core.SweepInterval)
		}()
		go func() {
			defer wg.Done()
			_ = relay.Run(ctx, app.Queue.PollInterval)
		}()
	}

	e := app.Router()
	addr := ":" + app.Cfg.Port
	errc := make(chan error, 1)
	go func() {
		logging.Info(ctx, "listening", logging.Component("http"), slog.String("addr", addr),
			slog.String("env", app.Cfg.Env), slog.String("store", app.Cfg.StoreDriver))
		errc <- e.Start(addr)
	}()

	select {
	case err = <-errc:
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err = e.Shutdown(shutdownCtx)
	}
	stop()
	wg.Wait()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
