package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ecoride/carpool/internal/config"
	"github.com/ecoride/carpool/internal/database"
	"github.com/ecoride/carpool/internal/logging"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the MySQL schema",
	Long: `Applies the embedded schema to the configured MySQL database.
Statements are idempotent, so running it twice is harmless.`,
	Args: cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg := config.Load()
		logging.Setup(cfg.Env, cfg.LogLevel)
		if cfg.StoreDriver != config.StoreMySQL {
			return errors.New("migrate needs STORE_DRIVER=mysql")
		}
		db, err := database.Open(cfg.DB)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := database.Migrate(ctx, db); err != nil {
			return err
		}
		logging.Info(ctx, "schema applied", logging.Component("migrate"))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
