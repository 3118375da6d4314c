/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/marvinalivio/p4-backend/config"
	"github.com/marvinalivio/p4-backend/internal/db"
	"github.com/marvinalivio/p4-backend/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// migrateCmd represents the migrate command.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long: `Prepares the configured store. PostgreSQL runs the SQL migrations;
MongoDB creates the collection indexes.`,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all up migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log := setup()
		defer func() { _ = log.Sync() }()

		switch cfg.Store.Driver {
		case config.StoreDriverMongo:
			return ensureMongoIndexes(cmd.Context(), cfg.Store, log)
		case config.StoreDriverPostgres:
			return runMigrations(cfg.Store, log, func(m *migrate.Migrate) error { return m.Up() })
		default:
			log.Info("nothing to migrate", zap.String("driver", cfg.Store.Driver))
			return nil
		}
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Revert all migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log := setup()
		defer func() { _ = log.Sync() }()

		if cfg.Store.Driver != config.StoreDriverPostgres {
			return fmt.Errorf("migrate down is only supported for %s", config.StoreDriverPostgres)
		}
		return runMigrations(cfg.Store, log, func(m *migrate.Migrate) error { return m.Down() })
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
}

func runMigrations(cfg config.StoreConfig, log *zap.Logger, step func(*migrate.Migrate) error) error {
	migrator, err := migrate.New("file://"+cfg.MigrationsPath, db.PostgresURL(cfg.Database))
	if err != nil {
		return fmt.Errorf("init migrator failed: %w", err)
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := step(migrator); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("migrations already applied")
			return nil
		}
		return fmt.Errorf("migrate failed: %w", err)
	}

	version, dirty, err := migrator.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("read migration version: %w", err)
	}
	log.Info("migrations applied", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}

func ensureMongoIndexes(ctx context.Context, cfg config.StoreConfig, log *zap.Logger) error {
	client, coll, err := db.OpenMongo(ctx, cfg.Mongo)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Disconnect(context.Background())
	}()

	if err := store.NewMongoUserRepository(coll).EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("ensure mongo indexes: %w", err)
	}
	log.Info("mongo indexes ensured", zap.String("collection", cfg.Mongo.Collection))
	return nil
}
