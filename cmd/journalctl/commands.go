package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"example.com/futureself/internal/api"
	"example.com/futureself/internal/bootstrap"
	"example.com/futureself/internal/config"
	"example.com/futureself/internal/domain"
	"example.com/futureself/internal/logging"
	"example.com/futureself/internal/persistence/postgres"
)

type rootFlags struct {
	driver     string
	sqlitePath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:          "journalctl",
		Short:        "Inspect and maintain the FutureSelf journal store",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flags.driver, "driver", "", "Store driver (postgres or sqlite); overrides STORE_DRIVER")
	root.PersistentFlags().StringVar(&flags.sqlitePath, "sqlite-path", "", "SQLite file; overrides SQLITE_PATH")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Log store activity to stderr")

	root.AddCommand(newStatsCmd(flags), newMigrateCmd(flags))
	return root
}

func (f *rootFlags) load() (config.Config, *zap.Logger, error) {
	cfg, err := config.LoadWorker()
	if err != nil {
		return config.Config{}, nil, err
	}
	if f.driver != "" {
		cfg.StoreDriver = f.driver
	}
	if f.sqlitePath != "" {
		cfg.SQLitePath = f.sqlitePath
	}
	level := "error"
	if f.verbose {
		level = "debug"
	}
	return cfg, logging.Must(level, "console"), nil
}

func newStatsCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print the dashboard statistics as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := flags.load()
			if err != nil {
				return err
			}
			loc, err := cfg.Location()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			store, err := bootstrap.OpenStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := domain.NewService(store, domain.WithLocation(loc)).Stats(ctx)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(api.NewStatsView(stats))
		},
	}
}

func newMigrateCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending Postgres migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := flags.load()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			pool, err := bootstrap.OpenPostgres(ctx, cfg.PostgresURL)
			if err != nil {
				return err
			}
			defer pool.Close()

			applied, err := postgres.Migrate(ctx, pool)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
				return nil
			}
			for _, version := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", version)
			}
			return nil
		},
	}
}
