package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/catalystwells/grantd/internal/config"
	"github.com/catalystwells/grantd/internal/observability/logger"
	migrations "github.com/catalystwells/grantd/migrations/postgres"
)

func newMigrateCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Aplica las migraciones SQL embebidas (solo postgres)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(f)
			if err != nil {
				return err
			}
			if cfg.Storage.Driver != config.DriverPostgres {
				return fmt.Errorf("migrate requires storage driver %q, got %q", config.DriverPostgres, cfg.Storage.Driver)
			}

			ctx := cmd.Context()
			st, err := openPostgres(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			n, err := st.Migrate(ctx, migrations.FS, migrations.Dir)
			if err != nil {
				return err
			}
			logger.Named("migrate").Info("migrations applied", logger.Count(n))
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", n)
			return nil
		},
	}
}
