package main

import (
	"github.com/spf13/cobra"

	"github.com/Kiranbanna12/setup-first-sub002/migrations"
	"github.com/Kiranbanna12/setup-first-sub002/pkg/config"
	"github.com/Kiranbanna12/setup-first-sub002/pkg/pg"
)

func newMigrateCmd() *cobra.Command {
	var fromDisk bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long:  "migrate applies the embedded schema migrations. With --from-disk it reads PG_MIGRATIONS_PATH instead.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				appCfg appConfig
				pgCfg  pg.Config
			)
			if err := config.Load(&appCfg); err != nil {
				return err
			}
			if err := config.Load(&pgCfg); err != nil {
				return err
			}
			log := newLogger(appCfg)

			ctx := cmd.Context()
			pool, err := pg.Connect(ctx, pgCfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			if fromDisk {
				return pg.Migrate(ctx, pool, pgCfg, nil, log)
			}
			return pg.Migrate(ctx, pool, pgCfg, migrations.FS, log)
		},
	}
	cmd.Flags().BoolVar(&fromDisk, "from-disk", false, "read migrations from PG_MIGRATIONS_PATH")
	return cmd
}
