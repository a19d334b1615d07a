// Package pg bootstraps PostgreSQL for the billing service on pgx/v5.
//
// Connect opens a pgxpool with retries, Migrate applies goose migrations
// (embedded or from disk), Healthcheck returns a readiness probe, and
// AdvisoryLock provides the sweep lock used when Redis is not deployed.
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, cfg, migrations.FS, logger); err != nil {
//		return err
//	}
//
// The Is*Error helpers classify *pgconn.PgError values by SQLSTATE.
package pg
