package migrations

import (
	"context"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// Tables created by the first migration already carry the column; this only
// catches up Postgres databases created before it existed.
func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			if db.Dialect().Name() != dialect.PG {
				return nil
			}
			_, err := db.ExecContext(ctx,
				`ALTER TABLE tower_progress ADD COLUMN IF NOT EXISTS applied_attempts jsonb NOT NULL DEFAULT '[]'`)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			if db.Dialect().Name() != dialect.PG {
				return nil
			}
			_, err := db.ExecContext(ctx, `ALTER TABLE tower_progress DROP COLUMN IF EXISTS applied_attempts`)
			return err
		},
	)
}
