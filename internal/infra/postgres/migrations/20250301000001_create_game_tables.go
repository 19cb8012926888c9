package migrations

import (
	"context"

	"echo-trivia/internal/infra/postgres"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

var Migrations = migrate.NewMigrations()

type index struct {
	name    string
	table   string
	columns []string
}

var indexes = []index{
	{"completed_sessions_rank_idx", "completed_sessions", []string{"mode", "bucket", "score"}},
	{"completed_sessions_user_idx", "completed_sessions", []string{"user_id", "mode", "bucket"}},
}

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
				for _, model := range postgres.Models() {
					if _, err := tx.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
						return err
					}
				}
				for _, idx := range indexes {
					_, err := tx.NewCreateIndex().
						Table(idx.table).
						Index(idx.name).
						Column(idx.columns...).
						IfNotExists().
						Exec(ctx)
					if err != nil {
						return err
					}
				}
				return nil
			})
		},
		func(ctx context.Context, db *bun.DB) error {
			models := postgres.Models()
			for i := len(models) - 1; i >= 0; i-- {
				if _, err := db.NewDropTable().Model(models[i]).IfExists().Exec(ctx); err != nil {
					return err
				}
			}
			return nil
		},
	)
}
