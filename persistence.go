package accounts

import (
	"context"
	"database/sql"
	"io/fs"

	"github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// OpenSQLite opens a sqlite database suitable for SetupPersistence.
func OpenSQLite(dsn string) (*sql.DB, error) {
	return sql.Open(sqliteshim.ShimName, dsn)
}

// SetupOption customizes persistence bootstrap.
type SetupOption func(*setupOptions)

type setupOptions struct {
	seed bool
}

// WithSeedFixtures loads the embedded fixtures after migrating.
func WithSeedFixtures() SetupOption {
	return func(o *setupOptions) {
		o.seed = true
	}
}

// SetupPersistence registers the package models, runs the embedded
// migrations, and hands back a ready *bun.DB.
func SetupPersistence(ctx context.Context, cfg persistence.Config, db *sql.DB, opts ...SetupOption) (*bun.DB, error) {
	options := &setupOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}

	persistence.RegisterModel((*UserGroup)(nil))
	persistence.RegisterModel((*User)(nil))
	persistence.RegisterModel((*Group)(nil))
	persistence.RegisterModel((*Throttle)(nil))

	client, err := persistence.New(cfg, db, sqlitedialect.New())
	if err != nil {
		return nil, err
	}

	migrations, err := fs.Sub(GetMigrationsFS(), "data/sql/migrations")
	if err != nil {
		return nil, err
	}

	client.RegisterDialectMigrations(
		migrations,
		persistence.WithDialectSourceLabel("data/sql/migrations"),
		persistence.WithValidationTargets("postgres", "sqlite"),
	)

	if err := client.ValidateDialects(ctx); err != nil {
		return nil, err
	}

	if err := client.Migrate(ctx); err != nil {
		return nil, err
	}

	if options.seed {
		client.RegisterFixtures(GetFixturesFS()).AddOptions(persistence.WithTrucateTables())
		if err := client.Seed(ctx); err != nil {
			return nil, err
		}
	}

	return client.DB(), nil
}
