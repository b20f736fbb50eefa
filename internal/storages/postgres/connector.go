// Package postgres implements the wallet stores on PostgreSQL through lib/pq.
package postgres

import (
	"context"
	"database/sql"

	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/Krchnk/valutatrade-wallet/internal/config"
	"github.com/Krchnk/valutatrade-wallet/internal/storages"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            INTEGER PRIMARY KEY,
    username      TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    created_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS balances (
    user_id  INTEGER NOT NULL REFERENCES users (id) ON DELETE CASCADE,
    currency VARCHAR(5) NOT NULL,
    amount   NUMERIC NOT NULL,
    PRIMARY KEY (user_id, currency)
);

CREATE TABLE IF NOT EXISTS exchange_rates (
    from_currency VARCHAR(5) NOT NULL,
    to_currency   VARCHAR(5) NOT NULL,
    rate          NUMERIC NOT NULL CHECK (rate > 0),
    updated_at    TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (from_currency, to_currency)
);

CREATE TABLE IF NOT EXISTS rate_meta (
    id           INTEGER PRIMARY KEY CHECK (id = 1),
    source       TEXT NOT NULL,
    last_refresh TIMESTAMPTZ
);
`

// DB wraps the connection pool shared by the stores.
type DB struct {
	db     *sql.DB
	logger logrus.FieldLogger
}

// Connect opens and pings the database described by cfg.
func Connect(ctx context.Context, cfg config.DBConfig, logger logrus.FieldLogger) (*DB, error) {
	db, err := sql.Open("postgres", cfg.ConnectionString())
	if err != nil {
		logger.WithError(err).Error("failed to open database connection")
		return nil, errors.Wrap(err, "open database")
	}
	if err := db.PingContext(ctx); err != nil {
		logger.WithError(err).Error("failed to ping database")
		db.Close()
		return nil, errors.Wrap(err, "ping database")
	}

	logger.WithFields(logrus.Fields{"host": cfg.Host, "dbname": cfg.DBName}).Info("database connection established")
	return &DB{db: db, logger: logger}, nil
}

func (d *DB) Migrate(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, schema); err != nil {
		d.logger.WithError(err).Error("failed to migrate schema")
		return errors.Wrap(err, "migrate schema")
	}
	return nil
}

func (d *DB) Close() error { return d.db.Close() }

// Open connects, migrates and returns the database-backed stores.
func Open(ctx context.Context, cfg config.DBConfig, logger logrus.FieldLogger) (*storages.Storage, error) {
	d, err := Connect(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := d.Migrate(ctx); err != nil {
		d.Close()
		return nil, err
	}
	return &storages.Storage{
		Users:      &UserStore{db: d.db, logger: logger},
		Portfolios: &PortfolioStore{db: d.db, logger: logger},
		Rates:      &RateCache{db: d.db, logger: logger},
		Close:      d.Close,
	}, nil
}
