// Package sqlite stores customers in SQLite through the pure-Go modernc driver. An in-memory
// database (":memory:") gives a disposable store for local runs and tests.
package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"northwind/internal/config"

	"go.nhat.io/otelsql"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

const (
	databaseName = "northwind"
	driverName   = "sqlite"
)

// dsnConnector hands database/sql a fixed DSN; the modernc driver has no connector of its own.
type dsnConnector struct {
	dsn    string
	driver driver.Driver
}

func (c dsnConnector) Connect(context.Context) (driver.Conn, error) {
	return c.driver.Open(c.dsn)
}

func (c dsnConnector) Driver() driver.Driver {
	return c.driver
}

// Open opens the database at cfg.URL with call latencies and pool stats reported to
// meterProvider. A nil meterProvider disables the instrumentation.
func Open(ctx context.Context, cfg config.DatabaseConfig, meterProvider metric.MeterProvider, logger *slog.Logger) (*sql.DB, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("database URL is empty in configuration")
	}
	if meterProvider == nil {
		meterProvider = noop.NewMeterProvider()
	}

	base, err := registeredDriver()
	if err != nil {
		return nil, err
	}
	instrumented := otelsql.Wrap(base,
		otelsql.WithMeterProvider(meterProvider),
		otelsql.WithDatabaseName(databaseName),
	)

	logger.Info("Opening SQLite database...", "dsn", cfg.URL)
	db := sql.OpenDB(dsnConnector{dsn: cfg.URL, driver: instrumented})

	// Every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxIdleTime(0)

	if err := initialize(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	if err := otelsql.RecordStats(db,
		otelsql.WithMeterProvider(meterProvider),
		otelsql.WithDatabaseName(databaseName),
	); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to record sqlite pool stats: %w", err)
	}

	logger.Info("Successfully opened SQLite database.", "dsn", cfg.URL)
	return db, nil
}

// registeredDriver returns the driver modernc registered under "sqlite". sql.Open does not connect.
func registeredDriver() (driver.Driver, error) {
	db, err := sql.Open(driverName, "")
	if err != nil {
		return nil, fmt.Errorf("sqlite driver is not registered: %w", err)
	}
	defer db.Close()
	return db.Driver(), nil
}

func initialize(ctx context.Context, db *sql.DB) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply sqlite schema: %w", err)
	}
	return nil
}
