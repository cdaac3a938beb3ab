package repomanager

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// sqlOpen is a seam for tests.
var sqlOpen = sql.Open

// Open connects to the database, verifies the connection and applies
// migrations. The caller owns the returned *sql.DB.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, RepositoryManager, error) {
	var (
		m          RepositoryManager
		driverName string
	)
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverPostgres, "pgx", "postgresql":
		m, driverName = NewPostgresRepositoryManager(), "pgx"
	case DriverSQLite, "sqlite3":
		m, driverName = NewSQLiteRepositoryManager(), "sqlite"
		dsn = SQLiteDSN(dsn)
	default:
		return nil, nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sqlOpen(driverName, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", driverName, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping %s: %w", driverName, err)
	}
	if err := m.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return db, m, nil
}

// SQLiteDSN turns a bare path into a modernc DSN with a busy timeout and
// foreign keys enabled. Transactions begin IMMEDIATE so that read-then-write
// transactions queue on the busy timeout instead of failing with SQLITE_BUSY.
// DSNs that already carry parameters are kept as is.
func SQLiteDSN(dsn string) string {
	if strings.Contains(dsn, "?") {
		return dsn
	}
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	return dsn + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_txlock=immediate"
}
