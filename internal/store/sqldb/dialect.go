package sqldb

import (
	"database/sql"
	"fmt"
	"strings"
)

// Dialect covers what differs between the database/sql backends. Queries are
// written once with ? placeholders, which both drivers accept.
type Dialect interface {
	// Name is the driver name used by config and migrations.
	Name() string

	// DriverName returns the name registered with database/sql.
	DriverName() string

	// DSN normalizes a user supplied connection string.
	DSN(dsn string) (string, error)

	// ConfigureConnection applies pool settings.
	ConfigureConnection(db *sql.DB, maxConns int)

	IsUniqueViolation(err error) bool
	IsForeignKeyViolation(err error) bool
}

func NewDialect(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		return SQLiteDialect{}, nil
	case "mysql":
		return MySQLDialect{}, nil
	default:
		return nil, fmt.Errorf("sqldb: unsupported driver %q", driver)
	}
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
