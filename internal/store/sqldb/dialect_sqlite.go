package sqldb

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
)

type SQLiteDialect struct{}

func (SQLiteDialect) Name() string { return "sqlite" }

func (SQLiteDialect) DriverName() string { return "sqlite3" }

// DSN turns on foreign keys, WAL and a busy timeout for every pooled
// connection; PRAGMAs issued once would only reach a single connection.
func (SQLiteDialect) DSN(dsn string) (string, error) {
	params := []string{"_foreign_keys=on", "_journal_mode=WAL", "_busy_timeout=5000"}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	var missing []string
	for _, p := range params {
		key, _, _ := strings.Cut(p, "=")
		if !strings.Contains(dsn, key+"=") {
			missing = append(missing, p)
		}
	}
	if len(missing) == 0 {
		return dsn, nil
	}
	return dsn + sep + strings.Join(missing, "&"), nil
}

// ConfigureConnection keeps a single writer; SQLite serializes writes anyway
// and one connection avoids SQLITE_BUSY inside transactions.
func (SQLiteDialect) ConfigureConnection(db *sql.DB, _ int) {
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxIdleTime(5 * time.Minute)
}

func (SQLiteDialect) IsUniqueViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) &&
		(se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey)
}

func (SQLiteDialect) IsForeignKeyViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintForeignKey
}
