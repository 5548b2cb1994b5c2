package sqldb

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
)

type MySQLDialect struct{}

func (MySQLDialect) Name() string { return "mysql" }

func (MySQLDialect) DriverName() string { return "mysql" }

// DSN forces parseTime and UTC so DATETIME columns scan into time.Time, and
// clientFoundRows so an UPDATE that changes nothing still counts its row.
func (MySQLDialect) DSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.ClientFoundRows = true
	return cfg.FormatDSN(), nil
}

func (MySQLDialect) ConfigureConnection(db *sql.DB, maxConns int) {
	if maxConns <= 0 {
		maxConns = 10
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns / 2)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(1 * time.Minute)
}

const (
	mysqlDupEntry          = 1062
	mysqlNoReferencedRow   = 1452
	mysqlNoReferencedRowV1 = 1216
)

func (MySQLDialect) IsUniqueViolation(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDupEntry
}

func (MySQLDialect) IsForeignKeyViolation(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && (me.Number == mysqlNoReferencedRow || me.Number == mysqlNoReferencedRowV1)
}
