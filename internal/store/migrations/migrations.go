// Package migrations applies the embedded schema with goose. Each database
// flavour has its own directory of numbered SQL files.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"
	"sync"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed postgres/*.sql sqlite/*.sql mysql/*.sql
var files embed.FS

// goose keeps its dialect and filesystem in package state.
var gooseMu sync.Mutex

type Migrator struct {
	db      *sql.DB
	dialect string
	dir     string
	logger  *zap.Logger
}

// New prepares a migrator for driver, one of postgres, sqlite or mysql.
func New(db *sql.DB, driver string, logger *zap.Logger) (*Migrator, error) {
	var dialect string
	switch driver {
	case "postgres":
		dialect = "postgres"
	case "sqlite":
		dialect = "sqlite3"
	case "mysql":
		dialect = "mysql"
	default:
		return nil, fmt.Errorf("migrations: unsupported driver %q", driver)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Migrator{db: db, dialect: dialect, dir: driver, logger: logger}, nil
}

func (m *Migrator) setup() error {
	goose.SetBaseFS(files)
	goose.SetLogger(gooseLogger{m.logger.Sugar()})
	if err := goose.SetDialect(m.dialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	return nil
}

// Up applies every pending migration.
func (m *Migrator) Up(ctx context.Context) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	if err := m.setup(); err != nil {
		return err
	}
	m.logger.Info("applying database migrations", zap.String("dialect", m.dialect))
	if err := goose.UpContext(ctx, m.db, m.dir); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func (m *Migrator) Version(ctx context.Context) (int64, error) {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	if err := m.setup(); err != nil {
		return 0, err
	}
	v, err := goose.GetDBVersionContext(ctx, m.db)
	if err != nil {
		return 0, fmt.Errorf("get migration version: %w", err)
	}
	return v, nil
}

type gooseLogger struct {
	s *zap.SugaredLogger
}

func (l gooseLogger) Printf(format string, v ...any) {
	l.s.Infof(strings.TrimSpace(format), v...)
}

func (l gooseLogger) Fatalf(format string, v ...any) {
	l.s.Fatalf(strings.TrimSpace(format), v...)
}
