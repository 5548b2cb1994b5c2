package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"Playdatewebserver/internal/auth"
	"Playdatewebserver/internal/config"
	"Playdatewebserver/internal/httpapi"
	"Playdatewebserver/internal/service"
	"Playdatewebserver/internal/store/memory"
	"Playdatewebserver/internal/store/migrations"
	"Playdatewebserver/internal/store/postgres"
	"Playdatewebserver/internal/store/sqldb"
)

// appStore is everything the services need from a backend.
type appStore interface {
	service.UsersStore
	service.AccountStore
	service.AdminUsersStore
	service.FailuresStore
	service.FailureRecorder
	service.ChildrenStore
	service.ConnectionsStore
	service.ActivitiesStore
	service.InvitationsStore
	service.PendingInvitationsStore
	Ping(ctx context.Context) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	logger := newLogger(cfg)
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("open store failed", zap.String("driver", cfg.DBDriver), zap.Error(err))
	}
	defer closeStore()

	now := time.Now
	authSvc := &service.AuthService{
		Users:  st,
		Tokens: auth.NewTokenIssuer([]byte(cfg.JWTSecret), cfg.TokenTTL),
		Logger: logger.Named("auth"),
		Now:    now,
	}
	resolver := &service.InvitationResolver{
		Users:       st,
		Children:    st,
		Connections: st,
		Invitations: st,
		Pending:     st,
		Failures:    st,
		Logger:      logger.Named("resolver"),
		Now:         now,
	}
	materializer := &service.PendingInvitationMaterializer{
		Children:    st,
		Pending:     st,
		Invitations: st,
		Failures:    st,
		Logger:      logger.Named("materializer"),
		Now:         now,
	}

	if cfg.AdminBootstrapPassword != "" {
		created, err := authSvc.EnsureSuperAdmin(ctx, cfg.AdminBootstrapEmail, cfg.AdminBootstrapUsername, cfg.AdminBootstrapPassword)
		if err != nil {
			logger.Fatal("bootstrap admin failed", zap.Error(err))
		}
		logger.Info("admin bootstrap", zap.String("email", cfg.AdminBootstrapEmail), zap.Bool("created", created))
	}

	handler := httpapi.NewRouter(httpapi.RouterOpts{
		Logger:      logger.Named("http"),
		IsProd:      cfg.IsProd(),
		CORSOrigins: cfg.CORSOrigins,
		DBPing:      st.Ping,
		Auth:        authSvc,
		Users:       &service.UsersService{Store: st, Now: now},
		Admin:       &service.AdminService{Users: st, Failures: st, Now: now},
		Children:    &service.ChildrenService{Store: st, Now: now},
		Connections: &service.ConnectionsService{
			Users:        st,
			Children:     st,
			Connections:  st,
			Materializer: materializer,
			Logger:       logger.Named("connections"),
			Now:          now,
		},
		Activities: &service.ActivitiesService{
			Children:   st,
			Activities: st,
			Resolver:   resolver,
			Logger:     logger.Named("activities"),
			Now:        now,
		},
		Invitations: &service.InvitationsService{
			Activities:  st,
			Children:    st,
			Users:       st,
			Invitations: st,
			Pending:     st,
			Resolver:    resolver,
			Now:         now,
		},
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			zap.String("env", cfg.Env),
			zap.String("addr", cfg.Addr),
			zap.String("driver", cfg.DBDriver),
		)
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", zap.Error(err))
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
		}
	}
}

// openStore connects the configured backend and applies migrations when
// enabled. The returned func releases it.
func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (appStore, func(), error) {
	switch cfg.DBDriver {
	case config.DriverMemory:
		logger.Warn("using in-memory store; data is lost on restart")
		return memory.New(), func() {}, nil

	case config.DriverPostgres:
		pool, err := postgres.Open(ctx, cfg.DBDSN, cfg.DBMaxConns)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Migrate {
			db := stdlib.OpenDBFromPool(pool)
			err := migrate(ctx, db, config.DriverPostgres, logger)
			_ = db.Close()
			if err != nil {
				pool.Close()
				return nil, nil, err
			}
		}
		return postgres.New(pool), pool.Close, nil

	default:
		d, err := sqldb.NewDialect(cfg.DBDriver)
		if err != nil {
			return nil, nil, err
		}
		db, err := sqldb.Open(ctx, d, cfg.DBDSN, cfg.DBMaxConns)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Migrate {
			if err := migrate(ctx, db, d.Name(), logger); err != nil {
				_ = db.Close()
				return nil, nil, err
			}
		}
		return sqldb.New(db, d), func() { _ = db.Close() }, nil
	}
}

func migrate(ctx context.Context, db *sql.DB, driver string, logger *zap.Logger) error {
	m, err := migrations.New(db, driver, logger.Named("migrations"))
	if err != nil {
		return err
	}
	if err := m.Up(ctx); err != nil {
		return fmt.Errorf("migrate %s: %w", driver, err)
	}
	v, err := m.Version(ctx)
	if err != nil {
		return fmt.Errorf("migration version: %w", err)
	}
	logger.Info("migrations applied", zap.String("driver", driver), zap.Int64("version", v))
	return nil
}

func newLogger(cfg config.Config) *zap.Logger {
	var zc zap.Config
	if cfg.IsProd() {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zc.OutputPaths = []string{"stdout"}

	level := zapcore.InfoLevel
	if cfg.LogLevel != "" {
		if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
			level = zapcore.InfoLevel
		}
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	logger, err := zc.Build()
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	return logger
}
