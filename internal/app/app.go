// Package app wires adapters, use cases and the HTTP surface.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/redis/go-redis/v9"

	"dainage/internal/adapter/mysql"
	"dainage/internal/adapter/postgres"
	"dainage/internal/api"
	"dainage/internal/cache"
	"dainage/internal/config"
	"dainage/internal/migrations"
	"dainage/internal/ports"
	"dainage/internal/usecase"
)

type App struct {
	log    *slog.Logger
	cfg    config.Config
	db     *sql.DB
	rdb    *redis.Client
	sink   *mysql.Client
	export *usecase.ExportUseCase
	router http.Handler
}

func New(ctx context.Context, log *slog.Logger, cfg config.Config) (*App, error) {
	a := &App{log: log, cfg: cfg}

	db, err := openPostgres(ctx, cfg.PG.DSN)
	if err != nil {
		return nil, err
	}
	a.db = db

	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	store := postgres.NewStore(db)

	var sessions ports.SessionGateway = store
	if cfg.Redis.Addr != "" {
		rdb, err := openRedis(ctx, cfg.Redis)
		if err != nil {
			db.Close()
			return nil, err
		}
		a.rdb = rdb
		sessions = cache.NewSessionCache(store, rdb, cfg.Redis.TTL, log)
		log.Info("active-session cache enabled", slog.String("addr", cfg.Redis.Addr))
	}

	if cfg.Export.DSN != "" {
		sink, err := mysql.NewClient(ctx, cfg.Export.DSN, log)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.sink = sink
		a.export = &usecase.ExportUseCase{Log: log, Source: store, Sink: sink}
		log.Info("analytics export enabled", slog.Duration("interval", cfg.Export.Interval))
	}

	a.router = api.NewRouter(api.Deps{
		Sessions:  sessions,
		Projects:  store,
		Entries:   store,
		Users:     store,
		JWTSecret: []byte(cfg.Auth.JWTSecret),
		TokenTTL:  cfg.Auth.TokenTTL,
		Log:       log,
	})

	return a, nil
}

// Run serves the API until ctx is cancelled, then shuts down gracefully.
// The export loop, when configured, runs alongside.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         ":" + a.cfg.HTTP.Port,
		Handler:      a.router,
		ReadTimeout:  a.cfg.HTTP.ReadTimeout,
		WriteTimeout: a.cfg.HTTP.WriteTimeout,
		IdleTimeout:  a.cfg.HTTP.IdleTimeout,
	}

	if a.export != nil {
		go a.exportLoop(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("starting http server", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// ExportOnce runs a single export over the configured lookback window.
func (a *App) ExportOnce(ctx context.Context) error {
	if a.export == nil {
		return fmt.Errorf("export not configured: MYSQL_DSN is empty")
	}
	return a.export.Run(ctx, time.Now().UTC().Add(-a.cfg.Export.Lookback))
}

func (a *App) exportLoop(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.Export.Interval)
	defer ticker.Stop()
	last := time.Now().UTC().Add(-a.cfg.Export.Lookback)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			next := time.Now().UTC()
			if err := a.export.Run(ctx, last); err != nil {
				a.log.Error("periodic export failed", slog.String("error", err.Error()))
				continue
			}
			last = next
		}
	}
}

// Router exposes the HTTP handler, mainly for tests.
func (a *App) Router() http.Handler { return a.router }

func (a *App) Close() {
	if a.sink != nil {
		_ = a.sink.Close()
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}

func openPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("pg open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	c, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(c); err != nil {
		db.Close()
		return nil, fmt.Errorf("pg ping: %w", err)
	}
	return db, nil
}

func openRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	c, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(c).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}
