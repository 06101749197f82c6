package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/sessionauth"
	"github.com/MrEthical07/sessionauth/internal/stores/memory"
	"github.com/MrEthical07/sessionauth/internal/stores/postgres"
	"github.com/MrEthical07/sessionauth/mail"
)

// deps holds the backing services for one process.
type deps struct {
	users  sessionauth.UserStore
	codes  sessionauth.CodeStore
	redis  redis.UniversalClient
	mailer sessionauth.Mailer
	pool   *pgxpool.Pool

	closers []func()
}

// Close releases everything opened by openDeps, in reverse order.
func (d *deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
	d.closers = nil
}

// openDeps connects to Postgres, Redis and Resend, or in dev mode starts an
// in-process Redis with memory stores and a logging mailer.
func openDeps(ctx context.Context, cfg *appConfig, logger *slog.Logger) (_ *deps, err error) {
	d := &deps{}
	defer func() {
		if err != nil {
			d.Close()
		}
	}()

	if cfg.Dev {
		return d, d.openDev(cfg, logger)
	}

	pool, err := openPool(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	d.pool = pool
	d.closers = append(d.closers, pool.Close)
	d.users = postgres.NewUserStore(pool)
	d.codes = postgres.NewCodeStore(pool)

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	d.closers = append(d.closers, func() { _ = client.Close() })
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Redis.Addr, err)
	}
	d.redis = client

	mailer, err := mail.NewResendMailer(cfg.Resend)
	if err != nil {
		return nil, fmt.Errorf("resend: %w", err)
	}
	d.mailer = mailer

	if cfg.Database.AutoMigrate {
		if err := migratePool(ctx, pool); err != nil {
			return nil, err
		}
		logger.Info("authd.migrate.done")
	}
	return d, nil
}

func (d *deps) openDev(cfg *appConfig, logger *slog.Logger) error {
	mr, err := miniredis.Run()
	if err != nil {
		return fmt.Errorf("start miniredis: %w", err)
	}
	d.closers = append(d.closers, mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	d.closers = append(d.closers, func() { _ = client.Close() })

	d.redis = client
	d.users = memory.NewUserStore()
	d.codes = memory.NewCodeStore()
	d.mailer = mail.NewLogMailer(logger.With("component", "mail"))

	if cfg.Auth.JWT.AccessSecret == "" {
		if cfg.Auth.JWT.AccessSecret, err = randomSecret(); err != nil {
			return err
		}
	}
	if cfg.Auth.JWT.RefreshSecret == "" {
		if cfg.Auth.JWT.RefreshSecret, err = randomSecret(); err != nil {
			return err
		}
	}
	if cfg.Auth.Email.AppOrigin == "" {
		cfg.Auth.Email.AppOrigin = "http://localhost:5173"
	}
	cfg.HTTP.CookieSecure = false

	logger.Warn("authd.dev_mode",
		"redis", mr.Addr(),
		"app_origin", cfg.Auth.Email.AppOrigin,
		"cookie_secure", false,
	)
	return nil
}

func openPool(ctx context.Context, cfg databaseConfig) (*pgxpool.Pool, error) {
	if cfg.URL == "" {
		return nil, errors.New("database url is required outside dev mode")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return pool, nil
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
