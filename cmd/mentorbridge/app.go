package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/alicebob/miniredis/v2"
	"github.com/mentorbridge/mentorbridge"
	"github.com/mentorbridge/mentorbridge/internal/logging"
	"github.com/mentorbridge/mentorbridge/internal/settings"
	"github.com/mentorbridge/mentorbridge/store"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// app holds the process-wide resources shared by the subcommands.
type app struct {
	settings *settings.Settings
	logger   *logrus.Logger
	store    *store.Store
	closers  []func()
}

func openApp(configPath string) (*app, error) {
	s, err := settings.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger, closeLog, err := logging.New(s.Log)
	if err != nil {
		return nil, err
	}
	a := &app{settings: s, logger: logger, closers: []func(){closeLog}}

	db, err := store.Open(store.Config{
		Driver:     s.Database.Driver,
		DSN:        s.Database.DSN,
		LogQueries: s.Database.LogQueries,
	})
	if err != nil {
		a.close()
		return nil, err
	}
	a.store = db
	a.closers = append(a.closers, func() {
		if err := db.Close(); err != nil {
			logger.WithError(err).Warn("close database")
		}
	})
	logger.WithFields(logrus.Fields{"driver": s.Database.Driver}).Info("database ready")
	return a, nil
}

// redis dials the configured server, or starts an in-process miniredis
// when redis.embedded is set.
func (a *app) redis(ctx context.Context) (redis.UniversalClient, error) {
	cfg := a.settings.Redis
	addr := cfg.Addr
	if cfg.Embedded {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, fmt.Errorf("start embedded redis: %w", err)
		}
		a.closers = append(a.closers, mr.Close)
		addr = mr.Addr()
		a.logger.WithField("addr", addr).Warn("using embedded redis; bookings are lost on exit")
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{addr},
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	a.closers = append(a.closers, func() { _ = client.Close() })

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%w: redis ping %s: %v", mentorbridge.ErrBackendUnavailable, addr, err)
	}
	return client, nil
}

func (a *app) engine(cfg mentorbridge.Config, rdb redis.UniversalClient) (*mentorbridge.Engine, error) {
	b := mentorbridge.New().
		WithConfig(cfg).
		WithCredentialStore(a.store).
		WithMessageStore(a.store).
		WithFeedbackStore(a.store).
		WithLogger(a.logger).
		WithAuditSink(mentorbridge.NewLogrusSink(a.logger.WithField("component", "audit")))
	if rdb != nil {
		b = b.WithRedis(rdb)
	}
	engine, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}
	a.closers = append(a.closers, engine.Close)
	return engine, nil
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

var errMissingFlag = errors.New("missing required flag")
