package main

import (
	"context"
	"database/sql"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/kotoba/pkg/async"
	"github.com/platinummonkey/kotoba/pkg/billing"
	"github.com/platinummonkey/kotoba/pkg/config"
	"github.com/platinummonkey/kotoba/pkg/observability"
	"github.com/platinummonkey/kotoba/pkg/sso"
	"github.com/platinummonkey/kotoba/pkg/storage/postgres"
)

// jobTimeout bounds a single cleanup pass
const jobTimeout = 5 * time.Minute

var (
	migrateOnly = flag.Bool("migrate", false, "Apply pending database migrations and exit")
	runOnce     = flag.Bool("run-once", false, "Run every cleanup job once and exit")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadJanitorConfig()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	logger := setupLogger(cfg.Observability.LogLevel)

	conn, err := postgres.NewConnectionManager(postgres.ConnectionConfig{
		URL:         cfg.Database.URL,
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		Timeout:     cfg.Database.Timeout,
		MaxLifetime: cfg.Database.MaxLifetime,
		MaxIdleTime: cfg.Database.MaxIdleTime,
	})
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appLogger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	if *migrateOnly {
		if err := postgres.RunMigrations(ctx, conn.DB(), appLogger); err != nil {
			logger.Fatalf("Migrations failed: %v", err)
		}
		logger.Info("Migrations applied")
		return
	}

	j := newJanitor(conn.DB(), cfg.EventRetention, appLogger, logger)

	if *runOnce {
		j.cleanupSessions(ctx)
		j.cleanupEvents(ctx)
		return
	}

	c := cron.New()
	if _, err := c.AddFunc(cfg.SessionsSchedule, func() { j.cleanupSessions(ctx) }); err != nil {
		logger.Fatalf("Failed to schedule session cleanup: %v", err)
	}
	if _, err := c.AddFunc(cfg.EventsSchedule, func() { j.cleanupEvents(ctx) }); err != nil {
		logger.Fatalf("Failed to schedule Stripe event cleanup: %v", err)
	}

	c.Start()
	logger.Info("kotoba janitor started")
	logger.Infof("Session cleanup schedule: %s", cfg.SessionsSchedule)
	logger.Infof("Stripe event cleanup schedule: %s", cfg.EventsSchedule)

	<-ctx.Done()

	logger.Info("Shutting down janitor...")
	// Wait for running jobs
	<-c.Stop().Done()
	logger.Info("Janitor stopped")
}

func setupLogger(level observability.LogLevel) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	parsed, err := logrus.ParseLevel(level.String())
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)
	return logger
}

type janitor struct {
	sessions  *sso.SessionManager
	events    *billing.PostgresEventLog
	retention time.Duration
	logger    *logrus.Logger
}

func newJanitor(db *sql.DB, retention time.Duration, appLogger *observability.Logger, logger *logrus.Logger) *janitor {
	return &janitor{
		sessions:  sso.NewSessionManager(db, sso.SessionConfig{}, appLogger),
		events:    billing.NewPostgresEventLog(db),
		retention: retention,
		logger:    logger,
	}
}

func (j *janitor) cleanupSessions(ctx context.Context) {
	err := async.Run(ctx, jobTimeout, "session cleanup", func(ctx context.Context) error {
		removed, err := j.sessions.CleanupExpiredSessions(ctx)
		if err != nil {
			return err
		}
		j.logger.WithField("removed", removed).Info("Expired sessions removed")
		return nil
	})
	if err != nil {
		j.logger.WithError(err).Error("Session cleanup failed")
	}
}

func (j *janitor) cleanupEvents(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-j.retention)
	err := async.Run(ctx, jobTimeout, "stripe event cleanup", func(ctx context.Context) error {
		removed, err := j.events.DeleteProcessedBefore(ctx, cutoff)
		if err != nil {
			return err
		}
		j.logger.WithFields(logrus.Fields{
			"removed": removed,
			"cutoff":  cutoff.Format(time.RFC3339),
		}).Info("Processed Stripe events pruned")
		return nil
	})
	if err != nil {
		j.logger.WithError(err).Error("Stripe event cleanup failed")
	}
}
