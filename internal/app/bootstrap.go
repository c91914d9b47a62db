package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/nsqio/go-nsq"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	"reelsync/backend/internal/config"
	"reelsync/backend/internal/vector"
)

type Dependencies struct {
	DB       *sql.DB
	Weaviate *weaviate.Client
	// NSQProducer is nil unless EXECUTOR=nsq.
	NSQProducer *nsq.Producer
}

func (d *Dependencies) Close() {
	if d.NSQProducer != nil {
		d.NSQProducer.Stop()
	}
	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			slog.Warn("failed to close db", "error", err)
		}
	}
}

// ReadinessChecker is satisfied by the vector store adapter.
type ReadinessChecker interface {
	Ready(ctx context.Context) error
}

func Bootstrap(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPass, cfg.DBName)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	retryDelay := time.Duration(cfg.BootstrapRetryDelaySeconds) * time.Second
	if err := WithRetry(ctx, "db ping", cfg.BootstrapRetryAttempts, retryDelay, db.PingContext); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	if err := migrateUp(db, cfg.MigrationPath); err != nil {
		db.Close()
		return nil, err
	}
	slog.Info("migrations applied")

	wClient, err := weaviate.NewClient(weaviate.Config{Host: cfg.WeaviateHost, Scheme: cfg.WeaviateScheme})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("weaviate client error: %w", err)
	}

	// Collections are created per sender on first write; only readiness is checked here.
	if err := WaitReady(ctx, vector.NewWeaviateSchemaAdapter(wClient), cfg.BootstrapRetryAttempts, retryDelay); err != nil {
		db.Close()
		return nil, fmt.Errorf("weaviate not ready: %w", err)
	}

	deps := &Dependencies{DB: db, Weaviate: wClient}

	if cfg.Executor == config.ExecutorNSQ {
		nsqCfg := nsq.NewConfig()
		producer, err := nsq.NewProducer(cfg.NSQDHost, nsqCfg)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("nsq producer error: %w", err)
		}
		deps.NSQProducer = producer
		createTopics(cfg.NSQDHTTP, config.TopicEventTask)
	}

	return deps, nil
}

func migrateUp(db *sql.DB, path string) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("migration driver error: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance(path, "postgres", driver)
	if err != nil {
		return fmt.Errorf("migration instance error: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up error: %w", err)
	}
	return nil
}

// createTopics pre-creates topics so consumers polling lookupd do not see
// 404s before the first publish.
func createTopics(nsqdHTTP string, topics ...string) {
	create := func(topic string) {
		u := fmt.Sprintf("http://%s/topic/create?topic=%s", nsqdHTTP, url.QueryEscape(topic))
		resp, err := http.Post(u, "application/json", nil) // #nosec G107 -- URL is built from internal NSQ config, not user input
		if err != nil {
			slog.Warn("failed to create NSQ topic", "topic", topic, "error", err)
			return
		}
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Warn("failed to close NSQ topic creation response body", "error", closeErr)
		}
	}

	go func() {
		time.Sleep(2 * time.Second)
		for _, t := range topics {
			create(t)
		}
	}()
}

// WithRetry calls fn up to attempts times, sleeping delay between failures.
func WithRetry(ctx context.Context, what string, attempts int, delay time.Duration, fn func(context.Context) error) error {
	if attempts <= 0 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		slog.Warn("bootstrap step failed, retrying", "step", what, "attempt", i+1, "max_attempts", attempts, "error", err)
		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return err
}

// WaitReady polls checker until the vector store reports ready.
func WaitReady(ctx context.Context, checker ReadinessChecker, attempts int, delay time.Duration) error {
	return WithRetry(ctx, "vector store ready", attempts, delay, checker.Ready)
}
