package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/nsqio/go-nsq"

	"reelsync/backend/features/failure"
	"reelsync/backend/features/stats"
	"reelsync/backend/features/webhook"
	"reelsync/backend/internal/adapter/gemini"
	"reelsync/backend/internal/adapter/instagram"
	wstore "reelsync/backend/internal/adapter/weaviate"
	"reelsync/backend/internal/config"
	"reelsync/backend/internal/credential"
	"reelsync/backend/internal/embedding"
	"reelsync/backend/internal/event"
	"reelsync/backend/internal/ledger"
	"reelsync/backend/internal/middleware"
	"reelsync/backend/internal/pending"
	"reelsync/backend/internal/reply"
	"reelsync/backend/internal/retrieval"
	"reelsync/backend/internal/router"
	"reelsync/backend/internal/vector"
	"reelsync/backend/internal/worker"
)

const shutdownTimeout = 30 * time.Second

// Overrides replaces external collaborators. Nil fields are built from config.
type Overrides struct {
	Embedder  embedding.Embedder
	Backend   embedding.Backend
	Schema    vector.SchemaClient
	Captioner router.Captioner
	Notifier  router.Notifier
	Publisher worker.TaskPublisher
}

type App struct {
	Handler    http.Handler
	Dispatcher *router.Dispatcher
	Handlers   *router.Handlers
	Failures   *failure.Service

	cfg      *config.Config
	pool     *worker.Pool
	consumer *nsq.Consumer
	closers  []io.Closer
}

func New(cfg *config.Config, db *sql.DB, deps *Dependencies, o Overrides) (*App, error) {
	a := &App{cfg: cfg}

	// Vector store
	backend, schema := o.Backend, o.Schema
	if backend == nil || schema == nil {
		if deps == nil || deps.Weaviate == nil {
			return nil, errors.New("no vector store configured")
		}
		if backend == nil {
			backend = wstore.NewStore(deps.Weaviate)
		}
		if schema == nil {
			schema = vector.NewWeaviateSchemaAdapter(deps.Weaviate)
		}
	}

	embedder := o.Embedder
	if embedder == nil {
		if cfg.GeminiAPIKey == "" {
			slog.Warn("GEMINI_API_KEY is not set; embedding and captioning will fail")
		}
		e := gemini.NewEmbedder(cfg.GeminiAPIKey, cfg.EmbeddingModel)
		a.closers = append(a.closers, e)
		embedder = e
	}
	captioner := o.Captioner
	if captioner == nil {
		c := gemini.NewCaptioner(cfg.GeminiAPIKey, gemini.CaptionerConfig{
			Model:        cfg.CaptionModel,
			Timeout:      cfg.CaptionTimeout,
			PollInterval: cfg.CaptionPollInterval,
		})
		a.closers = append(a.closers, c)
		captioner = c
	}

	store := embedding.NewStore(embedder, backend, schema, cfg.EmbeddingDim)

	// Postgres repositories
	ledgerRepo := ledger.NewPostgresRepo(db)
	pendingRepo := pending.NewPostgresRepo(db)
	failureRepo := failure.NewPostgresRepo(db)

	notifier := o.Notifier
	if notifier == nil {
		var creds credential.Source = credential.NewPostgresRepo(db)
		if cfg.AccessToken != "" {
			creds = credential.Static{Credential: event.Credential{AccessToken: cfg.AccessToken, UserID: cfg.SelfID}}
		}
		notifier = instagram.NewNotifier(instagram.Config{
			BaseURL:    cfg.GraphAPIURL,
			ChunkSize:  cfg.NotifyChunkSize,
			ChunkDelay: cfg.NotifyChunkDelay,
		}, creds, nil)
	}

	// Search
	searchLog, err := retrieval.NewFileQueryLogger(cfg.SearchLogPath)
	if err != nil {
		slog.Warn("failed to create search logger, falling back to stdout", "error", err)
		searchLog = retrieval.NewQueryLogger(os.Stdout)
	}
	searchService := retrieval.NewService(store, searchLog, cfg.SearchTopK)

	// Handlers and executor
	a.Failures = failure.NewService(failureRepo, nil)
	signal := pending.NewSignal(cfg.PendingTTL)
	a.Handlers = router.NewHandlers(router.HandlersDeps{
		Ledger:    ledgerRepo,
		Pending:   pendingRepo,
		Signal:    signal,
		Store:     store,
		Replies:   reply.NewResolver(store),
		Search:    searchService,
		Captioner: captioner,
		Notifier:  notifier,
		Failures:  a.Failures,
	}, router.HandlersConfig{
		PendingTTL:  cfg.PendingTTL,
		PendingWait: cfg.PendingWait,
	})

	var exec worker.Executor
	switch cfg.Executor {
	case config.ExecutorNSQ:
		pub := o.Publisher
		if pub == nil && deps != nil && deps.NSQProducer != nil {
			pub = deps.NSQProducer
		}
		if pub == nil {
			return nil, errors.New("nsq executor requires a producer")
		}
		consumer, err := worker.NewConsumer(config.TopicEventTask, config.ChannelEventTask, cfg.WorkerCount, a.Handlers)
		if err != nil {
			return nil, err
		}
		a.consumer = consumer
		exec = worker.NewNSQExecutor(pub, config.TopicEventTask).WithMaxMessageSize(cfg.NSQMaxMsgSize)
	default:
		a.pool = worker.NewPool(a.Handlers, cfg.WorkerCount, cfg.WorkerQueueSize)
		exec = a.pool
	}

	classifier := router.NewClassifier(ledgerRepo, cfg.SelfID, router.WordCountIntent{MaxWords: cfg.IntentMaxWords})
	a.Dispatcher = router.NewDispatcher(classifier, exec).WithExpecter(signal)
	a.Failures.SetReplayer(a.Dispatcher)

	// HTTP
	webhookHandler := webhook.NewHandler(a.Dispatcher, cfg.WebhookVerifyToken)
	statsHandler := stats.NewHandler(ledgerRepo, pendingRepo, failureRepo)
	failureHandler := failure.NewHandler(a.Failures)

	mux := http.NewServeMux()
	mux.Handle("/webhook", middleware.CorrelationID(webhookHandler))
	mux.Handle("GET /stats", middleware.CorrelationID(http.HandlerFunc(statsHandler.GetStats)))
	mux.Handle("GET /failed-events", middleware.CorrelationID(http.HandlerFunc(failureHandler.List)))
	mux.Handle("POST /failed-events/{id}/retry", middleware.CorrelationID(http.HandlerFunc(failureHandler.Retry)))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	a.Handler = mux

	return a, nil
}

// Run serves HTTP until ctx is cancelled, then drains the server and the
// background executor in that order.
func (a *App) Run(ctx context.Context) error {
	if a.consumer != nil {
		var err error
		if a.cfg.NSQLookupd != "" {
			err = a.consumer.ConnectToNSQLookupd(a.cfg.NSQLookupd)
		} else {
			err = a.consumer.ConnectToNSQD(a.cfg.NSQDHost)
		}
		if err != nil {
			return fmt.Errorf("connect task consumer: %w", err)
		}
		slog.Info("task consumer connected", "topic", config.TopicEventTask)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.ServerPort),
		Handler:           a.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", a.cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}

	a.Close(shutdownCtx)
	return runErr
}

// Close stops the executor and releases client resources.
func (a *App) Close(ctx context.Context) {
	if a.pool != nil {
		if err := a.pool.Shutdown(ctx); err != nil {
			slog.Error("worker pool shutdown failed", "error", err)
		}
	}
	if a.consumer != nil {
		a.consumer.Stop()
		select {
		case <-a.consumer.StopChan:
		case <-ctx.Done():
			slog.Error("task consumer did not stop in time")
		}
	}
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			slog.Warn("failed to close client", "error", err)
		}
	}
}
