package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/c360studio/skitrip/config"
	"github.com/c360studio/skitrip/llm"
	"github.com/c360studio/skitrip/model"
	accommodationplanner "github.com/c360studio/skitrip/processor/accommodation-planner"
	itineraryplanner "github.com/c360studio/skitrip/processor/itinerary-planner"
	scheduleapi "github.com/c360studio/skitrip/processor/schedule-api"
	slopesadvisor "github.com/c360studio/skitrip/processor/slopes-advisor"
	transportationplanner "github.com/c360studio/skitrip/processor/transportation-planner"
	tripplanner "github.com/c360studio/skitrip/processor/trip-planner"
	"github.com/c360studio/skitrip/storage"
	"github.com/c360studio/skitrip/trip"
)

// App wires configuration, backends and components together.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	registry *model.Registry
	watcher  *model.Watcher

	store   storage.DocumentStore
	redis   *redis.Client
	tracing *tracing
	metrics *prometheus.Registry

	service *tripplanner.Service
	advisor scheduleapi.SlopesAdvisor
}

// NewApp connects every backend the configuration names and builds the
// pipeline. The caller must Close the App.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{
		cfg:     cfg,
		logger:  logger,
		metrics: prometheus.NewRegistry(),
	}
	a.metrics.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := a.init(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	var err error

	if a.tracing, err = newTracing(a.cfg.Tracing, nil); err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	if err := a.loadRegistry(ctx); err != nil {
		return err
	}

	if a.store, err = openStore(ctx, a.cfg.Storage, a.logger); err != nil {
		return err
	}

	locker, err := a.openLocker(ctx)
	if err != nil {
		return err
	}

	client, err := a.newLLMClient()
	if err != nil {
		return err
	}

	orchestrator, err := a.newOrchestrator(client)
	if err != nil {
		return err
	}
	schedules := storage.NewScheduleRepository(a.store)
	a.service = tripplanner.NewService(orchestrator, schedules, locker, a.cfg.Stages.LockWait, a.logger)

	advisorCfg := slopesadvisor.DefaultConfig()
	a.applyLLMOverrides(&advisorCfg.Temperature, &advisorCfg.MaxTokens)
	advisor, err := slopesadvisor.New(client, advisorCfg, a.logger)
	if err != nil {
		return err
	}
	a.advisor = &timedAdvisor{advisor: advisor, timeout: a.cfg.Stages.SlopesTimeout}

	return nil
}

func (a *App) loadRegistry(ctx context.Context) error {
	path := a.cfg.LLM.RegistryFile
	if path == "" {
		a.registry = model.NewDefaultRegistry()
		a.logger.Debug("Using built-in model registry")
		return nil
	}

	registry, err := model.LoadFromFile(path)
	if err != nil {
		return fmt.Errorf("load model registry: %w", err)
	}
	a.registry = registry
	a.logger.Info("Loaded model registry", "path", path, "endpoints", len(registry.ListEndpoints()))

	if !a.cfg.LLM.Watch {
		return nil
	}
	if a.watcher, err = model.NewWatcher(path, registry, a.logger); err != nil {
		return err
	}
	return a.watcher.Start(ctx)
}

func openStore(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (storage.DocumentStore, error) {
	switch cfg.Backend {
	case "nats":
		logger.Info("Connecting to NATS", "url", cfg.NATSURL)
		store, err := storage.ConnectNATS(cfg.NATSURL)
		if err != nil {
			return nil, fmt.Errorf("open NATS store: %w", err)
		}
		return store, nil

	case "mongo":
		logger.Info("Connecting to MongoDB", "database", cfg.MongoDatabase)
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		store, err := storage.ConnectMongo(connectCtx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, fmt.Errorf("open MongoDB store: %w", err)
		}
		return store, nil

	default:
		logger.Warn("Using in-memory storage; schedules are lost on restart")
		return storage.NewMemoryStore(), nil
	}
}

func (a *App) openLocker(ctx context.Context) (storage.PlanLocker, error) {
	if a.cfg.Lock.Backend != "redis" {
		return storage.NewLocalLocker(), nil
	}

	a.redis = redis.NewClient(&redis.Options{
		Addr:     a.cfg.Lock.RedisAddr,
		Password: a.cfg.Lock.RedisPassword,
		DB:       a.cfg.Lock.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := a.redis.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("connect to Redis at %s: %w", a.cfg.Lock.RedisAddr, err)
	}

	a.logger.Info("Using Redis plan locks", "addr", a.cfg.Lock.RedisAddr)
	return storage.NewRedisLocker(a.redis, a.cfg.Lock.TTL, storage.WithLockLogger(a.logger)), nil
}

func (a *App) newLLMClient() (*llm.Client, error) {
	opts := []llm.ClientOption{
		llm.WithLogger(a.logger),
		llm.WithRetryConfig(a.cfg.LLM.Retry),
		llm.WithMetrics(llm.NewMetrics(a.metrics)),
		llm.WithTracerProvider(a.tracing.provider()),
	}
	if a.cfg.LLM.RecordCalls {
		calls, err := llm.NewCallStore(a.store, llm.WithStoreLogger(a.logger))
		if err != nil {
			return nil, fmt.Errorf("init call store: %w", err)
		}
		opts = append(opts, llm.WithCallStore(calls))
	}
	return llm.NewClient(a.registry, opts...), nil
}

func (a *App) newOrchestrator(client llm.Completer) (*tripplanner.Orchestrator, error) {
	tcfg := transportationplanner.DefaultConfig()
	a.applyLLMOverrides(&tcfg.Temperature, &tcfg.MaxTokens)
	transportation, err := transportationplanner.New(client, tcfg, a.logger)
	if err != nil {
		return nil, err
	}

	acfg := accommodationplanner.DefaultConfig()
	acfg.MaxAttempts = a.cfg.Stages.AccommodationMaxAttempts
	a.applyLLMOverrides(&acfg.Temperature, &acfg.MaxTokens)
	accommodation, err := accommodationplanner.New(client, acfg, a.logger)
	if err != nil {
		return nil, err
	}

	icfg := itineraryplanner.DefaultConfig()
	a.applyLLMOverrides(&icfg.Temperature, &icfg.MaxTokens)
	itinerary, err := itineraryplanner.New(client, icfg, a.logger)
	if err != nil {
		return nil, err
	}

	stages := a.cfg.Stages
	return tripplanner.NewOrchestrator(transportation, accommodation, itinerary,
		tripplanner.WithLogger(a.logger),
		tripplanner.WithTracerProvider(a.tracing.provider()),
		tripplanner.WithMetrics(tripplanner.NewMetrics(a.metrics)),
		tripplanner.WithStageTimeout(trip.StageTransportation, stages.TransportationTimeout),
		tripplanner.WithStageTimeout(trip.StageAccommodation, stages.AccommodationTimeout),
		tripplanner.WithStageTimeout(trip.StageItinerary, stages.ItineraryTimeout),
	), nil
}

func (a *App) applyLLMOverrides(temperature *float64, maxTokens *int) {
	if a.cfg.LLM.Temperature != nil {
		*temperature = *a.cfg.LLM.Temperature
	}
	if a.cfg.LLM.MaxTokens > 0 {
		*maxTokens = a.cfg.LLM.MaxTokens
	}
}

// Service returns the schedule service.
func (a *App) Service() *tripplanner.Service {
	return a.service
}

// Handler builds the HTTP API.
func (a *App) Handler() (http.Handler, error) {
	srv := a.cfg.Server
	api, err := scheduleapi.NewServer(a.service, a.advisor, scheduleapi.Config{
		AllowedOrigins: srv.AllowedOrigins,
		RateLimit:      srv.RateLimit,
		RateBurst:      srv.RateBurst,
	},
		scheduleapi.WithLogger(a.logger),
		scheduleapi.WithMetrics(scheduleapi.NewMetrics(a.metrics)),
		scheduleapi.WithGatherer(a.metrics),
	)
	if err != nil {
		return nil, err
	}
	return api.Handler(), nil
}

// Serve runs the HTTP service until ctx is done, then shuts it down.
func (a *App) Serve(ctx context.Context) error {
	handler, err := a.Handler()
	if err != nil {
		return err
	}

	srv := a.cfg.Server
	server := &http.Server{
		Addr:              srv.Addr,
		Handler:           handler,
		ReadTimeout:       srv.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      srv.WriteTimeout,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("skitrip ready", "version", Version, "addr", srv.Addr, "storage", a.cfg.Storage.Backend, "lock", a.cfg.Lock.Backend)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !isServerClosed(err) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("Received shutdown signal")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), srv.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	if err := <-errCh; !isServerClosed(err) {
		return fmt.Errorf("http server: %w", err)
	}
	a.logger.Info("Server stopped cleanly")
	return nil
}

// Close releases every backend. It is safe on a partially built App.
func (a *App) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if a.watcher != nil {
		if err := a.watcher.Stop(); err != nil {
			a.logger.Warn("Failed to stop registry watcher", "error", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(ctx); err != nil {
			a.logger.Warn("Failed to close store", "error", err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("Failed to close Redis client", "error", err)
		}
	}
	if a.tracing != nil {
		if err := a.tracing.shutdown(ctx); err != nil {
			a.logger.Warn("Failed to flush traces", "error", err)
		}
	}
}

// timedAdvisor bounds a slopes advice run like a pipeline stage.
type timedAdvisor struct {
	advisor *slopesadvisor.Advisor
	timeout time.Duration
}

func (t *timedAdvisor) Advise(ctx context.Context, preferences json.RawMessage) (*slopesadvisor.Result, error) {
	if t.timeout <= 0 {
		return t.advisor.Advise(ctx, preferences)
	}

	stageCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	result, err := t.advisor.Advise(stageCtx, preferences)
	if err != nil && ctx.Err() == nil && errors.Is(stageCtx.Err(), context.DeadlineExceeded) {
		return nil, &trip.StageTimeoutError{Stage: trip.StageSlopes, Timeout: t.timeout, Err: err}
	}
	return result, err
}
