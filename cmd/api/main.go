package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hotelbooking/internal/api"
	"hotelbooking/internal/clock"
	"hotelbooking/internal/config"
	"hotelbooking/internal/database"
	"hotelbooking/internal/domain"
	"hotelbooking/internal/events"
	"hotelbooking/internal/logging"
	"hotelbooking/internal/metrics"
	"hotelbooking/internal/mongodb"
	"hotelbooking/internal/repository"
	"hotelbooking/internal/service"
	"hotelbooking/internal/sink"
	"hotelbooking/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient, err := initRedis(ctx, cfg, &logger)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	bus := events.NewEventBus()
	emitter := events.NewEmitter(bus, clock.NewSystem())
	shipper, err := initEvents(cfg, bus, redisClient, &logger)
	if err != nil {
		return err
	}
	if shipper != nil {
		go shipper.Start(ctx)
	}

	store, err := initStore(ctx, cfg, redisClient, &logger)
	if err != nil {
		emitter.Emit(ctx, events.LevelError, "Error connecting to store", map[string]any{"error": err.Error()})
		flushEvents(shipper)
		return err
	}
	defer store.Close()
	emitter.Emit(ctx, events.LevelInfo, "Connected to "+cfg.Storage.Driver, nil)

	svc := service.NewBookingService(store, store, emitter, logging.Component(&logger, "booking"),
		service.WithStoreTimeout(cfg.StoreTimeout()),
		service.WithReservationRequired(cfg.Booking.RequireReservationForPayment),
	)

	if cfg.Booking.DisableSeed {
		logger.Info().Msg("room preload disabled")
	} else if err := svc.SeedRooms(ctx, cfg.Booking.SeedRooms); err != nil {
		logger.Warn().Err(err).Msg("continuing without preloaded rooms")
	}

	startMetrics(ctx, cfg, &logger)

	httpServer := api.NewHTTPServer(cfg.HTTP, svc, logging.Component(&logger, "http"))

	var grpcServer *api.GRPCServer
	if cfg.GRPC.Enabled {
		grpcServer, err = api.NewGRPCServer(cfg.GRPC, svc, &logger)
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			flushEvents(shipper)
			return err
		}
	}

	err = startServer(ctx, httpServer, grpcServer, emitter, cfg, &logger)
	flushEvents(shipper)
	return err
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

// initRedis connects only when redis backs the store or the event queue.
func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*redis.Client, error) {
	if cfg.Storage.Driver != config.DriverRedis && !(cfg.Events.Enabled && cfg.Events.RedisQueue) {
		return nil, nil
	}

	client := repository.NewRedisClient(cfg.Storage.Redis)
	pingCtx, cancel := context.WithTimeout(ctx, cfg.StoreTimeout())
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		if cfg.Storage.Driver == config.DriverRedis {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		logger.Warn().Err(err).Msg("redis connection failed, events are queued in memory")
		return nil, nil
	}

	logger.Info().Str("addr", cfg.Storage.Redis.Address).Msg("redis connected")
	return client, nil
}

func initStore(ctx context.Context, cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger) (domain.Store, error) {
	storeLogger := logging.Component(logger, "store")

	switch cfg.Storage.Driver {
	case config.DriverMongo:
		connectCtx, cancel := context.WithTimeout(ctx, 2*cfg.StoreTimeout())
		defer cancel()
		store, err := mongodb.New(connectCtx, cfg.Storage.Mongo, storeLogger)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.DriverSQLite:
		db, err := database.NewDB(cfg.Storage.SQLite.Path, storeLogger)
		if err != nil {
			return nil, err
		}
		backup := database.NewBackupService(db, cfg.Backup, logging.Component(logger, "backup"))
		go backup.Start(ctx)
		return db, nil
	case config.DriverRedis:
		return repository.NewRedisStore(redisClient, cfg.Storage.Redis.Prefix), nil
	case config.DriverMemory:
		storeLogger.Warn().Msg("using in-memory store, data is lost on restart")
		return repository.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// initEvents wires the bus to its sinks. Without an index every event goes
// straight to the process log.
func initEvents(cfg *config.Config, bus *events.EventBus, redisClient *redis.Client, logger *zerolog.Logger) (*worker.Shipper, error) {
	logSink := sink.NewLogSink(logger)

	if !cfg.Events.Enabled {
		bus.Subscribe(events.AllLevels, sink.Handler(logSink))
		return nil, nil
	}

	elastic, err := sink.NewElasticSink(cfg.Events.Elastic, cfg.Events.Index)
	if err != nil {
		return nil, err
	}

	opts := []worker.ShipperOption{worker.WithFallback(logSink)}
	if cfg.Events.RedisQueue && redisClient != nil {
		opts = append(opts, worker.WithRedisQueue(redisClient, cfg.Storage.Redis.Prefix))
	}

	shipper := worker.NewShipper(elastic, worker.RetryPolicyFromConfig(cfg.Events.Retry), cfg.Events.QueueSize,
		logging.Component(logger, "event-shipper"), opts...)
	bus.Subscribe(events.AllLevels, shipper.Enqueue)

	logger.Info().Strs("addresses", cfg.Events.Elastic.Addresses).Str("index", cfg.Events.Index).Msg("event sink configured")
	return shipper, nil
}

func flushEvents(shipper *worker.Shipper) {
	if shipper == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	shipper.Flush(ctx)
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func startServer(
	ctx context.Context,
	httpServer *api.HTTPServer,
	grpcServer *api.GRPCServer,
	emitter *events.Emitter,
	cfg *config.Config,
	logger *zerolog.Logger,
) error {
	errCh := make(chan error, 2)
	go func() {
		errCh <- httpServer.Start()
	}()
	if grpcServer != nil {
		go grpcServer.WatchReadiness(ctx)
		go func() {
			if err := grpcServer.Serve(); err != nil {
				errCh <- fmt.Errorf("grpc server: %w", err)
			}
		}()
		logger.Info().Str("grpc_addr", grpcServer.Addr()).Msg("gRPC health server started")
	}

	logger.Info().Int("http_port", cfg.HTTP.Port).Msg("API server started")
	emitter.Emit(ctx, events.LevelInfo, fmt.Sprintf("Server running on :%d", cfg.HTTP.Port), nil)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("http server stopped")
			return err
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 2 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
