package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"user-api/internal/config"
	"user-api/internal/events"
	apphttp "user-api/internal/http"
	"user-api/internal/realtime"
	"user-api/internal/repository"
	"user-api/internal/repository/postgres"
	"user-api/internal/repository/sqlite"
	"user-api/internal/service"
	"user-api/internal/storage"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if level, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		logger.SetLevel(level)
	} else {
		logger.Warnf("unknown log level %q, using info", cfg.Log.Level)
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal(err)
	}
}

// run owns every resource so a listener failure unwinds through the same
// deferred cleanup as a signal.
func run(cfg config.Config, logger *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	userRepo, closeDB, err := buildRepository(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer closeDB()

	if err := userRepo.Init(ctx); err != nil {
		return fmt.Errorf("init user repository: %w", err)
	}

	inProcess := runConsumersInProcess(cfg)
	broker, err := events.NewBroker(events.BrokerConfig{
		Driver:      cfg.Broker.Driver,
		AMQPURL:     cfg.Broker.AMQPURL,
		QueueSuffix: cfg.Broker.QueueSuffix,
		Subscribe:   inProcess,
	}, events.NewLoggerAdapter(logger))
	if err != nil {
		return fmt.Errorf("connect broker: %w", err)
	}
	defer broker.Close()
	logger.Infof("using %s broker", cfg.Broker.Driver)

	var archive *storage.EventArchive
	if cfg.Archive.Bucket != "" {
		if archive, err = buildArchive(ctx, cfg, logger); err != nil {
			return fmt.Errorf("setup event archive: %w", err)
		}
	}

	if inProcess {
		consumerCfg := events.ConsumerConfig{Logger: logger}
		if archive != nil {
			consumerCfg.Archive = archive
		}
		consumers, err := events.NewConsumers(consumerCfg, broker.Subscriber)
		if err != nil {
			return fmt.Errorf("create consumers: %w", err)
		}
		if err := consumers.Start(ctx); err != nil {
			return fmt.Errorf("start consumers: %w", err)
		}
		defer consumers.Shutdown()
	}

	hub := realtime.NewHub(logger.WithField("component", "hub"))
	defer hub.Close()

	userService := service.NewUserService(userRepo, hub, events.NewPublisher(broker.Publisher))

	var archiveLister apphttp.EventArchive
	if archive != nil {
		archiveLister = archive
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler := apphttp.NewHandler(userService, hub, archiveLister, cfg.Server.AllowedOrigin, logger)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down...")
	case err := <-serveErr:
		runErr = fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}

	logger.Info("bye")
	return runErr
}

// runConsumersInProcess reports whether this process subscribes to events.
// gochannel subscribers only see messages published in this process.
func runConsumersInProcess(cfg config.Config) bool {
	return cfg.Consumers.InProcess || cfg.Broker.Driver == events.DriverGoChannel
}

func buildRepository(ctx context.Context, cfg config.Config) (repository.UserRepository, func(), error) {
	switch cfg.Database.Driver {
	case "postgres":
		pool, err := postgres.Open(ctx, cfg.Database.DSN, cfg.Database.MaxConns)
		if err != nil {
			return nil, nil, err
		}
		return postgres.NewUserRepository(pool), pool.Close, nil
	default:
		db, err := sqlite.Open(cfg.Database.Path)
		if err != nil {
			return nil, nil, err
		}
		return sqlite.NewUserRepository(db), func() { _ = db.Close() }, nil
	}
}

func buildArchive(ctx context.Context, cfg config.Config, logger *logrus.Logger) (*storage.EventArchive, error) {
	svc, err := storage.LoadS3Service(ctx, storage.S3Config{
		Region:   cfg.Archive.Region,
		Endpoint: cfg.Archive.Endpoint,
		Profile:  cfg.AWS.Profile,
	})
	if err != nil {
		return nil, err
	}
	logger.Infof("archiving events to s3 bucket %s (region %s)", cfg.Archive.Bucket, cfg.Archive.Region)
	return storage.NewEventArchive(svc, cfg.Archive.Bucket, cfg.Archive.Prefix), nil
}
