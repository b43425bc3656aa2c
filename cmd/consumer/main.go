// Command consumer runs the user event consumers outside the API process.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"user-api/internal/config"
	"user-api/internal/events"
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
	}
	if cfg.Broker.Driver != events.DriverAMQP {
		logger.Fatalf("broker driver %q only delivers in-process, run the server with it instead", cfg.Broker.Driver)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	broker, err := events.NewBroker(events.BrokerConfig{
		Driver:      cfg.Broker.Driver,
		AMQPURL:     cfg.Broker.AMQPURL,
		QueueSuffix: cfg.Broker.QueueSuffix,
		Subscribe:   true,
	}, events.NewLoggerAdapter(logger))
	if err != nil {
		logger.Fatalf("connect broker: %v", err)
	}
	defer broker.Close()

	consumerCfg := events.ConsumerConfig{Logger: logger}
	if cfg.Archive.Bucket != "" {
		svc, err := storage.LoadS3Service(ctx, storage.S3Config{
			Region:   cfg.Archive.Region,
			Endpoint: cfg.Archive.Endpoint,
			Profile:  cfg.AWS.Profile,
		})
		if err != nil {
			logger.Fatalf("setup event archive: %v", err)
		}
		consumerCfg.Archive = storage.NewEventArchive(svc, cfg.Archive.Bucket, cfg.Archive.Prefix)
		logger.Infof("archiving events to s3 bucket %s", cfg.Archive.Bucket)
	}

	consumers, err := events.NewConsumers(consumerCfg, broker.Subscriber)
	if err != nil {
		logger.Fatalf("create consumers: %v", err)
	}
	if err := consumers.Start(ctx); err != nil {
		logger.Fatalf("start consumers: %v", err)
	}

	<-ctx.Done()
	logger.Info("shutting down...")
	consumers.Shutdown()
	logger.Info("bye")
}
