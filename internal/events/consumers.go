package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/sirupsen/logrus"

	"user-api/internal/domain"
)

// Archiver stores a copy of every consumed event.
type Archiver interface {
	Archive(ctx context.Context, eventName, messageID string, payload []byte) error
}

type ConsumerConfig struct {
	Logger *logrus.Logger
	// Archive is optional.
	Archive Archiver
}

// Consumers runs one handler per user event type. Handlers only log; a
// malformed payload is logged and acknowledged.
type Consumers struct {
	cfg    ConsumerConfig
	router *message.Router
	log    logrus.FieldLogger

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func NewConsumers(cfg ConsumerConfig, sub message.Subscriber) (*Consumers, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	log := cfg.Logger.WithField("component", "consumers")

	router, err := message.NewRouter(message.RouterConfig{}, NewLoggerAdapter(cfg.Logger))
	if err != nil {
		return nil, fmt.Errorf("create router: %w", err)
	}
	router.AddMiddleware(middleware.Recoverer)

	c := &Consumers{cfg: cfg, router: router, log: log}
	router.AddNoPublisherHandler("on-"+domain.EventUserCreated, domain.EventUserCreated, sub, handle(c, onUserCreated))
	router.AddNoPublisherHandler("on-"+domain.EventUserFetched, domain.EventUserFetched, sub, handle(c, onUserFetched))
	router.AddNoPublisherHandler("on-"+domain.EventUserUpdated, domain.EventUserUpdated, sub, handle(c, onUserUpdated))
	router.AddNoPublisherHandler("on-"+domain.EventUserDeleted, domain.EventUserDeleted, sub, handle(c, onUserDeleted))
	return c, nil
}

// Start runs the router in the background and returns once every handler is subscribed.
func (c *Consumers) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	errCh := make(chan error, 1)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.router.Run(runCtx); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-c.router.Running():
		c.log.Info("consumers started")
		return nil
	case err := <-errCh:
		cancel()
		return fmt.Errorf("run router: %w", err)
	}
}

// Shutdown stops the router and waits for in-flight handlers.
func (c *Consumers) Shutdown() {
	if c.cancel != nil {
		c.cancel()
	}
	if err := c.router.Close(); err != nil {
		c.log.Warnf("close router: %v", err)
	}
	c.wg.Wait()
	c.log.Info("consumers stopped")
}

func handle[T domain.Event](c *Consumers, fn func(logrus.FieldLogger, T)) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		log := c.log.WithField("message_id", msg.UUID)

		var event T
		if err := json.Unmarshal(msg.Payload, &event); err != nil {
			log.WithError(err).Error("discarding malformed event")
			return nil
		}
		fn(log, event)

		if c.cfg.Archive != nil {
			if err := c.cfg.Archive.Archive(msg.Context(), event.EventName(), msg.UUID, msg.Payload); err != nil {
				log.WithError(err).Warnf("archive %s", event.EventName())
			}
		}
		return nil
	}
}

func onUserCreated(log logrus.FieldLogger, e domain.UserCreated) {
	log.WithFields(logrus.Fields{"id": e.ID, "username": e.Username, "email": e.Email}).
		Info("new user created")
}

func onUserFetched(log logrus.FieldLogger, e domain.UserFetched) {
	log.WithFields(logrus.Fields{"id": e.ID, "username": e.Username, "email": e.Email}).
		Info("user was fetched by the api")
}

func onUserUpdated(log logrus.FieldLogger, e domain.UserUpdated) {
	log.WithFields(logrus.Fields{"id": e.ID, "username": e.Username, "email": e.Email}).
		Info("user was updated")
}

func onUserDeleted(log logrus.FieldLogger, e domain.UserDeleted) {
	log.WithFields(logrus.Fields{"id": e.ID, "username": e.Username, "email": e.Email}).
		Info("user was deleted by the api")
}
