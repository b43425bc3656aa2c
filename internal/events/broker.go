package events

import (
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const (
	DriverAMQP      = "amqp"
	DriverGoChannel = "gochannel"
)

// BrokerConfig selects and configures the message broker.
type BrokerConfig struct {
	Driver      string
	AMQPURL     string
	QueueSuffix string
	// Subscribe opens the subscribing side too. The gochannel driver always
	// subscribes since both sides share one channel.
	Subscribe bool
}

// Broker bundles the publishing and subscribing sides of one broker connection.
// Subscriber is nil when the broker was opened for publishing only.
type Broker struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
}

// NewBroker connects to the configured broker. The gochannel driver is
// in-process only, so its subscribers must live in the same process.
func NewBroker(cfg BrokerConfig, logger watermill.LoggerAdapter) (*Broker, error) {
	switch cfg.Driver {
	case DriverGoChannel:
		ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, logger)
		return &Broker{Publisher: ch, Subscriber: ch}, nil
	case DriverAMQP:
		amqpCfg := amqp.NewDurablePubSubConfig(cfg.AMQPURL, amqp.GenerateQueueNameTopicNameWithSuffix(cfg.QueueSuffix))
		pub, err := amqp.NewPublisher(amqpCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("amqp publisher: %w", err)
		}
		if !cfg.Subscribe {
			return &Broker{Publisher: pub}, nil
		}
		sub, err := amqp.NewSubscriber(amqpCfg, logger)
		if err != nil {
			_ = pub.Close()
			return nil, fmt.Errorf("amqp subscriber: %w", err)
		}
		return &Broker{Publisher: pub, Subscriber: sub}, nil
	default:
		return nil, fmt.Errorf("unknown broker driver %q", cfg.Driver)
	}
}

// Close releases both sides of the broker connection.
func (b *Broker) Close() error {
	pubErr := b.Publisher.Close()
	if b.Subscriber == nil || any(b.Subscriber) == any(b.Publisher) {
		return pubErr
	}
	return errors.Join(pubErr, b.Subscriber.Close())
}
