// Package kafka provides the Kafka-backed pub/sub channel for deployments
// that want job lifecycle events on a broker.
package kafka

import (
	"errors"
	"os"
	"strings"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
)

// ErrNoBrokers is returned when KAFKA_BROKERS is unset or empty.
var ErrNoBrokers = errors.New("KAFKA_BROKERS environment variable is not set or empty")

func CreateChannel(logger watermill.LoggerAdapter, serviceName string) (*kafka.Publisher, *kafka.Subscriber, error) {
	brokers, err := brokerList(os.Getenv("KAFKA_BROKERS"))
	if err != nil {
		return nil, nil, err
	}

	subscriber, err := kafka.NewSubscriber(subscriberConfig(brokers, serviceName), logger)
	if err != nil {
		return nil, nil, err
	}

	publisher, err := kafka.NewPublisher(publisherConfig(brokers), logger)
	if err != nil {
		return nil, nil, err
	}

	return publisher, subscriber, nil
}

// brokerList splits the comma-separated broker env value, dropping blank
// entries left by stray commas or whitespace.
func brokerList(raw string) ([]string, error) {
	var brokers []string

	for _, broker := range strings.Split(raw, ",") {
		if broker = strings.TrimSpace(broker); broker != "" {
			brokers = append(brokers, broker)
		}
	}

	if len(brokers) == 0 {
		return nil, ErrNoBrokers
	}

	return brokers, nil
}

// subscriberConfig starts each consumer group at the oldest offset so a fresh
// deployment replays lifecycle events already on the topic.
func subscriberConfig(brokers []string, serviceName string) kafka.SubscriberConfig {
	saramaConfig := kafka.DefaultSaramaSubscriberConfig()
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest

	return kafka.SubscriberConfig{
		Brokers:               brokers,
		Unmarshaler:           kafka.DefaultMarshaler{},
		OverwriteSaramaConfig: saramaConfig,
		ConsumerGroup:         "cg-" + serviceName,
		OTELEnabled:           true,
	}
}

func publisherConfig(brokers []string) kafka.PublisherConfig {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.Return.Successes = true

	return kafka.PublisherConfig{
		Brokers:               brokers,
		Marshaler:             kafka.DefaultMarshaler{},
		OverwriteSaramaConfig: saramaConfig,
		OTELEnabled:           true,
	}
}
