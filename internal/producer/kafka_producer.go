package producer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/IBM/sarama"

	"github.com/kpeis695/ithaca-weather-dashboard/internal/domain/entities"
	"github.com/kpeis695/ithaca-weather-dashboard/internal/domain/ports"
	"github.com/kpeis695/ithaca-weather-dashboard/internal/logger"
)

// readingEvent is the wire envelope for downstream analytics consumers.
type readingEvent struct {
	CycleID string           `json:"cycle_id"`
	Reading entities.Reading `json:"reading"`
}

// KafkaPublisher emits every persisted reading to a Kafka topic. Messages
// are keyed by location so each location's history stays ordered within a
// partition.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	logger   logger.Logger
}

func NewKafkaPublisher(broker, topic string, requiredAcks int16, maxRetries int, log logger.Logger) (*KafkaPublisher, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.RequiredAcks(requiredAcks)
	config.Producer.Retry.Max = maxRetries
	config.Producer.Return.Successes = true
	config.Producer.Timeout = 5 * time.Second

	producer, err := sarama.NewSyncProducer([]string{broker}, config)
	if err != nil {
		return nil, err
	}

	return &KafkaPublisher{
		producer: producer,
		topic:    topic,
		logger:   log.WithField("component", "kafka_publisher"),
	}, nil
}

func (k *KafkaPublisher) PublishBatch(ctx context.Context, cycleID string, readings []entities.Reading) error {
	if len(readings) == 0 {
		return nil
	}

	messages := make([]*sarama.ProducerMessage, 0, len(readings))
	for _, reading := range readings {
		reading.RawPayload = nil

		data, err := json.Marshal(readingEvent{CycleID: cycleID, Reading: reading})
		if err != nil {
			return err
		}

		messages = append(messages, &sarama.ProducerMessage{
			Topic: k.topic,
			Key:   sarama.StringEncoder(reading.LocationID),
			Value: sarama.ByteEncoder(data),
		})
	}

	if err := k.producer.SendMessages(messages); err != nil {
		k.logger.Error("failed to publish reading batch", err)
		return err
	}

	k.logger.Debugf("Published %d readings for cycle %s", len(messages), cycleID)
	return nil
}

func (k *KafkaPublisher) HealthCheck(ctx context.Context) error {
	if k.producer == nil {
		return errors.New("kafka producer is nil")
	}

	msg := &sarama.ProducerMessage{
		Topic: "__healthcheck",
		Value: sarama.ByteEncoder([]byte("ping")),
	}

	_, _, err := k.producer.SendMessage(msg)
	return err
}

func (k *KafkaPublisher) Close() error {
	if k.producer == nil {
		return nil
	}
	return k.producer.Close()
}

var _ ports.Publisher = (*KafkaPublisher)(nil)
