// Package kafka moves resolved-question events between the game engine and
// the statistics pipeline.
package kafka

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	"github.com/dilemma-game/internal/config"
	"github.com/dilemma-game/internal/domain"
)

// Producer publishes result events to Kafka
type Producer struct {
	producer sarama.SyncProducer
	topic    string
	logger   *slog.Logger
}

// NewProducer creates a Kafka producer for result events
func NewProducer(cfg *config.KafkaConfig, logger *slog.Logger) (*Producer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_0_0_0
	saramaConfig.Producer.RequiredAcks = sarama.WaitForLocal
	saramaConfig.Producer.Compression = sarama.CompressionSnappy
	saramaConfig.Producer.Retry.Max = 3
	saramaConfig.Producer.Retry.Backoff = 100 * time.Millisecond
	saramaConfig.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("creating Kafka producer: %w", err)
	}

	return &Producer{
		producer: producer,
		topic:    cfg.Topic,
		logger:   logger,
	}, nil
}

// PublishResult sends one resolved-question event. Messages are keyed by
// game id so every event of a game lands on the same partition in order.
func (p *Producer) PublishResult(event domain.ResultEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling result event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.GameID),
		Value: sarama.ByteEncoder(data),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("sending result event: %w", err)
	}

	p.logger.Debug("result event published",
		"game_id", event.GameID,
		"round", event.Round,
		"question", event.Question,
		"partition", partition,
		"offset", offset,
	)
	return nil
}

// Close shuts down the producer
func (p *Producer) Close() error {
	return p.producer.Close()
}
