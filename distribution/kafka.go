package distribution

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/IBM/sarama"
)

// ResultEvent is published to the results topic after every publish
type ResultEvent struct {
	Message string    `json:"message"`
	SentAt  time.Time `json:"sent_at"`
}

// KafkaNotifier publishes completion messages to a Kafka topic
type KafkaNotifier struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaNotifier connects a synchronous producer
func NewKafkaNotifier(brokers []string, topic string) (*KafkaNotifier, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V3_6_0_0
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return newKafkaNotifier(producer, topic), nil
}

func newKafkaNotifier(producer sarama.SyncProducer, topic string) *KafkaNotifier {
	return &KafkaNotifier{producer: producer, topic: topic}
}

// Send publishes message as a ResultEvent
func (k *KafkaNotifier) Send(ctx context.Context, message string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	body, err := json.Marshal(ResultEvent{Message: message, SentAt: time.Now().UTC()})
	if err != nil {
		return false, err
	}
	partition, offset, err := k.producer.SendMessage(&sarama.ProducerMessage{
		Topic: k.topic,
		Value: sarama.ByteEncoder(body),
	})
	if err != nil {
		return false, fmt.Errorf("kafka publish: %w", err)
	}
	log.Printf("📨 Result published to %s (partition=%d, offset=%d)", k.topic, partition, offset)
	return true, nil
}

// Close shuts the producer down
func (k *KafkaNotifier) Close() error {
	return k.producer.Close()
}
