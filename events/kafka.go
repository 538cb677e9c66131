package events

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher forwards order events to a Kafka topic, keyed by order id
// so updates for one order stay ordered within a partition.
type KafkaPublisher struct {
	writer MessageWriter
}

// NewKafkaPublisher builds an asynchronous writer; delivery failures are
// reported through log.
func NewKafkaPublisher(brokers []string, topic string, log zerolog.Logger) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		Async:        true,
		BatchTimeout: 50 * time.Millisecond,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				log.Error().Err(err).Int("messages", len(messages)).Str("topic", topic).Msg("kafka delivery failed")
			}
		},
	}
	return &KafkaPublisher{writer: w}
}

// NewKafkaPublisherWithWriter wraps an existing writer.
func NewKafkaPublisherWithWriter(w MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

func (k *KafkaPublisher) Publish(ctx context.Context, evt OrderEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatUint(uint64(evt.OrderID), 10)),
		Value: payload,
		Time:  evt.Timestamp,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte("order:status")},
		},
	})
}

func (k *KafkaPublisher) Close() error {
	return k.writer.Close()
}
