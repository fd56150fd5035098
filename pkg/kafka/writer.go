package kafka

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/tindahan/marketplace-backend/pkg/config"
	"github.com/tindahan/marketplace-backend/pkg/logger"
)

var errNoBrokers = errors.New("kafka brokers are required")

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Writer publishes keyed messages to any topic over a single shared connection pool.
type Writer struct {
	w messageWriter
}

// NewWriter builds a hash-balanced writer so every message for one key lands on one partition.
func NewWriter(cfg config.KafkaConfig, logg *logger.Logger) (*Writer, error) {
	brokers := make([]string, 0, len(cfg.Brokers))
	for _, b := range cfg.Brokers {
		if trimmed := strings.TrimSpace(b); trimmed != "" {
			brokers = append(brokers, trimmed)
		}
	}
	if len(brokers) == 0 {
		return nil, errNoBrokers
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}
	if logg != nil {
		logg.Info(logg.WithField(context.Background(), "brokers", brokers), "kafka writer initialized")
	}
	return &Writer{w: w}, nil
}

// Publish writes one message. Attributes travel as record headers.
func (w *Writer) Publish(ctx context.Context, topic, key string, payload []byte, attrs map[string]string) error {
	if w == nil || w.w == nil {
		return errors.New("kafka writer not initialized")
	}
	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: payload,
	}
	for k, v := range attrs {
		msg.Headers = append(msg.Headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	if err := w.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("writing kafka message to %s: %w", topic, err)
	}
	return nil
}

func (w *Writer) Close() error {
	if w == nil || w.w == nil {
		return nil
	}
	return w.w.Close()
}
