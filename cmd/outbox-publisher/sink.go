package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/tindahan/marketplace-backend/pkg/config"
	"github.com/tindahan/marketplace-backend/pkg/kafka"
	"github.com/tindahan/marketplace-backend/pkg/logger"
	"github.com/tindahan/marketplace-backend/pkg/pubsub"
)

// Sink delivers one serialized event to a notification channel. key keeps per-order ordering.
type Sink interface {
	Name() string
	Publish(ctx context.Context, topic, key string, payload []byte, attrs map[string]string) error
	Close() error
}

type pinger interface {
	Ping(context.Context) error
}

func newSink(ctx context.Context, cfg *config.Config, logg *logger.Logger) (Sink, error) {
	switch strings.ToLower(cfg.Notifications.Sink) {
	case config.SinkPubSub:
		client, err := pubsub.NewClient(ctx, cfg.GCP, cfg.Notifications.OrdersTopic, logg)
		if err != nil {
			return nil, err
		}
		return &pubsubSink{client: client}, nil
	case config.SinkKafka:
		writer, err := kafka.NewWriter(cfg.Kafka, logg)
		if err != nil {
			return nil, err
		}
		return &kafkaSink{writer: writer}, nil
	case config.SinkLog, "":
		return &logSink{logg: logg}, nil
	}
	return nil, fmt.Errorf("unsupported notifications sink %q", cfg.Notifications.Sink)
}

type pubsubSink struct {
	client *pubsub.Client
}

func (s *pubsubSink) Name() string { return config.SinkPubSub }

func (s *pubsubSink) Publish(ctx context.Context, topic, key string, payload []byte, attrs map[string]string) error {
	pub := s.client.Publisher(topic)
	if pub == nil {
		return errors.New("pubsub publisher not configured for topic " + topic)
	}
	result := pub.Publish(ctx, &gcppubsub.Message{
		Data:        payload,
		Attributes:  attrs,
		OrderingKey: key,
	})
	_, err := result.Get(ctx)
	return err
}

func (s *pubsubSink) Ping(ctx context.Context) error { return s.client.Ping(ctx) }

func (s *pubsubSink) Close() error { return s.client.Close() }

type kafkaSink struct {
	writer *kafka.Writer
}

func (s *kafkaSink) Name() string { return config.SinkKafka }

func (s *kafkaSink) Publish(ctx context.Context, topic, key string, payload []byte, attrs map[string]string) error {
	return s.writer.Publish(ctx, topic, key, payload, attrs)
}

func (s *kafkaSink) Close() error { return s.writer.Close() }

// logSink writes events to the structured log; used in dev when no broker is configured.
type logSink struct {
	logg *logger.Logger
}

func (s *logSink) Name() string { return config.SinkLog }

func (s *logSink) Publish(ctx context.Context, topic, key string, payload []byte, attrs map[string]string) error {
	fields := map[string]any{
		"topic":   topic,
		"key":     key,
		"payload": string(payload),
	}
	for k, v := range attrs {
		fields["attr_"+k] = v
	}
	s.logg.Info(s.logg.WithFields(ctx, fields), "order notification")
	return nil
}

func (s *logSink) Close() error { return nil }
