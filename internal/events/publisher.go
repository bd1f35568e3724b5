// Package events publishes call-analytics records to the event log. The
// service itself only consumes; this publisher feeds the pipeline in
// development and load testing.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

// Publisher writes transcript and lifecycle records to their topics.
type Publisher struct {
	writerTranscript *kafka.Writer
	writerLifecycle  *kafka.Writer
	enabled          bool
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers         []string
	TopicTranscript string
	TopicLifecycle  string
	Enabled         bool
}

// New creates a publisher. With Enabled false or no brokers it runs in
// log-only mode, which keeps local development usable without a broker.
func New(cfg *Config) *Publisher {
	if cfg == nil || !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, publisher in log-only mode")
		return &Publisher{enabled: false}
	}

	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	newWriter := func(topic string) *kafka.Writer {
		return &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
			WriteTimeout: 10 * time.Second,
			RequiredAcks: kafka.RequireOne,
			Transport:    transport,
		}
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicTranscript", cfg.TopicTranscript).
		Str("topicLifecycle", cfg.TopicLifecycle).
		Msg("Kafka publisher initialized")

	return &Publisher{
		writerTranscript: newWriter(cfg.TopicTranscript),
		writerLifecycle:  newWriter(cfg.TopicLifecycle),
		enabled:          true,
	}
}

// PublishTranscript publishes one transcript record keyed by transaction id,
// so all records of one call land on one partition in order.
func (p *Publisher) PublishTranscript(ctx context.Context, transactionID string, record any) error {
	return p.publish(ctx, p.writerTranscript, transactionID, record)
}

// PublishLifecycle publishes one call lifecycle record.
func (p *Publisher) PublishLifecycle(ctx context.Context, transactionID string, record any) error {
	return p.publish(ctx, p.writerLifecycle, transactionID, record)
}

func (p *Publisher) publish(ctx context.Context, writer *kafka.Writer, key string, record any) error {
	payload, err := json.Marshal(record)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal record")
		return err
	}

	log.Debug().
		Str("key", key).
		RawJSON("payload", payload).
		Msg("Publishing record")

	if !p.enabled || writer == nil {
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
	}
	if err := writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("key", key).
			Msg("Failed to write to Kafka")
		return err
	}
	return nil
}

// Close closes both writers.
func (p *Publisher) Close() error {
	var err error
	if p.writerTranscript != nil {
		if e := p.writerTranscript.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing transcript writer")
			err = e
		}
	}
	if p.writerLifecycle != nil {
		if e := p.writerLifecycle.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing lifecycle writer")
			err = e
		}
	}
	return err
}
