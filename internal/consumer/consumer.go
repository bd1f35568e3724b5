// Package consumer implements the event-log stream consumer: it classifies
// each record, persists finalized transcript segments, and forwards every
// transcription record to live viewers.
package consumer

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"call-analytics-service/internal/channel"
	"call-analytics-service/internal/models"
	"call-analytics-service/internal/observability/logging"
	"call-analytics-service/internal/observability/metrics"
)

// SegmentStore persists finalized transcript segments.
type SegmentStore interface {
	PutSegment(ctx context.Context, seg models.TranscriptSegment) error
}

// ConnectionRegistry tracks live push connections.
type ConnectionRegistry interface {
	AddConnection(ctx context.Context, connectionID string) error
	RemoveConnection(ctx context.Context, connectionID string) error
}

// Broadcaster fans a message out to every live connection.
type Broadcaster interface {
	Broadcast(ctx context.Context, payload []byte) error
}

// Consumer processes event-log batches and connection lifecycle signals.
type Consumer struct {
	store       SegmentStore
	registry    ConnectionRegistry
	broadcaster Broadcaster
	metrics     *metrics.Metrics
	log         zerolog.Logger
}

// New creates a Consumer.
func New(store SegmentStore, registry ConnectionRegistry, broadcaster Broadcaster) *Consumer {
	return &Consumer{
		store:       store,
		registry:    registry,
		broadcaster: broadcaster,
		metrics:     metrics.DefaultMetrics,
		log:         logging.WithComponent("consumer"),
	}
}

// Consume processes one delivered batch. Records may interleave calls; they
// are handled in delivery order. Per-record failures (decode, persistence)
// are logged and skipped so one bad record never aborts the batch; only
// infrastructure failures from the fan-out path propagate.
func (c *Consumer) Consume(ctx context.Context, batch []kafka.Message) error {
	start := time.Now()
	defer func() {
		c.metrics.BatchDuration.Observe(time.Since(start).Seconds())
	}()

	for _, msg := range batch {
		c.metrics.RecordsConsumed.WithLabelValues(msg.Topic).Inc()

		rec, err := models.DecodeTranscriptRecord(msg.Value)
		if err != nil {
			c.metrics.DecodeErrors.Inc()
			c.log.Error().Err(err).
				Str("topic", msg.Topic).
				Int64("offset", msg.Offset).
				Msg("skipping undecodable record")
			continue
		}

		if rec.DetailType != models.DetailTypeTranscribe || rec.TranscriptEvent == nil {
			c.metrics.RecordsSkipped.WithLabelValues("unhandled_kind").Inc()
			c.log.Debug().
				Str("detailType", rec.DetailType).
				Msg("ignoring non-transcription record")
			continue
		}

		if !rec.TranscriptEvent.IsPartial {
			c.persistSegment(ctx, rec)
		}

		// Every transcription record, partial included, goes out live; the
		// raw payload is forwarded verbatim.
		if err := c.broadcaster.Broadcast(ctx, msg.Value); err != nil {
			return err
		}
	}
	return nil
}

// persistSegment upserts the finalized segment built from rec. Failures are
// logged and swallowed: persistence must never block live delivery.
func (c *Consumer) persistSegment(ctx context.Context, rec *models.TranscriptRecord) {
	md, err := rec.CallMetadata()
	if err != nil {
		c.metrics.PersistErrors.Inc()
		c.log.Error().Err(err).Msg("cannot persist segment without call metadata")
		return
	}
	log := logging.WithTransaction(md.TransactionID)

	ts, err := rec.EventTimestamp()
	if err != nil {
		c.metrics.PersistErrors.Inc()
		log.Error().Err(err).
			Msg("cannot persist segment without event time")
		return
	}

	seg := models.TranscriptSegment{
		TransactionID: md.TransactionID,
		Timestamp:     ts,
		ChannelID:     rec.TranscriptEvent.ChannelID,
		StartTime:     rec.TranscriptEvent.StartTime,
		EndTime:       rec.TranscriptEvent.EndTime,
		Transcript:    rec.TranscriptEvent.TopTranscript(),
	}

	if err := c.store.PutSegment(ctx, seg); err != nil {
		c.metrics.PersistErrors.Inc()
		log.Error().Err(err).
			Int64("timestamp", ts).
			Msg("failed to persist transcript segment")
		return
	}

	c.metrics.SegmentsPersisted.Inc()
	log.Debug().
		Int64("timestamp", ts).
		Str("channelId", seg.ChannelID).
		Msg("persisted transcript segment")
}

// HandleChannelEvent reacts to connection lifecycle signals from the push
// channel. Both directions are idempotent; unknown event types fall through
// unhandled.
func (c *Consumer) HandleChannelEvent(ctx context.Context, ev channel.Event) error {
	switch ev.Type {
	case channel.EventConnect:
		return c.registry.AddConnection(ctx, ev.ConnectionID)
	case channel.EventDisconnect:
		return c.registry.RemoveConnection(ctx, ev.ConnectionID)
	default:
		c.log.Debug().
			Str("eventType", string(ev.Type)).
			Msg("ignoring unknown channel event")
		return nil
	}
}
