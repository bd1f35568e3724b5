package consumer

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"call-analytics-service/internal/observability/logging"
)

// BatchHandler processes one delivered batch. A returned error leaves the
// batch uncommitted so the at-least-once redelivery mechanism can retry it;
// every downstream write is idempotent, so replays are safe.
type BatchHandler func(ctx context.Context, batch []kafka.Message) error

// fetcher is the slice of kafka.Reader the batch loop depends on.
type fetcher interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ReaderConfig holds settings for one consumer-group reader.
type ReaderConfig struct {
	Brokers      []string
	Topic        string
	GroupID      string
	BatchSize    int
	BatchMaxWait time.Duration
}

// Reader consumes one topic with a consumer group, assembles records into
// batches, and hands them to a BatchHandler. Offsets are committed only after
// the handler returns without error.
type Reader struct {
	fetcher      fetcher
	handle       BatchHandler
	batchSize    int
	batchMaxWait time.Duration
	log          zerolog.Logger
}

// NewReader creates a Reader for the given topic.
func NewReader(cfg ReaderConfig, handle BatchHandler) *Reader {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  cfg.BatchMaxWait,
	})
	return newReader(r, cfg, handle)
}

func newReader(f fetcher, cfg ReaderConfig, handle BatchHandler) *Reader {
	batchSize := cfg.BatchSize
	if batchSize < 1 {
		batchSize = 1
	}
	return &Reader{
		fetcher:      f,
		handle:       handle,
		batchSize:    batchSize,
		batchMaxWait: cfg.BatchMaxWait,
		log:          logging.WithComponent("reader").With().Str("topic", cfg.Topic).Logger(),
	}
}

// Run consumes until ctx is canceled. Handler failures are logged and the
// batch is left uncommitted; consumption continues with the next fetch, and
// uncommitted records are redelivered after a restart or rebalance.
func (r *Reader) Run(ctx context.Context) error {
	defer r.fetcher.Close()

	for {
		batch, err := r.fetchBatch(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
		if len(batch) == 0 {
			continue
		}

		if err := r.handle(ctx, batch); err != nil {
			r.log.Error().Err(err).
				Int("records", len(batch)).
				Msg("batch handler failed, leaving offsets uncommitted")
			continue
		}

		if err := r.fetcher.CommitMessages(ctx, batch...); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			r.log.Error().Err(err).Msg("offset commit failed")
		}
	}
}

// fetchBatch blocks for the first record, then drains whatever arrives within
// batchMaxWait up to batchSize records.
func (r *Reader) fetchBatch(ctx context.Context) ([]kafka.Message, error) {
	first, err := r.fetcher.FetchMessage(ctx)
	if err != nil {
		return nil, err
	}
	batch := []kafka.Message{first}

	drainCtx, cancel := context.WithTimeout(ctx, r.batchMaxWait)
	defer cancel()

	for len(batch) < r.batchSize {
		msg, err := r.fetcher.FetchMessage(drainCtx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				break
			}
			if ctx.Err() != nil {
				// Shutdown mid-drain: hand over what we have, the final
				// handler call still runs under the parent context.
				break
			}
			return nil, err
		}
		batch = append(batch, msg)
	}
	return batch, nil
}
