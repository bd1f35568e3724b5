// Package broadcast implements the fan-out engine: deliver one message to
// every registered connection, pruning entries whose socket is gone.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"call-analytics-service/internal/channel"
	"call-analytics-service/internal/observability/logging"
	"call-analytics-service/internal/observability/metrics"
)

// Registry is the live-connection membership set consulted before each
// fan-out. List is a read-committed snapshot; over- and under-delivery around
// concurrent membership changes are accepted (stale targets are pruned on
// send failure, new ones catch the next broadcast).
type Registry interface {
	ListConnections(ctx context.Context) ([]string, error)
	RemoveConnection(ctx context.Context, connectionID string) error
}

// Broadcaster delivers messages to every registered connection through the
// push channel.
type Broadcaster struct {
	registry Registry
	channel  channel.Channel
	workers  int
	metrics  *metrics.Metrics
	log      zerolog.Logger
}

// New creates a Broadcaster. workers bounds fan-out concurrency; values below
// one fall back to sequential delivery.
func New(registry Registry, ch channel.Channel, workers int) *Broadcaster {
	if workers < 1 {
		workers = 1
	}
	return &Broadcaster{
		registry: registry,
		channel:  ch,
		workers:  workers,
		metrics:  metrics.DefaultMetrics,
		log:      logging.WithComponent("broadcast"),
	}
}

// Broadcast snapshots the registry and sends payload to every connection.
// Delivery failures are isolated per target: a terminal "gone" error prunes
// that connection from the registry, any other error is logged and the entry
// kept. Only a registry snapshot failure fails the call.
func (b *Broadcaster) Broadcast(ctx context.Context, payload []byte) error {
	start := time.Now()
	b.metrics.BroadcastTotal.Inc()

	ids, err := b.registry.ListConnections(ctx)
	if err != nil {
		return fmt.Errorf("snapshot connection registry: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}

	var g errgroup.Group
	g.SetLimit(b.workers)
	for _, id := range ids {
		g.Go(func() error {
			b.deliver(ctx, id, payload)
			return nil
		})
	}
	g.Wait()

	b.metrics.BroadcastDuration.Observe(time.Since(start).Seconds())
	return nil
}

func (b *Broadcaster) deliver(ctx context.Context, connectionID string, payload []byte) {
	err := b.channel.Send(ctx, connectionID, payload)
	terminal := errors.Is(err, channel.ErrGone)
	b.metrics.RecordSendResult(err, terminal)

	switch {
	case err == nil:
	case terminal:
		// Disconnect signals are not reliably delivered; a gone error on
		// send is the authoritative cue to drop the registry entry.
		b.log.Info().
			Str("connectionId", connectionID).
			Msg("pruning stale connection")
		if rmErr := b.registry.RemoveConnection(ctx, connectionID); rmErr != nil {
			b.log.Error().Err(rmErr).
				Str("connectionId", connectionID).
				Msg("failed to prune stale connection")
		} else {
			b.metrics.ConnectionsPruned.Inc()
		}
	default:
		b.log.Error().Err(err).
			Str("connectionId", connectionID).
			Msg("transient send failure")
	}
}
