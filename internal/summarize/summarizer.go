// Package summarize reacts to call-session-ended signals: it reads the
// call's persisted transcript, asks a hosted generative model for a summary,
// and fans the result out to every live viewer.
package summarize

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"call-analytics-service/internal/models"
	"call-analytics-service/internal/observability/logging"
	"call-analytics-service/internal/observability/metrics"
)

// SegmentLister reads a call's persisted transcript in timestamp order.
type SegmentLister interface {
	ListSegments(ctx context.Context, transactionID string) ([]models.TranscriptSegment, error)
}

// Broadcaster fans a message out to every live connection.
type Broadcaster interface {
	Broadcast(ctx context.Context, payload []byte) error
}

// ModelClient invokes the hosted text-generation endpoint.
type ModelClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Trigger handles session lifecycle events and drives summarization.
type Trigger struct {
	store       SegmentLister
	broadcaster Broadcaster
	model       ModelClient
	question    string
	backoff     []time.Duration
	sleep       func(time.Duration)
	metrics     *metrics.Metrics
	log         zerolog.Logger
}

// Model endpoints may be cold-starting, so invocation is retried on a fixed
// schedule before the trigger is abandoned.
var defaultBackoff = []time.Duration{time.Second, 4 * time.Second, 16 * time.Second}

// New creates a Trigger.
func New(store SegmentLister, broadcaster Broadcaster, model ModelClient, question string) *Trigger {
	return &Trigger{
		store:       store,
		broadcaster: broadcaster,
		model:       model,
		question:    question,
		backoff:     defaultBackoff,
		sleep:       time.Sleep,
		metrics:     metrics.DefaultMetrics,
		log:         logging.WithComponent("summarize"),
	}
}

// HandleLifecycle processes one batch from the call-lifecycle topic. A failed
// summarization is logged and dropped rather than propagated, so a flaky
// model endpoint never wedges lifecycle consumption.
func (t *Trigger) HandleLifecycle(ctx context.Context, batch []kafka.Message) error {
	for _, msg := range batch {
		rec, err := models.DecodeLifecycleRecord(msg.Value)
		if err != nil {
			t.metrics.DecodeErrors.Inc()
			t.log.Error().Err(err).
				Int64("offset", msg.Offset).
				Msg("skipping undecodable lifecycle record")
			continue
		}

		log := logging.WithTransaction(rec.Detail.TransactionID)
		switch rec.Detail.EventType {
		case models.LifecycleInProgress:
			log.Info().
				Msg("call analytics session in progress")
		case models.LifecycleStopped:
			if err := t.OnSessionEnded(ctx, rec.Detail.TransactionID); err != nil {
				log.Error().Err(err).
					Msg("summarization trigger failed")
			}
		default:
			t.log.Debug().
				Str("eventType", rec.Detail.EventType).
				Msg("ignoring lifecycle event")
		}
	}
	return nil
}

// OnSessionEnded reads the session's transcript, invokes the model and fans
// out the summary.
func (t *Trigger) OnSessionEnded(ctx context.Context, transactionID string) error {
	t.metrics.SummarizationsTotal.Inc()
	log := logging.WithTransaction(transactionID)

	segments, err := t.store.ListSegments(ctx, transactionID)
	if err != nil {
		return fmt.Errorf("read transcript: %w", err)
	}
	if len(segments) == 0 {
		log.Warn().Msg("no transcript persisted for session, skipping summary")
		return nil
	}

	conversation := FormatConversation(segments)
	prompt := BuildPrompt(conversation, t.question)

	text, err := t.invoke(ctx, prompt)
	if err != nil {
		t.metrics.SummarizationsFailed.Inc()
		return fmt.Errorf("invoke model: %w", err)
	}

	payload, err := json.Marshal(models.SummarizationMessage{Summarization: text})
	if err != nil {
		return fmt.Errorf("marshal summarization message: %w", err)
	}

	log.Info().Msg("delivering summarization")
	return t.broadcaster.Broadcast(ctx, payload)
}

// invoke calls the model, retrying per the backoff schedule.
func (t *Trigger) invoke(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < len(t.backoff); attempt++ {
		if attempt > 0 {
			t.metrics.ModelRetries.Inc()
			t.sleep(t.backoff[attempt-1])
		}

		start := time.Now()
		text, err := t.model.Complete(ctx, prompt)
		t.metrics.ModelLatency.Observe(time.Since(start).Seconds())
		if err == nil {
			return text, nil
		}

		lastErr = err
		t.log.Warn().Err(err).
			Int("attempt", attempt+1).
			Msg("model invocation failed")
	}
	return "", fmt.Errorf("after %d attempts: %w", len(t.backoff), lastErr)
}

// FormatConversation renders ordered segments as a two-speaker dialogue.
// Channel ch_0 carries the agent leg, everything else the caller.
func FormatConversation(segments []models.TranscriptSegment) string {
	var b strings.Builder
	for _, seg := range segments {
		speaker := "Caller"
		if seg.ChannelID == "ch_0" {
			speaker = "Agent"
		}
		b.WriteString(speaker)
		b.WriteString(": ")
		b.WriteString(seg.Transcript)
		b.WriteString("\n")
	}
	return b.String()
}

// BuildPrompt frames the conversation for the model.
func BuildPrompt(conversation, question string) string {
	return fmt.Sprintf(
		"This is a conversation between two people, a caller and an agent.\n\n%s\n\n%s",
		conversation, question)
}
