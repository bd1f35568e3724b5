// Command simulator feeds a scripted call through the event log: partial and
// final transcript records for both legs, then the session-ended lifecycle
// record that triggers summarization.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"call-analytics-service/internal/config"
	"call-analytics-service/internal/events"
	"call-analytics-service/internal/models"
	"call-analytics-service/internal/observability/logging"
)

var script = []struct {
	channelID  string
	transcript string
}{
	{"ch_0", "Thank you for calling, how can I help you today?"},
	{"ch_1", "Hi, I'm calling about my order, it still hasn't arrived."},
	{"ch_0", "I'm sorry to hear that, let me look that up for you."},
	{"ch_1", "Thanks, the order number is four two seven."},
	{"ch_0", "I see it here, it will be delivered tomorrow morning."},
}

func main() {
	delay := flag.Duration("delay", time.Second, "delay between utterances")
	flag.Parse()

	cfg := config.Load()
	logging.Init(logging.Config{
		Level:  cfg.Observability.LogLevel,
		Format: "console",
	})

	publisher := events.New(&events.Config{
		Brokers:         cfg.Kafka.Brokers,
		TopicTranscript: cfg.Kafka.TopicTranscript,
		TopicLifecycle:  cfg.Kafka.TopicLifecycle,
		Enabled:         true,
	})
	defer publisher.Close()

	ctx := context.Background()
	transactionID := uuid.NewString()
	log.Info().Str("transactionId", transactionID).Msg("simulating call")

	elapsed := 0.0
	for _, line := range script {
		// A couple of growing partials ahead of each final, the way a
		// streaming transcriber emits them.
		words := strings.Fields(line.transcript)
		for _, cut := range []int{len(words) / 2, len(words)} {
			partial := cut < len(words)
			rec := record(transactionID, line.channelID, strings.Join(words[:cut], " "), elapsed, partial)
			if err := publisher.PublishTranscript(ctx, transactionID, rec); err != nil {
				log.Fatal().Err(err).Msg("publish transcript failed")
			}
			time.Sleep(*delay / 2)
		}
		elapsed += float64(*delay) / float64(time.Second)
	}

	lifecycle := models.LifecycleRecord{
		Detail: models.LifecycleDetail{
			EventType:     models.LifecycleStopped,
			TransactionID: transactionID,
		},
	}
	if err := publisher.PublishLifecycle(ctx, transactionID, lifecycle); err != nil {
		log.Fatal().Err(err).Msg("publish lifecycle failed")
	}
	log.Info().Msg("call ended, summarization should follow")
}

func record(transactionID, channelID, transcript string, start float64, partial bool) models.TranscriptRecord {
	metadata, _ := json.Marshal(models.CallMetadata{
		CallID:        uuid.NewString(),
		FromNumber:    "+15550100",
		ToNumber:      "+15550199",
		TransactionID: transactionID,
		Direction:     "Inbound",
	})

	return models.TranscriptRecord{
		Time:       time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
		DetailType: models.DetailTypeTranscribe,
		TranscriptEvent: &models.TranscriptEvent{
			ResultID:  uuid.NewString(),
			StartTime: start,
			EndTime:   start + 1,
			IsPartial: partial,
			Alternatives: []models.Alternative{
				{Transcript: transcript},
			},
			ChannelID: channelID,
		},
		Metadata: string(metadata),
	}
}
