// Package config loads service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Configuration holds all settings for the call analytics service.
type Configuration struct {
	Service       ServiceConfig
	Kafka         KafkaConfig
	Database      DatabaseConfig
	Channel       ChannelConfig
	Summarizer    SummarizerConfig
	Observability ObservabilityConfig
}

// ServiceConfig holds process-level settings.
type ServiceConfig struct {
	Principal string
	HTTPPort  string
}

// KafkaConfig holds event-log consumer settings.
type KafkaConfig struct {
	Brokers         []string
	TopicTranscript string
	TopicLifecycle  string
	GroupID         string
	BatchSize       int
	BatchMaxWait    time.Duration
}

// DatabaseConfig holds durable-store settings.
type DatabaseConfig struct {
	URL           string
	ConnectionTTL time.Duration
}

// ChannelConfig holds push-channel gateway settings.
type ChannelConfig struct {
	SendBuffer    int
	WriteTimeout  time.Duration
	PingInterval  time.Duration
	FanOutWorkers int
}

// SummarizerConfig holds model-invocation settings.
type SummarizerConfig struct {
	APIKey   string
	BaseURL  string
	Model    string
	Question string
}

// ObservabilityConfig holds logging and metrics settings.
type ObservabilityConfig struct {
	LogLevel    string
	LogFormat   string
	MetricsPort string
}

// DefaultSummaryQuestion is asked of the model when none is configured.
const DefaultSummaryQuestion = "In a few sentences, tell me what the customer is calling about and what the next steps are."

// Load reads configuration from environment variables, applying defaults for
// anything unset.
func Load() *Configuration {
	return &Configuration{
		Service: ServiceConfig{
			Principal: envOrDefault("SERVICE_PRINCIPAL", "svc-call-analytics"),
			HTTPPort:  envOrDefault("HTTP_PORT", "8080"),
		},
		Kafka: KafkaConfig{
			Brokers:         envList("KAFKA_BROKERS", "localhost:9092"),
			TopicTranscript: envOrDefault("KAFKA_TOPIC_TRANSCRIPT", "call.transcript.events"),
			TopicLifecycle:  envOrDefault("KAFKA_TOPIC_LIFECYCLE", "call.lifecycle.events"),
			GroupID:         envOrDefault("KAFKA_GROUP_ID", "call-analytics"),
			BatchSize:       envInt("KAFKA_BATCH_SIZE", 100),
			BatchMaxWait:    envDuration("KAFKA_BATCH_MAX_WAIT", 250*time.Millisecond),
		},
		Database: DatabaseConfig{
			URL:           envOrDefault("DATABASE_URL", "postgres://localhost:5432/call_analytics"),
			ConnectionTTL: envDuration("CONNECTION_TTL", 2*time.Hour),
		},
		Channel: ChannelConfig{
			SendBuffer:    envInt("CHANNEL_SEND_BUFFER", 64),
			WriteTimeout:  envDuration("CHANNEL_WRITE_TIMEOUT", 10*time.Second),
			PingInterval:  envDuration("CHANNEL_PING_INTERVAL", 30*time.Second),
			FanOutWorkers: envInt("FANOUT_WORKERS", 32),
		},
		Summarizer: SummarizerConfig{
			APIKey:   os.Getenv("SUMMARIZER_API_KEY"),
			BaseURL:  os.Getenv("SUMMARIZER_BASE_URL"),
			Model:    envOrDefault("SUMMARIZER_MODEL", "gpt-4o-mini"),
			Question: envOrDefault("SUMMARY_QUESTION", DefaultSummaryQuestion),
		},
		Observability: ObservabilityConfig{
			LogLevel:    envOrDefault("LOG_LEVEL", "info"),
			LogFormat:   envOrDefault("LOG_FORMAT", "json"),
			MetricsPort: envOrDefault("METRICS_PORT", "9090"),
		},
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envList(key, def string) []string {
	v := os.Getenv(key)
	if v == "" {
		v = def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
