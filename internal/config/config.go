// Package config loads service configuration from environment variables
// with sensible defaults for local development.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Configuration holds all service configuration.
type Configuration struct {
	Service       ServiceConfig
	Store         StoreConfig
	Blob          BlobConfig
	STT           STTConfig
	Queue         QueueConfig
	Retry         RetryConfig
	Breaker       BreakerConfig
	Mode          ModeConfig
	Cycle         CycleConfig
	SessionLimits SessionLimitsConfig
	Kafka         KafkaConfig
	Observability ObservabilityConfig
}

// ServiceConfig identifies the service.
type ServiceConfig struct {
	Principal string
	HTTPPort  string
}

// StoreConfig selects and configures the durable store.
type StoreConfig struct {
	// Driver is "memory" or "dynamo".
	Driver    string
	TableName string
	Region    string
	// Retention is how long terminal queue items stay before TTL pruning.
	Retention time.Duration
}

// BlobConfig selects and configures the blob store.
type BlobConfig struct {
	// Driver is "memory" or "s3".
	Driver string
	Bucket string
	Region string
	// AccessWindow bounds presigned access references.
	AccessWindow time.Duration
}

// STTConfig selects and configures the transcription provider.
type STTConfig struct {
	// Provider is "mock" or "google".
	Provider     string
	LanguageCode string
	SampleRateHz int
	// PollInterval spaces batch job result polls.
	PollInterval time.Duration
}

// QueueConfig tunes the queue manager.
type QueueConfig struct {
	ConfidenceThreshold float64
}

// RetryConfig tunes the retry executor.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// BreakerConfig tunes the per-dependency circuit breakers.
type BreakerConfig struct {
	FailureThreshold int
	CoolDown         time.Duration
}

// ModeConfig tunes the per-session mode selector.
type ModeConfig struct {
	LatencyCeiling time.Duration
}

// CycleConfig tunes the batch cycle trigger.
type CycleConfig struct {
	BatchSize      int
	CountThreshold int
	Interval       time.Duration
}

// SessionLimitsConfig holds the capture session guardrails.
type SessionLimitsConfig struct {
	MaxAudioBytes int64
	MaxDuration   time.Duration
	MaxPartials   int
}

// KafkaConfig configures event publishing.
type KafkaConfig struct {
	Enabled        bool
	Brokers        []string
	TopicPartial   string
	TopicLifecycle string
	Principal      string
}

// ObservabilityConfig configures logging and the metrics server.
type ObservabilityConfig struct {
	LogLevel    string
	LogFormat   string
	MetricsPort string
}

// Load reads configuration from the environment.
func Load() *Configuration {
	principal := envOrDefault("SERVICE_PRINCIPAL", "svc-recording-orchestrator")

	return &Configuration{
		Service: ServiceConfig{
			Principal: principal,
			HTTPPort:  envOrDefault("HTTP_PORT", "8080"),
		},
		Store: StoreConfig{
			Driver:    envOrDefault("STORE_DRIVER", "memory"),
			TableName: envOrDefault("STORE_TABLE", "bolbharat-recordings"),
			Region:    envOrDefault("AWS_REGION", "ap-south-1"),
			Retention: envOrDefaultDuration("STORE_RETENTION", 7*24*time.Hour),
		},
		Blob: BlobConfig{
			Driver:       envOrDefault("BLOB_DRIVER", "memory"),
			Bucket:       envOrDefault("BLOB_BUCKET", "bolbharat-recordings"),
			Region:       envOrDefault("AWS_REGION", "ap-south-1"),
			AccessWindow: envOrDefaultDuration("BLOB_ACCESS_WINDOW", 24*time.Hour),
		},
		STT: STTConfig{
			Provider:     envOrDefault("STT_PROVIDER", "mock"),
			LanguageCode: envOrDefault("STT_LANGUAGE_CODE", "hi-IN"),
			SampleRateHz: envOrDefaultInt("STT_SAMPLE_RATE_HZ", 16000),
			PollInterval: envOrDefaultDuration("STT_POLL_INTERVAL", 500*time.Millisecond),
		},
		Queue: QueueConfig{
			ConfidenceThreshold: envOrDefaultFloat("QUEUE_CONFIDENCE_THRESHOLD", 0.7),
		},
		Retry: RetryConfig{
			MaxAttempts: envOrDefaultInt("RETRY_MAX_ATTEMPTS", 3),
			BaseDelay:   envOrDefaultDuration("RETRY_BASE_DELAY", time.Second),
		},
		Breaker: BreakerConfig{
			FailureThreshold: envOrDefaultInt("BREAKER_FAILURE_THRESHOLD", 5),
			CoolDown:         envOrDefaultDuration("BREAKER_COOL_DOWN", 60*time.Second),
		},
		Mode: ModeConfig{
			LatencyCeiling: envOrDefaultDuration("MODE_LATENCY_CEILING", 3*time.Second),
		},
		Cycle: CycleConfig{
			BatchSize:      envOrDefaultInt("CYCLE_BATCH_SIZE", 100),
			CountThreshold: envOrDefaultInt("CYCLE_COUNT_THRESHOLD", 100),
			Interval:       envOrDefaultDuration("CYCLE_INTERVAL", 5*time.Second),
		},
		SessionLimits: SessionLimitsConfig{
			MaxAudioBytes: envOrDefaultInt64("SESSION_MAX_AUDIO_BYTES", 5*1024*1024),
			MaxDuration:   envOrDefaultDuration("SESSION_MAX_DURATION", 5*time.Minute),
			MaxPartials:   envOrDefaultInt("SESSION_MAX_PARTIALS", 500),
		},
		Kafka: KafkaConfig{
			Enabled:        envOrDefaultBool("KAFKA_ENABLED", false),
			Brokers:        envOrDefaultSlice("KAFKA_BROKERS", nil),
			TopicPartial:   envOrDefault("KAFKA_TOPIC_PARTIAL", "bolbharat.transcripts.partial"),
			TopicLifecycle: envOrDefault("KAFKA_TOPIC_LIFECYCLE", "bolbharat.recordings.lifecycle"),
			Principal:      envOrDefault("KAFKA_PRINCIPAL", principal),
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

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.ToLower(v)); err == nil {
			return b
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envOrDefaultSlice(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return def
}
