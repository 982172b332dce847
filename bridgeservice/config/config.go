// --- File: bridgeservice/config/config.go ---
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
)

const (
	defaultListenAddr          = ":8080"
	defaultMaxBatchSize        = 10
	defaultMaxBatchWait        = 2 * time.Second
	defaultMaxDeliveryAttempts = 5
)

type BatchConfig struct {
	MaxSize int
	MaxWait time.Duration
	// SendTimeout bounds a single provider call. Zero leaves it to the provider.
	SendTimeout time.Duration
}

// Config defines the *single*, authoritative configuration.
type Config struct {
	ProjectID              string
	ListenAddr             string
	TopicID                string
	SubscriptionID         string
	SubscriptionDLQTopicID string
	MaxDeliveryAttempts    int
	EnsureSubscription     bool

	Batch BatchConfig

	// IdentityServiceURL enables JWT auth on the invoke endpoint when set.
	IdentityServiceURL string
	CorsConfig         middleware.CorsConfig
}

// UpdateConfigWithEnvOverrides applies environment variables and final validation.
func UpdateConfigWithEnvOverrides(cfg *Config, logger *slog.Logger) (*Config, error) {
	logger.Debug("Applying environment variable overrides...")

	override := func(key string, apply func(string) error) error {
		val := os.Getenv(key)
		if val == "" {
			return nil
		}
		if err := apply(val); err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}
		logger.Debug("Overriding config value", "key", key, "source", "env")
		return nil
	}

	overrides := []struct {
		key   string
		apply func(string) error
	}{
		{"PROJECT_ID", func(v string) error { cfg.ProjectID = v; return nil }},
		{"PORT", func(v string) error { cfg.ListenAddr = ":" + v; return nil }},
		{"TOPIC_ID", func(v string) error { cfg.TopicID = v; return nil }},
		{"SUBSCRIPTION_ID", func(v string) error { cfg.SubscriptionID = v; return nil }},
		{"SUBSCRIPTION_DLQ_TOPIC_ID", func(v string) error { cfg.SubscriptionDLQTopicID = v; return nil }},
		{"MAX_DELIVERY_ATTEMPTS", intSetter(&cfg.MaxDeliveryAttempts)},
		{"ENSURE_SUBSCRIPTION", func(v string) error {
			b, err := strconv.ParseBool(v)
			cfg.EnsureSubscription = b
			return err
		}},
		{"BATCH_MAX_SIZE", intSetter(&cfg.Batch.MaxSize)},
		{"BATCH_MAX_WAIT", durationSetter(&cfg.Batch.MaxWait)},
		{"SEND_TIMEOUT", durationSetter(&cfg.Batch.SendTimeout)},
		{"IDENTITY_SERVICE_URL", func(v string) error { cfg.IdentityServiceURL = v; return nil }},
		{"CORS_ALLOWED_ORIGINS", func(v string) error {
			var cleanOrigins []string
			for _, o := range strings.Split(v, ",") {
				if trimmed := strings.TrimSpace(o); trimmed != "" {
					cleanOrigins = append(cleanOrigins, trimmed)
				}
			}
			cfg.CorsConfig.AllowedOrigins = cleanOrigins
			return nil
		}},
	}
	for _, o := range overrides {
		if err := override(o.key, o.apply); err != nil {
			return nil, err
		}
	}

	// Final Validation
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("project_id is required (set via YAML or PROJECT_ID env var)")
	}
	if cfg.SubscriptionID == "" {
		return nil, fmt.Errorf("subscription_id is required (set via YAML or SUBSCRIPTION_ID env var)")
	}
	if cfg.EnsureSubscription && cfg.TopicID == "" {
		return nil, fmt.Errorf("topic_id is required when ensure_subscription is enabled")
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultListenAddr
	}
	if cfg.Batch.MaxSize <= 0 {
		cfg.Batch.MaxSize = defaultMaxBatchSize
	}
	if cfg.Batch.MaxWait <= 0 {
		cfg.Batch.MaxWait = defaultMaxBatchWait
	}
	if cfg.Batch.SendTimeout < 0 {
		cfg.Batch.SendTimeout = 0
	}
	if cfg.MaxDeliveryAttempts <= 0 {
		cfg.MaxDeliveryAttempts = defaultMaxDeliveryAttempts
	}
	// Pub/Sub only accepts 5..100.
	if cfg.MaxDeliveryAttempts < 5 || cfg.MaxDeliveryAttempts > 100 {
		return nil, fmt.Errorf("max_delivery_attempts must be between 5 and 100, got %d", cfg.MaxDeliveryAttempts)
	}

	logger.Debug("Configuration finalized and validated successfully")
	return cfg, nil
}

func intSetter(dst *int) func(string) error {
	return func(v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*dst = n
		return nil
	}
}

func durationSetter(dst *time.Duration) func(string) error {
	return func(v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*dst = d
		return nil
	}
}
