// --- File: bridgeservice/config/yaml_config.go ---
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
)

type YamlCorsConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	Role           string   `yaml:"role"`
}

type YamlBatchConfig struct {
	MaxSize     int    `yaml:"max_size"`
	MaxWait     string `yaml:"max_wait"`
	SendTimeout string `yaml:"send_timeout"`
}

// YamlConfig is the structure that mirrors the raw config.yaml file.
type YamlConfig struct {
	ProjectID              string          `yaml:"project_id"`
	ListenAddr             string          `yaml:"listen_addr"`
	TopicID                string          `yaml:"topic_id"`
	SubscriptionID         string          `yaml:"subscription_id"`
	SubscriptionDLQTopicID string          `yaml:"subscription_dlq_topic_id"`
	MaxDeliveryAttempts    int             `yaml:"max_delivery_attempts"`
	EnsureSubscription     bool            `yaml:"ensure_subscription"`
	Batch                  YamlBatchConfig `yaml:"batch"`
	IdentityServiceURL     string          `yaml:"identity_service_url"`
	CorsConfig             YamlCorsConfig  `yaml:"cors"`
}

// NewConfigFromYaml converts the YamlConfig into a clean, base Config struct.
func NewConfigFromYaml(baseCfg *YamlConfig, logger *slog.Logger) (*Config, error) {
	logger.Debug("Mapping YAML config to base config struct")

	maxWait, err := parseOptionalDuration(baseCfg.Batch.MaxWait)
	if err != nil {
		return nil, fmt.Errorf("batch.max_wait: %w", err)
	}
	sendTimeout, err := parseOptionalDuration(baseCfg.Batch.SendTimeout)
	if err != nil {
		return nil, fmt.Errorf("batch.send_timeout: %w", err)
	}

	cfg := &Config{
		ProjectID:              baseCfg.ProjectID,
		ListenAddr:             baseCfg.ListenAddr,
		TopicID:                baseCfg.TopicID,
		SubscriptionID:         baseCfg.SubscriptionID,
		SubscriptionDLQTopicID: baseCfg.SubscriptionDLQTopicID,
		MaxDeliveryAttempts:    baseCfg.MaxDeliveryAttempts,
		EnsureSubscription:     baseCfg.EnsureSubscription,
		Batch: BatchConfig{
			MaxSize:     baseCfg.Batch.MaxSize,
			MaxWait:     maxWait,
			SendTimeout: sendTimeout,
		},
		IdentityServiceURL: baseCfg.IdentityServiceURL,
		CorsConfig: middleware.CorsConfig{
			AllowedOrigins: baseCfg.CorsConfig.AllowedOrigins,
			Role:           middleware.CorsRole(baseCfg.CorsConfig.Role),
		},
	}

	logger.Debug("YAML config mapping complete",
		"project_id", cfg.ProjectID,
		"listen_addr", cfg.ListenAddr,
		"subscription_id", cfg.SubscriptionID,
		"batch_max_size", cfg.Batch.MaxSize,
	)

	return cfg, nil
}

func parseOptionalDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
