// --- File: bridgeservice/config/yaml_config_test.go ---
package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
	"github.com/tinywideclouds/go-notification-bridge/bridgeservice/config"
	"gopkg.in/yaml.v3"
)

func TestNewConfigFromYaml(t *testing.T) {
	logger := newTestLogger()

	t.Run("Success - maps all fields correctly", func(t *testing.T) {
		yamlCfg := &config.YamlConfig{
			ProjectID:              "yaml-project",
			ListenAddr:             ":9000",
			TopicID:                "yaml-topic",
			SubscriptionID:         "yaml-subscription",
			SubscriptionDLQTopicID: "yaml-dlq",
			MaxDeliveryAttempts:    6,
			EnsureSubscription:     true,
			Batch: config.YamlBatchConfig{
				MaxSize:     20,
				MaxWait:     "1500ms",
				SendTimeout: "4s",
			},
			IdentityServiceURL: "http://identity",
			CorsConfig: config.YamlCorsConfig{
				AllowedOrigins: []string{"http://yaml.com"},
				Role:           "editor",
			},
		}

		cfg, err := config.NewConfigFromYaml(yamlCfg, logger)

		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, "yaml-project", cfg.ProjectID)
		assert.Equal(t, ":9000", cfg.ListenAddr)
		assert.Equal(t, "yaml-topic", cfg.TopicID)
		assert.Equal(t, "yaml-subscription", cfg.SubscriptionID)
		assert.Equal(t, "yaml-dlq", cfg.SubscriptionDLQTopicID)
		assert.Equal(t, 6, cfg.MaxDeliveryAttempts)
		assert.True(t, cfg.EnsureSubscription)
		assert.Equal(t, 20, cfg.Batch.MaxSize)
		assert.Equal(t, 1500*time.Millisecond, cfg.Batch.MaxWait)
		assert.Equal(t, 4*time.Second, cfg.Batch.SendTimeout)
		assert.Equal(t, "http://identity", cfg.IdentityServiceURL)

		assert.Equal(t, []string{"http://yaml.com"}, cfg.CorsConfig.AllowedOrigins)
		assert.Equal(t, middleware.CorsRoleEditor, cfg.CorsConfig.Role)
	})

	t.Run("Success - Handles missing optional fields gracefully", func(t *testing.T) {
		yamlCfg := &config.YamlConfig{
			ProjectID:      "minimal-project",
			SubscriptionID: "minimal-sub",
		}

		cfg, err := config.NewConfigFromYaml(yamlCfg, logger)

		require.NoError(t, err)
		assert.Equal(t, "minimal-project", cfg.ProjectID)
		assert.Empty(t, cfg.ListenAddr)
		assert.Zero(t, cfg.Batch.MaxWait)
		assert.Zero(t, cfg.Batch.SendTimeout)
	})

	t.Run("Failure - Invalid duration", func(t *testing.T) {
		yamlCfg := &config.YamlConfig{Batch: config.YamlBatchConfig{MaxWait: "two seconds"}}

		_, err := config.NewConfigFromYaml(yamlCfg, logger)

		assert.ErrorContains(t, err, "batch.max_wait")
	})

	t.Run("Success - Unmarshals raw yaml", func(t *testing.T) {
		raw := []byte(`
project_id: raw-project
subscription_id: raw-sub
batch:
  max_size: 3
  max_wait: 250ms
`)
		var yamlCfg config.YamlConfig
		require.NoError(t, yaml.Unmarshal(raw, &yamlCfg))

		cfg, err := config.NewConfigFromYaml(&yamlCfg, logger)

		require.NoError(t, err)
		assert.Equal(t, "raw-project", cfg.ProjectID)
		assert.Equal(t, 3, cfg.Batch.MaxSize)
		assert.Equal(t, 250*time.Millisecond, cfg.Batch.MaxWait)
	})
}
