package config

import (
	"encoding/json"
	"os"
	"strconv"

	"chatery/internal/constants"
	"chatery/internal/models"
)

var (
	ErrMissingDataDir = models.ConfigError{Message: "missing data directory"}
	ErrMissingDBPath  = models.ConfigError{Message: "missing database path"}
)

func LoadConfig(path string) (*models.Config, error) {
	file, err := os.ReadFile(path) // #nosec G304 - Operator-supplied path
	if err != nil {
		return nil, err
	}

	var config models.Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	applyEnvironmentOverrides(&config)

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func validate(c *models.Config) error {
	if c.DataDir == "" {
		return ErrMissingDataDir
	}
	if c.Database.Path == "" {
		return ErrMissingDBPath
	}

	if c.Queue.Workers <= 0 {
		c.Queue.Workers = constants.DefaultQueueWorkers
	}
	if c.Queue.RateLimitMax <= 0 {
		c.Queue.RateLimitMax = constants.DefaultRateLimitMax
	}
	if c.Queue.RateLimitWindowMs <= 0 {
		c.Queue.RateLimitWindowMs = constants.DefaultRateLimitWindowMs
	}
	if c.Queue.PollIntervalMs <= 0 {
		c.Queue.PollIntervalMs = constants.DefaultQueuePollIntervalMs
	}

	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = constants.DefaultJobMaxAttempts
	}
	if c.Retry.InitialBackoffMs <= 0 {
		c.Retry.InitialBackoffMs = constants.DefaultJobBackoffInitialMs
	}
	if c.Retry.MaxBackoffMs <= 0 {
		c.Retry.MaxBackoffMs = constants.DefaultJobBackoffMaxMs
	}
	if c.Retry.MaxBackoffMs < c.Retry.InitialBackoffMs {
		return models.ConfigError{Message: "retry max backoff must not be smaller than initial backoff"}
	}

	if c.Store.SnapshotIntervalSec <= 0 {
		c.Store.SnapshotIntervalSec = constants.DefaultSnapshotIntervalSec
	}
	if c.Store.MediaRetainPerChat <= 0 {
		c.Store.MediaRetainPerChat = constants.DefaultMediaRetainPerChat
	}

	if c.Bulk.MaxRecipients <= 0 {
		c.Bulk.MaxRecipients = constants.DefaultBulkMaxRecipients
	}
	if c.Bulk.MaxRetained <= 0 {
		c.Bulk.MaxRetained = constants.DefaultBulkMaxRetained
	}
	if c.Bulk.ListLimit <= 0 {
		c.Bulk.ListLimit = constants.DefaultBulkListLimit
	}
	if c.Bulk.DefaultDelayMs <= 0 {
		c.Bulk.DefaultDelayMs = constants.DefaultBulkDelayMs
	}

	if c.Delivery.WebhookTimeoutSec <= 0 {
		c.Delivery.WebhookTimeoutSec = constants.DefaultWebhookTimeoutSec
	}

	if c.Server.Port <= 0 {
		c.Server.Port = constants.DefaultServerPort
	}
	if c.Server.ReadTimeoutSec <= 0 {
		c.Server.ReadTimeoutSec = constants.DefaultServerReadTimeoutSec
	}
	if c.Server.WriteTimeoutSec <= 0 {
		c.Server.WriteTimeoutSec = constants.DefaultServerWriteTimeoutSec
	}
	if c.Server.IdleTimeoutSec <= 0 {
		c.Server.IdleTimeoutSec = constants.DefaultServerIdleTimeoutSec
	}

	return nil
}

func applyEnvironmentOverrides(c *models.Config) {
	if level := os.Getenv("CHATERY_LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}
	if dir := os.Getenv("CHATERY_DATA_DIR"); dir != "" {
		c.DataDir = dir
	}
	if path := os.Getenv("CHATERY_DB_PATH"); path != "" {
		c.Database.Path = path
	}
	if port := os.Getenv("CHATERY_PORT"); port != "" {
		if n, err := strconv.Atoi(port); err == nil && n > 0 {
			c.Server.Port = n
		}
	}
}
