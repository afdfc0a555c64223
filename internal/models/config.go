package models

// Config is the root application configuration, loaded from a JSON file with
// environment overrides applied afterwards.
type Config struct {
	LogLevel string         `json:"logLevel,omitempty"`
	DataDir  string         `json:"dataDir"`
	Database DatabaseConfig `json:"database"`
	Queue    QueueConfig    `json:"queue"`
	Retry    RetryConfig    `json:"retry"`
	Store    StoreConfig    `json:"store"`
	Bulk     BulkConfig     `json:"bulk"`
	Delivery DeliveryConfig `json:"delivery"`
	Server   ServerConfig   `json:"server"`
	Tracing  TracingConfig  `json:"tracing"`
	Protocol ProtocolConfig `json:"protocol"`
}

// ProtocolConfig locates the upstream protocol gateway and names the sessions
// registered at startup. The gateway API key comes from the environment, not
// the config file.
type ProtocolConfig struct {
	BaseURL    string   `json:"baseUrl"`
	TimeoutSec int      `json:"timeoutSec,omitempty"`
	Sessions   []string `json:"sessions"`
}

// DatabaseConfig locates the durable job queue keyspace.
type DatabaseConfig struct {
	Path string `json:"path"`
}

// QueueConfig controls worker concurrency and the global throughput ceiling.
type QueueConfig struct {
	Workers           int `json:"workers"`
	RateLimitMax      int `json:"rateLimitMax"`
	RateLimitWindowMs int `json:"rateLimitWindowMs"`
	PollIntervalMs    int `json:"pollIntervalMs"`
}

// StoreConfig controls conversation store persistence and media retention.
type StoreConfig struct {
	SnapshotIntervalSec int `json:"snapshotIntervalSec"`
	MediaRetainPerChat  int `json:"mediaRetainPerChat"`
}

// BulkConfig bounds campaign size and retention.
type BulkConfig struct {
	MaxRecipients  int   `json:"maxRecipients"`
	MaxRetained    int   `json:"maxRetained"`
	ListLimit      int   `json:"listLimit"`
	DefaultDelayMs int64 `json:"defaultDelayMs"`
}

// DeliveryConfig controls outbound webhook delivery.
type DeliveryConfig struct {
	WebhookTimeoutSec int `json:"webhookTimeoutSec"`
}

// ServerConfig controls the operational HTTP surface.
type ServerConfig struct {
	Port            int `json:"port"`
	ReadTimeoutSec  int `json:"readTimeoutSec"`
	WriteTimeoutSec int `json:"writeTimeoutSec"`
	IdleTimeoutSec  int `json:"idleTimeoutSec"`
}

// TracingConfig mirrors the OpenTelemetry manager settings.
type TracingConfig struct {
	Enabled        bool    `json:"enabled"`
	ServiceName    string  `json:"serviceName,omitempty"`
	ServiceVersion string  `json:"serviceVersion,omitempty"`
	Environment    string  `json:"environment,omitempty"`
	OTLPEndpoint   string  `json:"otlpEndpoint,omitempty"`
	SampleRate     float64 `json:"sampleRate,omitempty"`
	UseStdout      bool    `json:"useStdout,omitempty"`
}

// ConfigError reports an invalid or incomplete configuration.
type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}
