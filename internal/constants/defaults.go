package constants

// Default queue configuration values. The rate limiter caps total outbound
// throughput even when many jobs are eligible at once; remote-side throttling
// is the failure mode being guarded against.
const (
	DefaultQueueWorkers          = 5
	DefaultRateLimitMax          = 20
	DefaultRateLimitWindowMs     = 1000
	DefaultQueuePollIntervalMs   = 100
	DefaultJobMaxAttempts        = 3
	DefaultJobBackoffInitialMs   = 500
	DefaultJobBackoffMaxMs       = 60000
	DefaultDatabaseRetryAttempts = 3
	DefaultRetryBackoffMs        = 1000
	DefaultMaxBackoffMs          = 60000
)

// Default conversation store values.
const (
	DefaultSnapshotIntervalSec     = 30
	DefaultMediaRetainPerChat      = 100
	DefaultSnapshotMessagesPerChat = 100
	DefaultOverviewPageSize        = 50
	DefaultContactsPageSize        = 100
	DefaultMessagesPageSize        = 50
	MaxPreviewLength               = 100
)

// Default bulk campaign values.
const (
	DefaultBulkMaxRecipients = 100
	DefaultBulkMaxRetained   = 100
	DefaultBulkListLimit     = 50
	DefaultBulkDelayMs       = 3000
)

// Random delay bounds used when a delay spec asks for "auto".
const (
	AutoDelayMinSec = 1
	AutoDelayMaxSec = 15
)

// Default timeout values.
const (
	DefaultWebhookTimeoutSec     = 10
	DefaultGracefulShutdownSec   = 30
	DefaultServerPort            = 8082
	DefaultServerReadTimeoutSec  = 15
	DefaultServerWriteTimeoutSec = 15
	DefaultServerIdleTimeoutSec  = 60
	ServerErrorChannelSize       = 1
	DefaultSubscriberBufferSize  = 64
	DefaultEventChannelSize      = 256
)

// Privacy settings.
const (
	DefaultPhoneMaskLength = 4
)

// Input validation bounds applied at the API boundary.
const (
	MinPhoneNumberLength = 5
	MaxPhoneNumberLength = 20
	MaxChatIDLength      = 100
	MaxMessageIDLength   = 100
	MaxSessionIDLength   = 50
	MaxMetadataKeyLength = 64
	MaxHTTPRequestBytes  = 10 * 1024 * 1024
	BytesPerMegabyte     = 1024 * 1024
)

// EncryptionSalt is the application-specific PBKDF2 salt for at-rest payload
// encryption.
const EncryptionSalt = "chatery-queue-salt-v1"
