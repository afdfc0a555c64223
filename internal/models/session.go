package models

import "time"

// ConnectionState is the lifecycle state of one protocol session.
type ConnectionState string

const (
	ConnectionDisconnected ConnectionState = "disconnected"
	ConnectionConnecting   ConnectionState = "connecting"
	ConnectionQRReady      ConnectionState = "qr_ready"
	ConnectionConnected    ConnectionState = "connected"
	ConnectionError        ConnectionState = "error"
)

// SessionConfig is the durable per-session configuration: free-form metadata
// and the webhook subscription list. It is rewritten atomically on change and
// survives process restart; everything else about a session is rebuildable.
type SessionConfig struct {
	Metadata map[string]string `json:"metadata,omitempty"`
	Webhooks []WebhookConfig   `json:"webhooks,omitempty"`
}

// SessionInfo is the caller-visible summary of a session.
type SessionInfo struct {
	SessionID   string            `json:"sessionId"`
	Status      ConnectionState   `json:"status"`
	IsConnected bool              `json:"isConnected"`
	PhoneNumber string            `json:"phoneNumber,omitempty"`
	Name        string            `json:"name,omitempty"`
	StoreStats  *StoreStats       `json:"storeStats,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Webhooks    []WebhookConfig   `json:"webhooks,omitempty"`
}

// WebhookConfig is one webhook subscription: a URL and the event names it
// wants, where "all" matches everything.
type WebhookConfig struct {
	URL    string   `json:"url"`
	Events []string `json:"events,omitempty"`
}

// Matches reports whether this webhook subscribes to the given event name.
func (w WebhookConfig) Matches(event string) bool {
	events := w.Events
	if len(events) == 0 {
		return true
	}
	for _, e := range events {
		if e == "all" || e == event {
			return true
		}
	}
	return false
}

// EventEnvelope is the stable payload shape delivered to webhooks and
// real-time subscribers.
type EventEnvelope struct {
	Event     string            `json:"event"`
	SessionID string            `json:"sessionId"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Data      interface{}       `json:"data"`
	Timestamp time.Time         `json:"timestamp"`
}
