package types

import (
	"encoding/json"
	"time"
)

// EventKind enumerates the inbound protocol event families. The fan-out
// boundary switches exhaustively over this closed set.
type EventKind string

const (
	EventChatsSet         EventKind = "chats.set"
	EventChatsUpsert      EventKind = "chats.upsert"
	EventChatsUpdate      EventKind = "chats.update"
	EventChatsDelete      EventKind = "chats.delete"
	EventContactsSet      EventKind = "contacts.set"
	EventContactsUpsert   EventKind = "contacts.upsert"
	EventContactsUpdate   EventKind = "contacts.update"
	EventMessagesSet      EventKind = "messages.set"
	EventMessagesUpsert   EventKind = "messages.upsert"
	EventMessagesUpdate   EventKind = "messages.update"
	EventMessagesDelete   EventKind = "messages.delete"
	EventGroupsUpsert     EventKind = "groups.upsert"
	EventGroupsUpdate     EventKind = "groups.update"
	EventPresenceUpdate   EventKind = "presence.update"
	EventCall             EventKind = "call"
	EventConnectionUpdate EventKind = "connection.update"
	EventPairingCode      EventKind = "pairing.code"
	EventQRCode           EventKind = "qr.code"
)

// Event is one inbound protocol event: a closed kind tag plus the raw
// payload of that family.
type Event struct {
	Kind      EventKind       `json:"event"`
	SessionID string          `json:"sessionId"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// SendResponse is the protocol client's acknowledgement of an outbound send.
type SendResponse struct {
	MessageID string `json:"messageId"`
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// TextPayload is the body of a text send.
type TextPayload struct {
	Text string `json:"text"`
}

// MediaPayload is the body of an image or document send. Exactly one of URL
// and Path is set.
type MediaPayload struct {
	URL      string `json:"url,omitempty"`
	Path     string `json:"path,omitempty"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

// LocationPayload is the body of a location send.
type LocationPayload struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name,omitempty"`
	Address   string  `json:"address,omitempty"`
}

// ContactPayload is the body of a contact-card send.
type ContactPayload struct {
	DisplayName string `json:"displayName"`
	Phone       string `json:"phone,omitempty"`
	VCard       string `json:"vcard,omitempty"`
}

// Button is one choice of a buttons message.
type Button struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// ButtonsPayload is the body of a buttons send.
type ButtonsPayload struct {
	Text    string   `json:"text"`
	Footer  string   `json:"footer,omitempty"`
	Buttons []Button `json:"buttons"`
}

// PollPayload is the body of a poll send.
type PollPayload struct {
	Name        string   `json:"name"`
	Options     []string `json:"options"`
	MultiSelect bool     `json:"multiSelect,omitempty"`
}

// GroupInfo is the protocol client's view of a group.
type GroupInfo struct {
	ID           string   `json:"id"`
	Subject      string   `json:"subject"`
	Description  string   `json:"description,omitempty"`
	Owner        string   `json:"owner,omitempty"`
	Participants []string `json:"participants,omitempty"`
}
