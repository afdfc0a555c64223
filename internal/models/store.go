package models

import (
	"encoding/json"
	"strings"
)

// Chat is the cached view of one conversation as reported by the protocol
// client. It is merged incrementally; fields the protocol has not reported
// yet stay at their zero value.
type Chat struct {
	ID                    string `json:"id"`
	Name                  string `json:"name,omitempty"`
	UnreadCount           int    `json:"unreadCount,omitempty"`
	ConversationTimestamp int64  `json:"conversationTimestamp,omitempty"`
}

// Contact is a cached protocol contact. Notify is the name the remote side
// broadcasts about itself; Name is the locally stored name.
type Contact struct {
	ID           string `json:"id"`
	Name         string `json:"name,omitempty"`
	Notify       string `json:"notify,omitempty"`
	VerifiedName string `json:"verifiedName,omitempty"`
}

// Message is one cached protocol message, keyed by (chat id, message id).
// The struct is immutable once stored except for Status, which later
// protocol events may advance.
type Message struct {
	ID          string          `json:"id"`
	ChatID      string          `json:"chatId"`
	FromMe      bool            `json:"fromMe"`
	Timestamp   int64           `json:"timestamp"`
	ContentType string          `json:"contentType"`
	Text        string          `json:"text,omitempty"`
	Filename    string          `json:"filename,omitempty"`
	DisplayName string          `json:"displayName,omitempty"`
	Status      DeliveryStatus  `json:"status,omitempty"`
	Raw         json.RawMessage `json:"raw,omitempty"`
}

// DeliveryStatus tracks the remote-side acknowledgement level of a message.
type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "pending"
	DeliveryStatusSent      DeliveryStatus = "sent"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusRead      DeliveryStatus = "read"
)

// Message content type tags. Preview extraction matches these in declaration
// order; the first matching tag wins.
const (
	ContentTypeText     = "text"
	ContentTypeExtended = "extendedText"
	ContentTypeImage    = "image"
	ContentTypeVideo    = "video"
	ContentTypeAudio    = "audio"
	ContentTypeDocument = "document"
	ContentTypeSticker  = "sticker"
	ContentTypeContact  = "contact"
	ContentTypeLocation = "location"
	ContentTypeButtons  = "buttons"
	ContentTypeTemplate = "template"
	ContentTypeList     = "list"
	ContentTypePoll     = "poll"
)

// GroupMetadata is the cached metadata of a group chat.
type GroupMetadata struct {
	ID           string   `json:"id"`
	Subject      string   `json:"subject,omitempty"`
	Description  string   `json:"description,omitempty"`
	Owner        string   `json:"owner,omitempty"`
	Participants []string `json:"participants,omitempty"`
}

// LastMessage is the summary of a chat's newest message used in overviews.
type LastMessage struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"timestamp"`
	Preview   string `json:"preview"`
	FromMe    bool   `json:"fromMe"`
}

// ChatOverview is one pre-aggregated entry of the chat overview index.
type ChatOverview struct {
	ID                    string      `json:"id"`
	Name                  string      `json:"name"`
	IsGroup               bool        `json:"isGroup"`
	UnreadCount           int         `json:"unreadCount"`
	LastMessage           LastMessage `json:"lastMessage"`
	ProfilePicture        string      `json:"profilePicture,omitempty"`
	ConversationTimestamp int64       `json:"conversationTimestamp"`
}

// ActivityTimestamp is the sort key of an overview entry: the conversation
// timestamp when the protocol reported one, else the newest message's.
func (o ChatOverview) ActivityTimestamp() int64 {
	if o.ConversationTimestamp != 0 {
		return o.ConversationTimestamp
	}
	return o.LastMessage.Timestamp
}

// ContactEntry is one element of a paginated contact listing.
type ContactEntry struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Notify         string `json:"notify,omitempty"`
	VerifiedName   string `json:"verifiedName,omitempty"`
	ProfilePicture string `json:"profilePicture,omitempty"`
}

// StoreStats counts the entities held by a conversation store.
type StoreStats struct {
	Chats      int `json:"chats"`
	Contacts   int `json:"contacts"`
	Messages   int `json:"messages"`
	Groups     int `json:"groups"`
	MediaFiles int `json:"mediaFiles"`
}

const (
	userIDSuffix  = "@s.whatsapp.net"
	groupIDSuffix = "@g.us"
)

// IsGroupID reports whether a chat id addresses a group conversation.
func IsGroupID(chatID string) bool {
	return strings.Contains(chatID, "@g.")
}

// IsUserID reports whether a chat id addresses a direct conversation.
func IsUserID(chatID string) bool {
	return strings.HasSuffix(chatID, userIDSuffix)
}

// BareID strips the protocol suffix from a chat id for display fallback.
func BareID(chatID string) string {
	chatID = strings.TrimSuffix(chatID, userIDSuffix)
	return strings.TrimSuffix(chatID, groupIDSuffix)
}
