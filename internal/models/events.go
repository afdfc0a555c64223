package models

// StoreEventKind enumerates the closed set of event families the conversation
// store understands. Handlers switch exhaustively over this type; adding a
// kind means adding a case.
type StoreEventKind string

const (
	EventChatsSet       StoreEventKind = "chats.set"
	EventChatsUpsert    StoreEventKind = "chats.upsert"
	EventChatsUpdate    StoreEventKind = "chats.update"
	EventChatsDelete    StoreEventKind = "chats.delete"
	EventContactsSet    StoreEventKind = "contacts.set"
	EventContactsUpsert StoreEventKind = "contacts.upsert"
	EventContactsUpdate StoreEventKind = "contacts.update"
	EventMessagesSet    StoreEventKind = "messages.set"
	EventMessagesUpsert StoreEventKind = "messages.upsert"
	EventMessagesUpdate StoreEventKind = "messages.update"
	EventMessagesDelete StoreEventKind = "messages.delete"
	EventGroupsUpsert   StoreEventKind = "groups.upsert"
	EventGroupsUpdate   StoreEventKind = "groups.update"
)

// MessageUpdate carries a partial message mutation (delivery status advance).
type MessageUpdate struct {
	ChatID    string          `json:"chatId"`
	MessageID string          `json:"messageId"`
	Status    *DeliveryStatus `json:"status,omitempty"`
	Timestamp *int64          `json:"timestamp,omitempty"`
}

// MessageKey identifies one message for deletion events.
type MessageKey struct {
	ChatID    string `json:"chatId"`
	MessageID string `json:"messageId"`
}

// StoreEvent is the tagged union applied to a conversation store. Exactly one
// payload slice is populated, matching Kind.
type StoreEvent struct {
	Kind           StoreEventKind  `json:"kind"`
	Chats          []Chat          `json:"chats,omitempty"`
	ChatIDs        []string        `json:"chatIds,omitempty"`
	Contacts       []Contact       `json:"contacts,omitempty"`
	Messages       []Message       `json:"messages,omitempty"`
	MessageUpdates []MessageUpdate `json:"messageUpdates,omitempty"`
	MessageKeys    []MessageKey    `json:"messageKeys,omitempty"`
	Groups         []GroupMetadata `json:"groups,omitempty"`
}
