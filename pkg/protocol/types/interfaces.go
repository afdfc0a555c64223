package types

import (
	"context"
)

// Client is the narrow capability surface the core consumes from a protocol
// client implementation. The core depends only on these operations' input and
// output shapes, never on the client's internal protocol state.
type Client interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Logout(ctx context.Context) error

	SendText(ctx context.Context, chatID string, payload TextPayload) (*SendResponse, error)
	SendImage(ctx context.Context, chatID string, payload MediaPayload) (*SendResponse, error)
	SendDocument(ctx context.Context, chatID string, payload MediaPayload) (*SendResponse, error)
	SendLocation(ctx context.Context, chatID string, payload LocationPayload) (*SendResponse, error)
	SendContact(ctx context.Context, chatID string, payload ContactPayload) (*SendResponse, error)
	SendButtons(ctx context.Context, chatID string, payload ButtonsPayload) (*SendResponse, error)
	SendPoll(ctx context.Context, chatID string, payload PollPayload) (*SendResponse, error)
	SendTyping(ctx context.Context, chatID string, durationMs int64) error

	// IsRegistered reports whether the target id can receive messages.
	IsRegistered(ctx context.Context, chatID string) (bool, error)
	GetProfilePictureURL(ctx context.Context, chatID string) (string, error)
	GetGroupMetadata(ctx context.Context, groupID string) (*GroupInfo, error)

	// Events returns the client's inbound event stream. The channel is
	// closed when the client disconnects terminally.
	Events() <-chan Event
}
