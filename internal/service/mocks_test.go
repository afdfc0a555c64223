package service

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"chatery/internal/models"
	protocoltypes "chatery/pkg/protocol/types"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// Mock protocol client
type mockClient struct {
	mock.Mock

	mu sync.Mutex

	sendResp *protocoltypes.SendResponse
	sendErr  error

	registered    bool
	registeredErr error

	sentChats    []string
	sentTypes    []string
	typingChats  []string
	checkedChats []string

	events chan protocoltypes.Event
}

func newMockClient() *mockClient {
	return &mockClient{
		sendResp:   &protocoltypes.SendResponse{MessageID: "msg-1", Status: "sent"},
		registered: true,
		events:     make(chan protocoltypes.Event, 16),
	}
}

func (m *mockClient) Connect(ctx context.Context) error    { return nil }
func (m *mockClient) Disconnect(ctx context.Context) error { return nil }
func (m *mockClient) Logout(ctx context.Context) error     { return nil }

func (m *mockClient) recordSend(kind, chatID string) (*protocoltypes.SendResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sentTypes = append(m.sentTypes, kind)
	m.sentChats = append(m.sentChats, chatID)
	return m.sendResp, m.sendErr
}

func (m *mockClient) SendText(ctx context.Context, chatID string, payload protocoltypes.TextPayload) (*protocoltypes.SendResponse, error) {
	return m.recordSend("text", chatID)
}

func (m *mockClient) SendImage(ctx context.Context, chatID string, payload protocoltypes.MediaPayload) (*protocoltypes.SendResponse, error) {
	return m.recordSend("image", chatID)
}

func (m *mockClient) SendDocument(ctx context.Context, chatID string, payload protocoltypes.MediaPayload) (*protocoltypes.SendResponse, error) {
	return m.recordSend("document", chatID)
}

func (m *mockClient) SendLocation(ctx context.Context, chatID string, payload protocoltypes.LocationPayload) (*protocoltypes.SendResponse, error) {
	return m.recordSend("location", chatID)
}

func (m *mockClient) SendContact(ctx context.Context, chatID string, payload protocoltypes.ContactPayload) (*protocoltypes.SendResponse, error) {
	return m.recordSend("contact", chatID)
}

func (m *mockClient) SendButtons(ctx context.Context, chatID string, payload protocoltypes.ButtonsPayload) (*protocoltypes.SendResponse, error) {
	return m.recordSend("buttons", chatID)
}

func (m *mockClient) SendPoll(ctx context.Context, chatID string, payload protocoltypes.PollPayload) (*protocoltypes.SendResponse, error) {
	return m.recordSend("poll", chatID)
}

func (m *mockClient) SendTyping(ctx context.Context, chatID string, durationMs int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.typingChats = append(m.typingChats, chatID)
	return nil
}

func (m *mockClient) IsRegistered(ctx context.Context, chatID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkedChats = append(m.checkedChats, chatID)
	return m.registered, m.registeredErr
}

func (m *mockClient) GetProfilePictureURL(ctx context.Context, chatID string) (string, error) {
	return "", nil
}

func (m *mockClient) GetGroupMetadata(ctx context.Context, groupID string) (*protocoltypes.GroupInfo, error) {
	return &protocoltypes.GroupInfo{ID: groupID}, nil
}

func (m *mockClient) Events() <-chan protocoltypes.Event {
	return m.events
}

func (m *mockClient) sent() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sentChats...)
}

func (m *mockClient) checked() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.checkedChats...)
}

func (m *mockClient) typed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.typingChats...)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	registry, err := NewRegistry(t.TempDir(), quietLogger())
	require.NoError(t, err)
	return registry
}

// newConnectedSession registers a session backed by a fresh mock client and
// marks it connected.
func newConnectedSession(t *testing.T, registry *Registry, sessionID string) (*Session, *mockClient) {
	t.Helper()
	client := newMockClient()
	session, err := registry.Create(sessionID, client)
	require.NoError(t, err)
	session.SetState(models.ConnectionConnected)
	return session, client
}

func waitFor(t *testing.T, timeout time.Duration, condition func() bool) {
	t.Helper()
	require.Eventually(t, condition, timeout, 5*time.Millisecond)
}
