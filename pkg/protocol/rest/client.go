package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"chatery/internal/constants"
	"chatery/pkg/circuitbreaker"
	"chatery/pkg/protocol/types"

	"github.com/sirupsen/logrus"
)

// Config locates the upstream protocol gateway for one session.
type Config struct {
	BaseURL    string `json:"baseUrl"`
	APIKey     string `json:"apiKey,omitempty"`
	SessionID  string `json:"sessionId"`
	TimeoutSec int    `json:"timeoutSec,omitempty"`
}

// Client talks to a REST protocol gateway and implements types.Client. Sends
// go out as JSON POSTs guarded by a circuit breaker; inbound events arrive
// through Ingest (the operational server's webhook route) and are delivered
// on a bounded channel.
type Client struct {
	config     Config
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
	logger     *logrus.Logger

	mu     sync.Mutex
	events chan types.Event
	closed bool
}

func NewClient(config Config, logger *logrus.Logger) *Client {
	timeout := config.TimeoutSec
	if timeout <= 0 {
		timeout = 30
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: time.Duration(timeout) * time.Second},
		breaker: circuitbreaker.NewWithLogger("protocol-"+config.SessionID,
			5, 30*time.Second, logger),
		logger: logger,
		events: make(chan types.Event, constants.DefaultEventChannelSize),
	}
}

func (c *Client) Connect(ctx context.Context) error {
	_, err := c.post(ctx, c.sessionPath("start"), nil)
	return err
}

// Disconnect stops the upstream session and closes the event channel; no
// further Ingest calls are accepted.
func (c *Client) Disconnect(ctx context.Context) error {
	_, err := c.post(ctx, c.sessionPath("stop"), nil)

	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.events)
	}
	c.mu.Unlock()

	return err
}

func (c *Client) Logout(ctx context.Context) error {
	_, err := c.post(ctx, c.sessionPath("logout"), nil)
	return err
}

func (c *Client) SendText(ctx context.Context, chatID string, payload types.TextPayload) (*types.SendResponse, error) {
	return c.send(ctx, "text", chatID, payload)
}

func (c *Client) SendImage(ctx context.Context, chatID string, payload types.MediaPayload) (*types.SendResponse, error) {
	return c.send(ctx, "image", chatID, payload)
}

func (c *Client) SendDocument(ctx context.Context, chatID string, payload types.MediaPayload) (*types.SendResponse, error) {
	return c.send(ctx, "document", chatID, payload)
}

func (c *Client) SendLocation(ctx context.Context, chatID string, payload types.LocationPayload) (*types.SendResponse, error) {
	return c.send(ctx, "location", chatID, payload)
}

func (c *Client) SendContact(ctx context.Context, chatID string, payload types.ContactPayload) (*types.SendResponse, error) {
	return c.send(ctx, "contact", chatID, payload)
}

func (c *Client) SendButtons(ctx context.Context, chatID string, payload types.ButtonsPayload) (*types.SendResponse, error) {
	return c.send(ctx, "buttons", chatID, payload)
}

func (c *Client) SendPoll(ctx context.Context, chatID string, payload types.PollPayload) (*types.SendResponse, error) {
	return c.send(ctx, "poll", chatID, payload)
}

func (c *Client) SendTyping(ctx context.Context, chatID string, durationMs int64) error {
	body := map[string]interface{}{
		"chatId":     chatID,
		"durationMs": durationMs,
	}
	_, err := c.post(ctx, c.sessionPath("typing"), body)
	return err
}

func (c *Client) IsRegistered(ctx context.Context, chatID string) (bool, error) {
	var result struct {
		Registered bool `json:"registered"`
	}
	query := url.Values{"chatId": {chatID}}
	if err := c.get(ctx, c.sessionPath("registered")+"?"+query.Encode(), &result); err != nil {
		return false, err
	}
	return result.Registered, nil
}

func (c *Client) GetProfilePictureURL(ctx context.Context, chatID string) (string, error) {
	var result struct {
		URL string `json:"url"`
	}
	query := url.Values{"chatId": {chatID}}
	if err := c.get(ctx, c.sessionPath("profile-picture")+"?"+query.Encode(), &result); err != nil {
		return "", err
	}
	return result.URL, nil
}

func (c *Client) GetGroupMetadata(ctx context.Context, groupID string) (*types.GroupInfo, error) {
	var result types.GroupInfo
	query := url.Values{"groupId": {groupID}}
	if err := c.get(ctx, c.sessionPath("group")+"?"+query.Encode(), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) Events() <-chan types.Event {
	return c.events
}

// Ingest feeds one inbound gateway event into the client's channel. The
// channel is bounded: when the consumer falls behind, the event is dropped
// and logged rather than blocking the caller.
func (c *Client) Ingest(event types.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.events <- event:
	default:
		c.logger.WithFields(logrus.Fields{
			"session": c.config.SessionID,
			"event":   string(event.Kind),
		}).Warn("Event channel full, dropping event")
	}
}

func (c *Client) send(ctx context.Context, kind, chatID string, payload interface{}) (*types.SendResponse, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	body := map[string]interface{}{
		"chatId":  chatID,
		"payload": json.RawMessage(raw),
	}
	return c.post(ctx, c.sessionPath("send/"+kind), body)
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) (*types.SendResponse, error) {
	var result types.SendResponse
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		var body io.Reader
		if payload != nil {
			jsonData, err := json.Marshal(payload)
			if err != nil {
				return fmt.Errorf("failed to marshal payload: %w", err)
			}
			body = bytes.NewBuffer(jsonData)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, body)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		c.authorize(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to send request: %w", err)
		}
		defer resp.Body.Close()

		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil && err != io.EOF {
			return fmt.Errorf("failed to decode response: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("request failed with status %d", resp.StatusCode)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	return c.breaker.Execute(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+path, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		c.authorize(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to send request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("request failed with status %d", resp.StatusCode)
		}
		return json.NewDecoder(resp.Body).Decode(out)
	})
}

func (c *Client) authorize(req *http.Request) {
	if c.config.APIKey != "" {
		req.Header.Set("X-Api-Key", c.config.APIKey)
	}
}

func (c *Client) sessionPath(suffix string) string {
	return fmt.Sprintf("/api/%s/%s", url.PathEscape(c.config.SessionID), suffix)
}
