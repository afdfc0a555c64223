package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"chatery/internal/constants"
	"chatery/internal/models"
	protocoltypes "chatery/pkg/protocol/types"

	"github.com/sirupsen/logrus"
)

// FanOut consumes each session's protocol event channel, applies every
// store-relevant event to the session's conversation store, then delivers
// the event to webhooks and real-time subscribers. One consumer goroutine
// runs per attached session; deliveries run concurrently but are tracked so
// shutdown can wait for them.
type FanOut struct {
	hub        *Hub
	logger     *logrus.Logger
	httpClient *http.Client

	mu        sync.Mutex
	consumers map[string]*consumer

	deliveries sync.WaitGroup
}

type consumer struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func NewFanOut(hub *Hub, delivery models.DeliveryConfig, logger *logrus.Logger) *FanOut {
	timeout := delivery.WebhookTimeoutSec
	if timeout <= 0 {
		timeout = constants.DefaultWebhookTimeoutSec
	}
	return &FanOut{
		hub:        hub,
		logger:     logger,
		httpClient: &http.Client{Timeout: time.Duration(timeout) * time.Second},
		consumers:  make(map[string]*consumer),
	}
}

// Attach starts consuming the session's event channel. Attaching the same
// session twice replaces the previous consumer.
func (f *FanOut) Attach(session *Session) {
	ctx, cancel := context.WithCancel(context.Background())
	c := &consumer{cancel: cancel, done: make(chan struct{})}

	f.mu.Lock()
	if prev, ok := f.consumers[session.ID]; ok {
		prev.cancel()
	}
	f.consumers[session.ID] = c
	f.mu.Unlock()

	go f.consume(ctx, session, c)
}

// Detach stops the session's consumer and waits for it to exit.
func (f *FanOut) Detach(sessionID string) {
	f.mu.Lock()
	c, ok := f.consumers[sessionID]
	if ok {
		delete(f.consumers, sessionID)
	}
	f.mu.Unlock()
	if !ok {
		return
	}
	c.cancel()
	<-c.done
}

// Close detaches every consumer and waits for in-flight webhook deliveries.
func (f *FanOut) Close() {
	f.mu.Lock()
	consumers := make([]*consumer, 0, len(f.consumers))
	for id, c := range f.consumers {
		consumers = append(consumers, c)
		delete(f.consumers, id)
	}
	f.mu.Unlock()

	for _, c := range consumers {
		c.cancel()
		<-c.done
	}
	f.deliveries.Wait()
}

// Drain blocks until every delivery started so far has finished.
func (f *FanOut) Drain() {
	f.deliveries.Wait()
}

func (f *FanOut) consume(ctx context.Context, session *Session, c *consumer) {
	defer close(c.done)

	events := session.Client.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			f.handle(ctx, session, event)
		}
	}
}

// handle applies the event to the session's state, then forwards it. Store
// application failures are logged and do not block forwarding; subscribers
// see the event either way.
func (f *FanOut) handle(ctx context.Context, session *Session, event protocoltypes.Event) {
	if err := f.apply(session, event); err != nil {
		f.logger.WithFields(logrus.Fields{
			"session": session.ID,
			"event":   string(event.Kind),
		}).WithError(err).Warn("Failed to apply event to store")
	}

	timestamp := event.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now()
	}
	envelope := models.EventEnvelope{
		Event:     string(event.Kind),
		SessionID: session.ID,
		Metadata:  session.Config().Metadata,
		Data:      event.Payload,
		Timestamp: timestamp,
	}

	f.hub.Publish(envelope)
	f.deliver(ctx, session, envelope)
}

// apply translates a protocol event into its store mutation. The switch is
// exhaustive over the event kinds; an unknown kind is an error so a new
// family cannot be silently dropped.
func (f *FanOut) apply(session *Session, event protocoltypes.Event) error {
	switch event.Kind {
	case protocoltypes.EventChatsSet, protocoltypes.EventChatsUpsert, protocoltypes.EventChatsUpdate:
		var chats []models.Chat
		if err := json.Unmarshal(event.Payload, &chats); err != nil {
			return fmt.Errorf("failed to decode chats payload: %w", err)
		}
		return session.Store.Apply(models.StoreEvent{Kind: models.StoreEventKind(event.Kind), Chats: chats})

	case protocoltypes.EventChatsDelete:
		var ids []string
		if err := json.Unmarshal(event.Payload, &ids); err != nil {
			return fmt.Errorf("failed to decode chat ids payload: %w", err)
		}
		return session.Store.Apply(models.StoreEvent{Kind: models.EventChatsDelete, ChatIDs: ids})

	case protocoltypes.EventContactsSet, protocoltypes.EventContactsUpsert, protocoltypes.EventContactsUpdate:
		var contacts []models.Contact
		if err := json.Unmarshal(event.Payload, &contacts); err != nil {
			return fmt.Errorf("failed to decode contacts payload: %w", err)
		}
		return session.Store.Apply(models.StoreEvent{Kind: models.StoreEventKind(event.Kind), Contacts: contacts})

	case protocoltypes.EventMessagesSet, protocoltypes.EventMessagesUpsert:
		var messages []models.Message
		if err := json.Unmarshal(event.Payload, &messages); err != nil {
			return fmt.Errorf("failed to decode messages payload: %w", err)
		}
		return session.Store.Apply(models.StoreEvent{Kind: models.StoreEventKind(event.Kind), Messages: messages})

	case protocoltypes.EventMessagesUpdate:
		var updates []models.MessageUpdate
		if err := json.Unmarshal(event.Payload, &updates); err != nil {
			return fmt.Errorf("failed to decode message updates payload: %w", err)
		}
		return session.Store.Apply(models.StoreEvent{Kind: models.EventMessagesUpdate, MessageUpdates: updates})

	case protocoltypes.EventMessagesDelete:
		var keys []models.MessageKey
		if err := json.Unmarshal(event.Payload, &keys); err != nil {
			return fmt.Errorf("failed to decode message keys payload: %w", err)
		}
		return session.Store.Apply(models.StoreEvent{Kind: models.EventMessagesDelete, MessageKeys: keys})

	case protocoltypes.EventGroupsUpsert, protocoltypes.EventGroupsUpdate:
		var groups []models.GroupMetadata
		if err := json.Unmarshal(event.Payload, &groups); err != nil {
			return fmt.Errorf("failed to decode groups payload: %w", err)
		}
		return session.Store.Apply(models.StoreEvent{Kind: models.StoreEventKind(event.Kind), Groups: groups})

	case protocoltypes.EventConnectionUpdate:
		var update struct {
			Status models.ConnectionState `json:"status"`
		}
		if err := json.Unmarshal(event.Payload, &update); err != nil {
			return fmt.Errorf("failed to decode connection update payload: %w", err)
		}
		if update.Status != "" {
			session.SetState(update.Status)
		}
		return nil

	case protocoltypes.EventPresenceUpdate, protocoltypes.EventCall,
		protocoltypes.EventPairingCode, protocoltypes.EventQRCode:
		// Forward-only families, no store effect.
		return nil

	default:
		return fmt.Errorf("unknown event kind: %s", event.Kind)
	}
}

// deliver posts the envelope to every matching webhook. Each delivery runs
// independently so one slow endpoint never delays another; failures are
// logged and never retried.
func (f *FanOut) deliver(ctx context.Context, session *Session, envelope models.EventEnvelope) {
	webhooks := session.Config().Webhooks
	if len(webhooks) == 0 {
		return
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		f.logger.WithField("session", session.ID).WithError(err).Error("Failed to serialize event envelope")
		return
	}

	for _, webhook := range webhooks {
		if !webhook.Matches(envelope.Event) {
			continue
		}
		f.deliveries.Add(1)
		go func(webhook models.WebhookConfig) {
			defer f.deliveries.Done()
			f.post(ctx, webhook, envelope, body)
		}(webhook)
	}
}

func (f *FanOut) post(ctx context.Context, webhook models.WebhookConfig, envelope models.EventEnvelope, body []byte) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhook.URL, bytes.NewReader(body))
	if err != nil {
		f.logger.WithField("url", webhook.URL).WithError(err).Error("Failed to build webhook request")
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Source", "chatery")
	req.Header.Set("X-Session-Id", envelope.SessionID)
	req.Header.Set("X-Webhook-Event", envelope.Event)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		f.logger.WithFields(logrus.Fields{
			"session": envelope.SessionID,
			"event":   envelope.Event,
		}).WithError(err).Warn("Webhook delivery failed")
		return
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		f.logger.WithFields(logrus.Fields{
			"session": envelope.SessionID,
			"event":   envelope.Event,
			"status":  resp.StatusCode,
		}).Warn("Webhook returned non-success status")
	}
}
