package service

import (
	"sync"

	"chatery/internal/constants"
	"chatery/internal/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Hub fans session events out to real-time subscribers. Every subscriber
// owns a bounded channel; publishing never blocks, a full subscriber simply
// loses the event.
type Hub struct {
	logger     *logrus.Logger
	bufferSize int

	mu          sync.RWMutex
	subscribers map[string]map[string]chan models.EventEnvelope
}

func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		logger:      logger,
		bufferSize:  constants.DefaultSubscriberBufferSize,
		subscribers: make(map[string]map[string]chan models.EventEnvelope),
	}
}

// Subscribe registers a new listener for the session's events. The returned
// id releases the subscription via Unsubscribe; the channel is closed when
// the subscription ends.
func (h *Hub) Subscribe(sessionID string) (string, <-chan models.EventEnvelope) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := uuid.NewString()
	ch := make(chan models.EventEnvelope, h.bufferSize)
	if h.subscribers[sessionID] == nil {
		h.subscribers[sessionID] = make(map[string]chan models.EventEnvelope)
	}
	h.subscribers[sessionID][id] = ch
	return id, ch
}

// Unsubscribe removes a listener and closes its channel. Unknown ids are
// ignored.
func (h *Hub) Unsubscribe(sessionID, subscriberID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.subscribers[sessionID]
	ch, ok := subs[subscriberID]
	if !ok {
		return
	}
	delete(subs, subscriberID)
	if len(subs) == 0 {
		delete(h.subscribers, sessionID)
	}
	close(ch)
}

// Publish delivers the envelope to every subscriber of its session. A slow
// subscriber's full buffer drops the event rather than stalling the
// publisher.
func (h *Hub) Publish(envelope models.EventEnvelope) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, ch := range h.subscribers[envelope.SessionID] {
		select {
		case ch <- envelope:
		default:
			h.logger.WithFields(logrus.Fields{
				"session":    envelope.SessionID,
				"subscriber": id,
				"event":      envelope.Event,
			}).Warn("Subscriber buffer full, dropping event")
		}
	}
}

// CloseSession removes every subscriber of a session, closing their
// channels.
func (h *Hub) CloseSession(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.subscribers[sessionID] {
		close(ch)
	}
	delete(h.subscribers, sessionID)
}
