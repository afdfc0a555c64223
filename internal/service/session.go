package service

import (
	"sync"

	"chatery/internal/models"
	"chatery/internal/store"
	protocoltypes "chatery/pkg/protocol/types"
)

// Session ties one protocol connection to its conversation store and durable
// configuration.
type Session struct {
	ID     string
	Client protocoltypes.Client
	Store  *store.Store

	mu     sync.RWMutex
	state  models.ConnectionState
	config models.SessionConfig

	// updateMu serializes read-modify-write config updates; mu alone only
	// covers the individual read and write, not the sequence.
	updateMu sync.Mutex
}

func newSession(id string, client protocoltypes.Client, cache *store.Store, config models.SessionConfig) *Session {
	return &Session{
		ID:     id,
		Client: client,
		Store:  cache,
		state:  models.ConnectionDisconnected,
		config: config,
	}
}

// State returns the current connection state.
func (s *Session) State() models.ConnectionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// SetState records a connection state transition.
func (s *Session) SetState(state models.ConnectionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

// Config returns a copy of the session's durable configuration.
func (s *Session) Config() models.SessionConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyConfig(s.config)
}

func (s *Session) setConfig(config models.SessionConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = config
}

// Info builds the caller-visible summary of the session.
func (s *Session) Info() models.SessionInfo {
	s.mu.RLock()
	state := s.state
	config := copyConfig(s.config)
	s.mu.RUnlock()

	stats := s.Store.Stats()
	return models.SessionInfo{
		SessionID:   s.ID,
		Status:      state,
		IsConnected: state == models.ConnectionConnected,
		Name:        config.Metadata["name"],
		StoreStats:  &stats,
		Metadata:    config.Metadata,
		Webhooks:    config.Webhooks,
	}
}

func copyConfig(config models.SessionConfig) models.SessionConfig {
	out := models.SessionConfig{}
	if config.Metadata != nil {
		out.Metadata = make(map[string]string, len(config.Metadata))
		for k, v := range config.Metadata {
			out.Metadata[k] = v
		}
	}
	if config.Webhooks != nil {
		out.Webhooks = make([]models.WebhookConfig, len(config.Webhooks))
		copy(out.Webhooks, config.Webhooks)
	}
	return out
}
