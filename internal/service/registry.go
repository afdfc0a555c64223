package service

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	apperrors "chatery/internal/errors"
	"chatery/internal/models"
	"chatery/internal/store"
	"chatery/internal/validation"
	protocoltypes "chatery/pkg/protocol/types"

	"github.com/sirupsen/logrus"
)

const sessionConfigFile = "config.json"
const sessionSnapshotFile = "store.snapshot.json"

// Registry is the application-scoped set of sessions. Each session's
// metadata and webhook list persist in a per-session config.json, rewritten
// atomically on every change; the conversation store is restored from its
// snapshot when available and starts empty otherwise.
type Registry struct {
	dataDir string
	logger  *logrus.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry(dataDir string, logger *logrus.Logger) (*Registry, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("data directory is required")
	}
	if err := os.MkdirAll(filepath.Join(dataDir, "sessions"), 0750); err != nil {
		return nil, fmt.Errorf("failed to create sessions directory: %w", err)
	}
	return &Registry{
		dataDir:  dataDir,
		logger:   logger,
		sessions: make(map[string]*Session),
	}, nil
}

// Create registers a session, loading its persisted configuration and
// restoring its store snapshot. A corrupted snapshot is discarded and logged;
// the session starts with an empty cache.
func (r *Registry) Create(sessionID string, client protocoltypes.Client) (*Session, error) {
	if sessionID == "" {
		return nil, apperrors.NewValidationError("sessionId", "sessionId is required")
	}
	if err := validation.ValidateSessionID(sessionID); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[sessionID]; exists {
		return nil, apperrors.New(apperrors.ErrCodeInvalidInput,
			fmt.Sprintf("session already exists: %s", sessionID))
	}

	if err := os.MkdirAll(r.sessionDir(sessionID), 0750); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	config, err := r.loadConfig(sessionID)
	if err != nil {
		return nil, err
	}

	cache := store.New(sessionID, r.logger)
	if err := cache.Restore(r.snapshotPath(sessionID)); err != nil {
		// The store is a rebuildable cache; start empty
		r.logger.WithField("session", sessionID).WithError(err).Warn("Store snapshot unusable, starting empty")
	}

	session := newSession(sessionID, client, cache, config)
	r.sessions[sessionID] = session
	r.logger.WithField("session", sessionID).Info("Session registered")
	return session, nil
}

// Get resolves a session by id.
func (r *Registry) Get(sessionID string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[sessionID]
	if !ok {
		return nil, apperrors.NewSessionNotFoundError(sessionID)
	}
	return session, nil
}

// List returns every registered session, ordered by id.
func (r *Registry) List() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, session := range r.sessions {
		out = append(out, session)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Delete removes a session: the store is cleared (cascading media files) and
// the persisted config and snapshot are wiped.
func (r *Registry) Delete(sessionID string) error {
	r.mu.Lock()
	session, ok := r.sessions[sessionID]
	if ok {
		delete(r.sessions, sessionID)
	}
	r.mu.Unlock()

	if !ok {
		return apperrors.NewSessionNotFoundError(sessionID)
	}

	session.Store.Clear()
	if err := os.RemoveAll(r.sessionDir(sessionID)); err != nil {
		return fmt.Errorf("failed to remove session directory: %w", err)
	}
	r.logger.WithField("session", sessionID).Info("Session deleted")
	return nil
}

// AddWebhook registers a webhook subscription and persists the config.
// Re-registering an existing URL replaces its event filter in place.
func (r *Registry) AddWebhook(sessionID string, webhook models.WebhookConfig) error {
	if err := validation.ValidateWebhookURL(webhook.URL); err != nil {
		return err
	}
	session, err := r.Get(sessionID)
	if err != nil {
		return err
	}

	session.updateMu.Lock()
	defer session.updateMu.Unlock()

	config := session.Config()
	replaced := false
	for i, existing := range config.Webhooks {
		if existing.URL == webhook.URL {
			config.Webhooks[i].Events = webhook.Events
			replaced = true
			break
		}
	}
	if !replaced {
		config.Webhooks = append(config.Webhooks, webhook)
	}
	return r.saveConfig(session, config)
}

// RemoveWebhook deletes a webhook subscription by URL and persists the
// config.
func (r *Registry) RemoveWebhook(sessionID, url string) error {
	session, err := r.Get(sessionID)
	if err != nil {
		return err
	}

	session.updateMu.Lock()
	defer session.updateMu.Unlock()

	config := session.Config()
	kept := config.Webhooks[:0]
	found := false
	for _, webhook := range config.Webhooks {
		if webhook.URL == url {
			found = true
			continue
		}
		kept = append(kept, webhook)
	}
	if !found {
		return apperrors.NewNotFoundError("webhook", url)
	}
	config.Webhooks = kept
	return r.saveConfig(session, config)
}

// ListWebhooks returns a session's webhook subscriptions.
func (r *Registry) ListWebhooks(sessionID string) ([]models.WebhookConfig, error) {
	session, err := r.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return session.Config().Webhooks, nil
}

// SetMetadata merges metadata entries into the session config and persists
// it. An empty value removes the key.
func (r *Registry) SetMetadata(sessionID string, metadata map[string]string) error {
	session, err := r.Get(sessionID)
	if err != nil {
		return err
	}

	session.updateMu.Lock()
	defer session.updateMu.Unlock()

	config := session.Config()
	if config.Metadata == nil {
		config.Metadata = make(map[string]string, len(metadata))
	}
	for k, v := range metadata {
		if v == "" {
			delete(config.Metadata, k)
			continue
		}
		config.Metadata[k] = v
	}
	return r.saveConfig(session, config)
}

// SnapshotPath returns where a session's store snapshot lives.
func (r *Registry) SnapshotPath(sessionID string) string {
	return r.snapshotPath(sessionID)
}

func (r *Registry) sessionDir(sessionID string) string {
	return filepath.Join(r.dataDir, "sessions", sessionID)
}

func (r *Registry) snapshotPath(sessionID string) string {
	return filepath.Join(r.sessionDir(sessionID), sessionSnapshotFile)
}

func (r *Registry) configPath(sessionID string) string {
	return filepath.Join(r.sessionDir(sessionID), sessionConfigFile)
}

func (r *Registry) loadConfig(sessionID string) (models.SessionConfig, error) {
	var config models.SessionConfig
	data, err := os.ReadFile(r.configPath(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return config, fmt.Errorf("failed to read session config: %w", err)
	}
	if err := json.Unmarshal(data, &config); err != nil {
		// Corrupted config is treated like the snapshot: discard and log
		r.logger.WithField("session", sessionID).WithError(err).Warn("Session config unreadable, starting fresh")
		return models.SessionConfig{}, nil
	}
	return config, nil
}

// saveConfig writes the config with the temp-file-then-rename pattern and
// only then applies it in memory, so a failed write never leaves the two out
// of sync.
func (r *Registry) saveConfig(session *Session, config models.SessionConfig) error {
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize session config: %w", err)
	}

	path := r.configPath(session.ID)
	tmp, err := os.CreateTemp(filepath.Dir(path), ".config-*")
	if err != nil {
		return fmt.Errorf("failed to create temp config: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write session config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close session config: %w", err)
	}
	if err := os.Chmod(tmpName, 0600); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to set config permissions: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to move config into place: %w", err)
	}

	session.setConfig(config)
	return nil
}
