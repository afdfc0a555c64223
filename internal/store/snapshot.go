package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"chatery/internal/constants"
	apperrors "chatery/internal/errors"
	"chatery/internal/models"
)

const snapshotVersion = 1

// snapshotPayload is the serialized form of a store. Binary payloads stay
// out: media is stored as path references and messages carry only their
// cached fields.
type snapshotPayload struct {
	Version     int                                   `json:"version"`
	SessionID   string                                `json:"sessionId"`
	SavedAt     time.Time                             `json:"savedAt"`
	Chats       map[string]*models.Chat               `json:"chats"`
	Contacts    map[string]*models.Contact            `json:"contacts"`
	Messages    map[string]map[string]*models.Message `json:"messages"`
	Groups      map[string]*models.GroupMetadata      `json:"groups"`
	Media       map[string]string                     `json:"media"`
	ProfilePics map[string]string                     `json:"profilePics"`
}

// validate rejects payloads whose entity maps contain null entries. JSON
// null decodes into a nil pointer, which every later read would dereference.
func (p *snapshotPayload) validate() error {
	for id, chat := range p.Chats {
		if chat == nil {
			return fmt.Errorf("null chat entry %q", id)
		}
	}
	for id, contact := range p.Contacts {
		if contact == nil {
			return fmt.Errorf("null contact entry %q", id)
		}
	}
	for chatID, chatMessages := range p.Messages {
		for id, msg := range chatMessages {
			if msg == nil {
				return fmt.Errorf("null message entry %q in chat %q", id, chatID)
			}
		}
	}
	for id, group := range p.Groups {
		if group == nil {
			return fmt.Errorf("null group entry %q", id)
		}
	}
	return nil
}

// Snapshot serializes the store to path using a temp-file-then-rename write
// so a crash mid-write cannot corrupt an existing snapshot. Messages are
// trimmed to the newest per-chat window before writing.
func (s *Store) Snapshot(path string) error {
	s.mu.RLock()
	payload := snapshotPayload{
		Version:     snapshotVersion,
		SessionID:   s.sessionID,
		SavedAt:     time.Now().UTC(),
		Chats:       s.chats,
		Contacts:    s.contacts,
		Messages:    trimMessages(s.messages, constants.DefaultSnapshotMessagesPerChat),
		Groups:      s.groups,
		Media:       s.media,
		ProfilePics: s.profilePics,
	}
	data, err := json.Marshal(payload)
	s.mu.RUnlock()
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeSnapshot, "failed to serialize snapshot")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeSnapshot, "failed to create snapshot directory")
	}

	tmp, err := os.CreateTemp(dir, ".snapshot-*")
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeSnapshot, "failed to create temp snapshot")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return apperrors.Wrap(err, apperrors.ErrCodeSnapshot, "failed to write snapshot")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return apperrors.Wrap(err, apperrors.ErrCodeSnapshot, "failed to close snapshot")
	}
	if err := os.Chmod(tmpName, 0600); err != nil {
		_ = os.Remove(tmpName)
		return apperrors.Wrap(err, apperrors.ErrCodeSnapshot, "failed to set snapshot permissions")
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return apperrors.Wrap(err, apperrors.ErrCodeSnapshot, "failed to move snapshot into place")
	}
	return nil
}

// Restore loads a snapshot written by Snapshot. A missing file leaves the
// store untouched and returns no error. An unreadable or corrupted snapshot
// is deleted, the store stays empty and usable, and the failure is reported
// for logging. The overview index is rebuilt after a successful load.
func (s *Store) Restore(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return apperrors.Wrap(err, apperrors.ErrCodeSnapshot, "failed to read snapshot")
	}

	var payload snapshotPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		s.discardSnapshot(path)
		return apperrors.Wrap(err, apperrors.ErrCodeSnapshot, "snapshot is corrupted, discarded")
	}
	if payload.Version != snapshotVersion {
		s.discardSnapshot(path)
		return apperrors.New(apperrors.ErrCodeSnapshot,
			fmt.Sprintf("unsupported snapshot version %d, discarded", payload.Version))
	}
	if err := payload.validate(); err != nil {
		s.discardSnapshot(path)
		return apperrors.Wrap(err, apperrors.ErrCodeSnapshot, "snapshot is corrupted, discarded")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.resetLocked()
	if payload.Chats != nil {
		s.chats = payload.Chats
	}
	if payload.Contacts != nil {
		s.contacts = payload.Contacts
	}
	if payload.Messages != nil {
		s.messages = payload.Messages
	}
	if payload.Groups != nil {
		s.groups = payload.Groups
	}
	if payload.Media != nil {
		s.media = payload.Media
	}
	if payload.ProfilePics != nil {
		s.profilePics = payload.ProfilePics
	}
	s.rebuildOverviewLocked()
	return nil
}

func (s *Store) discardSnapshot(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.WithField("path", path).WithError(err).Warn("Failed to delete corrupted snapshot")
	}
}

// trimMessages keeps the newest keep messages per chat.
func trimMessages(messages map[string]map[string]*models.Message, keep int) map[string]map[string]*models.Message {
	trimmed := make(map[string]map[string]*models.Message, len(messages))
	for chatID, chatMessages := range messages {
		if len(chatMessages) <= keep {
			trimmed[chatID] = chatMessages
			continue
		}
		sorted := make([]*models.Message, 0, len(chatMessages))
		for _, msg := range chatMessages {
			sorted = append(sorted, msg)
		}
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp > sorted[j].Timestamp })

		window := make(map[string]*models.Message, keep)
		for _, msg := range sorted[:keep] {
			window[msg.ID] = msg
		}
		trimmed[chatID] = window
	}
	return trimmed
}
