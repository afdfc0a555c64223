package store

import (
	"os"
	"sort"

	"chatery/internal/models"

	"github.com/sirupsen/logrus"
)

// RegisterMedia records that a message owns a downloaded media file. The
// file is deleted when the message or its chat is deleted, when the store is
// cleared, or when retention cleanup evicts it.
func (s *Store) RegisterMedia(messageID, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.media[messageID]; ok && old != path {
		s.removeFile(old)
	}
	s.media[messageID] = path
}

// MediaPath returns the file backing a message, if any.
func (s *Store) MediaPath(messageID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	path, ok := s.media[messageID]
	return path, ok
}

// CleanupRetention keeps at most keepPerChat media files per chat, evicting
// the oldest by message timestamp. Media whose owning message is gone counts
// as oldest. Returns the number of evicted files.
func (s *Store) CleanupRetention(keepPerChat int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if keepPerChat <= 0 {
		keepPerChat = 1
	}

	type ref struct {
		messageID string
		timestamp int64
	}

	byChat := make(map[string][]ref)
	for messageID := range s.media {
		chatID, msg := s.findMessageLocked(messageID)
		if msg == nil {
			// Orphaned file, owner already deleted
			s.removeMediaLocked(messageID)
			continue
		}
		byChat[chatID] = append(byChat[chatID], ref{messageID: messageID, timestamp: msg.Timestamp})
	}

	evicted := 0
	for _, refs := range byChat {
		if len(refs) <= keepPerChat {
			continue
		}
		sort.Slice(refs, func(i, j int) bool { return refs[i].timestamp > refs[j].timestamp })
		for _, r := range refs[keepPerChat:] {
			s.removeMediaLocked(r.messageID)
			evicted++
		}
	}
	return evicted
}

func (s *Store) findMessageLocked(messageID string) (string, *models.Message) {
	for chatID, chatMessages := range s.messages {
		if msg, ok := chatMessages[messageID]; ok {
			return chatID, msg
		}
	}
	return "", nil
}

// removeMediaLocked drops the mapping and best-effort deletes the file.
// Filesystem failures are logged and swallowed so cache consistency never
// blocks on disk state.
func (s *Store) removeMediaLocked(messageID string) {
	path, ok := s.media[messageID]
	if !ok {
		return
	}
	delete(s.media, messageID)
	s.removeFile(path)
}

func (s *Store) removeFile(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.WithFields(logrus.Fields{
			"session": s.sessionID,
			"path":    path,
		}).WithError(err).Warn("Failed to delete media file")
	}
}
