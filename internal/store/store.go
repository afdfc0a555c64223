package store

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"chatery/internal/models"

	"github.com/sirupsen/logrus"
)

// Store is the per-session cache of chats, contacts, messages, group
// metadata, and media references. It is mutated only by the event-handling
// path (Apply) and read concurrently by API handlers; every list returned to
// a caller is a copy.
type Store struct {
	sessionID string
	logger    *logrus.Logger

	mu          sync.RWMutex
	chats       map[string]*models.Chat
	contacts    map[string]*models.Contact
	messages    map[string]map[string]*models.Message
	groups      map[string]*models.GroupMetadata
	media       map[string]string
	profilePics map[string]string
	overview    map[string]*models.ChatOverview
}

func New(sessionID string, logger *logrus.Logger) *Store {
	if logger == nil {
		logger = logrus.New()
	}
	s := &Store{
		sessionID: sessionID,
		logger:    logger,
	}
	s.resetLocked()
	return s
}

// resetLocked reinitializes every map. Callers hold the write lock (or own
// the store exclusively, as in New).
func (s *Store) resetLocked() {
	s.chats = make(map[string]*models.Chat)
	s.contacts = make(map[string]*models.Contact)
	s.messages = make(map[string]map[string]*models.Message)
	s.groups = make(map[string]*models.GroupMetadata)
	s.media = make(map[string]string)
	s.profilePics = make(map[string]string)
	s.overview = make(map[string]*models.ChatOverview)
}

// Apply merges one protocol event into the cache and incrementally updates
// the overview entries of the affected chats. The switch is exhaustive over
// the event kinds the store understands.
func (s *Store) Apply(event models.StoreEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch event.Kind {
	case models.EventChatsSet:
		s.chats = make(map[string]*models.Chat, len(event.Chats))
		for i := range event.Chats {
			chat := event.Chats[i]
			s.chats[chat.ID] = &chat
		}
		s.rebuildOverviewLocked()

	case models.EventChatsUpsert:
		for i := range event.Chats {
			s.mergeChatLocked(event.Chats[i], true)
			s.recomputeOverviewLocked(event.Chats[i].ID, nil)
		}

	case models.EventChatsUpdate:
		for i := range event.Chats {
			s.mergeChatLocked(event.Chats[i], false)
			s.recomputeOverviewLocked(event.Chats[i].ID, nil)
		}

	case models.EventChatsDelete:
		for _, chatID := range event.ChatIDs {
			s.deleteChatLocked(chatID)
		}

	case models.EventContactsSet:
		s.contacts = make(map[string]*models.Contact, len(event.Contacts))
		for i := range event.Contacts {
			contact := event.Contacts[i]
			s.contacts[contact.ID] = &contact
			s.recomputeOverviewLocked(contact.ID, nil)
		}

	case models.EventContactsUpsert:
		for i := range event.Contacts {
			s.mergeContactLocked(event.Contacts[i], true)
			s.recomputeOverviewLocked(event.Contacts[i].ID, nil)
		}

	case models.EventContactsUpdate:
		for i := range event.Contacts {
			s.mergeContactLocked(event.Contacts[i], false)
			s.recomputeOverviewLocked(event.Contacts[i].ID, nil)
		}

	case models.EventMessagesSet:
		byChat := groupByChat(event.Messages)
		for chatID, msgs := range byChat {
			replacement := make(map[string]*models.Message, len(msgs))
			for i := range msgs {
				msg := msgs[i]
				replacement[msg.ID] = &msg
			}
			s.messages[chatID] = replacement
			s.recomputeOverviewLocked(chatID, nil)
		}

	case models.EventMessagesUpsert:
		newest := make(map[string]*models.Message)
		for i := range event.Messages {
			msg := event.Messages[i]
			s.storeMessageLocked(&msg)
			if current, ok := newest[msg.ChatID]; !ok || msg.Timestamp >= current.Timestamp {
				newest[msg.ChatID] = &msg
			}
		}
		for chatID, msg := range newest {
			s.recomputeOverviewLocked(chatID, msg)
		}

	case models.EventMessagesUpdate:
		touched := make(map[string]bool)
		for _, update := range event.MessageUpdates {
			if s.applyMessageUpdateLocked(update) {
				touched[update.ChatID] = true
			}
		}
		for chatID := range touched {
			s.recomputeOverviewLocked(chatID, nil)
		}

	case models.EventMessagesDelete:
		touched := make(map[string]bool)
		for _, key := range event.MessageKeys {
			if s.deleteMessageLocked(key.ChatID, key.MessageID) {
				touched[key.ChatID] = true
			}
		}
		for chatID := range touched {
			s.recomputeOverviewLocked(chatID, nil)
		}

	case models.EventGroupsUpsert:
		for i := range event.Groups {
			s.mergeGroupLocked(event.Groups[i], true)
			s.recomputeOverviewLocked(event.Groups[i].ID, nil)
		}

	case models.EventGroupsUpdate:
		for i := range event.Groups {
			s.mergeGroupLocked(event.Groups[i], false)
			s.recomputeOverviewLocked(event.Groups[i].ID, nil)
		}

	default:
		return fmt.Errorf("unknown store event kind: %s", event.Kind)
	}

	return nil
}

func (s *Store) mergeChatLocked(incoming models.Chat, createMissing bool) {
	existing, ok := s.chats[incoming.ID]
	if !ok {
		if !createMissing {
			return
		}
		chat := incoming
		s.chats[incoming.ID] = &chat
		return
	}
	if incoming.Name != "" {
		existing.Name = incoming.Name
	}
	if incoming.UnreadCount != 0 {
		existing.UnreadCount = incoming.UnreadCount
	}
	if incoming.ConversationTimestamp != 0 {
		existing.ConversationTimestamp = incoming.ConversationTimestamp
	}
}

func (s *Store) mergeContactLocked(incoming models.Contact, createMissing bool) {
	existing, ok := s.contacts[incoming.ID]
	if !ok {
		if !createMissing {
			return
		}
		contact := incoming
		s.contacts[incoming.ID] = &contact
		return
	}
	if incoming.Name != "" {
		existing.Name = incoming.Name
	}
	if incoming.Notify != "" {
		existing.Notify = incoming.Notify
	}
	if incoming.VerifiedName != "" {
		existing.VerifiedName = incoming.VerifiedName
	}
}

func (s *Store) mergeGroupLocked(incoming models.GroupMetadata, createMissing bool) {
	existing, ok := s.groups[incoming.ID]
	if !ok {
		if !createMissing {
			return
		}
		group := incoming
		s.groups[incoming.ID] = &group
		return
	}
	if incoming.Subject != "" {
		existing.Subject = incoming.Subject
	}
	if incoming.Description != "" {
		existing.Description = incoming.Description
	}
	if incoming.Owner != "" {
		existing.Owner = incoming.Owner
	}
	if incoming.Participants != nil {
		existing.Participants = incoming.Participants
	}
}

func (s *Store) storeMessageLocked(msg *models.Message) {
	chatMessages, ok := s.messages[msg.ChatID]
	if !ok {
		chatMessages = make(map[string]*models.Message)
		s.messages[msg.ChatID] = chatMessages
	}
	if existing, ok := chatMessages[msg.ID]; ok {
		// Upsert on an existing message is a shallow merge
		if msg.Status != "" {
			existing.Status = msg.Status
		}
		if msg.Text != "" {
			existing.Text = msg.Text
		}
		if msg.Timestamp != 0 {
			existing.Timestamp = msg.Timestamp
		}
		if msg.ContentType != "" {
			existing.ContentType = msg.ContentType
		}
		if msg.Raw != nil {
			existing.Raw = msg.Raw
		}
		return
	}
	stored := *msg
	chatMessages[msg.ID] = &stored
}

func (s *Store) applyMessageUpdateLocked(update models.MessageUpdate) bool {
	chatMessages, ok := s.messages[update.ChatID]
	if !ok {
		return false
	}
	msg, ok := chatMessages[update.MessageID]
	if !ok {
		return false
	}
	if update.Status != nil {
		msg.Status = *update.Status
	}
	if update.Timestamp != nil {
		msg.Timestamp = *update.Timestamp
	}
	return true
}

func (s *Store) deleteMessageLocked(chatID, messageID string) bool {
	chatMessages, ok := s.messages[chatID]
	if !ok {
		return false
	}
	if _, ok := chatMessages[messageID]; !ok {
		return false
	}
	delete(chatMessages, messageID)
	if len(chatMessages) == 0 {
		delete(s.messages, chatID)
	}
	s.removeMediaLocked(messageID)
	return true
}

func (s *Store) deleteChatLocked(chatID string) {
	for messageID := range s.messages[chatID] {
		s.removeMediaLocked(messageID)
	}
	delete(s.messages, chatID)
	delete(s.chats, chatID)
	delete(s.groups, chatID)
	delete(s.overview, chatID)
}

// GetChat returns a copy of the cached chat, if present.
func (s *Store) GetChat(chatID string) (models.Chat, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chat, ok := s.chats[chatID]
	if !ok {
		return models.Chat{}, false
	}
	return *chat, true
}

// GetContact returns a copy of the cached contact, if present.
func (s *Store) GetContact(contactID string) (models.Contact, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	contact, ok := s.contacts[contactID]
	if !ok {
		return models.Contact{}, false
	}
	return *contact, true
}

// GetMessage returns a copy of one message by (chat id, message id).
func (s *Store) GetMessage(chatID, messageID string) (models.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chatMessages, ok := s.messages[chatID]
	if !ok {
		return models.Message{}, false
	}
	msg, ok := chatMessages[messageID]
	if !ok {
		return models.Message{}, false
	}
	return *msg, true
}

// GetMessages returns up to limit messages of a chat, newest first. A
// non-empty before cursor skips the matched message and everything newer,
// returning the page strictly after the cursor.
func (s *Store) GetMessages(chatID string, limit int, before string) []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chatMessages, ok := s.messages[chatID]
	if !ok {
		return nil
	}

	sorted := make([]models.Message, 0, len(chatMessages))
	for _, msg := range chatMessages {
		sorted = append(sorted, *msg)
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Timestamp != sorted[j].Timestamp {
			return sorted[i].Timestamp > sorted[j].Timestamp
		}
		return sorted[i].ID > sorted[j].ID
	})

	start := 0
	if before != "" {
		start = len(sorted)
		for i := range sorted {
			if sorted[i].ID == before {
				start = i + 1
				break
			}
		}
	}
	if start >= len(sorted) {
		return nil
	}

	page := sorted[start:]
	if limit > 0 && len(page) > limit {
		page = page[:limit]
	}
	out := make([]models.Message, len(page))
	copy(out, page)
	return out
}

// ListContacts filters direct (non-group) contacts by a case-insensitive
// substring match on name, notify name, or raw id, sorted by display name.
func (s *Store) ListContacts(limit, offset int, searchTerm string) (int, []models.ContactEntry) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	term := strings.ToLower(strings.TrimSpace(searchTerm))
	filtered := make([]models.ContactEntry, 0, len(s.contacts))
	for _, contact := range s.contacts {
		if models.IsGroupID(contact.ID) {
			continue
		}
		if term != "" &&
			!strings.Contains(strings.ToLower(contact.Name), term) &&
			!strings.Contains(strings.ToLower(contact.Notify), term) &&
			!strings.Contains(strings.ToLower(contact.ID), term) {
			continue
		}
		filtered = append(filtered, models.ContactEntry{
			ID:             contact.ID,
			Name:           contact.Name,
			Notify:         contact.Notify,
			VerifiedName:   contact.VerifiedName,
			ProfilePicture: s.profilePics[contact.ID],
		})
	}

	sort.Slice(filtered, func(i, j int) bool {
		ni, nj := displaySortKey(filtered[i]), displaySortKey(filtered[j])
		if ni != nj {
			return ni < nj
		}
		return filtered[i].ID < filtered[j].ID
	})

	total := len(filtered)
	return total, paginate(filtered, limit, offset)
}

// SetProfilePicture caches a fetched profile-picture URL for a contact or
// chat id.
func (s *Store) SetProfilePicture(id, url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profilePics[id] = url
	s.recomputeOverviewLocked(id, nil)
}

// Stats counts the cached entities.
func (s *Store) Stats() models.StoreStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messageCount := 0
	for _, chatMessages := range s.messages {
		messageCount += len(chatMessages)
	}
	return models.StoreStats{
		Chats:      len(s.chats),
		Contacts:   len(s.contacts),
		Messages:   messageCount,
		Groups:     len(s.groups),
		MediaFiles: len(s.media),
	}
}

// Clear drops the whole cache and deletes every tracked media file.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for messageID := range s.media {
		s.removeMediaLocked(messageID)
	}
	s.resetLocked()
}

func groupByChat(messages []models.Message) map[string][]models.Message {
	byChat := make(map[string][]models.Message)
	for _, msg := range messages {
		byChat[msg.ChatID] = append(byChat[msg.ChatID], msg)
	}
	return byChat
}

func displaySortKey(entry models.ContactEntry) string {
	if entry.Name != "" {
		return strings.ToLower(entry.Name)
	}
	if entry.Notify != "" {
		return strings.ToLower(entry.Notify)
	}
	return strings.ToLower(entry.ID)
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	out := make([]T, len(items))
	copy(out, items)
	return out
}
