package store

import (
	"sort"
	"strings"

	"chatery/internal/constants"
	"chatery/internal/models"
)

// ListOverview returns chats ordered by most-recent activity, newest first.
// The maintained index is used directly; a full rebuild happens only when the
// index is empty while messages exist (cold start or post-restore).
func (s *Store) ListOverview(limit, offset int) (int, []models.ChatOverview) {
	s.mu.Lock()
	if len(s.overview) == 0 && len(s.messages) > 0 {
		s.rebuildOverviewLocked()
	}

	entries := make([]models.ChatOverview, 0, len(s.overview))
	for _, entry := range s.overview {
		entries = append(entries, *entry)
	}
	s.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool {
		ti, tj := entries[i].ActivityTimestamp(), entries[j].ActivityTimestamp()
		if ti != tj {
			return ti > tj
		}
		return entries[i].ID < entries[j].ID
	})

	total := len(entries)
	return total, paginate(entries, limit, offset)
}

// rebuildOverviewLocked recomputes the whole index. Only used off the hot
// path: chats.set replacement, cold start, and snapshot restore.
func (s *Store) rebuildOverviewLocked() {
	s.overview = make(map[string]*models.ChatOverview)
	for chatID := range s.messages {
		s.recomputeOverviewLocked(chatID, nil)
	}
}

// recomputeOverviewLocked refreshes the single affected chat's entry. A chat
// with zero messages has its entry removed, never left stale. When the
// caller already knows the event's newest message it is passed in so the
// scan can be skipped if it wins on timestamp.
func (s *Store) recomputeOverviewLocked(chatID string, candidate *models.Message) {
	chatMessages := s.messages[chatID]
	if len(chatMessages) == 0 {
		delete(s.overview, chatID)
		return
	}

	newest := candidate
	for _, msg := range chatMessages {
		if newest == nil || msg.Timestamp > newest.Timestamp {
			newest = msg
		}
	}

	entry := &models.ChatOverview{
		ID:      chatID,
		Name:    s.resolveChatNameLocked(chatID),
		IsGroup: models.IsGroupID(chatID),
		LastMessage: models.LastMessage{
			ID:        newest.ID,
			Timestamp: newest.Timestamp,
			Preview:   messagePreview(newest),
			FromMe:    newest.FromMe,
		},
		ProfilePicture: s.profilePics[chatID],
	}
	if chat, ok := s.chats[chatID]; ok {
		entry.UnreadCount = chat.UnreadCount
		entry.ConversationTimestamp = chat.ConversationTimestamp
	}

	s.overview[chatID] = entry
}

// resolveChatNameLocked picks a display name: group subject, then contact
// display name, then contact notify name, then the chat's own stored name,
// then the bare id.
func (s *Store) resolveChatNameLocked(chatID string) string {
	if models.IsGroupID(chatID) {
		if group, ok := s.groups[chatID]; ok && group.Subject != "" {
			return group.Subject
		}
	}
	if contact, ok := s.contacts[chatID]; ok {
		if contact.Name != "" {
			return contact.Name
		}
		if contact.Notify != "" {
			return contact.Notify
		}
	}
	if chat, ok := s.chats[chatID]; ok && chat.Name != "" {
		return chat.Name
	}
	return models.BareID(chatID)
}

// messagePreview renders a one-line summary of a message. Content types are
// matched in declaration order; the first match wins.
func messagePreview(msg *models.Message) string {
	var preview string
	switch msg.ContentType {
	case models.ContentTypeText, models.ContentTypeExtended:
		preview = msg.Text
	case models.ContentTypeImage:
		preview = withCaption("[Image]", msg.Text)
	case models.ContentTypeVideo:
		preview = withCaption("[Video]", msg.Text)
	case models.ContentTypeAudio:
		preview = "[Audio]"
	case models.ContentTypeDocument:
		preview = withCaption("[Document]", msg.Filename)
	case models.ContentTypeSticker:
		preview = "[Sticker]"
	case models.ContentTypeContact:
		preview = withCaption("[Contact]", msg.DisplayName)
	case models.ContentTypeLocation:
		preview = "[Location]"
	case models.ContentTypeButtons:
		preview = withCaption("[Buttons]", msg.Text)
	case models.ContentTypeTemplate:
		preview = withCaption("[Template]", msg.Text)
	case models.ContentTypeList:
		preview = withCaption("[List]", msg.Text)
	case models.ContentTypePoll:
		preview = withCaption("[Poll]", msg.Text)
	default:
		preview = "Message"
	}

	preview = strings.ReplaceAll(preview, "\n", " ")
	if len(preview) > constants.MaxPreviewLength {
		// Cap counts characters, not bytes: a byte slice could split a rune
		runes := []rune(preview)
		if len(runes) > constants.MaxPreviewLength {
			preview = string(runes[:constants.MaxPreviewLength])
		}
	}
	return preview
}

func withCaption(label, caption string) string {
	if caption == "" {
		return label
	}
	return label + " " + caption
}
