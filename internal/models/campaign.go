package models

import (
	"encoding/json"
	"time"
)

// CampaignStatus is the lifecycle state of a bulk campaign.
type CampaignStatus string

const (
	CampaignProcessing CampaignStatus = "processing"
	CampaignCompleted  CampaignStatus = "completed"
)

// RecipientOutcome records the result of one recipient within a campaign.
type RecipientOutcome struct {
	Recipient string    `json:"recipient"`
	Status    string    `json:"status"`
	MessageID string    `json:"messageId,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// BulkCampaign is one in-memory multi-recipient send run. Unlike queue jobs,
// campaigns are not durable: they run once for their lifetime and are lost on
// restart.
type BulkCampaign struct {
	ID          string             `json:"id"`
	SessionID   string             `json:"sessionId"`
	Type        JobType            `json:"type"`
	Status      CampaignStatus     `json:"status"`
	Total       int                `json:"total"`
	Sent        int                `json:"sent"`
	Failed      int                `json:"failed"`
	Progress    int                `json:"progress"`
	Details     []RecipientOutcome `json:"details"`
	CreatedAt   time.Time          `json:"createdAt"`
	CompletedAt *time.Time         `json:"completedAt,omitempty"`
}

// BulkRequest is the validated input of BulkTracker.Start.
type BulkRequest struct {
	SessionID    string          `json:"sessionId"`
	Type         JobType         `json:"type"`
	Recipients   []string        `json:"recipients"`
	Payload      json.RawMessage `json:"payload"`
	DelayMs      int64           `json:"delayMs,omitempty"`
	TypingTimeMs int64           `json:"typingTime,omitempty"`
}
