package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"chatery/internal/constants"
	apperrors "chatery/internal/errors"
	"chatery/internal/models"
	"chatery/internal/privacy"

	"github.com/sirupsen/logrus"
)

// BulkTracker runs multi-recipient campaigns sequentially through the
// dispatcher and keeps their progress in memory. Campaigns are not durable:
// a restart loses any run in flight.
type BulkTracker struct {
	dispatcher *Dispatcher
	registry   *Registry
	logger     *logrus.Logger
	config     models.BulkConfig

	mu        sync.Mutex
	campaigns map[string]*models.BulkCampaign
	order     []string
	done      map[string]chan struct{}

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewBulkTracker(dispatcher *Dispatcher, registry *Registry, config models.BulkConfig, logger *logrus.Logger) *BulkTracker {
	if config.MaxRecipients <= 0 {
		config.MaxRecipients = constants.DefaultBulkMaxRecipients
	}
	if config.MaxRetained <= 0 {
		config.MaxRetained = constants.DefaultBulkMaxRetained
	}
	if config.ListLimit <= 0 {
		config.ListLimit = constants.DefaultBulkListLimit
	}
	if config.DefaultDelayMs <= 0 {
		config.DefaultDelayMs = constants.DefaultBulkDelayMs
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &BulkTracker{
		dispatcher: dispatcher,
		registry:   registry,
		logger:     logger,
		config:     config,
		campaigns:  make(map[string]*models.BulkCampaign),
		done:       make(map[string]chan struct{}),
		baseCtx:    ctx,
		cancel:     cancel,
	}
}

// Start validates the request, registers a new processing campaign, and
// launches its background run. The campaign id is returned immediately.
func (t *BulkTracker) Start(req *models.BulkRequest) (string, error) {
	if err := t.validate(req); err != nil {
		return "", err
	}

	campaign := &models.BulkCampaign{
		ID:        newCampaignID(),
		SessionID: req.SessionID,
		Type:      req.Type,
		Status:    models.CampaignProcessing,
		Total:     len(req.Recipients),
		Details:   make([]models.RecipientOutcome, 0, len(req.Recipients)),
		CreatedAt: time.Now(),
	}

	t.mu.Lock()
	t.campaigns[campaign.ID] = campaign
	t.order = append(t.order, campaign.ID)
	t.done[campaign.ID] = make(chan struct{})
	t.evictLocked()
	t.mu.Unlock()

	t.wg.Add(1)
	go t.run(campaign.ID, req)

	return campaign.ID, nil
}

func (t *BulkTracker) validate(req *models.BulkRequest) error {
	if req.SessionID == "" {
		return apperrors.NewValidationError("sessionId", "session id is required")
	}
	if _, err := t.registry.Get(req.SessionID); err != nil {
		return err
	}
	if len(req.Recipients) == 0 {
		return apperrors.NewValidationError("recipients", "at least one recipient is required")
	}
	if len(req.Recipients) > t.config.MaxRecipients {
		return apperrors.NewValidationError("recipients",
			fmt.Sprintf("too many recipients: %d exceeds limit of %d", len(req.Recipients), t.config.MaxRecipients))
	}
	known := false
	for _, jt := range models.KnownJobTypes {
		if req.Type == jt {
			known = true
			break
		}
	}
	if !known {
		return apperrors.NewValidationError("type", fmt.Sprintf("unknown job type: %s", req.Type))
	}
	return nil
}

// run processes recipients one at a time, pausing between sends so a large
// campaign does not burst. Each outcome is visible through GetStatus while
// the run is still going.
func (t *BulkTracker) run(campaignID string, req *models.BulkRequest) {
	defer t.wg.Done()

	delay := req.DelayMs
	if delay <= 0 {
		delay = t.config.DefaultDelayMs
	}

	for i, recipient := range req.Recipients {
		if i > 0 {
			select {
			case <-t.baseCtx.Done():
				t.finish(campaignID)
				return
			case <-time.After(time.Duration(delay) * time.Millisecond):
			}
		}

		job := &models.Job{
			ID:           fmt.Sprintf("%s_%d", campaignID, i),
			SessionID:    req.SessionID,
			Type:         req.Type,
			ChatID:       recipient,
			Payload:      req.Payload,
			TypingTimeMs: req.TypingTimeMs,
		}

		outcome := models.RecipientOutcome{
			Recipient: recipient,
			Timestamp: time.Now(),
		}
		result, err := t.dispatcher.Dispatch(t.baseCtx, job)
		if err != nil {
			outcome.Status = "failed"
			outcome.Error = err.Error()
			t.logger.WithFields(logrus.Fields{
				"campaign":  campaignID,
				"recipient": privacy.MaskChatID(recipient),
			}).WithError(err).Warn("Bulk send failed")
		} else {
			outcome.Status = "sent"
			outcome.MessageID = messageIDFromResult(result)
		}

		t.record(campaignID, outcome)
	}

	t.finish(campaignID)
}

func (t *BulkTracker) record(campaignID string, outcome models.RecipientOutcome) {
	t.mu.Lock()
	defer t.mu.Unlock()
	campaign, ok := t.campaigns[campaignID]
	if !ok {
		return
	}
	campaign.Details = append(campaign.Details, outcome)
	if outcome.Status == "sent" {
		campaign.Sent++
	} else {
		campaign.Failed++
	}
	if campaign.Total > 0 {
		campaign.Progress = (campaign.Sent + campaign.Failed) * 100 / campaign.Total
	}
}

func (t *BulkTracker) finish(campaignID string) {
	t.mu.Lock()
	if campaign, ok := t.campaigns[campaignID]; ok {
		now := time.Now()
		campaign.Status = models.CampaignCompleted
		campaign.CompletedAt = &now
	}
	doneCh := t.done[campaignID]
	t.mu.Unlock()
	if doneCh != nil {
		close(doneCh)
	}
}

// GetStatus returns a copy of the campaign; it is safe to read while the run
// is still mutating the original.
func (t *BulkTracker) GetStatus(campaignID string) (*models.BulkCampaign, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	campaign, ok := t.campaigns[campaignID]
	if !ok {
		return nil, apperrors.NewNotFoundError("campaign", campaignID)
	}
	return copyCampaign(campaign), nil
}

// ListBySession returns the session's campaigns, newest first, capped at the
// configured list limit.
func (t *BulkTracker) ListBySession(sessionID string) []*models.BulkCampaign {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*models.BulkCampaign, 0)
	for i := len(t.order) - 1; i >= 0 && len(out) < t.config.ListLimit; i-- {
		campaign, ok := t.campaigns[t.order[i]]
		if !ok || campaign.SessionID != sessionID {
			continue
		}
		out = append(out, copyCampaign(campaign))
	}
	return out
}

// Done exposes a completion handle for the given campaign. The channel is
// closed when the run finishes; a nil channel means the campaign is unknown.
func (t *BulkTracker) Done(campaignID string) <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done[campaignID]
}

// Close cancels in-flight runs and waits for their goroutines to exit.
func (t *BulkTracker) Close() {
	t.cancel()
	t.wg.Wait()
}

// evictLocked drops the oldest completed campaigns beyond the retention cap.
// Caller holds mu.
func (t *BulkTracker) evictLocked() {
	for len(t.order) > t.config.MaxRetained {
		oldest := t.order[0]
		t.order = t.order[1:]
		delete(t.campaigns, oldest)
		delete(t.done, oldest)
	}
}

func copyCampaign(campaign *models.BulkCampaign) *models.BulkCampaign {
	out := *campaign
	out.Details = append([]models.RecipientOutcome(nil), campaign.Details...)
	if campaign.CompletedAt != nil {
		completed := *campaign.CompletedAt
		out.CompletedAt = &completed
	}
	return &out
}

func newCampaignID() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("bulk_%d", time.Now().UnixMilli())
	}
	return fmt.Sprintf("bulk_%d_%s", time.Now().UnixMilli(), hex.EncodeToString(buf))
}

func messageIDFromResult(result []byte) string {
	var response struct {
		MessageID string `json:"messageId"`
	}
	if err := json.Unmarshal(result, &response); err != nil {
		return ""
	}
	return response.MessageID
}
