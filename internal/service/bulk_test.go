package service

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	apperrors "chatery/internal/errors"
	"chatery/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTracker(t *testing.T) (*BulkTracker, *Registry, *mockClient) {
	t.Helper()
	registry := newTestRegistry(t)
	_, client := newConnectedSession(t, registry, "tenant-1")
	dispatcher := NewDispatcher(registry, quietLogger())
	tracker := NewBulkTracker(dispatcher, registry, models.BulkConfig{DefaultDelayMs: 1}, quietLogger())
	t.Cleanup(tracker.Close)
	return tracker, registry, client
}

func bulkRequest(recipients ...string) *models.BulkRequest {
	payload, _ := json.Marshal(map[string]string{"text": "campaign"})
	return &models.BulkRequest{
		SessionID:  "tenant-1",
		Type:       models.JobSendText,
		Recipients: recipients,
		Payload:    payload,
		DelayMs:    1,
	}
}

func waitCampaign(t *testing.T, tracker *BulkTracker, id string) *models.BulkCampaign {
	t.Helper()
	select {
	case <-tracker.Done(id):
	case <-time.After(5 * time.Second):
		t.Fatal("campaign did not complete in time")
	}
	campaign, err := tracker.GetStatus(id)
	require.NoError(t, err)
	return campaign
}

func TestBulkCampaignCompletes(t *testing.T) {
	tracker, _, client := newTestTracker(t)

	id, err := tracker.Start(bulkRequest("1@s.whatsapp.net", "2@s.whatsapp.net", "3@s.whatsapp.net"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "bulk_"))

	campaign := waitCampaign(t, tracker, id)
	assert.Equal(t, models.CampaignCompleted, campaign.Status)
	assert.Equal(t, 3, campaign.Total)
	assert.Equal(t, 3, campaign.Sent)
	assert.Equal(t, 0, campaign.Failed)
	assert.Equal(t, 100, campaign.Progress)
	require.NotNil(t, campaign.CompletedAt)
	assert.Len(t, client.sent(), 3)
	for _, outcome := range campaign.Details {
		assert.Equal(t, "sent", outcome.Status)
		assert.Equal(t, "msg-1", outcome.MessageID)
	}
}

func TestBulkCampaignMixedOutcomes(t *testing.T) {
	tracker, _, client := newTestTracker(t)

	id, err := tracker.Start(bulkRequest("1@s.whatsapp.net", "2@s.whatsapp.net", "3@s.whatsapp.net", "bad-1", "bad-2"))
	require.NoError(t, err)

	// Flip the client into failure mode once three sends are visible.
	waitFor(t, 5*time.Second, func() bool {
		if len(client.sent()) >= 3 {
			client.mu.Lock()
			client.sendErr = errors.New("gateway exploded")
			client.mu.Unlock()
			return true
		}
		return false
	})

	campaign := waitCampaign(t, tracker, id)
	assert.Equal(t, 5, campaign.Total)
	assert.Equal(t, campaign.Total, campaign.Sent+campaign.Failed)
	assert.Equal(t, 100, campaign.Progress)
	assert.GreaterOrEqual(t, campaign.Sent, 3)
}

func TestBulkValidation(t *testing.T) {
	tracker, _, _ := newTestTracker(t)

	tests := []struct {
		name   string
		mutate func(*models.BulkRequest)
		code   apperrors.ErrorCode
	}{
		{
			name:   "missing session",
			mutate: func(r *models.BulkRequest) { r.SessionID = "" },
			code:   apperrors.ErrCodeValidationFailed,
		},
		{
			name:   "unknown session",
			mutate: func(r *models.BulkRequest) { r.SessionID = "ghost" },
			code:   apperrors.ErrCodeSessionNotFound,
		},
		{
			name:   "no recipients",
			mutate: func(r *models.BulkRequest) { r.Recipients = nil },
			code:   apperrors.ErrCodeValidationFailed,
		},
		{
			name: "too many recipients",
			mutate: func(r *models.BulkRequest) {
				r.Recipients = make([]string, 101)
				for i := range r.Recipients {
					r.Recipients[i] = "x@s.whatsapp.net"
				}
			},
			code: apperrors.ErrCodeValidationFailed,
		},
		{
			name:   "unknown type",
			mutate: func(r *models.BulkRequest) { r.Type = "send-hologram" },
			code:   apperrors.ErrCodeValidationFailed,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := bulkRequest("1@s.whatsapp.net")
			tc.mutate(req)
			_, err := tracker.Start(req)
			require.Error(t, err)
			assert.Equal(t, tc.code, apperrors.GetCode(err))
		})
	}
}

func TestBulkGetStatusUnknown(t *testing.T) {
	tracker, _, _ := newTestTracker(t)

	_, err := tracker.GetStatus("bulk_0_missing")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
}

func TestBulkListBySessionNewestFirst(t *testing.T) {
	tracker, _, _ := newTestTracker(t)

	first, err := tracker.Start(bulkRequest("1@s.whatsapp.net"))
	require.NoError(t, err)
	waitCampaign(t, tracker, first)
	second, err := tracker.Start(bulkRequest("2@s.whatsapp.net"))
	require.NoError(t, err)
	waitCampaign(t, tracker, second)

	campaigns := tracker.ListBySession("tenant-1")
	require.Len(t, campaigns, 2)
	assert.Equal(t, second, campaigns[0].ID)
	assert.Equal(t, first, campaigns[1].ID)

	assert.Empty(t, tracker.ListBySession("other-tenant"))
}

func TestBulkRetentionEviction(t *testing.T) {
	registry := newTestRegistry(t)
	newConnectedSession(t, registry, "tenant-1")
	dispatcher := NewDispatcher(registry, quietLogger())
	tracker := NewBulkTracker(dispatcher, registry,
		models.BulkConfig{MaxRetained: 2, DefaultDelayMs: 1}, quietLogger())
	t.Cleanup(tracker.Close)

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := tracker.Start(bulkRequest("1@s.whatsapp.net"))
		require.NoError(t, err)
		waitCampaign(t, tracker, id)
		ids = append(ids, id)
	}

	_, err := tracker.GetStatus(ids[0])
	require.Error(t, err, "oldest campaign should be evicted")
	_, err = tracker.GetStatus(ids[2])
	require.NoError(t, err)
	assert.Len(t, tracker.ListBySession("tenant-1"), 2)
}

func TestBulkStatusIsCopy(t *testing.T) {
	tracker, _, _ := newTestTracker(t)

	id, err := tracker.Start(bulkRequest("1@s.whatsapp.net"))
	require.NoError(t, err)
	campaign := waitCampaign(t, tracker, id)

	campaign.Details = append(campaign.Details, models.RecipientOutcome{Recipient: "tampered"})
	fresh, err := tracker.GetStatus(id)
	require.NoError(t, err)
	assert.Len(t, fresh.Details, 1)
}
