package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	apperrors "chatery/internal/errors"
	"chatery/internal/models"
	protocoltypes "chatery/pkg/protocol/types"

	"github.com/sirupsen/logrus"
)

// Dispatcher executes send jobs against their owning session's protocol
// client. It is the single send path shared by the worker pool and the bulk
// tracker.
type Dispatcher struct {
	registry *Registry
	logger   *logrus.Logger
}

func NewDispatcher(registry *Registry, logger *logrus.Logger) *Dispatcher {
	return &Dispatcher{registry: registry, logger: logger}
}

// Dispatch resolves the owning session, verifies the recipient when asked
// to, simulates typing, and invokes the type-specific send capability. The
// returned error carries retryability: a missing session or unregistered
// recipient never retries, protocol failures do.
func (d *Dispatcher) Dispatch(ctx context.Context, job *models.Job) (json.RawMessage, error) {
	session, err := d.registry.Get(job.SessionID)
	if err != nil {
		return nil, err
	}

	if session.State() != models.ConnectionConnected {
		return nil, apperrors.NewSessionDisconnectedError(job.SessionID)
	}

	if !job.SkipNumberCheck {
		if err := d.verifyRecipient(ctx, session, job.ChatID); err != nil {
			return nil, err
		}
	}

	if job.TypingTimeMs > 0 {
		d.simulateTyping(ctx, session, job.ChatID, job.TypingTimeMs)
	}

	response, err := d.send(ctx, session, job)
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, apperrors.NewProtocolError(string(job.Type), err)
	}

	result, err := json.Marshal(response)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize send response: %w", err)
	}
	return result, nil
}

// verifyRecipient checks that the target can receive messages. Group ids are
// always eligible; an empty id, a negative answer, or a failed check all
// make the job unrecoverable.
func (d *Dispatcher) verifyRecipient(ctx context.Context, session *Session, chatID string) error {
	if chatID == "" {
		return apperrors.NewRecipientUnreachableError(chatID)
	}
	if models.IsGroupID(chatID) {
		return nil
	}

	registered, err := session.Client.IsRegistered(ctx, chatID)
	if err != nil {
		d.logger.WithField("session", session.ID).WithError(err).Warn("Recipient check failed")
		return apperrors.NewRecipientUnreachableError(chatID)
	}
	if !registered {
		return apperrors.NewRecipientUnreachableError(chatID)
	}
	return nil
}

// simulateTyping shows a typing indicator and suspends only this job's
// execution for the requested time. Failures are cosmetic and ignored.
func (d *Dispatcher) simulateTyping(ctx context.Context, session *Session, chatID string, durationMs int64) {
	if err := session.Client.SendTyping(ctx, chatID, durationMs); err != nil {
		d.logger.WithField("session", session.ID).WithError(err).Debug("Typing indicator failed")
	}
	select {
	case <-ctx.Done():
	case <-time.After(time.Duration(durationMs) * time.Millisecond):
	}
}

func (d *Dispatcher) send(ctx context.Context, session *Session, job *models.Job) (*protocoltypes.SendResponse, error) {
	client := session.Client

	switch job.Type {
	case models.JobSendText:
		var payload protocoltypes.TextPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return nil, invalidPayloadError("text", err)
		}
		return client.SendText(ctx, job.ChatID, payload)

	case models.JobSendImage:
		var payload protocoltypes.MediaPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return nil, invalidPayloadError("image", err)
		}
		return client.SendImage(ctx, job.ChatID, payload)

	case models.JobSendDocument:
		var payload protocoltypes.MediaPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return nil, invalidPayloadError("document", err)
		}
		return client.SendDocument(ctx, job.ChatID, payload)

	case models.JobSendLocation:
		var payload protocoltypes.LocationPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return nil, invalidPayloadError("location", err)
		}
		return client.SendLocation(ctx, job.ChatID, payload)

	case models.JobSendContact:
		var payload protocoltypes.ContactPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return nil, invalidPayloadError("contact", err)
		}
		return client.SendContact(ctx, job.ChatID, payload)

	case models.JobSendButtons:
		var payload protocoltypes.ButtonsPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return nil, invalidPayloadError("buttons", err)
		}
		return client.SendButtons(ctx, job.ChatID, payload)

	case models.JobSendPoll:
		var payload protocoltypes.PollPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return nil, invalidPayloadError("poll", err)
		}
		return client.SendPoll(ctx, job.ChatID, payload)

	default:
		return nil, apperrors.NewUnrecoverableError(apperrors.ErrCodeValidationFailed,
			fmt.Sprintf("unknown job type: %s", job.Type))
	}
}

// invalidPayloadError marks a malformed job payload as unrecoverable; no
// number of retries will make it parse.
func invalidPayloadError(kind string, err error) *apperrors.AppError {
	return apperrors.NewUnrecoverableError(apperrors.ErrCodeValidationFailed,
		fmt.Sprintf("invalid %s payload: %v", kind, err))
}
