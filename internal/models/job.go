package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// JobType enumerates the outbound send job kinds the worker can dispatch.
type JobType string

const (
	JobSendText     JobType = "send-text"
	JobSendImage    JobType = "send-image"
	JobSendDocument JobType = "send-document"
	JobSendLocation JobType = "send-location"
	JobSendContact  JobType = "send-contact"
	JobSendButtons  JobType = "send-buttons"
	JobSendPoll     JobType = "send-poll"
)

// KnownJobTypes lists every dispatchable job type for validation.
var KnownJobTypes = []JobType{
	JobSendText, JobSendImage, JobSendDocument, JobSendLocation,
	JobSendContact, JobSendButtons, JobSendPoll,
}

// JobState is the lifecycle state of a queued job.
type JobState string

const (
	JobStateQueued    JobState = "queued"
	JobStateDelayed   JobState = "delayed"
	JobStateActive    JobState = "active"
	JobStateCompleted JobState = "completed"
	JobStateFailed    JobState = "failed"
	JobStateDead      JobState = "dead"
)

// Terminal reports whether a job in this state will never run again.
func (s JobState) Terminal() bool {
	return s == JobStateCompleted || s == JobStateDead
}

// Job is one durable outbound send request.
type Job struct {
	ID              string          `json:"id"`
	SessionID       string          `json:"sessionId"`
	Type            JobType         `json:"type"`
	ChatID          string          `json:"chatId"`
	Payload         json.RawMessage `json:"payload"`
	State           JobState        `json:"state"`
	Priority        int             `json:"priority"`
	Attempts        int             `json:"attempts"`
	MaxAttempts     int             `json:"maxAttempts"`
	SkipNumberCheck bool            `json:"skipNumberCheck,omitempty"`
	TypingTimeMs    int64           `json:"typingTimeMs,omitempty"`
	NotBefore       time.Time       `json:"notBefore"`
	LastError       string          `json:"lastError,omitempty"`
	Result          json.RawMessage `json:"result,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// JobStatus is the caller-visible view of a job.
type JobStatus struct {
	ID        string          `json:"id"`
	State     JobState        `json:"state"`
	Attempts  int             `json:"attempts"`
	LastError string          `json:"lastError,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
}

// EnqueueRequest is the validated input of Queue.Enqueue.
type EnqueueRequest struct {
	SessionID       string          `json:"sessionId"`
	Type            JobType         `json:"type"`
	ChatID          string          `json:"chatId"`
	Payload         json.RawMessage `json:"payload"`
	Delay           DelaySpec       `json:"delay,omitempty"`
	Priority        int             `json:"priority,omitempty"`
	MaxAttempts     int             `json:"attempts,omitempty"`
	SkipNumberCheck bool            `json:"skipNumberCheck,omitempty"`
	TypingTimeMs    int64           `json:"typingTime,omitempty"`
}

// DelaySpec is a user-supplied delay: a number of milliseconds, the string
// "auto", an empty value, or absent entirely. Resolution to a concrete
// duration happens in the delay package.
type DelaySpec struct {
	set bool
	raw string
}

// AutoDelay is the spec value requesting a randomized delay.
func AutoDelay() DelaySpec { return DelaySpec{set: true, raw: "auto"} }

// DelayMs builds a spec for an explicit millisecond delay.
func DelayMs(ms int64) DelaySpec {
	return DelaySpec{set: true, raw: strconv.FormatInt(ms, 10)}
}

// IsSet reports whether the caller supplied any delay value at all.
func (d DelaySpec) IsSet() bool { return d.set }

// Raw returns the textual form of the supplied value.
func (d DelaySpec) Raw() string { return d.raw }

// Number parses the spec as a finite number of milliseconds.
func (d DelaySpec) Number() (float64, bool) {
	n, err := strconv.ParseFloat(strings.TrimSpace(d.raw), 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

// UnmarshalJSON accepts a JSON number, string, or null.
func (d *DelaySpec) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*d = DelaySpec{}
		return nil
	}
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("invalid delay value: %w", err)
		}
		*d = DelaySpec{set: true, raw: s}
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid delay value: %w", err)
	}
	*d = DelaySpec{set: true, raw: n.String()}
	return nil
}

// MarshalJSON emits the raw value as a string, or null when unset.
func (d DelaySpec) MarshalJSON() ([]byte, error) {
	if !d.set {
		return []byte("null"), nil
	}
	return json.Marshal(d.raw)
}

// RetryConfig controls the exponential backoff applied between job attempts.
type RetryConfig struct {
	InitialBackoffMs int `json:"initialBackoffMs"`
	MaxBackoffMs     int `json:"maxBackoffMs"`
	MaxAttempts      int `json:"maxAttempts"`
}
