package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"chatery/internal/constants"
	"chatery/internal/delay"
	apperrors "chatery/internal/errors"
	"chatery/internal/migrations"
	"chatery/internal/models"
	"chatery/internal/retry"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Queue is the durable, priority- and delay-aware store of outbound send
// jobs. It is the sole authority for job state: workers claim jobs through
// ClaimNext and report outcomes through MarkCompleted/MarkFailed, never by
// touching rows directly.
type Queue struct {
	db        *sql.DB
	encryptor *encryptor
	resolver  *delay.Resolver
	backoff   *retry.Backoff
	dbRetry   *retry.Backoff
	retryCfg  models.RetryConfig
}

func New(dbPath string, retryCfg models.RetryConfig, resolver *delay.Resolver) (*Queue, error) {
	if len(dbPath) == 0 || strings.ContainsRune(dbPath, '\x00') {
		return nil, fmt.Errorf("invalid database path")
	}

	file, err := os.OpenFile(dbPath, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create database file: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close database file: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to ping database: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	schema, err := migrations.GetInitialSchema()
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to read schema: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize schema: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	enc, err := newEncryptor()
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize encryptor: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize encryptor: %w", err)
	}

	if retryCfg.MaxAttempts <= 0 {
		retryCfg.MaxAttempts = constants.DefaultJobMaxAttempts
	}
	if retryCfg.InitialBackoffMs <= 0 {
		retryCfg.InitialBackoffMs = constants.DefaultJobBackoffInitialMs
	}
	if retryCfg.MaxBackoffMs <= 0 {
		retryCfg.MaxBackoffMs = constants.DefaultJobBackoffMaxMs
	}
	if resolver == nil {
		resolver = delay.NewResolver()
	}

	return &Queue{
		db:        db,
		encryptor: enc,
		resolver:  resolver,
		retryCfg:  retryCfg,
		backoff: retry.NewBackoff(retry.BackoffConfig{
			InitialDelay: time.Duration(retryCfg.InitialBackoffMs) * time.Millisecond,
			MaxDelay:     time.Duration(retryCfg.MaxBackoffMs) * time.Millisecond,
			Multiplier:   2.0,
			MaxAttempts:  retryCfg.MaxAttempts,
			Jitter:       false,
		}),
		dbRetry: retry.NewBackoff(retry.BackoffConfig{
			InitialDelay: time.Duration(constants.DefaultRetryBackoffMs) * time.Millisecond,
			MaxDelay:     time.Duration(constants.DefaultMaxBackoffMs) * time.Millisecond,
			Multiplier:   2.0,
			MaxAttempts:  constants.DefaultDatabaseRetryAttempts,
			Jitter:       true,
		}),
	}, nil
}

func (q *Queue) Close() error {
	return q.db.Close()
}

// withRetry runs a database operation, retrying transient failures such as
// "database is locked" while failing fast on everything else.
func (q *Queue) withRetry(ctx context.Context, operationName string, operation func() error) error {
	if err := q.dbRetry.RetryWithPredicate(ctx, operation, isRetryableDBError); err != nil {
		return fmt.Errorf("%s: %w", operationName, err)
	}
	return nil
}

// Enqueue validates the request, resolves its delay spec, and inserts a new
// job. Validation failures are reported synchronously and nothing is stored.
func (q *Queue) Enqueue(ctx context.Context, req models.EnqueueRequest) (*models.Job, error) {
	if req.SessionID == "" {
		return nil, apperrors.NewValidationError("sessionId", "sessionId is required")
	}
	if req.ChatID == "" {
		return nil, apperrors.NewValidationError("chatId", "chatId is required")
	}
	known := false
	for _, t := range models.KnownJobTypes {
		if req.Type == t {
			known = true
			break
		}
	}
	if !known {
		return nil, apperrors.NewValidationError("type", fmt.Sprintf("unknown job type: %s", req.Type))
	}
	if len(req.Payload) == 0 || !json.Valid(req.Payload) {
		return nil, apperrors.NewValidationError("payload", "payload must be a JSON document")
	}

	maxAttempts := req.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = q.retryCfg.MaxAttempts
	}

	now := time.Now().UTC()
	job := &models.Job{
		ID:              uuid.NewString(),
		SessionID:       req.SessionID,
		Type:            req.Type,
		ChatID:          req.ChatID,
		Payload:         req.Payload,
		State:           models.JobStateQueued,
		Priority:        req.Priority,
		MaxAttempts:     maxAttempts,
		SkipNumberCheck: req.SkipNumberCheck,
		TypingTimeMs:    req.TypingTimeMs,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if d := q.resolver.Resolve(req.Delay); d > 0 {
		job.NotBefore = now.Add(d)
	}

	encryptedPayload, err := q.encryptor.EncryptIfEnabled(string(req.Payload))
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt payload: %w", err)
	}

	query := `
		INSERT INTO jobs (
			id, session_id, type, chat_id, payload, state, priority,
			attempts, max_attempts, skip_number_check, typing_time_ms,
			not_before, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var notBefore interface{}
	if !job.NotBefore.IsZero() {
		notBefore = job.NotBefore
	}

	err = q.withRetry(ctx, "enqueue job", func() error {
		_, err := q.db.ExecContext(ctx, query,
			job.ID, job.SessionID, string(job.Type), job.ChatID,
			encryptedPayload, string(models.JobStateQueued), job.Priority,
			0, job.MaxAttempts, boolToInt(job.SkipNumberCheck), job.TypingTimeMs,
			notBefore, job.CreatedAt, job.UpdatedAt,
		)
		return err
	})
	if err != nil {
		return nil, err
	}

	job.State = visibleState(models.JobStateQueued, job.NotBefore, now)
	return job, nil
}

// GetJob returns the full job row, or a NOT_FOUND error.
func (q *Queue) GetJob(ctx context.Context, id string) (*models.Job, error) {
	query := selectJobColumns + ` FROM jobs WHERE id = ?`

	var job *models.Job
	err := q.withRetry(ctx, "get job", func() error {
		row := q.db.QueryRowContext(ctx, query, id)
		j, err := q.scanJob(row)
		if err != nil {
			return err
		}
		job = j
		return nil
	})
	if err != nil {
		if isNoRows(err) {
			return nil, apperrors.NewNotFoundError("job", id)
		}
		return nil, err
	}
	return job, nil
}

// GetStatus returns the caller-visible view of a job: its state (with
// not-yet-eligible queued jobs reported as delayed), attempt count, last
// error, and final result.
func (q *Queue) GetStatus(ctx context.Context, id string) (*models.JobStatus, error) {
	job, err := q.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.JobStatus{
		ID:        job.ID,
		State:     job.State,
		Attempts:  job.Attempts,
		LastError: job.LastError,
		Result:    job.Result,
	}, nil
}

// ClaimNext atomically moves the oldest eligible queued job to active and
// returns it with its attempt counter already incremented. Returns nil when
// no job is eligible.
func (q *Queue) ClaimNext(ctx context.Context) (*models.Job, error) {
	var job *models.Job

	err := q.withRetry(ctx, "claim job", func() error {
		tx, err := q.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		now := time.Now().UTC()
		query := selectJobColumns + `
			FROM jobs
			WHERE state = ? AND (not_before IS NULL OR not_before <= ?)
			ORDER BY priority ASC, created_at ASC, id ASC
			LIMIT 1
		`
		row := tx.QueryRowContext(ctx, query, string(models.JobStateQueued), now)
		j, err := q.scanJob(row)
		if err != nil {
			if isNoRows(err) {
				job = nil
				return nil
			}
			return err
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE jobs SET state = ?, attempts = attempts + 1 WHERE id = ?`,
			string(models.JobStateActive), j.ID,
		)
		if err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}

		j.State = models.JobStateActive
		j.Attempts++
		job = j
		return nil
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// MarkCompleted records a successful dispatch and the protocol client's
// response as the job result.
func (q *Queue) MarkCompleted(ctx context.Context, id string, result json.RawMessage) error {
	encryptedResult, err := q.encryptor.EncryptIfEnabled(string(result))
	if err != nil {
		return fmt.Errorf("failed to encrypt result: %w", err)
	}

	return q.withRetry(ctx, "complete job", func() error {
		_, err := q.db.ExecContext(ctx,
			`UPDATE jobs SET state = ?, result = ?, last_error = NULL WHERE id = ?`,
			string(models.JobStateCompleted), encryptedResult, id,
		)
		return err
	})
}

// MarkFailed records a failed attempt. Transient failures with retry budget
// remaining re-enter the queue with an exponential backoff applied through
// not_before; unrecoverable failures and exhausted budgets go to dead.
// Returns the state the job ended up in.
func (q *Queue) MarkFailed(ctx context.Context, job *models.Job, cause error) (models.JobState, error) {
	message := "unknown error"
	if cause != nil {
		message = cause.Error()
	}
	encryptedError, err := q.encryptor.EncryptIfEnabled(message)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt error: %w", err)
	}

	if apperrors.IsUnrecoverable(cause) || job.Attempts >= job.MaxAttempts {
		err := q.withRetry(ctx, "bury job", func() error {
			_, err := q.db.ExecContext(ctx,
				`UPDATE jobs SET state = ?, last_error = ? WHERE id = ?`,
				string(models.JobStateDead), encryptedError, job.ID,
			)
			return err
		})
		if err != nil {
			return "", err
		}
		return models.JobStateDead, nil
	}

	notBefore := time.Now().UTC().Add(q.backoff.GetNextDelay(job.Attempts))
	err = q.withRetry(ctx, "requeue job", func() error {
		_, err := q.db.ExecContext(ctx,
			`UPDATE jobs SET state = ?, last_error = ?, not_before = ? WHERE id = ?`,
			string(models.JobStateQueued), encryptedError, notBefore, job.ID,
		)
		return err
	})
	if err != nil {
		return "", err
	}
	return models.JobStateQueued, nil
}

// Release puts a claimed job back into queued and refunds its attempt. Used
// when a worker gives a job up without ever dispatching it.
func (q *Queue) Release(ctx context.Context, id string) error {
	return q.withRetry(ctx, "release job", func() error {
		_, err := q.db.ExecContext(ctx,
			`UPDATE jobs SET state = ?, attempts = attempts - 1, not_before = NULL
			 WHERE id = ? AND state = ?`,
			string(models.JobStateQueued), id, string(models.JobStateActive),
		)
		return err
	})
}

// RequeueActive returns jobs stuck in active back to queued. Called once at
// startup so work claimed by a previous process that crashed mid-dispatch is
// attempted again.
func (q *Queue) RequeueActive(ctx context.Context) (int64, error) {
	var requeued int64
	err := q.withRetry(ctx, "requeue active jobs", func() error {
		res, err := q.db.ExecContext(ctx,
			`UPDATE jobs SET state = ?, not_before = NULL WHERE state = ?`,
			string(models.JobStateQueued), string(models.JobStateActive),
		)
		if err != nil {
			return err
		}
		requeued, err = res.RowsAffected()
		return err
	})
	return requeued, err
}

// Counts returns the number of jobs per state, with queued jobs whose
// eligibility time has not arrived reported as delayed.
func (q *Queue) Counts(ctx context.Context) (map[models.JobState]int, error) {
	counts := make(map[models.JobState]int)
	err := q.withRetry(ctx, "count jobs", func() error {
		now := time.Now().UTC()
		rows, err := q.db.QueryContext(ctx, `
			SELECT
				CASE WHEN state = 'queued' AND not_before IS NOT NULL AND not_before > ?
					THEN 'delayed' ELSE state END AS visible_state,
				COUNT(*)
			FROM jobs GROUP BY visible_state
		`, now)
		if err != nil {
			return err
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			var state string
			var n int
			if err := rows.Scan(&state, &n); err != nil {
				return err
			}
			counts[models.JobState(state)] = n
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// PruneTerminal deletes completed and dead jobs older than the given age.
func (q *Queue) PruneTerminal(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	var pruned int64
	err := q.withRetry(ctx, "prune jobs", func() error {
		res, err := q.db.ExecContext(ctx,
			`DELETE FROM jobs WHERE state IN (?, ?) AND updated_at < ?`,
			string(models.JobStateCompleted), string(models.JobStateDead), cutoff,
		)
		if err != nil {
			return err
		}
		pruned, err = res.RowsAffected()
		return err
	})
	return pruned, err
}

const selectJobColumns = `
	SELECT id, session_id, type, chat_id, payload, state, priority,
		attempts, max_attempts, skip_number_check, typing_time_ms,
		not_before, last_error, result, created_at, updated_at
`

type scannable interface {
	Scan(dest ...interface{}) error
}

func (q *Queue) scanJob(row scannable) (*models.Job, error) {
	var job models.Job
	var jobType, state, payload string
	var skipCheck int
	var notBefore sql.NullTime
	var lastError, result sql.NullString

	err := row.Scan(
		&job.ID, &job.SessionID, &jobType, &job.ChatID, &payload, &state,
		&job.Priority, &job.Attempts, &job.MaxAttempts, &skipCheck,
		&job.TypingTimeMs, &notBefore, &lastError, &result,
		&job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	job.Type = models.JobType(jobType)
	job.SkipNumberCheck = skipCheck != 0
	if notBefore.Valid {
		job.NotBefore = notBefore.Time
	}

	decryptedPayload, err := q.encryptor.DecryptIfEnabled(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt payload: %w", err)
	}
	job.Payload = json.RawMessage(decryptedPayload)

	if lastError.Valid && lastError.String != "" {
		decrypted, err := q.encryptor.DecryptIfEnabled(lastError.String)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt error: %w", err)
		}
		job.LastError = decrypted
	}
	if result.Valid && result.String != "" {
		decrypted, err := q.encryptor.DecryptIfEnabled(result.String)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt result: %w", err)
		}
		job.Result = json.RawMessage(decrypted)
	}

	job.State = visibleState(models.JobState(state), job.NotBefore, time.Now().UTC())
	return &job, nil
}

// visibleState maps a stored queued state onto delayed while its
// eligibility time lies in the future. Only the stored state drives claim
// eligibility; delayed exists for callers of GetStatus.
func visibleState(stored models.JobState, notBefore, now time.Time) models.JobState {
	if stored == models.JobStateQueued && !notBefore.IsZero() && notBefore.After(now) {
		return models.JobStateDelayed
	}
	return stored
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
