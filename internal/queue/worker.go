package queue

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"chatery/internal/constants"
	"chatery/internal/metrics"
	"chatery/internal/models"
	"chatery/internal/privacy"
	"chatery/internal/tracing"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Dispatcher executes one claimed job against its owning session and returns
// the protocol client's response. Implementations decide retryability by
// returning the error taxonomy from the errors package.
type Dispatcher interface {
	Dispatch(ctx context.Context, job *models.Job) (json.RawMessage, error)
}

// WorkerPoolConfig sizes the pool and its global throughput ceiling.
type WorkerPoolConfig struct {
	Workers         int
	PollInterval    time.Duration
	RateLimitMax    int
	RateLimitWindow time.Duration
}

func (c WorkerPoolConfig) withDefaults() WorkerPoolConfig {
	if c.Workers <= 0 {
		c.Workers = constants.DefaultQueueWorkers
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Duration(constants.DefaultQueuePollIntervalMs) * time.Millisecond
	}
	if c.RateLimitMax <= 0 {
		c.RateLimitMax = constants.DefaultRateLimitMax
	}
	if c.RateLimitWindow <= 0 {
		c.RateLimitWindow = time.Duration(constants.DefaultRateLimitWindowMs) * time.Millisecond
	}
	return c
}

// WorkerPool pulls eligible jobs from the queue under a shared rate limit
// and hands them to the dispatcher. One job's failure never blocks another
// beyond the limiter's admission order.
type WorkerPool struct {
	queue      *Queue
	dispatcher Dispatcher
	limiter    *RateLimiter
	logger     *logrus.Logger
	config     WorkerPoolConfig

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewWorkerPool(q *Queue, dispatcher Dispatcher, config WorkerPoolConfig, logger *logrus.Logger) *WorkerPool {
	config = config.withDefaults()
	return &WorkerPool{
		queue:      q,
		dispatcher: dispatcher,
		limiter:    NewRateLimiter(config.RateLimitMax, config.RateLimitWindow),
		logger:     logger,
		config:     config,
	}
}

// Start requeues jobs stranded in active by a previous process and launches
// the workers. It returns immediately.
func (p *WorkerPool) Start(ctx context.Context) error {
	requeued, err := p.queue.RequeueActive(ctx)
	if err != nil {
		return err
	}
	if requeued > 0 {
		p.logger.WithField("jobs", requeued).Info("Requeued jobs from previous run")
	}

	ctx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.cancel = cancel
	p.mu.Unlock()

	for i := 0; i < p.config.Workers; i++ {
		p.wg.Add(1)
		go p.runWorker(ctx, i)
	}

	p.logger.WithFields(logrus.Fields{
		"workers":      p.config.Workers,
		"rateLimitMax": p.config.RateLimitMax,
		"rateWindowMs": p.config.RateLimitWindow.Milliseconds(),
	}).Info("Worker pool started")
	return nil
}

// Stop cancels the workers and waits for in-flight dispatches to finish.
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	p.wg.Wait()
}

func (p *WorkerPool) runWorker(ctx context.Context, id int) {
	defer p.wg.Done()

	log := p.logger.WithField("worker", id)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := p.queue.ClaimNext(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.WithError(err).Error("Failed to claim job")
			p.sleep(ctx, p.config.PollInterval)
			continue
		}
		if job == nil {
			p.sleep(ctx, p.config.PollInterval)
			continue
		}

		if err := p.limiter.Wait(ctx); err != nil {
			// Shutting down with a claimed job: release it so the next
			// run picks it up without burning an attempt.
			if releaseErr := p.queue.Release(context.Background(), job.ID); releaseErr != nil {
				log.WithError(releaseErr).WithField("jobId", job.ID).Error("Failed to release claimed job")
			}
			return
		}

		p.process(ctx, log, job)
	}
}

func (p *WorkerPool) process(ctx context.Context, log *logrus.Entry, job *models.Job) {
	ctx, span := tracing.StartSpan(ctx, "queue.dispatch",
		attribute.String("job.id", job.ID),
		attribute.String("job.type", string(job.Type)),
		attribute.String("session.id", job.SessionID),
		attribute.Int("job.attempt", job.Attempts),
	)
	defer span.End()

	log = log.WithFields(logrus.Fields{
		"jobId":   job.ID,
		"jobType": string(job.Type),
		"session": privacy.MaskSessionName(job.SessionID),
		"chatId":  privacy.MaskChatID(job.ChatID),
		"attempt": job.Attempts,
	})

	start := time.Now()
	result, err := p.dispatcher.Dispatch(ctx, job)
	metrics.RecordTimer("queue_dispatch_duration", time.Since(start),
		map[string]string{"type": string(job.Type)}, "Job dispatch latency")

	if err != nil {
		tracing.RecordError(ctx, err)
		tracing.SetSpanStatus(ctx, codes.Error, "dispatch failed")

		state, markErr := p.queue.MarkFailed(ctx, job, err)
		if markErr != nil {
			log.WithError(markErr).Error("Failed to record job failure")
			return
		}

		switch state {
		case models.JobStateDead:
			metrics.IncrementCounter("queue_jobs_dead", map[string]string{"type": string(job.Type)}, "Jobs that exhausted retries or failed unrecoverably")
			log.WithError(err).Warn("Job moved to dead")
		default:
			metrics.IncrementCounter("queue_jobs_retried", map[string]string{"type": string(job.Type)}, "Job attempts that will be retried")
			log.WithError(err).Info("Job failed, will retry")
		}
		return
	}

	if err := p.queue.MarkCompleted(ctx, job.ID, result); err != nil {
		log.WithError(err).Error("Failed to record job completion")
		return
	}
	metrics.IncrementCounter("queue_jobs_completed", map[string]string{"type": string(job.Type)}, "Jobs dispatched successfully")
	log.Debug("Job completed")
}

func (p *WorkerPool) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
