package service

import (
	"context"
	"time"

	"chatery/internal/constants"
	"chatery/internal/models"

	"github.com/sirupsen/logrus"
)

// Scheduler periodically snapshots every session's conversation store and
// enforces media retention. It is the only writer of snapshot files during
// normal operation.
type Scheduler struct {
	registry *Registry
	config   models.StoreConfig
	logger   *logrus.Logger
	stopCh   chan struct{}
}

func NewScheduler(registry *Registry, config models.StoreConfig, logger *logrus.Logger) *Scheduler {
	if config.SnapshotIntervalSec <= 0 {
		config.SnapshotIntervalSec = constants.DefaultSnapshotIntervalSec
	}
	if config.MediaRetainPerChat <= 0 {
		config.MediaRetainPerChat = constants.DefaultMediaRetainPerChat
	}
	return &Scheduler{
		registry: registry,
		config:   config,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(s.config.SnapshotIntervalSec) * time.Second)
	defer ticker.Stop()

	s.logger.WithField("intervalSec", s.config.SnapshotIntervalSec).Info("Starting snapshot scheduler")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler context cancelled, stopping")
			return
		case <-s.stopCh:
			s.runOnce()
			s.logger.Info("Scheduler stop signal received, stopping")
			return
		case <-ticker.C:
			s.runOnce()
		}
	}
}

func (s *Scheduler) Stop() {
	close(s.stopCh)
}

// runOnce walks every session: media eviction first so evicted attachments
// never reach the snapshot, then the snapshot write. Failures are logged and
// never fatal; the next tick retries.
func (s *Scheduler) runOnce() {
	for _, session := range s.registry.List() {
		removed := session.Store.CleanupRetention(s.config.MediaRetainPerChat)
		if removed > 0 {
			s.logger.WithFields(logrus.Fields{
				"session": session.ID,
				"removed": removed,
			}).Debug("Evicted media beyond retention")
		}

		if err := session.Store.Snapshot(s.registry.SnapshotPath(session.ID)); err != nil {
			s.logger.WithField("session", session.ID).WithError(err).Error("Failed to write store snapshot")
		}
	}
}
