package config

import (
	"context"
	"os"
	"sync"
	"time"

	"chatery/internal/models"

	"github.com/sirupsen/logrus"
)

// Watcher polls the configuration file for changes and reloads it. Only the
// settings consumers re-read through callbacks take effect at runtime; the
// queue and server keep their startup values.
type Watcher struct {
	configPath string
	logger     *logrus.Logger
	mu         sync.RWMutex
	config     *models.Config
	callbacks  []func(*models.Config)
}

func NewWatcher(configPath string, logger *logrus.Logger) *Watcher {
	return &Watcher{
		configPath: configPath,
		logger:     logger,
		callbacks:  make([]func(*models.Config), 0),
	}
}

// Start loads the configuration and begins polling for changes until the
// context is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	config, err := LoadConfig(w.configPath)
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.config = config
	w.mu.Unlock()

	stat, err := os.Stat(w.configPath)
	if err != nil {
		return err
	}
	lastModTime := stat.ModTime()

	w.logger.WithField("path", w.configPath).Info("Configuration watcher started")

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Configuration watcher stopping")
			return nil

		case <-ticker.C:
			stat, err := os.Stat(w.configPath)
			if err != nil {
				w.logger.WithError(err).Error("Failed to stat configuration file")
				continue
			}

			if stat.ModTime().After(lastModTime) {
				w.logger.Debug("Configuration file changed")
				lastModTime = stat.ModTime()

				// Small delay to ensure file write is complete
				time.Sleep(100 * time.Millisecond)
				w.reload()
			}
		}
	}
}

// GetConfig returns the current configuration (thread-safe)
func (w *Watcher) GetConfig() *models.Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.config
}

// OnConfigChange registers a callback to be called when configuration changes
func (w *Watcher) OnConfigChange(callback func(*models.Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

func (w *Watcher) reload() {
	newConfig, err := LoadConfig(w.configPath)
	if err != nil {
		w.logger.WithError(err).Error("Failed to reload configuration")
		return
	}

	w.mu.Lock()
	oldConfig := w.config
	w.config = newConfig
	callbacks := make([]func(*models.Config), len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.Unlock()

	w.logger.Info("Configuration reloaded successfully")

	for _, callback := range callbacks {
		go func(cb func(*models.Config)) {
			defer func() {
				if r := recover(); r != nil {
					w.logger.WithField("panic", r).Error("Config change callback panicked")
				}
			}()
			cb(newConfig)
		}(callback)
	}

	w.logChanges(oldConfig, newConfig)
}

func (w *Watcher) logChanges(old, new *models.Config) {
	if old == nil {
		return
	}

	if old.LogLevel != new.LogLevel {
		w.logger.WithFields(logrus.Fields{
			"old": old.LogLevel,
			"new": new.LogLevel,
		}).Info("Log level changed")
	}

	if old.Store.SnapshotIntervalSec != new.Store.SnapshotIntervalSec {
		w.logger.WithFields(logrus.Fields{
			"old": old.Store.SnapshotIntervalSec,
			"new": new.Store.SnapshotIntervalSec,
		}).Info("Snapshot interval changed")
	}

	if old.Queue.RateLimitMax != new.Queue.RateLimitMax {
		w.logger.WithFields(logrus.Fields{
			"old": old.Queue.RateLimitMax,
			"new": new.Queue.RateLimitMax,
		}).Info("Rate limit changed")
	}
}
