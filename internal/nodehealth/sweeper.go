package nodehealth

import (
	"context"
	"fmt"
	"time"

	"mesh_manager/internal/model"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Defaults for the liveness sweep
const (
	DefaultInterval         = 30 * time.Second
	DefaultOfflineThreshold = 120 * time.Second
)

// Notifier receives liveness events for operator dashboards
type Notifier interface {
	Publish(topic, eventType string, data interface{})
}

// Sweeper periodically demotes nodes that stopped reporting telemetry
type Sweeper struct {
	db        *gorm.DB
	logger    *logrus.Entry
	interval  time.Duration
	threshold time.Duration
	cron      *cron.Cron
	notifier  Notifier
	now       func() time.Time
}

// Config holds the configuration for the liveness sweeper
type Config struct {
	DB               *gorm.DB
	Logger           *logrus.Entry
	Interval         time.Duration
	OfflineThreshold time.Duration
	Notifier         Notifier
}

// NewSweeper creates a new liveness sweeper
func NewSweeper(cfg *Config) *Sweeper {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	threshold := cfg.OfflineThreshold
	if threshold <= 0 {
		threshold = DefaultOfflineThreshold
	}

	logger := cfg.Logger.WithField("component", "liveness-sweeper")
	cronLogger := cron.PrintfLogger(logger)

	return &Sweeper{
		db:        cfg.DB,
		logger:    logger,
		interval:  interval,
		threshold: threshold,
		notifier:  cfg.Notifier,
		now:       func() time.Time { return time.Now().UTC() },
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
	}
}

// Start schedules the sweep every interval
func (s *Sweeper) Start() error {
	spec := fmt.Sprintf("@every %s", s.interval)
	if _, err := s.cron.AddFunc(spec, s.run); err != nil {
		return fmt.Errorf("failed to schedule liveness sweep: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"interval":  s.interval,
		"threshold": s.threshold,
	}).Info("Starting liveness sweeper...")
	s.cron.Start()
	return nil
}

// Stop stops scheduling sweeps and waits for an in-flight sweep to finish,
// or for ctx to expire, whichever comes first
func (s *Sweeper) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("Stopped liveness sweeper")
	case <-ctx.Done():
		s.logger.Warn("Liveness sweeper stop timed out, abandoning in-flight sweep")
	}
}

// run is the scheduled entry point. Errors are logged and never stop the schedule.
func (s *Sweeper) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()

	if _, err := s.SweepOnce(ctx); err != nil {
		s.logger.WithError(err).Error("Liveness sweep failed")
	}
}

// SweepOnce marks every online node whose last_seen is older than the
// threshold as offline and returns how many nodes changed
func (s *Sweeper) SweepOnce(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.threshold)

	res := s.db.WithContext(ctx).
		Model(&model.Node{}).
		Where("last_seen < ? AND is_online = ?", cutoff, true).
		Update("is_online", false)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to mark stale nodes offline: %w", res.Error)
	}

	if res.RowsAffected > 0 {
		s.logger.WithFields(logrus.Fields{
			"count":  res.RowsAffected,
			"cutoff": cutoff,
		}).Info("Marked stale nodes offline")

		if s.notifier != nil {
			s.notifier.Publish("nodes", "offline", map[string]interface{}{
				"count":  res.RowsAffected,
				"cutoff": cutoff,
			})
		}
	}
	return res.RowsAffected, nil
}
