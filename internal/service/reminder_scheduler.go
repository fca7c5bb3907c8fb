package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/remindbot/internal/metrics"
	"github.com/Kerhoff/remindbot/internal/repository"
)

const (
	DefaultCheckInterval = 60 * time.Second
	DefaultCheckDelay    = 10 * time.Second
)

// ReminderCallback delivers a single due notification.
type ReminderCallback func(ctx context.Context, due DueReminder) error

// SchedulerConfig controls the due-check loop timing.
type SchedulerConfig struct {
	Interval     time.Duration
	InitialDelay time.Duration
}

// StartReminderScheduler waits InitialDelay, then checks for due reminders
// every Interval and invokes the callback for each one. It blocks until the
// context is cancelled, so it should be launched in a separate goroutine.
//
// Due reminders are not rescheduled by the loop: they are notified again on
// every tick until the user marks them done or postpones them. Missed ticks
// are not replayed.
func (s *Service) StartReminderScheduler(ctx context.Context, cfg SchedulerConfig, callback ReminderCallback) {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultCheckInterval
	}
	if cfg.InitialDelay < 0 {
		cfg.InitialDelay = 0
	}

	s.logger.WithFields(logrus.Fields{
		"interval":      cfg.Interval.String(),
		"initial_delay": cfg.InitialDelay.String(),
	}).Info("Reminder scheduler started")

	delay := time.NewTimer(cfg.InitialDelay)
	defer delay.Stop()

	select {
	case <-ctx.Done():
		s.logger.Info("Reminder scheduler stopped")
		return
	case <-delay.C:
		s.RunOnce(ctx, callback)
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Reminder scheduler stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx, callback)
		}
	}
}

// RunOnce performs a single tick: it scans for due reminders and fires the
// callback for each one. Failures are collected per reminder so one bad chat
// does not stop the rest of the scan. It returns the number of notifications
// delivered and the combined delivery errors.
func (s *Service) RunOnce(ctx context.Context, callback ReminderCallback) (int, error) {
	s.scanning.Store(true)
	defer s.scanning.Store(false)
	s.ticks.Inc()

	start := time.Now()
	defer func() { metrics.CheckDuration.Observe(time.Since(start).Seconds()) }()

	due, err := s.Due(ctx)
	if err != nil {
		metrics.Checks.WithLabelValues("load_error").Inc()
		entry := s.logger.WithError(err)
		if errors.Is(err, repository.ErrCorrupt) {
			entry.Error("Reminder document is corrupt, skipping this check")
		} else {
			entry.Error("Failed to get due reminders")
		}
		return 0, err
	}
	metrics.Checks.WithLabelValues("ok").Inc()
	metrics.DueReminders.Set(float64(len(due)))

	var result *multierror.Error
	sent, failed := 0, 0
	for _, d := range due {
		if ctx.Err() != nil {
			result = multierror.Append(result, ctx.Err())
			break
		}

		if err := s.notify(ctx, callback, d); err != nil {
			failed++
			metrics.Notifications.WithLabelValues("failed").Inc()
			s.logger.WithFields(logrus.Fields{
				"chat_id":     d.ChatID,
				"reminder_id": d.Reminder.ID,
				"error":       err,
			}).Warn("Failed to deliver reminder")
			result = multierror.Append(result, fmt.Errorf("chat %s, reminder %q: %w", d.ChatID, d.Reminder.Name, err))
			continue
		}
		metrics.Notifications.WithLabelValues("sent").Inc()
		sent++
	}

	if len(due) > 0 {
		s.logger.WithFields(logrus.Fields{
			"due":     len(due),
			"sent":    sent,
			"failed":  failed,
			"skipped": len(due) - sent - failed,
		}).Info("Processed due reminders")
	}

	return sent, result.ErrorOrNil()
}

func (s *Service) notify(ctx context.Context, callback ReminderCallback, d DueReminder) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in reminder callback: %v", r)
		}
	}()
	return callback(ctx, d)
}

// Scanning reports whether a tick is in progress.
func (s *Service) Scanning() bool {
	return s.scanning.Load()
}

// Ticks returns the number of ticks run since start.
func (s *Service) Ticks() int64 {
	return s.ticks.Load()
}
