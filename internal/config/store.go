package config

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/remindbot/internal/repository"
	"github.com/Kerhoff/remindbot/internal/repository/bolt"
	"github.com/Kerhoff/remindbot/internal/repository/jsonfile"
)

// NewStore opens the reminder store selected by STORE_DRIVER
func NewStore(cfg *Config, logger *logrus.Logger) (repository.ReminderStore, error) {
	var (
		store repository.ReminderStore
		err   error
	)

	switch cfg.StoreDriver {
	case StoreDriverBolt:
		store, err = bolt.NewReminderStore(cfg.RemindersFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open bolt store: %w", err)
		}
	case StoreDriverJSON, "":
		store = jsonfile.NewReminderStore(cfg.RemindersFile)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}

	logger.WithFields(logrus.Fields{
		"driver": cfg.StoreDriver,
		"path":   cfg.RemindersFile,
	}).Info("Reminder store ready")

	return store, nil
}
