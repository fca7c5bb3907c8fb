// Package bolt stores the reminder book in a bbolt file, one key per chat.
package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/Kerhoff/remindbot/internal/models"
	"github.com/Kerhoff/remindbot/internal/repository"
)

var remindersBucket = []byte("reminders")

type reminderStore struct {
	db *bbolt.DB
}

// NewReminderStore opens (or creates) the bbolt file at path
func NewReminderStore(path string) (repository.ReminderStore, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt file %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(remindersBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create reminders bucket: %w", err)
	}

	return &reminderStore{db: db}, nil
}

func (s *reminderStore) Load(ctx context.Context) (models.ReminderBook, error) {
	book := models.ReminderBook{}

	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(remindersBucket).ForEach(func(k, v []byte) error {
			var list []*models.Reminder
			if err := json.Unmarshal(v, &list); err != nil {
				return fmt.Errorf("%w: chat %s: %v", repository.ErrCorrupt, k, err)
			}
			for i, r := range list {
				if r == nil {
					return fmt.Errorf("%w: chat %s entry %d is null", repository.ErrCorrupt, k, i)
				}
			}
			if len(list) > 0 {
				book[string(k)] = list
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return book, nil
}

// Save rewrites the whole bucket inside one transaction
func (s *reminderStore) Save(ctx context.Context, book models.ReminderBook) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(remindersBucket); err != nil {
			return fmt.Errorf("failed to clear reminders bucket: %w", err)
		}
		bucket, err := tx.CreateBucket(remindersBucket)
		if err != nil {
			return fmt.Errorf("failed to create reminders bucket: %w", err)
		}

		for chatID, list := range book {
			if len(list) == 0 {
				continue
			}
			data, err := json.Marshal(list)
			if err != nil {
				return fmt.Errorf("failed to encode reminders for chat %s: %w", chatID, err)
			}
			if err := bucket.Put([]byte(chatID), data); err != nil {
				return fmt.Errorf("failed to store reminders for chat %s: %w", chatID, err)
			}
		}
		return nil
	})
}

func (s *reminderStore) Close() error {
	return s.db.Close()
}
