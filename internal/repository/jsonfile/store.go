// Package jsonfile stores the reminder book as a single JSON document on disk.
package jsonfile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/Kerhoff/remindbot/internal/models"
	"github.com/Kerhoff/remindbot/internal/repository"
)

type reminderStore struct {
	path string
}

// NewReminderStore creates a store backed by the JSON document at path
func NewReminderStore(path string) repository.ReminderStore {
	return &reminderStore{path: path}
}

func (s *reminderStore) Load(ctx context.Context) (models.ReminderBook, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return models.ReminderBook{}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", s.path, err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return models.ReminderBook{}, nil
	}

	book := models.ReminderBook{}
	if err := json.Unmarshal(data, &book); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", repository.ErrCorrupt, s.path, err)
	}
	if book == nil {
		// the document was a literal null
		book = models.ReminderBook{}
	}
	for chatID, list := range book {
		for i, r := range list {
			if r == nil {
				return nil, fmt.Errorf("%w: %s: chat %s entry %d is null", repository.ErrCorrupt, s.path, chatID, i)
			}
		}
	}

	return book, nil
}

// Save writes to a temporary file next to the target and renames it into
// place, so a crash mid-write leaves the previous document intact.
func (s *reminderStore) Save(ctx context.Context, book models.ReminderBook) error {
	if book == nil {
		book = models.ReminderBook{}
	}

	data, err := json.Marshal(book)
	if err != nil {
		return fmt.Errorf("failed to encode reminders: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write reminders: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync reminders: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", s.path, err)
	}

	return nil
}

func (s *reminderStore) Close() error {
	return nil
}
