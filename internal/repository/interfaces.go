package repository

import (
	"context"
	"errors"

	"github.com/Kerhoff/remindbot/internal/models"
)

// ErrCorrupt is returned by Load when the durable document exists but cannot
// be decoded. Callers must not overwrite a document that failed this way.
var ErrCorrupt = errors.New("reminder document is corrupt")

// ReminderStore defines whole-document access to the reminder book.
// Implementations do no locking; callers serialize access.
type ReminderStore interface {
	// Load returns the full book, or an empty one if nothing was saved yet.
	Load(ctx context.Context) (models.ReminderBook, error)
	// Save replaces the stored book with the given one.
	Save(ctx context.Context, book models.ReminderBook) error
	Close() error
}
