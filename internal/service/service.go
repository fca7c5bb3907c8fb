package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"

	"github.com/Kerhoff/remindbot/internal/metrics"
	"github.com/Kerhoff/remindbot/internal/models"
	"github.com/Kerhoff/remindbot/internal/repository"
)

// DefaultPostponeDelay is how far Postpone pushes a reminder.
const DefaultPostponeDelay = 12 * time.Hour

// Service is the reminder lifecycle layer. Every operation reloads the whole
// book from the store, and mutating operations write it back; mu makes each
// load-mutate-save cycle atomic with respect to the others.
type Service struct {
	store         repository.ReminderStore
	logger        *logrus.Logger
	now           func() time.Time
	postponeDelay time.Duration

	readOnly bool

	mu sync.Mutex

	scanning atomic.Bool
	ticks    atomic.Int64
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithPostponeDelay overrides DefaultPostponeDelay.
func WithPostponeDelay(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.postponeDelay = d
		}
	}
}

// ReadOnly makes the Service never write to its store. Mutating operations
// fail with ErrReadOnly and ids assigned to legacy reminders are not saved.
func ReadOnly() Option {
	return func(s *Service) { s.readOnly = true }
}

// New creates a new Service on top of the given store.
func New(store repository.ReminderStore, logger *logrus.Logger, opts ...Option) *Service {
	s := &Service{
		store:         store,
		logger:        logger,
		now:           time.Now,
		postponeDelay: DefaultPostponeDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IndexedReminder is one entry of the deletion list.
type IndexedReminder struct {
	Index int
	ID    string
	Name  string
}

// DueReminder is a reminder found due by a scan, with its owning chat.
type DueReminder struct {
	ChatID   string
	Reminder models.Reminder
}

// PostponeDelay returns the offset applied by Postpone.
func (s *Service) PostponeDelay() time.Duration {
	return s.postponeDelay
}

// Create appends a new reminder to the chat. intervalDays must be a positive
// integer and name must not be blank.
func (s *Service) Create(ctx context.Context, chatID, intervalDays, name string) (models.Reminder, error) {
	chatID = strings.TrimSpace(chatID)
	name = strings.TrimSpace(name)

	if chatID == "" {
		return models.Reminder{}, fmt.Errorf("%w: chat id is required", ErrUsage)
	}
	days, err := strconv.Atoi(strings.TrimSpace(intervalDays))
	if err != nil || days <= 0 {
		return models.Reminder{}, fmt.Errorf("%w: interval must be a positive number of days, got %q", ErrUsage, intervalDays)
	}
	if !models.ValidInterval(days) {
		return models.Reminder{}, fmt.Errorf("%w: interval must be at most %d days, got %d", ErrUsage, models.MaxIntervalDays, days)
	}
	if name == "" {
		return models.Reminder{}, fmt.Errorf("%w: name is required", ErrUsage)
	}

	var created models.Reminder
	err = s.update(ctx, "create", func(book models.ReminderBook) error {
		r := &models.Reminder{
			ID:           uuid.NewString(),
			Name:         name,
			IntervalDays: days,
		}
		r.MarkDone(s.now())
		if !models.Representable(r.NextDue) {
			return fmt.Errorf("%w: interval of %d days ends past year 9999", ErrUsage, days)
		}
		book.Append(chatID, r)
		created = *r
		return nil
	})
	if err != nil {
		return models.Reminder{}, err
	}

	s.logger.WithFields(logrus.Fields{
		"chat_id":     chatID,
		"reminder_id": created.ID,
		"name":        created.Name,
		"interval":    created.IntervalDays,
	}).Info("Created reminder")

	return created, nil
}

// List returns the chat's reminders in insertion order.
func (s *Service) List(ctx context.Context, chatID string) ([]models.Reminder, error) {
	var out []models.Reminder
	err := s.view(ctx, func(book models.ReminderBook) error {
		out = make([]models.Reminder, 0, len(book[chatID]))
		for _, r := range book[chatID] {
			out = append(out, *r)
		}
		return nil
	})
	return out, err
}

// ListForDeletion returns the positional entries a user can pick from.
// It fails with ErrNoReminders when the chat has none.
func (s *Service) ListForDeletion(ctx context.Context, chatID string) ([]IndexedReminder, error) {
	var out []IndexedReminder
	err := s.view(ctx, func(book models.ReminderBook) error {
		list := book[chatID]
		if len(list) == 0 {
			return fmt.Errorf("%w: chat %s", ErrNoReminders, chatID)
		}
		out = make([]IndexedReminder, 0, len(list))
		for i, r := range list {
			out = append(out, IndexedReminder{Index: i, ID: r.ID, Name: r.Name})
		}
		return nil
	})
	return out, err
}

// DeleteAt removes the reminder at index in the chat's current sequence.
func (s *Service) DeleteAt(ctx context.Context, chatID string, index int) (models.Reminder, error) {
	return s.DeleteAtExpecting(ctx, chatID, index, "")
}

// DeleteAtExpecting is DeleteAt that also fails with ErrInvalidIndex when the
// reminder now at index is not expectedID. An empty expectedID skips the check.
func (s *Service) DeleteAtExpecting(ctx context.Context, chatID string, index int, expectedID string) (models.Reminder, error) {
	var deleted models.Reminder
	err := s.update(ctx, "delete", func(book models.ReminderBook) error {
		list := book[chatID]
		if index < 0 || index >= len(list) {
			return fmt.Errorf("%w: %d (chat %s has %d reminders)", ErrInvalidIndex, index, chatID, len(list))
		}
		if expectedID != "" && list[index].ID != expectedID {
			return fmt.Errorf("%w: %d no longer refers to reminder %s", ErrInvalidIndex, index, expectedID)
		}
		r, _ := book.RemoveAt(chatID, index)
		deleted = *r
		return nil
	})
	if err != nil {
		return models.Reminder{}, err
	}

	s.logger.WithFields(logrus.Fields{
		"chat_id":     chatID,
		"reminder_id": deleted.ID,
		"name":        deleted.Name,
	}).Info("Deleted reminder")

	return deleted, nil
}

// MarkDone reschedules the first reminder named name one interval from now.
func (s *Service) MarkDone(ctx context.Context, chatID, name string) (models.Reminder, error) {
	return s.reschedule(ctx, "mark_done", chatID, byName(name), func(r *models.Reminder, now time.Time) {
		r.MarkDone(now)
	})
}

// MarkDoneByID is MarkDone addressed by reminder id.
func (s *Service) MarkDoneByID(ctx context.Context, chatID, id string) (models.Reminder, error) {
	return s.reschedule(ctx, "mark_done", chatID, byID(id), func(r *models.Reminder, now time.Time) {
		r.MarkDone(now)
	})
}

// Postpone moves the first reminder named name to now plus the postpone delay.
func (s *Service) Postpone(ctx context.Context, chatID, name string) (models.Reminder, error) {
	return s.reschedule(ctx, "postpone", chatID, byName(name), func(r *models.Reminder, now time.Time) {
		r.Postpone(now, s.postponeDelay)
	})
}

// PostponeByID is Postpone addressed by reminder id.
func (s *Service) PostponeByID(ctx context.Context, chatID, id string) (models.Reminder, error) {
	return s.reschedule(ctx, "postpone", chatID, byID(id), func(r *models.Reminder, now time.Time) {
		r.Postpone(now, s.postponeDelay)
	})
}

// Due returns every reminder whose next due time has passed, chats in sorted
// order. It never changes next_due: an unanswered reminder stays due.
func (s *Service) Due(ctx context.Context) ([]DueReminder, error) {
	var out []DueReminder
	err := s.view(ctx, func(book models.ReminderBook) error {
		now := s.now()
		for _, chatID := range book.ChatIDs() {
			for _, r := range book[chatID] {
				if r.IsDue(now) {
					out = append(out, DueReminder{ChatID: chatID, Reminder: *r})
				}
			}
		}
		return nil
	})
	return out, err
}

// Book returns a snapshot of the whole document.
func (s *Service) Book(ctx context.Context) (models.ReminderBook, error) {
	var out models.ReminderBook
	err := s.view(ctx, func(book models.ReminderBook) error {
		out = book
		return nil
	})
	return out, err
}

type lookup struct {
	desc string
	find func(book models.ReminderBook, chatID string) *models.Reminder
}

func byName(name string) lookup {
	return lookup{
		desc: fmt.Sprintf("name %q", name),
		find: func(book models.ReminderBook, chatID string) *models.Reminder {
			return book.FindByName(chatID, name)
		},
	}
}

func byID(id string) lookup {
	return lookup{
		desc: fmt.Sprintf("id %s", id),
		find: func(book models.ReminderBook, chatID string) *models.Reminder {
			return book.FindByID(chatID, id)
		},
	}
}

func (s *Service) reschedule(ctx context.Context, op, chatID string, l lookup, apply func(*models.Reminder, time.Time)) (models.Reminder, error) {
	var updated models.Reminder
	err := s.update(ctx, op, func(book models.ReminderBook) error {
		r := l.find(book, chatID)
		if r == nil {
			return fmt.Errorf("%w: chat %s, %s", ErrNotFound, chatID, l.desc)
		}
		prev := r.NextDue
		apply(r, s.now())
		if !models.Representable(r.NextDue) {
			r.NextDue = prev
			return fmt.Errorf("%w: %s would move past year 9999", ErrUsage, l.desc)
		}
		updated = *r
		return nil
	})
	if err != nil {
		return models.Reminder{}, err
	}

	s.logger.WithFields(logrus.Fields{
		"chat_id":     chatID,
		"reminder_id": updated.ID,
		"name":        updated.Name,
		"op":          op,
		"next_due":    models.FormatTimestamp(updated.NextDue),
	}).Info("Rescheduled reminder")

	return updated, nil
}

// update runs fn on a freshly loaded book and saves the result when fn
// succeeds. A book that fails to load is never written back.
func (s *Service) update(ctx context.Context, op string, fn func(models.ReminderBook) error) error {
	if s.readOnly {
		return fmt.Errorf("%w: %s", ErrReadOnly, op)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	book, err := s.store.Load(ctx)
	if err != nil {
		metrics.Operations.WithLabelValues(op, "error").Inc()
		return fmt.Errorf("failed to load reminders: %w", err)
	}
	assignIDs(book)

	if err := fn(book); err != nil {
		metrics.Operations.WithLabelValues(op, resultLabel(err)).Inc()
		return err
	}

	if err := s.store.Save(ctx, book); err != nil {
		metrics.Operations.WithLabelValues(op, "error").Inc()
		return fmt.Errorf("failed to save reminders: %w", err)
	}

	metrics.Operations.WithLabelValues(op, "ok").Inc()
	return nil
}

// view runs fn on a freshly loaded book. Reminders stored without an id get
// one here, and the assignment is persisted so callbacks can refer to it.
func (s *Service) view(ctx context.Context, fn func(models.ReminderBook) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	book, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load reminders: %w", err)
	}

	if assignIDs(book) > 0 && !s.readOnly {
		if err := s.store.Save(ctx, book); err != nil {
			s.logger.WithError(err).Warn("Failed to persist assigned reminder ids")
		}
	}

	return fn(book)
}

func assignIDs(book models.ReminderBook) int {
	assigned := 0
	for _, list := range book {
		for _, r := range list {
			if r.ID == "" {
				r.ID = uuid.NewString()
				assigned++
			}
		}
	}
	return assigned
}

func resultLabel(err error) string {
	if IsUserError(err) {
		return "rejected"
	}
	return "error"
}
