package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// TimestampLayout is the naive local timestamp format used in the reminders
// document. Fractional seconds are written only when present.
const TimestampLayout = "2006-01-02T15:04:05.999999"

// MaxIntervalDays bounds interval_days so every next_due stays writable as a
// four-digit year.
const MaxIntervalDays = 36500

// Reminder represents a recurring reminder owned by a chat
type Reminder struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	IntervalDays int       `json:"interval_days"`
	NextDue      time.Time `json:"next_due"`
}

// IsDue returns true if the reminder should fire at the given time
func (r *Reminder) IsDue(now time.Time) bool {
	return !r.NextDue.After(now)
}

// MarkDone reschedules the reminder a full interval after now
func (r *Reminder) MarkDone(now time.Time) {
	r.NextDue = now.AddDate(0, 0, r.IntervalDays)
}

// Postpone pushes the reminder forward by d, ignoring the interval
func (r *Reminder) Postpone(now time.Time, d time.Duration) {
	r.NextDue = now.Add(d)
}

// reminderDocument is the on-disk shape of a reminder. The Spanish keys are
// the ones written by the first version of the bot and are only read.
type reminderDocument struct {
	ID           string          `json:"id,omitempty"`
	Name         string          `json:"name,omitempty"`
	IntervalDays json.RawMessage `json:"interval_days,omitempty"`
	NextDue      string          `json:"next_due,omitempty"`

	Nombre       string          `json:"nombre,omitempty"`
	Dias         json.RawMessage `json:"dias,omitempty"`
	ProximoAviso string          `json:"proximo_aviso,omitempty"`
}

// MarshalJSON writes the reminder with its next due time as a naive local
// timestamp. Times outside years 0000-9999 cannot be read back and are refused.
func (r Reminder) MarshalJSON() ([]byte, error) {
	if !Representable(r.NextDue) {
		return nil, fmt.Errorf("reminder %q: next_due %s is out of range", r.Name, r.NextDue)
	}
	return json.Marshal(struct {
		ID           string `json:"id,omitempty"`
		Name         string `json:"name"`
		IntervalDays int    `json:"interval_days"`
		NextDue      string `json:"next_due"`
	}{
		ID:           r.ID,
		Name:         r.Name,
		IntervalDays: r.IntervalDays,
		NextDue:      FormatTimestamp(r.NextDue),
	})
}

// UnmarshalJSON accepts both the current and the legacy document keys.
// interval_days may be an integer or integer text.
func (r *Reminder) UnmarshalJSON(data []byte) error {
	var doc reminderDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	name := doc.Name
	if name == "" {
		name = doc.Nombre
	}
	rawInterval := doc.IntervalDays
	if len(rawInterval) == 0 {
		rawInterval = doc.Dias
	}
	rawDue := doc.NextDue
	if rawDue == "" {
		rawDue = doc.ProximoAviso
	}

	interval, err := parseInterval(rawInterval)
	if err != nil {
		return fmt.Errorf("reminder %q: %w", name, err)
	}
	due, err := ParseTimestamp(rawDue)
	if err != nil {
		return fmt.Errorf("reminder %q: %w", name, err)
	}

	*r = Reminder{
		ID:           doc.ID,
		Name:         name,
		IntervalDays: interval,
		NextDue:      due,
	}
	return nil
}

func parseInterval(raw json.RawMessage) (int, error) {
	if len(raw) == 0 {
		return 0, fmt.Errorf("missing interval_days")
	}

	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, fmt.Errorf("invalid interval_days %s", raw)
		}
		if n, err = strconv.Atoi(strings.TrimSpace(s)); err != nil {
			return 0, fmt.Errorf("invalid interval_days %q", s)
		}
	}
	if !ValidInterval(n) {
		return 0, fmt.Errorf("interval_days %d out of range 1-%d", n, MaxIntervalDays)
	}
	return n, nil
}

// ValidInterval reports whether days is an accepted reminder interval
func ValidInterval(days int) bool {
	return days > 0 && days <= MaxIntervalDays
}

// Representable reports whether t can be written and parsed back as a
// naive local timestamp.
func Representable(t time.Time) bool {
	y := t.In(time.Local).Year()
	return y >= 0 && y <= 9999
}

// FormatTimestamp renders t as a naive local ISO-8601 timestamp
func FormatTimestamp(t time.Time) string {
	return t.In(time.Local).Format(TimestampLayout)
}

// ParseTimestamp parses a naive local ISO-8601 timestamp. Timestamps carrying
// an explicit offset (RFC 3339) are accepted and converted to local time.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("missing next_due")
	}
	if t, err := time.ParseInLocation("2006-01-02T15:04:05", s, time.Local); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.In(time.Local), nil
	}
	return time.Time{}, fmt.Errorf("invalid next_due %q", s)
}

// ReminderBook maps a chat identifier to its reminders in insertion order
type ReminderBook map[string][]*Reminder

// ChatIDs returns the chat identifiers in sorted order
func (b ReminderBook) ChatIDs() []string {
	ids := make([]string, 0, len(b))
	for id := range b {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// FindByName returns the first reminder in the chat with the given name
func (b ReminderBook) FindByName(chatID, name string) *Reminder {
	for _, r := range b[chatID] {
		if r.Name == name {
			return r
		}
	}
	return nil
}

// FindByID returns the reminder in the chat with the given identifier
func (b ReminderBook) FindByID(chatID, id string) *Reminder {
	if id == "" {
		return nil
	}
	for _, r := range b[chatID] {
		if r.ID == id {
			return r
		}
	}
	return nil
}

// Append adds a reminder to the end of the chat's sequence
func (b ReminderBook) Append(chatID string, r *Reminder) {
	b[chatID] = append(b[chatID], r)
}

// RemoveAt removes and returns the reminder at index. ok is false when the
// index is out of range. Chats left without reminders are dropped.
func (b ReminderBook) RemoveAt(chatID string, index int) (removed *Reminder, ok bool) {
	list := b[chatID]
	if index < 0 || index >= len(list) {
		return nil, false
	}
	removed = list[index]
	list = append(list[:index:index], list[index+1:]...)
	if len(list) == 0 {
		delete(b, chatID)
	} else {
		b[chatID] = list
	}
	return removed, true
}
