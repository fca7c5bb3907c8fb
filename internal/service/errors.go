package service

import "errors"

var (
	// ErrUsage marks malformed input such as a non-numeric interval or an empty name.
	ErrUsage = errors.New("invalid arguments")
	// ErrNotFound is returned when no reminder matches the given name or id.
	ErrNotFound = errors.New("reminder not found")
	// ErrInvalidIndex is returned when a positional delete no longer points at a reminder.
	ErrInvalidIndex = errors.New("invalid reminder index")
	// ErrNoReminders is returned when a chat has nothing to list for deletion.
	ErrNoReminders = errors.New("no reminders")
	// ErrReadOnly is returned by mutating operations on a ReadOnly service.
	ErrReadOnly = errors.New("reminders are read-only")
)

// IsUserError reports whether err is something to explain to the user rather than log.
func IsUserError(err error) bool {
	return errors.Is(err, ErrUsage) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidIndex) ||
		errors.Is(err, ErrNoReminders)
}
