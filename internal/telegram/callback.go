package telegram

import (
	"fmt"
	"strconv"
	"strings"
)

// Action identifies what an inline keyboard button does
type Action string

const (
	ActionDelete   Action = "delete"
	ActionDone     Action = "done"
	ActionPostpone Action = "postpone"
)

// Callback is the decoded payload of an inline keyboard button.
//
// Buttons rendered by this bot carry ReminderID. Buttons on messages sent by
// the first version of the bot carry ChatID and Name instead.
type Callback struct {
	Action     Action
	Index      int
	ReminderID string
	ChatID     string
	Name       string
}

// DeleteCallback builds the payload of a delete selection button
func DeleteCallback(index int, reminderID string) Callback {
	return Callback{Action: ActionDelete, Index: index, ReminderID: reminderID}
}

// DoneCallback builds the payload of a "done" button
func DoneCallback(reminderID string) Callback {
	return Callback{Action: ActionDone, ReminderID: reminderID}
}

// PostponeCallback builds the payload of a "postpone" button
func PostponeCallback(reminderID string) Callback {
	return Callback{Action: ActionPostpone, ReminderID: reminderID}
}

// Data encodes the callback into button data (at most 64 bytes for UUID ids)
func (c Callback) Data() string {
	switch c.Action {
	case ActionDelete:
		return fmt.Sprintf("%s:%d:%s", c.Action, c.Index, c.ReminderID)
	default:
		return fmt.Sprintf("%s:%s", c.Action, c.ReminderID)
	}
}

// ParseCallback decodes button data produced by Data, or by the legacy
// "borrar_<i>", "pagado_<chat>_<name>" and "posponer_<chat>_<name>" formats.
func ParseCallback(data string) (Callback, error) {
	if action, rest, ok := strings.Cut(data, ":"); ok {
		return parseCallback(Action(action), rest)
	}
	return parseLegacyCallback(data)
}

func parseCallback(action Action, rest string) (Callback, error) {
	switch action {
	case ActionDelete:
		rawIndex, id, _ := strings.Cut(rest, ":")
		index, err := strconv.Atoi(rawIndex)
		if err != nil || index < 0 {
			return Callback{}, fmt.Errorf("invalid delete index %q", rawIndex)
		}
		return Callback{Action: action, Index: index, ReminderID: id}, nil
	case ActionDone, ActionPostpone:
		if rest == "" {
			return Callback{}, fmt.Errorf("missing reminder id for %s", action)
		}
		return Callback{Action: action, ReminderID: rest}, nil
	default:
		return Callback{}, fmt.Errorf("unknown callback action %q", action)
	}
}

func parseLegacyCallback(data string) (Callback, error) {
	if rawIndex, ok := strings.CutPrefix(data, "borrar_"); ok {
		index, err := strconv.Atoi(rawIndex)
		if err != nil || index < 0 {
			return Callback{}, fmt.Errorf("invalid delete index %q", rawIndex)
		}
		return Callback{Action: ActionDelete, Index: index}, nil
	}

	var action Action
	var rest string
	if r, ok := strings.CutPrefix(data, "pagado_"); ok {
		action, rest = ActionDone, r
	} else if r, ok := strings.CutPrefix(data, "posponer_"); ok {
		action, rest = ActionPostpone, r
	} else {
		return Callback{}, fmt.Errorf("unknown callback data %q", data)
	}

	chatID, name, ok := strings.Cut(rest, "_")
	if !ok || chatID == "" || name == "" {
		return Callback{}, fmt.Errorf("invalid callback data %q", data)
	}
	return Callback{Action: action, ChatID: chatID, Name: name}, nil
}
