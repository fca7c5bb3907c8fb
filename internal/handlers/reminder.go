package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/remindbot/internal/models"
	"github.com/Kerhoff/remindbot/internal/service"
	"github.com/Kerhoff/remindbot/internal/telegram"
)

const (
	createUsage = "Usage: /create <days> <name>\nExample: /create 30 Pay rent"
	dueFormat   = "Mon, 02 Jan 2006 15:04"
)

// CreateHandler handles the /create command
type CreateHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

func NewCreateHandler(svc *service.Service, logger *logrus.Logger) *CreateHandler {
	return &CreateHandler{svc: svc, logger: logger}
}

func (h *CreateHandler) Handle(bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	if len(args) < 2 {
		bot.Send(tgbotapi.NewMessage(message.Chat.ID, createUsage))
		return nil
	}

	ctx := context.Background()
	created, err := h.svc.Create(ctx, telegram.ChatKey(message.Chat.ID), args[0], strings.Join(args[1:], " "))
	if errors.Is(err, service.ErrUsage) {
		text := fmt.Sprintf("❌ The interval must be a positive number of days, at most %d.\n%s", models.MaxIntervalDays, createUsage)
		bot.Send(tgbotapi.NewMessage(message.Chat.ID, text))
		return nil
	}
	if err != nil {
		return fmt.Errorf("create reminder: %w", err)
	}

	text := fmt.Sprintf("✅ Reminder '%s' created, repeats every %s.\n📆 Next: %s",
		created.Name, pluralDays(created.IntervalDays), created.NextDue.Format(dueFormat))
	bot.Send(tgbotapi.NewMessage(message.Chat.ID, text))
	return nil
}

// DeleteHandler handles the /delete command by offering a selection keyboard
type DeleteHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

func NewDeleteHandler(svc *service.Service, logger *logrus.Logger) *DeleteHandler {
	return &DeleteHandler{svc: svc, logger: logger}
}

func (h *DeleteHandler) Handle(bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	entries, err := h.svc.ListForDeletion(context.Background(), telegram.ChatKey(message.Chat.ID))
	if errors.Is(err, service.ErrNoReminders) {
		bot.Send(tgbotapi.NewMessage(message.Chat.ID, "🗑 No reminders to delete."))
		return nil
	}
	if err != nil {
		return fmt.Errorf("list reminders for deletion: %w", err)
	}

	msg := tgbotapi.NewMessage(message.Chat.ID, "Select the reminder to delete:")
	msg.ReplyMarkup = deleteKeyboard(entries)
	bot.Send(msg)
	return nil
}

func deleteKeyboard(entries []service.IndexedReminder) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(entries))
	for _, e := range entries {
		data := telegram.DeleteCallback(e.Index, e.ID).Data()
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(e.Name, data)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// ListHandler handles the /reminders command
type ListHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

func NewListHandler(svc *service.Service, logger *logrus.Logger) *ListHandler {
	return &ListHandler{svc: svc, logger: logger}
}

func (h *ListHandler) Handle(bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	reminders, err := h.svc.List(context.Background(), telegram.ChatKey(message.Chat.ID))
	if err != nil {
		return fmt.Errorf("list reminders: %w", err)
	}

	if len(reminders) == 0 {
		bot.Send(tgbotapi.NewMessage(message.Chat.ID, "⏰ No reminders yet. Create one with /create <days> <name>"))
		return nil
	}

	var sb strings.Builder
	sb.WriteString("⏰ Your reminders:\n\n")
	for i, r := range reminders {
		sb.WriteString(fmt.Sprintf("%d. %s\n   🔄 every %s, 📆 next %s\n",
			i+1, r.Name, pluralDays(r.IntervalDays), r.NextDue.Format(dueFormat)))
	}

	bot.Send(tgbotapi.NewMessage(message.Chat.ID, sb.String()))
	return nil
}

// ReminderCallbackHandler handles the delete, done and postpone buttons
type ReminderCallbackHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

func NewReminderCallbackHandler(svc *service.Service, logger *logrus.Logger) *ReminderCallbackHandler {
	return &ReminderCallbackHandler{svc: svc, logger: logger}
}

func (h *ReminderCallbackHandler) HandleCallback(bot telegram.Sender, query *tgbotapi.CallbackQuery, cb telegram.Callback) error {
	if query.Message == nil {
		h.logger.WithField("callback_id", query.ID).Warn("Callback without message, ignoring")
		return nil
	}

	switch cb.Action {
	case telegram.ActionDelete:
		return h.handleDelete(bot, query.Message, cb)
	case telegram.ActionDone, telegram.ActionPostpone:
		return h.handleReschedule(bot, query.Message, cb)
	default:
		return fmt.Errorf("unsupported callback action %q", cb.Action)
	}
}

func (h *ReminderCallbackHandler) handleDelete(bot telegram.Sender, message *tgbotapi.Message, cb telegram.Callback) error {
	ctx := context.Background()
	chatID := telegram.ChatKey(message.Chat.ID)

	deleted, err := h.svc.DeleteAtExpecting(ctx, chatID, cb.Index, cb.ReminderID)
	if errors.Is(err, service.ErrInvalidIndex) {
		return h.rerenderDeleteList(ctx, bot, message)
	}
	if err != nil {
		return fmt.Errorf("delete reminder: %w", err)
	}

	edit := tgbotapi.NewEditMessageText(message.Chat.ID, message.MessageID,
		fmt.Sprintf("🗑 Reminder '%s' deleted.", deleted.Name))
	bot.Send(edit)
	return nil
}

// rerenderDeleteList replaces a stale selection with the current reminders
func (h *ReminderCallbackHandler) rerenderDeleteList(ctx context.Context, bot telegram.Sender, message *tgbotapi.Message) error {
	entries, err := h.svc.ListForDeletion(ctx, telegram.ChatKey(message.Chat.ID))
	if errors.Is(err, service.ErrNoReminders) {
		bot.Send(tgbotapi.NewEditMessageText(message.Chat.ID, message.MessageID, "🗑 No reminders to delete."))
		return nil
	}
	if err != nil {
		return fmt.Errorf("list reminders for deletion: %w", err)
	}

	edit := tgbotapi.NewEditMessageTextAndMarkup(message.Chat.ID, message.MessageID,
		"⚠️ The reminder list changed. Select the reminder to delete:", deleteKeyboard(entries))
	bot.Send(edit)
	return nil
}

func (h *ReminderCallbackHandler) handleReschedule(bot telegram.Sender, message *tgbotapi.Message, cb telegram.Callback) error {
	ctx := context.Background()
	chatID := telegram.ChatKey(message.Chat.ID)
	if cb.ChatID != "" {
		chatID = cb.ChatID
	}

	var (
		r   models.Reminder
		err error
	)
	switch {
	case cb.Action == telegram.ActionDone && cb.ReminderID != "":
		r, err = h.svc.MarkDoneByID(ctx, chatID, cb.ReminderID)
	case cb.Action == telegram.ActionDone:
		r, err = h.svc.MarkDone(ctx, chatID, cb.Name)
	case cb.ReminderID != "":
		r, err = h.svc.PostponeByID(ctx, chatID, cb.ReminderID)
	default:
		r, err = h.svc.Postpone(ctx, chatID, cb.Name)
	}

	if errors.Is(err, service.ErrNotFound) {
		bot.Send(tgbotapi.NewEditMessageText(message.Chat.ID, message.MessageID, "❓ This reminder no longer exists."))
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s reminder: %w", cb.Action, err)
	}

	var text string
	if cb.Action == telegram.ActionDone {
		text = fmt.Sprintf("✅ Reminder '%s' marked as done. Next reminder in %s.", r.Name, pluralDays(r.IntervalDays))
	} else {
		text = fmt.Sprintf("⏸ Reminder '%s' postponed %s.", r.Name, formatDelay(h.svc.PostponeDelay()))
	}
	bot.Send(tgbotapi.NewEditMessageText(message.Chat.ID, message.MessageID, text))
	return nil
}

func pluralDays(n int) string {
	if n == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", n)
}

func formatDelay(d time.Duration) string {
	switch {
	case d > 0 && d%(24*time.Hour) == 0:
		return pluralDays(int(d / (24 * time.Hour)))
	case d == time.Hour:
		return "1 hour"
	case d > 0 && d%time.Hour == 0:
		return fmt.Sprintf("%d hours", int(d/time.Hour))
	default:
		return d.String()
	}
}
