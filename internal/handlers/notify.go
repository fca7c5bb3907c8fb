package handlers

import (
	"context"
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Kerhoff/remindbot/internal/service"
	"github.com/Kerhoff/remindbot/internal/telegram"
)

// MessageSender delivers a prepared Telegram message
type MessageSender interface {
	Send(c tgbotapi.Chattable) error
}

// DueNotifier turns due reminders into Telegram messages with Done and
// Postpone buttons
type DueNotifier struct {
	sender        MessageSender
	postponeDelay time.Duration
}

func NewDueNotifier(sender MessageSender, postponeDelay time.Duration) *DueNotifier {
	return &DueNotifier{sender: sender, postponeDelay: postponeDelay}
}

// Notify is a service.ReminderCallback
func (n *DueNotifier) Notify(ctx context.Context, due service.DueReminder) error {
	msg, err := DueMessage(due, n.postponeDelay)
	if err != nil {
		return err
	}
	return n.sender.Send(msg)
}

// DueMessage builds the notification for a due reminder
func DueMessage(due service.DueReminder, postponeDelay time.Duration) (tgbotapi.MessageConfig, error) {
	chatID, err := strconv.ParseInt(due.ChatID, 10, 64)
	if err != nil {
		return tgbotapi.MessageConfig{}, fmt.Errorf("invalid chat id %q: %w", due.ChatID, err)
	}

	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("⏰ Reminder: %s!", due.Reminder.Name))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Done", telegram.DoneCallback(due.Reminder.ID).Data()),
			tgbotapi.NewInlineKeyboardButtonData("⏸ Postpone "+formatDelay(postponeDelay), telegram.PostponeCallback(due.Reminder.ID).Data()),
		),
	)
	return msg, nil
}
