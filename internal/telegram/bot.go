package telegram

import (
	"context"
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// DefaultPollTimeout is the long polling timeout in seconds.
const DefaultPollTimeout = 60

// Bot receives updates from Telegram and hands them to the router
type Bot struct {
	api    *tgbotapi.BotAPI
	sender Sender
	logger *logrus.Logger
	router *Router

	inflight sync.WaitGroup
}

// NewBot authorizes against the Bot API with token
func NewBot(token string, logger *logrus.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}

	logger.WithField("username", api.Self.UserName).Info("Authorized on Telegram")

	b := newBot(api, logger)
	b.api = api
	return b, nil
}

func newBot(sender Sender, logger *logrus.Logger) *Bot {
	return &Bot{
		sender: sender,
		logger: logger,
		router: NewRouter(logger),
	}
}

// Start drops any webhook and long-polls for updates until ctx is done.
// It returns once the handlers already running have finished.
func (b *Bot) Start(ctx context.Context) error {
	if _, err := b.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = DefaultPollTimeout
	updates := b.api.GetUpdatesChan(u)

	b.logger.WithField("timeout", u.Timeout).Info("Polling for updates")
	b.poll(ctx, updates)
	b.api.StopReceivingUpdates()
	return nil
}

// poll dispatches each update on its own goroutine until ctx is done or the
// channel closes.
func (b *Bot) poll(ctx context.Context, updates <-chan tgbotapi.Update) {
	defer b.inflight.Wait()

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Stopping update polling")
			return
		case update, ok := <-updates:
			if !ok {
				b.logger.Warn("Update channel closed")
				return
			}
			b.inflight.Add(1)
			go func() {
				defer b.inflight.Done()
				b.dispatch(update)
			}()
		}
	}
}

func (b *Bot) dispatch(update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.WithFields(logrus.Fields{
				"update_id": update.UpdateID,
				"panic":     r,
			}).Error("Update handler panicked")
		}
	}()

	switch {
	case update.Message != nil:
		b.router.HandleMessage(b.sender, update.Message)
	case update.CallbackQuery != nil:
		b.router.HandleCallbackQuery(b.sender, update.CallbackQuery)
	}
}

// RegisterCommand registers a command handler on the router
func (b *Bot) RegisterCommand(command string, handler CommandHandler) {
	b.router.RegisterCommand(command, handler)
}

// RegisterCallback registers an inline keyboard handler on the router
func (b *Bot) RegisterCallback(action Action, handler CallbackHandler) {
	b.router.RegisterCallback(action, handler)
}

// Send delivers a prepared message
func (b *Bot) Send(c tgbotapi.Chattable) error {
	if _, err := b.sender.Send(c); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}
