package telegram

import (
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// Sender is the subset of *tgbotapi.BotAPI the handlers need
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Router handles message routing and command parsing
type Router struct {
	logger    *logrus.Logger
	handlers  map[string]CommandHandler
	callbacks map[Action]CallbackHandler
}

// CommandHandler defines the interface for command handlers
type CommandHandler interface {
	Handle(bot Sender, message *tgbotapi.Message, args []string) error
}

// CallbackHandler defines the interface for inline keyboard handlers.
// The payload is decoded once by the router.
type CallbackHandler interface {
	HandleCallback(bot Sender, query *tgbotapi.CallbackQuery, cb Callback) error
}

// NewRouter creates a new message router
func NewRouter(logger *logrus.Logger) *Router {
	return &Router{
		logger:    logger,
		handlers:  make(map[string]CommandHandler),
		callbacks: make(map[Action]CallbackHandler),
	}
}

// RegisterCommand registers a command handler
func (r *Router) RegisterCommand(command string, handler CommandHandler) {
	r.handlers[command] = handler
	r.logger.Debugf("Registered command: %s", command)
}

// RegisterCallback registers the handler for an inline keyboard action
func (r *Router) RegisterCallback(action Action, handler CallbackHandler) {
	r.callbacks[action] = handler
	r.logger.Debugf("Registered callback action: %s", action)
}

// HandleMessage handles incoming messages
func (r *Router) HandleMessage(bot Sender, message *tgbotapi.Message) {
	fields := logrus.Fields{
		"chat_id":    message.Chat.ID,
		"message_id": message.MessageID,
		"text":       message.Text,
	}
	if message.From != nil {
		fields["user_id"] = message.From.ID
		fields["username"] = message.From.UserName
	}
	r.logger.WithFields(fields).Info("Received message")

	// Only process text commands
	if message.Text == "" || !message.IsCommand() {
		return
	}

	command := message.Command()
	args := strings.Fields(message.CommandArguments())

	handler, exists := r.handlers[command]
	if !exists {
		r.logger.WithFields(logrus.Fields{
			"command": command,
			"chat_id": message.Chat.ID,
		}).Warn("Unknown command")

		unknownMsg := tgbotapi.NewMessage(message.Chat.ID, "❓ Unknown command. Use /help to see available commands.")
		bot.Send(unknownMsg)
		return
	}

	if err := handler.Handle(bot, message, args); err != nil {
		r.logger.WithFields(logrus.Fields{
			"command": command,
			"chat_id": message.Chat.ID,
			"error":   err,
		}).Error("Command handler failed")

		errorMsg := tgbotapi.NewMessage(message.Chat.ID, "❌ An error occurred while processing your command. Please try again.")
		bot.Send(errorMsg)
	}
}

// HandleCallbackQuery decodes the button payload and dispatches it by action
func (r *Router) HandleCallbackQuery(bot Sender, callbackQuery *tgbotapi.CallbackQuery) {
	r.logger.WithFields(logrus.Fields{
		"callback_id": callbackQuery.ID,
		"user_id":     callbackQuery.From.ID,
		"data":        callbackQuery.Data,
	}).Info("Received callback query")

	// Answer the callback query to remove loading state
	bot.Request(tgbotapi.NewCallback(callbackQuery.ID, ""))

	cb, err := ParseCallback(callbackQuery.Data)
	if err != nil {
		r.logger.WithError(err).Warn("Ignoring malformed callback data")
		return
	}

	handler, exists := r.callbacks[cb.Action]
	if !exists {
		r.logger.WithField("action", cb.Action).Warn("No handler for callback action")
		return
	}

	if err := handler.HandleCallback(bot, callbackQuery, cb); err != nil {
		r.logger.WithFields(logrus.Fields{
			"action": cb.Action,
			"error":  err,
		}).Error("Callback handler failed")

		if msg := callbackQuery.Message; msg != nil {
			bot.Send(tgbotapi.NewMessage(msg.Chat.ID, "❌ Something went wrong, please try again."))
		}
	}
}

// ChatKey converts a Telegram chat id into the reminder book key
func ChatKey(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}
