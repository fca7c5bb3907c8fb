package telegram

import (
	"errors"
	"io"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

type fakeSender struct {
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

type commandFunc func(bot Sender, message *tgbotapi.Message, args []string) error

func (f commandFunc) Handle(bot Sender, message *tgbotapi.Message, args []string) error {
	return f(bot, message, args)
}

type callbackFunc func(bot Sender, query *tgbotapi.CallbackQuery, cb Callback) error

func (f callbackFunc) HandleCallback(bot Sender, query *tgbotapi.CallbackQuery, cb Callback) error {
	return f(bot, query, cb)
}

func newTestRouter() *Router {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return NewRouter(l)
}

func commandMessage(text string, commandLen int) *tgbotapi.Message {
	return &tgbotapi.Message{
		MessageID: 7,
		Text:      text,
		Chat:      &tgbotapi.Chat{ID: 99},
		From:      &tgbotapi.User{ID: 5, UserName: "ana"},
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: commandLen}},
	}
}

func TestRouterDispatchesCommandWithArgs(t *testing.T) {
	r := newTestRouter()
	var gotArgs []string
	r.RegisterCommand("create", commandFunc(func(bot Sender, m *tgbotapi.Message, args []string) error {
		gotArgs = args
		return nil
	}))

	sender := &fakeSender{}
	r.HandleMessage(sender, commandMessage("/create 3 Pay rent", len("/create")))

	if len(gotArgs) != 3 || gotArgs[0] != "3" || gotArgs[2] != "rent" {
		t.Errorf("unexpected args %v", gotArgs)
	}
	if len(sender.sent) != 0 {
		t.Errorf("expected no router replies, got %d", len(sender.sent))
	}
}

func TestRouterUnknownCommandAndFailure(t *testing.T) {
	r := newTestRouter()
	r.RegisterCommand("broken", commandFunc(func(bot Sender, m *tgbotapi.Message, args []string) error {
		return errors.New("disk full")
	}))

	sender := &fakeSender{}
	r.HandleMessage(sender, commandMessage("/nope", len("/nope")))
	r.HandleMessage(sender, commandMessage("/broken", len("/broken")))
	r.HandleMessage(sender, &tgbotapi.Message{Text: "just chatting", Chat: &tgbotapi.Chat{ID: 99}})

	if len(sender.sent) != 2 {
		t.Fatalf("expected an unknown-command reply and an error reply, got %d", len(sender.sent))
	}
}

func TestRouterDecodesCallbacks(t *testing.T) {
	r := newTestRouter()
	var got Callback
	r.RegisterCallback(ActionDone, callbackFunc(func(bot Sender, q *tgbotapi.CallbackQuery, cb Callback) error {
		got = cb
		return nil
	}))

	sender := &fakeSender{}
	query := &tgbotapi.CallbackQuery{
		ID:      "cb1",
		From:    &tgbotapi.User{ID: 5},
		Message: &tgbotapi.Message{MessageID: 3, Chat: &tgbotapi.Chat{ID: 99}},
		Data:    DoneCallback("abc").Data(),
	}
	r.HandleCallbackQuery(sender, query)

	if got.Action != ActionDone || got.ReminderID != "abc" {
		t.Errorf("unexpected callback %+v", got)
	}
	if len(sender.requests) != 1 {
		t.Errorf("expected the callback to be answered, got %d requests", len(sender.requests))
	}

	query.Data = "garbage"
	r.HandleCallbackQuery(sender, query)
	if len(sender.sent) != 0 {
		t.Errorf("expected malformed callbacks to be ignored, got %d sends", len(sender.sent))
	}
}
