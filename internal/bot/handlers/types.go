package handlers

import (
	"context"
	"strings"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/stockroom-bot/internal/conversation"
	"github.com/Proton-105/stockroom-bot/internal/notify"
)

// Handler processes one update.
type Handler func(ctx context.Context, u *Update) error

// Middleware wraps handlers with additional behavior.
type Middleware func(Handler) Handler

// Answer is the popup or toast shown for a button press.
type Answer struct {
	Text  string
	Alert bool
}

// Update is an inbound message or button press detached from the transport.
type Update struct {
	ID        int
	UserID    int64
	ChatID    int64
	Private   bool
	FirstName string
	LastName  string
	Username  string
	LangCode  string

	Text      string
	Caption   string
	HasMedia  bool
	MessageID int

	CallbackID   string
	CallbackData string

	// Route names the handler that took the update, for logs and metrics.
	Route string

	answer *Answer
}

// FromContext converts a telebot update. It returns nil for updates without a sender or chat.
func FromContext(c telebot.Context) *Update {
	if c == nil || c.Sender() == nil || c.Chat() == nil {
		return nil
	}

	sender := c.Sender()
	u := &Update{
		ID:        c.Update().ID,
		UserID:    sender.ID,
		ChatID:    c.Chat().ID,
		Private:   c.Chat().Type == telebot.ChatPrivate,
		FirstName: sender.FirstName,
		LastName:  sender.LastName,
		Username:  sender.Username,
		LangCode:  sender.LanguageCode,
	}

	if cb := c.Callback(); cb != nil {
		u.CallbackID = cb.ID
		u.CallbackData = cb.Data
		if cb.Message != nil {
			u.MessageID = cb.Message.ID
		}
		return u
	}

	if msg := c.Message(); msg != nil {
		u.MessageID = msg.ID
		u.Text = msg.Text
		u.Caption = msg.Caption
		u.HasMedia = msg.Media() != nil
	}
	return u
}

// IsCallback reports whether the update is a button press.
func (u *Update) IsCallback() bool { return u.CallbackID != "" || u.CallbackData != "" }

// Command splits "/name@bot args" into "/name" and "args". It returns empty strings for plain text.
func (u *Update) Command() (name, args string) {
	text := strings.TrimSpace(u.Text)
	if u.IsCallback() || !strings.HasPrefix(text, "/") {
		return "", ""
	}

	name, args, _ = strings.Cut(text, " ")
	if at := strings.IndexByte(name, '@'); at > 0 {
		name = name[:at]
	}
	return strings.ToLower(name), strings.TrimSpace(args)
}

// TelegramUser rebuilds the sender for the user registry.
func (u *Update) TelegramUser() *telebot.User {
	return &telebot.User{
		ID:           u.UserID,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Username:     u.Username,
		LanguageCode: u.LangCode,
	}
}

// DisplayName is the sender's name as shown to staff.
func (u *Update) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name != "" {
		return name
	}
	if u.Username != "" {
		return "@" + u.Username
	}
	return "—"
}

func (u *Update) Actor() conversation.Actor {
	return conversation.Actor{UserID: u.UserID, ChatID: u.ChatID, DisplayName: u.DisplayName()}
}

func (u *Update) Input() conversation.Input {
	return conversation.Input{
		Text:     u.Text,
		Caption:  u.Caption,
		HasMedia: u.HasMedia,
		Choice:   u.CallbackData,
		Message:  notify.MessageRef{ChatID: u.ChatID, MessageID: u.MessageID},
	}
}

// Answer sets the response to a button press. The last call wins.
func (u *Update) Answer(text string, alert bool) {
	u.answer = &Answer{Text: text, Alert: alert}
}

// Answered returns the response set by Answer.
func (u *Update) Answered() (Answer, bool) {
	if u.answer == nil {
		return Answer{}, false
	}
	return *u.answer, true
}
