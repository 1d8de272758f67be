// Package notifytest provides an in-memory notify.Sender for tests.
package notifytest

import (
	"context"
	"errors"
	"sync"

	"github.com/Proton-105/stockroom-bot/internal/bot/keyboard"
	"github.com/Proton-105/stockroom-bot/internal/notify"
)

// ErrUnreachable is returned for chats registered with Fail.
var ErrUnreachable = errors.New("recipient unreachable")

// Message is one recorded delivery.
type Message struct {
	ChatID   int64
	Text     string
	Markup   *keyboard.Markup
	CopyOf   *notify.MessageRef
	Document string
	Data     []byte
}

// Recorder records deliveries and can be told to fail for chosen chats.
type Recorder struct {
	mu      sync.Mutex
	nextID  int
	fail    map[int64]struct{}
	Records []Message
}

func New() *Recorder {
	return &Recorder{fail: map[int64]struct{}{}}
}

// Fail makes every delivery to chatIDs fail.
func (r *Recorder) Fail(chatIDs ...int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range chatIDs {
		r.fail[id] = struct{}{}
	}
}

func (r *Recorder) record(m Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.fail[m.ChatID]; ok {
		return ErrUnreachable
	}
	r.nextID++
	r.Records = append(r.Records, m)
	return nil
}

func (r *Recorder) Send(_ context.Context, chatID int64, text string, markup *keyboard.Markup) (notify.MessageRef, error) {
	if err := r.record(Message{ChatID: chatID, Text: text, Markup: markup}); err != nil {
		return notify.MessageRef{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return notify.MessageRef{ChatID: chatID, MessageID: r.nextID}, nil
}

func (r *Recorder) Copy(_ context.Context, from notify.MessageRef, chatID int64, markup *keyboard.Markup) error {
	ref := from
	return r.record(Message{ChatID: chatID, CopyOf: &ref, Markup: markup})
}

func (r *Recorder) SendDocument(_ context.Context, chatID int64, name string, data []byte, caption string) error {
	return r.record(Message{ChatID: chatID, Text: caption, Document: name, Data: data})
}

// To returns the deliveries made to chatID.
func (r *Recorder) To(chatID int64) []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Message
	for _, m := range r.Records {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	return out
}

// Count returns the number of recorded deliveries.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Records)
}

// Reset forgets recorded deliveries.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Records = nil
}

var _ notify.Sender = (*Recorder)(nil)
