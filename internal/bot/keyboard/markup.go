package keyboard

import (
	telebot "gopkg.in/telebot.v3"
)

// Kind selects how a Markup is rendered.
type Kind int

const (
	// KindNone leaves the current keyboard untouched.
	KindNone Kind = iota
	// KindRemove hides the reply keyboard.
	KindRemove
	KindInline
	KindReply
)

// Markup describes a keyboard without binding it to a transport.
type Markup struct {
	Kind   Kind
	Inline [][]InlineButton
	Reply  [][]string
}

// Inline builds an inline keyboard markup from rows.
func Inline(rows ...[]InlineButton) *Markup {
	out := make([][]InlineButton, 0, len(rows))
	for _, row := range rows {
		if len(row) > 0 {
			out = append(out, row)
		}
	}
	return &Markup{Kind: KindInline, Inline: out}
}

// ReplyKeyboard builds a persistent reply keyboard from rows of button labels.
func ReplyKeyboard(rows ...[]string) *Markup {
	return &Markup{Kind: KindReply, Reply: rows}
}

// Remove hides the reply keyboard.
func Remove() *Markup {
	return &Markup{Kind: KindRemove}
}

// Buttons returns every inline button, row by row.
func (m *Markup) Buttons() []InlineButton {
	if m == nil {
		return nil
	}
	var out []InlineButton
	for _, row := range m.Inline {
		out = append(out, row...)
	}
	return out
}

// Render converts m to telebot markup. A nil result means no markup is attached.
func Render(m *Markup) *telebot.ReplyMarkup {
	if m == nil {
		return nil
	}

	switch m.Kind {
	case KindRemove:
		return &telebot.ReplyMarkup{RemoveKeyboard: true}
	case KindInline:
		b := NewInlineKeyboard()
		for _, row := range m.Inline {
			b.AddRow(row...)
		}
		return b.Build(nil)
	case KindReply:
		markup := &telebot.ReplyMarkup{ResizeKeyboard: true}
		rows := make([]telebot.Row, 0, len(m.Reply))
		for _, labels := range m.Reply {
			btns := make([]telebot.Btn, 0, len(labels))
			for _, label := range labels {
				btns = append(btns, markup.Text(label))
			}
			rows = append(rows, markup.Row(btns...))
		}
		markup.Reply(rows...)
		return markup
	default:
		return nil
	}
}
