package keyboard

import (
	telebot "gopkg.in/telebot.v3"
)

// InlineButton represents a lightweight inline keyboard button definition used by the builder.
type InlineButton struct {
	Text   string
	Unique string // Identifier that differentiates callback handlers.
	Data   string // Payload that will be encoded into callback data.
}

// Callback returns the callback data the button carries.
func (b InlineButton) Callback() string {
	data, err := EncodeCallback(b.Unique, b.Data)
	if err != nil {
		return b.Unique
	}
	return data
}

// Button is a shorthand for an InlineButton with a single callback action.
func Button(text, unique string, data ...string) InlineButton {
	btn := InlineButton{Text: text, Unique: unique}
	if len(data) > 0 {
		btn.Data = joinData(data)
	}
	return btn
}

// InlineKeyboardBuilder accumulates rows of InlineButton definitions before rendering telebot markup.
type InlineKeyboardBuilder struct {
	markup *telebot.ReplyMarkup
	rows   [][]InlineButton
}

// NewInlineKeyboard creates a builder instance backed by inline reply markup.
func NewInlineKeyboard() *InlineKeyboardBuilder {
	return &InlineKeyboardBuilder{
		markup: &telebot.ReplyMarkup{InlineKeyboard: make([][]telebot.InlineButton, 0)},
		rows:   make([][]InlineButton, 0),
	}
}

// AddRow appends a new row made of custom InlineButton definitions.
func (b *InlineKeyboardBuilder) AddRow(buttons ...InlineButton) *InlineKeyboardBuilder {
	if len(buttons) == 0 {
		return b
	}

	row := make([]InlineButton, len(buttons))
	copy(row, buttons)
	b.rows = append(b.rows, row)
	return b
}

// AddGrid lays buttons out in rows of at most perRow buttons.
func (b *InlineKeyboardBuilder) AddGrid(perRow int, buttons ...InlineButton) *InlineKeyboardBuilder {
	if perRow < 1 {
		perRow = 1
	}
	for start := 0; start < len(buttons); start += perRow {
		end := start + perRow
		if end > len(buttons) {
			end = len(buttons)
		}
		b.AddRow(buttons[start:end]...)
	}
	return b
}

// Markup returns the accumulated rows as a transport-neutral Markup.
func (b *InlineKeyboardBuilder) Markup() *Markup {
	return Inline(b.rows...)
}

// Build finalizes inline markup. The encoder turns unique and data into callback data;
// nil uses EncodeCallback.
func (b *InlineKeyboardBuilder) Build(encoder func(unique, data string) string) *telebot.ReplyMarkup {
	if encoder == nil {
		encoder = func(unique, data string) string {
			return InlineButton{Unique: unique, Data: data}.Callback()
		}
	}

	if b.markup == nil {
		b.markup = &telebot.ReplyMarkup{}
	}

	inlineKeyboard := make([][]telebot.InlineButton, len(b.rows))
	for i, row := range b.rows {
		inlineKeyboard[i] = make([]telebot.InlineButton, len(row))
		for j, btn := range row {
			// Unique stays empty so telebot sends Data verbatim.
			inlineKeyboard[i][j] = telebot.InlineButton{
				Text: btn.Text,
				Data: encoder(btn.Unique, btn.Data),
			}
		}
	}

	b.markup.InlineKeyboard = inlineKeyboard
	return b.markup
}
