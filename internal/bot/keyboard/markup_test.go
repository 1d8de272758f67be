package keyboard_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/stockroom-bot/internal/bot/keyboard"
	"github.com/Proton-105/stockroom-bot/internal/domain"
)

func TestRender(t *testing.T) {
	t.Run("nil markup", func(t *testing.T) {
		assert.Nil(t, keyboard.Render(nil))
		assert.Nil(t, keyboard.Render(&keyboard.Markup{Kind: keyboard.KindNone}))
	})

	t.Run("remove", func(t *testing.T) {
		markup := keyboard.Render(keyboard.Remove())
		require.NotNil(t, markup)
		assert.True(t, markup.RemoveKeyboard)
	})

	t.Run("inline rows keep callback data", func(t *testing.T) {
		m := keyboard.NewInlineKeyboard().
			AddRow(keyboard.Button("Done", keyboard.ActionOrder, "done"), keyboard.Button("Cancel", keyboard.ActionOrder, "cancel")).
			AddRow(keyboard.Button("Масло", keyboard.ActionOrder, "item", "5")).
			Markup()

		markup := keyboard.Render(m)
		require.Len(t, markup.InlineKeyboard, 2)
		assert.Equal(t, "order:done", markup.InlineKeyboard[0][0].Data)
		assert.Equal(t, "order:item:5", markup.InlineKeyboard[1][0].Data)
		assert.Empty(t, markup.InlineKeyboard[1][0].Unique)
	})

	t.Run("empty rows are dropped", func(t *testing.T) {
		m := keyboard.Inline(nil, []keyboard.InlineButton{keyboard.Button("x", "y")})
		assert.Len(t, m.Inline, 1)
	})
}

func TestMainMenu(t *testing.T) {
	translator := &mockTranslator{translations: map[string]string{
		keyboard.MenuFeedback:  "⚠️ Сообщить о проблеме",
		keyboard.MenuQuestion:  "❓ Задать вопрос",
		keyboard.MenuInventory: "📦 Отправить остатки",
		keyboard.MenuOrder:     "📦 Заказ материалов",
		keyboard.MenuContacts:  "📞 Контакты отделов",
		keyboard.MenuSettings:  "⚙️ Настройки",
	}}

	m := keyboard.MainMenu(translator)
	require.Equal(t, keyboard.KindReply, m.Kind)
	assert.Equal(t, [][]string{
		{"⚠️ Сообщить о проблеме", "❓ Задать вопрос"},
		{"📦 Отправить остатки", "📦 Заказ материалов"},
		{"📞 Контакты отделов"},
		{"⚙️ Настройки"},
	}, m.Reply)

	markup := keyboard.Render(m)
	require.Len(t, markup.ReplyKeyboard, 4)
	assert.True(t, markup.ResizeKeyboard)
	assert.Equal(t, "⚙️ Настройки", markup.ReplyKeyboard[3][0].Text)
}

func TestBranchPicker(t *testing.T) {
	m := keyboard.BranchPicker([]domain.Branch{{ID: 1, Name: "A"}, {ID: 2, Name: "B"}, {ID: 3, Name: "C"}})
	require.Len(t, m.Inline, 2)
	assert.Len(t, m.Inline[0], 2)
	assert.Equal(t, "branch:3", m.Inline[1][0].Callback())
}

func TestInlineButton_CallbackOverflowFallsBack(t *testing.T) {
	btn := keyboard.InlineButton{Unique: "admin", Data: strings.Repeat("x", keyboard.CallbackDataLimitBytes)}
	assert.Equal(t, "admin", btn.Callback())
}
