package keyboard_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/stockroom-bot/internal/bot/keyboard"
)

type mockTranslator struct {
	translations map[string]string
	lang         string
}

func (m *mockTranslator) T(key string) string {
	if val, ok := m.translations[key]; ok {
		return val
	}
	return key
}

func (m *mockTranslator) Format(key string, vars map[string]string) string {
	text := m.T(key)
	for name, value := range vars {
		text = strings.ReplaceAll(text, "{{."+name+"}}", value)
	}
	return text
}

func (m *mockTranslator) Lang() string {
	if m.lang == "" {
		return "ru"
	}
	return m.lang
}

func TestNewPage(t *testing.T) {
	tests := []struct {
		name         string
		number       int
		items        int
		wantNumber   int
		wantTotal    int
		wantOffset   int
		wantPrevNext [2]bool
	}{
		{name: "empty list", number: 1, items: 0, wantNumber: 1, wantTotal: 1},
		{name: "exact fit", number: 1, items: 5, wantNumber: 1, wantTotal: 1},
		{name: "second of two", number: 2, items: 6, wantNumber: 2, wantTotal: 2, wantOffset: 5, wantPrevNext: [2]bool{true, false}},
		{name: "beyond last is clamped", number: 9, items: 12, wantNumber: 3, wantTotal: 3, wantOffset: 10, wantPrevNext: [2]bool{true, false}},
		{name: "zero is clamped", number: 0, items: 12, wantNumber: 1, wantTotal: 3, wantPrevNext: [2]bool{false, true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := keyboard.NewPage(tt.number, tt.items, 5)
			assert.Equal(t, tt.wantNumber, p.Number)
			assert.Equal(t, tt.wantTotal, p.Total)
			assert.Equal(t, tt.wantOffset, p.Offset())
			assert.Equal(t, tt.wantPrevNext, [2]bool{p.HasPrev(), p.HasNext()})
		})
	}
}

func TestPage_Buttons(t *testing.T) {
	translator := &mockTranslator{
		translations: map[string]string{
			"pagination.prev": "◀️ Назад",
			"pagination.next": "Далее ▶️",
			"pagination.page": "Стр. {{.Page}}/{{.Total}}",
		},
	}

	tests := []struct {
		name      string
		page      int
		wantTexts []string
		wantData  []string
	}{
		{name: "first page", page: 1, wantTexts: []string{"Стр. 1/5", "Далее ▶️"}, wantData: []string{"1", "2"}},
		{name: "middle page", page: 3, wantTexts: []string{"◀️ Назад", "Стр. 3/5", "Далее ▶️"}, wantData: []string{"2", "3", "4"}},
		{name: "last page", page: 5, wantTexts: []string{"◀️ Назад", "Стр. 5/5"}, wantData: []string{"4", "5"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buttons := keyboard.NewPage(tt.page, 25, 5).Buttons(translator, "admin:tickets")
			require.Len(t, buttons, len(tt.wantTexts))

			for i := range tt.wantTexts {
				assert.Equal(t, tt.wantTexts[i], buttons[i].Text)
				assert.Equal(t, "admin:tickets", buttons[i].Unique)
				assert.Equal(t, tt.wantData[i], buttons[i].Data)
			}
		})
	}
}

func TestPage_ButtonsFallbacks(t *testing.T) {
	assert.Empty(t, keyboard.NewPage(1, 3, 5).Buttons(nil, "admin:tickets"))

	buttons := keyboard.NewPage(9, 10, 5).Buttons(nil, "admin:tickets")
	require.Len(t, buttons, 2)
	assert.Equal(t, "◀️", buttons[0].Text)
	assert.Equal(t, "2/2", buttons[1].Text)
	assert.Equal(t, "admin:tickets:2", buttons[1].Callback())
}
