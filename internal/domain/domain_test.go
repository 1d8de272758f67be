package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifySector(t *testing.T) {
	testCases := []struct {
		name string
		text string
		want Sector
	}{
		{name: "oil button", text: "🛢 OIL (Масла)", want: SectorOil},
		{name: "ap button", text: "🔧 AP (Запчасти)", want: SectorAP},
		{name: "both", text: "🏢 Весь склад (OIL + AP)", want: SectorFull},
		{name: "lower case oil", text: "oil", want: SectorOil},
		{name: "neither", text: "что-то другое", want: SectorFull},
		{name: "empty", text: "", want: SectorFull},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifySector(tc.text))
		})
	}
}

func TestParseLanguage(t *testing.T) {
	lang, ok := ParseLanguage(" KZ ")
	assert.True(t, ok)
	assert.Equal(t, LanguageKZ, lang)

	_, ok = ParseLanguage("en")
	assert.False(t, ok)
}

func TestTicketBodyAndPreview(t *testing.T) {
	ticket := &Ticket{Message: OrderSentinel + "\nФильтр: 2"}
	assert.Equal(t, "Фильтр: 2", ticket.Body())

	long := &Ticket{Message: "абвгдеёжзи"}
	assert.Equal(t, "абвгд...", long.Preview(5))
	assert.Equal(t, "абвгдеёжзи", long.Preview(50))
}
