package keyboard

import (
	"strconv"

	"github.com/Proton-105/stockroom-bot/internal/i18n"
)

// Page is a 1-based window over a list of Items entries, Size per page.
type Page struct {
	Number int
	Total  int
	Size   int
}

// NewPage clamps number into the pages available for items. An empty list still has one page.
func NewPage(number, items, size int) Page {
	if size < 1 {
		size = 1
	}
	total := 1
	if items > 0 {
		total = (items + size - 1) / size
	}
	number = max(1, min(number, total))
	return Page{Number: number, Total: total, Size: size}
}

// Offset is the index of the first entry on the page.
func (p Page) Offset() int { return (p.Number - 1) * p.Size }

func (p Page) HasPrev() bool { return p.Number > 1 }

func (p Page) HasNext() bool { return p.Number < p.Total }

// Buttons renders the navigation row. Each button carries its target page number under action.
// A single page gets no row.
func (p Page) Buttons(t i18n.Translator, action string) []InlineButton {
	if p.Total <= 1 {
		return nil
	}

	button := func(text string, page int) InlineButton {
		return InlineButton{Text: text, Unique: action, Data: strconv.Itoa(page)}
	}

	row := make([]InlineButton, 0, 3)
	if p.HasPrev() {
		row = append(row, button(label(t, "pagination.prev", "◀️", nil), p.Number-1))
	}
	row = append(row, button(label(t, "pagination.page", strconv.Itoa(p.Number)+"/"+strconv.Itoa(p.Total), map[string]string{
		"Page":  strconv.Itoa(p.Number),
		"Total": strconv.Itoa(p.Total),
	}), p.Number))
	if p.HasNext() {
		row = append(row, button(label(t, "pagination.next", "▶️", nil), p.Number+1))
	}
	return row
}

// label falls back when the key has no translation.
func label(t i18n.Translator, key, fallback string, vars map[string]string) string {
	if t == nil {
		return fallback
	}
	text := t.Format(key, vars)
	if text == "" || text == key {
		return fallback
	}
	return text
}
