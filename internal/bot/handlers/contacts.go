package handlers

import (
	"context"
	"strings"

	"github.com/Proton-105/stockroom-bot/internal/directory"
	"github.com/Proton-105/stockroom-bot/internal/domain"
	"github.com/Proton-105/stockroom-bot/internal/i18n"
)

// Contacts shows the department directory.
func (h *Handlers) Contacts() Handler {
	return func(ctx context.Context, u *Update) error {
		_, t := h.translator(ctx, u.UserID)
		contacts, err := h.directory.Contacts(ctx)
		if err != nil {
			return err
		}
		return h.send(ctx, u, FormatContacts(t, contacts), nil)
	}
}

// FormatContacts renders contacts grouped by department.
func FormatContacts(t i18n.Translator, contacts []domain.Contact) string {
	if len(contacts) == 0 {
		return t.T("contacts.empty")
	}

	var b strings.Builder
	b.WriteString(t.T("contacts.header"))
	for _, g := range directory.GroupContacts(contacts) {
		b.WriteString("\n\n🔹 ")
		b.WriteString(g.Department)
		for _, c := range g.Contacts {
			b.WriteString("\n")
			b.WriteString(c.Info)
		}
	}
	return b.String()
}
