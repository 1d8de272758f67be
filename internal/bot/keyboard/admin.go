package keyboard

import (
	"strconv"

	"github.com/Proton-105/stockroom-bot/internal/i18n"
)

// Admin panel sections, the first part of an admin: payload.
const (
	AdminPanel     = "panel"
	AdminBroadcast = "broadcast"
	AdminExports   = "exports"
	AdminExport    = "export"
	AdminContacts  = "contacts"
	AdminContact   = "contact"
	AdminBranches  = "branches"
	AdminBranch    = "branch"
	AdminItems     = "items"
	AdminItem      = "item"
	AdminTickets   = "tickets"
	AdminReply     = "reply"
	AdminInventory = "inventory"
	AdminWindow    = "window"
	AdminAuto      = "auto"
	AdminSchedule  = "schedule"
)

// Entity operations of the contact, branch and item sections.
const (
	OpAdd    = "add"
	OpEdit   = "edit"
	OpDelete = "del"
)

// AdminButton is an inline button carrying an admin action.
func AdminButton(text string, parts ...string) InlineButton {
	return Button(text, ActionAdmin, parts...)
}

// AdminMenu is the root of the admin panel.
func AdminMenu(t i18n.Translator) *Markup {
	return Inline(
		[]InlineButton{AdminButton(t.T("admin.panel.broadcast"), AdminBroadcast)},
		[]InlineButton{AdminButton(t.T("admin.panel.exports"), AdminExports)},
		[]InlineButton{AdminButton(t.T("admin.panel.tickets"), AdminTickets, "1")},
		[]InlineButton{AdminButton(t.T("admin.panel.inventory"), AdminInventory)},
		[]InlineButton{
			AdminButton(t.T("admin.panel.branches"), AdminBranches),
			AdminButton(t.T("admin.panel.items"), AdminItems),
		},
		[]InlineButton{AdminButton(t.T("admin.panel.contacts"), AdminContacts)},
	)
}

// BackToPanel returns to the admin panel root.
func BackToPanel(t i18n.Translator) InlineButton {
	return AdminButton(t.T("admin.back"), AdminPanel)
}

// ExportPeriods offers the report periods in days; zero is all time.
func ExportPeriods(t i18n.Translator) *Markup {
	return Inline(
		[]InlineButton{AdminButton(t.T("admin.exports.week"), AdminExport, "7")},
		[]InlineButton{AdminButton(t.T("admin.exports.month"), AdminExport, "30")},
		[]InlineButton{AdminButton(t.T("admin.exports.all"), AdminExport, "0")},
		[]InlineButton{BackToPanel(t)},
	)
}

// Entry is one editable row of a directory list.
type Entry struct {
	ID    uint
	Label string
}

// EntityList shows an edit and a delete button per entry plus an add button.
func EntityList(t i18n.Translator, section, addLabel string, entries []Entry) *Markup {
	b := NewInlineKeyboard()
	for _, e := range entries {
		id := strconv.FormatUint(uint64(e.ID), 10)
		b.AddRow(
			AdminButton("✏️ "+e.Label, section, OpEdit, id),
			AdminButton("🗑", section, OpDelete, id),
		)
	}
	b.AddRow(AdminButton(addLabel, section, OpAdd))
	b.AddRow(BackToPanel(t))
	return b.Markup()
}

// InventoryPanel toggles the collection window and the automatic schedule.
func InventoryPanel(t i18n.Translator, open, auto bool) *Markup {
	window := AdminButton(t.T("admin.inventory.open"), AdminWindow, "on")
	if open {
		window = AdminButton(t.T("admin.inventory.close"), AdminWindow, "off")
	}
	mode := AdminButton(t.T("admin.inventory.auto_enable"), AdminAuto, "on")
	if auto {
		mode = AdminButton(t.T("admin.inventory.auto_disable"), AdminAuto, "off")
	}
	return Inline(
		[]InlineButton{window},
		[]InlineButton{mode},
		[]InlineButton{
			AdminButton(t.T("admin.inventory.set_start"), AdminSchedule, "start"),
			AdminButton(t.T("admin.inventory.set_end"), AdminSchedule, "end"),
		},
		[]InlineButton{AdminButton(t.T("admin.inventory.set_both"), AdminSchedule, "both")},
		[]InlineButton{BackToPanel(t)},
	)
}

// TicketQueue pages through open tickets with a reply button per ticket.
func TicketQueue(t i18n.Translator, ticketIDs []uint, page Page) *Markup {
	b := NewInlineKeyboard()
	replies := make([]InlineButton, 0, len(ticketIDs))
	for _, id := range ticketIDs {
		replies = append(replies, ReplyToTicket(t, id).Buttons()...)
	}
	b.AddGrid(2, replies...)
	b.AddRow(page.Buttons(t, ActionAdmin+CallbackDataSeparator+AdminTickets)...)
	b.AddRow(AdminButton(t.T("admin.tickets.reply_by_id"), AdminReply))
	b.AddRow(BackToPanel(t))
	return b.Markup()
}
