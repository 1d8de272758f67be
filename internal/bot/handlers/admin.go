package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/Proton-105/stockroom-bot/internal/bot/keyboard"
	"github.com/Proton-105/stockroom-bot/internal/conversation"
	"github.com/Proton-105/stockroom-bot/internal/directory"
	"github.com/Proton-105/stockroom-bot/internal/domain"
	"github.com/Proton-105/stockroom-bot/internal/i18n"
	"github.com/Proton-105/stockroom-bot/internal/settings"
	"github.com/Proton-105/stockroom-bot/internal/state"
	"github.com/Proton-105/stockroom-bot/internal/ticket"
)

// TicketPageSize is the number of tickets per queue page.
const TicketPageSize = 5

const ticketPreviewLen = 100

// Admin shows the admin panel.
func (h *Handlers) Admin() Handler {
	return h.adminOnly(func(ctx context.Context, u *Update) error {
		t := h.i18n.Default()
		return h.send(ctx, u, t.T("admin.panel.title"), keyboard.AdminMenu(t))
	})
}

// AdminButton dispatches admin panel buttons.
func (h *Handlers) AdminButton() Handler {
	return h.adminOnly(func(ctx context.Context, u *Update) error {
		_, payload, err := keyboard.DecodeCallback(u.CallbackData)
		if err != nil {
			return h.Stale()(ctx, u)
		}
		parts := keyboard.SplitData(payload)
		if len(parts) == 0 {
			return h.Stale()(ctx, u)
		}

		section, args := parts[0], parts[1:]
		switch section {
		case keyboard.AdminPanel:
			return h.Admin()(ctx, u)
		case keyboard.AdminBroadcast:
			return h.startAdminFlow(ctx, u, state.FlowBroadcast, conversation.StartOptions{})
		case keyboard.AdminReply:
			return h.startAdminFlow(ctx, u, state.FlowAdminReply, conversation.StartOptions{})
		case keyboard.AdminExports:
			t := h.i18n.Default()
			return h.send(ctx, u, t.T("admin.exports.title"), keyboard.ExportPeriods(t))
		case keyboard.AdminExport:
			return h.exportButton(ctx, u, args)
		case keyboard.AdminTickets:
			return h.ticketsButton(ctx, u, args)
		case keyboard.AdminContacts:
			return h.contactList(ctx, u)
		case keyboard.AdminBranches:
			return h.branchList(ctx, u)
		case keyboard.AdminItems:
			return h.itemList(ctx, u)
		case keyboard.AdminContact:
			return h.entityButton(ctx, u, state.FlowAdminContact, args, h.deleteContact)
		case keyboard.AdminBranch:
			return h.entityButton(ctx, u, state.FlowAdminBranch, args, h.deleteBranch)
		case keyboard.AdminItem:
			return h.entityButton(ctx, u, state.FlowAdminItem, args, h.deleteItem)
		case keyboard.AdminInventory:
			return h.inventoryPanel(ctx, u)
		case keyboard.AdminWindow, keyboard.AdminAuto:
			return h.toggleButton(ctx, u, section, args)
		case keyboard.AdminSchedule:
			return h.scheduleButton(ctx, u, args)
		default:
			return h.Stale()(ctx, u)
		}
	})
}

func (h *Handlers) startAdminFlow(ctx context.Context, u *Update, kind state.FlowKind, opts conversation.StartOptions) error {
	reply, err := h.flows.Start(ctx, u.Actor(), kind, opts)
	if err != nil {
		return err
	}
	return h.render(ctx, u, reply)
}

func parseEntityID(args []string, at int) (uint, bool) {
	if len(args) <= at {
		return 0, false
	}
	return keyboard.ParseID(args[at])
}

// entityButton handles add, edit and delete of a directory entry.
func (h *Handlers) entityButton(ctx context.Context, u *Update, kind state.FlowKind, args []string, remove func(context.Context, *Update, uint) error) error {
	if len(args) == 0 {
		return h.Stale()(ctx, u)
	}

	switch args[0] {
	case keyboard.OpAdd:
		return h.startAdminFlow(ctx, u, kind, conversation.StartOptions{})
	case keyboard.OpEdit:
		id, ok := parseEntityID(args, 1)
		if !ok {
			return h.Stale()(ctx, u)
		}
		return h.startAdminFlow(ctx, u, kind, conversation.StartOptions{EditID: id})
	case keyboard.OpDelete:
		id, ok := parseEntityID(args, 1)
		if !ok {
			return h.Stale()(ctx, u)
		}
		return remove(ctx, u, id)
	default:
		return h.Stale()(ctx, u)
	}
}

// deleted reports the outcome of a delete; a missing entry is a lookup miss, not a failure.
func (h *Handlers) deleted(ctx context.Context, u *Update, err error, done string) error {
	t := h.i18n.Default()
	if errors.Is(err, directory.ErrNotFound) {
		u.Answer(t.T("admin.not_found"), true)
		return nil
	}
	if err != nil {
		return err
	}
	u.Answer(done, false)
	return h.send(ctx, u, done, nil)
}

func (h *Handlers) deleteContact(ctx context.Context, u *Update, id uint) error {
	done := h.i18n.Default().Format("admin.contact.deleted", map[string]string{"ID": strconv.FormatUint(uint64(id), 10)})
	return h.deleted(ctx, u, h.directory.DeleteContact(ctx, id), done)
}

func (h *Handlers) deleteBranch(ctx context.Context, u *Update, id uint) error {
	return h.deleted(ctx, u, h.directory.DeleteBranch(ctx, id), h.i18n.Default().T("admin.branch.deleted"))
}

func (h *Handlers) deleteItem(ctx context.Context, u *Update, id uint) error {
	return h.deleted(ctx, u, h.directory.RemoveItem(ctx, id), h.i18n.Default().T("admin.item.deleted"))
}

func (h *Handlers) contactList(ctx context.Context, u *Update) error {
	t := h.i18n.Default()
	contacts, err := h.directory.Contacts(ctx)
	if err != nil {
		return err
	}

	text := t.T("admin.contact.list")
	if len(contacts) == 0 {
		text = t.T("admin.contact.empty")
	}
	entries := make([]keyboard.Entry, 0, len(contacts))
	for _, c := range contacts {
		entries = append(entries, keyboard.Entry{ID: c.ID, Label: fmt.Sprintf("%s: %s", c.Department, firstLine(c.Info))})
	}
	return h.send(ctx, u, text, keyboard.EntityList(t, keyboard.AdminContact, t.T("admin.contact.add_button"), entries))
}

func (h *Handlers) branchList(ctx context.Context, u *Update) error {
	t := h.i18n.Default()
	branches, err := h.directory.Branches(ctx)
	if err != nil {
		return err
	}

	text := t.T("admin.branch.list")
	if len(branches) == 0 {
		text = t.T("admin.branch.empty")
	}
	entries := make([]keyboard.Entry, 0, len(branches))
	for _, b := range branches {
		entries = append(entries, keyboard.Entry{ID: b.ID, Label: b.Name})
	}
	return h.send(ctx, u, text, keyboard.EntityList(t, keyboard.AdminBranch, t.T("admin.branch.add_button"), entries))
}

func (h *Handlers) itemList(ctx context.Context, u *Update) error {
	t := h.i18n.Default()
	items, err := h.directory.Catalog(ctx)
	if err != nil {
		return err
	}

	text := t.T("admin.item.list")
	if len(items) == 0 {
		text = t.T("admin.item.empty")
	}
	entries := make([]keyboard.Entry, 0, len(items))
	for _, it := range items {
		entries = append(entries, keyboard.Entry{ID: it.ID, Label: it.Name})
	}
	return h.send(ctx, u, text, keyboard.EntityList(t, keyboard.AdminItem, t.T("admin.item.add_button"), entries))
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

// ticketsButton shows one page of the open queue.
func (h *Handlers) ticketsButton(ctx context.Context, u *Update, args []string) error {
	page := 1
	if len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil && n > 0 {
			page = n
		}
	}
	return h.ticketPage(ctx, u, page)
}

func (h *Handlers) ticketPage(ctx context.Context, u *Update, page int) error {
	t := h.i18n.Default()
	total, err := h.tickets.CountOpen(ctx, "")
	if err != nil {
		return err
	}
	if total == 0 {
		return h.send(ctx, u, t.T("admin.tickets.empty"), keyboard.Inline([]keyboard.InlineButton{keyboard.BackToPanel(t)}))
	}

	pg := keyboard.NewPage(page, int(total), TicketPageSize)
	open, err := h.tickets.ListOpen(ctx, ticket.ListOptions{Limit: pg.Size, Offset: pg.Offset()})
	if err != nil {
		return err
	}

	text, ids := FormatTicketQueue(t, open, total)
	return h.send(ctx, u, text, keyboard.TicketQueue(t, ids, pg))
}

// FormatTicketQueue renders a page of open tickets and returns their ids.
func FormatTicketQueue(t i18n.Translator, open []domain.Ticket, total int64) (string, []uint) {
	var b strings.Builder
	b.WriteString(t.Format("admin.tickets.title", map[string]string{"Count": strconv.FormatInt(total, 10)}))
	ids := make([]uint, 0, len(open))
	for i := range open {
		tk := &open[i]
		ids = append(ids, tk.ID)
		b.WriteString("\n\n")
		b.WriteString(t.Format("admin.tickets.entry", map[string]string{
			"ID":      strconv.FormatUint(uint64(tk.ID), 10),
			"User":    tk.UserName,
			"Branch":  tk.BranchName,
			"Preview": tk.Preview(ticketPreviewLen),
		}))
	}
	b.WriteString("\n\n")
	b.WriteString(t.T("admin.tickets.hint"))
	return b.String(), ids
}

// exportButton builds the workbook for the chosen period and sends it as a document.
func (h *Handlers) exportButton(ctx context.Context, u *Update, args []string) error {
	t := h.i18n.Default()
	days := 0
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 0 {
			return h.Stale()(ctx, u)
		}
		days = n
	}

	period := t.T("admin.exports.period_all")
	if days > 0 {
		period = t.Format("admin.exports.period_days", map[string]string{"Days": strconv.Itoa(days)})
	}
	vars := map[string]string{"Period": period}

	if err := h.send(ctx, u, t.Format("admin.exports.generating", vars), nil); err != nil {
		return err
	}

	file, err := h.exporter.Build(ctx, days)
	if err != nil {
		return fmt.Errorf("build export: %w", err)
	}
	h.log.Info("export built", slog.Int64("user_id", u.UserID), slog.Int("days", days), slog.String("file", file.Name))
	return h.sender.SendDocument(ctx, u.ChatID, file.Name, file.Data, t.Format("admin.exports.caption", vars))
}

// inventoryPanel shows the collection window status and schedule.
func (h *Handlers) inventoryPanel(ctx context.Context, u *Update) error {
	t := h.i18n.Default()
	open, err := h.settings.InventoryOpen(ctx)
	if err != nil {
		return err
	}
	sched, err := h.settings.Schedule(ctx)
	if err != nil && !errors.Is(err, settings.ErrMalformedDay) {
		return err
	}

	status := t.T("admin.inventory.status_closed")
	if open {
		status = t.T("admin.inventory.status_open")
	}
	auto := t.T("admin.inventory.auto_off")
	if sched.Enabled {
		auto = t.T("admin.inventory.auto_on")
	}

	text := t.Format("admin.inventory.title", map[string]string{
		"Status": status,
		"Auto":   auto,
		"Start":  dayLabel(sched.StartDay),
		"End":    dayLabel(sched.EndDay),
	})
	return h.send(ctx, u, text, keyboard.InventoryPanel(t, open, sched.Enabled))
}

func dayLabel(day int) string {
	if day == 0 {
		return "?"
	}
	return strconv.Itoa(day)
}

// toggleButton switches the collection window or the automatic schedule, then redraws the panel.
func (h *Handlers) toggleButton(ctx context.Context, u *Update, section string, args []string) error {
	if len(args) == 0 || (args[0] != "on" && args[0] != "off") {
		return h.Stale()(ctx, u)
	}
	on := args[0] == "on"

	var err error
	if section == keyboard.AdminWindow {
		err = h.settings.SetInventoryOpen(ctx, on)
	} else {
		err = h.settings.SetAutoMode(ctx, on)
	}
	if err != nil {
		return err
	}

	h.log.Info("inventory setting changed",
		slog.Int64("user_id", u.UserID),
		slog.String("setting", section),
		slog.Bool("on", on),
	)
	return h.inventoryPanel(ctx, u)
}

func (h *Handlers) scheduleButton(ctx context.Context, u *Update, args []string) error {
	if len(args) == 0 {
		return h.Stale()(ctx, u)
	}

	var day conversation.ScheduleDay
	switch args[0] {
	case "start":
		day = conversation.ScheduleStart
	case "end":
		day = conversation.ScheduleEnd
	case "both":
		day = conversation.ScheduleBoth
	default:
		return h.Stale()(ctx, u)
	}
	return h.startAdminFlow(ctx, u, state.FlowScheduleConfig, conversation.StartOptions{Day: day})
}
