package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/Proton-105/stockroom-bot/internal/bot/keyboard"
	"github.com/Proton-105/stockroom-bot/internal/directory"
)

// ReportListSize is how many recent reports /report shows.
const ReportListSize = 5

const reportDateLayout = "02.01.2006 15:04"

// Tickets shows the first page of the open queue.
func (h *Handlers) Tickets() Handler {
	return h.adminOnly(func(ctx context.Context, u *Update) error {
		return h.ticketPage(ctx, u, 1)
	})
}

// Report lists the latest inventory reports.
func (h *Handlers) Report() Handler {
	return h.adminOnly(func(ctx context.Context, u *Update) error {
		t := h.i18n.Default()
		reports, err := h.reports.Latest(ctx, ReportListSize)
		if err != nil {
			return err
		}
		if len(reports) == 0 {
			return h.send(ctx, u, t.T("admin.report.empty"), nil)
		}

		var b strings.Builder
		b.WriteString(t.T("admin.report.title"))
		for _, r := range reports {
			b.WriteString("\n\n")
			b.WriteString(t.Format("admin.report.entry", map[string]string{
				"Date":   r.CreatedAt.In(h.loc).Format(reportDateLayout),
				"Branch": r.BranchName,
				"UserID": strconv.FormatInt(r.UserID, 10),
				"Data":   r.ReportData,
			}))
		}
		return h.send(ctx, u, b.String(), nil)
	})
}

// Remind queues a reminder with an inventory button for every user.
func (h *Handlers) Remind() Handler {
	return h.adminOnly(func(ctx context.Context, u *Update) error {
		t := h.i18n.Default()
		_, note := u.Command()
		if note == "" {
			return h.send(ctx, u, t.T("admin.usage.remind"), nil)
		}

		if err := h.reminders.EnqueueRemind(ctx, note, u.ChatID); err != nil {
			return fmt.Errorf("enqueue remind: %w", err)
		}
		h.log.Info("remind queued", slog.Int64("user_id", u.UserID))
		return h.send(ctx, u, t.T("admin.remind.queued"), nil)
	})
}

// directoryResult reports the outcome of a directory insert.
func (h *Handlers) directoryResult(ctx context.Context, u *Update, name string, err error, done string) error {
	t := h.i18n.Default()
	switch {
	case errors.Is(err, directory.ErrDuplicate):
		return h.send(ctx, u, t.Format("admin.duplicate", map[string]string{"Name": name}), nil)
	case err != nil:
		return err
	default:
		return h.send(ctx, u, done, nil)
	}
}

// AddBranch creates a branch from the command argument.
func (h *Handlers) AddBranch() Handler {
	return h.adminOnly(func(ctx context.Context, u *Update) error {
		t := h.i18n.Default()
		_, name := u.Command()
		if name == "" {
			return h.send(ctx, u, t.T("admin.usage.add_branch"), nil)
		}
		_, err := h.directory.AddBranch(ctx, name)
		return h.directoryResult(ctx, u, name, err, t.Format("admin.branch.added", map[string]string{"Name": name}))
	})
}

// AddItem adds an item to the catalog.
func (h *Handlers) AddItem() Handler {
	return h.adminOnly(func(ctx context.Context, u *Update) error {
		t := h.i18n.Default()
		_, name := u.Command()
		if name == "" {
			return h.send(ctx, u, t.T("admin.usage.add_item"), nil)
		}
		_, err := h.directory.AddItem(ctx, name)
		return h.directoryResult(ctx, u, name, err, t.Format("admin.item.added", map[string]string{"Name": name}))
	})
}

// AddContact takes the department as the first word and the contact details as the rest.
func (h *Handlers) AddContact() Handler {
	return h.adminOnly(func(ctx context.Context, u *Update) error {
		t := h.i18n.Default()
		_, args := u.Command()
		department, info, _ := strings.Cut(args, " ")
		info = strings.TrimSpace(info)
		if department == "" || info == "" {
			return h.send(ctx, u, t.T("admin.usage.add_contact"), nil)
		}

		c, err := h.directory.AddContact(ctx, department, info)
		if err != nil {
			return err
		}
		return h.send(ctx, u, t.Format("admin.contact.added", map[string]string{
			"Department": c.Department,
			"Info":       c.Info,
		}), nil)
	})
}

// DelContact deletes a contact by id.
func (h *Handlers) DelContact() Handler {
	return h.adminOnly(func(ctx context.Context, u *Update) error {
		t := h.i18n.Default()
		_, arg := u.Command()
		if arg == "" {
			return h.send(ctx, u, t.T("admin.usage.del_contact"), nil)
		}
		id, ok := keyboard.ParseID(arg)
		if !ok {
			return h.send(ctx, u, t.T("admin.contact.invalid_id"), nil)
		}

		err := h.directory.DeleteContact(ctx, id)
		if errors.Is(err, directory.ErrNotFound) {
			return h.send(ctx, u, t.T("admin.not_found"), nil)
		}
		if err != nil {
			return err
		}
		return h.send(ctx, u, t.Format("admin.contact.deleted", map[string]string{"ID": arg}), nil)
	})
}

// ContactsAdmin lists contacts with their ids.
func (h *Handlers) ContactsAdmin() Handler {
	return h.adminOnly(func(ctx context.Context, u *Update) error {
		t := h.i18n.Default()
		contacts, err := h.directory.Contacts(ctx)
		if err != nil {
			return err
		}
		if len(contacts) == 0 {
			return h.send(ctx, u, t.T("admin.contact.empty")+"\n\n"+t.T("admin.contact.list_hint"), nil)
		}

		var b strings.Builder
		b.WriteString(t.T("admin.contact.list_ids"))
		for _, c := range contacts {
			fmt.Fprintf(&b, "\nID: %d | %s: %s", c.ID, c.Department, c.Info)
		}
		b.WriteString("\n\n")
		b.WriteString(t.T("admin.contact.list_hint"))
		return h.send(ctx, u, b.String(), nil)
	})
}
