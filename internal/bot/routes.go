package bot

import (
	"log/slog"
	"regexp"

	"github.com/Proton-105/stockroom-bot/internal/bot/handlers"
	"github.com/Proton-105/stockroom-bot/internal/bot/keyboard"
	"github.com/Proton-105/stockroom-bot/internal/i18n"
	"github.com/Proton-105/stockroom-bot/internal/state"
)

var ticketIDPattern = regexp.MustCompile(`^\d+$`)

// NewRoutes registers every command, button and menu entry on a fresh router.
func NewRoutes(h *handlers.Handlers, flows ActiveFlows, catalog *i18n.Manager, log *slog.Logger) *Router {
	dispatcher := NewDispatcher(flows, log)
	dispatcher.SetDefault(h.Advance())
	dispatcher.AllowInGroups(state.FlowTicketReply, state.FlowAdminReply)

	r := NewRouter(dispatcher, log)

	r.RegisterCommand(CommandStart, h.Start())
	r.RegisterCommand(CommandHelp, h.Help())
	r.RegisterCommand(CommandCancel, h.Cancel())
	r.RegisterCommand(CommandAdmin, h.Admin())
	r.RegisterCommand(CommandTickets, h.Tickets())
	r.RegisterCommand(CommandReport, h.Report())
	r.RegisterCommand(CommandRemind, h.Remind())
	r.RegisterCommand(CommandAddBranch, h.AddBranch())
	r.RegisterCommand(CommandAddItem, h.AddItem())
	r.RegisterCommand(CommandAddContact, h.AddContact())
	r.RegisterCommand(CommandDelContact, h.DelContact())
	r.RegisterCommand(CommandContactsAdmin, h.ContactsAdmin())

	r.RegisterCallback(keyboard.ActionReply, h.ReplyButton())
	r.RegisterCallback(keyboard.ActionAdmin, h.AdminButton())
	r.RegisterCallback(keyboard.ActionInventory, h.InventoryButton())
	r.RegisterCallback(keyboard.ActionSettings, h.SettingsButton())
	r.RegisterCallback(keyboard.ActionCancel, h.Cancel())

	menu := map[string]handlers.Handler{
		keyboard.MenuFeedback:  handlers.PrivateOnly(h.StartFlow(state.FlowFeedback)),
		keyboard.MenuQuestion:  handlers.PrivateOnly(h.StartFlow(state.FlowQuestion)),
		keyboard.MenuInventory: handlers.PrivateOnly(h.StartFlow(state.FlowInventory)),
		keyboard.MenuOrder:     handlers.PrivateOnly(h.StartFlow(state.FlowOrder)),
		keyboard.MenuContacts:  h.Contacts(),
		keyboard.MenuSettings:  h.Settings(),
	}
	for key, handler := range menu {
		for _, label := range catalog.All(key) {
			r.RegisterText(label, handler)
		}
	}

	r.RegisterPattern("ticket_id", ticketIDPattern, h.TicketTrigger())
	r.SetStaleCallback(h.Stale())

	return r
}
