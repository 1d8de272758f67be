package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/Proton-105/stockroom-bot/internal/bot/keyboard"
	"github.com/Proton-105/stockroom-bot/internal/domain"
	"github.com/Proton-105/stockroom-bot/internal/i18n"
	"github.com/Proton-105/stockroom-bot/internal/state"
	"github.com/Proton-105/stockroom-bot/internal/ticket"
)

// Cart callback payloads after the order action.
const (
	orderItem   = "item"
	orderDone   = "done"
	orderCancel = "cancel"
)

// CartKeyboard renders the catalog with the cart marks, done and cancel first.
func CartKeyboard(t i18n.Translator, items []domain.Item, cart *state.OrderDraft) *keyboard.Markup {
	done := t.T("order.done_button")
	if n := len(cart.Lines); n > 0 {
		done = fmt.Sprintf("%s (%d)", done, n)
	}

	buttons := make([]keyboard.InlineButton, 0, len(items)+2)
	buttons = append(buttons,
		keyboard.Button(done, keyboard.ActionOrder, orderDone),
		keyboard.Button(t.T("order.cancel_button"), keyboard.ActionOrder, orderCancel),
	)
	for _, it := range items {
		label := it.Name
		if qty, ok := cart.Quantity(it.ID); ok && qty > 0 {
			label = fmt.Sprintf("✅ %s (%d)", it.Name, qty)
		}
		buttons = append(buttons, keyboard.Button(label, keyboard.ActionOrder, orderItem, uitoa(it.ID)))
	}
	return keyboard.NewInlineKeyboard().AddGrid(2, buttons...).Markup()
}

// FormatOrderLines renders cart lines as they appear in the ticket and the staff post.
func FormatOrderLines(lines []state.OrderLine) string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		out = append(out, fmt.Sprintf("▫️ %s: %d шт.", l.Name, l.Quantity))
	}
	return strings.Join(out, "\n")
}

func (e *Engine) startOrder(ctx context.Context, actor Actor) (Reply, error) {
	kind := state.FlowOrder
	u, t := e.actorProfile(ctx, actor)
	if u == nil {
		return e.reject(kind, ReasonNotRegistered, t.T("errors.not_registered")), nil
	}

	branch, err := e.branchOf(ctx, u)
	if err != nil {
		return Reply{}, err
	}
	if branch == nil {
		return e.reject(kind, ReasonNoBranch, t.T("inventory.no_branch")), nil
	}
	if e.directory.IsHeadOffice(branch) {
		return e.reject(kind, ReasonHeadOffice, t.T("order.head_office")), nil
	}
	if e.access.SupportGroup() == 0 {
		return e.reject(kind, ReasonNotConfigured, t.T("errors.not_configured")), nil
	}

	items, err := e.directory.Catalog(ctx)
	if err != nil {
		return Reply{}, err
	}
	if len(items) == 0 {
		return e.reject(kind, ReasonEmptyCatalog, t.T("inventory.empty_catalog")), nil
	}

	draft := &state.OrderDraft{BranchName: branch.Name}
	if _, err := e.begin(ctx, actor.UserID, kind, state.StateOrderChoosing, state.Draft{Order: draft}); err != nil {
		return Reply{}, err
	}
	return Reply{Text: t.T("order.choose"), Markup: CartKeyboard(t, items, draft)}, nil
}

func (e *Engine) advanceOrder(ctx context.Context, actor Actor, st *state.UserState, in Input) (Reply, error) {
	switch st.CurrentState {
	case state.StateOrderChoosing:
		return e.orderChoose(ctx, actor, st, in)
	case state.StateOrderQuantity:
		return e.orderQuantity(ctx, actor, st, in)
	default:
		return e.expire(ctx, st)
	}
}

func (e *Engine) cartReply(ctx context.Context, t i18n.Translator, d *state.OrderDraft, prefix string) (Reply, error) {
	items, err := e.directory.Catalog(ctx)
	if err != nil {
		return Reply{}, err
	}
	text := t.T("order.choose")
	if prefix != "" {
		text = prefix + "\n\n" + text
	}
	return Reply{Text: text, Markup: CartKeyboard(t, items, d)}, nil
}

func (e *Engine) orderChoose(ctx context.Context, actor Actor, st *state.UserState, in Input) (Reply, error) {
	d := st.Draft.Order
	u, t := e.actorProfile(ctx, actor)

	action, payload, err := keyboard.DecodeCallback(in.Choice)
	if err != nil || action != keyboard.ActionOrder {
		reply, err := e.cartReply(ctx, t, d, "")
		reply.Rejected = ReasonInvalidInput
		return reply, err
	}

	parts := keyboard.SplitData(payload)
	switch {
	case len(parts) == 1 && parts[0] == orderCancel:
		if err := e.abandon(ctx, st, ReasonNone); err != nil {
			return Reply{}, err
		}
		return Reply{Text: t.T("common.cancelled"), Markup: e.menuFor(u, t), Done: true}, nil

	case len(parts) == 1 && parts[0] == orderDone:
		return e.submitOrder(ctx, actor, st, u, t)

	case len(parts) == 2 && parts[0] == orderItem:
		id, ok := parseID(parts[1])
		if !ok {
			break
		}
		item, err := e.directory.ActiveItem(ctx, id)
		if isNotFound(err) {
			reply, err := e.cartReply(ctx, t, d, t.T("order.item_unavailable"))
			reply.Rejected = ReasonNotFound
			return reply, err
		}
		if err != nil {
			return Reply{}, err
		}

		d.Pending = &state.CatalogItem{ID: item.ID, Name: item.Name}
		if err := e.fsm.TransitionTo(ctx, st, state.StateOrderQuantity); err != nil {
			return Reply{}, err
		}
		return Reply{Text: t.Format("order.enter_qty", map[string]string{"Item": item.Name})}, nil
	}

	reply, err := e.cartReply(ctx, t, d, "")
	reply.Rejected = ReasonInvalidInput
	return reply, err
}

func (e *Engine) orderQuantity(ctx context.Context, actor Actor, st *state.UserState, in Input) (Reply, error) {
	d := st.Draft.Order
	_, t := e.actorProfile(ctx, actor)
	if d.Pending == nil {
		return e.expire(ctx, st)
	}

	qty, ok := parseCount(in.Text)
	if in.IsChoice() || !ok {
		return e.retry(st.Flow, t.T("errors.digit"), nil), nil
	}

	item := *d.Pending
	d.Pending = nil
	// Re-selecting an item overwrites its quantity, zero included.
	d.Put(item, qty)
	if err := e.fsm.TransitionTo(ctx, st, state.StateOrderChoosing); err != nil {
		return Reply{}, err
	}

	added := t.Format("order.added", map[string]string{"Item": item.Name, "Qty": strconv.Itoa(qty)})
	return e.cartReply(ctx, t, d, added)
}

func (e *Engine) submitOrder(ctx context.Context, actor Actor, st *state.UserState, u *domain.User, t i18n.Translator) (Reply, error) {
	d := st.Draft.Order
	if len(d.Lines) == 0 {
		reply := e.reject(st.Flow, ReasonEmptyCart, t.T("order.empty"))
		reply.Alert = true
		return reply, nil
	}

	group := e.access.SupportGroup()
	if group == 0 {
		if err := e.abandon(ctx, st, ReasonNotConfigured); err != nil {
			return Reply{}, err
		}
		return Reply{Text: t.T("errors.not_configured"), Markup: e.menuFor(u, t), Rejected: ReasonNotConfigured, Done: true}, nil
	}

	items := FormatOrderLines(d.Lines)
	tk, err := e.tickets.Create(ctx, ticket.NewTicket{
		UserID:     actor.UserID,
		UserName:   actor.DisplayName,
		BranchName: d.BranchName,
		Message:    domain.OrderSentinel + "\n" + items,
		Type:       domain.TicketOrder,
	})
	if err != nil {
		return Reply{}, err
	}
	if err := e.finish(ctx, st); err != nil {
		return Reply{}, err
	}

	staff := e.i18n.Default()
	post := staff.Format("order.header", map[string]string{
		"Branch": d.BranchName,
		"User":   actor.DisplayName,
		"Items":  items,
	}) + "\n\n" + ticketIDLine(tk.ID)
	if _, err := e.sender.Send(ctx, group, post, keyboard.ReplyToTicket(staff, tk.ID)); err != nil {
		e.log.Error("post order to support group",
			slog.Uint64("ticket_id", uint64(tk.ID)),
			slog.Int64("group_id", group),
			slog.Any("error", err),
		)
		return Reply{Text: t.T("errors.delivery"), Markup: e.menuFor(u, t), Done: true}, nil
	}

	e.log.Info("order submitted", slog.Uint64("ticket_id", uint64(tk.ID)), slog.Int("lines", len(d.Lines)))
	return Reply{Text: t.T("order.sent"), Markup: e.menuFor(u, t), Done: true}, nil
}

func ticketIDLine(id uint) string {
	return "🔢 Ticket ID: #" + uitoa(id)
}
