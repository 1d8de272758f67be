package conversation

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/Proton-105/stockroom-bot/internal/bot/keyboard"
	"github.com/Proton-105/stockroom-bot/internal/domain"
	"github.com/Proton-105/stockroom-bot/internal/state"
	"github.com/Proton-105/stockroom-bot/internal/ticket"
)

func (e *Engine) startAdminReply(ctx context.Context, actor Actor) (Reply, error) {
	t := e.i18n.Default()
	draft := state.Draft{Reply: &state.ReplyDraft{}}
	if _, err := e.begin(ctx, actor.UserID, state.FlowAdminReply, state.StateReplyTicketID, draft); err != nil {
		return Reply{}, err
	}
	return Reply{Text: t.T("reply.ask_id"), Markup: keyboard.CancelButton(t)}, nil
}

// StartTicketReply starts answering ticketID, from the reply button or a bare id typed in a staff chat.
// An unknown id typed in a group is ignored without a reply.
func (e *Engine) StartTicketReply(ctx context.Context, actor Actor, ticketID uint, fromGroup bool) (Reply, error) {
	return e.withLock(ctx, actor.UserID, func(ctx context.Context) (Reply, afterFunc, error) {
		reply, err := e.startTicketReply(ctx, actor, ticketID, fromGroup)
		return reply, nil, err
	})
}

func (e *Engine) startTicketReply(ctx context.Context, actor Actor, ticketID uint, fromGroup bool) (Reply, error) {
	kind := state.FlowTicketReply
	t := e.i18n.Default()
	if !e.access.CanTriage(actor.UserID, actor.ChatID) {
		if fromGroup {
			return Reply{}, nil
		}
		return e.reject(kind, ReasonForbidden, t.T("errors.forbidden")), nil
	}

	tk, err := e.tickets.Get(ctx, ticketID)
	if isNotFound(err) {
		if fromGroup {
			return Reply{Rejected: ReasonNotFound}, nil
		}
		return e.reject(kind, ReasonNotFound, t.Format("reply.not_found", map[string]string{"ID": uitoa(ticketID)})), nil
	}
	if err != nil {
		return Reply{}, err
	}
	if !tk.IsOpen() {
		return e.reject(kind, ReasonAlreadyClosed, t.Format("reply.already_closed", map[string]string{"ID": uitoa(ticketID)})), nil
	}

	// A bare id typed in the group must not discard a private flow the admin is in the middle of.
	if fromGroup {
		current, active, err := e.Active(ctx, actor.UserID)
		if err != nil {
			return Reply{}, err
		}
		if active && current.Flow != kind {
			return e.reject(kind, ReasonFlowActive, t.Format("reply.finish_current", map[string]string{"ID": uitoa(ticketID)})), nil
		}
	}

	draft := state.Draft{Reply: &state.ReplyDraft{TicketID: tk.ID, RequesterID: tk.UserID}}
	if _, err := e.begin(ctx, actor.UserID, kind, state.StateReplyText, draft); err != nil {
		return Reply{}, err
	}
	return Reply{Text: e.replyPrompt(tk), Markup: keyboard.CancelButton(t)}, nil
}

func (e *Engine) replyPrompt(tk *domain.Ticket) string {
	return e.i18n.Default().Format("reply.enter_text", map[string]string{
		"ID":   uitoa(tk.ID),
		"User": tk.UserName,
		"Text": tk.Body(),
	})
}

func (e *Engine) advanceReply(ctx context.Context, actor Actor, st *state.UserState, in Input) (Reply, error) {
	switch st.CurrentState {
	case state.StateReplyTicketID:
		return e.replyChooseTicket(ctx, st, in)
	case state.StateReplyText:
		return e.replySend(ctx, actor, st, in)
	default:
		return e.expire(ctx, st)
	}
}

func (e *Engine) replyChooseTicket(ctx context.Context, st *state.UserState, in Input) (Reply, error) {
	t := e.i18n.Default()
	id, ok := parseCount(strings.TrimPrefix(strings.TrimSpace(in.Text), "#"))
	if in.IsChoice() || !ok || id == 0 {
		return e.retry(st.Flow, t.T("reply.ask_id"), keyboard.CancelButton(t)), nil
	}

	vars := map[string]string{"ID": strconv.Itoa(id)}
	tk, err := e.tickets.Get(ctx, uint(id))
	if isNotFound(err) {
		return e.reject(st.Flow, ReasonNotFound, t.Format("reply.not_found", vars)), nil
	}
	if err != nil {
		return Reply{}, err
	}
	if !tk.IsOpen() {
		return e.reject(st.Flow, ReasonAlreadyClosed, t.Format("reply.already_closed", vars)), nil
	}

	st.Draft.Reply.TicketID = tk.ID
	st.Draft.Reply.RequesterID = tk.UserID
	if err := e.fsm.TransitionTo(ctx, st, state.StateReplyText); err != nil {
		return Reply{}, err
	}
	return Reply{Text: e.replyPrompt(tk), Markup: keyboard.CancelButton(t)}, nil
}

// replySend closes the ticket first, then tells the requester. A failed delivery leaves the ticket closed.
func (e *Engine) replySend(ctx context.Context, actor Actor, st *state.UserState, in Input) (Reply, error) {
	t := e.i18n.Default()
	d := st.Draft.Reply
	vars := map[string]string{"ID": uitoa(d.TicketID)}

	text := strings.TrimSpace(in.Text)
	if text == "" {
		text = strings.TrimSpace(in.Caption)
	}
	if in.IsChoice() || text == "" {
		return e.retry(st.Flow, t.T("reply.text_required"), keyboard.CancelButton(t)), nil
	}

	tk, err := e.tickets.Close(ctx, d.TicketID, ticket.Reply{
		Text:          text,
		ResponderID:   actor.UserID,
		ResponderName: actor.DisplayName,
	})
	switch {
	case errors.Is(err, ticket.ErrAlreadyClosed):
		if err := e.abandon(ctx, st, ReasonAlreadyClosed); err != nil {
			return Reply{}, err
		}
		return Reply{Text: t.Format("reply.already_closed", vars), Rejected: ReasonAlreadyClosed, Done: true}, nil
	case isNotFound(err):
		if err := e.abandon(ctx, st, ReasonNotFound); err != nil {
			return Reply{}, err
		}
		return Reply{Text: t.Format("reply.not_found", vars), Rejected: ReasonNotFound, Done: true}, nil
	case err != nil:
		return Reply{}, err
	}

	if err := e.finish(ctx, st); err != nil {
		return Reply{}, err
	}

	requester, _ := e.users.Get(ctx, tk.UserID)
	rt := e.translatorFor(requester)
	message := rt.Format("reply.to_requester", map[string]string{
		"Manager": actor.DisplayName,
		"ID":      uitoa(tk.ID),
		"Text":    text,
	})
	if _, err := e.sender.Send(ctx, tk.UserID, message, nil); err != nil {
		e.log.Warn("reply not delivered",
			slog.Uint64("ticket_id", uint64(tk.ID)),
			slog.Int64("requester_id", tk.UserID),
			slog.Any("error", err),
		)
		return Reply{Text: t.Format("reply.delivery_failed", vars), Done: true}, nil
	}

	return Reply{Text: t.Format("reply.sent", vars), Done: true}, nil
}
