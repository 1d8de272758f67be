package conversation

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/Proton-105/stockroom-bot/internal/bot/keyboard"
	"github.com/Proton-105/stockroom-bot/internal/domain"
	"github.com/Proton-105/stockroom-bot/internal/state"
	"github.com/Proton-105/stockroom-bot/internal/ticket"
)

type ticketRoute struct {
	ticketType domain.TicketType
	prompt     string
	header     string
	group      int64
}

func (e *Engine) ticketRoute(kind state.FlowKind) ticketRoute {
	if kind == state.FlowQuestion {
		return ticketRoute{
			ticketType: domain.TicketQuestion,
			prompt:     "question.ask",
			header:     "question.header",
			group:      e.access.QuestionsGroup(),
		}
	}
	return ticketRoute{
		ticketType: domain.TicketProblem,
		prompt:     "feedback.ask",
		header:     "feedback.header",
		group:      e.access.SupportGroup(),
	}
}

func (e *Engine) startTicket(ctx context.Context, actor Actor, kind state.FlowKind) (Reply, error) {
	u, t := e.actorProfile(ctx, actor)
	route := e.ticketRoute(kind)
	if route.group == 0 {
		return e.reject(kind, ReasonNotConfigured, t.T("errors.not_configured")), nil
	}

	branchName := "---"
	branch, err := e.branchOf(ctx, u)
	if err != nil {
		return Reply{}, err
	}
	if branch != nil {
		branchName = branch.Name
	}

	draft := &state.TicketDraft{Type: route.ticketType, BranchName: branchName}
	if _, err := e.begin(ctx, actor.UserID, kind, state.StateTicketMessage, state.Draft{Ticket: draft}); err != nil {
		return Reply{}, err
	}
	return Reply{Text: t.T(route.prompt), Markup: keyboard.Remove()}, nil
}

// ticketBody picks the text, then the caption, then a placeholder for bare media.
func ticketBody(in Input) string {
	if s := strings.TrimSpace(in.Text); s != "" {
		return in.Text
	}
	if s := strings.TrimSpace(in.Caption); s != "" {
		return in.Caption
	}
	return MediaPlaceholder
}

func (e *Engine) advanceTicket(ctx context.Context, actor Actor, st *state.UserState, in Input) (Reply, error) {
	d := st.Draft.Ticket
	u, t := e.actorProfile(ctx, actor)
	route := e.ticketRoute(st.Flow)

	if in.IsChoice() {
		return e.retry(st.Flow, t.T(route.prompt), nil), nil
	}
	if route.group == 0 {
		if err := e.abandon(ctx, st, ReasonNotConfigured); err != nil {
			return Reply{}, err
		}
		return Reply{Text: t.T("errors.not_configured"), Markup: e.menuFor(u, t), Rejected: ReasonNotConfigured, Done: true}, nil
	}

	body := ticketBody(in)
	tk, err := e.tickets.Create(ctx, ticket.NewTicket{
		UserID:     actor.UserID,
		UserName:   actor.DisplayName,
		BranchName: d.BranchName,
		Message:    body,
		Type:       d.Type,
	})
	if err != nil {
		return Reply{}, err
	}
	if err := e.finish(ctx, st); err != nil {
		return Reply{}, err
	}

	if err := e.postTicket(ctx, route, tk, actor, in); err != nil {
		e.log.Error("post ticket to staff group",
			slog.Uint64("ticket_id", uint64(tk.ID)),
			slog.Int64("group_id", route.group),
			slog.Any("error", err),
		)
		return Reply{Text: t.T("errors.delivery"), Markup: e.menuFor(u, t), Done: true}, nil
	}

	return Reply{Text: t.T("feedback.sent"), Markup: e.menuFor(u, t), Done: true}, nil
}

// postTicket sends the header, then the requester's message itself with the reply button.
func (e *Engine) postTicket(ctx context.Context, route ticketRoute, tk *domain.Ticket, actor Actor, in Input) error {
	staff := e.i18n.Default()
	header := staff.Format(route.header, map[string]string{
		"Branch": tk.BranchName,
		"User":   actor.DisplayName + " (ID: " + strconv.FormatInt(actor.UserID, 10) + ")",
	}) + "\n" + ticketIDLine(tk.ID)

	if _, err := e.sender.Send(ctx, route.group, header, nil); err != nil {
		return err
	}

	button := keyboard.ReplyToTicket(staff, tk.ID)
	if in.Message.IsZero() {
		_, err := e.sender.Send(ctx, route.group, tk.Message, button)
		return err
	}
	return e.sender.Copy(ctx, in.Message, route.group, button)
}
