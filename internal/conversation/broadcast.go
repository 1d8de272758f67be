package conversation

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/Proton-105/stockroom-bot/internal/bot/keyboard"
	"github.com/Proton-105/stockroom-bot/internal/domain"
	"github.com/Proton-105/stockroom-bot/internal/notify"
	"github.com/Proton-105/stockroom-bot/internal/state"
)

// Broadcast target payloads after the bc action.
const (
	broadcastAll    = "all"
	broadcastBranch = "branch"
)

// BroadcastTargets offers every user or one branch.
func BroadcastTargets(allLabel, cancelLabel string, branches []domain.Branch) *keyboard.Markup {
	buttons := make([]keyboard.InlineButton, 0, len(branches)+2)
	buttons = append(buttons, keyboard.Button(allLabel, keyboard.ActionBroadcast, broadcastAll))
	for _, b := range branches {
		buttons = append(buttons, keyboard.Button("🏢 "+b.Name, keyboard.ActionBroadcast, broadcastBranch, uitoa(b.ID)))
	}
	buttons = append(buttons, keyboard.Button(cancelLabel, keyboard.ActionCancel))
	return keyboard.NewInlineKeyboard().AddGrid(2, buttons...).Markup()
}

func (e *Engine) broadcastTargets(ctx context.Context) (*keyboard.Markup, error) {
	branches, err := e.directory.Branches(ctx)
	if err != nil {
		return nil, err
	}
	t := e.i18n.Default()
	return BroadcastTargets(t.T("broadcast.all"), t.T("common.cancel"), branches), nil
}

func (e *Engine) startBroadcast(ctx context.Context, actor Actor) (Reply, error) {
	markup, err := e.broadcastTargets(ctx)
	if err != nil {
		return Reply{}, err
	}
	draft := state.Draft{Broadcast: &state.BroadcastDraft{}}
	if _, err := e.begin(ctx, actor.UserID, state.FlowBroadcast, state.StateBroadcastTarget, draft); err != nil {
		return Reply{}, err
	}
	return Reply{Text: e.i18n.Default().T("broadcast.choose_target"), Markup: markup}, nil
}

// advanceBroadcast picks the target, then takes the payload message. The copies are sent after the lock is released.
func (e *Engine) advanceBroadcast(ctx context.Context, actor Actor, st *state.UserState, in Input) (Reply, afterFunc, error) {
	t := e.i18n.Default()
	d := st.Draft.Broadcast

	switch st.CurrentState {
	case state.StateBroadcastTarget:
		action, payload, err := keyboard.DecodeCallback(in.Choice)
		parts := keyboard.SplitData(payload)
		valid := err == nil && action == keyboard.ActionBroadcast && len(parts) > 0
		switch {
		case valid && len(parts) == 1 && parts[0] == broadcastAll:
			d.BranchID, d.BranchName = 0, ""
		case valid && len(parts) == 2 && parts[0] == broadcastBranch:
			id, ok := parseID(parts[1])
			if !ok {
				valid = false
				break
			}
			b, err := e.directory.Branch(ctx, id)
			if isNotFound(err) {
				valid = false
				break
			}
			if err != nil {
				return Reply{}, nil, err
			}
			d.BranchID, d.BranchName = b.ID, b.Name
		default:
			valid = false
		}
		if !valid {
			markup, err := e.broadcastTargets(ctx)
			if err != nil {
				return Reply{}, nil, err
			}
			return e.retry(st.Flow, t.T("broadcast.choose_target"), markup), nil, nil
		}

		if err := e.fsm.TransitionTo(ctx, st, state.StateBroadcastPayload); err != nil {
			return Reply{}, nil, err
		}
		return Reply{Text: t.T("broadcast.enter_message"), Markup: keyboard.CancelButton(t)}, nil, nil

	case state.StateBroadcastPayload:
		if in.IsChoice() || in.Message.IsZero() {
			return e.retry(st.Flow, t.T("broadcast.enter_message"), keyboard.CancelButton(t)), nil, nil
		}

		var (
			users []domain.User
			err   error
		)
		if d.BranchID == 0 {
			users, err = e.users.All(ctx)
		} else {
			users, err = e.users.ByBranch(ctx, d.BranchID)
		}
		if err != nil {
			return Reply{}, nil, err
		}

		if len(users) == 0 {
			if err := e.abandon(ctx, st, ReasonNoRecipients); err != nil {
				return Reply{}, nil, err
			}
			return Reply{Text: t.T("broadcast.no_recipients"), Rejected: ReasonNoRecipients, Done: true}, nil, nil
		}
		if err := e.finish(ctx, st); err != nil {
			return Reply{}, nil, err
		}

		payload := in.Message
		after := func(ctx context.Context) Reply {
			started := t.Format("broadcast.started", map[string]string{"Total": strconv.Itoa(len(users))})
			if _, err := e.sender.Send(ctx, actor.ChatID, started, nil); err != nil {
				e.log.Warn("broadcast progress not sent", slog.Any("error", err))
			}
			summary := e.Broadcast(ctx, payload, users)
			e.log.Info("broadcast finished",
				slog.Int64("admin_id", actor.UserID),
				slog.String("branch", d.BranchName),
				slog.Int("total", summary.Total),
				slog.Int("delivered", summary.Delivered),
			)
			return Reply{
				Text: t.Format("broadcast.done", map[string]string{
					"Delivered": strconv.Itoa(summary.Delivered),
					"Total":     strconv.Itoa(summary.Total),
				}),
				Done: true,
			}
		}
		return Reply{}, after, nil

	default:
		reply, err := e.expire(ctx, st)
		return reply, nil, err
	}
}

// Broadcast copies msg unmodified to every user.
func (e *Engine) Broadcast(ctx context.Context, msg notify.MessageRef, users []domain.User) notify.Summary {
	return notify.Fanout(ctx, e.log, "broadcast", users, func(ctx context.Context, u domain.User) error {
		return e.sender.Copy(ctx, msg, u.TelegramID, nil)
	})
}
