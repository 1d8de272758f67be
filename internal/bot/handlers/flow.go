package handlers

import (
	"context"
	"errors"

	"github.com/Proton-105/stockroom-bot/internal/bot/keyboard"
	"github.com/Proton-105/stockroom-bot/internal/conversation"
	"github.com/Proton-105/stockroom-bot/internal/state"
)

// Advance feeds the update to the user's active flow.
func (h *Handlers) Advance() Handler {
	return func(ctx context.Context, u *Update) error {
		reply, err := h.flows.Advance(ctx, u.Actor(), u.Input())
		if errors.Is(err, conversation.ErrNoActiveFlow) {
			if u.IsCallback() {
				return h.Stale()(ctx, u)
			}
			return nil
		}
		if err != nil {
			return err
		}
		return h.render(ctx, u, reply)
	}
}

// StartFlow enters kind from a menu button.
func (h *Handlers) StartFlow(kind state.FlowKind) Handler {
	return func(ctx context.Context, u *Update) error {
		reply, err := h.flows.Start(ctx, u.Actor(), kind, conversation.StartOptions{})
		if err != nil {
			return err
		}
		return h.render(ctx, u, reply)
	}
}

// InventoryButton starts the inventory flow from a reminder.
func (h *Handlers) InventoryButton() Handler {
	return PrivateOnly(h.StartFlow(state.FlowInventory))
}

// ReplyButton starts answering the ticket named by the button.
func (h *Handlers) ReplyButton() Handler {
	return func(ctx context.Context, u *Update) error {
		_, payload, err := keyboard.DecodeCallback(u.CallbackData)
		if err != nil {
			return h.Stale()(ctx, u)
		}
		id, ok := keyboard.ParseID(payload)
		if !ok {
			return h.Stale()(ctx, u)
		}

		reply, err := h.flows.StartTicketReply(ctx, u.Actor(), id, false)
		if err != nil {
			return err
		}
		if reply.Rejected != conversation.ReasonNone {
			u.Answer(reply.Text, true)
			return nil
		}
		return h.render(ctx, u, reply)
	}
}

// TicketTrigger starts a reply when staff type a bare ticket id. Misses stay silent.
func (h *Handlers) TicketTrigger() Handler {
	return func(ctx context.Context, u *Update) error {
		id, ok := keyboard.ParseID(u.Text)
		if !ok {
			return nil
		}
		if !h.access.CanTriage(u.UserID, u.ChatID) {
			return nil
		}

		reply, err := h.flows.StartTicketReply(ctx, u.Actor(), id, true)
		if err != nil {
			return err
		}
		return h.render(ctx, u, reply)
	}
}

// Stale answers buttons that no longer belong to a flow.
func (h *Handlers) Stale() Handler {
	return func(ctx context.Context, u *Update) error {
		_, t := h.translator(ctx, u.UserID)
		u.Answer(t.T("errors.stale"), false)
		return nil
	}
}
