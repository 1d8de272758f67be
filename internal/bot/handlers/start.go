package handlers

import (
	"context"

	"github.com/Proton-105/stockroom-bot/internal/bot/keyboard"
	"github.com/Proton-105/stockroom-bot/internal/conversation"
	"github.com/Proton-105/stockroom-bot/internal/state"
)

// Start greets the user and runs registration from the language step.
func (h *Handlers) Start() Handler {
	return PrivateOnly(func(ctx context.Context, u *Update) error {
		_, t := h.translator(ctx, u.UserID)
		welcome := t.Format("start.welcome", map[string]string{"Name": u.DisplayName()})
		if err := h.send(ctx, u, welcome, keyboard.Remove()); err != nil {
			return err
		}

		reply, err := h.flows.Start(ctx, u.Actor(), state.FlowRegistration, conversation.StartOptions{Mode: state.RegistrationFull})
		if err != nil {
			return err
		}
		return h.render(ctx, u, reply)
	})
}

// Help lists the user commands, plus the admin section for admins.
func (h *Handlers) Help() Handler {
	return func(ctx context.Context, u *Update) error {
		profile, t := h.translator(ctx, u.UserID)
		text := t.T("help.user")
		if h.access.IsAdmin(u.UserID) {
			text += "\n\n" + h.i18n.Default().T("help.admin")
		}

		var markup *keyboard.Markup
		if u.Private && profile != nil && profile.HasBranch() {
			markup = keyboard.MainMenu(t)
		}
		return h.send(ctx, u, text, markup)
	}
}
