package handlers

import (
	"context"
)

// Cancel abandons the current flow and returns the user to the main menu.
func (h *Handlers) Cancel() Handler {
	return func(ctx context.Context, u *Update) error {
		reply, err := h.flows.Cancel(ctx, u.Actor())
		if err != nil {
			return err
		}
		if u.IsCallback() {
			u.Answer(reply.Text, false)
		}
		return h.render(ctx, u, reply)
	}
}
