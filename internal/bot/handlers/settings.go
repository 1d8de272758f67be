package handlers

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Proton-105/stockroom-bot/internal/bot/keyboard"
	"github.com/Proton-105/stockroom-bot/internal/conversation"
	"github.com/Proton-105/stockroom-bot/internal/directory"
	"github.com/Proton-105/stockroom-bot/internal/domain"
	"github.com/Proton-105/stockroom-bot/internal/i18n"
	"github.com/Proton-105/stockroom-bot/internal/state"
)

// Settings button payloads.
const (
	settingsLanguage = "lang"
	settingsBranch   = "branch"
)

// Settings shows the current language and branch with buttons to change them.
func (h *Handlers) Settings() Handler {
	return PrivateOnly(func(ctx context.Context, u *Update) error {
		profile, t := h.translator(ctx, u.UserID)
		if profile == nil {
			return h.send(ctx, u, t.T("errors.not_registered"), nil)
		}

		text := t.Format("settings.current", map[string]string{
			"Lang":   languageLabel(t, profile.Language),
			"Branch": h.branchLabel(ctx, t, profile),
		})
		return h.send(ctx, u, text, keyboard.SettingsMenu(t))
	})
}

// SettingsButton starts a narrowed registration for the pressed setting.
func (h *Handlers) SettingsButton() Handler {
	return func(ctx context.Context, u *Update) error {
		_, payload, err := keyboard.DecodeCallback(u.CallbackData)
		if err != nil {
			return h.Stale()(ctx, u)
		}

		var mode state.RegistrationMode
		switch payload {
		case settingsLanguage:
			mode = state.RegistrationLanguage
		case settingsBranch:
			mode = state.RegistrationBranch
		default:
			return h.Stale()(ctx, u)
		}

		reply, err := h.flows.Start(ctx, u.Actor(), state.FlowRegistration, conversation.StartOptions{Mode: mode})
		if err != nil {
			return err
		}
		return h.render(ctx, u, reply)
	}
}

func languageLabel(t i18n.Translator, lang domain.Language) string {
	if lang == domain.LanguageKZ {
		return t.T("settings.lang_kz")
	}
	return t.T("settings.lang_ru")
}

func (h *Handlers) branchLabel(ctx context.Context, t i18n.Translator, profile *domain.User) string {
	if !profile.HasBranch() {
		return t.T("settings.no_branch")
	}
	b, err := h.directory.Branch(ctx, *profile.BranchID)
	if err != nil {
		if !errors.Is(err, directory.ErrNotFound) {
			h.log.Warn("load branch", slog.Int64("user_id", profile.TelegramID), slog.Any("error", err))
		}
		return t.T("settings.no_branch")
	}
	return b.Name
}
