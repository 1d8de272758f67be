package keyboard

import (
	"strconv"

	"github.com/Proton-105/stockroom-bot/internal/domain"
	"github.com/Proton-105/stockroom-bot/internal/i18n"
)

// Callback actions. Payloads follow the action after CallbackDataSeparator.
const (
	ActionLanguage  = "lang"
	ActionBranch    = "branch"
	ActionOrder     = "order"
	ActionReply     = "reply"
	ActionBroadcast = "bc"
	ActionInventory = "inventory"
	ActionAdmin     = "admin"
	ActionSettings  = "settings"
	ActionCancel    = "cancel"
)

// LanguagePicker offers the supported languages.
func LanguagePicker() *Markup {
	return Inline(
		[]InlineButton{Button("🇷🇺 Русский", ActionLanguage, string(domain.LanguageRU))},
		[]InlineButton{Button("🇰🇿 Қазақша", ActionLanguage, string(domain.LanguageKZ))},
	)
}

// BranchPicker lists branches two per row.
func BranchPicker(branches []domain.Branch) *Markup {
	buttons := make([]InlineButton, 0, len(branches))
	for _, b := range branches {
		buttons = append(buttons, Button(b.Name, ActionBranch, strconv.FormatUint(uint64(b.ID), 10)))
	}
	return NewInlineKeyboard().AddGrid(2, buttons...).Markup()
}

// SettingsMenu lets a user change language or branch.
func SettingsMenu(t i18n.Translator) *Markup {
	return Inline(
		[]InlineButton{Button(t.T("settings.change_language"), ActionSettings, "lang")},
		[]InlineButton{Button(t.T("settings.change_branch"), ActionSettings, "branch")},
	)
}

// StartInventory is attached to reminders.
func StartInventory(t i18n.Translator) *Markup {
	return Inline([]InlineButton{Button(t.T("menu.inventory"), ActionInventory, "start")})
}

// ReplyToTicket is attached to ticket posts in staff groups.
func ReplyToTicket(t i18n.Translator, ticketID uint) *Markup {
	return Inline([]InlineButton{Button(
		t.Format("ticket.reply_button", map[string]string{"ID": strconv.FormatUint(uint64(ticketID), 10)}),
		ActionReply,
		strconv.FormatUint(uint64(ticketID), 10),
	)})
}

// CancelButton offers to abandon the current flow.
func CancelButton(t i18n.Translator) *Markup {
	return Inline([]InlineButton{Button(t.T("common.cancel"), ActionCancel)})
}
