package keyboard

import (
	"github.com/Proton-105/stockroom-bot/internal/i18n"
)

// Main menu label keys. The router matches incoming text against every language.
const (
	MenuFeedback  = "menu.feedback"
	MenuQuestion  = "menu.question"
	MenuInventory = "menu.inventory"
	MenuOrder     = "menu.order"
	MenuContacts  = "menu.contacts"
	MenuSettings  = "menu.settings"
)

// MainMenuKeys lists the menu keys in display order.
var MainMenuKeys = []string{MenuFeedback, MenuQuestion, MenuInventory, MenuOrder, MenuContacts, MenuSettings}

// MainMenu builds a localized reply keyboard for the bot main menu.
func MainMenu(t i18n.Translator) *Markup {
	lookup := func(key string) string {
		if t == nil {
			return key
		}
		return t.T(key)
	}

	return ReplyKeyboard(
		[]string{lookup(MenuFeedback), lookup(MenuQuestion)},
		[]string{lookup(MenuInventory), lookup(MenuOrder)},
		[]string{lookup(MenuContacts)},
		[]string{lookup(MenuSettings)},
	)
}
