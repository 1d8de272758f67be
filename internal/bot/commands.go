package bot

// Command constants for Telegram bot commands.
const (
	CommandStart         = "/start"
	CommandHelp          = "/help"
	CommandCancel        = "/cancel"
	CommandAdmin         = "/admin"
	CommandTickets       = "/tickets"
	CommandReport        = "/report"
	CommandRemind        = "/remind"
	CommandAddBranch     = "/add_branch"
	CommandAddItem       = "/add_item"
	CommandAddContact    = "/add_contact"
	CommandDelContact    = "/del_contact"
	CommandContactsAdmin = "/contacts_admin"
)
