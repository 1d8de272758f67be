package state

import "time"

// State is a step inside a conversation flow. StateIdle means no flow is active.
type State string

const (
	// StateIdle indicates that the user has no active flow.
	StateIdle State = "idle"

	StateRegistrationLanguage State = "registration.language"
	StateRegistrationBranch   State = "registration.branch"
	StateRegistrationSector   State = "registration.sector"

	StateInventoryQuantity State = "inventory.quantity"

	StateOrderChoosing State = "order.choosing"
	StateOrderQuantity State = "order.quantity"

	// StateTicketMessage waits for the problem or question body.
	StateTicketMessage State = "ticket.message"

	StateReplyTicketID State = "reply.ticket_id"
	StateReplyText     State = "reply.text"

	StateContactDepartment State = "contact.department"
	StateContactInfo       State = "contact.info"

	StateBranchName State = "branch.name"
	StateItemName   State = "item.name"

	StateScheduleStartDay State = "schedule.start_day"
	StateScheduleEndDay   State = "schedule.end_day"

	StateBroadcastTarget  State = "broadcast.target"
	StateBroadcastPayload State = "broadcast.payload"
)

// FlowKind names a multi-step conversation.
type FlowKind string

const (
	FlowRegistration   FlowKind = "registration"
	FlowInventory      FlowKind = "inventory"
	FlowOrder          FlowKind = "order"
	FlowFeedback       FlowKind = "feedback"
	FlowQuestion       FlowKind = "question"
	FlowAdminReply     FlowKind = "admin_reply"
	FlowTicketReply    FlowKind = "ticket_reply"
	FlowAdminContact   FlowKind = "admin_contact"
	FlowAdminBranch    FlowKind = "admin_branch"
	FlowAdminItem      FlowKind = "admin_item"
	FlowScheduleConfig FlowKind = "schedule_config"
	FlowBroadcast      FlowKind = "broadcast"
)

// UserState is the single in-progress draft of a user.
type UserState struct {
	UserID       int64     `json:"user_id"`
	Flow         FlowKind  `json:"flow"`
	CurrentState State     `json:"current_state"`
	Draft        Draft     `json:"draft"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Clone returns a deep copy so callers can mutate drafts without aliasing storage.
func (s *UserState) Clone() *UserState {
	if s == nil {
		return nil
	}
	out := *s
	out.Draft = s.Draft.clone()
	return &out
}
