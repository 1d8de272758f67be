package state

// entryStates lists the steps each flow may begin at.
var entryStates = map[FlowKind][]State{
	FlowRegistration:   {StateRegistrationLanguage, StateRegistrationBranch},
	FlowInventory:      {StateInventoryQuantity},
	FlowOrder:          {StateOrderChoosing},
	FlowFeedback:       {StateTicketMessage},
	FlowQuestion:       {StateTicketMessage},
	FlowAdminReply:     {StateReplyTicketID},
	FlowTicketReply:    {StateReplyText},
	FlowAdminContact:   {StateContactDepartment},
	FlowAdminBranch:    {StateBranchName},
	FlowAdminItem:      {StateItemName},
	FlowScheduleConfig: {StateScheduleStartDay, StateScheduleEndDay},
	FlowBroadcast:      {StateBroadcastTarget},
}

// validTransitions contains the permitted forward moves inside flows.
// Returning to StateIdle (flow finished or cancelled) is always allowed.
var validTransitions = map[State][]State{
	StateRegistrationLanguage: {StateRegistrationBranch},
	StateRegistrationBranch:   {StateRegistrationSector},
	StateOrderChoosing:        {StateOrderQuantity},
	StateOrderQuantity:        {StateOrderChoosing},
	StateReplyTicketID:        {StateReplyText},
	StateContactDepartment:    {StateContactInfo},
	StateScheduleStartDay:     {StateScheduleEndDay},
	StateBroadcastTarget:      {StateBroadcastPayload},
}

// IsEntryState reports whether flow may start at step.
func IsEntryState(flow FlowKind, step State) bool {
	for _, s := range entryStates[flow] {
		if s == step {
			return true
		}
	}
	return false
}

// IsTransitionAllowed reports whether moving from one state to another is valid.
func IsTransitionAllowed(from, to State) bool {
	if to == StateIdle || from == to {
		return true
	}

	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}

	for _, state := range allowed {
		if state == to {
			return true
		}
	}

	return false
}
