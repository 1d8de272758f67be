package state

import (
	"fmt"

	"github.com/Proton-105/stockroom-bot/internal/domain"
)

// Draft holds the flow-specific data of an in-progress conversation.
// Exactly one variant is populated and it must match the flow kind.
type Draft struct {
	Registration *RegistrationDraft `json:"registration,omitempty"`
	Inventory    *InventoryDraft    `json:"inventory,omitempty"`
	Order        *OrderDraft        `json:"order,omitempty"`
	Ticket       *TicketDraft       `json:"ticket,omitempty"`
	Reply        *ReplyDraft        `json:"reply,omitempty"`
	Contact      *ContactDraft      `json:"contact,omitempty"`
	Branch       *BranchDraft       `json:"branch,omitempty"`
	Item         *ItemDraft         `json:"item,omitempty"`
	Schedule     *ScheduleDraft     `json:"schedule,omitempty"`
	Broadcast    *BroadcastDraft    `json:"broadcast,omitempty"`
}

// RegistrationMode narrows registration to the part of the profile being changed.
type RegistrationMode string

const (
	RegistrationFull     RegistrationMode = "full"
	RegistrationLanguage RegistrationMode = "language"
	RegistrationBranch   RegistrationMode = "branch"
)

type RegistrationDraft struct {
	Mode       RegistrationMode `json:"mode"`
	Language   domain.Language  `json:"language,omitempty"`
	BranchID   uint             `json:"branch_id,omitempty"`
	BranchName string           `json:"branch_name,omitempty"`
}

// CatalogItem is a snapshot of an item taken when the flow started.
type CatalogItem struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

type InventoryDraft struct {
	BranchName string        `json:"branch_name"`
	Items      []CatalogItem `json:"items"`
	Counts     []int         `json:"counts"`
}

// Next returns the item awaiting a count, or false when every item is counted.
func (d *InventoryDraft) Next() (CatalogItem, bool) {
	if len(d.Counts) >= len(d.Items) {
		return CatalogItem{}, false
	}
	return d.Items[len(d.Counts)], true
}

// OrderLine is one cart entry; entries keep the order of first selection.
type OrderLine struct {
	ItemID   uint   `json:"item_id"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

type OrderDraft struct {
	BranchName string       `json:"branch_name"`
	Lines      []OrderLine  `json:"lines,omitempty"`
	Pending    *CatalogItem `json:"pending,omitempty"`
}

// Put stores qty for the item, overwriting an earlier quantity.
func (d *OrderDraft) Put(item CatalogItem, qty int) {
	for i := range d.Lines {
		if d.Lines[i].ItemID == item.ID {
			d.Lines[i].Quantity = qty
			d.Lines[i].Name = item.Name
			return
		}
	}
	d.Lines = append(d.Lines, OrderLine{ItemID: item.ID, Name: item.Name, Quantity: qty})
}

// Quantity reports the cart quantity for itemID.
func (d *OrderDraft) Quantity(itemID uint) (int, bool) {
	for _, l := range d.Lines {
		if l.ItemID == itemID {
			return l.Quantity, true
		}
	}
	return 0, false
}

type TicketDraft struct {
	Type       domain.TicketType `json:"type"`
	BranchName string            `json:"branch_name"`
}

type ReplyDraft struct {
	TicketID    uint  `json:"ticket_id,omitempty"`
	RequesterID int64 `json:"requester_id,omitempty"`
}

// ContactDraft edits ContactID, or adds a contact when ContactID is zero.
type ContactDraft struct {
	ContactID  uint   `json:"contact_id,omitempty"`
	Department string `json:"department,omitempty"`
	Info       string `json:"info,omitempty"`
}

// BranchDraft renames BranchID, or adds a branch when BranchID is zero.
type BranchDraft struct {
	BranchID uint   `json:"branch_id,omitempty"`
	Current  string `json:"current,omitempty"`
}

// ItemDraft renames ItemID, or adds an item when ItemID is zero.
type ItemDraft struct {
	ItemID  uint   `json:"item_id,omitempty"`
	Current string `json:"current,omitempty"`
}

type ScheduleDraft struct {
	// Single limits the flow to the day selected by the entry state.
	Single bool `json:"single,omitempty"`
}

// BroadcastDraft targets one branch, or every user when BranchID is zero.
type BroadcastDraft struct {
	BranchID   uint   `json:"branch_id,omitempty"`
	BranchName string `json:"branch_name,omitempty"`
}

// ValidateFor checks that the populated variant matches kind.
func (d Draft) ValidateFor(kind FlowKind) error {
	set := d.populated()
	if len(set) != 1 {
		return fmt.Errorf("draft for %s has %d variants", kind, len(set))
	}
	if want := variantOf(kind); set[0] != want {
		return fmt.Errorf("draft for %s carries %s data", kind, set[0])
	}
	return nil
}

func variantOf(kind FlowKind) string {
	switch kind {
	case FlowFeedback, FlowQuestion:
		return "ticket"
	case FlowAdminReply, FlowTicketReply:
		return "reply"
	case FlowAdminContact:
		return "contact"
	case FlowAdminBranch:
		return "branch"
	case FlowAdminItem:
		return "item"
	case FlowScheduleConfig:
		return "schedule"
	default:
		return string(kind)
	}
}

func (d Draft) populated() []string {
	var out []string
	if d.Registration != nil {
		out = append(out, "registration")
	}
	if d.Inventory != nil {
		out = append(out, "inventory")
	}
	if d.Order != nil {
		out = append(out, "order")
	}
	if d.Ticket != nil {
		out = append(out, "ticket")
	}
	if d.Reply != nil {
		out = append(out, "reply")
	}
	if d.Contact != nil {
		out = append(out, "contact")
	}
	if d.Branch != nil {
		out = append(out, "branch")
	}
	if d.Item != nil {
		out = append(out, "item")
	}
	if d.Schedule != nil {
		out = append(out, "schedule")
	}
	if d.Broadcast != nil {
		out = append(out, "broadcast")
	}
	return out
}

func (d Draft) clone() Draft {
	out := d
	if d.Registration != nil {
		v := *d.Registration
		out.Registration = &v
	}
	if d.Inventory != nil {
		v := *d.Inventory
		v.Items = append([]CatalogItem(nil), d.Inventory.Items...)
		v.Counts = append([]int(nil), d.Inventory.Counts...)
		out.Inventory = &v
	}
	if d.Order != nil {
		v := *d.Order
		v.Lines = append([]OrderLine(nil), d.Order.Lines...)
		if d.Order.Pending != nil {
			p := *d.Order.Pending
			v.Pending = &p
		}
		out.Order = &v
	}
	if d.Ticket != nil {
		v := *d.Ticket
		out.Ticket = &v
	}
	if d.Reply != nil {
		v := *d.Reply
		out.Reply = &v
	}
	if d.Contact != nil {
		v := *d.Contact
		out.Contact = &v
	}
	if d.Branch != nil {
		v := *d.Branch
		out.Branch = &v
	}
	if d.Item != nil {
		v := *d.Item
		out.Item = &v
	}
	if d.Schedule != nil {
		v := *d.Schedule
		out.Schedule = &v
	}
	if d.Broadcast != nil {
		v := *d.Broadcast
		out.Broadcast = &v
	}
	return out
}
