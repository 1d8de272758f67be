package domain

import (
	"strings"
	"time"
)

// OrderSentinel prefixes the body of material orders.
const OrderSentinel = "[ЗАКАЗ МАТЕРИАЛОВ]"

// TicketType classifies a ticket.
type TicketType string

const (
	TicketProblem  TicketType = "problem"
	TicketQuestion TicketType = "question"
	TicketOrder    TicketType = "order"
)

// Valid reports whether t is a known ticket type.
func (t TicketType) Valid() bool {
	switch t {
	case TicketProblem, TicketQuestion, TicketOrder:
		return true
	}
	return false
}

// TicketStatus is open until a staff reply closes the ticket.
type TicketStatus string

const (
	TicketOpen   TicketStatus = "open"
	TicketClosed TicketStatus = "closed"
)

// Ticket is a request from a user that staff answer exactly once.
type Ticket struct {
	ID            uint         `gorm:"primaryKey"`
	UserID        int64        `gorm:"index;not null"`
	UserName      string       `gorm:"size:255"`
	BranchName    string       `gorm:"size:255"`
	Message       string       `gorm:"type:text;not null"`
	Type          TicketType   `gorm:"size:16;not null;default:problem;index"`
	Status        TicketStatus `gorm:"size:16;not null;default:open;index"`
	CreatedAt     time.Time    `gorm:"index"`
	ReplyMessage  string       `gorm:"type:text"`
	ReplyAt       *time.Time
	ResponderID   *int64
	ResponderName string `gorm:"size:255"`
}

// IsOpen reports whether the ticket still awaits a reply.
func (t *Ticket) IsOpen() bool {
	return t.Status == TicketOpen
}

// Body returns the message without the order prefix.
func (t *Ticket) Body() string {
	return strings.TrimSpace(strings.TrimPrefix(t.Message, OrderSentinel))
}

// Preview shortens the body to at most n runes.
func (t *Ticket) Preview(n int) string {
	runes := []rune(t.Body())
	if len(runes) <= n {
		return string(runes)
	}
	return string(runes[:n]) + "..."
}
