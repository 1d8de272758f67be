package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/Proton-105/stockroom-bot/internal/domain"
)

// TicketQuery filters open tickets.
type TicketQuery struct {
	Type       domain.TicketType // empty matches every type
	Descending bool
	Limit      int
	Offset     int
}

// TicketReply is written once when a ticket is closed.
type TicketReply struct {
	Message       string
	ResponderID   int64
	ResponderName string
	At            time.Time
}

// TicketRepository stores tickets.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	FindByID(ctx context.Context, id uint) (*domain.Ticket, error)
	ListOpen(ctx context.Context, q TicketQuery) ([]domain.Ticket, error)
	CountOpen(ctx context.Context, ticketType domain.TicketType) (int64, error)
	// CloseIfOpen records the reply and closes the ticket in one conditional update.
	// It reports false when the ticket is missing or already closed.
	CloseIfOpen(ctx context.Context, id uint, reply TicketReply) (bool, error)
	Since(ctx context.Context, t time.Time) ([]domain.Ticket, error)
}

type ticketRepository struct{ db *gorm.DB }

func NewTicketRepository(db *gorm.DB) TicketRepository { return &ticketRepository{db: db} }

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	if err := r.db.WithContext(ctx).Create(ticket).Error; err != nil {
		return fmt.Errorf("insert ticket: %w", err)
	}
	return nil
}

func (r *ticketRepository) FindByID(ctx context.Context, id uint) (*domain.Ticket, error) {
	var t domain.Ticket
	if err := r.db.WithContext(ctx).First(&t, id).Error; err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

func (r *ticketRepository) openQuery(ctx context.Context, ticketType domain.TicketType) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&domain.Ticket{}).Where("status = ?", domain.TicketOpen)
	if ticketType != "" {
		q = q.Where("type = ?", ticketType)
	}
	return q
}

func (r *ticketRepository) ListOpen(ctx context.Context, q TicketQuery) ([]domain.Ticket, error) {
	order := "created_at, id"
	if q.Descending {
		order = "created_at DESC, id DESC"
	}
	tx := r.openQuery(ctx, q.Type).Order(order)
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	if q.Offset > 0 {
		tx = tx.Offset(q.Offset)
	}

	var tickets []domain.Ticket
	if err := tx.Find(&tickets).Error; err != nil {
		return nil, fmt.Errorf("list open tickets: %w", err)
	}
	return tickets, nil
}

func (r *ticketRepository) CountOpen(ctx context.Context, ticketType domain.TicketType) (int64, error) {
	var n int64
	if err := r.openQuery(ctx, ticketType).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count open tickets: %w", err)
	}
	return n, nil
}

func (r *ticketRepository) CloseIfOpen(ctx context.Context, id uint, reply TicketReply) (bool, error) {
	fields := map[string]any{"status": domain.TicketClosed}
	if reply.Message != "" {
		responder := reply.ResponderID
		fields["reply_message"] = reply.Message
		fields["reply_at"] = reply.At
		fields["responder_id"] = &responder
		fields["responder_name"] = reply.ResponderName
	}
	res := r.db.WithContext(ctx).Model(&domain.Ticket{}).
		Where("id = ? AND status = ?", id, domain.TicketOpen).
		Updates(fields)
	if res.Error != nil {
		return false, fmt.Errorf("close ticket: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *ticketRepository) Since(ctx context.Context, t time.Time) ([]domain.Ticket, error) {
	var tickets []domain.Ticket
	q := r.db.WithContext(ctx).Order("created_at, id")
	if !t.IsZero() {
		q = q.Where("created_at >= ?", t)
	}
	if err := q.Find(&tickets).Error; err != nil {
		return nil, fmt.Errorf("tickets since: %w", err)
	}
	return tickets, nil
}
