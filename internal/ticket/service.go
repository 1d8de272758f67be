// Package ticket implements the lifecycle of user tickets: creation, triage listing and the single staff reply.
package ticket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Proton-105/stockroom-bot/internal/domain"
	"github.com/Proton-105/stockroom-bot/internal/repository"
	"github.com/Proton-105/stockroom-bot/pkg/metrics"
)

var (
	// ErrNotFound is returned for unknown ticket ids.
	ErrNotFound = errors.New("ticket not found")
	// ErrAlreadyClosed is returned when a reply targets a closed ticket.
	ErrAlreadyClosed = errors.New("ticket already closed")
	// ErrEmptyMessage rejects tickets without a body.
	ErrEmptyMessage = errors.New("ticket message is empty")
	// ErrInvalidType rejects unknown ticket types.
	ErrInvalidType = errors.New("invalid ticket type")
)

// NewTicket carries the fields supplied by the requester.
type NewTicket struct {
	UserID     int64
	UserName   string
	BranchName string
	Message    string
	Type       domain.TicketType
}

// Reply is the staff answer that closes a ticket.
type Reply struct {
	Text          string
	ResponderID   int64
	ResponderName string
}

// ListOptions selects open tickets.
type ListOptions struct {
	Type domain.TicketType
	// Newest lists most recent first; triage queues use oldest first.
	Newest bool
	Limit  int
	Offset int
}

// Service provides business operations over tickets.
type Service struct {
	repo repository.TicketRepository
	log  *slog.Logger
	now  func() time.Time
}

// NewService constructs a new Service instance.
func NewService(repo repository.TicketRepository, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// Create opens a ticket.
func (s *Service) Create(ctx context.Context, in NewTicket) (*domain.Ticket, error) {
	if strings.TrimSpace(in.Message) == "" {
		return nil, ErrEmptyMessage
	}
	if !in.Type.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidType, in.Type)
	}

	t := &domain.Ticket{
		UserID:     in.UserID,
		UserName:   in.UserName,
		BranchName: in.BranchName,
		Message:    in.Message,
		Type:       in.Type,
		Status:     domain.TicketOpen,
		CreatedAt:  s.now(),
	}
	if err := s.repo.Create(ctx, t); err != nil {
		s.log.Error("failed to create ticket", slog.Int64("user_id", in.UserID), slog.Any("error", err))
		return nil, err
	}

	metrics.RecordTicket(string(t.Type), "created")
	s.log.Info("ticket created",
		slog.Uint64("ticket_id", uint64(t.ID)),
		slog.String("type", string(t.Type)),
		slog.Int64("user_id", t.UserID),
	)
	return t, nil
}

// Get returns a ticket by id.
func (s *Service) Get(ctx context.Context, id uint) (*domain.Ticket, error) {
	t, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	return t, err
}

// ListOpen returns open tickets ordered by creation time.
func (s *Service) ListOpen(ctx context.Context, opts ListOptions) ([]domain.Ticket, error) {
	return s.repo.ListOpen(ctx, repository.TicketQuery{
		Type:       opts.Type,
		Descending: opts.Newest,
		Limit:      opts.Limit,
		Offset:     opts.Offset,
	})
}

// CountOpen counts open tickets of a type, or of every type when ticketType is empty.
func (s *Service) CountOpen(ctx context.Context, ticketType domain.TicketType) (int64, error) {
	return s.repo.CountOpen(ctx, ticketType)
}

// Close records the reply and closes the ticket. An empty reply text closes it without reply fields.
// A ticket is closed at most once: concurrent or repeated replies get ErrAlreadyClosed
// and leave the first reply intact.
func (s *Service) Close(ctx context.Context, id uint, reply Reply) (*domain.Ticket, error) {
	if strings.TrimSpace(reply.Text) == "" {
		reply.Text = ""
	}
	closed, err := s.repo.CloseIfOpen(ctx, id, repository.TicketReply{
		Message:       reply.Text,
		ResponderID:   reply.ResponderID,
		ResponderName: reply.ResponderName,
		At:            s.now(),
	})
	if err != nil {
		return nil, err
	}

	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !closed {
		return t, ErrAlreadyClosed
	}

	metrics.RecordTicket(string(t.Type), "closed")
	s.log.Info("ticket closed",
		slog.Uint64("ticket_id", uint64(id)),
		slog.Int64("responder_id", reply.ResponderID),
	)
	return t, nil
}

// Since returns tickets created at or after t; zero t means all time.
func (s *Service) Since(ctx context.Context, t time.Time) ([]domain.Ticket, error) {
	return s.repo.Since(ctx, t)
}

// Partitioned groups tickets by type.
type Partitioned struct {
	Problems  []domain.Ticket
	Questions []domain.Ticket
	Orders    []domain.Ticket
}

// Partition splits tickets by their type field.
func Partition(tickets []domain.Ticket) Partitioned {
	var p Partitioned
	for _, t := range tickets {
		switch t.Type {
		case domain.TicketOrder:
			p.Orders = append(p.Orders, t)
		case domain.TicketQuestion:
			p.Questions = append(p.Questions, t)
		default:
			p.Problems = append(p.Problems, t)
		}
	}
	return p
}
