// Package report stores completed inventory counts.
package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/Proton-105/stockroom-bot/internal/domain"
	"github.com/Proton-105/stockroom-bot/internal/repository"
)

// ErrEmpty rejects a report without lines.
var ErrEmpty = errors.New("report has no lines")

// Line is one counted item.
type Line struct {
	Name     string
	Quantity int
}

// Submission is a finished inventory walkthrough.
type Submission struct {
	UserID     int64
	UserName   string
	BranchName string
	Sector     domain.Sector
	Lines      []Line
}

// Service provides operations over inventory reports.
type Service struct {
	repo repository.ReportRepository
	log  *slog.Logger
	now  func() time.Time
}

// NewService constructs a new Service instance.
func NewService(repo repository.ReportRepository, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// FormatLines renders lines as "name: qty", one per line, in the given order.
func FormatLines(lines []Line) string {
	var b strings.Builder
	for i, l := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(l.Name)
		b.WriteString(": ")
		b.WriteString(strconv.Itoa(l.Quantity))
	}
	return b.String()
}

// Submit persists the report. It is immutable afterwards.
func (s *Service) Submit(ctx context.Context, sub Submission) (*domain.InventoryReport, error) {
	if len(sub.Lines) == 0 {
		return nil, ErrEmpty
	}
	sector := sub.Sector
	if sector == "" {
		sector = domain.SectorFull
	}

	r := &domain.InventoryReport{
		BranchName: sub.BranchName,
		UserID:     sub.UserID,
		UserName:   sub.UserName,
		ReportData: FormatLines(sub.Lines),
		Sector:     sector,
		CreatedAt:  s.now(),
	}
	if err := s.repo.Create(ctx, r); err != nil {
		return nil, fmt.Errorf("submit report: %w", err)
	}

	s.log.Info("inventory report submitted",
		slog.Uint64("report_id", uint64(r.ID)),
		slog.Int64("user_id", sub.UserID),
		slog.String("branch", sub.BranchName),
		slog.String("sector", string(sector)),
		slog.Int("lines", len(sub.Lines)),
	)
	return r, nil
}

// Latest returns the newest limit reports.
func (s *Service) Latest(ctx context.Context, limit int) ([]domain.InventoryReport, error) {
	return s.repo.Latest(ctx, limit)
}

// Since returns reports created at or after t; zero t means all time.
func (s *Service) Since(ctx context.Context, t time.Time) ([]domain.InventoryReport, error) {
	return s.repo.Since(ctx, t)
}
