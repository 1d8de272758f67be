package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/Proton-105/stockroom-bot/internal/domain"
)

// ReportRepository stores submitted inventory reports.
type ReportRepository interface {
	Create(ctx context.Context, report *domain.InventoryReport) error
	// Latest returns up to limit reports, newest first.
	Latest(ctx context.Context, limit int) ([]domain.InventoryReport, error)
	// Since returns reports created at or after t, oldest first. A zero t returns everything.
	Since(ctx context.Context, t time.Time) ([]domain.InventoryReport, error)
}

type reportRepository struct{ db *gorm.DB }

func NewReportRepository(db *gorm.DB) ReportRepository { return &reportRepository{db: db} }

func (r *reportRepository) Create(ctx context.Context, report *domain.InventoryReport) error {
	if err := r.db.WithContext(ctx).Create(report).Error; err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

func (r *reportRepository) Latest(ctx context.Context, limit int) ([]domain.InventoryReport, error) {
	var reports []domain.InventoryReport
	if err := r.db.WithContext(ctx).Order("created_at DESC, id DESC").Limit(limit).Find(&reports).Error; err != nil {
		return nil, fmt.Errorf("latest reports: %w", err)
	}
	return reports, nil
}

func (r *reportRepository) Since(ctx context.Context, t time.Time) ([]domain.InventoryReport, error) {
	var reports []domain.InventoryReport
	q := r.db.WithContext(ctx).Order("created_at, id")
	if !t.IsZero() {
		q = q.Where("created_at >= ?", t)
	}
	if err := q.Find(&reports).Error; err != nil {
		return nil, fmt.Errorf("reports since: %w", err)
	}
	return reports, nil
}
