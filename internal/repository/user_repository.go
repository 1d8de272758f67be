package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/Proton-105/stockroom-bot/internal/domain"
)

// Profile is the user-editable part of a User.
type Profile struct {
	Language domain.Language
	BranchID *uint
	Sector   domain.Sector
}

// UserRepository defines persistence operations for users.
type UserRepository interface {
	FindByID(ctx context.Context, id int64) (*domain.User, error)
	Create(ctx context.Context, user *domain.User) error
	UpdateProfile(ctx context.Context, id int64, profile Profile) error
	UpdateLastActiveAt(ctx context.Context, id int64, at time.Time) error
	List(ctx context.Context) ([]domain.User, error)
	ListByBranch(ctx context.Context, branchID uint) ([]domain.User, error)
	// ListPendingReport returns users with a branch other than headOffice and no report since since.
	ListPendingReport(ctx context.Context, since time.Time, headOffice string) ([]domain.User, error)
}

type userRepository struct {
	db  *gorm.DB
	log *slog.Logger
}

// NewUserRepository creates a new gorm-backed user repository.
func NewUserRepository(db *gorm.DB, log *slog.Logger) UserRepository {
	if log == nil {
		log = slog.Default()
	}
	return &userRepository{
		db:  db,
		log: log,
	}
}

// FindByID retrieves a user by their Telegram identifier.
func (r *userRepository) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	var user domain.User
	if err := r.db.WithContext(ctx).First(&user, "telegram_id = ?", id).Error; err != nil {
		err = translate(err)
		if !errors.Is(err, ErrNotFound) {
			r.log.Error("failed to fetch user by telegram id", slog.Int64("telegram_id", id), slog.Any("error", err))
		}
		return nil, err
	}
	return &user, nil
}

// Create persists a new user record.
func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		r.log.Error("failed to create user", slog.Int64("telegram_id", user.TelegramID), slog.Any("error", err))
		return fmt.Errorf("insert user: %w", translate(err))
	}
	return nil
}

func (r *userRepository) UpdateProfile(ctx context.Context, id int64, profile Profile) error {
	res := r.db.WithContext(ctx).Model(&domain.User{}).
		Where("telegram_id = ?", id).
		Updates(map[string]any{
			"language":  profile.Language,
			"branch_id": profile.BranchID,
			"sector":    profile.Sector,
		})
	if res.Error != nil {
		return fmt.Errorf("update user profile: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *userRepository) UpdateLastActiveAt(ctx context.Context, id int64, at time.Time) error {
	return r.db.WithContext(ctx).Model(&domain.User{}).
		Where("telegram_id = ?", id).
		Update("last_active_at", at).Error
}

func (r *userRepository) List(ctx context.Context) ([]domain.User, error) {
	var users []domain.User
	if err := r.db.WithContext(ctx).Order("telegram_id").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (r *userRepository) ListByBranch(ctx context.Context, branchID uint) ([]domain.User, error) {
	var users []domain.User
	if err := r.db.WithContext(ctx).Where("branch_id = ?", branchID).Order("telegram_id").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users by branch: %w", err)
	}
	return users, nil
}

func (r *userRepository) ListPendingReport(ctx context.Context, since time.Time, headOffice string) ([]domain.User, error) {
	var users []domain.User
	err := r.db.WithContext(ctx).
		Joins("JOIN branches ON branches.id = users.branch_id").
		Where("branches.name <> ?", headOffice).
		Where("NOT EXISTS (SELECT 1 FROM inventory_reports r WHERE r.user_id = users.telegram_id AND r.created_at >= ?)", since).
		Order("users.telegram_id").
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("list users pending report: %w", err)
	}
	return users, nil
}
