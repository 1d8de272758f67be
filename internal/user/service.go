// Package user manages staff profiles: language, branch and sector.
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/stockroom-bot/internal/domain"
	"github.com/Proton-105/stockroom-bot/internal/repository"
)

// ErrNotFound is returned for users that never contacted the bot.
var ErrNotFound = errors.New("user not found")

// Cache holds recently read profiles.
type Cache interface {
	Get(ctx context.Context, userID int64) (*domain.User, error)
	Set(ctx context.Context, user *domain.User) error
	Invalidate(ctx context.Context, userID int64) error
}

// Service provides business operations over users.
type Service struct {
	repo  repository.UserRepository
	cache Cache
	log   *slog.Logger
	now   func() time.Time
}

// Option customizes Service.
type Option func(*Service)

// WithCache reads profiles through cache.
func WithCache(cache Cache) Option {
	return func(s *Service) { s.cache = cache }
}

// NewService constructs a new Service instance.
func NewService(repo repository.UserRepository, log *slog.Logger, opts ...Option) *Service {
	if log == nil {
		log = slog.Default()
	}
	s := &Service{repo: repo, log: log, now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetOrCreate fetches a user by telegram ID or creates a new profile when missing.
func (s *Service) GetOrCreate(ctx context.Context, telegramUser *telebot.User) (*domain.User, error) {
	if telegramUser == nil {
		return nil, errors.New("telegram user is nil")
	}

	if cached := s.cached(ctx, telegramUser.ID); cached != nil {
		return cached, nil
	}

	user, err := s.repo.FindByID(ctx, telegramUser.ID)
	if err == nil {
		s.remember(ctx, user)
		return user, nil
	}

	if !errors.Is(err, repository.ErrNotFound) {
		s.logError("get_or_create.find", telegramUser.ID, err)
		return nil, fmt.Errorf("get user: %w", err)
	}

	lang, ok := domain.ParseLanguage(telegramUser.LanguageCode)
	if !ok {
		lang = domain.LanguageRU
	}

	now := s.now()
	newUser := &domain.User{
		TelegramID:   telegramUser.ID,
		FirstName:    telegramUser.FirstName,
		LastName:     telegramUser.LastName,
		Username:     telegramUser.Username,
		Language:     lang,
		Sector:       domain.SectorFull,
		LastActiveAt: now,
		CreatedAt:    now,
	}

	if err := s.repo.Create(ctx, newUser); err != nil {
		// another update from the same user won the race
		if errors.Is(err, repository.ErrDuplicate) {
			return s.repo.FindByID(ctx, telegramUser.ID)
		}
		s.logError("get_or_create.create", telegramUser.ID, err)
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.log.Info("user registered", slog.Int64("telegram_id", newUser.TelegramID))
	return newUser, nil
}

// Get returns a user by Telegram id.
func (s *Service) Get(ctx context.Context, userID int64) (*domain.User, error) {
	if cached := s.cached(ctx, userID); cached != nil {
		return cached, nil
	}

	u, err := s.repo.FindByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s.remember(ctx, u)
	return u, nil
}

// SaveProfile persists language, branch and sector together.
func (s *Service) SaveProfile(ctx context.Context, userID int64, lang domain.Language, branchID *uint, sector domain.Sector) error {
	err := s.repo.UpdateProfile(ctx, userID, repository.Profile{Language: lang, BranchID: branchID, Sector: sector})
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		s.logError("save_profile", userID, err)
		return err
	}
	s.forget(ctx, userID)
	return nil
}

// UpdateLastActive refreshes the last_active_at field for the user.
func (s *Service) UpdateLastActive(ctx context.Context, userID int64) error {
	if err := s.repo.UpdateLastActiveAt(ctx, userID, s.now()); err != nil {
		s.logError("update_last_active", userID, err)
		return err
	}

	return nil
}

// All returns every known user.
func (s *Service) All(ctx context.Context) ([]domain.User, error) {
	return s.repo.List(ctx)
}

// ByBranch returns users assigned to branchID.
func (s *Service) ByBranch(ctx context.Context, branchID uint) ([]domain.User, error) {
	return s.repo.ListByBranch(ctx, branchID)
}

// PendingReport returns users of regular branches that have not reported since since.
func (s *Service) PendingReport(ctx context.Context, since time.Time, headOffice string) ([]domain.User, error) {
	return s.repo.ListPendingReport(ctx, since, headOffice)
}

func (s *Service) cached(ctx context.Context, userID int64) *domain.User {
	if s.cache == nil {
		return nil
	}
	u, err := s.cache.Get(ctx, userID)
	if err != nil {
		s.log.Warn("user cache read failed", slog.Int64("telegram_id", userID), slog.Any("error", err))
		return nil
	}
	return u
}

func (s *Service) remember(ctx context.Context, u *domain.User) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, u); err != nil {
		s.log.Warn("user cache write failed", slog.Int64("telegram_id", u.TelegramID), slog.Any("error", err))
	}
}

func (s *Service) forget(ctx context.Context, userID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.log.Warn("user cache invalidate failed", slog.Int64("telegram_id", userID), slog.Any("error", err))
	}
}

func (s *Service) logError(operation string, telegramID int64, err error) {
	if s == nil || s.log == nil || err == nil {
		return
	}

	s.log.Error("user service operation failed",
		slog.String("operation", operation),
		slog.Int64("telegram_id", telegramID),
		slog.Any("error", err),
	)
}
