// Package settings exposes the operational switches of inventory collection.
// Every read goes to the store so admin and scheduler writes are seen immediately.
package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/Proton-105/stockroom-bot/internal/domain"
	"github.com/Proton-105/stockroom-bot/internal/repository"
)

var (
	// ErrMalformedDay means a stored schedule day is not a number.
	ErrMalformedDay = errors.New("schedule day is not numeric")
	// ErrDayOutOfRange rejects days outside 1..31.
	ErrDayOutOfRange = errors.New("schedule day must be between 1 and 31")
)

// Schedule is the automatic collection window.
type Schedule struct {
	Enabled  bool
	StartDay int
	EndDay   int
}

// Service reads and writes settings.
type Service struct {
	repo repository.SettingRepository
	log  *slog.Logger
}

// NewService constructs a new Service instance.
func NewService(repo repository.SettingRepository, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, log: log}
}

// get returns the stored value or the default for missing keys.
func (s *Service) get(ctx context.Context, key string) (string, error) {
	v, err := s.repo.Get(ctx, key)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.DefaultSettings[key], nil
	}
	if err != nil {
		return "", fmt.Errorf("get setting %s: %w", key, err)
	}
	return v, nil
}

func (s *Service) setBool(ctx context.Context, key string, on bool) error {
	value := "0"
	if on {
		value = "1"
	}
	if err := s.repo.Set(ctx, key, value); err != nil {
		return err
	}
	s.log.Info("setting changed", slog.String("key", key), slog.String("value", value))
	return nil
}

// InventoryOpen reports whether reports are being collected.
func (s *Service) InventoryOpen(ctx context.Context) (bool, error) {
	v, err := s.get(ctx, domain.SettingInventoryOpen)
	if err != nil {
		return false, err
	}
	return v == "1", nil
}

func (s *Service) SetInventoryOpen(ctx context.Context, open bool) error {
	return s.setBool(ctx, domain.SettingInventoryOpen, open)
}

func (s *Service) AutoMode(ctx context.Context) (bool, error) {
	v, err := s.get(ctx, domain.SettingInventoryAutoMode)
	if err != nil {
		return false, err
	}
	return v == "1", nil
}

func (s *Service) SetAutoMode(ctx context.Context, on bool) error {
	return s.setBool(ctx, domain.SettingInventoryAutoMode, on)
}

// Schedule returns the auto mode flag with both days. ErrMalformedDay is returned for non-numeric days.
func (s *Service) Schedule(ctx context.Context) (Schedule, error) {
	enabled, err := s.AutoMode(ctx)
	if err != nil {
		return Schedule{}, err
	}
	start, err := s.day(ctx, domain.SettingInventoryStartDay)
	if err != nil {
		return Schedule{Enabled: enabled}, err
	}
	end, err := s.day(ctx, domain.SettingInventoryEndDay)
	if err != nil {
		return Schedule{Enabled: enabled}, err
	}
	return Schedule{Enabled: enabled, StartDay: start, EndDay: end}, nil
}

func (s *Service) day(ctx context.Context, key string) (int, error) {
	raw, err := s.get(ctx, key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%s=%q: %w", key, raw, ErrMalformedDay)
	}
	return n, nil
}

func (s *Service) SetStartDay(ctx context.Context, day int) error {
	return s.setDay(ctx, domain.SettingInventoryStartDay, day)
}

func (s *Service) SetEndDay(ctx context.Context, day int) error {
	return s.setDay(ctx, domain.SettingInventoryEndDay, day)
}

func (s *Service) setDay(ctx context.Context, key string, day int) error {
	if day < 1 || day > 31 {
		return ErrDayOutOfRange
	}
	if err := s.repo.Set(ctx, key, strconv.Itoa(day)); err != nil {
		return err
	}
	s.log.Info("schedule day changed", slog.String("key", key), slog.Int("day", day))
	return nil
}
