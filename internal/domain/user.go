// Package domain holds the records shared by the store, the services and the bot.
package domain

import (
	"strings"
	"time"
)

// Language is a supported interface language.
type Language string

const (
	LanguageRU Language = "ru"
	LanguageKZ Language = "kz"
)

// ParseLanguage accepts a language code and reports whether it is supported.
func ParseLanguage(code string) (Language, bool) {
	switch Language(strings.ToLower(strings.TrimSpace(code))) {
	case LanguageRU:
		return LanguageRU, true
	case LanguageKZ:
		return LanguageKZ, true
	}
	return "", false
}

// Sector is the warehouse section a user is responsible for.
type Sector string

const (
	SectorOil  Sector = "oil"
	SectorAP   Sector = "ap"
	SectorFull Sector = "full"
)

// ClassifySector maps a free-text sector answer: only OIL is oil, only AP is ap, anything else is full.
func ClassifySector(text string) Sector {
	upper := strings.ToUpper(text)
	hasOil := strings.Contains(upper, "OIL")
	hasAP := strings.Contains(upper, "AP")

	switch {
	case hasOil && !hasAP:
		return SectorOil
	case hasAP && !hasOil:
		return SectorAP
	default:
		return SectorFull
	}
}

// User is a staff member known to the bot, keyed by Telegram id.
type User struct {
	TelegramID   int64     `gorm:"primaryKey;autoIncrement:false"`
	FirstName    string    `gorm:"size:255"`
	LastName     string    `gorm:"size:255"`
	Username     string    `gorm:"size:255"`
	Language     Language  `gorm:"size:8;not null;default:ru"`
	BranchID     *uint     `gorm:"index"`
	Sector       Sector    `gorm:"size:16;not null;default:full"`
	LastActiveAt time.Time
	CreatedAt    time.Time
}

// DisplayName returns the name shown to staff.
func (u *User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name != "" {
		return name
	}
	if u.Username != "" {
		return "@" + u.Username
	}
	return "—"
}

// HasBranch reports whether the user picked a branch.
func (u *User) HasBranch() bool {
	return u.BranchID != nil && *u.BranchID != 0
}
