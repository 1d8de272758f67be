package ratelimit

import (
	"fmt"
	"strconv"
	"time"

	"github.com/Proton-105/stockroom-bot/pkg/config"
)

// Rule allows Limit hits per sliding Window. The zero Rule is disabled.
type Rule struct {
	Limit  int
	Window time.Duration
}

// Enabled reports whether the rule restricts anything.
func (r Rule) Enabled() bool { return r.Limit > 0 && r.Window > 0 }

// Rules holds the parsed throttling configuration.
type Rules struct {
	enabled   bool
	perUser   Rule
	global    Rule
	whitelist map[int64]struct{}
}

// NewRules parses the configured windows. An empty window disables that rule.
func NewRules(cfg config.RateLimitConfig) (*Rules, error) {
	perUser, err := parseRule(cfg.PerUser)
	if err != nil {
		return nil, fmt.Errorf("per_user: %w", err)
	}
	global, err := parseRule(cfg.Global)
	if err != nil {
		return nil, fmt.Errorf("global: %w", err)
	}

	whitelist := make(map[int64]struct{}, len(cfg.Whitelist))
	for _, id := range cfg.Whitelist {
		whitelist[id] = struct{}{}
	}

	return &Rules{
		enabled:   cfg.Enabled,
		perUser:   perUser,
		global:    global,
		whitelist: whitelist,
	}, nil
}

// Enabled reports whether throttling is switched on.
func (r *Rules) Enabled() bool { return r != nil && r.enabled }

// IsWhitelisted returns true if the userID bypasses rate limits.
func (r *Rules) IsWhitelisted(userID int64) bool {
	_, ok := r.whitelist[userID]
	return ok
}

// PerUser is the limit applied to each sender.
func (r *Rules) PerUser() Rule { return r.perUser }

// Global is the limit shared by all senders.
func (r *Rules) Global() Rule { return r.global }

// UserKey is the limiter key of one sender.
func UserKey(userID int64) string { return "user:" + strconv.FormatInt(userID, 10) }

// GlobalKey is the limiter key shared by all senders.
const GlobalKey = "global"

func parseRule(rule config.RateLimitRule) (Rule, error) {
	if rule.Window == "" || rule.Limit == 0 {
		return Rule{}, nil
	}
	if rule.Limit < 0 {
		return Rule{}, fmt.Errorf("limit must not be negative, got %d", rule.Limit)
	}
	window, err := time.ParseDuration(rule.Window)
	if err != nil {
		return Rule{}, fmt.Errorf("parse window %q: %w", rule.Window, err)
	}
	if window <= 0 {
		return Rule{}, fmt.Errorf("window must be positive, got %s", window)
	}
	return Rule{Limit: rule.Limit, Window: window}, nil
}
