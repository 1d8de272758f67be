// Package access decides who may use operator features.
package access

import (
	"sync"

	"github.com/Proton-105/stockroom-bot/pkg/config"
)

// Policy holds the admin allow-list and the staff group ids. It is swapped on config reload.
type Policy struct {
	mu        sync.RWMutex
	admins    map[int64]struct{}
	adminIDs  []int64
	support   int64
	questions int64
}

// NewPolicy builds a policy from the admin config section.
func NewPolicy(cfg config.AdminConfig) *Policy {
	p := &Policy{}
	p.Replace(cfg)
	return p
}

// Replace swaps the policy contents.
func (p *Policy) Replace(cfg config.AdminConfig) {
	admins := make(map[int64]struct{}, len(cfg.IDs))
	ids := make([]int64, 0, len(cfg.IDs))
	for _, id := range cfg.IDs {
		if _, dup := admins[id]; dup {
			continue
		}
		admins[id] = struct{}{}
		ids = append(ids, id)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.admins = admins
	p.adminIDs = ids
	p.support = cfg.SupportGroupID
	p.questions = cfg.QuestionsGroupID
}

func (p *Policy) IsAdmin(userID int64) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.admins[userID]
	return ok
}

// Admins returns a copy of the allow-list.
func (p *Policy) Admins() []int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]int64(nil), p.adminIDs...)
}

// IsStaffChat reports whether chatID is one of the configured staff groups.
func (p *Policy) IsStaffChat(chatID int64) bool {
	if chatID == 0 {
		return false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return chatID == p.support || chatID == p.questions
}

// SupportGroup returns the problem and order group id; zero means not configured.
func (p *Policy) SupportGroup() int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.support
}

// QuestionsGroup returns the questions group id; zero means not configured.
func (p *Policy) QuestionsGroup() int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.questions
}

// CanTriage reports whether a message from userID in chatID may work the ticket queue.
func (p *Policy) CanTriage(userID, chatID int64) bool {
	return p.IsAdmin(userID) || p.IsStaffChat(chatID)
}
