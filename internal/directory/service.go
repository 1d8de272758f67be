// Package directory manages branches, the item catalog and staff contacts.
package directory

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/Proton-105/stockroom-bot/internal/domain"
	"github.com/Proton-105/stockroom-bot/internal/repository"
)

var (
	ErrNotFound  = errors.New("directory entry not found")
	ErrDuplicate = errors.New("directory entry already exists")
	ErrEmptyName = errors.New("name is empty")
)

// Service wraps the directory repositories.
type Service struct {
	branches   repository.BranchRepository
	items      repository.ItemRepository
	contacts   repository.ContactRepository
	headOffice string
	log        *slog.Logger
}

// NewService constructs a new Service instance. headOffice names the branch exempt from inventory.
func NewService(
	branches repository.BranchRepository,
	items repository.ItemRepository,
	contacts repository.ContactRepository,
	headOffice string,
	log *slog.Logger,
) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{branches: branches, items: items, contacts: contacts, headOffice: headOffice, log: log}
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrDuplicate):
		return ErrDuplicate
	default:
		return err
	}
}

func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyName
	}
	return name, nil
}

// HeadOffice returns the configured head office name.
func (s *Service) HeadOffice() string { return s.headOffice }

// IsHeadOffice reports whether b is the head office.
func (s *Service) IsHeadOffice(b *domain.Branch) bool {
	return b != nil && b.Name == s.headOffice
}

func (s *Service) Branches(ctx context.Context) ([]domain.Branch, error) {
	return s.branches.List(ctx)
}

func (s *Service) Branch(ctx context.Context, id uint) (*domain.Branch, error) {
	b, err := s.branches.FindByID(ctx, id)
	return b, mapErr(err)
}

func (s *Service) AddBranch(ctx context.Context, name string) (*domain.Branch, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	b, err := s.branches.Create(ctx, name)
	if err != nil {
		return nil, mapErr(err)
	}
	s.log.Info("branch added", slog.Uint64("branch_id", uint64(b.ID)), slog.String("name", name))
	return b, nil
}

func (s *Service) RenameBranch(ctx context.Context, id uint, name string) error {
	name, err := cleanName(name)
	if err != nil {
		return err
	}
	return mapErr(s.branches.Rename(ctx, id, name))
}

// DeleteBranch removes the branch. Users that referenced it keep the dangling id.
func (s *Service) DeleteBranch(ctx context.Context, id uint) error {
	if err := s.branches.Delete(ctx, id); err != nil {
		return mapErr(err)
	}
	s.log.Info("branch deleted", slog.Uint64("branch_id", uint64(id)))
	return nil
}

// Catalog returns the active items in catalog order.
func (s *Service) Catalog(ctx context.Context) ([]domain.Item, error) {
	return s.items.ListActive(ctx)
}

// ActiveItem returns an item that is still in the catalog.
func (s *Service) ActiveItem(ctx context.Context, id uint) (*domain.Item, error) {
	it, err := s.items.FindByID(ctx, id)
	if err != nil {
		return nil, mapErr(err)
	}
	if !it.Active {
		return nil, ErrNotFound
	}
	return it, nil
}

func (s *Service) AddItem(ctx context.Context, name string) (*domain.Item, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	it, err := s.items.Create(ctx, name)
	if err != nil {
		return nil, mapErr(err)
	}
	s.log.Info("item added", slog.Uint64("item_id", uint64(it.ID)), slog.String("name", name))
	return it, nil
}

func (s *Service) RenameItem(ctx context.Context, id uint, name string) error {
	name, err := cleanName(name)
	if err != nil {
		return err
	}
	return mapErr(s.items.Rename(ctx, id, name))
}

// RemoveItem soft-deletes an item.
func (s *Service) RemoveItem(ctx context.Context, id uint) error {
	return mapErr(s.items.Deactivate(ctx, id))
}

func (s *Service) Contacts(ctx context.Context) ([]domain.Contact, error) {
	return s.contacts.List(ctx)
}

func (s *Service) Contact(ctx context.Context, id uint) (*domain.Contact, error) {
	c, err := s.contacts.FindByID(ctx, id)
	return c, mapErr(err)
}

func (s *Service) AddContact(ctx context.Context, department, info string) (*domain.Contact, error) {
	department, err := cleanName(department)
	if err != nil {
		return nil, err
	}
	info, err = cleanName(info)
	if err != nil {
		return nil, err
	}
	return s.contacts.Create(ctx, department, info)
}

func (s *Service) UpdateContact(ctx context.Context, id uint, department, info string) error {
	department, err := cleanName(department)
	if err != nil {
		return err
	}
	info, err = cleanName(info)
	if err != nil {
		return err
	}
	return mapErr(s.contacts.Update(ctx, id, department, info))
}

func (s *Service) DeleteContact(ctx context.Context, id uint) error {
	return mapErr(s.contacts.Delete(ctx, id))
}

// ContactGroup is a department with its contacts.
type ContactGroup struct {
	Department string
	Contacts   []domain.Contact
}

// GroupContacts groups contacts by department, keeping first-seen department order.
func GroupContacts(contacts []domain.Contact) []ContactGroup {
	var groups []ContactGroup
	index := map[string]int{}
	for _, c := range contacts {
		i, ok := index[c.Department]
		if !ok {
			i = len(groups)
			index[c.Department] = i
			groups = append(groups, ContactGroup{Department: c.Department})
		}
		groups[i].Contacts = append(groups[i].Contacts, c)
	}
	return groups
}
