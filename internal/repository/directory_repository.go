package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/Proton-105/stockroom-bot/internal/domain"
)

// BranchRepository stores warehouse branches.
type BranchRepository interface {
	List(ctx context.Context) ([]domain.Branch, error)
	FindByID(ctx context.Context, id uint) (*domain.Branch, error)
	Create(ctx context.Context, name string) (*domain.Branch, error)
	Rename(ctx context.Context, id uint, name string) error
	// Delete removes the branch row only; users keep their branch reference.
	Delete(ctx context.Context, id uint) error
}

// ItemRepository stores the catalog.
type ItemRepository interface {
	ListActive(ctx context.Context) ([]domain.Item, error)
	FindByID(ctx context.Context, id uint) (*domain.Item, error)
	Create(ctx context.Context, name string) (*domain.Item, error)
	Rename(ctx context.Context, id uint, name string) error
	Deactivate(ctx context.Context, id uint) error
}

// ContactRepository stores the staff phone book.
type ContactRepository interface {
	List(ctx context.Context) ([]domain.Contact, error)
	FindByID(ctx context.Context, id uint) (*domain.Contact, error)
	Create(ctx context.Context, department, info string) (*domain.Contact, error)
	Update(ctx context.Context, id uint, department, info string) error
	Delete(ctx context.Context, id uint) error
}

type branchRepository struct{ db *gorm.DB }

func NewBranchRepository(db *gorm.DB) BranchRepository { return &branchRepository{db: db} }

func (r *branchRepository) List(ctx context.Context) ([]domain.Branch, error) {
	var branches []domain.Branch
	if err := r.db.WithContext(ctx).Order("name").Find(&branches).Error; err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	return branches, nil
}

func (r *branchRepository) FindByID(ctx context.Context, id uint) (*domain.Branch, error) {
	var b domain.Branch
	if err := r.db.WithContext(ctx).First(&b, id).Error; err != nil {
		return nil, translate(err)
	}
	return &b, nil
}

func (r *branchRepository) Create(ctx context.Context, name string) (*domain.Branch, error) {
	b := &domain.Branch{Name: name}
	if err := r.db.WithContext(ctx).Create(b).Error; err != nil {
		return nil, translate(err)
	}
	return b, nil
}

func (r *branchRepository) Rename(ctx context.Context, id uint, name string) error {
	return affected(r.db.WithContext(ctx).Model(&domain.Branch{}).Where("id = ?", id).Update("name", name))
}

func (r *branchRepository) Delete(ctx context.Context, id uint) error {
	return affected(r.db.WithContext(ctx).Delete(&domain.Branch{}, id))
}

type itemRepository struct{ db *gorm.DB }

func NewItemRepository(db *gorm.DB) ItemRepository { return &itemRepository{db: db} }

// ListActive returns active items in catalog order.
func (r *itemRepository) ListActive(ctx context.Context) ([]domain.Item, error) {
	var items []domain.Item
	if err := r.db.WithContext(ctx).Where("active = ?", true).Order("id").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

func (r *itemRepository) FindByID(ctx context.Context, id uint) (*domain.Item, error) {
	var it domain.Item
	if err := r.db.WithContext(ctx).First(&it, id).Error; err != nil {
		return nil, translate(err)
	}
	return &it, nil
}

func (r *itemRepository) Create(ctx context.Context, name string) (*domain.Item, error) {
	it := &domain.Item{Name: name, Active: true}
	if err := r.db.WithContext(ctx).Create(it).Error; err != nil {
		return nil, translate(err)
	}
	return it, nil
}

func (r *itemRepository) Rename(ctx context.Context, id uint, name string) error {
	return affected(r.db.WithContext(ctx).Model(&domain.Item{}).Where("id = ?", id).Update("name", name))
}

// Deactivate hides an active item from the catalog.
func (r *itemRepository) Deactivate(ctx context.Context, id uint) error {
	return affected(r.db.WithContext(ctx).Model(&domain.Item{}).
		Where("id = ? AND active = ?", id, true).
		Update("active", false))
}

type contactRepository struct{ db *gorm.DB }

func NewContactRepository(db *gorm.DB) ContactRepository { return &contactRepository{db: db} }

func (r *contactRepository) List(ctx context.Context) ([]domain.Contact, error) {
	var contacts []domain.Contact
	if err := r.db.WithContext(ctx).Order("department, id").Find(&contacts).Error; err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	return contacts, nil
}

func (r *contactRepository) FindByID(ctx context.Context, id uint) (*domain.Contact, error) {
	var c domain.Contact
	if err := r.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (r *contactRepository) Create(ctx context.Context, department, info string) (*domain.Contact, error) {
	c := &domain.Contact{Department: department, Info: info}
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, translate(err)
	}
	return c, nil
}

func (r *contactRepository) Update(ctx context.Context, id uint, department, info string) error {
	return affected(r.db.WithContext(ctx).Model(&domain.Contact{}).Where("id = ?", id).
		Updates(map[string]any{"department": department, "info": info}))
}

func (r *contactRepository) Delete(ctx context.Context, id uint) error {
	return affected(r.db.WithContext(ctx).Delete(&domain.Contact{}, id))
}

// affected turns a zero-row write into ErrNotFound.
func affected(res *gorm.DB) error {
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
