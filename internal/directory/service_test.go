package directory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/stockroom-bot/internal/domain"
	"github.com/Proton-105/stockroom-bot/internal/repository"
	"github.com/Proton-105/stockroom-bot/internal/testutil"
)

func newService(t *testing.T) *Service {
	t.Helper()
	db := testutil.NewDB(t)
	return NewService(
		repository.NewBranchRepository(db),
		repository.NewItemRepository(db),
		repository.NewContactRepository(db),
		"Головной офис",
		testutil.Logger(),
	)
}

func TestService_Branches(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	head, err := svc.AddBranch(ctx, "  Головной офис ")
	require.NoError(t, err)
	assert.True(t, svc.IsHeadOffice(head))

	_, err = svc.AddBranch(ctx, "Головной офис")
	assert.ErrorIs(t, err, ErrDuplicate)
	_, err = svc.AddBranch(ctx, " ")
	assert.ErrorIs(t, err, ErrEmptyName)

	north, err := svc.AddBranch(ctx, "Север")
	require.NoError(t, err)
	assert.False(t, svc.IsHeadOffice(north))

	require.NoError(t, svc.RenameBranch(ctx, north.ID, "Северный"))
	got, err := svc.Branch(ctx, north.ID)
	require.NoError(t, err)
	assert.Equal(t, "Северный", got.Name)

	require.NoError(t, svc.DeleteBranch(ctx, north.ID))
	_, err = svc.Branch(ctx, north.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_ItemsSoftDelete(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	oil, err := svc.AddItem(ctx, "Масло")
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, "Антифриз")
	require.NoError(t, err)

	require.NoError(t, svc.RemoveItem(ctx, oil.ID))
	assert.ErrorIs(t, svc.RemoveItem(ctx, oil.ID), ErrNotFound)

	_, err = svc.ActiveItem(ctx, oil.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	catalog, err := svc.Catalog(ctx)
	require.NoError(t, err)
	require.Len(t, catalog, 1)
	assert.Equal(t, "Антифриз", catalog[0].Name)
}

func TestService_Contacts(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	c, err := svc.AddContact(ctx, "Бухгалтерия", "+7 700 000 00 00")
	require.NoError(t, err)
	_, err = svc.AddContact(ctx, "Склад", "вн. 102")
	require.NoError(t, err)
	_, err = svc.AddContact(ctx, "Бухгалтерия", "вн. 201")
	require.NoError(t, err)

	require.NoError(t, svc.UpdateContact(ctx, c.ID, "Бухгалтерия", "+7 700 111 11 11"))
	assert.ErrorIs(t, svc.UpdateContact(ctx, 999, "x", "y"), ErrNotFound)

	all, err := svc.Contacts(ctx)
	require.NoError(t, err)
	groups := GroupContacts(all)
	require.Len(t, groups, 2)
	assert.Equal(t, "Бухгалтерия", groups[0].Department)
	assert.Len(t, groups[0].Contacts, 2)

	require.NoError(t, svc.DeleteContact(ctx, c.ID))
	assert.ErrorIs(t, svc.DeleteContact(ctx, c.ID), ErrNotFound)
}

func TestGroupContacts_KeepsOrder(t *testing.T) {
	groups := GroupContacts([]domain.Contact{
		{ID: 1, Department: "B"},
		{ID: 2, Department: "A"},
		{ID: 3, Department: "B"},
	})
	require.Len(t, groups, 2)
	assert.Equal(t, "B", groups[0].Department)
	assert.Equal(t, []uint{1, 3}, []uint{groups[0].Contacts[0].ID, groups[0].Contacts[1].ID})
}
