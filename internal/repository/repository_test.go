package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/stockroom-bot/internal/domain"
	"github.com/Proton-105/stockroom-bot/internal/testutil"
)

func TestUserRepository_CreateFindUpdate(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewUserRepository(db, testutil.Logger())
	ctx := context.Background()

	_, err := repo.FindByID(ctx, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.Create(ctx, &domain.User{TelegramID: 1, FirstName: "Aida", Language: domain.LanguageRU, Sector: domain.SectorFull}))
	err = repo.Create(ctx, &domain.User{TelegramID: 1})
	assert.ErrorIs(t, err, ErrDuplicate)

	branchID := uint(7)
	require.NoError(t, repo.UpdateProfile(ctx, 1, Profile{Language: domain.LanguageKZ, BranchID: &branchID, Sector: domain.SectorOil}))

	u, err := repo.FindByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.LanguageKZ, u.Language)
	assert.Equal(t, domain.SectorOil, u.Sector)
	require.NotNil(t, u.BranchID)
	assert.EqualValues(t, 7, *u.BranchID)

	assert.ErrorIs(t, repo.UpdateProfile(ctx, 2, Profile{Language: domain.LanguageRU}), ErrNotFound)
}

func TestUserRepository_ListPendingReport(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	users := NewUserRepository(db, testutil.Logger())
	branches := NewBranchRepository(db)
	reports := NewReportRepository(db)

	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	since := now.Add(-24 * time.Hour)

	north, err := branches.Create(ctx, "Север")
	require.NoError(t, err)
	head, err := branches.Create(ctx, "Головной офис")
	require.NoError(t, err)

	mk := func(id int64, branch *uint) {
		require.NoError(t, users.Create(ctx, &domain.User{TelegramID: id, Language: domain.LanguageRU, BranchID: branch, Sector: domain.SectorFull}))
	}
	mk(1, &north.ID) // reported 23h ago
	mk(2, &north.ID) // reported 25h ago
	mk(3, &north.ID) // never reported
	mk(4, &head.ID)  // head office is exempt
	mk(5, nil)       // no branch yet

	require.NoError(t, reports.Create(ctx, &domain.InventoryReport{UserID: 1, BranchName: "Север", ReportData: "x: 1", CreatedAt: now.Add(-23 * time.Hour)}))
	require.NoError(t, reports.Create(ctx, &domain.InventoryReport{UserID: 2, BranchName: "Север", ReportData: "x: 1", CreatedAt: now.Add(-25 * time.Hour)}))

	pending, err := users.ListPendingReport(ctx, since, "Головной офис")
	require.NoError(t, err)

	var ids []int64
	for _, u := range pending {
		ids = append(ids, u.TelegramID)
	}
	assert.Equal(t, []int64{2, 3}, ids)
}

func TestBranchRepository_UniqueNamesAndDelete(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewBranchRepository(db)
	ctx := context.Background()

	b, err := repo.Create(ctx, "Юг")
	require.NoError(t, err)
	_, err = repo.Create(ctx, "Юг")
	assert.ErrorIs(t, err, ErrDuplicate)

	other, err := repo.Create(ctx, "Запад")
	require.NoError(t, err)
	assert.ErrorIs(t, repo.Rename(ctx, other.ID, "Юг"), ErrDuplicate)

	require.NoError(t, repo.Delete(ctx, b.ID))
	assert.ErrorIs(t, repo.Delete(ctx, b.ID), ErrNotFound)
	_, err = repo.FindByID(ctx, b.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestItemRepository_DeactivateHidesFromCatalog(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewItemRepository(db)
	ctx := context.Background()

	first, err := repo.Create(ctx, "Масло 5W-40")
	require.NoError(t, err)
	second, err := repo.Create(ctx, "Фильтр")
	require.NoError(t, err)

	require.NoError(t, repo.Deactivate(ctx, first.ID))
	assert.ErrorIs(t, repo.Deactivate(ctx, first.ID), ErrNotFound)

	items, err := repo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, second.ID, items[0].ID)

	// the row is kept for history
	stored, err := repo.FindByID(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, stored.Active)
}

func TestTicketRepository_CloseIfOpenIsAtMostOnce(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewTicketRepository(db)
	ctx := context.Background()

	ticket := &domain.Ticket{UserID: 10, Message: "Нет света", Type: domain.TicketProblem, Status: domain.TicketOpen}
	require.NoError(t, repo.Create(ctx, ticket))

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	closed, err := repo.CloseIfOpen(ctx, ticket.ID, TicketReply{Message: "Починили", ResponderID: 99, ResponderName: "Admin", At: at})
	require.NoError(t, err)
	assert.True(t, closed)

	closed, err = repo.CloseIfOpen(ctx, ticket.ID, TicketReply{Message: "Второй ответ", ResponderID: 98, At: at})
	require.NoError(t, err)
	assert.False(t, closed)

	stored, err := repo.FindByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketClosed, stored.Status)
	assert.Equal(t, "Починили", stored.ReplyMessage)
	require.NotNil(t, stored.ResponderID)
	assert.EqualValues(t, 99, *stored.ResponderID)

	closed, err = repo.CloseIfOpen(ctx, 12345, TicketReply{Message: "x"})
	require.NoError(t, err)
	assert.False(t, closed)
}

func TestTicketRepository_ListOpenOrderAndFilter(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewTicketRepository(db)
	ctx := context.Background()

	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	for i, tt := range []domain.TicketType{domain.TicketProblem, domain.TicketOrder, domain.TicketQuestion, domain.TicketProblem} {
		require.NoError(t, repo.Create(ctx, &domain.Ticket{
			UserID: int64(i + 1), Message: "m", Type: tt, Status: domain.TicketOpen,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	asc, err := repo.ListOpen(ctx, TicketQuery{})
	require.NoError(t, err)
	require.Len(t, asc, 4)
	assert.EqualValues(t, 1, asc[0].UserID)

	desc, err := repo.ListOpen(ctx, TicketQuery{Descending: true, Limit: 2})
	require.NoError(t, err)
	require.Len(t, desc, 2)
	assert.EqualValues(t, 4, desc[0].UserID)

	problems, err := repo.ListOpen(ctx, TicketQuery{Type: domain.TicketProblem})
	require.NoError(t, err)
	assert.Len(t, problems, 2)

	n, err := repo.CountOpen(ctx, "")
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)
}

func TestSettingRepository_Upsert(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewSettingRepository(db)
	ctx := context.Background()

	v, err := repo.Get(ctx, domain.SettingInventoryEndDay)
	require.NoError(t, err)
	assert.Equal(t, "1", v)

	require.NoError(t, repo.Set(ctx, domain.SettingInventoryEndDay, "3"))
	require.NoError(t, repo.Set(ctx, "custom", "x"))

	v, err = repo.Get(ctx, domain.SettingInventoryEndDay)
	require.NoError(t, err)
	assert.Equal(t, "3", v)

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
