package ticket

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/stockroom-bot/internal/domain"
	"github.com/Proton-105/stockroom-bot/internal/repository"
	"github.com/Proton-105/stockroom-bot/internal/testutil"
)

func newService(t *testing.T) *Service {
	t.Helper()
	return NewService(repository.NewTicketRepository(testutil.NewDB(t)), testutil.Logger())
}

func TestService_CreateValidates(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, NewTicket{UserID: 1, Message: "   ", Type: domain.TicketProblem})
	assert.ErrorIs(t, err, ErrEmptyMessage)

	_, err = svc.Create(ctx, NewTicket{UserID: 1, Message: "x", Type: "complaint"})
	assert.ErrorIs(t, err, ErrInvalidType)

	created, err := svc.Create(ctx, NewTicket{UserID: 1, UserName: "Ерлан", BranchName: "Север", Message: "Сломан сканер", Type: domain.TicketProblem})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, domain.TicketOpen, created.Status)
}

func TestService_CloseLifecycle(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, NewTicket{UserID: 5, Message: "Где накладные?", Type: domain.TicketQuestion})
	require.NoError(t, err)

	closed, err := svc.Close(ctx, created.ID, Reply{Text: "В папке", ResponderID: 100, ResponderName: "Менеджер"})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketClosed, closed.Status)
	assert.Equal(t, "В папке", closed.ReplyMessage)

	again, err := svc.Close(ctx, created.ID, Reply{Text: "Другой ответ", ResponderID: 101})
	assert.ErrorIs(t, err, ErrAlreadyClosed)
	require.NotNil(t, again)
	assert.Equal(t, "В папке", again.ReplyMessage)

	_, err = svc.Close(ctx, 999, Reply{Text: "x"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Get(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_ConcurrentRepliesCloseOnce(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, NewTicket{UserID: 5, Message: "Нужен ответ", Type: domain.TicketProblem})
	require.NoError(t, err)

	const replies = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < replies; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Close(ctx, created.ID, Reply{Text: "ответ", ResponderID: int64(i)})
			if err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, success)
}

func TestService_ListOpenExcludesClosed(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, NewTicket{UserID: 1, Message: "a", Type: domain.TicketProblem})
	require.NoError(t, err)
	_, err = svc.Create(ctx, NewTicket{UserID: 2, Message: "b", Type: domain.TicketOrder})
	require.NoError(t, err)
	_, err = svc.Close(ctx, a.ID, Reply{Text: "ok"})
	require.NoError(t, err)

	open, err := svc.ListOpen(ctx, ListOptions{})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, domain.TicketOrder, open[0].Type)

	n, err := svc.CountOpen(ctx, domain.TicketProblem)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPartition(t *testing.T) {
	tickets := []domain.Ticket{
		{ID: 1, Type: domain.TicketProblem},
		// typed as order even without the body prefix
		{ID: 2, Type: domain.TicketOrder, Message: "Фильтр: 2"},
		{ID: 3, Type: domain.TicketQuestion},
		// prefix alone does not make an order
		{ID: 4, Type: domain.TicketProblem, Message: domain.OrderSentinel + " текст"},
	}

	p := Partition(tickets)
	require.Len(t, p.Problems, 2)
	require.Len(t, p.Orders, 1)
	require.Len(t, p.Questions, 1)
	assert.EqualValues(t, 2, p.Orders[0].ID)
}

func TestService_CloseWithoutReply(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, NewTicket{UserID: 5, Message: "Нет этикеток", Type: domain.TicketProblem})
	require.NoError(t, err)

	closed, err := svc.Close(ctx, created.ID, Reply{Text: "  ", ResponderID: 100, ResponderName: "Менеджер"})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketClosed, closed.Status)
	assert.Empty(t, closed.ReplyMessage)
	assert.Nil(t, closed.ReplyAt)
	assert.Nil(t, closed.ResponderID)
	assert.Empty(t, closed.ResponderName)

	_, err = svc.Close(ctx, created.ID, Reply{Text: "поздний ответ"})
	assert.ErrorIs(t, err, ErrAlreadyClosed)
}
