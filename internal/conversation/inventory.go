package conversation

import (
	"context"
	"log/slog"
	"strings"

	"github.com/Proton-105/stockroom-bot/internal/bot/keyboard"
	"github.com/Proton-105/stockroom-bot/internal/domain"
	"github.com/Proton-105/stockroom-bot/internal/i18n"
	"github.com/Proton-105/stockroom-bot/internal/report"
	"github.com/Proton-105/stockroom-bot/internal/state"
)

func quantityPrompt(t i18n.Translator, item state.CatalogItem) string {
	return t.Format("inventory.enter_qty", map[string]string{"Item": item.Name})
}

func catalogSnapshot(items []domain.Item) []state.CatalogItem {
	out := make([]state.CatalogItem, 0, len(items))
	for _, it := range items {
		out = append(out, state.CatalogItem{ID: it.ID, Name: it.Name})
	}
	return out
}

func sectorOf(u *domain.User) domain.Sector {
	if u == nil || u.Sector == "" {
		return domain.SectorFull
	}
	return u.Sector
}

// startInventory opens the count walkthrough: registered, not head office, window open, catalog non-empty.
func (e *Engine) startInventory(ctx context.Context, actor Actor) (Reply, error) {
	kind := state.FlowInventory
	u, t := e.actorProfile(ctx, actor)
	if u == nil {
		return e.reject(kind, ReasonNotRegistered, t.T("errors.not_registered")), nil
	}

	branch, err := e.branchOf(ctx, u)
	if err != nil {
		return Reply{}, err
	}
	if branch == nil {
		return e.reject(kind, ReasonNoBranch, t.T("inventory.no_branch")), nil
	}
	if e.directory.IsHeadOffice(branch) {
		return e.reject(kind, ReasonHeadOffice, t.T("inventory.head_office")), nil
	}

	open, err := e.settings.InventoryOpen(ctx)
	if err != nil {
		return Reply{}, err
	}
	if !open {
		return e.reject(kind, ReasonWindowClosed, t.T("inventory.closed")), nil
	}

	items, err := e.directory.Catalog(ctx)
	if err != nil {
		return Reply{}, err
	}
	if len(items) == 0 {
		return e.reject(kind, ReasonEmptyCatalog, t.T("inventory.empty_catalog")), nil
	}

	draft := &state.InventoryDraft{BranchName: branch.Name, Items: catalogSnapshot(items)}
	if _, err := e.begin(ctx, actor.UserID, kind, state.StateInventoryQuantity, state.Draft{Inventory: draft}); err != nil {
		return Reply{}, err
	}

	first, _ := draft.Next()
	text := t.T("inventory.intro") + "\n\n" +
		t.Format("inventory.sector", map[string]string{"Sector": strings.ToUpper(string(sectorOf(u)))}) + "\n\n" +
		quantityPrompt(t, first)
	return Reply{Text: text, Markup: keyboard.Remove()}, nil
}

func (e *Engine) advanceInventory(ctx context.Context, actor Actor, st *state.UserState, in Input) (Reply, error) {
	d := st.Draft.Inventory
	item, ok := d.Next()
	if !ok || st.CurrentState != state.StateInventoryQuantity {
		return e.expire(ctx, st)
	}

	u, t := e.actorProfile(ctx, actor)
	count, ok := parseCount(in.Text)
	if in.IsChoice() || !ok {
		return e.retry(st.Flow, t.T("errors.digit")+"\n"+quantityPrompt(t, item), nil), nil
	}

	d.Counts = append(d.Counts, count)
	if next, more := d.Next(); more {
		if err := e.fsm.TransitionTo(ctx, st, state.StateInventoryQuantity); err != nil {
			return Reply{}, err
		}
		return Reply{Text: quantityPrompt(t, next)}, nil
	}

	lines := make([]report.Line, 0, len(d.Items))
	for i, it := range d.Items {
		lines = append(lines, report.Line{Name: it.Name, Quantity: d.Counts[i]})
	}

	name := actor.DisplayName
	if u != nil && name == "" {
		name = u.DisplayName()
	}
	sub := report.Submission{
		UserID:     actor.UserID,
		UserName:   name,
		BranchName: d.BranchName,
		Sector:     sectorOf(u),
		Lines:      lines,
	}
	if _, err := e.reports.Submit(ctx, sub); err != nil {
		return Reply{}, err
	}
	if err := e.finish(ctx, st); err != nil {
		return Reply{}, err
	}

	e.log.Info("inventory submitted",
		slog.Int64("user_id", actor.UserID),
		slog.String("branch", d.BranchName),
		slog.Int("items", len(lines)),
	)
	return Reply{Text: t.T("inventory.accepted"), Markup: e.menuFor(u, t), Done: true}, nil
}
