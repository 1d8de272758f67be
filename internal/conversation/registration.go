package conversation

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Proton-105/stockroom-bot/internal/bot/keyboard"
	"github.com/Proton-105/stockroom-bot/internal/directory"
	"github.com/Proton-105/stockroom-bot/internal/domain"
	"github.com/Proton-105/stockroom-bot/internal/i18n"
	"github.com/Proton-105/stockroom-bot/internal/state"
	"github.com/Proton-105/stockroom-bot/internal/ticket"
	"github.com/Proton-105/stockroom-bot/internal/user"
)

func isNotFound(err error) bool {
	return errors.Is(err, directory.ErrNotFound) || errors.Is(err, ticket.ErrNotFound) || errors.Is(err, user.ErrNotFound)
}

// LanguagePrompt is shown before the user has a language; the catalog entry is bilingual.
func LanguagePrompt(m *i18n.Manager) string {
	return m.Default().T("registration.choose_language")
}

// SectorKeyboard offers the sector answers as reply buttons.
func SectorKeyboard(t i18n.Translator) *keyboard.Markup {
	return keyboard.ReplyKeyboard(
		[]string{t.T("sector.oil"), t.T("sector.ap")},
		[]string{t.T("sector.full")},
	)
}

func (e *Engine) startRegistration(ctx context.Context, actor Actor, mode state.RegistrationMode) (Reply, error) {
	if mode == "" {
		mode = state.RegistrationFull
	}

	if mode != state.RegistrationBranch {
		draft := state.Draft{Registration: &state.RegistrationDraft{Mode: mode}}
		if _, err := e.begin(ctx, actor.UserID, state.FlowRegistration, state.StateRegistrationLanguage, draft); err != nil {
			return Reply{}, err
		}
		return Reply{Text: LanguagePrompt(e.i18n), Markup: keyboard.LanguagePicker()}, nil
	}

	u, t := e.actorProfile(ctx, actor)
	if u == nil {
		return e.reject(state.FlowRegistration, ReasonNotRegistered, t.T("errors.not_registered")), nil
	}

	branches, err := e.directory.Branches(ctx)
	if err != nil {
		return Reply{}, err
	}
	if len(branches) == 0 {
		return e.reject(state.FlowRegistration, ReasonNoBranches, t.T("registration.no_branches")), nil
	}

	draft := state.Draft{Registration: &state.RegistrationDraft{Mode: mode, Language: u.Language}}
	if _, err := e.begin(ctx, actor.UserID, state.FlowRegistration, state.StateRegistrationBranch, draft); err != nil {
		return Reply{}, err
	}
	return Reply{Text: t.T("registration.choose_branch"), Markup: keyboard.BranchPicker(branches)}, nil
}

func (e *Engine) advanceRegistration(ctx context.Context, actor Actor, st *state.UserState, in Input) (Reply, error) {
	switch st.CurrentState {
	case state.StateRegistrationLanguage:
		return e.chooseLanguage(ctx, actor, st, in)
	case state.StateRegistrationBranch:
		return e.chooseBranch(ctx, actor, st, in)
	case state.StateRegistrationSector:
		return e.chooseSector(ctx, actor, st, in)
	default:
		return e.expire(ctx, st)
	}
}

func (e *Engine) chooseLanguage(ctx context.Context, actor Actor, st *state.UserState, in Input) (Reply, error) {
	action, payload, err := keyboard.DecodeCallback(in.Choice)
	lang, ok := domain.ParseLanguage(payload)
	if err != nil || action != keyboard.ActionLanguage || !ok {
		return e.retry(st.Flow, LanguagePrompt(e.i18n), keyboard.LanguagePicker()), nil
	}

	d := st.Draft.Registration
	d.Language = lang
	t := e.i18n.Translator(string(lang))

	if d.Mode == state.RegistrationLanguage {
		u, err := e.users.Get(ctx, actor.UserID)
		if err != nil && !errors.Is(err, user.ErrNotFound) {
			return Reply{}, err
		}
		if u != nil && u.HasBranch() {
			if err := e.users.SaveProfile(ctx, actor.UserID, lang, u.BranchID, u.Sector); err != nil {
				return Reply{}, err
			}
			if err := e.finish(ctx, st); err != nil {
				return Reply{}, err
			}
			u.Language = lang
			return Reply{Text: t.T("registration.language_saved"), Markup: e.menuFor(u, t), Done: true}, nil
		}
		// Without a branch the profile is incomplete, so carry on as a full registration.
		d.Mode = state.RegistrationFull
	}

	branches, err := e.directory.Branches(ctx)
	if err != nil {
		return Reply{}, err
	}
	if len(branches) == 0 {
		if err := e.abandon(ctx, st, ReasonNoBranches); err != nil {
			return Reply{}, err
		}
		return Reply{Text: t.T("registration.no_branches"), Rejected: ReasonNoBranches, Done: true}, nil
	}

	if err := e.fsm.TransitionTo(ctx, st, state.StateRegistrationBranch); err != nil {
		return Reply{}, err
	}
	return Reply{
		Text:   t.T("registration.language_saved") + "\n\n" + t.T("registration.choose_branch"),
		Markup: keyboard.BranchPicker(branches),
	}, nil
}

func (e *Engine) chooseBranch(ctx context.Context, actor Actor, st *state.UserState, in Input) (Reply, error) {
	d := st.Draft.Registration
	t := e.i18n.Translator(string(d.Language))

	var branch *domain.Branch
	action, payload, err := keyboard.DecodeCallback(in.Choice)
	if id, ok := parseID(payload); err == nil && action == keyboard.ActionBranch && ok {
		branch, err = e.directory.Branch(ctx, id)
		if err != nil && !isNotFound(err) {
			return Reply{}, err
		}
	}
	if branch == nil {
		branches, err := e.directory.Branches(ctx)
		if err != nil {
			return Reply{}, err
		}
		return e.retry(st.Flow, t.T("registration.choose_branch"), keyboard.BranchPicker(branches)), nil
	}

	if e.directory.IsHeadOffice(branch) {
		if err := e.users.SaveProfile(ctx, actor.UserID, d.Language, &branch.ID, domain.SectorFull); err != nil {
			return Reply{}, err
		}
		if err := e.finish(ctx, st); err != nil {
			return Reply{}, err
		}
		e.log.Info("user registered", slog.Int64("user_id", actor.UserID), slog.String("branch", branch.Name))
		return Reply{Text: t.T("registration.branch_saved"), Markup: keyboard.MainMenu(t), Done: true}, nil
	}

	d.BranchID = branch.ID
	d.BranchName = branch.Name
	if err := e.fsm.TransitionTo(ctx, st, state.StateRegistrationSector); err != nil {
		return Reply{}, err
	}
	return Reply{Text: t.T("registration.choose_sector"), Markup: SectorKeyboard(t)}, nil
}

func (e *Engine) chooseSector(ctx context.Context, actor Actor, st *state.UserState, in Input) (Reply, error) {
	d := st.Draft.Registration
	t := e.i18n.Translator(string(d.Language))

	if in.IsChoice() || in.Text == "" {
		return e.retry(st.Flow, t.T("registration.choose_sector"), SectorKeyboard(t)), nil
	}

	sector := domain.ClassifySector(in.Text)
	branchID := d.BranchID
	if err := e.users.SaveProfile(ctx, actor.UserID, d.Language, &branchID, sector); err != nil {
		return Reply{}, err
	}
	if err := e.finish(ctx, st); err != nil {
		return Reply{}, err
	}

	e.log.Info("user registered",
		slog.Int64("user_id", actor.UserID),
		slog.String("branch", d.BranchName),
		slog.String("sector", string(sector)),
	)
	return Reply{
		Text:   t.Format("registration.sector_saved", map[string]string{"Sector": t.T("sector.name." + string(sector))}),
		Markup: keyboard.MainMenu(t),
		Done:   true,
	}, nil
}
