package conversation

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/Proton-105/stockroom-bot/internal/bot/keyboard"
	"github.com/Proton-105/stockroom-bot/internal/directory"
	"github.com/Proton-105/stockroom-bot/internal/state"
)

// nameEditor adds or renames a named directory entry.
type nameEditor struct {
	keys   string
	add    func(ctx context.Context, name string) error
	rename func(ctx context.Context, id uint, name string) error
}

func (e *Engine) branchEditor() nameEditor {
	return nameEditor{
		keys: "admin.branch",
		add: func(ctx context.Context, name string) error {
			_, err := e.directory.AddBranch(ctx, name)
			return err
		},
		rename: e.directory.RenameBranch,
	}
}

func (e *Engine) itemEditor() nameEditor {
	return nameEditor{
		keys: "admin.item",
		add: func(ctx context.Context, name string) error {
			_, err := e.directory.AddItem(ctx, name)
			return err
		},
		rename: e.directory.RenameItem,
	}
}

func (ed nameEditor) prompt(e *Engine, id uint, current string) string {
	t := e.i18n.Default()
	if id == 0 {
		return t.T(ed.keys + ".add")
	}
	return t.Format(ed.keys+".rename", map[string]string{"Current": current})
}

func (e *Engine) startBranchEdit(ctx context.Context, actor Actor, id uint) (Reply, error) {
	current := ""
	if id != 0 {
		b, err := e.directory.Branch(ctx, id)
		if isNotFound(err) {
			return e.reject(state.FlowAdminBranch, ReasonNotFound, e.i18n.Default().T("admin.not_found")), nil
		}
		if err != nil {
			return Reply{}, err
		}
		current = b.Name
	}

	draft := state.Draft{Branch: &state.BranchDraft{BranchID: id, Current: current}}
	if _, err := e.begin(ctx, actor.UserID, state.FlowAdminBranch, state.StateBranchName, draft); err != nil {
		return Reply{}, err
	}
	return Reply{Text: e.branchEditor().prompt(e, id, current), Markup: keyboard.CancelButton(e.i18n.Default())}, nil
}

func (e *Engine) startItemEdit(ctx context.Context, actor Actor, id uint) (Reply, error) {
	current := ""
	if id != 0 {
		it, err := e.directory.ActiveItem(ctx, id)
		if isNotFound(err) {
			return e.reject(state.FlowAdminItem, ReasonNotFound, e.i18n.Default().T("admin.not_found")), nil
		}
		if err != nil {
			return Reply{}, err
		}
		current = it.Name
	}

	draft := state.Draft{Item: &state.ItemDraft{ItemID: id, Current: current}}
	if _, err := e.begin(ctx, actor.UserID, state.FlowAdminItem, state.StateItemName, draft); err != nil {
		return Reply{}, err
	}
	return Reply{Text: e.itemEditor().prompt(e, id, current), Markup: keyboard.CancelButton(e.i18n.Default())}, nil
}

func (e *Engine) advanceBranchEdit(ctx context.Context, st *state.UserState, in Input) (Reply, error) {
	d := st.Draft.Branch
	return e.saveName(ctx, st, in, e.branchEditor(), d.BranchID, d.Current)
}

func (e *Engine) advanceItemEdit(ctx context.Context, st *state.UserState, in Input) (Reply, error) {
	d := st.Draft.Item
	return e.saveName(ctx, st, in, e.itemEditor(), d.ItemID, d.Current)
}

func (e *Engine) saveName(ctx context.Context, st *state.UserState, in Input, ed nameEditor, id uint, current string) (Reply, error) {
	t := e.i18n.Default()
	name := strings.TrimSpace(in.Text)
	if in.IsChoice() || name == "" || (id == 0 && name == KeepCurrent) {
		return e.retry(st.Flow, ed.prompt(e, id, current), keyboard.CancelButton(t)), nil
	}

	if id != 0 && name == KeepCurrent {
		if err := e.finish(ctx, st); err != nil {
			return Reply{}, err
		}
		return Reply{Text: t.T("admin.unchanged"), Done: true}, nil
	}

	var err error
	if id == 0 {
		err = ed.add(ctx, name)
	} else {
		err = ed.rename(ctx, id, name)
	}
	switch {
	case errors.Is(err, directory.ErrDuplicate):
		return e.reject(st.Flow, ReasonDuplicate, t.Format("admin.duplicate", map[string]string{"Name": name})), nil
	case isNotFound(err):
		if err := e.abandon(ctx, st, ReasonNotFound); err != nil {
			return Reply{}, err
		}
		return Reply{Text: t.T("admin.not_found"), Rejected: ReasonNotFound, Done: true}, nil
	case err != nil:
		return Reply{}, err
	}

	if err := e.finish(ctx, st); err != nil {
		return Reply{}, err
	}
	key := ed.keys + ".added"
	if id != 0 {
		key = ed.keys + ".renamed"
	}
	e.log.Info("directory entry saved", slog.String("flow", string(st.Flow)), slog.String("name", name))
	return Reply{Text: t.Format(key, map[string]string{"Name": name}), Done: true}, nil
}

func (e *Engine) startContactEdit(ctx context.Context, actor Actor, id uint) (Reply, error) {
	t := e.i18n.Default()
	draft := &state.ContactDraft{ContactID: id}
	if id != 0 {
		c, err := e.directory.Contact(ctx, id)
		if isNotFound(err) {
			return e.reject(state.FlowAdminContact, ReasonNotFound, t.T("admin.not_found")), nil
		}
		if err != nil {
			return Reply{}, err
		}
		draft.Department = c.Department
		draft.Info = c.Info
	}

	if _, err := e.begin(ctx, actor.UserID, state.FlowAdminContact, state.StateContactDepartment, state.Draft{Contact: draft}); err != nil {
		return Reply{}, err
	}
	return Reply{Text: e.contactPrompt(state.StateContactDepartment, draft), Markup: keyboard.CancelButton(t)}, nil
}

func (e *Engine) contactPrompt(step state.State, d *state.ContactDraft) string {
	t := e.i18n.Default()
	if step == state.StateContactDepartment {
		if d.ContactID == 0 {
			return t.T("admin.contact.department")
		}
		return t.Format("admin.contact.department_edit", map[string]string{"Current": d.Department})
	}
	if d.ContactID == 0 {
		return t.T("admin.contact.info")
	}
	return t.Format("admin.contact.info_edit", map[string]string{"Current": d.Info})
}

func (e *Engine) advanceContactEdit(ctx context.Context, st *state.UserState, in Input) (Reply, error) {
	t := e.i18n.Default()
	d := st.Draft.Contact
	value := strings.TrimSpace(in.Text)
	editing := d.ContactID != 0
	if in.IsChoice() || value == "" || (!editing && value == KeepCurrent) {
		return e.retry(st.Flow, e.contactPrompt(st.CurrentState, d), keyboard.CancelButton(t)), nil
	}

	switch st.CurrentState {
	case state.StateContactDepartment:
		if value != KeepCurrent {
			d.Department = value
		}
		if err := e.fsm.TransitionTo(ctx, st, state.StateContactInfo); err != nil {
			return Reply{}, err
		}
		return Reply{Text: e.contactPrompt(state.StateContactInfo, d), Markup: keyboard.CancelButton(t)}, nil

	case state.StateContactInfo:
		if value != KeepCurrent {
			d.Info = value
		}
		var err error
		if editing {
			err = e.directory.UpdateContact(ctx, d.ContactID, d.Department, d.Info)
		} else {
			_, err = e.directory.AddContact(ctx, d.Department, d.Info)
		}
		if isNotFound(err) {
			if err := e.abandon(ctx, st, ReasonNotFound); err != nil {
				return Reply{}, err
			}
			return Reply{Text: t.T("admin.not_found"), Rejected: ReasonNotFound, Done: true}, nil
		}
		if err != nil {
			return Reply{}, err
		}
		if err := e.finish(ctx, st); err != nil {
			return Reply{}, err
		}

		key := "admin.contact.added"
		if editing {
			key = "admin.contact.updated"
		}
		return Reply{Text: t.Format(key, map[string]string{"Department": d.Department, "Info": d.Info}), Done: true}, nil

	default:
		return e.expire(ctx, st)
	}
}

func (e *Engine) startSchedule(ctx context.Context, actor Actor, day ScheduleDay) (Reply, error) {
	step := state.StateScheduleStartDay
	if day == ScheduleEnd {
		step = state.StateScheduleEndDay
	}

	draft := state.Draft{Schedule: &state.ScheduleDraft{Single: day != ScheduleBoth}}
	if _, err := e.begin(ctx, actor.UserID, state.FlowScheduleConfig, step, draft); err != nil {
		return Reply{}, err
	}
	return Reply{Text: e.schedulePrompt(step), Markup: keyboard.CancelButton(e.i18n.Default())}, nil
}

func (e *Engine) schedulePrompt(step state.State) string {
	if step == state.StateScheduleEndDay {
		return e.i18n.Default().T("admin.schedule.end_day")
	}
	return e.i18n.Default().T("admin.schedule.start_day")
}

// parseDay accepts a day of month.
func parseDay(text string) (int, bool) {
	day, ok := parseCount(text)
	return day, ok && day >= 1 && day <= 31
}

func (e *Engine) advanceSchedule(ctx context.Context, st *state.UserState, in Input) (Reply, error) {
	t := e.i18n.Default()
	day, ok := parseDay(in.Text)
	if in.IsChoice() || !ok {
		return e.retry(st.Flow, t.T("admin.schedule.invalid_day")+"\n"+e.schedulePrompt(st.CurrentState), keyboard.CancelButton(t)), nil
	}
	vars := map[string]string{"Day": strconv.Itoa(day)}

	switch st.CurrentState {
	case state.StateScheduleStartDay:
		if err := e.settings.SetStartDay(ctx, day); err != nil {
			return Reply{}, err
		}
		saved := t.Format("admin.schedule.start_saved", vars)
		if st.Draft.Schedule.Single {
			if err := e.finish(ctx, st); err != nil {
				return Reply{}, err
			}
			return Reply{Text: saved, Done: true}, nil
		}
		if err := e.fsm.TransitionTo(ctx, st, state.StateScheduleEndDay); err != nil {
			return Reply{}, err
		}
		return Reply{Text: saved + "\n\n" + e.schedulePrompt(state.StateScheduleEndDay), Markup: keyboard.CancelButton(t)}, nil

	case state.StateScheduleEndDay:
		if err := e.settings.SetEndDay(ctx, day); err != nil {
			return Reply{}, err
		}
		if err := e.finish(ctx, st); err != nil {
			return Reply{}, err
		}
		return Reply{Text: t.Format("admin.schedule.end_saved", vars), Done: true}, nil

	default:
		return e.expire(ctx, st)
	}
}
