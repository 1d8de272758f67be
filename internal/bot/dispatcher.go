package bot

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Proton-105/stockroom-bot/internal/bot/handlers"
	"github.com/Proton-105/stockroom-bot/internal/state"
)

// ActiveFlows reports the flow a user is in.
type ActiveFlows interface {
	Active(ctx context.Context, userID int64) (*state.UserState, bool, error)
}

// Dispatcher routes updates of users with an active flow to flow-specific handlers.
type Dispatcher struct {
	flows          ActiveFlows
	flowHandlers   map[state.FlowKind]handlers.Handler
	defaultHandler handlers.Handler
	groupFlows     map[state.FlowKind]bool
	log            *slog.Logger
	mu             sync.RWMutex
}

// NewDispatcher creates a Dispatcher with an empty handlers registry.
func NewDispatcher(flows ActiveFlows, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}

	return &Dispatcher{
		flows:        flows,
		flowHandlers: make(map[state.FlowKind]handlers.Handler),
		groupFlows:   make(map[state.FlowKind]bool),
		log:          log,
	}
}

// RegisterFlowHandler registers a handler for the provided flow.
func (d *Dispatcher) RegisterFlowHandler(kind state.FlowKind, h handlers.Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.flowHandlers[kind] = h
}

// SetDefault handles active flows without a dedicated handler.
func (d *Dispatcher) SetDefault(h handlers.Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.defaultHandler = h
}

// AllowInGroups lets kinds be advanced from group chats. Other flows only take private messages.
func (d *Dispatcher) AllowInGroups(kinds ...state.FlowKind) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, k := range kinds {
		d.groupFlows[k] = true
	}
}

// Dispatch runs the handler of the user's active flow. It reports false when the user is idle
// or the flow does not take updates from this chat.
func (d *Dispatcher) Dispatch(ctx context.Context, u *handlers.Update) (bool, error) {
	if d.flows == nil || u == nil {
		return false, nil
	}

	st, ok, err := d.flows.Active(ctx, u.UserID)
	if err != nil {
		return false, err
	}
	if !ok || st.Flow == "" {
		return false, nil
	}

	handler, allowed := d.lookup(st.Flow, u.Private)
	if !allowed {
		return false, nil
	}
	if handler == nil {
		d.log.Info("no handler registered for flow", slog.String("flow", string(st.Flow)), slog.Int64("user_id", u.UserID))
		return false, nil
	}

	u.Route = "flow:" + string(st.Flow)
	return true, handler(ctx, u)
}

func (d *Dispatcher) lookup(kind state.FlowKind, private bool) (handlers.Handler, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !private && !d.groupFlows[kind] {
		return nil, false
	}
	if h, ok := d.flowHandlers[kind]; ok {
		return h, true
	}
	return d.defaultHandler, true
}
