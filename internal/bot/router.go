package bot

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/Proton-105/stockroom-bot/internal/bot/handlers"
	"github.com/Proton-105/stockroom-bot/internal/bot/keyboard"
)

type patternHandler struct {
	name    string
	pattern *regexp.Regexp
	handler handlers.Handler
}

// Router dispatches commands, callbacks, flow steps, menu buttons and patterns, in that order.
type Router struct {
	mu             sync.RWMutex
	commands       map[string]handlers.Handler
	callbacks      map[string]handlers.Handler
	texts          map[string]handlers.Handler
	patterns       []patternHandler
	dispatcher     *Dispatcher
	staleCallback  handlers.Handler
	defaultHandler handlers.Handler
	middlewares    []handlers.Middleware
	log            *slog.Logger
}

// NewRouter builds a Router with empty registries.
func NewRouter(dispatcher *Dispatcher, log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}

	return &Router{
		commands:    make(map[string]handlers.Handler),
		callbacks:   make(map[string]handlers.Handler),
		texts:       make(map[string]handlers.Handler),
		dispatcher:  dispatcher,
		middlewares: make([]handlers.Middleware, 0),
		log:         log,
	}
}

// RegisterCommand registers a handler for a bot command.
func (r *Router) RegisterCommand(cmd string, h handlers.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[strings.ToLower(cmd)] = h
}

// RegisterCallback registers a handler for the callback action, the part of the data before the first separator.
// Actions without a handler go to the active flow.
func (r *Router) RegisterCallback(action string, h handlers.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks[action] = h
}

// RegisterText registers a handler for an exact message text, such as a menu button label.
func (r *Router) RegisterText(text string, h handlers.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts[strings.TrimSpace(text)] = h
}

// RegisterPattern registers a handler for texts matching pattern. Patterns are tried in registration order.
func (r *Router) RegisterPattern(name string, pattern *regexp.Regexp, h handlers.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patterns = append(r.patterns, patternHandler{name: name, pattern: pattern, handler: h})
}

// SetStaleCallback handles button presses that nothing else claimed.
func (r *Router) SetStaleCallback(h handlers.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.staleCallback = h
}

// SetDefault sets the fallback handler for unmatched messages.
func (r *Router) SetDefault(h handlers.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultHandler = h
}

// Use appends a middleware to the chain.
func (r *Router) Use(mw handlers.Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middlewares = append(r.middlewares, mw)
}

// Route directs the incoming update to the appropriate handler.
func (r *Router) Route(ctx context.Context, u *handlers.Update) error {
	if u == nil {
		return nil
	}
	return r.applyMiddlewares(r.dispatch)(ctx, u)
}

func (r *Router) dispatch(ctx context.Context, u *handlers.Update) error {
	if u.IsCallback() {
		return r.handleCallback(ctx, u)
	}
	return r.handleMessage(ctx, u)
}

func (r *Router) handleCallback(ctx context.Context, u *handlers.Update) error {
	action, _, err := keyboard.DecodeCallback(u.CallbackData)
	if err == nil {
		if h := r.getCallbackHandler(action); h != nil {
			u.Route = "callback:" + action
			return h(ctx, u)
		}
	}

	handled, err := r.dispatchFlow(ctx, u)
	if handled || err != nil {
		return err
	}

	if h := r.getStaleCallback(); h != nil {
		u.Route = "callback:stale"
		return h(ctx, u)
	}
	r.log.Info("no callback handler found", slog.String("data", u.CallbackData))
	return nil
}

func (r *Router) handleMessage(ctx context.Context, u *handlers.Update) error {
	if name, _ := u.Command(); name != "" {
		if h := r.getCommandHandler(name); h != nil {
			u.Route = "command:" + name
			return h(ctx, u)
		}
	}

	handled, err := r.dispatchFlow(ctx, u)
	if handled || err != nil {
		return err
	}

	text := strings.TrimSpace(u.Text)
	if text != "" {
		if h := r.getTextHandler(text); h != nil {
			u.Route = "menu"
			return h(ctx, u)
		}
		if p, ok := r.matchPattern(text); ok {
			u.Route = "pattern:" + p.name
			return p.handler(ctx, u)
		}
	}

	if h := r.getDefaultHandler(); h != nil {
		u.Route = "default"
		return h(ctx, u)
	}
	return nil
}

func (r *Router) dispatchFlow(ctx context.Context, u *handlers.Update) (bool, error) {
	if r.dispatcher == nil {
		return false, nil
	}
	return r.dispatcher.Dispatch(ctx, u)
}

func (r *Router) getCallbackHandler(action string) handlers.Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.callbacks[action]
}

func (r *Router) getCommandHandler(cmd string) handlers.Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.commands[cmd]
}

func (r *Router) getTextHandler(text string) handlers.Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.texts[text]
}

func (r *Router) matchPattern(text string) (patternHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.patterns {
		if p.pattern.MatchString(text) {
			return p, true
		}
	}
	return patternHandler{}, false
}

func (r *Router) getStaleCallback() handlers.Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.staleCallback
}

func (r *Router) getDefaultHandler() handlers.Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultHandler
}

// applyMiddlewares wraps the handler with all registered middlewares.
func (r *Router) applyMiddlewares(h handlers.Handler) handlers.Handler {
	middlewares := r.middlewaresSnapshot()
	wrapped := h
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func (r *Router) middlewaresSnapshot() []handlers.Middleware {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.middlewares) == 0 {
		return nil
	}

	snapshot := make([]handlers.Middleware, len(r.middlewares))
	copy(snapshot, r.middlewares)
	return snapshot
}
