// Package metrics defines the bot's Prometheus instruments.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Proton-105/stockroom-bot/internal/state"
	"github.com/Proton-105/stockroom-bot/pkg/periodic"
)

var (
	botUpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_updates_total",
			Help: "Total number of bot updates handled labeled by route and status",
		},
		[]string{"route", "status"},
	)
	updateDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bot_update_duration_seconds",
			Help:    "Duration of update handling in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	stateTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flow_transitions_total",
			Help: "Total number of conversation step transitions",
		},
		[]string{"flow", "from", "to"},
	)
	flowOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flow_outcomes_total",
			Help: "Conversation flows by outcome (completed, cancelled, rejected)",
		},
		[]string{"flow", "outcome", "reason"},
	)
	ticketsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tickets_total",
			Help: "Ticket lifecycle events by type",
		},
		[]string{"type", "event"},
	)
	deliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deliveries_total",
			Help: "Outbound fan-out messages by kind and result",
		},
		[]string{"kind", "result"},
	)
	schedulerRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_runs_total",
			Help: "Scheduled job runs by job and resulting action",
		},
		[]string{"job", "action"},
	)
	rateLimitChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratelimit_checks_total",
			Help: "Rate limit checks by backend and result",
		},
		[]string{"backend", "result"},
	)
	rateLimitBackendErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratelimit_backend_errors_total",
			Help: "Rate limiter backend failures",
		},
		[]string{"backend"},
	)
	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors split by type and severity",
		},
		[]string{"type", "severity"},
	)
	cacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_lookups_total",
			Help: "Cache lookups split by cache and result",
		},
		[]string{"cache", "result"},
	)
	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state: 0 closed, 1 open, 2 half-open",
		},
		[]string{"name"},
	)
	activeDrafts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_drafts",
			Help: "Current number of users with an unfinished flow",
		},
	)
	draftsByState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "drafts_by_state",
			Help: "Number of unfinished flows per step",
		},
		[]string{"flow", "state"},
	)
)

func init() {
	state.RegisterTransitionRecorder(RecordStateTransition)
}

func orUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}

// RecordUpdate increments update counters and records duration.
func RecordUpdate(route, status string, duration time.Duration) {
	route = orUnknown(route)
	botUpdatesTotal.WithLabelValues(route, orUnknown(status)).Inc()
	updateDurationSeconds.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordStateTransition tracks FSM transitions.
func RecordStateTransition(flow, from, to string) {
	stateTransitionsTotal.WithLabelValues(orUnknown(flow), orUnknown(from), orUnknown(to)).Inc()
}

// RecordFlowOutcome counts finished, cancelled and rejected flows.
func RecordFlowOutcome(flow, outcome, reason string) {
	flowOutcomesTotal.WithLabelValues(orUnknown(flow), orUnknown(outcome), reason).Inc()
}

// RecordTicket counts ticket events such as created and closed.
func RecordTicket(ticketType, event string) {
	ticketsTotal.WithLabelValues(orUnknown(ticketType), orUnknown(event)).Inc()
}

// RecordDelivery counts one fan-out message.
func RecordDelivery(kind string, ok bool) {
	result := "delivered"
	if !ok {
		result = "failed"
	}
	deliveriesTotal.WithLabelValues(orUnknown(kind), result).Inc()
}

// RecordSchedulerRun counts a scheduled job execution.
func RecordSchedulerRun(job, action string) {
	schedulerRunsTotal.WithLabelValues(orUnknown(job), orUnknown(action)).Inc()
}

// RecordRateLimit counts a rate limit decision.
func RecordRateLimit(backend string, allowed bool) {
	result := "allowed"
	if !allowed {
		result = "rejected"
	}
	rateLimitChecksTotal.WithLabelValues(orUnknown(backend), result).Inc()
}

// RecordRateLimitBackendError counts a failed rate limit backend call.
func RecordRateLimitBackendError(backend string) {
	rateLimitBackendErrorsTotal.WithLabelValues(orUnknown(backend)).Inc()
}

// RecordError increments error counters with metadata.
func RecordError(errType, severity string) {
	errorsTotal.WithLabelValues(orUnknown(errType), orUnknown(severity)).Inc()
}

// RecordCacheLookup counts a hit or a miss of the named cache.
func RecordCacheLookup(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookupsTotal.WithLabelValues(orUnknown(cache), result).Inc()
}

// SetBreakerState publishes the state of the named circuit breaker.
func SetBreakerState(name string, state int) {
	breakerState.WithLabelValues(orUnknown(name)).Set(float64(state))
}

// StateCollector periodically gathers draft counts and emits gauge metrics.
type StateCollector struct {
	fsm      state.StateMachine
	interval time.Duration
}

// NewStateCollector builds a metrics collector bound to the provided FSM.
func NewStateCollector(fsm state.StateMachine, interval time.Duration) *StateCollector {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &StateCollector{fsm: fsm, interval: interval}
}

// Run polls the FSM until ctx is cancelled.
func (c *StateCollector) Run(ctx context.Context) {
	if c == nil || c.fsm == nil {
		return
	}

	_ = c.collect(ctx)
	_ = periodic.Every(ctx, c.interval, func(ctx context.Context) { _ = c.collect(ctx) })
}

func (c *StateCollector) collect(ctx context.Context) error {
	states, err := c.fsm.GetAllStates(ctx)
	if err != nil {
		return err
	}

	activeDrafts.Set(float64(len(states)))

	type key struct{ flow, state string }
	counts := make(map[key]int, len(states))
	for _, st := range states {
		if st == nil {
			continue
		}
		counts[key{orUnknown(string(st.Flow)), orUnknown(string(st.CurrentState))}]++
	}

	draftsByState.Reset()
	for k, n := range counts {
		draftsByState.WithLabelValues(k.flow, k.state).Set(float64(n))
	}
	return nil
}
