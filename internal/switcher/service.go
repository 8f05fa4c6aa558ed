package switcher

import (
	"context"
	"log/slog"
	"time"

	"hls-switcher/internal/platform/metrics"
)

// DefaultInterval is the default time between probe cycles.
const DefaultInterval = 5 * time.Second

// OriginProber is the part of *Prober the monitor depends on.
type OriginProber interface {
	ProbeBoth(ctx context.Context) (primary, backup ProbeResult)
}

// CycleResult summarises one monitor cycle.
type CycleResult struct {
	Primary ProbeResult
	Backup  ProbeResult
	Stepped bool // false when a probe failure skipped the state machine
	Event   Event
	State   FailoverState
}

// Monitor runs the probe cycle and owns FailoverState. It is the only writer
// of the shared Store.
type Monitor struct {
	prober   OriginProber
	store    Store
	policy   Policy
	interval time.Duration
	log      *slog.Logger
	metrics  *metrics.Metrics

	state FailoverState
}

// NewMonitor returns a Monitor starting with Primary active. Metrics may be nil.
// If interval <= 0, DefaultInterval is used.
func NewMonitor(p OriginProber, store Store, policy Policy, interval time.Duration, log *slog.Logger, m *metrics.Metrics) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	store.SetActive(Primary)
	return &Monitor{
		prober:   p,
		store:    store,
		policy:   policy,
		interval: interval,
		log:      log,
		metrics:  m,
		state:    FailoverState{Active: Primary},
	}
}

// State returns a copy of the current hysteresis state. It must only be
// called from the goroutine driving RunCycle/Run.
func (m *Monitor) State() FailoverState {
	return m.state
}

// RunCycle probes both origins and, only if both probes succeeded, feeds the
// primary's age to the state machine. A failed probe leaves the state untouched.
func (m *Monitor) RunCycle(ctx context.Context) CycleResult {
	primary, backup := m.prober.ProbeBoth(ctx)
	res := CycleResult{Primary: primary, Backup: backup, State: m.state}

	if !primary.OK() || !backup.OK() {
		for _, r := range []ProbeResult{primary, backup} {
			if !r.OK() {
				m.log.Warn("probe failed, skipping state step",
					slog.String("origin", r.Origin.String()),
					slog.String("error", r.Err.Error()))
			}
		}
		return res
	}

	m.log.Debug("probe cycle",
		slog.Float64("primary_age_seconds", primary.Age.Seconds()),
		slog.Float64("backup_age_seconds", backup.Age.Seconds()),
		slog.String("active", m.state.Active.String()))

	next, ev := Step(m.state, primary.Age, m.policy)
	m.state = next
	res.Stepped = true
	res.Event = ev
	res.State = next

	if ev != EventNone {
		m.apply(ev, primary.Age)
	}
	return res
}

// apply publishes a transition to the shared store, metrics and log.
func (m *Monitor) apply(ev Event, primaryAge time.Duration) {
	m.store.SetActive(m.state.Active)
	if m.metrics != nil {
		m.metrics.SetActivePrimary(m.state.Active == Primary)
	}

	switch ev {
	case EventFailover:
		if m.metrics != nil {
			m.metrics.IncFailovers()
		}
		m.log.Warn("failing over to backup origin",
			slog.Float64("primary_age_seconds", primaryAge.Seconds()),
			slog.Duration("threshold", m.policy.Threshold),
			slog.Uint64("windows", uint64(m.policy.Windows)))
	case EventSwitchback:
		if m.metrics != nil {
			m.metrics.IncSwitchbacks()
		}
		m.log.Info("switching back to primary origin",
			slog.Float64("primary_age_seconds", primaryAge.Seconds()),
			slog.Duration("threshold", m.policy.FailbackThreshold),
			slog.Uint64("windows", uint64(m.policy.FailbackWindows)))
	}
}

// Run executes a cycle immediately, then one more each interval after the
// previous cycle completes, until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.Info("monitor stopped")
			return
		case <-timer.C:
			m.RunCycle(ctx)
			timer.Reset(m.interval)
		}
	}
}
