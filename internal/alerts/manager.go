package alerts

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"TrustPulse/internal/domain/models"
	drepo "TrustPulse/internal/domain/repository"
)

type Config struct {
	WarnAt     float64       // severity >= WarnAt -> warning
	CriticalAt float64       // severity >= CriticalAt -> critical
	EscalateAt float64       // severity crossing this escalates an active alert
	CoolDown   time.Duration // quiet period before RESOLVED
	Retention  time.Duration // RESOLVED age before EXPIRED and GC
}

func (c *Config) normalize() {
	if c.WarnAt <= 0 {
		c.WarnAt = 0.35
	}
	if c.CriticalAt <= c.WarnAt {
		c.CriticalAt = 0.7
	}
	if c.EscalateAt <= 0 {
		c.EscalateAt = 0.8
	}
	if c.CoolDown <= 0 {
		c.CoolDown = 5 * time.Minute
	}
	if c.Retention <= 0 {
		c.Retention = time.Hour
	}
}

// Manager owns the full alert lifecycle: NEW -> ACTIVE -> (ESCALATED |
// RESOLVED) -> EXPIRED. It is the sole writer of alert state; readers get
// copies. Transitions are atomic per dedup fingerprint (one lock guards the
// table, so two concurrent evaluations can never double-create).
type Manager struct {
	cfg     Config
	metrics drepo.Metrics
	sink    drepo.AlertSink

	mu     sync.Mutex
	alerts map[string]*models.Alert
}

func NewManager(cfg Config, metrics drepo.Metrics, sink drepo.AlertSink) *Manager {
	cfg.normalize()
	return &Manager{
		cfg:     cfg,
		metrics: metrics,
		sink:    sink,
		alerts:  make(map[string]*models.Alert),
	}
}

// SetSink attaches the delivery sink. Optional; without one alerts are only
// observable through the query surface.
func (m *Manager) SetSink(sink drepo.AlertSink) { m.sink = sink }

// OnAnomaly folds a detector event into the table: a new fingerprint opens a
// NEW alert, an existing open one is refreshed in place (no duplicate
// notification) and escalated if the severity crosses the threshold.
func (m *Manager) OnAnomaly(ctx context.Context, ev models.AnomalyEvent) models.Alert {
	fp := models.Fingerprint(ev.SignalKey, string(ev.Kind))
	msg := fmt.Sprintf("%s on %s (severity %.2f)", ev.Kind, ev.SignalKey, ev.Severity)

	m.mu.Lock()
	a, notify := m.touch(fp, ev.SignalKey, string(ev.Kind), ev.Severity, ev.DetectedAt, msg)
	a.Anomaly = &ev
	cp := *a
	m.mu.Unlock()

	if notify {
		m.publish(ctx, &cp)
	}
	return cp
}

// OnCorrelation folds a significant hypothesis into the table. Inconclusive
// and no-correlation results never open alerts; sustained absence lets the
// cool-down sweep resolve any prior one.
func (m *Manager) OnCorrelation(ctx context.Context, h models.CorrelationHypothesis) (models.Alert, bool) {
	if h.Status != models.HypothesisSignificant {
		return models.Alert{}, false
	}
	pair := h.EventKey + "->" + h.ReactionKey
	fp := models.Fingerprint(pair, "lag-correlation")
	msg := fmt.Sprintf("lag correlation %s r=%.2f lag=%s", pair, h.Coefficient, h.BestLag)

	m.mu.Lock()
	a, notify := m.touch(fp, h.EventKey, "lag-correlation", math.Abs(h.Coefficient), h.ComputedAt, msg)
	a.Correlation = &h
	cp := *a
	m.mu.Unlock()

	if notify {
		m.publish(ctx, &cp)
	}
	return cp, true
}

// touch creates or refreshes the alert under m.mu. The returned bool says
// whether the change warrants a notification (creation or state change).
func (m *Manager) touch(fp, signalKey, kind string, severity float64, seenAt time.Time, msg string) (*models.Alert, bool) {
	now := time.Now()
	if seenAt.IsZero() {
		seenAt = now
	}

	a, ok := m.alerts[fp]
	if !ok || !a.IsOpen() {
		a = &models.Alert{
			ID:          fmt.Sprintf("%s-%d", fp, now.UnixNano()),
			Fingerprint: fp,
			SignalKey:   signalKey,
			Kind:        kind,
			State:       models.AlertNew,
			Priority:    m.priorityFor(severity),
			Severity:    severity,
			Message:     msg,
			CreatedAt:   now,
			UpdatedAt:   now,
			LastSeenAt:  seenAt,
		}
		m.alerts[fp] = a
		m.metrics.RecordAlertTransition(string(models.AlertNew))
		return a, true
	}

	// refresh in place
	a.LastSeenAt = seenAt
	a.UpdatedAt = now
	a.Message = msg
	if severity > a.Severity {
		a.Severity = severity
		a.Priority = m.priorityFor(severity)
	}
	if a.State == models.AlertNew {
		a.State = models.AlertActive
		m.metrics.RecordAlertTransition(string(models.AlertActive))
		return a, true
	}
	if a.State == models.AlertActive && a.Severity >= m.cfg.EscalateAt {
		a.State = models.AlertEscalated
		m.metrics.RecordAlertTransition(string(models.AlertEscalated))
		return a, true
	}
	return a, false
}

// Sweep resolves open alerts whose condition stayed quiet past the
// cool-down, expires resolved ones past retention, and drops expired ones.
func (m *Manager) Sweep(ctx context.Context, now time.Time) {
	var changed []*models.Alert

	m.mu.Lock()
	for fp, a := range m.alerts {
		switch {
		case a.IsOpen() && now.Sub(a.LastSeenAt) >= m.cfg.CoolDown:
			a.State = models.AlertResolved
			a.ResolvedAt = now
			a.UpdatedAt = now
			m.metrics.RecordAlertTransition(string(models.AlertResolved))
			cp := *a
			changed = append(changed, &cp)
		case a.State == models.AlertResolved && now.Sub(a.ResolvedAt) >= m.cfg.Retention:
			a.State = models.AlertExpired
			a.UpdatedAt = now
			m.metrics.RecordAlertTransition(string(models.AlertExpired))
			cp := *a
			changed = append(changed, &cp)
		case a.State == models.AlertExpired:
			delete(m.alerts, fp)
		}
	}
	m.mu.Unlock()

	for _, a := range changed {
		m.publish(ctx, a)
	}
}

// List returns copies of alerts, optionally filtered by state, newest first.
func (m *Manager) List(state models.AlertState) []models.Alert {
	m.mu.Lock()
	out := make([]models.Alert, 0, len(m.alerts))
	for _, a := range m.alerts {
		if state != "" && a.State != state {
			continue
		}
		out = append(out, *a)
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out
}

// Open returns copies of all open alerts.
func (m *Manager) Open() []models.Alert {
	m.mu.Lock()
	out := make([]models.Alert, 0, len(m.alerts))
	for _, a := range m.alerts {
		if a.IsOpen() {
			out = append(out, *a)
		}
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out
}

func (m *Manager) priorityFor(severity float64) models.AlertPriority {
	switch {
	case severity >= m.cfg.CriticalAt:
		return models.PriorityCritical
	case severity >= m.cfg.WarnAt:
		return models.PriorityWarning
	default:
		return models.PriorityInfo
	}
}

func (m *Manager) publish(ctx context.Context, a *models.Alert) {
	if m.sink == nil {
		return
	}
	if err := m.sink.Publish(ctx, a); err != nil {
		m.metrics.RecordError("alert_publish")
	}
}
