package models

import (
	"fmt"
	"time"
)

// AlertState is the lifecycle position of an alert.
// NEW -> ACTIVE -> (ESCALATED | RESOLVED) -> EXPIRED
type AlertState string

const (
	AlertNew       AlertState = "NEW"
	AlertActive    AlertState = "ACTIVE"
	AlertEscalated AlertState = "ESCALATED"
	AlertResolved  AlertState = "RESOLVED"
	AlertExpired   AlertState = "EXPIRED"
)

// AlertPriority maps severity bands onto delivery urgency.
type AlertPriority string

const (
	PriorityInfo     AlertPriority = "info"
	PriorityWarning  AlertPriority = "warning"
	PriorityCritical AlertPriority = "critical"
)

// Alert wraps an AnomalyEvent or CorrelationHypothesis for its lifecycle.
// The lifecycle manager is the sole writer; everyone else observes copies.
type Alert struct {
	ID          string        `json:"id"`
	Fingerprint string        `json:"fingerprint"`
	SignalKey   string        `json:"signal_key"`
	Kind        string        `json:"kind"`
	State       AlertState    `json:"state"`
	Priority    AlertPriority `json:"priority"`
	Severity    float64       `json:"severity"`
	Message     string        `json:"message,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	LastSeenAt  time.Time     `json:"last_seen_at"`
	ResolvedAt  time.Time     `json:"resolved_at,omitempty"`

	Anomaly     *AnomalyEvent          `json:"anomaly,omitempty"`
	Correlation *CorrelationHypothesis `json:"correlation,omitempty"`
}

// Fingerprint builds the dedup key for an alert condition.
func Fingerprint(signalKey, kind string) string {
	return fmt.Sprintf("%s|%s", signalKey, kind)
}

// IsOpen reports whether the alert still represents a live condition.
func (a *Alert) IsOpen() bool {
	return a.State == AlertNew || a.State == AlertActive || a.State == AlertEscalated
}
