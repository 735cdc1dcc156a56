package models

// Requests for engine HTTP endpoints. Defined in domain for consistency and reuse.

type SubmitRequest struct {
	SignalKey string   `json:"signal_key" validate:"required"`
	Timestamp int64    `json:"timestamp" validate:"required"` // unix seconds, source-supplied
	Value     *float64 `json:"value"`                         // nil means no-data
	Quality   string   `json:"quality" validate:"omitempty,oneof=stale partial"`
	Producer  string   `json:"producer"`
}

type ScoreRequest struct {
	SignalKey string `query:"signal_key" json:"signal_key" validate:"required"`
}

type WatchlistRequest struct {
	Group string `query:"group" json:"group"`
}

type AnomalyQueryRequest struct {
	SignalKey string `query:"signal_key" json:"signal_key"`
	Limit     int    `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=1000"`
}

type AlertsRequest struct {
	State string `query:"state" json:"state" validate:"omitempty,oneof=NEW ACTIVE ESCALATED RESOLVED EXPIRED"`
}

type CorrelationRequest struct {
	EventKey    string `query:"event_key" json:"event_key" validate:"required"`
	ReactionKey string `query:"reaction_key" json:"reaction_key" validate:"required"`
}

type RiskRequest struct {
	SignalKey   string  `query:"signal_key" json:"signal_key" validate:"required"`
	HorizonDays int     `query:"horizon_days" json:"horizon_days" default:"30" validate:"gte=1,lte=365"`
	Confidence  float64 `query:"confidence" json:"confidence" default:"0.95" validate:"gt=0,lt=1"`
}

type HistoryRequest struct {
	SignalKey string `query:"signal_key" json:"signal_key" validate:"required"`
	N         int    `query:"n" json:"n" default:"600" validate:"gte=1,lte=5000"`
	TF        string `query:"tf" json:"tf" default:"1m" validate:"oneof=1s 1m 5m"`
	From      string `query:"from" json:"from"` // RFC3339 or unix seconds; default now-tf span
	To        string `query:"to" json:"to"`     // RFC3339 or unix seconds; default now
}
