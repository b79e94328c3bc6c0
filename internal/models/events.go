package models

import "time"

// Event types
const (
	EventTypeRunRequested   = "ANALYSIS_RUN_REQUESTED"
	EventTypeRunCompleted   = "ANALYSIS_RUN_COMPLETED"
	EventTypeAlertRaised    = "CASH_ALERT_RAISED"
	EventTypeSummaryReady   = "CASH_SUMMARY_READY"
	EventTypeClearanceReady = "CLEARANCE_BATCH_READY"
)

// Engine names, used for locks, metrics and run commands
const (
	EngineClassification = "classification"
	EngineVelocity       = "velocity"
	EngineClearance      = "clearance"
	EngineAlerts         = "alerts"
	EngineFull           = "full"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// RunRequestedEvent asks the worker to run one engine
type RunRequestedEvent struct {
	BaseEvent
	Engine   string `json:"engine" validate:"required,oneof=classification velocity clearance alerts full"`
	MaxItems int    `json:"max_items,omitempty" validate:"gte=0,lte=500"`
	Mode     string `json:"mode,omitempty" validate:"omitempty,oneof=emergency aggressive conservative"`
}

// RunCompletedEvent published after every engine run
type RunCompletedEvent struct {
	BaseEvent
	Stats RunStats `json:"stats"`
}

// AlertRaisedEvent carries one alert to the notification layer
type AlertRaisedEvent struct {
	BaseEvent
	Alert CashAlert `json:"alert"`
}

// SummaryReadyEvent carries the digest of an alert run
type SummaryReadyEvent struct {
	BaseEvent
	RunID   string            `json:"run_id"`
	Summary CashImpactSummary `json:"summary"`
}

// ClearanceReadyEvent carries a freshly generated clearance batch
type ClearanceReadyEvent struct {
	BaseEvent
	Batch ClearanceBatch `json:"batch"`
}
