package models

import "time"

// Trigger kinds
const (
	TriggerTime      = "time"
	TriggerCondition = "condition"
	TriggerEvent     = "event"
	TriggerManual    = "manual"
)

// ActionType identifies a rule action
type ActionType string

const (
	ActionTurnOff     ActionType = "turn_off"
	ActionTurnOn      ActionType = "turn_on"
	ActionSetMode     ActionType = "set_mode"
	ActionReducePower ActionType = "reduce_power"
)

// DeviceStatus is the reported on/off state of a device
type DeviceStatus string

const (
	StatusOn   DeviceStatus = "on"
	StatusOff  DeviceStatus = "off"
	StatusIdle DeviceStatus = "idle"
)

// Device categories referenced by the mode activator
const (
	CategoryLight         = "light"
	CategoryTV            = "tv"
	CategoryEntertainment = "entertainment"
	CategoryRefrigerator  = "refrigerator"
	CategorySecurity      = "security"
	CategoryMedical       = "medical"
)

// EssentialPriority marks devices automation must never touch
const EssentialPriority = 9

// TimeTrigger fires at an exact local hour:minute, optionally on selected weekdays
type TimeTrigger struct {
	Hour   int            `json:"hour"`
	Minute int            `json:"minute"`
	Days   []time.Weekday `json:"days,omitempty"`
}

// ConditionTrigger fires on a usage condition (stored, not evaluated yet)
type ConditionTrigger struct {
	Kind  string  `json:"kind"` // e.g. "power_above", "usage_spike"
	Value float64 `json:"value"`
}

// EventTrigger fires on a named external event (stored, not evaluated yet)
type EventTrigger struct {
	Kind  string `json:"kind"` // e.g. "tariff_peak", "grid_alert"
	Value string `json:"value"`
}

// Trigger is a tagged union over the trigger kinds; exactly one of the
// kind-specific fields is set, matching Type.
type Trigger struct {
	Type      string            `json:"type"`
	Time      *TimeTrigger      `json:"time,omitempty"`
	Condition *ConditionTrigger `json:"condition,omitempty"`
	Event     *EventTrigger     `json:"event,omitempty"`
}

// ActionParameters carries kind-specific action settings
type ActionParameters struct {
	Mode string `json:"mode,omitempty"` // for set_mode, e.g. "eco"
}

// Action is what a rule does to its targets when it fires
type Action struct {
	Type          ActionType       `json:"type"`
	TargetDevices []string         `json:"target_devices"`
	Exceptions    []string         `json:"exceptions,omitempty"`
	DeviceFilter  string           `json:"device_filter,omitempty"` // category filter
	Parameters    ActionParameters `json:"parameters,omitempty"`
}

// Constraints bound what a rule may do per firing
type Constraints struct {
	MaxDevices    int                `json:"max_devices,omitempty"`
	MinSavings    float64            `json:"min_savings,omitempty"` // currency units, default 5
	ComfortLimits map[string]float64 `json:"comfort_limits,omitempty"`
}

// Overrides controls how automation yields to the user
type Overrides struct {
	AllowManualOverride     bool `json:"allow_manual_override"`
	OverrideDurationMinutes int  `json:"override_duration_minutes,omitempty"`
	PauseIfRecentActivity   bool `json:"pause_if_recent_activity"`
}

// RuleMetadata is the engine-maintained trust record of a rule
type RuleMetadata struct {
	LastTriggered *time.Time `json:"last_triggered,omitempty"`
	TriggerCount  int        `json:"trigger_count"`
	UndoCount     int        `json:"undo_count"`
	SuccessRate   float64    `json:"success_rate"`
}

// RecordTrigger counts one firing and refreshes the success rate
func (m *RuleMetadata) RecordTrigger(now time.Time) {
	m.TriggerCount++
	m.LastTriggered = &now
	m.Recompute()
}

// RecordUndo counts one user reversal and refreshes the success rate
func (m *RuleMetadata) RecordUndo() {
	m.UndoCount++
	m.Recompute()
}

// Recompute derives SuccessRate; a never-triggered rule scores 100
func (m *RuleMetadata) Recompute() {
	if m.TriggerCount == 0 {
		m.SuccessRate = 100
		return
	}
	m.SuccessRate = float64(m.TriggerCount-m.UndoCount) / float64(m.TriggerCount) * 100
}

// AutomationRule is a user-defined trigger->action record scoped to a home
type AutomationRule struct {
	ID          string       `json:"id"`
	HomeID      string       `json:"home_id"`
	OwnerID     string       `json:"owner_id"`
	Name        string       `json:"name"`
	Enabled     bool         `json:"enabled"`
	Priority    int          `json:"priority"` // 1-10
	Trigger     Trigger      `json:"trigger"`
	Action      Action       `json:"action"`
	Constraints Constraints  `json:"constraints"`
	Overrides   Overrides    `json:"overrides"`
	Metadata    RuleMetadata `json:"metadata"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Device is the engine's view of a device record
type Device struct {
	ID                string       `json:"id"`
	HomeID            string       `json:"home_id"`
	Name              string       `json:"name"`
	Category          string       `json:"category"`
	Status            DeviceStatus `json:"status"`
	IsActive          bool         `json:"is_active"`
	CurrentPower      float64      `json:"current_power"` // watts
	RatedPower        float64      `json:"rated_power"`
	Priority          int          `json:"priority"` // >= 9 means essential
	Mode              string       `json:"mode,omitempty"`
	LastManualControl *time.Time   `json:"last_manual_control,omitempty"`
	MQTTTopic         string       `json:"mqtt_topic,omitempty"`
}

// Essential reports whether automation must leave this device alone
func (d *Device) Essential() bool {
	return d.Priority >= EssentialPriority
}

// NormalizeState enforces the status/power invariant: on implies active with
// non-zero power, off implies inactive with zero power. Runs before every
// persist so a partial mutation can never store an inconsistent record.
func (d *Device) NormalizeState() {
	switch d.Status {
	case StatusOn:
		d.IsActive = true
		if d.CurrentPower == 0 {
			if d.RatedPower > 0 {
				d.CurrentPower = d.RatedPower
			} else {
				d.CurrentPower = 1
			}
		}
	case StatusOff:
		d.IsActive = false
		d.CurrentPower = 0
	}
}

// SafetyCheckResult is one pipeline stage outcome, in pipeline order
type SafetyCheckResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Reason string `json:"reason,omitempty"`
}

// Impact estimates or measures what an action changed
type Impact struct {
	Savings         float64 `json:"savings"` // currency units
	AffectedDevices int     `json:"affected_devices"`
	DurationMinutes int     `json:"duration_minutes,omitempty"`
}

// LoggedAction is the action snapshot stored in an automation log;
// Devices lists only the devices actually mutated.
type LoggedAction struct {
	Type       ActionType       `json:"type"`
	Devices    []string         `json:"devices"`
	Parameters ActionParameters `json:"parameters,omitempty"`
}

// LoggedTrigger is the trigger snapshot that caused a firing
type LoggedTrigger struct {
	TriggerType string       `json:"trigger_type"` // time, condition, event, manual
	Time        *TimeTrigger `json:"time,omitempty"`
	Description string       `json:"description,omitempty"`
}

// User response types on a log
const (
	ResponseAccepted = "accepted"
	ResponseUndone   = "undone"
	ResponseIgnored  = "ignored"
)

// UserResponse records how the user reacted to an executed action
type UserResponse struct {
	Type           string    `json:"type"`
	Timestamp      time.Time `json:"timestamp"`
	ResponseTimeMs int64     `json:"response_time_ms"`
}

// AutomationLog is the audit record of one evaluation attempt. Immutable once
// written except for UserResponse, which the undo flow sets exactly once.
type AutomationLog struct {
	ID              string              `json:"id"`
	RuleID          *string             `json:"rule_id,omitempty"` // nil for manual mode activations
	HomeID          string              `json:"home_id"`
	Action          LoggedAction        `json:"action"`
	Trigger         LoggedTrigger       `json:"trigger"`
	Reasoning       string              `json:"reasoning"`
	SafetyChecks    []SafetyCheckResult `json:"safety_checks,omitempty"`
	EstimatedImpact Impact              `json:"estimated_impact"`
	ActualImpact    *Impact             `json:"actual_impact,omitempty"`
	Executed        bool                `json:"executed"`
	SkipReason      string              `json:"skip_reason,omitempty"`
	UserResponse    *UserResponse       `json:"user_response,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
}

// ExecutionResult is the per-rule outcome of one evaluation pass
type ExecutionResult struct {
	Success         bool     `json:"success"`
	RuleID          string   `json:"rule_id,omitempty"`
	RuleName        string   `json:"rule_name,omitempty"`
	DevicesAffected []string `json:"devices_affected,omitempty"`
	FailedDevices   []string `json:"failed_devices,omitempty"`
	LogID           string   `json:"log_id,omitempty"`
	Skipped         bool     `json:"skipped,omitempty"`
	SkipReason      string   `json:"skip_reason,omitempty"`
	Error           string   `json:"error,omitempty"`
}

// ModeResult is the outcome of a manual mode activation
type ModeResult struct {
	Success         bool     `json:"success"`
	AffectedDevices []string `json:"affected_devices"`
	FailedDevices   []string `json:"failed_devices,omitempty"`
	Message         string   `json:"message"`
	LogID           string   `json:"log_id,omitempty"`
}

// UndoResult is the outcome of reversing a logged action
type UndoResult struct {
	Success       bool     `json:"success"`
	Message       string   `json:"message"`
	FailedDevices []string `json:"failed_devices,omitempty"`
}

// AutomationStatus summarizes engine activity for a home
type AutomationStatus struct {
	ActiveRules     int `json:"active_rules"`
	ExecutedLast24h int `json:"executed_last_24h"`
	UndoneLast7Days int `json:"undone_last_7d"`
}

// Home groups devices and rules under one owner
type Home struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

// HomeActivity is one entry in the per-home activity feed
type HomeActivity struct {
	ID          string    `json:"id"`
	HomeID      string    `json:"home_id"`
	Kind        string    `json:"kind"` // e.g. "mode_activation"
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}
