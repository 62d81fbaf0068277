package automation

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"homewatt/internal/models"
)

// DeviceRegistry is the engine's view of the device store. Save is a single
// conditional update keyed by device id; last-writer-wins is acceptable since
// physical device state is eventually consistent with the reporting loop.
type DeviceRegistry interface {
	Find(ctx context.Context, homeID string) ([]models.Device, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.Device, error)
	Save(ctx context.Context, device *models.Device) error
}

// RuleStore is the persistence view of automation rules. The engine only
// writes back metadata; rule bodies are owner CRUD territory.
type RuleStore interface {
	FindEnabled(ctx context.Context, homeID string) ([]models.AutomationRule, error)
	FindRuleByID(ctx context.Context, id string) (*models.AutomationRule, error)
	CountEnabled(ctx context.Context, homeID string) (int, error)
	SaveMetadata(ctx context.Context, ruleID string, md models.RuleMetadata) error
}

// LogStore is the durable audit log. CountExecutedSince backs the fatigue
// check, so it must be consistent across process restarts. SetUserResponse
// must be conditional: it fails with ErrAlreadyUndone once a response exists.
type LogStore interface {
	Create(ctx context.Context, entry *models.AutomationLog) error
	FindLogByID(ctx context.Context, id string) (*models.AutomationLog, error)
	SetUserResponse(ctx context.Context, logID string, resp models.UserResponse) error
	CountExecutedSince(ctx context.Context, homeID string, since time.Time) (int, error)
	CountUndoneSince(ctx context.Context, homeID string, since time.Time) (int, error)
}

// ActivityStore records entries in the per-home activity feed
type ActivityStore interface {
	RecordActivity(ctx context.Context, homeID, kind, description string) error
}

// Broadcaster publishes home-scoped real-time events. Fire-and-forget, no
// delivery guarantee.
type Broadcaster interface {
	Publish(homeID, event string, payload any)
}

// TariffSource resolves the flat energy rate for a home, falling back to a
// default when the tariff backend is unavailable.
type TariffSource interface {
	FlatRate(ctx context.Context, homeID string) float64
}

// Commander pushes desired state down to the physical device (MQTT). May be
// nil; delivery is best-effort and never blocks an execution result.
type Commander interface {
	PushState(device models.Device)
}

// EventDeviceStateChanged is broadcast on every device mutation the engine makes
const EventDeviceStateChanged = "device_state_changed"

// DeviceStateEvent is the broadcast payload for a device mutation
type DeviceStateEvent struct {
	DeviceID     string              `json:"device_id"`
	IsActive     bool                `json:"is_active"`
	CurrentPower float64             `json:"current_power"`
	Status       models.DeviceStatus `json:"status"`
}

const (
	// DefaultUndoWindow bounds how long after execution an action stays reversible
	DefaultUndoWindow = 24 * time.Hour

	// deviceWriteTimeout caps each device write during undo
	deviceWriteTimeout = 3 * time.Second
)

// Engine evaluates automation rules, gates them through the safety pipeline,
// executes actions, and services undo and mode activation requests.
type Engine struct {
	devices    DeviceRegistry
	rules      RuleStore
	logs       LogStore
	activity   ActivityStore
	broadcast  Broadcaster
	tariff     TariffSource
	commander  Commander
	undoWindow time.Duration
	clock      func() time.Time
}

// NewEngine creates an engine. activity, broadcast and commander may be nil.
func NewEngine(devices DeviceRegistry, rules RuleStore, logs LogStore, activity ActivityStore, broadcast Broadcaster, tariff TariffSource, commander Commander) *Engine {
	return &Engine{
		devices:    devices,
		rules:      rules,
		logs:       logs,
		activity:   activity,
		broadcast:  broadcast,
		tariff:     tariff,
		commander:  commander,
		undoWindow: DefaultUndoWindow,
		clock:      time.Now,
	}
}

// SetUndoWindow overrides the undo window (0 keeps the default)
func (e *Engine) SetUndoWindow(d time.Duration) {
	if d > 0 {
		e.undoWindow = d
	}
}

// EvaluateRules runs one evaluation pass over a home's enabled rules and
// returns one result per rule that was due this tick. Higher-priority rules
// evaluate first. Per-rule failures land in the result, not the error: only
// an unreachable rule store fails the whole pass.
func (e *Engine) EvaluateRules(ctx context.Context, homeID string) ([]models.ExecutionResult, error) {
	if homeID == "" {
		return nil, fmt.Errorf("%w: home id required", ErrValidation)
	}

	rules, err := e.rules.FindEnabled(ctx, homeID)
	if err != nil {
		return nil, fmt.Errorf("loading rules for home %s: %w", homeID, err)
	}

	sort.SliceStable(rules, func(i, j int) bool { return rules[i].Priority > rules[j].Priority })

	now := e.clock()
	var results []models.ExecutionResult
	for i := range rules {
		if !Due(&rules[i], now) {
			continue
		}
		log.Printf("ENGINE: rule %s (%s) due at %s", rules[i].ID, rules[i].Name, now.Format("15:04"))
		results = append(results, e.runRule(ctx, &rules[i], now))
	}
	return results, nil
}

// Status reports active rules and recent automation activity for a home
func (e *Engine) Status(ctx context.Context, homeID string) (models.AutomationStatus, error) {
	var st models.AutomationStatus

	active, err := e.rules.CountEnabled(ctx, homeID)
	if err != nil {
		return st, fmt.Errorf("counting rules: %w", err)
	}
	now := e.clock()
	executed, err := e.logs.CountExecutedSince(ctx, homeID, now.Add(-24*time.Hour))
	if err != nil {
		return st, fmt.Errorf("counting executions: %w", err)
	}
	undone, err := e.logs.CountUndoneSince(ctx, homeID, now.Add(-7*24*time.Hour))
	if err != nil {
		return st, fmt.Errorf("counting undos: %w", err)
	}

	st.ActiveRules = active
	st.ExecutedLast24h = executed
	st.UndoneLast7Days = undone
	return st, nil
}

// publishDeviceChange broadcasts a mutation and pushes it to the device
func (e *Engine) publishDeviceChange(homeID string, d *models.Device) {
	if e.broadcast != nil {
		e.broadcast.Publish(homeID, EventDeviceStateChanged, DeviceStateEvent{
			DeviceID:     d.ID,
			IsActive:     d.IsActive,
			CurrentPower: d.CurrentPower,
			Status:       d.Status,
		})
	}
	if e.commander != nil {
		e.commander.PushState(*d)
	}
}

func (e *Engine) recordActivity(ctx context.Context, homeID, kind, description string) {
	if e.activity == nil {
		return
	}
	if err := e.activity.RecordActivity(ctx, homeID, kind, description); err != nil {
		log.Printf("ENGINE: failed to record activity for home %s: %v", homeID, err)
	}
}
