package automation

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"homewatt/internal/models"
)

// runRule takes one due rule through target resolution, safety gating and
// execution. Errors land in the result so one broken rule never aborts the
// rest of the tick.
func (e *Engine) runRule(ctx context.Context, rule *models.AutomationRule, now time.Time) models.ExecutionResult {
	res := models.ExecutionResult{RuleID: rule.ID, RuleName: rule.Name}

	targets, err := e.resolveTargets(ctx, rule)
	if err != nil {
		res.Error = err.Error()
		return res
	}

	rate := e.tariff.FlatRate(ctx, rule.HomeID)

	in := &checkInput{rule: rule, targets: targets, homeID: rule.HomeID, now: now, tariffRate: rate}
	allowed, checks, reason, err := e.runSafetyChecks(ctx, in)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	if !allowed {
		log.Printf("ENGINE: rule %s rejected by safety pipeline: %s", rule.ID, reason)
		res.Skipped = true
		res.SkipReason = reason
		res.LogID = e.writeSkipLog(ctx, rule, checks, reason, now)
		return res
	}

	return e.execute(ctx, rule, targets, rate, checks, now)
}

// resolveTargets loads the rule's target devices with exceptions pruned,
// the category filter applied, and the maxDevices constraint enforced.
func (e *Engine) resolveTargets(ctx context.Context, rule *models.AutomationRule) ([]models.Device, error) {
	excepted := make(map[string]bool, len(rule.Action.Exceptions))
	for _, id := range rule.Action.Exceptions {
		excepted[id] = true
	}

	var ids []string
	for _, id := range rule.Action.TargetDevices {
		if !excepted[id] {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	devices, err := e.devices.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("loading target devices: %w", err)
	}

	targets := devices[:0]
	for _, d := range devices {
		if rule.Action.DeviceFilter != "" && d.Category != rule.Action.DeviceFilter {
			continue
		}
		targets = append(targets, d)
	}

	if max := rule.Constraints.MaxDevices; max > 0 && len(targets) > max {
		targets = targets[:max]
	}
	return targets, nil
}

// execute applies the rule's action to every resolved target. A failed device
// write never aborts the remaining devices; the log records only the devices
// actually mutated.
func (e *Engine) execute(ctx context.Context, rule *models.AutomationRule, targets []models.Device, rate float64, checks []models.SafetyCheckResult, now time.Time) models.ExecutionResult {
	res := models.ExecutionResult{RuleID: rule.ID, RuleName: rule.Name}

	if !executable(rule.Action.Type) {
		res.Error = fmt.Sprintf("action %s is not executable by rules", rule.Action.Type)
		return res
	}

	var touchedIDs, touchedNames []string
	for i := range targets {
		d := &targets[i]
		applyAction(d, rule.Action)
		d.NormalizeState()
		if err := e.devices.Save(ctx, d); err != nil {
			log.Printf("ENGINE: device %s write failed for rule %s: %v", d.ID, rule.ID, err)
			res.FailedDevices = append(res.FailedDevices, d.Name)
			continue
		}
		e.publishDeviceChange(rule.HomeID, d)
		touchedIDs = append(touchedIDs, d.ID)
		touchedNames = append(touchedNames, d.Name)
	}

	entry := &models.AutomationLog{
		ID:           uuid.NewString(),
		RuleID:       &rule.ID,
		HomeID:       rule.HomeID,
		Trigger:      snapshotTrigger(rule.Trigger),
		SafetyChecks: checks,
		CreatedAt:    now,
		Action: models.LoggedAction{
			Type:       rule.Action.Type,
			Devices:    touchedIDs,
			Parameters: rule.Action.Parameters,
		},
	}

	if len(touchedIDs) == 0 {
		entry.Executed = false
		entry.SkipReason = "all device updates failed"
		entry.Reasoning = fmt.Sprintf("rule %q fired but no device could be updated", rule.Name)
		if err := e.logs.Create(ctx, entry); err != nil {
			log.Printf("ENGINE: audit log write failed for rule %s: %v", rule.ID, err)
		}
		res.Error = "all device updates failed"
		res.LogID = entry.ID
		return res
	}

	rule.Metadata.RecordTrigger(now)
	if err := e.rules.SaveMetadata(ctx, rule.ID, rule.Metadata); err != nil {
		log.Printf("ENGINE: metadata write failed for rule %s: %v", rule.ID, err)
	}

	entry.Executed = true
	entry.Reasoning = fmt.Sprintf("rule %q fired: %s on %d of %d target devices", rule.Name, rule.Action.Type, len(touchedIDs), len(targets))
	entry.EstimatedImpact = models.Impact{
		Savings:         float64(len(touchedIDs)) * savingsPerDeviceKWh * rate,
		AffectedDevices: len(touchedIDs),
		DurationMinutes: rule.Overrides.OverrideDurationMinutes,
	}
	if err := e.logs.Create(ctx, entry); err != nil {
		log.Printf("ENGINE: audit log write failed for rule %s: %v", rule.ID, err)
		res.Error = "audit log write failed"
		res.DevicesAffected = touchedNames
		return res
	}

	res.Success = true
	res.DevicesAffected = touchedNames
	res.LogID = entry.ID
	return res
}

// writeSkipLog records a safety rejection; returns the log id ("" on failure)
func (e *Engine) writeSkipLog(ctx context.Context, rule *models.AutomationRule, checks []models.SafetyCheckResult, reason string, now time.Time) string {
	entry := &models.AutomationLog{
		ID:           uuid.NewString(),
		RuleID:       &rule.ID,
		HomeID:       rule.HomeID,
		Trigger:      snapshotTrigger(rule.Trigger),
		Reasoning:    fmt.Sprintf("rule %q skipped: %s", rule.Name, reason),
		SafetyChecks: checks,
		Executed:     false,
		SkipReason:   reason,
		CreatedAt:    now,
		Action: models.LoggedAction{
			Type:       rule.Action.Type,
			Devices:    []string{},
			Parameters: rule.Action.Parameters,
		},
	}
	if err := e.logs.Create(ctx, entry); err != nil {
		log.Printf("ENGINE: skip log write failed for rule %s: %v", rule.ID, err)
		return ""
	}
	return entry.ID
}

// executable reports whether the executor dispatches this action kind.
// reduce_power belongs to mode activation, not rule execution.
func executable(t models.ActionType) bool {
	switch t {
	case models.ActionTurnOff, models.ActionTurnOn, models.ActionSetMode:
		return true
	default:
		return false
	}
}

// applyAction mutates the in-memory device per the action kind. turn_on
// leaves power to the device's own reporting; NormalizeState backfills a
// non-zero value so the stored record stays consistent.
func applyAction(d *models.Device, action models.Action) {
	switch action.Type {
	case models.ActionTurnOff:
		d.Status = models.StatusOff
		d.IsActive = false
		d.CurrentPower = 0
	case models.ActionTurnOn:
		d.Status = models.StatusOn
		d.IsActive = true
	case models.ActionSetMode:
		mode := action.Parameters.Mode
		if mode == "" {
			mode = "eco"
		}
		d.Mode = mode
	}
}

// snapshotTrigger freezes the trigger that caused a firing for the audit record
func snapshotTrigger(t models.Trigger) models.LoggedTrigger {
	lt := models.LoggedTrigger{TriggerType: t.Type}
	switch t.Type {
	case models.TriggerTime:
		if t.Time != nil {
			tc := *t.Time
			lt.Time = &tc
			lt.Description = fmt.Sprintf("scheduled %02d:%02d", tc.Hour, tc.Minute)
		}
	case models.TriggerCondition:
		if t.Condition != nil {
			lt.Description = fmt.Sprintf("condition %s >= %.2f", t.Condition.Kind, t.Condition.Value)
		}
	case models.TriggerEvent:
		if t.Event != nil {
			lt.Description = fmt.Sprintf("event %s", t.Event.Kind)
		}
	}
	return lt
}
