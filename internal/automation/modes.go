package automation

import (
	"context"
	"fmt"
	"log"
	"math"

	"github.com/google/uuid"

	"homewatt/internal/models"
)

// Home modes the activator supports
const (
	ModeAway  = "away"
	ModeSleep = "sleep"
	ModeEco   = "eco"
)

// awayKeepsRunning lists categories the away mode never shuts down
var awayKeepsRunning = map[string]bool{
	models.CategoryRefrigerator: true,
	models.CategorySecurity:     true,
	models.CategoryMedical:      true,
}

// sleepShutsDown lists categories the sleep mode turns off
var sleepShutsDown = map[string]bool{
	models.CategoryLight:         true,
	models.CategoryTV:            true,
	models.CategoryEntertainment: true,
}

// ActivateMode applies a predefined bulk action to a home's devices,
// immediately and outside the rule evaluation loop. It deliberately bypasses
// the safety pipeline: a user-initiated mode change is pre-consented.
//
// Every invocation writes one automation log (no rule attached, manual
// trigger) and one home activity entry.
func (e *Engine) ActivateMode(ctx context.Context, homeID, mode string) (models.ModeResult, error) {
	var res models.ModeResult

	if homeID == "" {
		return res, fmt.Errorf("%w: home id required", ErrValidation)
	}
	switch mode {
	case ModeAway, ModeSleep, ModeEco:
	default:
		return res, fmt.Errorf("%w: unknown mode %q", ErrValidation, mode)
	}

	devices, err := e.devices.Find(ctx, homeID)
	if err != nil {
		return res, fmt.Errorf("loading devices for home %s: %w", homeID, err)
	}

	now := e.clock()
	var touchedIDs []string
	for i := range devices {
		d := &devices[i]
		if !d.IsActive || !modeApplies(mode, d) {
			continue
		}
		applyMode(mode, d)
		d.NormalizeState()
		if err := e.devices.Save(ctx, d); err != nil {
			log.Printf("ENGINE: mode %s write failed for device %s: %v", mode, d.ID, err)
			res.FailedDevices = append(res.FailedDevices, d.Name)
			continue
		}
		e.publishDeviceChange(homeID, d)
		touchedIDs = append(touchedIDs, d.ID)
		res.AffectedDevices = append(res.AffectedDevices, d.Name)
	}
	if res.AffectedDevices == nil {
		res.AffectedDevices = []string{}
	}

	// An empty home legitimately touches nothing; all writes failing does not.
	allFailed := len(touchedIDs) == 0 && len(res.FailedDevices) > 0

	entry := &models.AutomationLog{
		ID:        uuid.NewString(),
		HomeID:    homeID,
		Trigger:   models.LoggedTrigger{TriggerType: models.TriggerManual, Description: fmt.Sprintf("mode %s activated", mode)},
		Reasoning: fmt.Sprintf("user activated %s mode", mode),
		Executed:  !allFailed,
		CreatedAt: now,
		Action: models.LoggedAction{
			Type:       modeAction(mode),
			Devices:    touchedIDs,
			Parameters: modeParameters(mode),
		},
		EstimatedImpact: models.Impact{
			Savings:         float64(len(touchedIDs)) * savingsPerDeviceKWh * e.tariff.FlatRate(ctx, homeID),
			AffectedDevices: len(touchedIDs),
		},
	}
	if allFailed {
		entry.SkipReason = "all device updates failed"
		entry.Reasoning = fmt.Sprintf("%s mode activated but no device could be updated", mode)
	}
	if err := e.logs.Create(ctx, entry); err != nil {
		log.Printf("ENGINE: mode log write failed for home %s: %v", homeID, err)
	} else {
		res.LogID = entry.ID
	}

	e.recordActivity(ctx, homeID, "mode_activation", fmt.Sprintf("%s mode applied to %d device(s)", mode, len(touchedIDs)))

	if allFailed {
		res.Message = fmt.Sprintf("%s mode failed, no device could be updated", mode)
		return res, nil
	}
	res.Success = true
	res.Message = fmt.Sprintf("%s mode activated, %d device(s) affected", mode, len(touchedIDs))
	return res, nil
}

// modeApplies reports whether the mode touches this (active) device
func modeApplies(mode string, d *models.Device) bool {
	switch mode {
	case ModeAway:
		return !awayKeepsRunning[d.Category]
	case ModeSleep:
		return sleepShutsDown[d.Category]
	case ModeEco:
		return true
	}
	return false
}

// applyMode mutates the in-memory device per the mode semantics
func applyMode(mode string, d *models.Device) {
	switch mode {
	case ModeAway, ModeSleep:
		d.Status = models.StatusOff
		d.IsActive = false
		d.CurrentPower = 0
	case ModeEco:
		d.Mode = ModeEco
		reduced := math.Round(d.CurrentPower * 0.8)
		if reduced == 0 {
			// Rounding a sub-watt draw to zero would make NormalizeState
			// backfill rated power, raising consumption. Keep the raw value.
			reduced = d.CurrentPower * 0.8
		}
		d.CurrentPower = reduced
	}
}

// modeAction maps a mode onto the logged action kind
func modeAction(mode string) models.ActionType {
	if mode == ModeEco {
		return models.ActionReducePower
	}
	return models.ActionTurnOff
}

func modeParameters(mode string) models.ActionParameters {
	if mode == ModeEco {
		return models.ActionParameters{Mode: ModeEco}
	}
	return models.ActionParameters{}
}
