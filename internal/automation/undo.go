package automation

import (
	"context"
	"errors"
	"fmt"
	"log"

	"homewatt/internal/models"
)

// UndoAction reverses the device-state effect of a previously executed log
// entry. It does not re-run the safety pipeline: undo restores a specific
// historical effect, it is not a new automation decision.
//
// Only turn_on and turn_off have a defined inverse. The user response on the
// log is terminal: a second undo of the same log fails with ErrAlreadyUndone
// instead of toggling the devices again.
func (e *Engine) UndoAction(ctx context.Context, logID string) (models.UndoResult, error) {
	var res models.UndoResult

	entry, err := e.logs.FindLogByID(ctx, logID)
	if err != nil {
		return res, err
	}
	if !entry.Executed {
		return res, fmt.Errorf("%w: log %s records a skipped action", ErrValidation, logID)
	}
	if entry.UserResponse != nil {
		return res, fmt.Errorf("%w: log %s", ErrAlreadyUndone, logID)
	}

	now := e.clock()
	if now.Sub(entry.CreatedAt) > e.undoWindow {
		return res, fmt.Errorf("%w: log %s is older than %s", ErrUndoExpired, logID, e.undoWindow)
	}

	inverse, err := inverseOf(entry.Action.Type)
	if err != nil {
		return res, err
	}

	// Claim the log before touching devices so a concurrent undo of the
	// same entry cannot double-apply the inverse.
	resp := models.UserResponse{
		Type:           models.ResponseUndone,
		Timestamp:      now,
		ResponseTimeMs: now.Sub(entry.CreatedAt).Milliseconds(),
	}
	if err := e.logs.SetUserResponse(ctx, entry.ID, resp); err != nil {
		return res, err
	}

	devices, err := e.devices.FindByIDs(ctx, entry.Action.Devices)
	if err != nil {
		return res, fmt.Errorf("loading logged devices: %w", err)
	}

	var reversed []string
	for i := range devices {
		d := &devices[i]
		d.Status = inverse
		d.NormalizeState()

		wctx, cancel := context.WithTimeout(ctx, deviceWriteTimeout)
		err := e.devices.Save(wctx, d)
		cancel()
		if err != nil {
			// Timed-out or failed writes are reported, not retried here.
			log.Printf("ENGINE: undo write failed for device %s (log %s): %v", d.ID, entry.ID, err)
			res.FailedDevices = append(res.FailedDevices, d.Name)
			continue
		}
		e.publishDeviceChange(entry.HomeID, d)
		reversed = append(reversed, d.Name)
	}

	if entry.RuleID != nil {
		if rule, err := e.rules.FindRuleByID(ctx, *entry.RuleID); err != nil {
			log.Printf("ENGINE: undo could not load rule %s: %v", *entry.RuleID, err)
		} else {
			rule.Metadata.RecordUndo()
			if err := e.rules.SaveMetadata(ctx, rule.ID, rule.Metadata); err != nil {
				log.Printf("ENGINE: undo metadata write failed for rule %s: %v", rule.ID, err)
			}
		}
	}

	res.Success = true
	res.Message = fmt.Sprintf("reversed %s on %d device(s)", entry.Action.Type, len(reversed))
	if len(res.FailedDevices) > 0 {
		res.Message = fmt.Sprintf("%s; %d device(s) failed", res.Message, len(res.FailedDevices))
	}
	return res, nil
}

// inverseOf maps an executed action to the device status that reverses it
func inverseOf(t models.ActionType) (models.DeviceStatus, error) {
	switch t {
	case models.ActionTurnOff:
		return models.StatusOn, nil
	case models.ActionTurnOn:
		return models.StatusOff, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrNotReversible, t)
	}
}

// IsTerminalUndoError reports whether an undo failure must not be retried
func IsTerminalUndoError(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrAlreadyUndone) ||
		errors.Is(err, ErrNotReversible) ||
		errors.Is(err, ErrUndoExpired)
}
