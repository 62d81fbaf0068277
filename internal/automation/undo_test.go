package automation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homewatt/internal/models"
)

func undoFixture(t *testing.T) (*fakeStore, *Engine, time.Time) {
	t.Helper()
	now := time.Date(2026, 1, 5, 20, 0, 0, 0, time.UTC)
	f := newFakeStore()
	f.addDevice(models.Device{ID: "d1", HomeID: "home-1", Name: "Hall Light", Category: models.CategoryLight, Status: models.StatusOff, RatedPower: 60, Priority: 3})
	f.addDevice(models.Device{ID: "d2", HomeID: "home-1", Name: "Living Room TV", Category: models.CategoryTV, Status: models.StatusOff, RatedPower: 120, Priority: 4})
	return f, newTestEngine(f, now), now
}

func executedLog(id string, created time.Time, devices ...string) models.AutomationLog {
	ruleID := "rule-1"
	return models.AutomationLog{
		ID:        id,
		RuleID:    &ruleID,
		HomeID:    "home-1",
		Executed:  true,
		CreatedAt: created,
		Action:    models.LoggedAction{Type: models.ActionTurnOff, Devices: devices},
	}
}

func TestUndoAction_ReversesTurnOff(t *testing.T) {
	f, e, now := undoFixture(t)
	f.addRule(models.AutomationRule{ID: "rule-1", HomeID: "home-1", Metadata: models.RuleMetadata{TriggerCount: 4, SuccessRate: 100}})
	f.addLog(executedLog("log-1", now.Add(-2*time.Hour), "d1", "d2"))

	res, err := e.UndoAction(context.Background(), "log-1")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Empty(t, res.FailedDevices)

	// The logged effect is reversed on exactly the logged devices.
	for _, id := range []string{"d1", "d2"} {
		d := f.devices[id]
		assert.Equal(t, models.StatusOn, d.Status)
		assert.True(t, d.IsActive)
		assert.NotZero(t, d.CurrentPower)
	}

	// The response is recorded with how long the user took to react.
	entry := f.logs["log-1"]
	require.NotNil(t, entry.UserResponse)
	assert.Equal(t, models.ResponseUndone, entry.UserResponse.Type)
	assert.Equal(t, (2 * time.Hour).Milliseconds(), entry.UserResponse.ResponseTimeMs)

	// The rule's trust record degrades.
	md := f.rules["rule-1"].Metadata
	assert.Equal(t, 1, md.UndoCount)
	assert.InDelta(t, 75, md.SuccessRate, 0.001)
}

func TestUndoAction_SecondUndoIsTerminal(t *testing.T) {
	f, e, now := undoFixture(t)
	f.addRule(models.AutomationRule{ID: "rule-1", HomeID: "home-1", Metadata: models.RuleMetadata{TriggerCount: 1}})
	f.addLog(executedLog("log-1", now.Add(-time.Hour), "d1"))

	_, err := e.UndoAction(context.Background(), "log-1")
	require.NoError(t, err)

	// Flip the device again so a double-apply would be visible.
	f.devices["d1"].Status = models.StatusOff
	f.devices["d1"].IsActive = false
	f.devices["d1"].CurrentPower = 0

	_, err = e.UndoAction(context.Background(), "log-1")
	assert.ErrorIs(t, err, ErrAlreadyUndone)
	assert.True(t, IsTerminalUndoError(err))
	assert.Equal(t, models.StatusOff, f.devices["d1"].Status, "a rejected undo must not touch devices")

	assert.Equal(t, 1, f.rules["rule-1"].Metadata.UndoCount)
}

func TestUndoAction_WindowExpired(t *testing.T) {
	f, e, now := undoFixture(t)
	f.addLog(executedLog("log-1", now.Add(-25*time.Hour), "d1"))

	_, err := e.UndoAction(context.Background(), "log-1")
	assert.ErrorIs(t, err, ErrUndoExpired)
	assert.True(t, IsTerminalUndoError(err))
	assert.Nil(t, f.logs["log-1"].UserResponse)
}

func TestUndoAction_CustomWindow(t *testing.T) {
	f, e, now := undoFixture(t)
	e.SetUndoWindow(48 * time.Hour)
	f.addRule(models.AutomationRule{ID: "rule-1", HomeID: "home-1", Metadata: models.RuleMetadata{TriggerCount: 1}})
	f.addLog(executedLog("log-1", now.Add(-40*time.Hour), "d1"))

	res, err := e.UndoAction(context.Background(), "log-1")
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestUndoAction_RejectsNonReversibleAndSkipped(t *testing.T) {
	f, e, now := undoFixture(t)

	skipped := executedLog("log-skip", now.Add(-time.Hour), "d1")
	skipped.Executed = false
	f.addLog(skipped)

	mode := executedLog("log-mode", now.Add(-time.Hour), "d1")
	mode.Action.Type = models.ActionReducePower
	f.addLog(mode)

	setMode := executedLog("log-setmode", now.Add(-time.Hour), "d1")
	setMode.Action.Type = models.ActionSetMode
	f.addLog(setMode)

	_, err := e.UndoAction(context.Background(), "log-skip")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = e.UndoAction(context.Background(), "log-mode")
	assert.ErrorIs(t, err, ErrNotReversible)
	assert.Nil(t, f.logs["log-mode"].UserResponse, "a non-reversible log stays open")

	_, err = e.UndoAction(context.Background(), "log-setmode")
	assert.ErrorIs(t, err, ErrNotReversible)

	_, err = e.UndoAction(context.Background(), "log-ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUndoAction_TurnOnReversesToOff(t *testing.T) {
	f, e, now := undoFixture(t)
	f.devices["d1"].Status = models.StatusOn
	f.devices["d1"].IsActive = true
	f.devices["d1"].CurrentPower = 60

	entry := executedLog("log-1", now.Add(-time.Hour), "d1")
	entry.Action.Type = models.ActionTurnOn
	entry.RuleID = nil
	f.addLog(entry)

	res, err := e.UndoAction(context.Background(), "log-1")
	require.NoError(t, err)
	assert.True(t, res.Success)

	d := f.devices["d1"]
	assert.Equal(t, models.StatusOff, d.Status)
	assert.False(t, d.IsActive)
	assert.Zero(t, d.CurrentPower)
}
