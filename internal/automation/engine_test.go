package automation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homewatt/internal/models"
)

func TestEvaluateRules_EndToEnd(t *testing.T) {
	// Monday 18:00.
	now := time.Date(2026, 1, 5, 18, 0, 0, 0, time.UTC)
	f := newFakeStore()
	f.rate = 100
	e := newTestEngine(f, now)

	f.addDevice(models.Device{ID: "d1", HomeID: "home-1", Name: "Hall Light", Category: models.CategoryLight, Status: models.StatusOn, IsActive: true, CurrentPower: 60, RatedPower: 60, Priority: 3})
	f.addDevice(models.Device{ID: "d2", HomeID: "home-1", Name: "Living Room TV", Category: models.CategoryTV, Status: models.StatusOn, IsActive: true, CurrentPower: 120, RatedPower: 120, Priority: 4})

	due := models.AutomationRule{
		ID: "due", HomeID: "home-1", Name: "Evening lights off", Enabled: true, Priority: 5,
		Trigger: models.Trigger{Type: models.TriggerTime, Time: &models.TimeTrigger{Hour: 18, Minute: 0, Days: []time.Weekday{time.Monday}}},
		Action:  models.Action{Type: models.ActionTurnOff, TargetDevices: []string{"d1"}},
	}
	notDue := models.AutomationRule{
		ID: "not-due", HomeID: "home-1", Name: "Morning routine", Enabled: true, Priority: 8,
		Trigger: models.Trigger{Type: models.TriggerTime, Time: &models.TimeTrigger{Hour: 7, Minute: 0}},
		Action:  models.Action{Type: models.ActionTurnOn, TargetDevices: []string{"d2"}},
	}
	otherHome := models.AutomationRule{
		ID: "other", HomeID: "home-2", Name: "Elsewhere", Enabled: true, Priority: 5,
		Trigger: models.Trigger{Type: models.TriggerTime, Time: &models.TimeTrigger{Hour: 18, Minute: 0}},
		Action:  models.Action{Type: models.ActionTurnOff, TargetDevices: []string{"d1"}},
	}
	f.addRule(due)
	f.addRule(notDue)
	f.addRule(otherHome)

	results, err := e.EvaluateRules(context.Background(), "home-1")
	require.NoError(t, err)
	require.Len(t, results, 1, "only the due rule produces a result")

	assert.True(t, results[0].Success)
	assert.Equal(t, "due", results[0].RuleID)
	assert.Equal(t, []string{"Hall Light"}, results[0].DevicesAffected)

	assert.Equal(t, models.StatusOff, f.devices["d1"].Status)
	assert.Equal(t, models.StatusOn, f.devices["d2"].Status, "rules from other schedules and homes stay untouched")

	// A second pass in the same minute is a no-op thanks to de-duplication.
	results, err = e.EvaluateRules(context.Background(), "home-1")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestEvaluateRules_PriorityOrder(t *testing.T) {
	now := time.Date(2026, 1, 5, 18, 0, 0, 0, time.UTC)
	f := newFakeStore()
	f.rate = 100
	e := newTestEngine(f, now)

	f.addDevice(models.Device{ID: "d1", HomeID: "home-1", Name: "Hall Light", Category: models.CategoryLight, Status: models.StatusOn, IsActive: true, CurrentPower: 60, Priority: 3})

	for _, r := range []struct {
		id       string
		priority int
	}{{"low", 2}, {"high", 9}, {"mid", 5}} {
		f.addRule(models.AutomationRule{
			ID: r.id, HomeID: "home-1", Name: r.id, Enabled: true, Priority: r.priority,
			Trigger: models.Trigger{Type: models.TriggerTime, Time: &models.TimeTrigger{Hour: 18, Minute: 0}},
			Action:  models.Action{Type: models.ActionTurnOff, TargetDevices: []string{"d1"}},
		})
	}

	results, err := e.EvaluateRules(context.Background(), "home-1")
	require.NoError(t, err)
	require.Len(t, results, 3)

	var order []string
	for _, r := range results {
		order = append(order, r.RuleID)
	}
	assert.Equal(t, []string{"high", "mid", "low"}, order, "higher priority evaluates first")
}

func TestEvaluateRules_RequiresHomeID(t *testing.T) {
	f := newFakeStore()
	e := newTestEngine(f, time.Now())

	_, err := e.EvaluateRules(context.Background(), "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestStatus(t *testing.T) {
	now := time.Date(2026, 1, 5, 18, 0, 0, 0, time.UTC)
	f := newFakeStore()
	e := newTestEngine(f, now)

	f.addRule(models.AutomationRule{ID: "r1", HomeID: "home-1", Enabled: true})
	f.addRule(models.AutomationRule{ID: "r2", HomeID: "home-1", Enabled: false})

	f.addLog(models.AutomationLog{ID: "l1", HomeID: "home-1", Executed: true, CreatedAt: now.Add(-2 * time.Hour)})
	f.addLog(models.AutomationLog{ID: "l2", HomeID: "home-1", Executed: true, CreatedAt: now.Add(-30 * time.Hour)})

	undone := models.AutomationLog{ID: "l3", HomeID: "home-1", Executed: true, CreatedAt: now.Add(-3 * 24 * time.Hour)}
	undone.UserResponse = &models.UserResponse{Type: models.ResponseUndone, Timestamp: now.Add(-2 * 24 * time.Hour)}
	f.addLog(undone)

	st, err := e.Status(context.Background(), "home-1")
	require.NoError(t, err)
	assert.Equal(t, 1, st.ActiveRules)
	assert.Equal(t, 1, st.ExecutedLast24h)
	assert.Equal(t, 1, st.UndoneLast7Days)
}
