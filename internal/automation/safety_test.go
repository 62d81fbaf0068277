package automation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homewatt/internal/models"
)

func safetyFixture(t *testing.T) (*fakeStore, *Engine, time.Time) {
	t.Helper()
	now := time.Date(2026, 1, 5, 18, 30, 0, 0, time.UTC)
	f := newFakeStore()
	return f, newTestEngine(f, now), now
}

func passingInput(now time.Time) *checkInput {
	return &checkInput{
		rule:       &models.AutomationRule{ID: "rule-1", Constraints: models.Constraints{MinSavings: 0.01}},
		targets:    []models.Device{{ID: "d1", Name: "Hall Light", Priority: 3}},
		homeID:     "home-1",
		now:        now,
		tariffRate: 1.0,
	}
}

func TestSafetyPipeline_AllPass(t *testing.T) {
	f, e, now := safetyFixture(t)
	_ = f

	allowed, results, reason, err := e.runSafetyChecks(context.Background(), passingInput(now))
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Empty(t, reason)
	require.Len(t, results, 4)
	for i, name := range []string{CheckEssentialDevices, CheckRecentManual, CheckMinimumSavings, CheckAutomationFatigue} {
		assert.Equal(t, name, results[i].Name)
		assert.True(t, results[i].Passed)
	}
}

func TestSafetyPipeline_EssentialDeviceShortCircuits(t *testing.T) {
	_, e, now := safetyFixture(t)

	in := passingInput(now)
	in.targets = append(in.targets, models.Device{ID: "d2", Name: "Oxygen Concentrator", Category: models.CategoryMedical, Priority: 9})

	allowed, results, reason, err := e.runSafetyChecks(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Contains(t, reason, "Oxygen Concentrator")

	// Short-circuit: the record stops at the failing first stage.
	require.Len(t, results, 1)
	assert.Equal(t, CheckEssentialDevices, results[0].Name)
	assert.False(t, results[0].Passed)
}

func TestSafetyPipeline_EssentialThresholdBoundary(t *testing.T) {
	_, e, now := safetyFixture(t)

	in := passingInput(now)
	in.targets[0].Priority = 8
	allowed, _, _, err := e.runSafetyChecks(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, allowed, "priority 8 is not essential")

	in.targets[0].Priority = 9
	allowed, _, reason, err := e.runSafetyChecks(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, allowed, "priority 9 is essential")
	assert.Contains(t, reason, "essential")
}

func TestSafetyPipeline_RecentManualOverride(t *testing.T) {
	_, e, now := safetyFixture(t)

	in := passingInput(now)
	touched := now.Add(-10 * time.Minute)
	in.targets[0].LastManualControl = &touched

	allowed, results, reason, err := e.runSafetyChecks(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Contains(t, reason, "Hall Light")
	require.Len(t, results, 2)
	assert.Equal(t, CheckRecentManual, results[1].Name)

	// Outside the 30 minute window the device is fair game again.
	old := now.Add(-31 * time.Minute)
	in.targets[0].LastManualControl = &old
	allowed, _, _, err = e.runSafetyChecks(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestSafetyPipeline_MinimumSavings(t *testing.T) {
	_, e, now := safetyFixture(t)

	// One device at rate 1.0 estimates 0.10, below the default minimum of 5.
	in := passingInput(now)
	in.rule.Constraints.MinSavings = 0

	allowed, results, reason, err := e.runSafetyChecks(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Contains(t, reason, "below minimum")
	require.Len(t, results, 3)
	assert.Equal(t, CheckMinimumSavings, results[2].Name)
}

func TestSafetyPipeline_AutomationFatigue(t *testing.T) {
	f, e, now := safetyFixture(t)

	for i := 0; i < 2; i++ {
		f.addLog(models.AutomationLog{ID: string(rune('a' + i)), HomeID: "home-1", Executed: true, CreatedAt: now.Add(-20 * time.Minute)})
	}
	// Skipped entries and other homes never count toward fatigue.
	f.addLog(models.AutomationLog{ID: "skip", HomeID: "home-1", Executed: false, CreatedAt: now.Add(-5 * time.Minute)})
	f.addLog(models.AutomationLog{ID: "other", HomeID: "home-2", Executed: true, CreatedAt: now.Add(-5 * time.Minute)})

	allowed, _, _, err := e.runSafetyChecks(context.Background(), passingInput(now))
	require.NoError(t, err)
	assert.True(t, allowed, "two executions in the window stay under the limit")

	f.addLog(models.AutomationLog{ID: "third", HomeID: "home-1", Executed: true, CreatedAt: now.Add(-1 * time.Minute)})

	allowed, results, reason, err := e.runSafetyChecks(context.Background(), passingInput(now))
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Contains(t, reason, "3 automated actions")
	assert.Equal(t, CheckAutomationFatigue, results[len(results)-1].Name)
}

func TestSafetyPipeline_FatigueIgnoresOldExecutions(t *testing.T) {
	f, e, now := safetyFixture(t)

	for i := 0; i < 5; i++ {
		f.addLog(models.AutomationLog{ID: string(rune('a' + i)), HomeID: "home-1", Executed: true, CreatedAt: now.Add(-2 * time.Hour)})
	}

	allowed, _, _, err := e.runSafetyChecks(context.Background(), passingInput(now))
	require.NoError(t, err)
	assert.True(t, allowed, "executions older than the window are forgotten")
}
