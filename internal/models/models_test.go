package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRuleMetadata_SuccessRate(t *testing.T) {
	tests := []struct {
		name     string
		triggers int
		undos    int
		want     float64
	}{
		{"never triggered scores full trust", 0, 0, 100},
		{"no undos keeps full trust", 5, 0, 100},
		{"ten triggers three undos", 10, 3, 70},
		{"every firing undone", 4, 4, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			md := RuleMetadata{TriggerCount: tt.triggers, UndoCount: tt.undos}
			md.Recompute()
			assert.InDelta(t, tt.want, md.SuccessRate, 0.001)
		})
	}
}

func TestRuleMetadata_RecordTriggerAndUndo(t *testing.T) {
	now := time.Date(2026, 1, 5, 18, 0, 0, 0, time.UTC)
	var md RuleMetadata

	md.RecordTrigger(now)
	assert.Equal(t, 1, md.TriggerCount)
	assert.Equal(t, now, *md.LastTriggered)
	assert.InDelta(t, 100, md.SuccessRate, 0.001)

	md.RecordUndo()
	assert.Equal(t, 1, md.UndoCount)
	assert.InDelta(t, 0, md.SuccessRate, 0.001)
}

func TestDevice_Essential(t *testing.T) {
	assert.False(t, (&Device{Priority: 8}).Essential())
	assert.True(t, (&Device{Priority: 9}).Essential())
	assert.True(t, (&Device{Priority: 10}).Essential())
}

func TestDevice_NormalizeState(t *testing.T) {
	t.Run("on backfills power from rated", func(t *testing.T) {
		d := Device{Status: StatusOn, RatedPower: 1500}
		d.NormalizeState()
		assert.True(t, d.IsActive)
		assert.Equal(t, 1500.0, d.CurrentPower)
	})

	t.Run("on without rated power still reports non-zero", func(t *testing.T) {
		d := Device{Status: StatusOn}
		d.NormalizeState()
		assert.True(t, d.IsActive)
		assert.NotZero(t, d.CurrentPower)
	})

	t.Run("on keeps reported power", func(t *testing.T) {
		d := Device{Status: StatusOn, CurrentPower: 42, RatedPower: 1500}
		d.NormalizeState()
		assert.Equal(t, 42.0, d.CurrentPower)
	})

	t.Run("off zeroes power and activity", func(t *testing.T) {
		d := Device{Status: StatusOff, IsActive: true, CurrentPower: 60}
		d.NormalizeState()
		assert.False(t, d.IsActive)
		assert.Zero(t, d.CurrentPower)
	})

	t.Run("idle left as reported", func(t *testing.T) {
		d := Device{Status: StatusIdle, IsActive: true, CurrentPower: 5}
		d.NormalizeState()
		assert.True(t, d.IsActive)
		assert.Equal(t, 5.0, d.CurrentPower)
	})
}
