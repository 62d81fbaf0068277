package automation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"homewatt/internal/models"
)

func timeRule(hour, minute int, days ...time.Weekday) models.AutomationRule {
	return models.AutomationRule{
		ID:      "rule-1",
		Trigger: models.Trigger{Type: models.TriggerTime, Time: &models.TimeTrigger{Hour: hour, Minute: minute, Days: days}},
	}
}

func TestDue_TimeTrigger(t *testing.T) {
	// 2026-01-05 is a Monday
	monday1830 := time.Date(2026, 1, 5, 18, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		rule models.AutomationRule
		now  time.Time
		want bool
	}{
		{"exact minute match", timeRule(18, 30), monday1830, true},
		{"wrong minute", timeRule(18, 31), monday1830, false},
		{"wrong hour", timeRule(19, 30), monday1830, false},
		{"day filter includes today", timeRule(18, 30, time.Monday, time.Friday), monday1830, true},
		{"day filter excludes today", timeRule(18, 30, time.Saturday, time.Sunday), monday1830, false},
		{"empty day filter matches all days", timeRule(18, 30), monday1830.AddDate(0, 0, 3), true},
		{"seconds within the minute still match", timeRule(18, 30), monday1830.Add(42 * time.Second), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Due(&tt.rule, tt.now))
		})
	}
}

func TestDue_SameMinuteDeduplication(t *testing.T) {
	now := time.Date(2026, 1, 5, 18, 30, 10, 0, time.UTC)
	rule := timeRule(18, 30)

	assert.True(t, Due(&rule, now))

	fired := now.Add(-5 * time.Second)
	rule.Metadata.LastTriggered = &fired
	assert.False(t, Due(&rule, now), "a rule must not fire twice inside one minute")

	lastWeek := now.AddDate(0, 0, -7)
	rule.Metadata.LastTriggered = &lastWeek
	assert.True(t, Due(&rule, now), "a firing in a past minute must not block today")
}

func TestDue_NonTimeTriggersNeverDue(t *testing.T) {
	now := time.Date(2026, 1, 5, 18, 30, 0, 0, time.UTC)

	condition := models.AutomationRule{
		Trigger: models.Trigger{Type: models.TriggerCondition, Condition: &models.ConditionTrigger{Kind: "power_above", Value: 500}},
	}
	event := models.AutomationRule{
		Trigger: models.Trigger{Type: models.TriggerEvent, Event: &models.EventTrigger{Kind: "tariff_peak"}},
	}
	unknown := models.AutomationRule{Trigger: models.Trigger{Type: "weather"}}
	missingTime := models.AutomationRule{Trigger: models.Trigger{Type: models.TriggerTime}}

	assert.False(t, Due(&condition, now))
	assert.False(t, Due(&event, now))
	assert.False(t, Due(&unknown, now))
	assert.False(t, Due(&missingTime, now))
}
