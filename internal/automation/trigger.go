package automation

import (
	"time"

	"homewatt/internal/models"
)

// Due reports whether a rule's trigger fires at the given time. Pure
// predicate over (now, rule); it never touches stores.
//
// Time triggers match on the exact local hour and minute, restricted to the
// configured weekdays when a day filter is present. The scheduler tick is one
// minute for this reason: a coarser tick would skip minute boundaries and
// silently miss triggers. A lastTriggered check de-duplicates the firing if
// two ticks land inside the same minute.
//
// Condition and event triggers are stored but not evaluated yet; they are
// never due.
func Due(rule *models.AutomationRule, now time.Time) bool {
	switch rule.Trigger.Type {
	case models.TriggerTime:
		t := rule.Trigger.Time
		if t == nil {
			return false
		}
		if now.Hour() != t.Hour || now.Minute() != t.Minute {
			return false
		}
		if len(t.Days) > 0 && !containsDay(t.Days, now.Weekday()) {
			return false
		}
		if lt := rule.Metadata.LastTriggered; lt != nil && sameMinute(*lt, now) {
			return false
		}
		return true
	case models.TriggerCondition, models.TriggerEvent:
		// Future extension point, not a gap: parsed and persisted, never due.
		return false
	default:
		return false
	}
}

func containsDay(days []time.Weekday, d time.Weekday) bool {
	for _, day := range days {
		if day == d {
			return true
		}
	}
	return false
}

func sameMinute(a, b time.Time) bool {
	return a.Truncate(time.Minute).Equal(b.Truncate(time.Minute))
}
