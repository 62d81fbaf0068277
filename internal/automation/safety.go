package automation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"homewatt/internal/models"
)

// Safety check names, in pipeline order
const (
	CheckEssentialDevices  = "essential_device_protection"
	CheckRecentManual      = "recent_manual_override"
	CheckMinimumSavings    = "minimum_savings"
	CheckAutomationFatigue = "automation_fatigue"
)

const (
	// recentManualWindow protects a manual device change from being
	// overridden by automation right away
	recentManualWindow = 30 * time.Minute

	// fatigueWindow / fatigueLimit rate-limit executed actions per home
	fatigueWindow = time.Hour
	fatigueLimit  = 3

	// savingsPerDeviceKWh is the flat per-device savings estimate
	savingsPerDeviceKWh = 0.1

	// defaultMinSavings applies when a rule sets no minimum (currency units)
	defaultMinSavings = 5.0
)

// checkInput is everything a pipeline stage may look at
type checkInput struct {
	rule       *models.AutomationRule
	targets    []models.Device
	homeID     string
	now        time.Time
	tariffRate float64
}

// safetyCheck returns a non-empty reason to veto the rule. The cheap,
// deterministic checks run before the log-store history query.
type safetyCheck struct {
	name string
	run  func(ctx context.Context, e *Engine, in *checkInput) (string, error)
}

var safetyPipeline = []safetyCheck{
	{CheckEssentialDevices, checkEssentialDevices},
	{CheckRecentManual, checkRecentManual},
	{CheckMinimumSavings, checkMinimumSavings},
	{CheckAutomationFatigue, checkAutomationFatigue},
}

// runSafetyChecks evaluates the pipeline in fixed order, short-circuiting at
// the first failing check. The returned results contain one entry per check
// evaluated, truncated at the failure; checks after a failure neither run nor
// appear in the audit record.
func (e *Engine) runSafetyChecks(ctx context.Context, in *checkInput) (bool, []models.SafetyCheckResult, string, error) {
	var results []models.SafetyCheckResult
	for _, check := range safetyPipeline {
		reason, err := check.run(ctx, e, in)
		if err != nil {
			return false, results, "", fmt.Errorf("safety check %s: %w", check.name, err)
		}
		if reason != "" {
			results = append(results, models.SafetyCheckResult{Name: check.name, Passed: false, Reason: reason})
			return false, results, reason, nil
		}
		results = append(results, models.SafetyCheckResult{Name: check.name, Passed: true})
	}
	return true, results, "", nil
}

func checkEssentialDevices(_ context.Context, _ *Engine, in *checkInput) (string, error) {
	var offending []string
	for i := range in.targets {
		if in.targets[i].Essential() {
			offending = append(offending, in.targets[i].Name)
		}
	}
	if len(offending) > 0 {
		return fmt.Sprintf("essential devices protected: %s", strings.Join(offending, ", ")), nil
	}
	return "", nil
}

func checkRecentManual(_ context.Context, _ *Engine, in *checkInput) (string, error) {
	var recent []string
	for i := range in.targets {
		d := &in.targets[i]
		if d.LastManualControl == nil {
			continue
		}
		if age := in.now.Sub(*d.LastManualControl); age >= 0 && age < recentManualWindow {
			recent = append(recent, fmt.Sprintf("%s (%dm ago)", d.Name, int(age.Minutes())))
		}
	}
	if len(recent) > 0 {
		return fmt.Sprintf("manually controlled recently: %s", strings.Join(recent, ", ")), nil
	}
	return "", nil
}

func checkMinimumSavings(_ context.Context, _ *Engine, in *checkInput) (string, error) {
	estimated := float64(len(in.targets)) * savingsPerDeviceKWh * in.tariffRate
	min := in.rule.Constraints.MinSavings
	if min <= 0 {
		min = defaultMinSavings
	}
	if estimated < min {
		return fmt.Sprintf("estimated savings %.2f below minimum %.2f", estimated, min), nil
	}
	return "", nil
}

func checkAutomationFatigue(ctx context.Context, e *Engine, in *checkInput) (string, error) {
	count, err := e.logs.CountExecutedSince(ctx, in.homeID, in.now.Add(-fatigueWindow))
	if err != nil {
		return "", err
	}
	if count >= fatigueLimit {
		return fmt.Sprintf("%d automated actions in the last hour (limit %d)", count, fatigueLimit), nil
	}
	return "", nil
}
