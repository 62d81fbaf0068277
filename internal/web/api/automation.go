package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"homewatt/internal/automation"
	"homewatt/internal/db"
	coremodels "homewatt/internal/models"
	"homewatt/internal/web/middleware"
	"homewatt/internal/web/models"
)

// Engine defines the methods the API needs from the automation engine
type Engine interface {
	EvaluateRules(ctx context.Context, homeID string) ([]coremodels.ExecutionResult, error)
	ActivateMode(ctx context.Context, homeID, mode string) (coremodels.ModeResult, error)
	UndoAction(ctx context.Context, logID string) (coremodels.UndoResult, error)
	Status(ctx context.Context, homeID string) (coremodels.AutomationStatus, error)
}

func RegisterAutomationRoutes(r *gin.Engine, middleware *middleware.MiddlewareManager, database *db.DB, engine Engine) {
	homes := r.Group("/homes")
	homes.Use(middleware.RequireAuth())
	{
		homes.GET("/:homeID/automation/rules", func(c *gin.Context) {
			homeID, ok := requireHomeOwned(c, database)
			if !ok {
				return
			}
			rules, err := database.FindRulesByHome(c, homeID)
			if err != nil {
				c.JSON(500, gin.H{"error": "Failed to fetch rules"})
				return
			}
			if rules == nil {
				rules = []coremodels.AutomationRule{}
			}
			c.JSON(200, rules)
		})

		homes.POST("/:homeID/automation/rules", func(c *gin.Context) {
			homeID, ok := requireHomeOwned(c, database)
			if !ok {
				return
			}
			var req models.AddRuleRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(400, gin.H{"error": "Invalid request"})
				return
			}
			if err := validateTrigger(req.Trigger); err != nil {
				c.JSON(400, gin.H{"error": err.Error()})
				return
			}
			if err := validateAction(req.Action); err != nil {
				c.JSON(400, gin.H{"error": err.Error()})
				return
			}

			rule := coremodels.AutomationRule{
				ID:          uuid.NewString(),
				HomeID:      homeID,
				OwnerID:     c.GetString("user_id"),
				Name:        req.Name,
				Enabled:     req.Enabled,
				Priority:    clampPriority(req.Priority),
				Trigger:     req.Trigger,
				Action:      req.Action,
				Constraints: req.Constraints,
				Overrides:   req.Overrides,
			}
			rule.Metadata.Recompute()
			if err := database.InsertRule(c, &rule); err != nil {
				c.JSON(500, gin.H{"error": "Failed to create rule"})
				return
			}
			c.JSON(201, rule)
		})

		homes.POST("/:homeID/automation/evaluate", func(c *gin.Context) {
			homeID, ok := requireHomeOwned(c, database)
			if !ok {
				return
			}
			results, err := engine.EvaluateRules(c, homeID)
			if err != nil {
				c.JSON(500, gin.H{"error": err.Error()})
				return
			}
			if results == nil {
				results = []coremodels.ExecutionResult{}
			}
			c.JSON(200, results)
		})

		homes.POST("/:homeID/automation/modes/:mode", func(c *gin.Context) {
			homeID, ok := requireHomeOwned(c, database)
			if !ok {
				return
			}
			result, err := engine.ActivateMode(c, homeID, c.Param("mode"))
			if errors.Is(err, automation.ErrValidation) {
				c.JSON(400, gin.H{"error": err.Error()})
				return
			}
			if err != nil {
				c.JSON(500, gin.H{"error": err.Error()})
				return
			}
			c.JSON(200, result)
		})

		homes.GET("/:homeID/automation/status", func(c *gin.Context) {
			homeID, ok := requireHomeOwned(c, database)
			if !ok {
				return
			}
			status, err := engine.Status(c, homeID)
			if err != nil {
				c.JSON(500, gin.H{"error": "Failed to fetch status"})
				return
			}
			c.JSON(200, status)
		})

		homes.GET("/:homeID/automation/logs", func(c *gin.Context) {
			homeID, ok := requireHomeOwned(c, database)
			if !ok {
				return
			}
			logs, err := database.FindLogsByHome(c, homeID, 50)
			if err != nil {
				c.JSON(500, gin.H{"error": "Failed to fetch logs"})
				return
			}
			if logs == nil {
				logs = []coremodels.AutomationLog{}
			}
			c.JSON(200, logs)
		})
	}

	rules := r.Group("/automation/rules")
	rules.Use(middleware.RequireAuth())
	{
		rules.PATCH("/:id", func(c *gin.Context) {
			userID := c.GetString("user_id")
			ruleID := c.Param("id")

			existing, err := database.FindRuleByID(c, ruleID)
			if errors.Is(err, automation.ErrNotFound) {
				c.JSON(404, gin.H{"error": "Rule not found"})
				return
			}
			if err != nil {
				c.JSON(500, gin.H{"error": "Failed to fetch rule"})
				return
			}
			if existing.OwnerID != userID {
				c.JSON(403, gin.H{"error": "Forbidden"})
				return
			}

			var req models.UpdateRuleRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(400, gin.H{"error": "Invalid request"})
				return
			}
			if req.Name != nil {
				existing.Name = *req.Name
			}
			if req.Enabled != nil {
				existing.Enabled = *req.Enabled
			}
			if req.Priority != nil {
				existing.Priority = clampPriority(*req.Priority)
			}
			if req.Trigger != nil {
				existing.Trigger = *req.Trigger
			}
			if req.Action != nil {
				existing.Action = *req.Action
			}
			if req.Constraints != nil {
				existing.Constraints = *req.Constraints
			}
			if req.Overrides != nil {
				existing.Overrides = *req.Overrides
			}

			if err := validateTrigger(existing.Trigger); err != nil {
				c.JSON(400, gin.H{"error": err.Error()})
				return
			}
			if err := validateAction(existing.Action); err != nil {
				c.JSON(400, gin.H{"error": err.Error()})
				return
			}

			if err := database.UpdateRule(c, existing); err != nil {
				c.JSON(500, gin.H{"error": "Failed to update rule"})
				return
			}
			c.JSON(200, existing)
		})

		rules.DELETE("/:id", func(c *gin.Context) {
			userID := c.GetString("user_id")
			err := database.DeleteRule(c, c.Param("id"), userID)
			if errors.Is(err, automation.ErrNotFound) {
				c.JSON(404, gin.H{"error": "Rule not found"})
				return
			}
			if err != nil {
				c.JSON(500, gin.H{"error": "Failed to delete rule"})
				return
			}
			c.JSON(200, gin.H{"status": "Rule deleted"})
		})
	}

	logs := r.Group("/automation/logs")
	logs.Use(middleware.RequireAuth())
	{
		logs.POST("/:id/undo", func(c *gin.Context) {
			userID := c.GetString("user_id")
			logID := c.Param("id")

			entry, err := database.FindLogByID(c, logID)
			if errors.Is(err, automation.ErrNotFound) {
				c.JSON(404, gin.H{"error": "Log not found"})
				return
			}
			if err != nil {
				c.JSON(500, gin.H{"error": "Failed to fetch log"})
				return
			}
			home, err := database.FindHomeByID(c, entry.HomeID)
			if err != nil || home.OwnerID != userID {
				c.JSON(403, gin.H{"error": "Forbidden"})
				return
			}

			result, err := engine.UndoAction(c, logID)
			switch {
			case err == nil:
				c.JSON(200, result)
			case errors.Is(err, automation.ErrNotFound):
				c.JSON(404, gin.H{"error": err.Error()})
			case errors.Is(err, automation.ErrValidation):
				c.JSON(400, gin.H{"error": err.Error()})
			case automation.IsTerminalUndoError(err):
				c.JSON(409, gin.H{"error": err.Error()})
			default:
				c.JSON(500, gin.H{"error": err.Error()})
			}
		})
	}
}

func clampPriority(p int) int {
	if p < 1 {
		return 1
	}
	if p > 10 {
		return 10
	}
	return p
}

// validateTrigger checks the tagged union is well-formed for its kind
func validateTrigger(t coremodels.Trigger) error {
	switch t.Type {
	case coremodels.TriggerTime:
		if t.Time == nil {
			return fmt.Errorf("time trigger requires a time block")
		}
		if t.Time.Hour < 0 || t.Time.Hour > 23 || t.Time.Minute < 0 || t.Time.Minute > 59 {
			return fmt.Errorf("time trigger out of range: %02d:%02d", t.Time.Hour, t.Time.Minute)
		}
		for _, day := range t.Time.Days {
			if day < time.Sunday || day > time.Saturday {
				return fmt.Errorf("invalid weekday %d", day)
			}
		}
		return nil
	case coremodels.TriggerCondition:
		if t.Condition == nil || t.Condition.Kind == "" {
			return fmt.Errorf("condition trigger requires a condition kind")
		}
		return nil
	case coremodels.TriggerEvent:
		if t.Event == nil || t.Event.Kind == "" {
			return fmt.Errorf("event trigger requires an event kind")
		}
		return nil
	default:
		return fmt.Errorf("unknown trigger type %q", t.Type)
	}
}

// validateAction checks the action is one rules can execute
func validateAction(a coremodels.Action) error {
	switch a.Type {
	case coremodels.ActionTurnOff, coremodels.ActionTurnOn, coremodels.ActionSetMode:
	case coremodels.ActionReducePower:
		return fmt.Errorf("action %s is reserved for mode activation", a.Type)
	default:
		return fmt.Errorf("unknown action type %q", a.Type)
	}
	if len(a.TargetDevices) == 0 {
		return fmt.Errorf("action requires at least one target device")
	}
	return nil
}
