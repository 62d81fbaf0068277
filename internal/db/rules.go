package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"homewatt/internal/automation"
	"homewatt/internal/models"
)

const ruleColumns = `id, home_id, owner_id, name, enabled, priority, trigger, action, constraints, overrides,
	last_triggered, trigger_count, undo_count, success_rate, created_at, updated_at`

func scanRule(row pgx.Row) (models.AutomationRule, error) {
	var r models.AutomationRule
	var trigger, action, constraints, overrides []byte
	err := row.Scan(&r.ID, &r.HomeID, &r.OwnerID, &r.Name, &r.Enabled, &r.Priority,
		&trigger, &action, &constraints, &overrides,
		&r.Metadata.LastTriggered, &r.Metadata.TriggerCount, &r.Metadata.UndoCount, &r.Metadata.SuccessRate,
		&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return r, err
	}
	if err := json.Unmarshal(trigger, &r.Trigger); err != nil {
		return r, fmt.Errorf("rule %s trigger: %w", r.ID, err)
	}
	if err := json.Unmarshal(action, &r.Action); err != nil {
		return r, fmt.Errorf("rule %s action: %w", r.ID, err)
	}
	if err := json.Unmarshal(constraints, &r.Constraints); err != nil {
		return r, fmt.Errorf("rule %s constraints: %w", r.ID, err)
	}
	if err := json.Unmarshal(overrides, &r.Overrides); err != nil {
		return r, fmt.Errorf("rule %s overrides: %w", r.ID, err)
	}
	return r, nil
}

func (d *DB) queryRules(ctx context.Context, query string, args ...any) ([]models.AutomationRule, error) {
	rows, err := d.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []models.AutomationRule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// FindEnabled fetches a home's enabled rules for evaluation
func (d *DB) FindEnabled(ctx context.Context, homeID string) ([]models.AutomationRule, error) {
	return d.queryRules(ctx, "SELECT "+ruleColumns+" FROM automation_rules WHERE home_id = $1 AND enabled = true", homeID)
}

// FindRulesByHome fetches all of a home's rules for the CRUD API
func (d *DB) FindRulesByHome(ctx context.Context, homeID string) ([]models.AutomationRule, error) {
	return d.queryRules(ctx, "SELECT "+ruleColumns+" FROM automation_rules WHERE home_id = $1 ORDER BY priority DESC, name", homeID)
}

// FindRuleByID fetches one rule
func (d *DB) FindRuleByID(ctx context.Context, id string) (*models.AutomationRule, error) {
	r, err := scanRule(d.pool.QueryRow(ctx, "SELECT "+ruleColumns+" FROM automation_rules WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: rule %s", automation.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// CountEnabled counts a home's enabled rules
func (d *DB) CountEnabled(ctx context.Context, homeID string) (int, error) {
	var n int
	err := d.pool.QueryRow(ctx, "SELECT COUNT(*) FROM automation_rules WHERE home_id = $1 AND enabled = true", homeID).Scan(&n)
	return n, err
}

// SaveMetadata writes back the engine-maintained metadata fields only
func (d *DB) SaveMetadata(ctx context.Context, ruleID string, md models.RuleMetadata) error {
	tag, err := d.pool.Exec(ctx,
		`UPDATE automation_rules SET last_triggered = $1, trigger_count = $2, undo_count = $3, success_rate = $4, updated_at = NOW() WHERE id = $5`,
		md.LastTriggered, md.TriggerCount, md.UndoCount, md.SuccessRate, ruleID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: rule %s", automation.ErrNotFound, ruleID)
	}
	return nil
}

// InsertRule creates a rule record
func (d *DB) InsertRule(ctx context.Context, r *models.AutomationRule) error {
	trigger, err := json.Marshal(r.Trigger)
	if err != nil {
		return err
	}
	action, err := json.Marshal(r.Action)
	if err != nil {
		return err
	}
	constraints, err := json.Marshal(r.Constraints)
	if err != nil {
		return err
	}
	overrides, err := json.Marshal(r.Overrides)
	if err != nil {
		return err
	}
	_, err = d.pool.Exec(ctx,
		`INSERT INTO automation_rules (id, home_id, owner_id, name, enabled, priority, trigger, action, constraints, overrides,
			trigger_count, undo_count, success_rate, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0, 0, 100, NOW(), NOW())`,
		r.ID, r.HomeID, r.OwnerID, r.Name, r.Enabled, r.Priority, trigger, action, constraints, overrides)
	return err
}

// UpdateRule rewrites the owner-editable rule fields
func (d *DB) UpdateRule(ctx context.Context, r *models.AutomationRule) error {
	trigger, err := json.Marshal(r.Trigger)
	if err != nil {
		return err
	}
	action, err := json.Marshal(r.Action)
	if err != nil {
		return err
	}
	constraints, err := json.Marshal(r.Constraints)
	if err != nil {
		return err
	}
	overrides, err := json.Marshal(r.Overrides)
	if err != nil {
		return err
	}
	tag, err := d.pool.Exec(ctx,
		`UPDATE automation_rules SET name = $1, enabled = $2, priority = $3, trigger = $4, action = $5, constraints = $6, overrides = $7, updated_at = NOW()
		 WHERE id = $8 AND owner_id = $9`,
		r.Name, r.Enabled, r.Priority, trigger, action, constraints, overrides, r.ID, r.OwnerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: rule %s", automation.ErrNotFound, r.ID)
	}
	return nil
}

// DeleteRule removes a rule owned by the given user
func (d *DB) DeleteRule(ctx context.Context, id, ownerID string) error {
	tag, err := d.pool.Exec(ctx, "DELETE FROM automation_rules WHERE id = $1 AND owner_id = $2", id, ownerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: rule %s", automation.ErrNotFound, id)
	}
	return nil
}
