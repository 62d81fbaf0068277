package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"homewatt/internal/automation"
	"homewatt/internal/models"
)

const logColumns = "id, rule_id, home_id, action, trigger, reasoning, safety_checks, estimated_impact, actual_impact, executed, skip_reason, user_response, created_at"

func scanLog(row pgx.Row) (models.AutomationLog, error) {
	var l models.AutomationLog
	var action, trigger, checks, estimated, actual, response []byte
	err := row.Scan(&l.ID, &l.RuleID, &l.HomeID, &action, &trigger, &l.Reasoning,
		&checks, &estimated, &actual, &l.Executed, &l.SkipReason, &response, &l.CreatedAt)
	if err != nil {
		return l, err
	}
	if err := json.Unmarshal(action, &l.Action); err != nil {
		return l, fmt.Errorf("log %s action: %w", l.ID, err)
	}
	if err := json.Unmarshal(trigger, &l.Trigger); err != nil {
		return l, fmt.Errorf("log %s trigger: %w", l.ID, err)
	}
	if checks != nil {
		if err := json.Unmarshal(checks, &l.SafetyChecks); err != nil {
			return l, fmt.Errorf("log %s safety checks: %w", l.ID, err)
		}
	}
	if estimated != nil {
		if err := json.Unmarshal(estimated, &l.EstimatedImpact); err != nil {
			return l, fmt.Errorf("log %s estimated impact: %w", l.ID, err)
		}
	}
	if actual != nil {
		if err := json.Unmarshal(actual, &l.ActualImpact); err != nil {
			return l, fmt.Errorf("log %s actual impact: %w", l.ID, err)
		}
	}
	if response != nil {
		if err := json.Unmarshal(response, &l.UserResponse); err != nil {
			return l, fmt.Errorf("log %s user response: %w", l.ID, err)
		}
	}
	return l, nil
}

// Create appends one audit record; logs are never updated afterwards except
// for the user response column.
func (d *DB) Create(ctx context.Context, entry *models.AutomationLog) error {
	action, err := json.Marshal(entry.Action)
	if err != nil {
		return err
	}
	trigger, err := json.Marshal(entry.Trigger)
	if err != nil {
		return err
	}
	checks, err := json.Marshal(entry.SafetyChecks)
	if err != nil {
		return err
	}
	estimated, err := json.Marshal(entry.EstimatedImpact)
	if err != nil {
		return err
	}
	var actual []byte
	if entry.ActualImpact != nil {
		if actual, err = json.Marshal(entry.ActualImpact); err != nil {
			return err
		}
	}
	_, err = d.pool.Exec(ctx,
		`INSERT INTO automation_logs (id, rule_id, home_id, action, trigger, reasoning, safety_checks, estimated_impact, actual_impact, executed, skip_reason, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		entry.ID, entry.RuleID, entry.HomeID, action, trigger, entry.Reasoning,
		checks, estimated, actual, entry.Executed, entry.SkipReason, entry.CreatedAt)
	return err
}

// FindLogByID fetches one audit record
func (d *DB) FindLogByID(ctx context.Context, id string) (*models.AutomationLog, error) {
	l, err := scanLog(d.pool.QueryRow(ctx, "SELECT "+logColumns+" FROM automation_logs WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: log %s", automation.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// SetUserResponse writes the terminal user response exactly once. The WHERE
// clause makes concurrent undo calls race-safe: the loser sees zero rows.
func (d *DB) SetUserResponse(ctx context.Context, logID string, resp models.UserResponse) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	tag, err := d.pool.Exec(ctx,
		"UPDATE automation_logs SET user_response = $1 WHERE id = $2 AND user_response IS NULL",
		payload, logID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := d.pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM automation_logs WHERE id = $1)", logID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: log %s", automation.ErrNotFound, logID)
		}
		return fmt.Errorf("%w: log %s", automation.ErrAlreadyUndone, logID)
	}
	return nil
}

// CountExecutedSince counts executed actions for a home in a trailing window.
// Backed by the durable log, not in-memory state, so the fatigue check
// survives process restarts.
func (d *DB) CountExecutedSince(ctx context.Context, homeID string, since time.Time) (int, error) {
	var n int
	err := d.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM automation_logs WHERE home_id = $1 AND executed = true AND created_at >= $2",
		homeID, since).Scan(&n)
	return n, err
}

// CountUndoneSince counts undone actions for a home by response timestamp
func (d *DB) CountUndoneSince(ctx context.Context, homeID string, since time.Time) (int, error) {
	var n int
	err := d.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM automation_logs
		 WHERE home_id = $1 AND user_response->>'type' = 'undone' AND (user_response->>'timestamp')::timestamptz >= $2`,
		homeID, since).Scan(&n)
	return n, err
}

// FindLogsByHome fetches a home's most recent audit records
func (d *DB) FindLogsByHome(ctx context.Context, homeID string, limit int) ([]models.AutomationLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.pool.Query(ctx,
		"SELECT "+logColumns+" FROM automation_logs WHERE home_id = $1 ORDER BY created_at DESC LIMIT $2",
		homeID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.AutomationLog
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
