package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"homewatt/internal/automation"
	"homewatt/internal/models"
)

// ListHomeIDs returns every home id; the scheduler fans evaluation out over these
func (d *DB) ListHomeIDs(ctx context.Context) ([]string, error) {
	rows, err := d.pool.Query(ctx, "SELECT id FROM homes")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// FindHomeByID fetches one home
func (d *DB) FindHomeByID(ctx context.Context, id string) (*models.Home, error) {
	var h models.Home
	err := d.pool.QueryRow(ctx, "SELECT id, name, owner_id, created_at FROM homes WHERE id = $1", id).
		Scan(&h.ID, &h.Name, &h.OwnerID, &h.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: home %s", automation.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// FindHomesByOwner lists a user's homes
func (d *DB) FindHomesByOwner(ctx context.Context, ownerID string) ([]models.Home, error) {
	rows, err := d.pool.Query(ctx, "SELECT id, name, owner_id, created_at FROM homes WHERE owner_id = $1 ORDER BY name", ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var homes []models.Home
	for rows.Next() {
		var h models.Home
		if err := rows.Scan(&h.ID, &h.Name, &h.OwnerID, &h.CreatedAt); err != nil {
			return nil, err
		}
		homes = append(homes, h)
	}
	return homes, rows.Err()
}

// InsertHome creates a home for a user
func (d *DB) InsertHome(ctx context.Context, h *models.Home) error {
	_, err := d.pool.Exec(ctx,
		"INSERT INTO homes (id, name, owner_id, created_at) VALUES ($1, $2, $3, NOW())",
		h.ID, h.Name, h.OwnerID)
	return err
}

// RecordActivity appends one entry to the home activity feed
func (d *DB) RecordActivity(ctx context.Context, homeID, kind, description string) error {
	_, err := d.pool.Exec(ctx,
		"INSERT INTO home_activity (id, home_id, kind, description, created_at) VALUES ($1, $2, $3, $4, NOW())",
		uuid.NewString(), homeID, kind, description)
	return err
}

// FindActivityByHome lists recent activity entries
func (d *DB) FindActivityByHome(ctx context.Context, homeID string, limit int) ([]models.HomeActivity, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.pool.Query(ctx,
		"SELECT id, home_id, kind, description, created_at FROM home_activity WHERE home_id = $1 ORDER BY created_at DESC LIMIT $2",
		homeID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.HomeActivity
	for rows.Next() {
		var a models.HomeActivity
		if err := rows.Scan(&a.ID, &a.HomeID, &a.Kind, &a.Description, &a.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, a)
	}
	return entries, rows.Err()
}

// GetTariffRate reads the flat energy rate configured for a home
func (d *DB) GetTariffRate(ctx context.Context, homeID string) (float64, error) {
	var rate float64
	err := d.pool.QueryRow(ctx, "SELECT flat_rate FROM tariffs WHERE home_id = $1", homeID).Scan(&rate)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: tariff for home %s", automation.ErrNotFound, homeID)
	}
	return rate, err
}
