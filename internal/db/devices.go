package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"homewatt/internal/automation"
	"homewatt/internal/models"
)

const deviceColumns = "id, home_id, name, category, status, is_active, current_power, rated_power, priority, mode, last_manual_control, mqtt_topic"

func scanDevice(row pgx.Row) (models.Device, error) {
	var d models.Device
	err := row.Scan(&d.ID, &d.HomeID, &d.Name, &d.Category, &d.Status, &d.IsActive,
		&d.CurrentPower, &d.RatedPower, &d.Priority, &d.Mode, &d.LastManualControl, &d.MQTTTopic)
	return d, err
}

// Find fetches every device in a home
func (d *DB) Find(ctx context.Context, homeID string) ([]models.Device, error) {
	rows, err := d.pool.Query(ctx, "SELECT "+deviceColumns+" FROM devices WHERE home_id = $1 ORDER BY name", homeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var devices []models.Device
	for rows.Next() {
		dev, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, dev)
	}
	return devices, rows.Err()
}

// FindByIDs fetches the listed devices; absent ids are silently omitted
func (d *DB) FindByIDs(ctx context.Context, ids []string) ([]models.Device, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := d.pool.Query(ctx, "SELECT "+deviceColumns+" FROM devices WHERE id = ANY($1)", ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var devices []models.Device
	for rows.Next() {
		dev, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, dev)
	}
	return devices, rows.Err()
}

// FindDeviceByID fetches one device
func (d *DB) FindDeviceByID(ctx context.Context, id string) (*models.Device, error) {
	dev, err := scanDevice(d.pool.QueryRow(ctx, "SELECT "+deviceColumns+" FROM devices WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: device %s", automation.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &dev, nil
}

// Save writes a device's mutable state in one conditional update keyed by id.
// Last-writer-wins; the reporting loop reconciles physical state later.
func (d *DB) Save(ctx context.Context, dev *models.Device) error {
	tag, err := d.pool.Exec(ctx,
		`UPDATE devices SET status = $1, is_active = $2, current_power = $3, mode = $4, last_manual_control = $5 WHERE id = $6`,
		dev.Status, dev.IsActive, dev.CurrentPower, dev.Mode, dev.LastManualControl, dev.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: device %s", automation.ErrNotFound, dev.ID)
	}
	return nil
}

// UpdateReported stores a telemetry report from the device itself
func (d *DB) UpdateReported(ctx context.Context, id string, power float64, status models.DeviceStatus) error {
	_, err := d.pool.Exec(ctx,
		"UPDATE devices SET current_power = $1, status = $2, is_active = ($2 = 'on') WHERE id = $3",
		power, status, id)
	return err
}

// InsertDevice registers a device under a home
func (d *DB) InsertDevice(ctx context.Context, dev *models.Device) error {
	_, err := d.pool.Exec(ctx,
		`INSERT INTO devices (id, home_id, name, category, status, is_active, current_power, rated_power, priority, mode, mqtt_topic)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		dev.ID, dev.HomeID, dev.Name, dev.Category, dev.Status, dev.IsActive,
		dev.CurrentPower, dev.RatedPower, dev.Priority, dev.Mode, dev.MQTTTopic)
	return err
}

// DeleteDevice removes a device record
func (d *DB) DeleteDevice(ctx context.Context, id string) error {
	_, err := d.pool.Exec(ctx, "DELETE FROM devices WHERE id = $1", id)
	return err
}

// MarkManualControl stamps a user-initiated change on a device
func (d *DB) MarkManualControl(ctx context.Context, id string, at time.Time) error {
	_, err := d.pool.Exec(ctx, "UPDATE devices SET last_manual_control = $1 WHERE id = $2", at, id)
	return err
}
