package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"coophours/internal/domain"
	"coophours/internal/models"
)

// SyncEquipment upserts the configured catalog into the equipment table and
// refreshes the in-memory cache. Equipment administration happens outside
// the reservation core, so this runs once at startup.
func (db *DB) SyncEquipment(ctx context.Context, equipment []models.Equipment) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `INSERT INTO equipment (id, name, manager_username, image_path, sort_order, is_active, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?)
              ON CONFLICT(id) DO UPDATE SET
                name = excluded.name,
                manager_username = excluded.manager_username,
                image_path = excluded.image_path,
                sort_order = excluded.sort_order,
                is_active = excluded.is_active,
                updated_at = excluded.updated_at`

	now := time.Now()
	for _, eq := range equipment {
		if _, err := tx.ExecContext(ctx, query,
			eq.ID, eq.Name, eq.ManagerUsername, eq.ImagePath, eq.SortOrder, eq.IsActive, now, now,
		); err != nil {
			return fmt.Errorf("failed to sync equipment %d: %w", eq.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit equipment sync: %w", err)
	}

	db.mu.Lock()
	db.equipmentCache = make(map[int64]models.Equipment, len(equipment))
	for _, eq := range equipment {
		db.equipmentCache[eq.ID] = eq
	}
	db.mu.Unlock()

	db.logger.Info().Int("count", len(equipment)).Msg("equipment catalog synced")
	return nil
}

func (db *DB) GetEquipmentByID(ctx context.Context, id int64) (*models.Equipment, error) {
	db.mu.RLock()
	eq, ok := db.equipmentCache[id]
	db.mu.RUnlock()
	if ok {
		return &eq, nil
	}

	query := `SELECT id, name, manager_username, image_path, sort_order, is_active, created_at, updated_at
              FROM equipment WHERE id = ?`
	var e models.Equipment
	err := db.QueryRowContext(ctx, query, id).Scan(
		&e.ID, &e.Name, &e.ManagerUsername, &e.ImagePath, &e.SortOrder, &e.IsActive,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get equipment: %w", err)
	}

	db.mu.Lock()
	db.equipmentCache[e.ID] = e
	db.mu.Unlock()

	return &e, nil
}

func (db *DB) GetActiveEquipment(ctx context.Context) ([]*models.Equipment, error) {
	query := `SELECT id, name, manager_username, image_path, sort_order, is_active, created_at, updated_at
              FROM equipment WHERE is_active = 1 ORDER BY sort_order, id`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get active equipment: %w", err)
	}
	defer rows.Close()

	var equipment []*models.Equipment
	for rows.Next() {
		e := &models.Equipment{}
		err := rows.Scan(
			&e.ID, &e.Name, &e.ManagerUsername, &e.ImagePath, &e.SortOrder, &e.IsActive,
			&e.CreatedAt, &e.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan equipment: %w", err)
		}
		equipment = append(equipment, e)
	}
	return equipment, rows.Err()
}
