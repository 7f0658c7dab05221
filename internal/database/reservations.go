package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"coophours/internal/domain"
	"coophours/internal/models"
	"coophours/internal/schedule"
)

// GetEquipmentIntervals returns every booked interval for the equipment.
func (db *DB) GetEquipmentIntervals(ctx context.Context, equipmentID int64) ([]schedule.Interval, error) {
	query := `SELECT start_hour, end_hour FROM reservations WHERE equipment_id = ?`
	rows, err := db.QueryContext(ctx, query, equipmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get equipment intervals: %w", err)
	}
	defer rows.Close()

	var intervals []schedule.Interval
	for rows.Next() {
		var iv schedule.Interval
		if err := rows.Scan(&iv.Start, &iv.End); err != nil {
			return nil, fmt.Errorf("failed to scan interval: %w", err)
		}
		intervals = append(intervals, iv)
	}
	return intervals, rows.Err()
}

// CreateReservationWithLock re-checks admissibility and inserts inside one
// transaction, so two racing candidates cannot both pass against a stale
// snapshot.
func (db *DB) CreateReservationWithLock(ctx context.Context, reservation *models.Reservation) error {
	candidate := schedule.Interval{Start: reservation.StartHour, End: reservation.EndHour}
	if !candidate.Valid() {
		return domain.ErrInvalidInterval
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	rows, err := tx.QueryContext(ctx,
		`SELECT start_hour, end_hour FROM reservations WHERE equipment_id = ?`,
		reservation.EquipmentID)
	if err != nil {
		return fmt.Errorf("failed to check intervals in tx: %w", err)
	}

	var existing []schedule.Interval
	for rows.Next() {
		var iv schedule.Interval
		if err := rows.Scan(&iv.Start, &iv.End); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan interval in tx: %w", err)
		}
		existing = append(existing, iv)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("failed to read intervals in tx: %w", err)
	}
	rows.Close()

	if !schedule.IsAdmissible(candidate, existing) {
		return domain.ErrConflict
	}

	now := time.Now()
	result, err := tx.ExecContext(ctx,
		`INSERT INTO reservations (equipment_id, start_hour, end_hour, username, comment, created_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		reservation.EquipmentID,
		reservation.StartHour,
		reservation.EndHour,
		reservation.Username,
		reservation.Comment,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert reservation in tx: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id in tx: %w", err)
	}
	reservation.ID = id
	reservation.CreatedAt = now

	return tx.Commit()
}

func (db *DB) GetReservation(ctx context.Context, id int64) (*models.Reservation, error) {
	query := `SELECT id, equipment_id, start_hour, end_hour, username, comment, created_at
              FROM reservations WHERE id = ?`
	var r models.Reservation
	err := db.QueryRowContext(ctx, query, id).Scan(
		&r.ID, &r.EquipmentID, &r.StartHour, &r.EndHour, &r.Username, &r.Comment, &r.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	return &r, nil
}

// ListReservationsWithOwners joins the members table so manager views and
// exports show display names, ordered by start hour.
func (db *DB) ListReservationsWithOwners(ctx context.Context, equipmentID int64) ([]models.ReservationWithOwner, error) {
	query := `SELECT r.id, r.equipment_id, r.start_hour, r.end_hour, r.username, r.comment, r.created_at,
                     u.first_name, u.last_name
              FROM reservations r
              JOIN users u ON r.username = u.username
              WHERE r.equipment_id = ?
              ORDER BY r.start_hour ASC`
	rows, err := db.QueryContext(ctx, query, equipmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	defer rows.Close()

	var reservations []models.ReservationWithOwner
	for rows.Next() {
		var r models.ReservationWithOwner
		var firstName, lastName string
		err := rows.Scan(
			&r.ID, &r.EquipmentID, &r.StartHour, &r.EndHour, &r.Username, &r.Comment, &r.CreatedAt,
			&firstName, &lastName,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		owner := models.User{FirstName: firstName, LastName: lastName}
		r.OwnerName = owner.DisplayName()
		reservations = append(reservations, r)
	}
	return reservations, rows.Err()
}

// MaxEndHour returns the largest booked end hour for the equipment, or 0
// when nothing is booked yet. Used to pre-fill the next start value.
func (db *DB) MaxEndHour(ctx context.Context, equipmentID int64) (float64, error) {
	query := `SELECT COALESCE(MAX(end_hour), 0) FROM reservations WHERE equipment_id = ?`
	var maxEnd float64
	if err := db.QueryRowContext(ctx, query, equipmentID).Scan(&maxEnd); err != nil {
		return 0, fmt.Errorf("failed to get max end hour: %w", err)
	}
	return maxEnd, nil
}
