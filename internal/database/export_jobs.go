package database

import (
	"context"
	"fmt"
	"time"

	"coophours/internal/models"
)

func (db *DB) CreateExportJob(ctx context.Context, job *models.ExportJob) error {
	query := `INSERT INTO export_jobs (equipment_id, requested_by, status, attempts, last_error, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	if job.Status == "" {
		job.Status = models.ExportStatusPending
	}
	result, err := db.ExecContext(ctx, query,
		job.EquipmentID,
		job.RequestedBy,
		job.Status,
		job.Attempts,
		job.LastError,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create export job: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	job.ID = id
	job.CreatedAt = now
	job.UpdatedAt = now
	return nil
}

func (db *DB) UpdateExportJobStatus(ctx context.Context, id int64, status, lastError string, attempts int) error {
	query := `UPDATE export_jobs SET status = ?, last_error = ?, attempts = ?, updated_at = ? WHERE id = ?`
	_, err := db.ExecContext(ctx, query, status, lastError, attempts, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update export job: %w", err)
	}
	return nil
}

func (db *DB) GetPendingExportJobs(ctx context.Context, limit int) ([]*models.ExportJob, error) {
	query := `SELECT id, equipment_id, requested_by, status, attempts, COALESCE(last_error, ''), created_at, updated_at
              FROM export_jobs WHERE status = ? ORDER BY created_at ASC LIMIT ?`
	rows, err := db.QueryContext(ctx, query, models.ExportStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending export jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.ExportJob
	for rows.Next() {
		j := &models.ExportJob{}
		err := rows.Scan(
			&j.ID, &j.EquipmentID, &j.RequestedBy, &j.Status, &j.Attempts, &j.LastError,
			&j.CreatedAt, &j.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan export job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}
