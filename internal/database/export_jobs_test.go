package database

import (
	"context"
	"testing"

	"coophours/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportJobs(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	seedEquipment(t, db, 1, "Tractor", "alice")

	job := &models.ExportJob{EquipmentID: 1, RequestedBy: "alice"}
	require.NoError(t, db.CreateExportJob(ctx, job))
	assert.NotZero(t, job.ID)
	assert.Equal(t, models.ExportStatusPending, job.Status)

	pending, err := db.GetPendingExportJobs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "alice", pending[0].RequestedBy)

	require.NoError(t, db.UpdateExportJobStatus(ctx, job.ID, models.ExportStatusDone, "", 1))

	pending, err = db.GetPendingExportJobs(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestExportJobErrorStatus(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	seedEquipment(t, db, 1, "Tractor", "alice")

	job := &models.ExportJob{EquipmentID: 1, RequestedBy: "alice"}
	require.NoError(t, db.CreateExportJob(ctx, job))

	require.NoError(t, db.UpdateExportJobStatus(ctx, job.ID, models.ExportStatusError, "disk full", 3))

	pending, err := db.GetPendingExportJobs(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
