package export

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"coophours/internal/database"
	"coophours/internal/domain"
	"coophours/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func setupExporter(t *testing.T) (*Exporter, *database.DB) {
	t.Helper()

	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	require.NoError(t, db.SyncEquipment(ctx, []models.Equipment{
		{ID: 1, Name: "Band Saw", ManagerUsername: "alice", IsActive: true},
	}))
	require.NoError(t, db.CreateUser(ctx, &models.User{Username: "alice", FirstName: "Alice", LastName: "Martin", PasswordHash: "x"}))
	require.NoError(t, db.CreateUser(ctx, &models.User{Username: "bob", FirstName: "Bob", LastName: "Dupont", PasswordHash: "x"}))

	require.NoError(t, db.CreateReservationWithLock(ctx, &models.Reservation{EquipmentID: 1, StartHour: 4, EndHour: 6, Username: "bob"}))
	require.NoError(t, db.CreateReservationWithLock(ctx, &models.Reservation{EquipmentID: 1, StartHour: 0, EndHour: 2.5, Username: "alice"}))
	require.NoError(t, db.CreateReservationWithLock(ctx, &models.Reservation{EquipmentID: 1, StartHour: 6, EndHour: 7, Username: "bob"}))

	return NewExporter(db, &logger), db
}

func TestExporterWrite(t *testing.T) {
	exporter, _ := setupExporter(t)

	var buf bytes.Buffer
	require.NoError(t, exporter.Write(context.Background(), 1, &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	title, err := f.GetCellValue(sheetName, "A1")
	require.NoError(t, err)
	assert.Equal(t, "Usage ledger: Band Saw", title)

	// Rows come back ordered by start hour.
	owner, _ := f.GetCellValue(sheetName, "A3")
	assert.Equal(t, "Alice Martin", owner)
	start, _ := f.GetCellValue(sheetName, "B3")
	assert.Equal(t, "0", start)
	duration, _ := f.GetCellValue(sheetName, "D3")
	assert.Equal(t, "2.5", duration)

	owner, _ = f.GetCellValue(sheetName, "A4")
	assert.Equal(t, "Bob Dupont", owner)
	owner, _ = f.GetCellValue(sheetName, "A5")
	assert.Equal(t, "Bob Dupont", owner)

	// Totals block: blank row, header, then one row per member.
	header, _ := f.GetCellValue(sheetName, "A7")
	assert.Equal(t, "Total hours per member", header)
	totalOwner, _ := f.GetCellValue(sheetName, "A8")
	assert.Equal(t, "Alice Martin", totalOwner)
	totalHours, _ := f.GetCellValue(sheetName, "D8")
	assert.Equal(t, "2.5", totalHours)
	totalOwner, _ = f.GetCellValue(sheetName, "A9")
	assert.Equal(t, "Bob Dupont", totalOwner)
	totalHours, _ = f.GetCellValue(sheetName, "D9")
	assert.Equal(t, "3", totalHours)
}

func TestExporterWriteUnknownEquipment(t *testing.T) {
	exporter, _ := setupExporter(t)

	var buf bytes.Buffer
	err := exporter.Write(context.Background(), 99, &buf)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestExporterSaveToDir(t *testing.T) {
	exporter, _ := setupExporter(t)
	dir := t.TempDir()

	path, err := exporter.SaveToDir(context.Background(), 1, filepath.Join(dir, "exports"))
	require.NoError(t, err)
	assert.FileExists(t, path)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	title, err := f.GetCellValue(sheetName, "A1")
	require.NoError(t, err)
	assert.Equal(t, "Usage ledger: Band Saw", title)
}

func TestFileName(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "band_saw_2024-06-01.xlsx", FileName(&models.Equipment{ID: 1, Name: "Band Saw"}, now))
	assert.Equal(t, "equipment_7_2024-06-01.xlsx", FileName(&models.Equipment{ID: 7, Name: "  "}, now))
}
