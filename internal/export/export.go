// Package export renders an equipment ledger as an xlsx workbook. Data is
// always re-fetched from the store by equipment id; nothing client-supplied
// ends up in a workbook.
package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"coophours/internal/domain"
	"coophours/internal/models"
	"coophours/internal/service"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Reservations"

// Exporter builds ledger workbooks from the store.
type Exporter struct {
	repo   domain.Repository
	logger *zerolog.Logger
}

func NewExporter(repo domain.Repository, logger *zerolog.Logger) *Exporter {
	return &Exporter{repo: repo, logger: logger}
}

// FileName returns the attachment name for an equipment export.
func FileName(equipment *models.Equipment, now time.Time) string {
	slug := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(equipment.Name), " ", "_"))
	if slug == "" {
		slug = fmt.Sprintf("equipment_%d", equipment.ID)
	}
	return fmt.Sprintf("%s_%s.xlsx", slug, now.Format("2006-01-02"))
}

// Write fetches the equipment's ledger and streams the workbook to w.
func (e *Exporter) Write(ctx context.Context, equipmentID int64, w io.Writer) error {
	f, err := e.build(ctx, equipmentID)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// SaveToDir writes the workbook under dir and returns the file path.
func (e *Exporter) SaveToDir(ctx context.Context, equipmentID int64, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	equipment, err := e.repo.GetEquipmentByID(ctx, equipmentID)
	if err != nil {
		return "", err
	}

	f, err := e.build(ctx, equipmentID)
	if err != nil {
		return "", err
	}
	defer f.Close()

	filePath := filepath.Join(dir, FileName(equipment, time.Now()))
	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("failed to save workbook: %w", err)
	}

	e.logger.Info().Str("file_path", filePath).Int64("equipment_id", equipmentID).Msg("ledger workbook written")
	return filePath, nil
}

func (e *Exporter) build(ctx context.Context, equipmentID int64) (*excelize.File, error) {
	equipment, err := e.repo.GetEquipmentByID(ctx, equipmentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load equipment: %w", err)
	}

	reservations, err := e.repo.ListReservationsWithOwners(ctx, equipmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load reservations: %w", err)
	}

	return BuildWorkbook(equipment, reservations)
}

// BuildWorkbook lays out the ledger sheet: a title row, one row per
// reservation ordered by start hour, and a per-member totals block.
func BuildWorkbook(equipment *models.Equipment, reservations []models.ReservationWithOwner) (*excelize.File, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)

	_ = f.SetCellValue(sheetName, "A1", fmt.Sprintf("Usage ledger: %s", equipment.Name))
	_ = f.MergeCell(sheetName, "A1", "D1")

	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetName, "A1", "A1", titleStyle)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})

	headers := []string{"Member", "Start hour", "End hour", "Duration"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(sheetName, cell, header)
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	row := 3
	for _, r := range reservations {
		_ = f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), r.OwnerName)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), r.StartHour)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), r.EndHour)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), r.Duration())
		row++
	}

	// Totals block, one row per member in ledger order.
	row++
	_ = f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), "Total hours per member")
	_ = f.SetCellStyle(sheetName, fmt.Sprintf("A%d", row), fmt.Sprintf("A%d", row), headerStyle)
	row++

	for _, total := range service.AggregateHoursByOwner(reservations) {
		_ = f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), total.OwnerName)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), total.TotalHours)
		row++
	}

	_ = f.SetColWidth(sheetName, "A", "A", 25)
	_ = f.SetColWidth(sheetName, "B", "D", 12)

	_ = f.DeleteSheet("Sheet1")
	return f, nil
}
