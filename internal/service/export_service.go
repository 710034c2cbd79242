package service

import (
	"context"
	"fmt"
	"io"

	"github.com/SergeiKhy/scanme-analytics/internal/calendar"
	"github.com/SergeiKhy/scanme-analytics/internal/models"
	"github.com/SergeiKhy/scanme-analytics/internal/repository"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// Имена листов и формат времени в книге
const (
	scansSheet     = "Scans"
	bucketsSheet   = "Totals"
	scanTimeLayout = "2006-01-02 15:04:05"
)

// Заголовки листа сканов
var scanHeaders = []any{"Scan Date", "Device", "Browser", "OS", "Country", "City", "IP Address", "Referer"}

// ExportService интерфейс экспорта сканов в Excel
// Даты сканов выводятся в часовом поясе запроса
type ExportService interface {
	Export(ctx context.Context, qrCodeID string, query models.AggregateQuery, w io.Writer) error
}

// exportService реализация ExportService поверх excelize
type exportService struct {
	scanRepo  repository.ScanRepository
	analytics AnalyticsService
	logger    *zap.Logger
}

// NewExportService создаёт новый экземпляр сервиса экспорта
func NewExportService(scanRepo repository.ScanRepository, analytics AnalyticsService, logger *zap.Logger) ExportService {
	return &exportService{
		scanRepo:  scanRepo,
		analytics: analytics,
		logger:    logger,
	}
}

// Export пишет книгу с листами сканов и итогов по интервалам
func (s *exportService) Export(ctx context.Context, qrCodeID string, query models.AggregateQuery, w io.Writer) error {
	if err := validateRange(query.DateRange); err != nil {
		return err
	}
	loc, err := calendar.Location(query.Timezone)
	if err != nil {
		return err
	}

	// Одно чтение диапазона на оба листа
	scans, err := s.scanRepo.FindInRange(ctx, qrCodeID, query.StartDate, query.EndDate)
	if err != nil {
		return fmt.Errorf("failed to load scans: %w", err)
	}
	buckets, err := s.analytics.BucketScans(scans, query)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("Failed to close workbook", zap.Error(err))
		}
	}()

	if err := f.SetSheetName("Sheet1", scansSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	if _, err := f.NewSheet(bucketsSheet); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}

	if err := f.SetSheetRow(scansSheet, "A1", &scanHeaders); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, scan := range scans {
		row := []any{
			scan.ScanDate.In(loc).Format(scanTimeLayout),
			scan.Device,
			scan.Browser,
			scan.OS,
			deref(scan.Country),
			deref(scan.City),
			deref(scan.IPAddress),
			deref(scan.Referer),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(scansSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write scan row: %w", err)
		}
	}

	intervalHeader := []any{"Date", string(query.Interval), "Scans"}
	if err := f.SetSheetRow(bucketsSheet, "A1", &intervalHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, b := range buckets {
		row := []any{b.DateKey, b.Label, b.Count}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(bucketsSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write bucket row: %w", err)
		}
	}

	for _, sheet := range []string{scansSheet, bucketsSheet} {
		if err := f.SetRowStyle(sheet, 1, 1, bold); err != nil {
			return fmt.Errorf("failed to style header: %w", err)
		}
	}
	if err := f.SetColWidth(scansSheet, "A", "A", 20); err != nil {
		return fmt.Errorf("failed to size column: %w", err)
	}
	if err := f.SetColWidth(bucketsSheet, "B", "B", 36); err != nil {
		return fmt.Errorf("failed to size column: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	s.logger.Info("Exported scans",
		zap.String("qr_code_id", qrCodeID),
		zap.Int("scans", len(scans)),
		zap.String("timezone", query.Timezone),
	)
	return nil
}

// deref возвращает пустую строку для nil
func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
