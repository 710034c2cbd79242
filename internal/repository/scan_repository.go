package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/SergeiKhy/scanme-analytics/internal/models"
	"github.com/jackc/pgx/v5"
)

type ScanRepository interface {
	Insert(ctx context.Context, scan *models.ScanRecord) error
	// FindByQRCode returns every scan of the code, newest first.
	FindByQRCode(ctx context.Context, qrCodeID string) ([]models.ScanRecord, error)
	// FindInRange returns scans with start <= scan_date <= end, oldest first.
	FindInRange(ctx context.Context, qrCodeID string, start, end time.Time) ([]models.ScanRecord, error)
	Summary(ctx context.Context, qrCodeID string) (*models.ScanSummary, error)
}

type scanRepository struct {
	db *PostgresDB
}

func NewScanRepository(db *PostgresDB) ScanRepository {
	return &scanRepository{db: db}
}

const selectScan = `
	SELECT id, qr_code_id, ip_address, user_agent, referer, country, city,
		device, browser, os, scan_date
	FROM scans
`

func (r *scanRepository) Insert(ctx context.Context, scan *models.ScanRecord) error {
	query := `
		INSERT INTO scans (id, qr_code_id, ip_address, user_agent, referer, country, city, device, browser, os, scan_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		scan.ID,
		scan.QRCodeID,
		scan.IPAddress,
		scan.UserAgent,
		scan.Referer,
		scan.Country,
		scan.City,
		scan.Device,
		scan.Browser,
		scan.OS,
		scan.ScanDate,
	)

	if err != nil {
		return fmt.Errorf("failed to insert scan: %w", err)
	}

	return nil
}

func (r *scanRepository) FindByQRCode(ctx context.Context, qrCodeID string) ([]models.ScanRecord, error) {
	query := selectScan + ` WHERE qr_code_id = $1 ORDER BY scan_date DESC`

	rows, err := r.db.Pool.Query(ctx, query, qrCodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query scans: %w", err)
	}

	return collectScans(rows)
}

func (r *scanRepository) FindInRange(ctx context.Context, qrCodeID string, start, end time.Time) ([]models.ScanRecord, error) {
	query := selectScan + `
		WHERE qr_code_id = $1 AND scan_date >= $2 AND scan_date <= $3
		ORDER BY scan_date ASC
	`

	rows, err := r.db.Pool.Query(ctx, query, qrCodeID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query scans in range: %w", err)
	}

	return collectScans(rows)
}

func (r *scanRepository) Summary(ctx context.Context, qrCodeID string) (*models.ScanSummary, error) {
	query := `
		SELECT
			COUNT(*) AS total_scans,
			COUNT(DISTINCT ip_address) AS unique_visitors
		FROM scans
		WHERE qr_code_id = $1
	`

	summary := &models.ScanSummary{
		QRCodeID: qrCodeID,
	}

	err := r.db.Pool.QueryRow(ctx, query, qrCodeID).Scan(
		&summary.TotalScans,
		&summary.UniqueVisitors,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get scan summary: %w", err)
	}

	return summary, nil
}

func collectScans(rows pgx.Rows) ([]models.ScanRecord, error) {
	defer rows.Close()

	scans := []models.ScanRecord{}
	for rows.Next() {
		var s models.ScanRecord
		if err := rows.Scan(
			&s.ID,
			&s.QRCodeID,
			&s.IPAddress,
			&s.UserAgent,
			&s.Referer,
			&s.Country,
			&s.City,
			&s.Device,
			&s.Browser,
			&s.OS,
			&s.ScanDate,
		); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		s.ScanDate = s.ScanDate.UTC()
		scans = append(scans, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scans: %w", err)
	}

	return scans, nil
}
