package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/SergeiKhy/scanme-analytics/internal/models"
	"github.com/jackc/pgx/v5"
)

type QRCodeRepository interface {
	Create(ctx context.Context, qr *models.QRCode) error
	GetByID(ctx context.Context, id string) (*models.QRCode, error)
	SoftDelete(ctx context.Context, id string) error
	// RegisterScan consumes one scan of an active code under a row lock.
	RegisterScan(ctx context.Context, id string) (*models.QRCode, error)
}

type qrCodeRepository struct {
	db *PostgresDB
}

func NewQRCodeRepository(db *PostgresDB) QRCodeRepository {
	return &qrCodeRepository{db: db}
}

const selectQRCode = `
	SELECT id, COALESCE(user_id, ''), name, type, target_url, size, status,
		scan_count, max_scans, created_at, updated_at
	FROM qr_codes
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQRCode(row rowScanner) (*models.QRCode, error) {
	qr := &models.QRCode{}
	err := row.Scan(
		&qr.ID,
		&qr.UserID,
		&qr.Name,
		&qr.Type,
		&qr.TargetURL,
		&qr.Size,
		&qr.Status,
		&qr.ScanCount,
		&qr.MaxScans,
		&qr.CreatedAt,
		&qr.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrQRCodeNotFound
		}
		return nil, fmt.Errorf("failed to scan qr code: %w", err)
	}
	return qr, nil
}

func (r *qrCodeRepository) Create(ctx context.Context, qr *models.QRCode) error {
	query := `
		INSERT INTO qr_codes (id, user_id, name, type, target_url, size, status, scan_count, max_scans, created_at, updated_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8, $9, $10, $10)
		RETURNING created_at, updated_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		qr.ID,
		qr.UserID,
		qr.Name,
		qr.Type,
		qr.TargetURL,
		qr.Size,
		qr.Status,
		qr.ScanCount,
		qr.MaxScans,
		qr.CreatedAt,
	).Scan(&qr.CreatedAt, &qr.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrQRCodeExists
		}
		return fmt.Errorf("failed to create qr code: %w", err)
	}

	return nil
}

// GetByID returns deleted codes too; their scans stay queryable.
func (r *qrCodeRepository) GetByID(ctx context.Context, id string) (*models.QRCode, error) {
	return scanQRCode(r.db.Pool.QueryRow(ctx, selectQRCode+` WHERE id = $1`, id))
}

func (r *qrCodeRepository) SoftDelete(ctx context.Context, id string) error {
	query := `
		UPDATE qr_codes SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status <> $2
	`

	result, err := r.db.Pool.Exec(ctx, query, id, models.QRCodeStatusDeleted)
	if err != nil {
		return fmt.Errorf("failed to delete qr code: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrQRCodeNotFound
	}

	return nil
}

func (r *qrCodeRepository) RegisterScan(ctx context.Context, id string) (*models.QRCode, error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	qr, err := scanQRCode(tx.QueryRow(ctx, selectQRCode+` WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}

	if qr.Status != models.QRCodeStatusActive {
		return nil, ErrQRCodeInactive
	}

	if qr.LimitReached() {
		qr.Status = models.QRCodeStatusLocked
		if err := updateScanState(ctx, tx, qr); err != nil {
			return nil, err
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("failed to commit transaction: %w", err)
		}
		return nil, ErrScanLimitReached
	}

	qr.ScanCount++
	if qr.LimitReached() {
		qr.Status = models.QRCodeStatusLocked
	}
	if err := updateScanState(ctx, tx, qr); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return qr, nil
}

func updateScanState(ctx context.Context, tx pgx.Tx, qr *models.QRCode) error {
	query := `
		UPDATE qr_codes SET scan_count = $2, status = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	if err := tx.QueryRow(ctx, query, qr.ID, qr.ScanCount, qr.Status).Scan(&qr.UpdatedAt); err != nil {
		return fmt.Errorf("failed to update scan count: %w", err)
	}
	return nil
}
