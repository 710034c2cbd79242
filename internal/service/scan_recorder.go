package service

import (
	"context"
	"fmt"
	"time"

	"github.com/SergeiKhy/scanme-analytics/internal/models"
	"github.com/SergeiKhy/scanme-analytics/internal/repository"
	"github.com/SergeiKhy/scanme-analytics/internal/useragent"
	"github.com/google/uuid"
)

// ScanRecorder сохраняет один скан за вызов
// Статус и лимит QR-кода проверяет вызывающий
type ScanRecorder interface {
	RecordScan(ctx context.Context, qrCodeID string, event models.ScanEvent) (*models.ScanRecord, error)
}

// scanRecorder реализация ScanRecorder
type scanRecorder struct {
	scanRepo   repository.ScanRepository
	classifier useragent.Classifier
	now        func() time.Time
}

// NewScanRecorder создаёт новый экземпляр, при nil clock используется time.Now
func NewScanRecorder(scanRepo repository.ScanRepository, classifier useragent.Classifier, clock func() time.Time) ScanRecorder {
	if clock == nil {
		clock = time.Now
	}
	return &scanRecorder{
		scanRepo:   scanRepo,
		classifier: classifier,
		now:        clock,
	}
}

// RecordScan классифицирует User-Agent и сохраняет скан
func (r *scanRecorder) RecordScan(ctx context.Context, qrCodeID string, event models.ScanEvent) (*models.ScanRecord, error) {
	classification := useragent.Unknown()
	if event.UserAgent != nil {
		classification = r.classifier.Classify(*event.UserAgent)
	}

	scan := &models.ScanRecord{
		ID:        uuid.NewString(),
		QRCodeID:  qrCodeID,
		IPAddress: event.IPAddress,
		UserAgent: event.UserAgent,
		Referer:   event.Referer,
		Country:   event.Country,
		City:      event.City,
		Device:    classification.Device,
		Browser:   classification.Browser,
		OS:        classification.OS,
		ScanDate:  r.now().UTC(),
	}

	if err := r.scanRepo.Insert(ctx, scan); err != nil {
		return nil, fmt.Errorf("failed to record scan for %s: %w", qrCodeID, err)
	}

	return scan, nil
}
