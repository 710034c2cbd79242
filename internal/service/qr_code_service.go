package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/SergeiKhy/scanme-analytics/internal/models"
	"github.com/SergeiKhy/scanme-analytics/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Лимиты сервиса QR-кодов
const (
	defaultCacheTTL = 10 * time.Minute
	maxNameLength   = 255
)

// urlPattern допускает только http и https ссылки
var urlPattern = regexp.MustCompile(`^https?://[^\s]+$`)

// Заблокированные домены
var blacklistedDomains = []string{
	"malware.com",
	"phishing.com",
	"spam.com",
}

// QRCodeService интерфейс сервиса QR-кодов
type QRCodeService interface {
	Create(ctx context.Context, input *models.CreateQRCodeInput) (*models.QRCode, error)
	Get(ctx context.Context, id string) (*models.QRCode, error)
	// Delete мягкое удаление, сканы остаются доступны аналитике
	Delete(ctx context.Context, id string) error
	// Exists проверяет только наличие, удалённые и заблокированные коды тоже существуют
	Exists(ctx context.Context, id string) error
	// RegisterScan проверяет статус и лимит сканов перед редиректом
	RegisterScan(ctx context.Context, id string) (*models.QRCode, error)
}

// qrCodeService реализация QRCodeService с кэшем в Redis
type qrCodeService struct {
	qrRepo    repository.QRCodeRepository
	cacheRepo repository.CacheRepository
	cacheTTL  time.Duration
	logger    *zap.Logger
}

// NewQRCodeService создаёт новый экземпляр сервиса
func NewQRCodeService(
	qrRepo repository.QRCodeRepository,
	cacheRepo repository.CacheRepository,
	cacheTTL time.Duration,
	logger *zap.Logger,
) QRCodeService {
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}
	return &qrCodeService{
		qrRepo:    qrRepo,
		cacheRepo: cacheRepo,
		cacheTTL:  cacheTTL,
		logger:    logger,
	}
}

// Create проверяет входные данные и сохраняет новый QR-код
func (s *qrCodeService) Create(ctx context.Context, input *models.CreateQRCodeInput) (*models.QRCode, error) {
	if err := validateTargetURL(input.TargetURL); err != nil {
		return nil, err
	}

	qr := &models.QRCode{
		ID:        uuid.NewString(),
		UserID:    input.UserID,
		Name:      strings.TrimSpace(input.Name),
		Type:      input.Type,
		TargetURL: input.TargetURL,
		Size:      input.Size,
		Status:    models.QRCodeStatusActive,
		MaxScans:  input.MaxScans,
		CreatedAt: time.Now().UTC(),
	}
	if qr.Type == "" {
		qr.Type = models.QRCodeTypeDynamic
	}
	if qr.Size == "" {
		qr.Size = models.QRCodeSizeMedium
	}
	if err := validateQRCode(qr); err != nil {
		return nil, err
	}

	if err := s.qrRepo.Create(ctx, qr); err != nil {
		return nil, err
	}

	if err := s.cacheRepo.Set(ctx, qr, s.cacheTTL); err != nil {
		s.logger.Warn("Failed to cache qr code", zap.String("qr_code_id", qr.ID), zap.Error(err))
	}

	return qr, nil
}

// Get возвращает QR-код из кэша или из БД
func (s *qrCodeService) Get(ctx context.Context, id string) (*models.QRCode, error) {
	qr, err := s.cacheRepo.Get(ctx, id)
	if err == nil {
		return qr, nil
	}
	if !errors.Is(err, repository.ErrCacheMiss) {
		s.logger.Warn("Cache read failed", zap.String("qr_code_id", id), zap.Error(err))
	}

	qr, err = s.qrRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.cacheRepo.Set(ctx, qr, s.cacheTTL); err != nil {
		s.logger.Warn("Failed to cache qr code", zap.String("qr_code_id", id), zap.Error(err))
	}

	return qr, nil
}

// Delete помечает QR-код удалённым и сбрасывает кэш
func (s *qrCodeService) Delete(ctx context.Context, id string) error {
	if err := s.qrRepo.SoftDelete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

// Exists проверяет, что QR-код существует
func (s *qrCodeService) Exists(ctx context.Context, id string) error {
	_, err := s.Get(ctx, id)
	return err
}

// RegisterScan проверяет статус и лимит сканов перед редиректом
func (s *qrCodeService) RegisterScan(ctx context.Context, id string) (*models.QRCode, error) {
	qr, err := s.qrRepo.RegisterScan(ctx, id)
	if errors.Is(err, repository.ErrScanLimitReached) {
		s.logger.Info("Scan limit reached, qr code locked", zap.String("qr_code_id", id))
		s.invalidate(ctx, id)
	}
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, id)
	return qr, nil
}

// invalidate удаляет QR-код из кэша
func (s *qrCodeService) invalidate(ctx context.Context, id string) {
	if err := s.cacheRepo.Delete(ctx, id); err != nil {
		s.logger.Warn("Failed to invalidate cached qr code", zap.String("qr_code_id", id), zap.Error(err))
	}
}

// validateTargetURL проверяет формат ссылки и чёрный список доменов
func validateTargetURL(raw string) error {
	if !urlPattern.MatchString(raw) {
		return ErrInvalidURL
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return ErrInvalidURL
	}

	host := strings.ToLower(parsed.Hostname())
	for _, domain := range blacklistedDomains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return ErrSpamDomain
		}
	}
	return nil
}

// validateQRCode проверяет сущность перед сохранением
func validateQRCode(qr *models.QRCode) error {
	if qr.Name == "" || len(qr.Name) > maxNameLength {
		return fmt.Errorf("%w: name must be 1-%d characters", ErrInvalidQRCode, maxNameLength)
	}
	switch qr.Type {
	case models.QRCodeTypeStatic, models.QRCodeTypeDynamic:
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidQRCode, qr.Type)
	}
	switch qr.Size {
	case models.QRCodeSizeSmall, models.QRCodeSizeMedium, models.QRCodeSizeLarge:
	default:
		return fmt.Errorf("%w: unknown size %q", ErrInvalidQRCode, qr.Size)
	}
	if qr.MaxScans < 0 {
		return fmt.Errorf("%w: max scans cannot be negative", ErrInvalidQRCode)
	}
	return nil
}
