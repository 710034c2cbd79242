package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/SergeiKhy/scanme-analytics/internal/calendar"
	"github.com/SergeiKhy/scanme-analytics/internal/models"
	"github.com/SergeiKhy/scanme-analytics/internal/repository"
	"go.uber.org/zap"
)

// Значения по умолчанию для параметров запроса аналитики
const (
	DefaultStartDate = "30d"
	DefaultEndDate   = "today"
	DefaultTimezone  = "UTC"
)

// AnalyticsService интерфейс сервиса аналитики сканов
type AnalyticsService interface {
	// ResolveQuery применяет значения по умолчанию и разбирает даты в raw.Timezone
	ResolveQuery(raw models.RawScanQuery) (models.AggregateQuery, error)
	Aggregate(ctx context.Context, qrCodeID string, query models.AggregateQuery) ([]models.Bucket, error)
	BreakdownBy(ctx context.Context, qrCodeID string, dimension models.Dimension) ([]models.BreakdownEntry, error)
	// BucketScans группирует уже загруженные сканы так же, как Aggregate
	BucketScans(scans []models.ScanRecord, query models.AggregateQuery) ([]models.Bucket, error)
	ListScans(ctx context.Context, qrCodeID string) ([]models.ScanRecord, error)
	Summary(ctx context.Context, qrCodeID string) (*models.ScanSummary, error)
}

// analyticsService реализация AnalyticsService
type analyticsService struct {
	scanRepo repository.ScanRepository
	calendar *calendar.Calendar
	logger   *zap.Logger
}

// NewAnalyticsService создаёт новый экземпляр сервиса
func NewAnalyticsService(scanRepo repository.ScanRepository, cal *calendar.Calendar, logger *zap.Logger) AnalyticsService {
	return &analyticsService{
		scanRepo: scanRepo,
		calendar: cal,
		logger:   logger,
	}
}

// ResolveQuery разбирает параметры запроса в часовом поясе зрителя
func (s *analyticsService) ResolveQuery(raw models.RawScanQuery) (models.AggregateQuery, error) {
	tz := raw.Timezone
	if tz == "" {
		tz = DefaultTimezone
	}
	if _, err := calendar.Location(tz); err != nil {
		return models.AggregateQuery{}, err
	}

	interval := models.IntervalDay
	if raw.Interval != "" {
		interval = models.Interval(raw.Interval)
	}
	if !interval.Valid() {
		return models.AggregateQuery{}, fmt.Errorf("%w: %q", ErrInvalidInterval, raw.Interval)
	}

	startText := raw.StartDate
	if startText == "" {
		startText = DefaultStartDate
	}
	endText := raw.EndDate
	if endText == "" {
		endText = DefaultEndDate
	}

	start, err := s.calendar.ParseDate(startText, calendar.ParseOptions{}, tz)
	if err != nil {
		return models.AggregateQuery{}, err
	}
	end, err := s.calendar.ParseDate(endText, calendar.ParseOptions{EndOfDay: true}, tz)
	if err != nil {
		return models.AggregateQuery{}, err
	}

	query := models.AggregateQuery{
		DateRange: models.DateRange{StartDate: start, EndDate: end},
		Interval:  interval,
		Timezone:  tz,
	}
	if err := validateRange(query.DateRange); err != nil {
		return models.AggregateQuery{}, err
	}

	return query, nil
}

// validateRange проверяет, что начало диапазона не позже конца
func validateRange(r models.DateRange) error {
	if r.StartDate.After(r.EndDate) {
		return fmt.Errorf("%w: %s > %s", ErrInvalidDateRange,
			r.StartDate.UTC().Format(time.RFC3339), r.EndDate.UTC().Format(time.RFC3339))
	}
	return nil
}

// Aggregate загружает сканы за диапазон и группирует их по интервалу
func (s *analyticsService) Aggregate(ctx context.Context, qrCodeID string, query models.AggregateQuery) ([]models.Bucket, error) {
	if err := validateRange(query.DateRange); err != nil {
		return nil, err
	}
	if err := validateBucketing(query); err != nil {
		return nil, err
	}

	// Загружаем сканы за диапазон
	scans, err := s.scanRepo.FindInRange(ctx, qrCodeID, query.StartDate, query.EndDate)
	if err != nil {
		return nil, fmt.Errorf("failed to load scans: %w", err)
	}

	result, err := s.BucketScans(scans, query)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Aggregated scans",
		zap.String("qr_code_id", qrCodeID),
		zap.String("interval", string(query.Interval)),
		zap.String("timezone", query.Timezone),
		zap.Int("scans", len(scans)),
		zap.Int("buckets", len(result)),
	)

	return result, nil
}

// validateBucketing проверяет интервал и часовой пояс запроса
func validateBucketing(query models.AggregateQuery) error {
	if !query.Interval.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidInterval, query.Interval)
	}
	if _, err := calendar.Location(query.Timezone); err != nil {
		return err
	}
	return nil
}

// BucketScans считает сканы по дням, неделям или месяцам в часовом поясе зрителя
func (s *analyticsService) BucketScans(scans []models.ScanRecord, query models.AggregateQuery) ([]models.Bucket, error) {
	if err := validateBucketing(query); err != nil {
		return nil, err
	}

	buckets := make(map[string]*models.Bucket)
	for i := range scans {
		start, err := s.truncate(scans[i].ScanDate, query.Interval, query.Timezone)
		if err != nil {
			return nil, err
		}
		key, err := s.calendar.DateKey(start, query.Timezone)
		if err != nil {
			return nil, err
		}

		if b, ok := buckets[key]; ok {
			b.Count++
			continue
		}

		label, err := s.label(start, key, query.Interval, query.Timezone)
		if err != nil {
			return nil, err
		}
		buckets[key] = &models.Bucket{DateKey: key, Label: label, Count: 1}
	}

	// Сортируем по ключу даты, порядок из map не гарантирован
	result := make([]models.Bucket, 0, len(buckets))
	for _, b := range buckets {
		result = append(result, *b)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].DateKey < result[j].DateKey
	})

	return result, nil
}

// truncate возвращает начало интервала, в который попадает t
func (s *analyticsService) truncate(t time.Time, interval models.Interval, tz string) (time.Time, error) {
	switch interval {
	case models.IntervalWeek:
		return s.calendar.StartOfWeek(t, tz)
	case models.IntervalMonth:
		return s.calendar.StartOfMonth(t, tz)
	default:
		return s.calendar.StartOfDay(t, tz)
	}
}

// label формирует подпись корзины
func (s *analyticsService) label(start time.Time, key string, interval models.Interval, tz string) (string, error) {
	switch interval {
	case models.IntervalWeek:
		from, err := s.calendar.FormatDate(start, tz, calendar.StyleMedium)
		if err != nil {
			return "", err
		}
		last, err := s.calendar.AddDays(start, tz, 6)
		if err != nil {
			return "", err
		}
		to, err := s.calendar.FormatDate(last, tz, calendar.StyleMedium)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Week of %s - %s", from, to), nil
	case models.IntervalMonth:
		return s.calendar.FormatDate(start, tz, calendar.StyleMonth)
	default:
		return key, nil
	}
}

// BreakdownBy считает сканы по категориям измерения
func (s *analyticsService) BreakdownBy(ctx context.Context, qrCodeID string, dimension models.Dimension) ([]models.BreakdownEntry, error) {
	if !dimension.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDimension, dimension)
	}

	scans, err := s.scanRepo.FindByQRCode(ctx, qrCodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load scans: %w", err)
	}

	counts := make(map[string]int64)
	for i := range scans {
		counts[dimension.Value(&scans[i])]++
	}

	entries := make([]models.BreakdownEntry, 0, len(counts))
	for category, count := range counts {
		entries = append(entries, models.BreakdownEntry{
			Dimension: dimension,
			Category:  category,
			Count:     count,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Category < entries[j].Category
	})

	return entries, nil
}

// ListScans возвращает все сканы QR-кода, новые первыми
func (s *analyticsService) ListScans(ctx context.Context, qrCodeID string) ([]models.ScanRecord, error) {
	return s.scanRepo.FindByQRCode(ctx, qrCodeID)
}

// Summary возвращает общее число сканов и уникальных посетителей
func (s *analyticsService) Summary(ctx context.Context, qrCodeID string) (*models.ScanSummary, error) {
	return s.scanRepo.Summary(ctx, qrCodeID)
}
