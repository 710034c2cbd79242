package service

import (
	"context"
	"sync"
	"time"

	"github.com/SergeiKhy/scanme-analytics/internal/config"
	"github.com/SergeiKhy/scanme-analytics/internal/geo"
	"github.com/SergeiKhy/scanme-analytics/internal/models"
	"go.uber.org/zap"
)

// Параметры worker pool по умолчанию
const (
	defaultWorkerCount   = 3
	defaultChannelBuffer = 1000
	processTimeout       = 5 * time.Second
)

// ScanProcessor записывает сканы вне запроса через пул воркеров
type ScanProcessor interface {
	Start()
	// Stop закрывает очередь и ждёт записи всех событий
	Stop()
	// Enqueue не блокирует, при полном буфере событие отбрасывается
	Enqueue(ctx context.Context, event *models.ScanEvent) error
	Stats() ChannelStats
}

// scanProcessor реализация ScanProcessor на буферизованном канале
type scanProcessor struct {
	recorder    ScanRecorder
	locator     geo.Locator
	logger      *zap.Logger
	events      chan *models.ScanEvent
	workerCount int
	wg          sync.WaitGroup
	mu          sync.RWMutex
	stopped     bool
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewScanProcessor создаёт новый процессор сканов
func NewScanProcessor(
	recorder ScanRecorder,
	locator geo.Locator,
	cfg config.AnalyticsConfig,
	logger *zap.Logger,
) ScanProcessor {
	workers := cfg.WorkerCount
	if workers <= 0 {
		workers = defaultWorkerCount
	}
	buffer := cfg.BufferSize
	if buffer <= 0 {
		buffer = defaultChannelBuffer
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &scanProcessor{
		recorder:    recorder,
		locator:     locator,
		logger:      logger,
		events:      make(chan *models.ScanEvent, buffer),
		workerCount: workers,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start запускает worker pool
func (p *scanProcessor) Start() {
	p.logger.Info("Starting scan processor workers", zap.Int("count", p.workerCount))

	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop корректно останавливает worker pool
func (p *scanProcessor) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.events)
	p.mu.Unlock()

	p.logger.Info("Stopping scan processor, draining queue", zap.Int("pending", len(p.events)))
	p.wg.Wait()
	p.cancel()
	p.logger.Info("Scan processor stopped")
}

// worker обрабатывает события из канала до его закрытия
func (p *scanProcessor) worker(id int) {
	defer p.wg.Done()

	p.logger.Debug("Scan worker started", zap.Int("id", id))
	for event := range p.events {
		p.process(event)
	}
	p.logger.Debug("Scan worker stopped", zap.Int("id", id))
}

// process определяет геолокацию и записывает скан
func (p *scanProcessor) process(event *models.ScanEvent) {
	ctx, cancel := context.WithTimeout(p.ctx, processTimeout)
	defer cancel()

	p.locate(ctx, event)

	if _, err := p.recorder.RecordScan(ctx, event.QRCodeID, *event); err != nil {
		p.logger.Error("Failed to record scan",
			zap.String("qr_code_id", event.QRCodeID),
			zap.Error(err),
		)
	}
}

// locate заполняет страну и город, если событие их не содержит
func (p *scanProcessor) locate(ctx context.Context, event *models.ScanEvent) {
	if p.locator == nil || event.IPAddress == nil || event.Country != nil {
		return
	}

	loc, err := p.locator.Locate(ctx, *event.IPAddress)
	if err != nil {
		p.logger.Warn("Geo lookup failed",
			zap.String("qr_code_id", event.QRCodeID),
			zap.Error(err),
		)
		return
	}
	if loc == nil {
		return
	}

	if loc.Country != "" {
		country := loc.Country
		event.Country = &country
	}
	if loc.City != "" {
		city := loc.City
		event.City = &city
	}
}

// Enqueue ставит событие в очередь без блокировки
func (p *scanProcessor) Enqueue(ctx context.Context, event *models.ScanEvent) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		return ErrProcessorStopped
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case p.events <- event:
		return nil
	default:
		p.logger.Warn("Scan buffer full, event dropped",
			zap.String("qr_code_id", event.QRCodeID),
		)
		return nil
	}
}

// Stats возвращает статистику канала
func (p *scanProcessor) Stats() ChannelStats {
	return ChannelStats{
		BufferSize:  cap(p.events),
		BufferUsed:  len(p.events),
		WorkerCount: p.workerCount,
	}
}

// ChannelStats статистика канала worker pool
type ChannelStats struct {
	BufferSize  int `json:"buffer_size"`  // Ёмкость буфера
	BufferUsed  int `json:"buffer_used"`  // Событий в очереди
	WorkerCount int `json:"worker_count"` // Количество воркеров
}
