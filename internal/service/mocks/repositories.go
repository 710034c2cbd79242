package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/SergeiKhy/scanme-analytics/internal/models"
	"github.com/SergeiKhy/scanme-analytics/internal/repository"
)

// MockQRCodeRepository implements repository.QRCodeRepository for testing
type MockQRCodeRepository struct {
	mu    sync.RWMutex
	codes map[string]*models.QRCode
}

func NewMockQRCodeRepository() *MockQRCodeRepository {
	return &MockQRCodeRepository{
		codes: make(map[string]*models.QRCode),
	}
}

func (m *MockQRCodeRepository) Create(ctx context.Context, qr *models.QRCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.codes[qr.ID]; exists {
		return repository.ErrQRCodeExists
	}
	qr.UpdatedAt = qr.CreatedAt
	stored := *qr
	m.codes[qr.ID] = &stored
	return nil
}

func (m *MockQRCodeRepository) GetByID(ctx context.Context, id string) (*models.QRCode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	qr, exists := m.codes[id]
	if !exists {
		return nil, repository.ErrQRCodeNotFound
	}
	cp := *qr
	return &cp, nil
}

func (m *MockQRCodeRepository) SoftDelete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	qr, exists := m.codes[id]
	if !exists || qr.Status == models.QRCodeStatusDeleted {
		return repository.ErrQRCodeNotFound
	}
	qr.Status = models.QRCodeStatusDeleted
	return nil
}

func (m *MockQRCodeRepository) RegisterScan(ctx context.Context, id string) (*models.QRCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	qr, exists := m.codes[id]
	if !exists {
		return nil, repository.ErrQRCodeNotFound
	}
	if qr.Status != models.QRCodeStatusActive {
		return nil, repository.ErrQRCodeInactive
	}
	if qr.LimitReached() {
		qr.Status = models.QRCodeStatusLocked
		return nil, repository.ErrScanLimitReached
	}

	qr.ScanCount++
	if qr.LimitReached() {
		qr.Status = models.QRCodeStatusLocked
	}
	cp := *qr
	return &cp, nil
}

// Put stores a code as-is, bypassing Create defaults.
func (m *MockQRCodeRepository) Put(qr *models.QRCode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *qr
	m.codes[qr.ID] = &stored
}

// MockCacheRepository implements repository.CacheRepository for testing
type MockCacheRepository struct {
	mu    sync.RWMutex
	cache map[string]*models.QRCode
}

func NewMockCacheRepository() *MockCacheRepository {
	return &MockCacheRepository{
		cache: make(map[string]*models.QRCode),
	}
}

func (m *MockCacheRepository) Get(ctx context.Context, id string) (*models.QRCode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	qr, exists := m.cache[id]
	if !exists {
		return nil, repository.ErrCacheMiss
	}
	cp := *qr
	return &cp, nil
}

func (m *MockCacheRepository) Set(ctx context.Context, qr *models.QRCode, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *qr
	m.cache[qr.ID] = &stored
	return nil
}

func (m *MockCacheRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache, id)
	return nil
}

func (m *MockCacheRepository) Has(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.cache[id]
	return ok
}

// MockScanRepository implements repository.ScanRepository for testing
type MockScanRepository struct {
	mu         sync.RWMutex
	scans      []models.ScanRecord
	InsertErr  error
	QueryCalls int
}

func NewMockScanRepository() *MockScanRepository {
	return &MockScanRepository{}
}

func (m *MockScanRepository) Insert(ctx context.Context, scan *models.ScanRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.InsertErr != nil {
		return m.InsertErr
	}
	m.scans = append(m.scans, *scan)
	return nil
}

func (m *MockScanRepository) FindByQRCode(ctx context.Context, qrCodeID string) ([]models.ScanRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.QueryCalls++

	result := []models.ScanRecord{}
	for _, s := range m.scans {
		if s.QRCodeID == qrCodeID {
			result = append(result, s)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].ScanDate.After(result[j].ScanDate)
	})
	return result, nil
}

func (m *MockScanRepository) FindInRange(ctx context.Context, qrCodeID string, start, end time.Time) ([]models.ScanRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.QueryCalls++

	result := []models.ScanRecord{}
	for _, s := range m.scans {
		if s.QRCodeID == qrCodeID && !s.ScanDate.Before(start) && !s.ScanDate.After(end) {
			result = append(result, s)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].ScanDate.Before(result[j].ScanDate)
	})
	return result, nil
}

func (m *MockScanRepository) Summary(ctx context.Context, qrCodeID string) (*models.ScanSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	summary := &models.ScanSummary{QRCodeID: qrCodeID}
	uniqueIPs := make(map[string]bool)
	for _, s := range m.scans {
		if s.QRCodeID != qrCodeID {
			continue
		}
		summary.TotalScans++
		if s.IPAddress != nil {
			uniqueIPs[*s.IPAddress] = true
		}
	}
	summary.UniqueVisitors = int64(len(uniqueIPs))
	return summary, nil
}

// Add stores scans directly, bypassing the recorder.
func (m *MockScanRepository) Add(scans ...models.ScanRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scans = append(m.scans, scans...)
}

func (m *MockScanRepository) All() []models.ScanRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.ScanRecord(nil), m.scans...)
}

func (m *MockScanRepository) Calls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.QueryCalls
}

// MockUserRepository implements repository.UserRepository for testing
type MockUserRepository struct {
	mu    sync.RWMutex
	users map[string]*models.User
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		users: make(map[string]*models.User),
	}
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, exists := m.users[id]
	if !exists {
		return nil, repository.ErrUserNotFound
	}
	cp := *user
	return &cp, nil
}

func (m *MockUserRepository) SetTimezone(ctx context.Context, id, timezone string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, exists := m.users[id]
	if !exists {
		user = &models.User{ID: id, CreatedAt: time.Now()}
		m.users[id] = user
	}
	user.Timezone = timezone
	return nil
}
