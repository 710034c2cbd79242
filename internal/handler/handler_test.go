package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/SergeiKhy/scanme-analytics/internal/calendar"
	"github.com/SergeiKhy/scanme-analytics/internal/config"
	"github.com/SergeiKhy/scanme-analytics/internal/handler"
	"github.com/SergeiKhy/scanme-analytics/internal/middleware"
	"github.com/SergeiKhy/scanme-analytics/internal/models"
	"github.com/SergeiKhy/scanme-analytics/internal/service"
	"github.com/SergeiKhy/scanme-analytics/internal/service/mocks"
	"github.com/SergeiKhy/scanme-analytics/internal/useragent"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	apiKey = "key-1"
	la     = "America/Los_Angeles"
	iPhone = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

type testEnv struct {
	router    *gin.Engine
	qrRepo    *mocks.MockQRCodeRepository
	scanRepo  *mocks.MockScanRepository
	processor service.ScanProcessor
}

func setupTestEnv(t *testing.T, health map[string]handler.Pinger) *testEnv {
	t.Helper()
	logger := zap.NewNop()

	qrRepo := mocks.NewMockQRCodeRepository()
	scanRepo := mocks.NewMockScanRepository()
	cal := calendar.NewWithClock(func() time.Time {
		return time.Date(2024, time.March, 31, 18, 0, 0, 0, time.UTC)
	})

	qrCodes := service.NewQRCodeService(qrRepo, mocks.NewMockCacheRepository(), time.Minute, logger)
	analytics := service.NewAnalyticsService(scanRepo, cal, logger)
	recorder := service.NewScanRecorder(scanRepo, useragent.NewClassifier(), nil)
	processor := service.NewScanProcessor(recorder, nil, config.AnalyticsConfig{WorkerCount: 1, BufferSize: 10}, logger)
	processor.Start()
	t.Cleanup(processor.Stop)

	router := handler.NewRouter(handler.Services{
		QRCodes:   qrCodes,
		Analytics: analytics,
		Exporter:  service.NewExportService(scanRepo, analytics, logger),
		Users:     service.NewUserService(mocks.NewMockUserRepository()),
		Processor: processor,
	}, handler.RouterConfig{
		BaseURL:         "http://scan.me",
		DefaultTimezone: "UTC",
		APIKey:          middleware.RequireAPIKey(map[string]string{apiKey: "user-1"}),
		HealthChecks:    health,
	}, logger)

	return &testEnv{router: router, qrRepo: qrRepo, scanRepo: scanRepo, processor: processor}
}

func (env *testEnv) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", apiKey)

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func (env *testEnv) seedScans(t *testing.T, id string, times ...string) {
	t.Helper()
	for i, at := range times {
		ts, err := time.Parse(time.RFC3339, at)
		require.NoError(t, err)
		env.scanRepo.Add(models.ScanRecord{
			ID:       id + "-" + string(rune('a'+i)),
			QRCodeID: id,
			Device:   "Mobile",
			Browser:  "Mobile Safari 17",
			OS:       "iOS 17",
			ScanDate: ts,
		})
	}
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) handler.ErrorResponse {
	t.Helper()
	var resp handler.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHealthCheck(t *testing.T) {
	env := setupTestEnv(t, map[string]handler.Pinger{"postgres": pinger{}})

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, "scanme-analytics", resp["service"])

	env = setupTestEnv(t, map[string]handler.Pinger{"redis": pinger{err: errors.New("connection refused")}})
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCreateAndGetQRCode(t *testing.T) {
	env := setupTestEnv(t, nil)

	w := env.do(http.MethodPost, "/api/v1/qr-codes", map[string]any{
		"name":       "Menu",
		"target_url": "https://example.com/menu",
		"max_scans":  10,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	id, _ := created["id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, "http://scan.me/r/"+id, created["scan_url"])
	assert.Equal(t, "user-1", created["user_id"])
	assert.Equal(t, "dynamic", created["type"])

	w = env.do(http.MethodGet, "/api/v1/qr-codes/"+id, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodGet, "/api/v1/qr-codes/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateQRCode_Errors(t *testing.T) {
	env := setupTestEnv(t, nil)

	tests := []struct {
		name string
		body map[string]any
		code string
	}{
		{"missing fields", map[string]any{"name": "x"}, "invalid_request"},
		{"bad url", map[string]any{"name": "x", "target_url": "not-a-url"}, "invalid_url"},
		{"spam", map[string]any{"name": "x", "target_url": "https://phishing.com/login"}, "spam_domain"},
		{"bad size", map[string]any{"name": "x", "target_url": "https://example.com", "size": "poster"}, "invalid_qr_code"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(http.MethodPost, "/api/v1/qr-codes", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.code, decodeError(t, w).Error)
		})
	}
}

func TestAPIRequiresKey(t *testing.T) {
	env := setupTestEnv(t, nil)

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/qr-code/qr-1/summary", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRedirect(t *testing.T) {
	env := setupTestEnv(t, nil)
	env.qrRepo.Put(&models.QRCode{
		ID:        "qr-1",
		Name:      "Flyer",
		TargetURL: "https://example.com/landing",
		Status:    models.QRCodeStatusActive,
		MaxScans:  1,
	})

	req := httptest.NewRequest(http.MethodGet, "/r/qr-1", nil)
	req.Header.Set("User-Agent", iPhone)
	req.Header.Set("Referer", "https://social.example.com")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
	assert.Equal(t, "https://example.com/landing", w.Header().Get("Location"))

	// Second scan exceeds the limit of one.
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/r/qr-1", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "qr_code_inactive", decodeError(t, w).Error)

	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/r/unknown", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	env.processor.Stop()
	scans := env.scanRepo.All()
	require.Len(t, scans, 1)
	assert.Equal(t, useragent.DeviceMobile, scans[0].Device)
	assert.Equal(t, "Mobile Safari 17", scans[0].Browser)
	require.NotNil(t, scans[0].Referer)
	assert.Equal(t, "https://social.example.com", *scans[0].Referer)
}

func TestRedirect_DeletedCode(t *testing.T) {
	env := setupTestEnv(t, nil)
	env.qrRepo.Put(&models.QRCode{ID: "gone", TargetURL: "https://example.com", Status: models.QRCodeStatusDeleted})

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/r/gone", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)

	env.processor.Stop()
	assert.Empty(t, env.scanRepo.All())
}

func TestDailyScans_TimezoneResolution(t *testing.T) {
	env := setupTestEnv(t, nil)
	env.qrRepo.Put(&models.QRCode{ID: "qr-1", Status: models.QRCodeStatusActive})
	env.seedScans(t, "qr-1", "2024-03-10T23:30:00Z", "2024-03-11T00:30:00Z")

	const path = "/api/v1/analytics/qr-code/qr-1/daily-scans?startDate=2024-03-01&endDate=2024-03-31"

	// Configured default.
	w := env.do(http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp handler.DailyScansResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "UTC", resp.Timezone)
	assert.Len(t, resp.Buckets, 2)

	// Stored preference.
	w = env.do(http.MethodPut, "/api/v1/users/me/timezone", map[string]string{"timezone": la})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp = handler.DailyScansResponse{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, la, resp.Timezone)
	assert.Equal(t, "2024-03-01T00:00:00.000-08:00", resp.StartDate)
	assert.Equal(t, []models.Bucket{{DateKey: "2024-03-10", Label: "2024-03-10", Count: 2}}, resp.Buckets)

	// Explicit parameter wins.
	w = env.do(http.MethodGet, path+"&timezone=Asia/Tokyo&interval=month", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp = handler.DailyScansResponse{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Asia/Tokyo", resp.Timezone)
	assert.Equal(t, []models.Bucket{{DateKey: "2024-03-01", Label: "March 2024", Count: 2}}, resp.Buckets)
}

func TestDailyScans_Defaults(t *testing.T) {
	env := setupTestEnv(t, nil)
	env.qrRepo.Put(&models.QRCode{ID: "qr-1", Status: models.QRCodeStatusActive})
	env.seedScans(t, "qr-1", "2024-02-15T12:00:00Z", "2024-03-10T12:00:00Z", "2024-03-31T17:00:00Z")

	w := env.do(http.MethodGet, "/api/v1/analytics/qr-code/qr-1/daily-scans", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp handler.DailyScansResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.IntervalDay, resp.Interval)
	assert.Equal(t, "2024-03-01T00:00:00.000Z", resp.StartDate)
	assert.Equal(t, "2024-03-31T23:59:59.999Z", resp.EndDate)
	require.Len(t, resp.Buckets, 2)
	assert.Equal(t, "2024-03-10", resp.Buckets[0].DateKey)
	assert.Equal(t, "2024-03-31", resp.Buckets[1].DateKey)
}

func TestDailyScans_Errors(t *testing.T) {
	env := setupTestEnv(t, nil)
	env.qrRepo.Put(&models.QRCode{ID: "qr-1", Status: models.QRCodeStatusActive})

	tests := []struct {
		name   string
		query  string
		status int
		code   string
	}{
		{"range", "?startDate=2024-03-10&endDate=2024-03-01", http.StatusBadRequest, "invalid_date_range"},
		{"format", "?startDate=sometime", http.StatusBadRequest, "invalid_date_format"},
		{"timezone", "?timezone=Mars/Base", http.StatusBadRequest, "unknown_timezone"},
		{"interval", "?interval=hour", http.StatusBadRequest, "invalid_interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(http.MethodGet, "/api/v1/analytics/qr-code/qr-1/daily-scans"+tt.query, nil)
			assert.Equal(t, tt.status, w.Code)
			resp := decodeError(t, w)
			assert.Equal(t, tt.code, resp.Error)
		})
	}

	w := env.do(http.MethodGet, "/api/v1/analytics/qr-code/qr-1/daily-scans?startDate=sometime", nil)
	assert.Contains(t, decodeError(t, w).Message, "sometime")

	w = env.do(http.MethodGet, "/api/v1/analytics/qr-code/missing/daily-scans", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBreakdownEndpoints(t *testing.T) {
	env := setupTestEnv(t, nil)
	env.qrRepo.Put(&models.QRCode{ID: "qr-1", Status: models.QRCodeStatusActive})
	env.scanRepo.Add(
		models.ScanRecord{ID: "1", QRCodeID: "qr-1", Device: "Mobile", Browser: "Chrome Mobile 120", OS: "Android 14"},
		models.ScanRecord{ID: "2", QRCodeID: "qr-1", Device: "Mobile", Browser: "Mobile Safari 17", OS: "iOS 17"},
		models.ScanRecord{ID: "3", QRCodeID: "qr-1", Device: "Desktop", Browser: "Chrome 120", OS: "Windows 10"},
	)

	w := env.do(http.MethodGet, "/api/v1/analytics/qr-code/qr-1/device-breakdown", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"qr_code_id": "qr-1",
		"dimension": "device",
		"entries": [{"device": "Mobile", "count": 2}, {"device": "Desktop", "count": 1}]
	}`, w.Body.String())

	w = env.do(http.MethodGet, "/api/v1/analytics/qr-code/qr-1/os-breakdown", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"os":"Windows 10"`)

	w = env.do(http.MethodGet, "/api/v1/analytics/qr-code/qr-1/browser-breakdown", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"browser":"Chrome 120"`)
}

func TestDeletedCodeKeepsAnalytics(t *testing.T) {
	env := setupTestEnv(t, nil)
	env.qrRepo.Put(&models.QRCode{ID: "qr-1", Status: models.QRCodeStatusActive})
	env.seedScans(t, "qr-1", "2024-03-10T12:00:00Z")

	w := env.do(http.MethodDelete, "/api/v1/qr-codes/qr-1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodGet, "/api/v1/analytics/qr-code/qr-1/summary", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"qr_code_id":"qr-1","total_scans":1,"unique_visitors":0}`, w.Body.String())

	w = env.do(http.MethodGet, "/api/v1/analytics/qr-code/qr-1/scans", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"qr_code_id":"qr-1"`)

	w = env.do(http.MethodDelete, "/api/v1/qr-codes/qr-1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExportScans(t *testing.T) {
	env := setupTestEnv(t, nil)
	env.qrRepo.Put(&models.QRCode{ID: "qr-1", Status: models.QRCodeStatusActive})
	env.seedScans(t, "qr-1", "2024-03-10T12:00:00Z")

	w := env.do(http.MethodGet, "/api/v1/analytics/qr-code/qr-1/export?startDate=2024-03-01&endDate=2024-03-31", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "application/vnd.openxmlformats"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "scans-qr-1-20240331.xlsx")
	assert.NotZero(t, w.Body.Len())
}

func TestUserTimezone(t *testing.T) {
	env := setupTestEnv(t, nil)

	w := env.do(http.MethodGet, "/api/v1/users/me/timezone", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"timezone":"UTC","source":"default"}`, w.Body.String())

	w = env.do(http.MethodPut, "/api/v1/users/me/timezone", map[string]string{"timezone": "Atlantis/Capital"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "unknown_timezone", decodeError(t, w).Error)

	w = env.do(http.MethodPut, "/api/v1/users/me/timezone", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPut, "/api/v1/users/me/timezone", map[string]string{"timezone": "Europe/Paris"})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodGet, "/api/v1/users/me/timezone", nil)
	assert.JSONEq(t, `{"timezone":"Europe/Paris","source":"user"}`, w.Body.String())
}
