package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/SergeiKhy/scanme-analytics/internal/config"
	"github.com/SergeiKhy/scanme-analytics/internal/models"
	"github.com/SergeiKhy/scanme-analytics/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
)

type testStores struct {
	db     *repository.PostgresDB
	qrs    repository.QRCodeRepository
	scans  repository.ScanRepository
	users  repository.UserRepository
	cache  repository.CacheRepository
	closer func()
}

// setupStores starts Postgres and Redis containers and applies the schema.
func setupStores(t *testing.T) *testStores {
	t.Helper()
	ctx := context.Background()

	dbContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("scanme"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	redisContainer, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)

	dbHost, err := dbContainer.Host(ctx)
	require.NoError(t, err)
	dbPort, err := dbContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)
	redisHost, err := redisContainer.Host(ctx)
	require.NoError(t, err)
	redisPort, err := redisContainer.MappedPort(ctx, "6379")
	require.NoError(t, err)

	db, err := repository.NewPostgresDB(config.DBConfig{
		Host:     dbHost,
		Port:     dbPort.Port(),
		User:     "user",
		Password: "password",
		Name:     "scanme",
	})
	require.NoError(t, err)
	require.NoError(t, repository.Migrate(ctx, db))
	// Migrations are idempotent.
	require.NoError(t, repository.Migrate(ctx, db))

	redisDB, err := repository.NewRedisClient(config.RedisConfig{
		Host: redisHost,
		Port: redisPort.Port(),
	})
	require.NoError(t, err)

	return &testStores{
		db:    db,
		qrs:   repository.NewQRCodeRepository(db),
		scans: repository.NewScanRepository(db),
		users: repository.NewUserRepository(db),
		cache: repository.NewCacheRepository(redisDB),
		closer: func() {
			db.Close()
			_ = redisDB.Close()
			_ = dbContainer.Terminate(ctx)
			_ = redisContainer.Terminate(ctx)
		},
	}
}

func createQRCode(t *testing.T, s *testStores, maxScans int64) *models.QRCode {
	t.Helper()
	qr := &models.QRCode{
		ID:        uuid.NewString(),
		UserID:    "user-1",
		Name:      "Flyer",
		Type:      models.QRCodeTypeDynamic,
		TargetURL: "https://example.com/flyer",
		Size:      models.QRCodeSizeMedium,
		Status:    models.QRCodeStatusActive,
		MaxScans:  maxScans,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.qrs.Create(context.Background(), qr))
	return qr
}

func strPtr(s string) *string { return &s }

func TestIntegration_Repositories(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	s := setupStores(t)
	defer s.closer()
	ctx := context.Background()

	t.Run("qr code lifecycle", func(t *testing.T) {
		qr := createQRCode(t, s, 0)

		got, err := s.qrs.GetByID(ctx, qr.ID)
		require.NoError(t, err)
		assert.Equal(t, qr.TargetURL, got.TargetURL)
		assert.Equal(t, "user-1", got.UserID)

		assert.ErrorIs(t, s.qrs.Create(ctx, qr), repository.ErrQRCodeExists)

		require.NoError(t, s.qrs.SoftDelete(ctx, qr.ID))
		assert.ErrorIs(t, s.qrs.SoftDelete(ctx, qr.ID), repository.ErrQRCodeNotFound)

		got, err = s.qrs.GetByID(ctx, qr.ID)
		require.NoError(t, err)
		assert.Equal(t, models.QRCodeStatusDeleted, got.Status)

		_, err = s.qrs.RegisterScan(ctx, qr.ID)
		assert.ErrorIs(t, err, repository.ErrQRCodeInactive)

		_, err = s.qrs.GetByID(ctx, "not-a-uuid")
		assert.ErrorIs(t, err, repository.ErrQRCodeNotFound)
	})

	t.Run("scan limit locks the code", func(t *testing.T) {
		qr := createQRCode(t, s, 2)

		first, err := s.qrs.RegisterScan(ctx, qr.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), first.ScanCount)
		assert.Equal(t, models.QRCodeStatusActive, first.Status)

		second, err := s.qrs.RegisterScan(ctx, qr.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), second.ScanCount)
		assert.Equal(t, models.QRCodeStatusLocked, second.Status)

		_, err = s.qrs.RegisterScan(ctx, qr.ID)
		assert.ErrorIs(t, err, repository.ErrQRCodeInactive)

		_, err = s.qrs.RegisterScan(ctx, uuid.NewString())
		assert.ErrorIs(t, err, repository.ErrQRCodeNotFound)
	})

	t.Run("scans", func(t *testing.T) {
		qr := createQRCode(t, s, 0)
		base := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

		inserts := []models.ScanRecord{
			{ID: uuid.NewString(), QRCodeID: qr.ID, IPAddress: strPtr("1.1.1.1"), Device: "Mobile", Browser: "Chrome 120", OS: "Android 14", ScanDate: base},
			{ID: uuid.NewString(), QRCodeID: qr.ID, IPAddress: strPtr("1.1.1.1"), Device: "Desktop", Browser: "Firefox 121", OS: "Windows 10", ScanDate: base.Add(24 * time.Hour)},
			{ID: uuid.NewString(), QRCodeID: qr.ID, Device: "Desktop", Browser: models.UnknownValue, OS: models.UnknownValue, ScanDate: base.Add(48 * time.Hour)},
		}
		for i := range inserts {
			require.NoError(t, s.scans.Insert(ctx, &inserts[i]))
		}

		all, err := s.scans.FindByQRCode(ctx, qr.ID)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, inserts[2].ID, all[0].ID)
		assert.Nil(t, all[0].IPAddress)

		inRange, err := s.scans.FindInRange(ctx, qr.ID, base, base.Add(24*time.Hour))
		require.NoError(t, err)
		require.Len(t, inRange, 2)
		assert.Equal(t, inserts[0].ID, inRange[0].ID)

		summary, err := s.scans.Summary(ctx, qr.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(3), summary.TotalScans)
		assert.Equal(t, int64(1), summary.UniqueVisitors)

		none, err := s.scans.FindByQRCode(ctx, uuid.NewString())
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("user timezone", func(t *testing.T) {
		_, err := s.users.GetByID(ctx, "user-tz")
		assert.ErrorIs(t, err, repository.ErrUserNotFound)

		require.NoError(t, s.users.SetTimezone(ctx, "user-tz", "America/Los_Angeles"))
		require.NoError(t, s.users.SetTimezone(ctx, "user-tz", "Asia/Tokyo"))

		user, err := s.users.GetByID(ctx, "user-tz")
		require.NoError(t, err)
		assert.Equal(t, "Asia/Tokyo", user.Timezone)
	})

	t.Run("redis cache", func(t *testing.T) {
		qr := createQRCode(t, s, 0)
		require.NoError(t, s.cache.Set(ctx, qr, time.Minute))

		got, err := s.cache.Get(ctx, qr.ID)
		require.NoError(t, err)
		assert.Equal(t, qr.ID, got.ID)
	})
}
