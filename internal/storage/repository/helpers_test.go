package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/video-downloader/internal/migrations"
	"github.com/magabrotheeeer/video-downloader/internal/models"
)

// setupTestDatabase поднимает PostgreSQL в контейнере и накатывает миграции.
func setupTestDatabase(t *testing.T) *Storage {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	require.NoError(t, err, "failed to start container")
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	storage, err := New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = storage.Close() })

	require.NoError(t, migrations.Run(storage.DB))
	return storage
}

// TestDataFactory создаёт тестовые данные напрямую в базе.
type TestDataFactory struct {
	storage *Storage
}

func NewTestDataFactory(storage *Storage) *TestDataFactory {
	return &TestDataFactory{storage: storage}
}

func (f *TestDataFactory) CreateUser(t *testing.T, email string, tier models.Tier) string {
	t.Helper()
	uid, err := f.storage.RegisterUser(context.Background(), models.User{
		Name:         "Test User",
		Email:        email,
		PasswordHash: "hashedpassword",
		Role:         models.RoleUser,
		Tier:         tier,
	})
	require.NoError(t, err)
	return uid
}

// CreateJob вставляет задание с произвольными временем создания и сроком жизни.
func (f *TestDataFactory) CreateJob(t *testing.T, userUID string, status models.JobStatus, createdAt, expiresAt time.Time) string {
	t.Helper()
	var path *string
	if status == models.JobCompleted {
		p := "/tmp/" + userUID + ".mp4"
		path = &p
	}
	var id string
	err := f.storage.DB.QueryRow(`INSERT INTO jobs (user_uid, url, status, download_path, created_at, expires_at)
		VALUES ($1, 'https://example.com/v', $2, $3, $4, $5) RETURNING id`,
		userUID, string(status), path, createdAt, expiresAt).Scan(&id)
	require.NoError(t, err)
	return id
}

func allowFree(limit int) func(models.Tier, int) bool {
	return func(tier models.Tier, jobsToday int) bool {
		return tier == models.TierPremium || jobsToday < limit
	}
}
