//go:build integration

package repositories

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"clinic-chat/internal/db"
	"clinic-chat/internal/models"
)

func startPostgres(t *testing.T) *sqlx.DB {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "clinic",
			"POSTGRES_PASSWORD": "clinic",
			"POSTGRES_DB":       "clinic",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://clinic:clinic@%s:%s/clinic?sslmode=disable", host, port.Port())
	conn, err := db.Connect(ctx, dsn, 10)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, db.Migrate(ctx, conn))
	return conn
}

func seedUser(t *testing.T, conn *sqlx.DB, name, role string) int {
	t.Helper()
	var id int
	err := conn.Get(&id, `INSERT INTO users (username, email, role) VALUES ($1, $2, $3) RETURNING id`, name, name+"@clinic.test", role)
	require.NoError(t, err)
	return id
}

func TestCloseChannelConcurrentRequestsSerialize(t *testing.T) {
	conn := startPostgres(t)
	repo := NewChannelRepo(conn)
	ctx := context.Background()

	patient := seedUser(t, conn, "patient", models.RoleNamePlainUser)
	doctor := seedUser(t, conn, "doctor", models.RoleNameDoctor)
	channel, err := repo.CreateChannel(ctx, doctor, patient, "consultation")
	require.NoError(t, err)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		outcomes []models.CloseOutcome
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := repo.CloseChannel(ctx, channel.ID)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			outcomes = append(outcomes, result.Outcome)
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.ElementsMatch(t, []models.CloseOutcome{models.CloseArchived, models.CloseDeleted}, outcomes)

	reviews, err := NewReviewRepo(conn).ListReviews(ctx, models.ReviewFilter{})
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, patient, *reviews[0].ReviewerID)
	assert.Equal(t, doctor, *reviews[0].RevieweeID)

	_, err = repo.GetChannel(ctx, channel.ID)
	assert.ErrorIs(t, err, ErrChannelNotFound)

	_, err = repo.CloseChannel(ctx, channel.ID)
	assert.ErrorIs(t, err, ErrChannelNotFound)
}

func TestRegisterTokenMovesOwnership(t *testing.T) {
	conn := startPostgres(t)
	repo := NewTokenRepo(conn)
	ctx := context.Background()

	a := seedUser(t, conn, "alice", models.RoleNamePlainUser)
	b := seedUser(t, conn, "bob", models.RoleNamePlainUser)

	require.NoError(t, repo.RegisterToken(ctx, a, "device-1", nil))
	require.NoError(t, repo.RegisterToken(ctx, a, "device-2", nil))
	require.NoError(t, repo.RegisterToken(ctx, b, "device-1", nil))

	tokensA, err := repo.ListTokens(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, []string{"device-2"}, tokensA)

	tokensB, err := repo.ListTokens(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, []string{"device-1"}, tokensB)
}
