package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupPostgres spins up a throwaway Postgres container. Requires a
// local Docker daemon; skipped in short mode.
func setupPostgres(t *testing.T) *Postgres {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("churn"),
		tcpostgres.WithUsername("churn"),
		tcpostgres.WithPassword("churn"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	s, err := OpenPostgres(ctx, PostgresConn{
		Host:     host,
		Port:     port.Int(),
		Database: "churn",
		User:     "churn",
		Password: "churn",
		SSLMode:  "disable",
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return s
}

func TestPostgres_RoundTrip(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()

	in := []*Customer{
		{CustomerID: "c-1", EngagementScore: 75, Tenure: 500, SupportResponseTime: 3, Revenue: 2499.99, LastActivityDate: strPtr("2025-04-15")},
		{CustomerID: "c-2", EngagementScore: 15, Tenure: 20, SupportResponseTime: 72, Revenue: 150},
	}
	require.NoError(t, s.SaveCustomers(ctx, in))

	out, err := s.Customers(ctx)
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, "c-1", out[0].CustomerID)
	assert.InDelta(t, 2499.99, out[0].Revenue, 1e-9)
	require.NotNil(t, out[0].LastActivityDate)
	assert.Equal(t, "2025-04-15", *out[0].LastActivityDate)
	assert.Nil(t, out[1].LastActivityDate)
}

func TestPostgres_PredictionUpsert(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()

	require.NoError(t, s.SavePredictions(ctx, []*Prediction{
		{CustomerID: "c-1", ChurnProbability: 0.7, RiskSegment: "high", ModelVersion: "m1"},
	}))
	require.NoError(t, s.SavePredictions(ctx, []*Prediction{
		{CustomerID: "c-1", ChurnProbability: 0.4, RiskSegment: "medium", ModelVersion: "m2"},
		{CustomerID: "c-2", ChurnProbability: 0.9, RiskSegment: "high", ModelVersion: "m2"},
	}))

	out, err := s.Predictions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, "c-2", out[0].CustomerID)
	assert.Equal(t, "c-1", out[1].CustomerID)
	assert.InDelta(t, 0.4, out[1].ChurnProbability, 1e-9)
	assert.Equal(t, "m2", out[1].ModelVersion)
}

func TestPostgres_UnreachableHostIsDataAccessError(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := OpenPostgres(ctx, PostgresConn{
		Host:     "127.0.0.1",
		Port:     1, // nothing listens here
		Database: "none",
		User:     "none",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDataAccess)
}
