package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *SQLite {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := OpenSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func strPtr(s string) *string {
	return &s
}

func TestInit_CreatesDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	require.NoError(t, Init(dbPath))
	_, err := os.Stat(dbPath)
	assert.NoError(t, err)
}

func TestInit_EmptyPath(t *testing.T) {
	assert.Error(t, Init(""))
}

func TestInit_Idempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	require.NoError(t, Init(dbPath))
	assert.NoError(t, Init(dbPath))
}

func TestSQLite_CustomersEmpty(t *testing.T) {
	s := setupTestStore(t)
	list, err := s.Customers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSQLite_SaveAndReadCustomers(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	in := []*Customer{
		{CustomerID: "c-1", EngagementScore: 80, Tenure: 400, SupportResponseTime: 4, Revenue: 1200.50, LastActivityDate: strPtr("2025-05-01")},
		{CustomerID: "c-2", EngagementScore: 20, Tenure: 30, SupportResponseTime: 60, Revenue: 99.99},
	}
	require.NoError(t, s.SaveCustomers(ctx, in))

	out, err := s.Customers(ctx)
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, "c-1", out[0].CustomerID)
	require.NotNil(t, out[0].LastActivityDate)
	assert.Equal(t, "2025-05-01", *out[0].LastActivityDate)
	assert.InDelta(t, 1200.50, out[0].Revenue, 1e-9)

	assert.Equal(t, "c-2", out[1].CustomerID)
	assert.Nil(t, out[1].LastActivityDate)
}

func TestSQLite_SaveCustomersUpserts(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveCustomers(ctx, []*Customer{{CustomerID: "c-1", EngagementScore: 10}}))
	require.NoError(t, s.SaveCustomers(ctx, []*Customer{{CustomerID: "c-1", EngagementScore: 90}}))

	out, err := s.Customers(ctx)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, float64(90), out[0].EngagementScore)
}

func TestSQLite_SavePredictionsReplacesPriorRow(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SavePredictions(ctx, []*Prediction{
		{CustomerID: "c-1", ChurnProbability: 0.8, RiskSegment: "high", ModelVersion: "m1"},
	}))
	require.NoError(t, s.SavePredictions(ctx, []*Prediction{
		{CustomerID: "c-1", ChurnProbability: 0.2, RiskSegment: "low", ModelVersion: "m2"},
	}))

	out, err := s.Predictions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "c-1", out[0].CustomerID)
	assert.InDelta(t, 0.2, out[0].ChurnProbability, 1e-9)
	assert.Equal(t, "low", out[0].RiskSegment)
	assert.Equal(t, "m2", out[0].ModelVersion)
	assert.NotEmpty(t, out[0].CreatedAt)
}

func TestSQLite_PredictionsOrderedByProbability(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SavePredictions(ctx, []*Prediction{
		{CustomerID: "low", ChurnProbability: 0.1, RiskSegment: "low"},
		{CustomerID: "high", ChurnProbability: 0.9, RiskSegment: "high"},
		{CustomerID: "mid", ChurnProbability: 0.5, RiskSegment: "medium"},
	}))

	out, err := s.Predictions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, "high", out[0].CustomerID)
	assert.Equal(t, "mid", out[1].CustomerID)
	assert.Equal(t, "low", out[2].CustomerID)
}

func TestSQLite_PredictionsLimit(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SavePredictions(ctx, []*Prediction{
		{CustomerID: "a", ChurnProbability: 0.1, RiskSegment: "low"},
		{CustomerID: "b", ChurnProbability: 0.9, RiskSegment: "high"},
	}))

	out, err := s.Predictions(ctx, 1)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "b", out[0].CustomerID)
}

func TestCustomer_Record(t *testing.T) {
	c := &Customer{
		CustomerID:          "c-1",
		EngagementScore:     50,
		Tenure:              365,
		SupportResponseTime: 8,
		Revenue:             1000,
		LastActivityDate:    strPtr("2025-01-01"),
	}
	rec := c.Record()
	assert.Equal(t, "c-1", rec["customer_id"])
	assert.Equal(t, "2025-01-01", rec["last_activity_date"])

	// NULL date keeps the key so feature prep applies the inactive default
	c.LastActivityDate = nil
	rec = c.Record()
	val, ok := rec["last_activity_date"]
	assert.True(t, ok)
	assert.Nil(t, val)
}
