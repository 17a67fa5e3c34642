package synthetic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/churnscope/churnctl/pkg/features"
)

func TestGenerate_InvalidCount(t *testing.T) {
	_, _, err := Generate(0, DefaultSeed)
	assert.Error(t, err)

	_, _, err = Generate(-5, DefaultSeed)
	assert.Error(t, err)
}

func TestGenerate_Shape(t *testing.T) {
	xs, ys, err := Generate(100, DefaultSeed)
	require.NoError(t, err)
	assert.Len(t, xs, 100)
	assert.Len(t, ys, 100)
}

func TestGenerate_Deterministic(t *testing.T) {
	xs1, ys1, err := Generate(1000, DefaultSeed)
	require.NoError(t, err)
	xs2, ys2, err := Generate(1000, DefaultSeed)
	require.NoError(t, err)

	assert.Equal(t, xs1, xs2)
	assert.Equal(t, ys1, ys2)
}

func TestGenerate_SeedChangesOutput(t *testing.T) {
	xs1, _, err := Generate(100, 1)
	require.NoError(t, err)
	xs2, _, err := Generate(100, 2)
	require.NoError(t, err)

	assert.NotEqual(t, xs1, xs2)
}

func TestGenerate_FeatureRanges(t *testing.T) {
	xs, _, err := Generate(1000, DefaultSeed)
	require.NoError(t, err)

	for _, v := range xs {
		assert.GreaterOrEqual(t, v.EngagementScore, 0.0)
		assert.LessOrEqual(t, v.EngagementScore, 100.0)
		assert.GreaterOrEqual(t, v.Tenure, 0.0)
		assert.GreaterOrEqual(t, v.SupportResponseTime, 0.0)
		assert.GreaterOrEqual(t, v.Revenue, 0.0)
		assert.GreaterOrEqual(t, v.DaysSinceLastActivity, 0.0)
	}
}

func TestGenerate_LabelsCorrelateWithRisk(t *testing.T) {
	xs, ys, err := Generate(2000, DefaultSeed)
	require.NoError(t, err)

	rate := ChurnRate(ys)
	assert.Greater(t, rate, 0.05)
	assert.Less(t, rate, 0.95)

	// Churned customers should have lower mean engagement than retained.
	var churnedEng, retainedEng float64
	var churned, retained int
	for i, v := range xs {
		if ys[i] == 1 {
			churnedEng += v.EngagementScore
			churned++
		} else {
			retainedEng += v.EngagementScore
			retained++
		}
	}
	require.Greater(t, churned, 0)
	require.Greater(t, retained, 0)
	assert.Less(t, churnedEng/float64(churned), retainedEng/float64(retained))
}

func TestLabel_RiskIndicators(t *testing.T) {
	// All indicators firing without noise: 0.4 + 0.2 + 0.15 + 0.2 > 0.5.
	v := features.Vector{
		EngagementScore:       0,
		Tenure:                10,
		SupportResponseTime:   48,
		Revenue:               100,
		DaysSinceLastActivity: 60,
	}
	assert.Equal(t, 1, label(v, 0))

	// Fully healthy customer stays retained.
	v = features.Vector{
		EngagementScore:       100,
		Tenure:                1000,
		SupportResponseTime:   2,
		Revenue:               5000,
		DaysSinceLastActivity: 1,
	}
	assert.Equal(t, 0, label(v, 0))
}

func TestChurnRate(t *testing.T) {
	assert.Equal(t, 0.0, ChurnRate(nil))
	assert.Equal(t, 0.5, ChurnRate([]int{1, 0, 1, 0}))
	assert.Equal(t, 1.0, ChurnRate([]int{1, 1}))
}
