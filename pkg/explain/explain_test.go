package explain

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/churnscope/churnctl/pkg/features"
)

// stubClassifier returns canned outputs so tests can isolate the
// explanation logic from a real model.
type stubClassifier struct {
	prob float64
	imps []float64
	err  error
}

func (s *stubClassifier) PredictProba(x [][]float64) ([]float64, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]float64, len(x))
	for i := range out {
		out[i] = s.prob
	}
	return out, nil
}

func (s *stubClassifier) FeatureImportances() ([]float64, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.imps, nil
}

func TestSegment_Boundaries(t *testing.T) {
	assert.Equal(t, SegmentHigh, Segment(0.6))
	assert.Equal(t, SegmentMedium, Segment(0.599999))
	assert.Equal(t, SegmentMedium, Segment(0.3))
	assert.Equal(t, SegmentLow, Segment(0.299999))
	assert.Equal(t, SegmentHigh, Segment(1.0))
	assert.Equal(t, SegmentLow, Segment(0.0))
}

func TestExplain_ClassifierErrorPropagates(t *testing.T) {
	sentinel := errors.New("model not trained")
	_, err := Explain(features.Vector{}, &stubClassifier{err: sentinel})
	assert.ErrorIs(t, err, sentinel)
}

func TestExplain_ImportanceLengthMismatch(t *testing.T) {
	_, err := Explain(features.Vector{}, &stubClassifier{prob: 0.5, imps: []float64{0.5, 0.5}})
	assert.Error(t, err)
}

func TestExplain_EngagementScaling(t *testing.T) {
	// engagement importance 0.5, value 20 -> contribution 0.5*0.2 = 0.1;
	// all others contribute less in absolute terms except checked below
	clf := &stubClassifier{
		prob: 0.7,
		imps: []float64{0.5, 0.0001, 0.001, 0.0001, 0.002},
	}
	v := features.Vector{
		EngagementScore:       20,
		Tenure:                100,
		SupportResponseTime:   10,
		Revenue:               50,
		DaysSinceLastActivity: 5,
	}

	res, err := Explain(v, clf)
	require.NoError(t, err)

	require.Len(t, res.TopDrivers, 3)
	top := res.TopDrivers[0]
	assert.Equal(t, features.EngagementScore, top.Feature)
	assert.InDelta(t, 0.1, top.Contribution, 1e-9)
	assert.Equal(t, float64(20), top.Value)
}

func TestExplain_RanksByAbsoluteContribution(t *testing.T) {
	clf := &stubClassifier{
		prob: 0.4,
		imps: []float64{0.1, 0.1, 0.1, 0.5, 0.2},
	}
	v := features.Vector{
		EngagementScore:       100, // 0.1 * 1.0 = 0.1
		Tenure:                10,  // 0.1 * 10  = 1
		SupportResponseTime:   2,   // 0.1 * 2   = 0.2
		Revenue:               50,  // 0.5 * 50  = 25
		DaysSinceLastActivity: 3,   // 0.2 * 3   = 0.6
	}

	res, err := Explain(v, clf)
	require.NoError(t, err)

	require.Len(t, res.TopDrivers, 3)
	assert.Equal(t, features.Revenue, res.TopDrivers[0].Feature)
	assert.Equal(t, features.Tenure, res.TopDrivers[1].Feature)
	assert.Equal(t, features.DaysSinceLastActivity, res.TopDrivers[2].Feature)
}

func TestExplain_NarrativeVeryLowEngagement(t *testing.T) {
	clf := &stubClassifier{
		prob: 0.75,
		imps: []float64{0.9, 0.025, 0.025, 0.025, 0.025},
	}
	v := features.Vector{EngagementScore: 15, Tenure: 1, SupportResponseTime: 1, Revenue: 1, DaysSinceLastActivity: 1}

	res, err := Explain(v, clf)
	require.NoError(t, err)

	assert.Equal(t, SegmentHigh, res.RiskSegment)
	assert.Contains(t, res.Explanation, "75.0% churn risk (high)")
	assert.Contains(t, res.Explanation, "Very low engagement score (15/100)")
}

func TestNarrative_Templates(t *testing.T) {
	tests := []struct {
		name   string
		driver Driver
		want   string
	}{
		{
			name:   "below average engagement",
			driver: Driver{Feature: features.EngagementScore, Value: 40},
			want:   "Below-average engagement score (40/100)",
		},
		{
			name:   "slow support",
			driver: Driver{Feature: features.SupportResponseTime, Value: 72},
			want:   "Slow support response time (72.0 hours)",
		},
		{
			name:   "inactive",
			driver: Driver{Feature: features.DaysSinceLastActivity, Value: 45},
			want:   "Inactive for 45 days",
		},
		{
			name:   "new customer",
			driver: Driver{Feature: features.Tenure, Value: 30},
			want:   "New customer (only 30 days tenure)",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := narrative(0.5, tc.driver)
			assert.Contains(t, s, tc.want)
		})
	}
}

func TestNarrative_SilentFallback(t *testing.T) {
	// healthy engagement as top driver matches no concern rule
	s := narrative(0.2, Driver{Feature: features.EngagementScore, Value: 80})
	assert.Equal(t, "This customer has 20.0% churn risk (low). ", s)

	// revenue has no template at all
	s = narrative(0.5, Driver{Feature: features.Revenue, Value: 1e6})
	assert.False(t, strings.Contains(s, "Primary concern"))
}
