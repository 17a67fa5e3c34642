// Package explain ranks which features drove a churn prediction and
// renders a human-readable rationale. Contribution scoring is a
// deliberately cheap proxy derived from global feature importance and
// the local feature value, not an exact attribution method.
package explain

import (
	"fmt"
	"math"
	"sort"

	"github.com/churnscope/churnctl/pkg/features"
)

// Risk segment tiers. Boundaries are inclusive floors.
const (
	SegmentHigh   = "high"
	SegmentMedium = "medium"
	SegmentLow    = "low"

	highFloor   = 0.6
	mediumFloor = 0.3

	topDriverCount = 3
)

// Classifier is the trained-model contract the engine depends on.
type Classifier interface {
	PredictProba(x [][]float64) ([]float64, error)
	FeatureImportances() ([]float64, error)
}

// Driver is one ranked feature contribution.
type Driver struct {
	Feature      string  `json:"feature" yaml:"feature"`
	Value        float64 `json:"value" yaml:"value"`
	Importance   float64 `json:"importance" yaml:"importance"`
	Contribution float64 `json:"contribution" yaml:"contribution"`
}

// Result is a fully explained single-customer prediction.
type Result struct {
	ChurnProbability float64  `json:"churn_probability" yaml:"churn_probability"`
	RiskSegment      string   `json:"risk_segment" yaml:"risk_segment"`
	TopDrivers       []Driver `json:"top_drivers" yaml:"top_drivers"`
	Explanation      string   `json:"explanation" yaml:"explanation"`
}

// Segment buckets a churn probability into a risk tier.
func Segment(p float64) string {
	switch {
	case p >= highFloor:
		return SegmentHigh
	case p >= mediumFloor:
		return SegmentMedium
	default:
		return SegmentLow
	}
}

// Explain scores one feature vector and ranks what drove the result.
// Classifier errors (untrained model included) propagate verbatim.
func Explain(v features.Vector, clf Classifier) (*Result, error) {
	probs, err := clf.PredictProba([][]float64{v.Values()})
	if err != nil {
		return nil, err
	}
	prob := probs[0]

	imps, err := clf.FeatureImportances()
	if err != nil {
		return nil, err
	}
	if len(imps) != features.NumFeatures {
		return nil, fmt.Errorf("classifier returned %d importances, want %d", len(imps), features.NumFeatures)
	}

	drivers := contributions(v, imps)

	return &Result{
		ChurnProbability: prob,
		RiskSegment:      Segment(prob),
		TopDrivers:       drivers[:topDriverCount],
		Explanation:      narrative(prob, drivers[0]),
	}, nil
}

// contributions scores every feature and sorts by absolute contribution
// descending. Engagement is scaled down by 100 to keep its magnitude
// comparable to the raw-unit features.
func contributions(v features.Vector, imps []float64) []Driver {
	vals := v.Values()
	out := make([]Driver, features.NumFeatures)
	for i, name := range features.Names {
		val := vals[i]
		scaled := val
		if name == features.EngagementScore {
			scaled = val / 100
		}
		out[i] = Driver{
			Feature:      name,
			Value:        val,
			Importance:   imps[i],
			Contribution: imps[i] * scaled,
		}
	}

	sortByAbsContribution(out)
	return out
}

// narrative renders the explanation string: probability and tier first,
// then one extra sentence keyed off the top driver when a concern rule
// matches. No match means no extra sentence.
func narrative(prob float64, top Driver) string {
	s := fmt.Sprintf("This customer has %.1f%% churn risk (%s). ", prob*100, Segment(prob))

	switch top.Feature {
	case features.EngagementScore:
		if top.Value < 30 {
			s += fmt.Sprintf("Primary concern: Very low engagement score (%.0f/100). ", top.Value)
		} else if top.Value < 50 {
			s += fmt.Sprintf("Primary concern: Below-average engagement score (%.0f/100). ", top.Value)
		}
	case features.SupportResponseTime:
		if top.Value > 48 {
			s += fmt.Sprintf("Primary concern: Slow support response time (%.1f hours). ", top.Value)
		}
	case features.DaysSinceLastActivity:
		if top.Value > 30 {
			s += fmt.Sprintf("Primary concern: Inactive for %.0f days. ", top.Value)
		}
	case features.Tenure:
		if top.Value < 90 {
			s += fmt.Sprintf("Primary concern: New customer (only %.0f days tenure). ", top.Value)
		}
	}

	return s
}

func sortByAbsContribution(ds []Driver) {
	sort.SliceStable(ds, func(i, j int) bool {
		return math.Abs(ds[i].Contribution) > math.Abs(ds[j].Contribution)
	})
}
