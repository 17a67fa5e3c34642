package synthetic

import (
	"errors"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/churnscope/churnctl/pkg/features"
)

const (
	// DefaultSeed keeps training runs reproducible across invocations.
	DefaultSeed = 42

	// DefaultSamples is the training-set size used when no real data is
	// available.
	DefaultSamples = 2000

	churnThreshold = 0.5
)

// Generate produces n labeled synthetic customer records. Each feature is
// drawn from a distribution shaped to resemble realistic skew, and the
// binary label follows a weighted risk formula plus gaussian noise.
// Output is bit-identical for a given seed.
func Generate(n int, seed uint64) ([]features.Vector, []int, error) {
	if n <= 0 {
		return nil, nil, errors.New("sample count must be positive")
	}

	src := rand.NewSource(seed)

	engagement := distuv.Beta{Alpha: 2, Beta: 2, Src: src}
	tenure := distuv.Exponential{Rate: 1.0 / 365, Src: src}
	support := distuv.Gamma{Alpha: 2, Beta: 1.0 / 5, Src: src}
	revenue := distuv.LogNormal{Mu: 7, Sigma: 1.5, Src: src}
	inactivity := distuv.Exponential{Rate: 1.0 / 15, Src: src}
	noise := distuv.Normal{Mu: 0, Sigma: 0.1, Src: src}

	xs := make([]features.Vector, n)
	ys := make([]int, n)

	for i := 0; i < n; i++ {
		v := features.Vector{
			EngagementScore:       engagement.Rand() * 100,
			Tenure:                tenure.Rand(),
			SupportResponseTime:   support.Rand(),
			Revenue:               revenue.Rand(),
			DaysSinceLastActivity: inactivity.Rand(),
		}
		xs[i] = v
		ys[i] = label(v, noise.Rand())
	}

	return xs, ys, nil
}

// label computes the weighted churn score for one customer.
// Low engagement dominates, slow support, short tenure, and inactivity
// each add a fixed risk increment.
func label(v features.Vector, noise float64) int {
	score := (100-v.EngagementScore)/100*0.4 + noise
	if v.SupportResponseTime > 24 {
		score += 0.2
	}
	if v.Tenure < 90 {
		score += 0.15
	}
	if v.DaysSinceLastActivity > 30 {
		score += 0.2
	}

	if score > churnThreshold {
		return 1
	}
	return 0
}

// ChurnRate returns the fraction of positive labels.
func ChurnRate(ys []int) float64 {
	if len(ys) == 0 {
		return 0
	}
	sum := 0
	for _, y := range ys {
		sum += y
	}
	return float64(sum) / float64(len(ys))
}
