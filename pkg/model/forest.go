package model

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/churnscope/churnctl/pkg/features"
)

var (
	// ErrNotTrained is returned by any inference path before Train or
	// Load has completed.
	ErrNotTrained = errors.New("model not trained (run train or load first)")

	// ErrNotFound is returned by Load when no artifact exists at the
	// given path.
	ErrNotFound = errors.New("model artifact not found")
)

const (
	testFraction   = 0.2
	treeSeedStride = 7919 // prime stride keeps per-tree streams disjoint
)

// Config holds the forest hyperparameters.
type Config struct {
	Trees           int   `json:"trees" yaml:"trees"`
	MaxDepth        int   `json:"max_depth" yaml:"max_depth"`
	MinSamplesSplit int   `json:"min_samples_split" yaml:"min_samples_split"`
	MinSamplesLeaf  int   `json:"min_samples_leaf" yaml:"min_samples_leaf"`
	Seed            int64 `json:"seed" yaml:"seed"`
}

func DefaultConfig() Config {
	return Config{
		Trees:           100,
		MaxDepth:        10,
		MinSamplesSplit: 10,
		MinSamplesLeaf:  5,
		Seed:            42,
	}
}

// Forest is a random-forest binary classifier over the fixed feature
// order. Train mutates it exactly once; all later use is read-only, so a
// trained forest is safe for concurrent inference.
type Forest struct {
	ID string

	cfg     Config
	names   []string
	trees   []*node
	imps    []float64
	trained bool
}

func New(cfg Config) *Forest {
	return &Forest{
		ID:    uuid.NewString(),
		cfg:   cfg,
		names: features.Names,
	}
}

// Train fits the forest on the given samples and returns holdout
// metrics. Trees are fitted concurrently; results are deterministic for
// a given config seed because each tree derives its own rng stream.
func (f *Forest) Train(x [][]float64, y []int) (*Metrics, error) {
	if f.cfg.Trees < 1 {
		return nil, fmt.Errorf("invalid config: trees must be positive, got %d", f.cfg.Trees)
	}
	if len(x) == 0 || len(x) != len(y) {
		return nil, fmt.Errorf("invalid training data: %d samples, %d labels", len(x), len(y))
	}
	for i, row := range x {
		if len(row) != len(f.names) {
			return nil, fmt.Errorf("sample %d has %d features, want %d", i, len(row), len(f.names))
		}
	}

	trainIdx, testIdx := stratifiedSplit(y, testFraction, f.cfg.Seed)
	if len(trainIdx) == 0 || len(testIdx) == 0 {
		return nil, errors.New("not enough samples for a train/test split")
	}

	maxFeatures := int(math.Sqrt(float64(len(f.names))))

	trees := make([]*node, f.cfg.Trees)
	imps := make([][]float64, f.cfg.Trees)

	g := new(errgroup.Group)
	g.SetLimit(runtime.NumCPU())

	for t := 0; t < f.cfg.Trees; t++ {
		g.Go(func() error {
			rng := rand.New(rand.NewSource(f.cfg.Seed + int64(t)*treeSeedStride))

			// bootstrap sample of the training rows
			sample := make([]int, len(trainIdx))
			for i := range sample {
				sample[i] = trainIdx[rng.Intn(len(trainIdx))]
			}

			b := &treeBuilder{
				maxDepth:    f.cfg.MaxDepth,
				minSplit:    f.cfg.MinSamplesSplit,
				minLeaf:     f.cfg.MinSamplesLeaf,
				maxFeatures: maxFeatures,
				rng:         rng,
				importances: make([]float64, len(f.names)),
			}
			trees[t] = b.fit(x, y, sample)
			imps[t] = b.importances
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fitting trees: %w", err)
	}

	f.trees = trees
	f.imps = normalizeImportances(imps, len(f.names))
	f.trained = true

	probs, err := f.predictRows(index(x, testIdx))
	if err != nil {
		return nil, fmt.Errorf("evaluating holdout: %w", err)
	}

	m := evaluate(index2(y, testIdx), probs)
	m.RunID = f.ID
	m.TrainSamples = len(trainIdx)
	m.TestSamples = len(testIdx)
	m.TrainedAt = time.Now().UTC().Format(time.RFC3339)
	m.FeatureImportance = f.rankedImportances()

	return m, nil
}

// PredictProba returns the churn probability for each row.
func (f *Forest) PredictProba(x [][]float64) ([]float64, error) {
	if !f.trained {
		return nil, ErrNotTrained
	}
	for i, row := range x {
		if len(row) != len(f.names) {
			return nil, fmt.Errorf("sample %d has %d features, want %d", i, len(row), len(f.names))
		}
	}
	return f.predictRows(x)
}

func (f *Forest) predictRows(x [][]float64) ([]float64, error) {
	out := make([]float64, len(x))
	for i, row := range x {
		sum := 0.0
		for _, t := range f.trees {
			sum += t.predict(row)
		}
		out[i] = sum / float64(len(f.trees))
	}
	return out, nil
}

// FeatureImportances returns mean impurity-decrease importances aligned
// to the fixed feature order, summing to 1.
func (f *Forest) FeatureImportances() ([]float64, error) {
	if !f.trained {
		return nil, ErrNotTrained
	}
	out := make([]float64, len(f.imps))
	copy(out, f.imps)
	return out, nil
}

func (f *Forest) FeatureNames() []string {
	return f.names
}

func (f *Forest) rankedImportances() []FeatureWeight {
	ws := make([]FeatureWeight, len(f.names))
	for i, n := range f.names {
		ws[i] = FeatureWeight{Feature: n, Importance: f.imps[i]}
	}
	sortByImportance(ws)
	return ws
}

// stratifiedSplit shuffles positives and negatives separately so the
// holdout keeps the class balance of the full set.
func stratifiedSplit(y []int, frac float64, seed int64) (train, test []int) {
	rng := rand.New(rand.NewSource(seed))

	var pos, neg []int
	for i, label := range y {
		if label == 1 {
			pos = append(pos, i)
		} else {
			neg = append(neg, i)
		}
	}

	split := func(idx []int) {
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		cut := int(float64(len(idx)) * frac)
		test = append(test, idx[:cut]...)
		train = append(train, idx[cut:]...)
	}
	split(pos)
	split(neg)

	return train, test
}

func normalizeImportances(perTree [][]float64, n int) []float64 {
	sum := make([]float64, n)
	for _, imp := range perTree {
		for i, v := range imp {
			sum[i] += v
		}
	}
	total := 0.0
	for _, v := range sum {
		total += v
	}
	if total == 0 {
		return sum
	}
	for i := range sum {
		sum[i] /= total
	}
	return sum
}

func index(x [][]float64, idx []int) [][]float64 {
	out := make([][]float64, len(idx))
	for i, j := range idx {
		out[i] = x[j]
	}
	return out
}

func index2(y []int, idx []int) []int {
	out := make([]int, len(idx))
	for i, j := range idx {
		out[i] = y[j]
	}
	return out
}
