package cli

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v2"

	"github.com/churnscope/churnctl/pkg/features"
	"github.com/churnscope/churnctl/pkg/model"
	"github.com/churnscope/churnctl/pkg/scoring"
	"github.com/churnscope/churnctl/pkg/store"
	"github.com/churnscope/churnctl/pkg/synthetic"
)

var (
	samplesFlag = &cli.IntFlag{
		Name:  "samples",
		Usage: "Number of synthetic training samples",
		Value: synthetic.DefaultSamples,
	}

	seedFlag = &cli.Uint64Flag{
		Name:  "seed",
		Usage: "Random seed for synthetic data and tree fitting",
		Value: synthetic.DefaultSeed,
	}

	treesFlag = &cli.IntFlag{
		Name:  "trees",
		Usage: "Number of trees in the forest",
		Value: model.DefaultConfig().Trees,
	}

	trainCmd = &cli.Command{
		Name:            "train",
		Aliases:         []string{"t"},
		Usage:           "Train the churn model on synthetic data and refresh stored predictions",
		HideHelpCommand: true,
		Action:          cmdTrain,
		Flags: []cli.Flag{
			samplesFlag,
			seedFlag,
			treesFlag,
			modelFileFlag,
			debugFlag,
		},
	}
)

// TrainResult summarizes one training run for CLI output.
type TrainResult struct {
	Samples            int            `json:"samples" yaml:"samples"`
	ChurnRate          float64        `json:"churn_rate" yaml:"churn_rate"`
	ModelPath          string         `json:"model_path" yaml:"model_path"`
	Metrics            *model.Metrics `json:"metrics" yaml:"metrics"`
	PredictionsUpdated int            `json:"predictions_updated" yaml:"predictions_updated"`
	Segments           map[string]int `json:"segments,omitempty" yaml:"segments,omitempty"`
}

func cmdTrain(c *cli.Context) error {
	samples := c.Int(samplesFlag.Name)
	seed := c.Uint64(seedFlag.Name)

	slog.Info("generating training data", "samples", samples, "seed", seed)
	vs, ys, err := synthetic.Generate(samples, seed)
	if err != nil {
		return fmt.Errorf("generating synthetic data: %w", err)
	}

	mCfg := model.DefaultConfig()
	mCfg.Trees = c.Int(treesFlag.Name)
	mCfg.Seed = int64(seed)

	forest := model.New(mCfg)
	metrics, err := forest.Train(features.Matrix(vs), ys)
	if err != nil {
		return fmt.Errorf("training model: %w", err)
	}
	slog.Info("model trained",
		"run", forest.ID,
		"accuracy", metrics.Accuracy,
		"roc_auc", metrics.ROCAUC)

	artifactPath := modelPath(c)
	if err := forest.Save(artifactPath); err != nil {
		return fmt.Errorf("saving model to %s: %w", artifactPath, err)
	}
	slog.Info("model saved", "path", artifactPath)

	result := &TrainResult{
		Samples:   samples,
		ChurnRate: synthetic.ChurnRate(ys),
		ModelPath: artifactPath,
		Metrics:   metrics,
	}

	// Refresh stored predictions with the new model. Data access
	// problems are not fatal here, the model itself is already saved.
	if err := refreshPredictions(c, forest, result); err != nil {
		if errors.Is(err, store.ErrDataAccess) {
			slog.Warn("customer data unavailable, skipping prediction refresh", "error", err)
		} else {
			return err
		}
	}

	return encode(result)
}

func refreshPredictions(c *cli.Context, forest *model.Forest, result *TrainResult) error {
	cfg := getConfig(c)
	ctx := c.Context

	st, closeStore, err := cfg.dataStore(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrDataAccess, err)
	}
	defer closeStore()

	customers, err := st.Customers(ctx)
	if err != nil {
		return err
	}
	if len(customers) == 0 {
		slog.Info("no stored customers to score")
		return nil
	}

	batch, err := scoreCustomers(forest, customers)
	if err != nil {
		return err
	}

	preds := make([]*store.Prediction, 0, len(batch))
	segments := make(map[string]int)
	for _, b := range batch {
		preds = append(preds, &store.Prediction{
			CustomerID:       b.CustomerID,
			ChurnProbability: b.ChurnProbability,
			RiskSegment:      b.RiskSegment,
			ModelVersion:     forest.ID,
		})
		segments[b.RiskSegment]++
	}

	if err := st.SavePredictions(ctx, preds); err != nil {
		return err
	}

	result.PredictionsUpdated = len(preds)
	result.Segments = segments
	slog.Info("predictions refreshed", "customers", len(preds))
	return nil
}

func scoreCustomers(forest *model.Forest, customers []*store.Customer) ([]scoring.BatchResult, error) {
	recs := make([]map[string]any, 0, len(customers))
	for _, cust := range customers {
		recs = append(recs, cust.Record())
	}

	svc := scoring.New(forest)
	batch, err := svc.ScoreBatch(recs)
	if err != nil {
		return nil, fmt.Errorf("scoring customers: %w", err)
	}
	return batch, nil
}
